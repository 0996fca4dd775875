package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
)

// ErrDrop помечает сообщение, которое бессмысленно доставлять повторно
// (например, некорректный JSON). Такое сообщение отклоняется без возврата в очередь.
var ErrDrop = errors.New("drop message")

// Acknowledger покрывает методы amqp.Delivery, нужные для подтверждения.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// ConsumerMessage читает очередь queueName и передаёт тела сообщений handler
// не более чем в 10 параллельных обработчиках. Успех — ack, ErrDrop — nack без
// возврата, любая другая ошибка — nack с возвратом в очередь.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, log *slog.Logger,
	handler func(ctx context.Context, body []byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, 10)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					Settle(d, handler(ctx, d.Body), log)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Settle подтверждает или отклоняет доставку по результату обработки.
func Settle(d Acknowledger, handleErr error, log *slog.Logger) {
	switch {
	case handleErr == nil:
		if err := d.Ack(false); err != nil {
			log.Error("failed to ack message", sl.Err(err))
		}
	case errors.Is(handleErr, ErrDrop):
		log.Warn("dropping message", sl.Err(handleErr))
		if err := d.Nack(false, false); err != nil {
			log.Error("failed to nack message", sl.Err(err))
		}
	default:
		log.Error("message handling failed, requeue", sl.Err(handleErr))
		if err := d.Nack(false, true); err != nil {
			log.Error("failed to nack message", sl.Err(err))
		}
	}
}
