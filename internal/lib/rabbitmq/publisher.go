package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
)

// Publisher публикует готовые JSON‑сообщения в канал RabbitMQ.
// Канал amqp не потокобезопасен, поэтому публикации сериализуются.
type Publisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

// NewPublisher создаёт издателя поверх канала ch.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// Publish отправляет body в exchange с ключом routingKey как устойчивое сообщение.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	const op = "rabbitmq.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
