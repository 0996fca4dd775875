package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/metrics"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

const (
	defaultBatchSize = 50
	claimLease       = 2 * time.Minute
	maxRetryDelay    = 300 * time.Second
)

// OutboxRepository определяет методы хранилища для outbox.
type OutboxRepository interface {
	ClaimOutboxMessages(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxMessage, error)
	DeleteOutboxMessage(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, retryAfter time.Duration, lastError string) error
}

// Publisher отправляет событие в брокер.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Dispatcher периодически забирает события из outbox и публикует их
// в обменник аудита. Доставленные события удаляются, неудачные откладываются
// с экспоненциальной задержкой.
type Dispatcher struct {
	repo      OutboxRepository
	publisher Publisher
	log       *slog.Logger
	batchSize int
	interval  time.Duration
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(repo OutboxRepository, publisher Publisher, log *slog.Logger, batchSize int, interval time.Duration) *Dispatcher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		log:       log,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run крутит цикл отправки до отмены ctx.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("audit outbox dispatcher started", slog.Duration("interval", d.interval))
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("audit outbox dispatcher stopped")
			return nil
		case <-ticker.C:
			if _, err := d.FlushOnce(ctx); err != nil {
				d.log.Error("outbox flush failed", sl.Err(err))
			}
		}
	}
}

// FlushOnce отправляет одну пачку событий и возвращает число доставленных.
func (d *Dispatcher) FlushOnce(ctx context.Context) (int, error) {
	messages, err := d.repo.ClaimOutboxMessages(ctx, d.batchSize, claimLease)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, msg := range messages {
		if err := d.publisher.Publish(ctx, rabbitmq.AuditExchange, msg.RoutingKey, msg.Payload); err != nil {
			metrics.AuditPublished.WithLabelValues("error").Inc()
			retryAfter := retryDelay(msg.Attempts)
			d.log.Warn("failed to publish audit event",
				slog.Int64("outbox_id", msg.ID),
				slog.Int("attempts", msg.Attempts),
				slog.Duration("retry_after", retryAfter),
				sl.Err(err))
			if markErr := d.repo.MarkOutboxFailed(ctx, msg.ID, retryAfter, err.Error()); markErr != nil {
				d.log.Error("failed to mark outbox message failed", slog.Int64("outbox_id", msg.ID), sl.Err(markErr))
			}
			continue
		}
		metrics.AuditPublished.WithLabelValues("ok").Inc()
		if err := d.repo.DeleteOutboxMessage(ctx, msg.ID); err != nil {
			// Событие уйдёт повторно после истечения аренды.
			d.log.Error("failed to delete delivered outbox message", slog.Int64("outbox_id", msg.ID), sl.Err(err))
			continue
		}
		delivered++
	}
	return delivered, nil
}

// retryDelay растёт как 2^attempts секунд и не превышает пяти минут.
func retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		return time.Second
	}
	if attempts > 8 {
		return maxRetryDelay
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
