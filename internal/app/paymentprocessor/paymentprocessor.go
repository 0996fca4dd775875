// Package paymentprocessor применяет подтверждения оплаты из очереди RabbitMQ.
package paymentprocessor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/reading-entitlements/internal/app/entitlements"
	"github.com/magabrotheeeer/reading-entitlements/internal/cache"
	"github.com/magabrotheeeer/reading-entitlements/internal/config"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/payment"
	"github.com/magabrotheeeer/reading-entitlements/internal/storage"
)

// App читает очередь payments.succeeded.
type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	db      *storage.Storage
	cache   *cache.Cache
	payment *payment.PaymentService
	logger  *slog.Logger
}

// New подключает брокер, хранилище и Redis.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := storage.WaitReady(ctx, db, 10); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.PaymentsTopology())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	services := entitlements.BuildServices(cfg, db, cacheRedis, logger)

	return &App{
		conn:    conn,
		ch:      ch,
		db:      db,
		cache:   cacheRedis,
		payment: services.Payment,
		logger:  logger,
	}, nil
}

// Run читает очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.PaymentsSucceededQueue, a.logger, a.payment.HandleMessage)
	if err != nil {
		a.logger.Error("failed to start consumer", sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("consuming payment events", slog.String("queue", rabbitmq.PaymentsSucceededQueue))

	<-ctx.Done()
	a.logger.Info("payment-processor shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
}
