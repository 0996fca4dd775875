// Package scheduler запускает фоновые задачи: истечение подписок и отправку
// событий аудита из outbox в RabbitMQ.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/reading-entitlements/internal/config"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/audit"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/ledger"
	schedulerservice "github.com/magabrotheeeer/reading-entitlements/internal/services/scheduler"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/subscription"
	"github.com/magabrotheeeer/reading-entitlements/internal/storage"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	dispatcher       *audit.Dispatcher
	conn             *amqp.Connection
	ch               *amqp.Channel
	db               *storage.Storage
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := storage.WaitReady(ctx, db, 10); err != nil {
		_ = db.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AuditTopology())
	if err != nil {
		closeResources(nil, conn, logger)
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	auditService := audit.New(db, logger)
	ledgerService := ledger.New(db, auditService, logger)
	subscriptionService := subscription.New(db, ledgerService, auditService, logger)

	return &App{
		schedulerService: schedulerservice.NewSchedulerService(subscriptionService,
			cfg.Scheduler.ExpiryInterval, cfg.Scheduler.OutboxBatch, logger),
		dispatcher: audit.NewDispatcher(db, rabbitmq.NewPublisher(ch), logger,
			cfg.Scheduler.OutboxBatch, cfg.Scheduler.OutboxInterval),
		conn:   conn,
		ch:     ch,
		db:     db,
		logger: logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает планировщик и ждёт завершения обеих задач.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.schedulerService.ExpireSubscriptions(ctx)
	})
	g.Go(func() error {
		return a.dispatcher.Run(ctx)
	})
	err := g.Wait()

	a.logger.Info("shutting down scheduler service")
	closeResources(a.ch, a.conn, a.logger)
	if cerr := a.db.Close(); cerr != nil {
		a.logger.Error("failed to close storage", sl.Err(cerr))
	}
	return err
}
