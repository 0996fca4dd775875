// Package entitlements собирает HTTP API сервиса доступа к прочтениям.
package entitlements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/reading-entitlements/internal/cache"
	"github.com/magabrotheeeer/reading-entitlements/internal/config"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/jwt"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/migrations"
	"github.com/magabrotheeeer/reading-entitlements/internal/storage"
)

// App представляет HTTP-приложение сервиса.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
}

// New подключает хранилище и Redis, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	services := BuildServices(cfg, db, cacheRedis, logger)
	verifier := jwt.NewHS256(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL, cfg.JWTToken.Issuer)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Services: services,
		Tokens:   verifier,
		Webhook:  cfg.Webhook.Secret,
		RateRPS:  cfg.RateLimit.RPS,
		Burst:    cfg.RateLimit.Burst,
		DB:       db,
		Cache:    cacheRedis,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.TimeoutHTTP,
		WriteTimeout: cfg.HTTPServer.TimeoutHTTP,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
}
