// Package adreward ограничивает рекламные награды дневным лимитом просмотров.
// Сутки считаются в UTC: граница не зависит от часового пояса клиента.
package adreward

import (
	"context"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/utcday"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// CounterRepository определяет методы хранилища для дневного счётчика.
type CounterRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	AdViewsUsed(ctx context.Context, userID string, day time.Time) (int, error)
	IncrementAdViews(ctx context.Context, userID string, day time.Time) (int, error)
}

// Counter ведёт счётчик просмотров за текущие UTC‑сутки.
type Counter struct {
	repo CounterRepository
	max  int
	now  func() time.Time
}

// NewCounter создаёт счётчик с лимитом maxDaily просмотров в сутки.
func NewCounter(repo CounterRepository, maxDaily int) *Counter {
	return &Counter{repo: repo, max: maxDaily, now: time.Now}
}

// Status возвращает состояние лимита на текущие сутки.
func (c *Counter) Status(ctx context.Context, userID string) (models.AdStatus, error) {
	used, err := c.repo.AdViewsUsed(ctx, userID, utcday.Start(c.now()))
	if err != nil {
		return models.AdStatus{}, err
	}
	remaining := c.max - used
	if remaining < 0 {
		remaining = 0
	}
	return models.AdStatus{
		RemainingDailyViews: remaining,
		MaxDailyViews:       c.max,
		ViewsUsedToday:      used,
	}, nil
}

// ConsumeView увеличивает счётчик под блокировкой строки и возвращает остаток.
// Превышение лимита откатывает увеличение и возвращает *models.DailyLimitError.
func (c *Counter) ConsumeView(ctx context.Context, userID string) (int, error) {
	var remaining int
	err := c.repo.WithTx(ctx, func(ctx context.Context) error {
		used, err := c.repo.IncrementAdViews(ctx, userID, utcday.Start(c.now()))
		if err != nil {
			return err
		}
		if used > c.max {
			return &models.DailyLimitError{Limit: c.max, Used: used - 1}
		}
		remaining = c.max - used
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}
