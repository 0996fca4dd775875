// Package scheduler запускает периодическое закрытие подписок с истёкшим периодом.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
)

// Expirer закрывает до batch подписок и возвращает число закрытых.
type Expirer interface {
	ExpireDue(ctx context.Context, batch int) (int, error)
}

type SchedulerService struct {
	subs     Expirer
	interval time.Duration
	batch    int
	log      *slog.Logger
}

// NewSchedulerService создаёт SchedulerService.
func NewSchedulerService(subs Expirer, interval time.Duration, batch int, log *slog.Logger) *SchedulerService {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &SchedulerService{
		subs:     subs,
		interval: interval,
		batch:    batch,
		log:      log,
	}
}

// ExpireSubscriptions закрывает истёкшие подписки сразу и затем раз в interval,
// пока не отменён ctx.
func (s *SchedulerService) ExpireSubscriptions(ctx context.Context) error {
	s.runExpireSubscriptions(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runExpireSubscriptions(ctx)
		}
	}
}

// runExpireSubscriptions выбирает пачки, пока очередная не окажется неполной.
func (s *SchedulerService) runExpireSubscriptions(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := s.subs.ExpireDue(ctx, s.batch)
		if err != nil {
			s.log.Error("failed to expire subscriptions", sl.Err(err))
			break
		}
		total += n
		if n < s.batch {
			break
		}
	}
	if total > 0 {
		s.log.Info("expired subscriptions", slog.Int("count", total))
	}
	return total
}
