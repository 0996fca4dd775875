package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// AdViewsUsed возвращает число засчитанных просмотров за сутки day без блокировки.
func (s *Storage) AdViewsUsed(ctx context.Context, userID string, day time.Time) (int, error) {
	const op = "storage.AdViewsUsed"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var used int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT views_used FROM ad_reward_daily WHERE user_id = $1 AND day = $2`,
		userID, day).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, wrap(op, err)
	}
	return used, nil
}

// IncrementAdViews увеличивает счётчик просмотров за сутки и возвращает новое значение.
// Строка счётчика остаётся заблокированной до конца транзакции.
func (s *Storage) IncrementAdViews(ctx context.Context, userID string, day time.Time) (int, error) {
	const op = "storage.IncrementAdViews"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var used int
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO ad_reward_daily (user_id, day, views_used)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (user_id, day) DO UPDATE SET views_used = ad_reward_daily.views_used + 1
		 RETURNING views_used`, userID, day).Scan(&used)
	if err != nil {
		return 0, wrap(op, err)
	}
	return used, nil
}

// InsertAdClaim добавляет запись в журнал заявок на награду.
func (s *Storage) InsertAdClaim(ctx context.Context, c models.AdClaim) error {
	const op = "storage.InsertAdClaim"
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO ad_reward_claims (user_id, day, reward_type, reading_id, section_key,
		     ad_placement_id, credits_granted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.UserID, c.Day, string(c.RewardType), c.ReadingID, c.SectionKey, c.AdPlacementID, c.CreditsGranted)
	return wrap(op, err)
}
