package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

const userColumns = `id, credit_balance, free_trial_used, free_trial_used_at, free_trial_reading_id, subscription_tier, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u         models.User
		usedAt    sql.NullTime
		readingID sql.NullString
		tier      string
	)
	if err := row.Scan(&u.ID, &u.CreditBalance, &u.FreeTrialUsed, &usedAt, &readingID, &tier, &u.CreatedAt); err != nil {
		return nil, err
	}
	if usedAt.Valid {
		u.FreeTrialUsedAt = &usedAt.Time
	}
	if readingID.Valid {
		u.FreeTrialReadingID = &readingID.String
	}
	u.SubscriptionTier = models.Tier(tier)
	return &u, nil
}

// LockUser создаёт пользователя при первом обращении и блокирует его строку
// до конца транзакции. Вызывается только внутри WithTx.
func (s *Storage) LockUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.LockUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	q := s.q(ctx)
	if _, err := q.ExecContext(ctx,
		`INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID); err != nil {
		return nil, wrap(op, err)
	}
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя. Неизвестный пользователь возвращается
// со значениями по умолчанию: нулевой баланс, пробное прочтение доступно, уровень FREE.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return &models.User{ID: userID, SubscriptionTier: models.TierFree}, nil
	}
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

// SetCreditBalance записывает материализованный баланс. CHECK (credit_balance >= 0)
// отклоняет отрицательное значение.
func (s *Storage) SetCreditBalance(ctx context.Context, userID string, balance int64) error {
	const op = "storage.SetCreditBalance"
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET credit_balance = $1 WHERE id = $2`, balance, userID)
	return wrap(op, err)
}

// MarkFreeTrialUsed отмечает бесплатное прочтение использованным. Возвращает false,
// если оно уже было использовано раньше.
func (s *Storage) MarkFreeTrialUsed(ctx context.Context, userID string, at time.Time) (bool, error) {
	const op = "storage.MarkFreeTrialUsed"
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET free_trial_used = true, free_trial_used_at = $1
		 WHERE id = $2 AND free_trial_used = false`, at, userID)
	if err != nil {
		return false, wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(op, err)
	}
	return n == 1, nil
}

// BindFreeTrialReading привязывает выданную пробу к прочтению. Возвращает false,
// если проба не выдана или уже привязана.
func (s *Storage) BindFreeTrialReading(ctx context.Context, userID, readingID string) (bool, error) {
	const op = "storage.BindFreeTrialReading"
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET free_trial_reading_id = $1
		 WHERE id = $2 AND free_trial_used = true AND free_trial_reading_id IS NULL`, readingID, userID)
	if err != nil {
		return false, wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(op, err)
	}
	return n == 1, nil
}

// SetSubscriptionTier обновляет кешированный уровень подписки пользователя.
func (s *Storage) SetSubscriptionTier(ctx context.Context, userID string, tier models.Tier) error {
	const op = "storage.SetSubscriptionTier"
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET subscription_tier = $1 WHERE id = $2`, string(tier), userID)
	return wrap(op, err)
}
