package storage

import (
	"context"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

const subscriptionColumns = `id, user_id, plan_id, tier, status, period_start, period_end,
	credits_per_period, readings_used, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var (
		sub          models.Subscription
		tier, status string
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &tier, &status, &sub.PeriodStart,
		&sub.PeriodEnd, &sub.CreditsPerPeriod, &sub.ReadingsUsed, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Tier = models.Tier(tier)
	sub.Status = models.SubscriptionStatus(status)
	return &sub, nil
}

// GetLiveSubscription возвращает не истёкшую подписку пользователя или models.ErrNotFound.
func (s *Storage) GetLiveSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.GetLiveSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE user_id = $1 AND status <> 'EXPIRED'`, userID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return sub, nil
}

// InsertSubscription сохраняет новую подписку. Вторая «живая» подписка пользователя
// отклоняется уникальным индексом как models.ErrConflict.
func (s *Storage) InsertSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.InsertSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_id, tier, status, period_start, period_end,
		     credits_per_period, readings_used)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.UserID, sub.PlanID, string(sub.Tier), string(sub.Status),
		sub.PeriodStart, sub.PeriodEnd, sub.CreditsPerPeriod, sub.ReadingsUsed)
	return wrap(op, err)
}

// UpdateSubscription перезаписывает изменяемые поля подписки.
func (s *Storage) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.UpdateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE subscriptions
		 SET plan_id = $1, tier = $2, status = $3, period_start = $4, period_end = $5,
		     credits_per_period = $6, readings_used = $7, updated_at = NOW()
		 WHERE id = $8`,
		sub.PlanID, string(sub.Tier), string(sub.Status), sub.PeriodStart, sub.PeriodEnd,
		sub.CreditsPerPeriod, sub.ReadingsUsed, sub.ID)
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return wrap(op, models.ErrNotFound)
	}
	return nil
}

// IncrementReadingsUsed увеличивает счётчик прочтений периода.
func (s *Storage) IncrementReadingsUsed(ctx context.Context, subscriptionID string) error {
	const op = "storage.IncrementReadingsUsed"
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE subscriptions SET readings_used = readings_used + 1, updated_at = NOW() WHERE id = $1`,
		subscriptionID)
	return wrap(op, err)
}

// ListDueSubscriptions возвращает «живые» подписки, период которых закончился к моменту now.
func (s *Storage) ListDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error) {
	const op = "storage.ListDueSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE status <> 'EXPIRED' AND period_end <= $1
		 ORDER BY period_end
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// ExpireSubscription переводит подписку в EXPIRED, если она ещё «живая» и её период истёк.
// Возвращает false, если подписку уже продлили или закрыли.
func (s *Storage) ExpireSubscription(ctx context.Context, id string, now time.Time) (bool, error) {
	const op = "storage.ExpireSubscription"
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE subscriptions SET status = 'EXPIRED', updated_at = NOW()
		 WHERE id = $1 AND status <> 'EXPIRED' AND period_end <= $2`, id, now)
	if err != nil {
		return false, wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(op, err)
	}
	return n == 1, nil
}

// GetPlan возвращает тарифный план из каталога.
func (s *Storage) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	const op = "storage.GetPlan"
	var (
		p    models.Plan
		tier string
	)
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, tier, period_days, credits_per_period, price_cents FROM plans WHERE id = $1`, id).
		Scan(&p.ID, &tier, &p.PeriodDays, &p.CreditsPerPeriod, &p.PriceCents)
	if err != nil {
		return nil, wrap(op, err)
	}
	p.Tier = models.Tier(tier)
	return &p, nil
}

// GetCreditPackage возвращает пакет кредитов из каталога.
func (s *Storage) GetCreditPackage(ctx context.Context, id string) (*models.CreditPackage, error) {
	const op = "storage.GetCreditPackage"
	var p models.CreditPackage
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, credits, price_cents FROM credit_packages WHERE id = $1`, id).
		Scan(&p.ID, &p.Credits, &p.PriceCents)
	if err != nil {
		return nil, wrap(op, err)
	}
	return &p, nil
}
