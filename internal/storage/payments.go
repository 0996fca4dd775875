package storage

import (
	"context"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// InsertPayment сохраняет подтверждённый платёж. Повтор того же payment_id
// возвращает models.ErrConflict: так повторная доставка вебхука становится no-op.
func (s *Storage) InsertPayment(ctx context.Context, p models.Payment) error {
	const op = "storage.InsertPayment"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO payments (id, user_id, kind, amount_cents, package_or_plan_id,
		     reading_id, section_key, promo_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, string(p.Kind), p.AmountCents, p.PackageOrPlanID,
		p.ReadingID, p.SectionKey, p.PromoCode)
	return wrap(op, err)
}

// GetPayment возвращает платёж по идентификатору провайдера или models.ErrNotFound.
func (s *Storage) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	const op = "storage.GetPayment"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var (
		p    models.Payment
		kind string
	)
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, user_id, kind, amount_cents, package_or_plan_id, reading_id, section_key,
		     promo_code, created_at
		 FROM payments WHERE id = $1`, id).
		Scan(&p.ID, &p.UserID, &kind, &p.AmountCents, &p.PackageOrPlanID, &p.ReadingID,
			&p.SectionKey, &p.PromoCode, &p.CreatedAt)
	if err != nil {
		return nil, wrap(op, err)
	}
	p.Kind = models.PaymentKind(kind)
	return &p, nil
}
