package storage

import (
	"context"
	"strings"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

const promoColumns = `code, discount_type, discount_value, max_uses, current_uses, valid_from, valid_until, is_active`

func scanPromo(row interface{ Scan(...any) error }) (*models.PromoCode, error) {
	var (
		p  models.PromoCode
		dt string
	)
	if err := row.Scan(&p.Code, &dt, &p.DiscountValue, &p.MaxUses, &p.CurrentUses,
		&p.ValidFrom, &p.ValidUntil, &p.IsActive); err != nil {
		return nil, err
	}
	p.DiscountType = models.DiscountType(dt)
	return &p, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetPromoCode возвращает промокод или models.ErrNotFound. Регистр кода не важен.
func (s *Storage) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "storage.GetPromoCode"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanPromo(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, normalizeCode(code)))
	if err != nil {
		return nil, wrap(op, err)
	}
	return p, nil
}

// RedeemPromoCode атомарно увеличивает счётчик использований, если код активен,
// действует в момент now и ещё не исчерпан. Если условие не выполнено,
// возвращает models.ErrNotFound; причину вызывающий уточняет через GetPromoCode.
func (s *Storage) RedeemPromoCode(ctx context.Context, code string, now time.Time) (*models.PromoCode, error) {
	const op = "storage.RedeemPromoCode"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanPromo(s.q(ctx).QueryRowContext(ctx,
		`UPDATE promo_codes
		 SET current_uses = current_uses + 1
		 WHERE code = $1
		   AND is_active
		   AND current_uses < max_uses
		   AND valid_from <= $2 AND valid_until >= $2
		 RETURNING `+promoColumns, normalizeCode(code), now))
	if err != nil {
		return nil, wrap(op, err)
	}
	return p, nil
}
