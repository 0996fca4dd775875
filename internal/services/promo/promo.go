// Package promo проверяет и погашает промокоды.
package promo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/metrics"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Repository определяет методы хранилища промокодов.
type Repository interface {
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	RedeemPromoCode(ctx context.Context, code string, now time.Time) (*models.PromoCode, error)
}

// PromoService проверяет и погашает промокоды.
type PromoService struct {
	repo Repository
	now  func() time.Time
	log  *slog.Logger
}

// New создаёт PromoService.
func New(repo Repository, log *slog.Logger) *PromoService {
	return &PromoService{repo: repo, now: time.Now, log: log}
}

// Validate проверяет код без изменения состояния. Неизвестный код недействителен,
// это не ошибка.
func (s *PromoService) Validate(ctx context.Context, code string) (models.PromoValidation, error) {
	p, err := s.repo.GetPromoCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return models.PromoValidation{Valid: false}, nil
	}
	if err != nil {
		return models.PromoValidation{}, err
	}
	remaining := p.MaxUses - p.CurrentUses
	if remaining < 0 {
		remaining = 0
	}
	return models.PromoValidation{
		Valid:         p.UsableAt(s.now()),
		DiscountType:  p.DiscountType,
		DiscountValue: p.DiscountValue,
		RemainingUses: remaining,
	}, nil
}

// Redeem погашает код одним условным UPDATE: параллельные погашения
// не превышают max_uses.
func (s *PromoService) Redeem(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "services.promo.Redeem"
	log := s.log.With(slog.String("op", op), slog.String("code", strings.ToUpper(strings.TrimSpace(code))))

	p, err := s.redeem(ctx, code)
	metrics.PromoRedemptions.WithLabelValues(redeemResult(err)).Inc()
	if err != nil {
		log.Debug("promo code not redeemed", sl.Err(err))
		return nil, err
	}
	log.Info("promo code redeemed", slog.Int("uses", p.CurrentUses), slog.Int("max_uses", p.MaxUses))
	return p, nil
}

func (s *PromoService) redeem(ctx context.Context, code string) (*models.PromoCode, error) {
	now := s.now()
	p, err := s.repo.RedeemPromoCode(ctx, code, now)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// Условие не выполнено: уточняем причину.
	cur, err := s.repo.GetPromoCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !cur.IsActive || now.Before(cur.ValidFrom) || now.After(cur.ValidUntil) {
		return nil, models.ErrPromoInvalid
	}
	if cur.CurrentUses >= cur.MaxUses {
		return nil, &models.PromoExhaustedError{Code: cur.Code, MaxUses: cur.MaxUses}
	}
	return nil, fmt.Errorf("%w: redeem guard failed", models.ErrPromoInvalid)
}

func redeemResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrPromoExhausted):
		return "exhausted"
	case errors.Is(err, models.ErrPromoInvalid), errors.Is(err, models.ErrNotFound):
		return "invalid"
	default:
		return "error"
	}
}

// Quote считает сумму к оплате с учётом кода. Неизвестный или недействующий код
// не даёт скидки и не считается ошибкой.
func (s *PromoService) Quote(ctx context.Context, amountCents int64, code string) (models.Quote, error) {
	if amountCents <= 0 {
		return models.Quote{}, fmt.Errorf("%w: amount must be positive, got %d", models.ErrInvalidAmount, amountCents)
	}
	q := models.Quote{OriginalCents: amountCents, FinalCents: amountCents}
	code = strings.TrimSpace(code)
	if code == "" {
		return q, nil
	}
	q.PromoCode = strings.ToUpper(code)

	p, err := s.repo.GetPromoCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return q, nil
	}
	if err != nil {
		return models.Quote{}, err
	}
	if !p.UsableAt(s.now()) {
		return q, nil
	}

	q.DiscountCents = p.Discount(amountCents)
	q.FinalCents = amountCents - q.DiscountCents
	q.PromoApplied = true
	return q, nil
}
