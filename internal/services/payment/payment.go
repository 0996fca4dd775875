// Package payment применяет подтверждённые платежи провайдера: подписки,
// пакеты кредитов и оплату секций. Повторная доставка события ничего не меняет.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Repository определяет методы хранилища платежей.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InsertPayment(ctx context.Context, p models.Payment) error
	GetCreditPackage(ctx context.Context, id string) (*models.CreditPackage, error)
}

// Activator активирует или продлевает подписку.
type Activator interface {
	Activate(ctx context.Context, userID, planID, paymentID string) (*models.Subscription, error)
}

// Crediter начисляет кредиты.
type Crediter interface {
	Credit(ctx context.Context, userID string, amount int64, reason models.Reason, reference string) (int64, error)
}

// Unlocker открывает секцию прочтения.
type Unlocker interface {
	Unlock(ctx context.Context, req models.UnlockRequest) (models.UnlockResult, error)
}

// Redeemer погашает промокод.
type Redeemer interface {
	Redeem(ctx context.Context, code string) (*models.PromoCode, error)
}

// Auditor записывает событие аудита в текущей транзакции.
type Auditor interface {
	Record(ctx context.Context, e models.AuditEntry) error
}

// PaymentService применяет события оплаты.
type PaymentService struct {
	repo   Repository
	subs   Activator
	ledger Crediter
	unlock Unlocker
	promo  Redeemer
	audit  Auditor
	log    *slog.Logger
}

// New создаёт PaymentService.
func New(repo Repository, subs Activator, ledger Crediter, unlock Unlocker, promo Redeemer,
	audit Auditor, log *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:   repo,
		subs:   subs,
		ledger: ledger,
		unlock: unlock,
		promo:  promo,
		audit:  audit,
		log:    log,
	}
}

// Apply применяет событие оплаты в одной транзакции. Событие с уже известным
// payment_id считается повтором и возвращает Duplicate=true.
// Промокод погашается после фиксации: исчерпанный код не отменяет оплату.
func (s *PaymentService) Apply(ctx context.Context, ev models.PaymentEvent) (models.PaymentResult, error) {
	const op = "services.payment.Apply"
	log := s.log.With(
		slog.String("op", op),
		sl.User(ev.UserID),
		slog.String("payment_id", ev.PaymentID),
		slog.String("kind", string(ev.Kind)),
	)

	if err := validateEvent(ev); err != nil {
		return models.PaymentResult{}, err
	}

	var credits int64
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.InsertPayment(ctx, models.Payment{
			ID:              ev.PaymentID,
			UserID:          ev.UserID,
			Kind:            ev.Kind,
			AmountCents:     ev.AmountCents,
			PackageOrPlanID: ev.PackageOrPlanID,
			ReadingID:       ev.ReadingID,
			SectionKey:      ev.SectionKey,
			PromoCode:       ev.PromoCode,
		}); err != nil {
			return err
		}

		var err error
		credits, err = s.dispatch(ctx, ev)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			ActorID:  ev.UserID,
			Action:   models.ActionPaymentApply,
			TargetID: ev.PaymentID,
			Delta:    ev.AmountCents,
			Reason:   reasonFor(ev.Kind),
		})
	})
	if errors.Is(err, models.ErrConflict) {
		log.Info("payment already applied")
		return models.PaymentResult{Applied: true, Duplicate: true}, nil
	}
	if err != nil {
		log.Error("failed to apply payment", sl.Err(err))
		return models.PaymentResult{}, err
	}
	log.Info("payment applied", slog.Int64("amount_cents", ev.AmountCents), slog.Int64("credits", credits))

	if ev.PromoCode != "" && s.promo != nil {
		if _, err := s.promo.Redeem(ctx, ev.PromoCode); err != nil {
			log.Warn("promo code not redeemed for paid event",
				slog.String("code", ev.PromoCode),
				sl.Err(err))
		}
	}
	return models.PaymentResult{Applied: true, Credits: credits}, nil
}

func (s *PaymentService) dispatch(ctx context.Context, ev models.PaymentEvent) (int64, error) {
	switch ev.Kind {
	case models.PaymentSubscription:
		sub, err := s.subs.Activate(ctx, ev.UserID, ev.PackageOrPlanID, ev.PaymentID)
		if err != nil {
			return 0, err
		}
		return sub.CreditsPerPeriod, nil
	case models.PaymentCreditPackage:
		pkg, err := s.repo.GetCreditPackage(ctx, ev.PackageOrPlanID)
		if err != nil {
			return 0, err
		}
		if _, err := s.ledger.Credit(ctx, ev.UserID, pkg.Credits, models.ReasonPurchase, ev.PaymentID); err != nil {
			return 0, err
		}
		return pkg.Credits, nil
	case models.PaymentSectionUnlock:
		if _, err := s.unlock.Unlock(ctx, models.UnlockRequest{
			ReadingID:  ev.ReadingID,
			SectionKey: ev.SectionKey,
			UserID:     ev.UserID,
			Method:     models.UnlockCash,
			PaymentID:  ev.PaymentID,
		}); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: unknown payment kind %q", ErrInvalidEvent, ev.Kind)
}

func reasonFor(kind models.PaymentKind) models.Reason {
	switch kind {
	case models.PaymentSubscription:
		return models.ReasonSubscriptionGrant
	case models.PaymentSectionUnlock:
		return models.ReasonSectionUnlock
	default:
		return models.ReasonPurchase
	}
}
