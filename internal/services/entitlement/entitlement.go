// Package entitlement решает, чем оплачивается прочтение: бесплатной пробой,
// лимитом подписки или кредитами, и ведёт одноразовую бесплатную пробу.
package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Repository определяет методы хранилища, нужные резолверу.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockUser(ctx context.Context, userID string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	MarkFreeTrialUsed(ctx context.Context, userID string, at time.Time) (bool, error)
	BindFreeTrialReading(ctx context.Context, userID, readingID string) (bool, error)
	GetLiveSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	IncrementReadingsUsed(ctx context.Context, subscriptionID string) error
}

// Pricing возвращает цену типа прочтения.
type Pricing interface {
	Price(ctx context.Context, readingType string) (*models.ReadingPrice, error)
}

// Debiter списывает кредиты.
type Debiter interface {
	Debit(ctx context.Context, userID string, amount int64, reason models.Reason, reference string) (int64, error)
}

// Auditor записывает событие аудита в текущей транзакции.
type Auditor interface {
	Record(ctx context.Context, e models.AuditEntry) error
}

// EntitlementService решает, чем оплачивается доступ к прочтению.
type EntitlementService struct {
	repo    Repository
	pricing Pricing
	ledger  Debiter
	audit   Auditor
	tiers   map[models.Tier]models.TierPolicy
	now     func() time.Time
	log     *slog.Logger
}

// New создаёт EntitlementService. tiers — политики уровней подписки из конфига.
func New(repo Repository, pricing Pricing, ledger Debiter, audit Auditor,
	tiers map[models.Tier]models.TierPolicy, log *slog.Logger) *EntitlementService {
	return &EntitlementService{
		repo:    repo,
		pricing: pricing,
		ledger:  ledger,
		audit:   audit,
		tiers:   tiers,
		now:     time.Now,
		log:     log,
	}
}

// Policy возвращает политику уровня. Уровень без политики ничего не даёт.
func (s *EntitlementService) Policy(tier models.Tier) models.TierPolicy {
	return s.tiers[tier]
}

// Subscriber возвращает действующую подписку пользователя (nil, если её нет)
// и признак полного доступа к секциям по её уровню.
func (s *EntitlementService) Subscriber(ctx context.Context, userID string) (*models.Subscription, bool, error) {
	sub, err := s.repo.GetLiveSubscription(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !sub.IsEntitled(s.now()) {
		return nil, false, nil
	}
	return sub, s.Policy(sub.Tier).FullSectionAccess, nil
}

// FreeTrialAvailable сообщает, есть ли у пользователя бесплатное прочтение:
// проба ещё не выдана или выдана, но не потрачена на прочтение.
func (s *EntitlementService) FreeTrialAvailable(ctx context.Context, userID string) (bool, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return !u.FreeTrialUsed || u.FreeTrialPending(), nil
}

// ConsumeFreeTrial выдаёт бесплатное прочтение. Ровно один вызов за жизнь
// пользователя возвращает true, остальные — false без ошибки. Выданная проба
// оплачивает следующее прочтение пользователя.
func (s *EntitlementService) ConsumeFreeTrial(ctx context.Context, userID string) (bool, error) {
	var granted bool
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		granted, err = s.consumeFreeTrial(ctx, userID, "")
		return err
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

// consumeFreeTrial работает внутри транзакции после блокировки пользователя.
func (s *EntitlementService) consumeFreeTrial(ctx context.Context, userID, target string) (bool, error) {
	u, err := s.repo.LockUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if u.FreeTrialUsed {
		return false, nil
	}
	ok, err := s.repo.MarkFreeTrialUsed(ctx, userID, s.now().UTC())
	if err != nil || !ok {
		return false, err
	}
	if err := s.audit.Record(ctx, models.AuditEntry{
		ActorID:  userID,
		Action:   models.ActionFreeTrialGrant,
		TargetID: target,
		Reason:   models.ReasonFreeTrial,
	}); err != nil {
		return false, err
	}
	s.log.Info("free trial consumed", sl.User(userID))
	return true, nil
}

// redeemFreeTrial привязывает пробу к прочтению readingID, при необходимости
// сначала выдавая её. Пользователь u уже заблокирован.
func (s *EntitlementService) redeemFreeTrial(ctx context.Context, u *models.User, readingID string) (bool, error) {
	if !u.FreeTrialUsed {
		granted, err := s.consumeFreeTrial(ctx, u.ID, readingID)
		if err != nil || !granted {
			return false, err
		}
	}
	bound, err := s.repo.BindFreeTrialReading(ctx, u.ID, readingID)
	if err != nil {
		return false, err
	}
	if bound {
		s.log.Info("free trial redeemed", sl.User(u.ID), slog.String("reading_id", readingID))
	}
	return bound, nil
}

// coveredBySubscription сообщает, покрывает ли подписка ещё одно прочтение.
func (s *EntitlementService) coveredBySubscription(sub *models.Subscription) bool {
	if !sub.IsEntitled(s.now()) {
		return false
	}
	policy := s.Policy(sub.Tier)
	return policy.Unlimited() || sub.ReadingsUsed < policy.ReadingsPerPeriod
}

// ResolveReadingCost возвращает стоимость прочтения для пользователя без списания
// и без учёта бесплатной пробы.
func (s *EntitlementService) ResolveReadingCost(ctx context.Context, userID, readingType string) (models.ReadingCharge, error) {
	price, err := s.pricing.Price(ctx, readingType)
	if err != nil {
		return models.ReadingCharge{}, err
	}

	sub, err := s.repo.GetLiveSubscription(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return models.ReadingCharge{}, err
	}
	if sub != nil && s.coveredBySubscription(sub) {
		return models.ReadingCharge{Credits: 0, Source: models.ChargeSubscription}, nil
	}
	return models.ReadingCharge{Credits: price.Cost, Source: models.ChargeCredits}, nil
}

// ChargeReading оплачивает прочтение readingID в транзакции вызывающего:
// сначала бесплатная проба (уже выданная или запрошенная и доступная), затем
// лимит подписки, затем списание кредитов с причиной READING_PURCHASE.
func (s *EntitlementService) ChargeReading(ctx context.Context, userID, readingType, readingID string,
	useFreeTrial bool) (models.ReadingCharge, error) {
	var charge models.ReadingCharge
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		// Цена проверяется первой: неизвестный тип не должен сжечь пробу.
		price, err := s.pricing.Price(ctx, readingType)
		if err != nil {
			return err
		}

		u, err := s.repo.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		if u.FreeTrialPending() || (useFreeTrial && !u.FreeTrialUsed) {
			granted, err := s.redeemFreeTrial(ctx, u, readingID)
			if err != nil {
				return err
			}
			if granted {
				charge = models.ReadingCharge{Credits: 0, Source: models.ChargeFreeTrial}
				return nil
			}
		}

		sub, err := s.repo.GetLiveSubscription(ctx, userID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if sub != nil && s.coveredBySubscription(sub) {
			if err := s.repo.IncrementReadingsUsed(ctx, sub.ID); err != nil {
				return err
			}
			charge = models.ReadingCharge{Credits: 0, Source: models.ChargeSubscription}
			return nil
		}

		if price.Cost > 0 {
			if _, err := s.ledger.Debit(ctx, userID, price.Cost, models.ReasonReadingPurchase, readingID); err != nil {
				return err
			}
		}
		charge = models.ReadingCharge{Credits: price.Cost, Source: models.ChargeCredits}
		return nil
	})
	if err != nil {
		return models.ReadingCharge{}, err
	}
	return charge, nil
}
