// Package subscription ведёт жизненный цикл подписки: активацию и продление
// после оплаты, отмену до конца периода и истечение по расписанию.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/utcday"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Repository определяет методы хранилища подписок.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockUser(ctx context.Context, userID string) (*models.User, error)
	GetLiveSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	InsertSubscription(ctx context.Context, sub *models.Subscription) error
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	ListDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error)
	ExpireSubscription(ctx context.Context, id string, now time.Time) (bool, error)
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
	SetSubscriptionTier(ctx context.Context, userID string, tier models.Tier) error
}

// Crediter начисляет кредиты.
type Crediter interface {
	Credit(ctx context.Context, userID string, amount int64, reason models.Reason, reference string) (int64, error)
}

// Auditor записывает событие аудита в текущей транзакции.
type Auditor interface {
	Record(ctx context.Context, e models.AuditEntry) error
}

// SubscriptionService управляет подписками пользователей.
type SubscriptionService struct {
	repo   Repository
	ledger Crediter
	audit  Auditor
	now    func() time.Time
	log    *slog.Logger
}

// New создаёт SubscriptionService.
func New(repo Repository, ledger Crediter, audit Auditor, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:   repo,
		ledger: ledger,
		audit:  audit,
		now:    time.Now,
		log:    log,
	}
}

// Current возвращает «живую» подписку пользователя или models.ErrNotFound.
func (s *SubscriptionService) Current(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.repo.GetLiveSubscription(ctx, userID)
}

// Activate применяет оплату плана planID: создаёт подписку или продлевает
// действующую. Новый период отсчитывается от более позднего из now и конца
// текущего периода, лимит прочтений обнуляется, кредиты периода начисляются.
func (s *SubscriptionService) Activate(ctx context.Context, userID, planID, paymentID string) (*models.Subscription, error) {
	const op = "services.subscription.Activate"
	log := s.log.With(slog.String("op", op), sl.User(userID), slog.String("plan_id", planID))

	var result *models.Subscription
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockUser(ctx, userID); err != nil {
			return err
		}
		plan, err := s.repo.GetPlan(ctx, planID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		live, err := s.repo.GetLiveSubscription(ctx, userID)
		switch {
		case err == nil:
			live.PlanID = plan.ID
			live.Tier = plan.Tier
			live.Status = models.SubscriptionActive
			live.PeriodStart = now
			live.PeriodEnd = utcday.PeriodEnd(now, live.PeriodEnd, plan.PeriodDays)
			live.CreditsPerPeriod = plan.CreditsPerPeriod
			live.ReadingsUsed = 0
			if err := s.repo.UpdateSubscription(ctx, live); err != nil {
				return err
			}
			result = live
		case errors.Is(err, models.ErrNotFound):
			sub := &models.Subscription{
				ID:               uuid.NewString(),
				UserID:           userID,
				PlanID:           plan.ID,
				Tier:             plan.Tier,
				Status:           models.SubscriptionActive,
				PeriodStart:      now,
				PeriodEnd:        utcday.PeriodEnd(now, time.Time{}, plan.PeriodDays),
				CreditsPerPeriod: plan.CreditsPerPeriod,
			}
			if err := s.repo.InsertSubscription(ctx, sub); err != nil {
				return err
			}
			result = sub
		default:
			return err
		}

		if err := s.repo.SetSubscriptionTier(ctx, userID, plan.Tier); err != nil {
			return err
		}
		if plan.CreditsPerPeriod > 0 {
			if _, err := s.ledger.Credit(ctx, userID, plan.CreditsPerPeriod, models.ReasonSubscriptionGrant, paymentID); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, models.AuditEntry{
			ActorID:  userID,
			Action:   models.ActionSubscriptionActivate,
			TargetID: result.ID,
			Delta:    plan.CreditsPerPeriod,
			Reason:   models.ReasonSubscriptionGrant,
		})
	})
	if err != nil {
		log.Error("failed to activate subscription", sl.Err(err))
		return nil, err
	}

	log.Info("subscription activated",
		slog.String("subscription_id", result.ID),
		slog.String("tier", string(result.Tier)),
		slog.Time("period_end", result.PeriodEnd))
	return result, nil
}

// Cancel отменяет продление. Подписка действует до конца оплаченного периода.
// Повторная отмена возвращает ту же подписку.
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) (*models.Subscription, error) {
	var result *models.Subscription
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockUser(ctx, userID); err != nil {
			return err
		}
		sub, err := s.repo.GetLiveSubscription(ctx, userID)
		if err != nil {
			return err
		}
		result = sub
		if sub.Status == models.SubscriptionCanceledPending {
			return nil
		}
		sub.Status = models.SubscriptionCanceledPending
		if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			ActorID:  userID,
			Action:   models.ActionSubscriptionCancel,
			TargetID: sub.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("subscription canceled", sl.User(userID), slog.Time("period_end", result.PeriodEnd))
	return result, nil
}

// ExpireDue закрывает до batch подписок с истёкшим периодом и возвращает
// пользователям уровень FREE. Каждая подписка закрывается в своей транзакции.
func (s *SubscriptionService) ExpireDue(ctx context.Context, batch int) (int, error) {
	const op = "services.subscription.ExpireDue"
	now := s.now().UTC()

	due, err := s.repo.ListDueSubscriptions(ctx, now, batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		var done bool
		err := s.repo.WithTx(ctx, func(ctx context.Context) error {
			if _, err := s.repo.LockUser(ctx, sub.UserID); err != nil {
				return err
			}
			ok, err := s.repo.ExpireSubscription(ctx, sub.ID, now)
			if err != nil || !ok {
				return err
			}
			if err := s.repo.SetSubscriptionTier(ctx, sub.UserID, models.TierFree); err != nil {
				return err
			}
			done = true
			return s.audit.Record(ctx, models.AuditEntry{
				ActorID:  "system",
				Action:   models.ActionSubscriptionExpire,
				TargetID: sub.ID,
			})
		})
		if err != nil {
			s.log.Error("failed to expire subscription",
				slog.String("op", op),
				slog.String("subscription_id", sub.ID),
				sl.Err(err))
			continue
		}
		if done {
			expired++
			s.log.Info("subscription expired", sl.User(sub.UserID), slog.String("subscription_id", sub.ID))
		}
	}
	return expired, nil
}
