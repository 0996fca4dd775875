package adreward

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/utcday"
	"github.com/magabrotheeeer/reading-entitlements/internal/metrics"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

const claimScope = "ad_claim"

// Repository определяет методы хранилища, нужные обработке заявок.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockUser(ctx context.Context, userID string) (*models.User, error)
	InsertAdClaim(ctx context.Context, c models.AdClaim) error
}

// Views описывает дневной счётчик просмотров.
type Views interface {
	Status(ctx context.Context, userID string) (models.AdStatus, error)
	ConsumeView(ctx context.Context, userID string) (int, error)
}

// Crediter начисляет кредиты.
type Crediter interface {
	Credit(ctx context.Context, userID string, amount int64, reason models.Reason, reference string) (int64, error)
}

// Unlocker открывает секцию прочтения.
type Unlocker interface {
	Unlock(ctx context.Context, req models.UnlockRequest) (models.UnlockResult, error)
}

// Auditor записывает событие аудита в текущей транзакции.
type Auditor interface {
	Record(ctx context.Context, e models.AuditEntry) error
}

// Limiter ограничивает частоту заявок одного пользователя.
type Limiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (bool, int, error)
}

// AdRewardService выдаёт награды за просмотр рекламы.
type AdRewardService struct {
	repo         Repository
	views        Views
	ledger       Crediter
	unlock       Unlocker
	audit        Auditor
	limiter      Limiter
	creditsPerAd int64
	minInterval  time.Duration
	now          func() time.Time
	log          *slog.Logger
}

// Options задаёт параметры наград.
type Options struct {
	CreditsPerView int64
	MinInterval    time.Duration // 0 отключает ограничение частоты
}

// New создаёт AdRewardService. limiter может быть nil.
func New(repo Repository, views Views, ledger Crediter, unlock Unlocker, audit Auditor,
	limiter Limiter, opts Options, log *slog.Logger) *AdRewardService {
	return &AdRewardService{
		repo:         repo,
		views:        views,
		ledger:       ledger,
		unlock:       unlock,
		audit:        audit,
		limiter:      limiter,
		creditsPerAd: opts.CreditsPerView,
		minInterval:  opts.MinInterval,
		now:          time.Now,
		log:          log,
	}
}

// Status возвращает состояние дневного лимита.
func (s *AdRewardService) Status(ctx context.Context, userID string) (models.AdStatus, error) {
	return s.views.Status(ctx, userID)
}

// Claim выдаёт награду за просмотр. Все изменения делаются в одной транзакции:
// ошибка выдачи откатывает и увеличение счётчика.
func (s *AdRewardService) Claim(ctx context.Context, userID, rewardType string, cc models.ClaimContext) (models.ClaimResult, error) {
	const op = "services.adreward.Claim"
	log := s.log.With(slog.String("op", op), sl.User(userID), slog.String("reward_type", rewardType))

	res, rt, err := s.claim(ctx, userID, rewardType, cc)
	label := string(rt)
	if label == "" {
		label = "unknown"
	}
	metrics.AdClaims.WithLabelValues(label, metrics.Result(err)).Inc()
	if err != nil {
		log.Debug("ad claim rejected", sl.Err(err))
		return models.ClaimResult{}, err
	}
	log.Info("ad reward granted",
		slog.Int64("credits", res.CreditsGranted),
		slog.Int("remaining", res.RemainingDailyViews))
	return res, nil
}

func (s *AdRewardService) claim(ctx context.Context, userID, rewardType string,
	cc models.ClaimContext) (models.ClaimResult, models.RewardType, error) {
	status, err := s.views.Status(ctx, userID)
	if err != nil {
		return models.ClaimResult{}, "", err
	}
	if status.RemainingDailyViews <= 0 {
		return models.ClaimResult{}, "", &models.DailyLimitError{Limit: status.MaxDailyViews, Used: status.ViewsUsedToday}
	}

	rt, err := models.ParseRewardType(rewardType)
	if err != nil {
		return models.ClaimResult{}, "", err
	}
	if rt == models.RewardSectionUnlock && (cc.ReadingID == "" || cc.SectionKey == "") {
		return models.ClaimResult{}, rt, fmt.Errorf("%w: reading_id and section_key are required", models.ErrMissingContext)
	}

	if err := s.throttle(ctx, userID); err != nil {
		return models.ClaimResult{}, rt, err
	}

	var granted int64
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockUser(ctx, userID); err != nil {
			return err
		}

		// Каждая заявка расходует ровно один просмотр, даже если секция уже открыта.
		if _, err := s.views.ConsumeView(ctx, userID); err != nil {
			return err
		}

		switch rt {
		case models.RewardCredit:
			if _, err := s.ledger.Credit(ctx, userID, s.creditsPerAd, models.ReasonAdReward, cc.AdPlacementID); err != nil {
				return err
			}
			granted = s.creditsPerAd
		case models.RewardDailyHoroscope:
		case models.RewardSectionUnlock:
			if _, err := s.unlock.Unlock(ctx, models.UnlockRequest{
				ReadingID:    cc.ReadingID,
				SectionKey:   cc.SectionKey,
				UserID:       userID,
				Method:       models.UnlockAdReward,
				ViewConsumed: true,
			}); err != nil {
				return err
			}
		}

		if err := s.repo.InsertAdClaim(ctx, models.AdClaim{
			UserID:         userID,
			Day:            utcday.Start(s.now()),
			RewardType:     rt,
			ReadingID:      cc.ReadingID,
			SectionKey:     cc.SectionKey,
			AdPlacementID:  cc.AdPlacementID,
			CreditsGranted: granted,
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			ActorID:  userID,
			Action:   models.ActionAdClaim,
			TargetID: cc.AdPlacementID,
			Delta:    granted,
			Reason:   models.ReasonAdReward,
		})
	})
	if err != nil {
		return models.ClaimResult{}, rt, err
	}

	after, err := s.views.Status(ctx, userID)
	if err != nil {
		return models.ClaimResult{}, rt, err
	}
	return models.ClaimResult{
		Success:             true,
		CreditsGranted:      granted,
		RemainingDailyViews: after.RemainingDailyViews,
	}, rt, nil
}

// throttle отклоняет заявки чаще minInterval. Недоступный Redis не блокирует награды.
func (s *AdRewardService) throttle(ctx context.Context, userID string) error {
	if s.limiter == nil || s.minInterval <= 0 {
		return nil
	}
	allowed, retryAfter, err := s.limiter.Allow(ctx, claimScope, userID, 1, s.minInterval)
	if err != nil {
		s.log.Warn("ad claim limiter unavailable", sl.User(userID), sl.Err(err))
		return nil
	}
	if !allowed {
		return &models.TooManyClaimsError{RetryAfterSeconds: retryAfter}
	}
	return nil
}
