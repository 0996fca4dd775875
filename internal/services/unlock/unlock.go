// Package unlock реализует движок разблокировки секций прочтения.
// Секция переходит LOCKED → UNLOCKED ровно один раз; способ оплаты выбирается
// по UnlockMethod внутри одной транзакции после блокировки строки пользователя.
package unlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/metrics"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Repository определяет методы хранилища, нужные движку.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockUser(ctx context.Context, userID string) (*models.User, error)
	GetReading(ctx context.Context, id string) (*models.Reading, error)
	IsSectionUnlocked(ctx context.Context, readingID, sectionKey string) (bool, error)
	InsertSectionUnlock(ctx context.Context, u models.SectionUnlock) error
	ListUnlockedSections(ctx context.Context, readingID string) ([]string, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
}

// Subscriptions сообщает о действующей подписке пользователя.
type Subscriptions interface {
	Subscriber(ctx context.Context, userID string) (*models.Subscription, bool, error)
}

// Debiter списывает кредиты.
type Debiter interface {
	Debit(ctx context.Context, userID string, amount int64, reason models.Reason, reference string) (int64, error)
}

// ViewConsumer расходует один рекламный просмотр текущих UTC‑суток.
type ViewConsumer interface {
	ConsumeView(ctx context.Context, userID string) (int, error)
}

// Auditor записывает событие аудита в текущей транзакции.
type Auditor interface {
	Record(ctx context.Context, e models.AuditEntry) error
}

// UnlockService разблокирует секции прочтений.
type UnlockService struct {
	repo  Repository
	subs  Subscriptions
	debit Debiter
	views ViewConsumer
	audit Auditor
	cost  int64
	log   *slog.Logger
}

// New создаёт UnlockService. cost — цена разблокировки секции в кредитах.
func New(repo Repository, subs Subscriptions, debit Debiter, views ViewConsumer, audit Auditor,
	cost int64, log *slog.Logger) *UnlockService {
	return &UnlockService{
		repo:  repo,
		subs:  subs,
		debit: debit,
		views: views,
		audit: audit,
		cost:  cost,
		log:   log,
	}
}

// reference строит ссылку на секцию для леджера и аудита.
func reference(readingID, sectionKey string) string {
	return readingID + ":" + sectionKey
}

// loadOwned загружает прочтение и проверяет секцию, интерпретируемость и владельца.
func (s *UnlockService) loadOwned(ctx context.Context, readingID, sectionKey, userID string) (*models.Reading, error) {
	r, err := s.repo.GetReading(ctx, readingID)
	if err != nil {
		return nil, err
	}
	if !r.HasSection(sectionKey) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidSectionKey, sectionKey)
	}
	if !r.Interpretable {
		return nil, models.ErrNotInterpretable
	}
	if r.UserID != userID {
		return nil, models.ErrForbidden
	}
	return r, nil
}

// Unlock открывает секцию выбранным способом. Повторный вызов для уже открытой
// секции возвращает успех с нулевой стоимостью и ничего не меняет.
func (s *UnlockService) Unlock(ctx context.Context, req models.UnlockRequest) (models.UnlockResult, error) {
	const op = "services.unlock.Unlock"
	if m, err := models.ParseUnlockMethod(string(req.Method)); err == nil {
		req.Method = m
	}
	log := s.log.With(
		slog.String("op", op),
		sl.User(req.UserID),
		slog.String("reading_id", req.ReadingID),
		slog.String("section_key", req.SectionKey),
		slog.String("method", string(req.Method)),
	)

	res, err := s.unlock(ctx, req)
	label := string(req.Method)
	if errors.Is(err, models.ErrInvalidUnlockMethod) {
		label = "unknown"
	}
	metrics.Unlocks.WithLabelValues(label, metrics.Result(err)).Inc()
	if err != nil {
		log.Debug("unlock rejected", sl.Err(err))
		return models.UnlockResult{}, err
	}
	if res.AlreadyUnlocked {
		log.Debug("section already unlocked")
	} else {
		log.Info("section unlocked", slog.Int64("credits", res.CreditsCharged))
	}
	return res, nil
}

func (s *UnlockService) unlock(ctx context.Context, req models.UnlockRequest) (models.UnlockResult, error) {
	if _, err := models.ParseUnlockMethod(string(req.Method)); err != nil {
		return models.UnlockResult{}, err
	}
	if _, err := s.loadOwned(ctx, req.ReadingID, req.SectionKey, req.UserID); err != nil {
		return models.UnlockResult{}, err
	}

	already := models.UnlockResult{Success: true, AlreadyUnlocked: true}
	unlocked, err := s.repo.IsSectionUnlocked(ctx, req.ReadingID, req.SectionKey)
	if err != nil {
		return models.UnlockResult{}, err
	}
	if unlocked {
		return already, nil
	}

	var res models.UnlockResult
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.unlockTx(ctx, req)
		return err
	})
	if errors.Is(err, models.ErrConflict) {
		// Гонка с параллельной разблокировкой той же секции: транзакция откатилась,
		// списание отменено. Если секция открыта, считаем вызов идемпотентным.
		unlocked, checkErr := s.repo.IsSectionUnlocked(ctx, req.ReadingID, req.SectionKey)
		if checkErr != nil {
			return models.UnlockResult{}, checkErr
		}
		if unlocked {
			return already, nil
		}
		return models.UnlockResult{}, err
	}
	if err != nil {
		return models.UnlockResult{}, err
	}
	return res, nil
}

// unlockTx выполняется в транзакции. При вызове из внешней транзакции
// (оплата, рекламная награда) присоединяется к ней.
func (s *UnlockService) unlockTx(ctx context.Context, req models.UnlockRequest) (models.UnlockResult, error) {
	if _, err := s.repo.LockUser(ctx, req.UserID); err != nil {
		return models.UnlockResult{}, err
	}
	unlocked, err := s.repo.IsSectionUnlocked(ctx, req.ReadingID, req.SectionKey)
	if err != nil {
		return models.UnlockResult{}, err
	}
	if unlocked {
		return models.UnlockResult{Success: true, AlreadyUnlocked: true}, nil
	}

	record := models.SectionUnlock{
		ReadingID:  req.ReadingID,
		SectionKey: req.SectionKey,
		UserID:     req.UserID,
		Method:     req.Method,
	}
	ref := reference(req.ReadingID, req.SectionKey)

	switch req.Method {
	case models.UnlockSubscriberAuto:
		sub, full, err := s.subs.Subscriber(ctx, req.UserID)
		if err != nil {
			return models.UnlockResult{}, err
		}
		if sub == nil || !full {
			return models.UnlockResult{}, models.ErrNotSubscriber
		}
	case models.UnlockCredit:
		if s.cost > 0 {
			if _, err := s.debit.Debit(ctx, req.UserID, s.cost, models.ReasonSectionUnlock, ref); err != nil {
				return models.UnlockResult{}, err
			}
		}
		record.CreditsCharged = s.cost
	case models.UnlockAdReward:
		if !req.ViewConsumed {
			if _, err := s.views.ConsumeView(ctx, req.UserID); err != nil {
				return models.UnlockResult{}, err
			}
		}
	case models.UnlockCash:
		p, err := s.confirmedPayment(ctx, req)
		if err != nil {
			return models.UnlockResult{}, err
		}
		record.PaymentID = &p.ID
		record.CashAmountCents = p.AmountCents
	default:
		return models.UnlockResult{}, models.ErrInvalidUnlockMethod
	}

	if err := s.repo.InsertSectionUnlock(ctx, record); err != nil {
		return models.UnlockResult{}, err
	}
	if err := s.audit.Record(ctx, models.AuditEntry{
		ActorID:  req.UserID,
		Action:   models.ActionSectionUnlock,
		TargetID: ref,
		Delta:    -record.CreditsCharged,
		Reason:   models.ReasonSectionUnlock,
	}); err != nil {
		return models.UnlockResult{}, err
	}
	if req.Method == models.UnlockCash {
		// Выручка учитывается отдельным событием: сумма в центах, не в кредитах.
		if err := s.audit.Record(ctx, models.AuditEntry{
			ActorID:  req.UserID,
			Action:   models.ActionSectionUnlockCash,
			TargetID: *record.PaymentID,
			Delta:    record.CashAmountCents,
			Reason:   models.ReasonSectionUnlock,
		}); err != nil {
			return models.UnlockResult{}, err
		}
		s.log.Info("cash unlock recorded",
			sl.User(req.UserID),
			slog.String("payment_id", *record.PaymentID),
			slog.Int64("amount_cents", record.CashAmountCents))
	}

	return models.UnlockResult{Success: true, CreditsCharged: record.CreditsCharged}, nil
}

// confirmedPayment проверяет, что платёж подтверждён, принадлежит пользователю
// и оплачивает именно эту секцию.
func (s *UnlockService) confirmedPayment(ctx context.Context, req models.UnlockRequest) (*models.Payment, error) {
	if req.PaymentID == "" {
		return nil, models.ErrPaymentNotConfirmed
	}
	p, err := s.repo.GetPayment(ctx, req.PaymentID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrPaymentNotConfirmed
	}
	if err != nil {
		return nil, err
	}
	if p.UserID != req.UserID || p.Kind != models.PaymentSectionUnlock {
		return nil, models.ErrPaymentNotConfirmed
	}
	if (p.ReadingID != "" && p.ReadingID != req.ReadingID) ||
		(p.SectionKey != "" && p.SectionKey != req.SectionKey) {
		return nil, models.ErrPaymentNotConfirmed
	}
	return p, nil
}

// IsUnlocked сообщает, видна ли пользователю полная версия секции.
// Подписчик уровня с полным доступом видит все секции своих прочтений
// без записей о разблокировке.
func (s *UnlockService) IsUnlocked(ctx context.Context, readingID, sectionKey, userID string) (bool, error) {
	r, err := s.repo.GetReading(ctx, readingID)
	if err != nil {
		return false, err
	}
	if !r.HasSection(sectionKey) {
		return false, fmt.Errorf("%w: %q", models.ErrInvalidSectionKey, sectionKey)
	}
	if r.UserID != userID {
		return false, models.ErrForbidden
	}
	_, full, err := s.subs.Subscriber(ctx, userID)
	if err != nil {
		return false, err
	}
	if full {
		return true, nil
	}
	return s.repo.IsSectionUnlocked(ctx, readingID, sectionKey)
}

// UnlockedSections возвращает открытые секции прочтения в порядке ключей.
func (s *UnlockService) UnlockedSections(ctx context.Context, readingID, userID string) (models.UnlockedSections, error) {
	r, err := s.repo.GetReading(ctx, readingID)
	if err != nil {
		return models.UnlockedSections{}, err
	}
	if r.UserID != userID {
		return models.UnlockedSections{}, models.ErrForbidden
	}
	_, full, err := s.subs.Subscriber(ctx, userID)
	if err != nil {
		return models.UnlockedSections{}, err
	}
	if full {
		keys := make([]string, 0, len(r.Sections))
		for k := range r.Sections {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return models.UnlockedSections{Sections: keys, IsSubscriber: true}, nil
	}

	keys, err := s.repo.ListUnlockedSections(ctx, readingID)
	if err != nil {
		return models.UnlockedSections{}, err
	}
	if keys == nil {
		keys = []string{}
	}
	return models.UnlockedSections{Sections: keys}, nil
}
