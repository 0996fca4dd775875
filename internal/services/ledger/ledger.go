// Package ledger ведёт баланс кредитов пользователя как журнал знаковых изменений
// с материализованным балансом, который обновляется в той же транзакции.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/metrics"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Repository определяет методы хранилища, нужные леджеру.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockUser(ctx context.Context, userID string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SetCreditBalance(ctx context.Context, userID string, balance int64) error
	InsertLedgerEntry(ctx context.Context, e models.LedgerEntry) (int64, error)
	ListLedgerEntries(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)
}

// Auditor записывает событие аудита в текущей транзакции.
type Auditor interface {
	Record(ctx context.Context, e models.AuditEntry) error
}

// LedgerService владеет балансом кредитов: других путей изменения баланса нет.
type LedgerService struct {
	repo  Repository
	audit Auditor
	log   *slog.Logger
}

// New создаёт LedgerService.
func New(repo Repository, audit Auditor, log *slog.Logger) *LedgerService {
	return &LedgerService{
		repo:  repo,
		audit: audit,
		log:   log,
	}
}

// Balance возвращает текущий баланс. Неизвестный пользователь имеет баланс 0.
func (s *LedgerService) Balance(ctx context.Context, userID string) (int64, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.CreditBalance, nil
}

// Debit списывает amount > 0 кредитов. При нехватке возвращает
// *models.InsufficientCreditsError и ничего не меняет.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount int64, reason models.Reason, reference string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive, got %d", models.ErrInvalidAmount, amount)
	}
	return s.apply(ctx, userID, userID, -amount, reason, reference, models.ActionCreditDebit)
}

// Credit начисляет amount >= 0 кредитов. Нулевое начисление не пишет строку леджера.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64, reason models.Reason, reference string) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: credit amount must be non-negative, got %d", models.ErrInvalidAmount, amount)
	}
	return s.apply(ctx, userID, userID, amount, reason, reference, models.ActionCreditCredit)
}

// Adjust — ручная корректировка администратором. Единственный путь,
// где допускается отрицательная дельта; баланс всё равно не уходит ниже нуля.
func (s *LedgerService) Adjust(ctx context.Context, adminID, userID string, delta int64, note string) (int64, error) {
	if delta == 0 {
		return 0, fmt.Errorf("%w: adjustment delta must be non-zero", models.ErrInvalidAmount)
	}
	return s.apply(ctx, adminID, userID, delta, models.ReasonAdminAdjustment, note, models.ActionCreditAdjust)
}

// History возвращает строки леджера пользователя, новые первыми.
func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListLedgerEntries(ctx, userID, limit)
}

func (s *LedgerService) apply(ctx context.Context, actorID, userID string, delta int64, reason models.Reason,
	reference, action string) (int64, error) {
	var balance int64
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.repo.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		balance = u.CreditBalance
		if delta == 0 {
			return nil
		}

		next := u.CreditBalance + delta
		if next < 0 {
			return &models.InsufficientCreditsError{Balance: u.CreditBalance, Required: -delta}
		}

		if _, err := s.repo.InsertLedgerEntry(ctx, models.LedgerEntry{
			UserID:       userID,
			Delta:        delta,
			Reason:       reason,
			Reference:    reference,
			BalanceAfter: next,
		}); err != nil {
			return err
		}
		if err := s.repo.SetCreditBalance(ctx, userID, next); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, models.AuditEntry{
			ActorID:  actorID,
			Action:   action,
			TargetID: userID,
			Delta:    delta,
			Reason:   reason,
		}); err != nil {
			return err
		}
		balance = next
		return nil
	})
	if err != nil {
		s.log.Debug("ledger mutation rejected",
			sl.User(userID),
			slog.Int64("delta", delta),
			slog.String("reason", string(reason)),
			sl.Err(err))
		return 0, err
	}

	if delta != 0 {
		metrics.LedgerMutations.WithLabelValues(string(reason)).Inc()
		s.log.Info("credit balance changed",
			sl.User(userID),
			slog.Int64("delta", delta),
			slog.String("reason", string(reason)),
			slog.Int64("balance", balance))
	}
	return balance, nil
}
