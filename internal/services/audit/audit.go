// Package audit пишет неизменяемый журнал аудита и доставляет его события
// во внешний брокер через транзакционный outbox.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Repository определяет методы хранилища для журнала аудита.
type Repository interface {
	InsertAuditEntry(ctx context.Context, e *models.AuditEntry, payload func(*models.AuditEntry) ([]byte, error)) error
	ListAuditEntries(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error)
}

// AuditService записывает события аудита в транзакции вызывающего.
type AuditService struct {
	repo Repository
	log  *slog.Logger
}

// New создаёт AuditService.
func New(repo Repository, log *slog.Logger) *AuditService {
	return &AuditService{
		repo: repo,
		log:  log,
	}
}

// event описывает формат события для потребителей брокера.
type event struct {
	ActorID   string        `json:"actorId"`
	Action    string        `json:"action"`
	TargetID  string        `json:"targetId"`
	Delta     int64         `json:"delta"`
	Reason    models.Reason `json:"reason"`
	Timestamp time.Time     `json:"timestamp"`
}

// Payload сериализует запись аудита в тело события.
func Payload(e *models.AuditEntry) ([]byte, error) {
	return json.Marshal(event{
		ActorID:   e.ActorID,
		Action:    e.Action,
		TargetID:  e.TargetID,
		Delta:     e.Delta,
		Reason:    e.Reason,
		Timestamp: e.Timestamp.UTC(),
	})
}

// Record добавляет запись аудита. Вызывается внутри транзакции изменения,
// поэтому запись и изменение фиксируются вместе.
func (s *AuditService) Record(ctx context.Context, e models.AuditEntry) error {
	if err := s.repo.InsertAuditEntry(ctx, &e, Payload); err != nil {
		return fmt.Errorf("failed to record audit entry %s: %w", e.Action, err)
	}
	s.log.Debug("audit entry recorded",
		slog.String("action", e.Action),
		slog.String("actor_id", e.ActorID),
		slog.Int64("delta", e.Delta))
	return nil
}

// List возвращает записи аудита, новые первыми.
func (s *AuditService) List(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditEntries(ctx, actorID, limit)
}
