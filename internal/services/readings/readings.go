// Package readings создаёт прочтения через внешний движок и отдаёт их
// с учётом открытых секций.
package readings

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Repository определяет методы хранилища прочтений.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InsertReading(ctx context.Context, r *models.Reading) error
	GetReading(ctx context.Context, id string) (*models.Reading, error)
}

// Engine рассчитывает содержимое прочтения.
type Engine interface {
	ComposeReading(ctx context.Context, userID, readingType string, params map[string]any) (*models.ReadingContent, error)
}

// Charger решает, чем оплачивается прочтение, и списывает оплату.
type Charger interface {
	ResolveReadingCost(ctx context.Context, userID, readingType string) (models.ReadingCharge, error)
	ChargeReading(ctx context.Context, userID, readingType, readingID string, useFreeTrial bool) (models.ReadingCharge, error)
}

// Access возвращает открытые пользователю секции прочтения.
type Access interface {
	UnlockedSections(ctx context.Context, readingID, userID string) (models.UnlockedSections, error)
}

// Auditor записывает событие аудита в текущей транзакции.
type Auditor interface {
	Record(ctx context.Context, e models.AuditEntry) error
}

type ReadingsService struct {
	repo    Repository
	engine  Engine
	charger Charger
	access  Access
	audit   Auditor
	log     *slog.Logger
}

func New(repo Repository, engine Engine, charger Charger, access Access, audit Auditor, log *slog.Logger) *ReadingsService {
	return &ReadingsService{
		repo:    repo,
		engine:  engine,
		charger: charger,
		access:  access,
		audit:   audit,
		log:     log,
	}
}

// Create рассчитывает прочтение и сохраняет его вместе с оплатой.
// Движок вызывается до открытия транзакции.
func (s *ReadingsService) Create(ctx context.Context, userID string, in models.DummyReading) (models.ReadingView, error) {
	const op = "services.readings.Create"
	readingType := strings.ToLower(strings.TrimSpace(in.ReadingType))
	log := s.log.With(slog.String("op", op), sl.User(userID), slog.String("reading_type", readingType))

	// Неизвестный тип отклоняется до обращения к движку.
	if _, err := s.charger.ResolveReadingCost(ctx, userID, readingType); err != nil {
		return models.ReadingView{}, err
	}

	content, err := s.engine.ComposeReading(ctx, userID, readingType, in.Params)
	if err != nil {
		log.Error("content engine failed", sl.Err(err))
		return models.ReadingView{}, err
	}

	r := &models.Reading{
		ID:            uuid.NewString(),
		UserID:        userID,
		ReadingType:   readingType,
		Interpretable: content.Interpretable,
		Sections:      content.Sections,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		charge, err := s.charger.ChargeReading(ctx, userID, readingType, r.ID, in.UseFreeReading)
		if err != nil {
			return err
		}
		r.CreditsUsed = charge.Credits
		r.ChargeSource = charge.Source
		if err := s.repo.InsertReading(ctx, r); err != nil {
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			ActorID:  userID,
			Action:   models.ActionReadingCharge,
			TargetID: r.ID,
			Delta:    -charge.Credits,
			Reason:   chargeReason(charge.Source),
		})
	})
	if err != nil {
		log.Debug("reading not created", sl.Err(err))
		return models.ReadingView{}, err
	}

	log.Info("reading created",
		slog.String("reading_id", r.ID),
		slog.Int64("credits", r.CreditsUsed),
		slog.String("source", string(r.ChargeSource)))
	return s.view(ctx, r)
}

func chargeReason(src models.ChargeSource) models.Reason {
	if src == models.ChargeFreeTrial {
		return models.ReasonFreeTrial
	}
	return models.ReasonReadingPurchase
}

// Get возвращает прочтение владельца: превью всех секций и полный текст открытых.
func (s *ReadingsService) Get(ctx context.Context, userID, readingID string) (models.ReadingView, error) {
	r, err := s.repo.GetReading(ctx, readingID)
	if err != nil {
		return models.ReadingView{}, err
	}
	if r.UserID != userID {
		return models.ReadingView{}, models.ErrForbidden
	}
	return s.view(ctx, r)
}

func (s *ReadingsService) view(ctx context.Context, r *models.Reading) (models.ReadingView, error) {
	unlocked, err := s.access.UnlockedSections(ctx, r.ID, r.UserID)
	if err != nil {
		return models.ReadingView{}, err
	}
	open := make(map[string]struct{}, len(unlocked.Sections))
	for _, k := range unlocked.Sections {
		open[k] = struct{}{}
	}

	keys := make([]string, 0, len(r.Sections))
	for k := range r.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := models.ReadingView{
		ID:           r.ID,
		ReadingType:  r.ReadingType,
		CreditsUsed:  r.CreditsUsed,
		ChargeSource: r.ChargeSource,
		IsSubscriber: unlocked.IsSubscriber,
		Sections:     make([]models.SectionView, 0, len(keys)),
		CreatedAt:    r.CreatedAt,
	}
	for _, k := range keys {
		sec := r.Sections[k]
		sv := models.SectionView{Key: k, Preview: sec.Preview}
		if _, ok := open[k]; ok && r.Interpretable {
			sv.Full = sec.Full
			sv.Unlocked = true
		}
		v.Sections = append(v.Sections, sv)
	}
	return v, nil
}
