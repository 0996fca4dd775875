// Package pricing отдаёт версионированные цены прочтений с кешированием в Redis.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Repository определяет методы хранилища для цен.
type Repository interface {
	GetReadingPrice(ctx context.Context, readingType string) (*models.ReadingPrice, error)
	UpdateReadingPrice(ctx context.Context, readingType string, cost int64) (*models.ReadingPrice, error)
}

// Cache описывает методы для кеширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// PricingService возвращает цену по типу прочтения. Неизвестный тип —
// models.ErrUnknownReadingType, без цены по умолчанию.
type PricingService struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// New создаёт PricingService. cache может быть nil: тогда цены читаются из базы.
func New(repo Repository, cache Cache, ttl time.Duration, log *slog.Logger) *PricingService {
	return &PricingService{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

func cacheKey(readingType string) string {
	return "price:" + readingType
}

// Price возвращает текущую цену типа прочтения.
func (s *PricingService) Price(ctx context.Context, readingType string) (*models.ReadingPrice, error) {
	readingType = strings.ToLower(strings.TrimSpace(readingType))
	if readingType == "" {
		return nil, models.ErrUnknownReadingType
	}
	key := cacheKey(readingType)

	if s.cache != nil {
		var cached models.ReadingPrice
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("failed to read price from cache", slog.String("key", key), sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	price, err := s.repo.GetReadingPrice(ctx, readingType)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownReadingType, readingType)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, price, s.ttl); err != nil {
			s.log.Warn("failed to cache price", slog.String("key", key), sl.Err(err))
		}
	}
	return price, nil
}

// SetPrice меняет цену существующего типа прочтения и поднимает её версию.
// Кеш сбрасывается сразу; ошибка кеша не отменяет изменение, устаревшая цена
// живёт не дольше ttl.
func (s *PricingService) SetPrice(ctx context.Context, readingType string, cost int64) (*models.ReadingPrice, error) {
	const op = "services.pricing.SetPrice"
	readingType = strings.ToLower(strings.TrimSpace(readingType))
	log := s.log.With(slog.String("op", op), slog.String("reading_type", readingType))

	if cost < 0 {
		return nil, fmt.Errorf("%w: cost must be >= 0", models.ErrInvalidAmount)
	}
	if readingType == "" {
		return nil, models.ErrUnknownReadingType
	}

	price, err := s.repo.UpdateReadingPrice(ctx, readingType, cost)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownReadingType, readingType)
	}
	if err != nil {
		return nil, err
	}

	if err := s.invalidate(ctx, readingType); err != nil {
		log.Warn("failed to invalidate cached price", sl.Err(err))
	}
	log.Info("reading price updated", slog.Int64("cost", price.Cost), slog.Int("version", price.Version))
	return price, nil
}

func (s *PricingService) invalidate(ctx context.Context, readingType string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, cacheKey(readingType))
}
