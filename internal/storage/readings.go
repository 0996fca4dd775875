package storage

import (
	"context"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// InsertReading сохраняет прочтение вместе с его секциями.
func (s *Storage) InsertReading(ctx context.Context, r *models.Reading) error {
	const op = "storage.InsertReading"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	q := s.q(ctx)
	if _, err := q.ExecContext(ctx,
		`INSERT INTO readings (id, user_id, reading_type, interpretable, credits_used, charge_source)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.ReadingType, r.Interpretable, r.CreditsUsed, string(r.ChargeSource)); err != nil {
		return wrap(op, err)
	}
	for key, sec := range r.Sections {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO reading_sections (reading_id, section_key, preview, full_text)
			 VALUES ($1, $2, $3, $4)`,
			r.ID, key, sec.Preview, sec.Full); err != nil {
			return wrap(op, err)
		}
	}
	return nil
}

// GetReading возвращает прочтение с секциями или models.ErrNotFound.
func (s *Storage) GetReading(ctx context.Context, id string) (*models.Reading, error) {
	const op = "storage.GetReading"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	q := s.q(ctx)
	var (
		r      models.Reading
		source string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, reading_type, interpretable, credits_used, charge_source, created_at
		 FROM readings WHERE id::text = $1`, id).
		Scan(&r.ID, &r.UserID, &r.ReadingType, &r.Interpretable, &r.CreditsUsed, &source, &r.CreatedAt)
	if err != nil {
		return nil, wrap(op, err)
	}
	r.ChargeSource = models.ChargeSource(source)

	rows, err := q.QueryContext(ctx,
		`SELECT section_key, preview, full_text FROM reading_sections WHERE reading_id = $1`, r.ID)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	r.Sections = make(map[string]models.Section)
	for rows.Next() {
		var (
			key string
			sec models.Section
		)
		if err := rows.Scan(&key, &sec.Preview, &sec.Full); err != nil {
			return nil, wrap(op, err)
		}
		r.Sections[key] = sec
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return &r, nil
}

// GetReadingPrice возвращает текущую цену типа прочтения или models.ErrNotFound.
func (s *Storage) GetReadingPrice(ctx context.Context, readingType string) (*models.ReadingPrice, error) {
	const op = "storage.GetReadingPrice"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var p models.ReadingPrice
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT reading_type, cost, version, updated_at FROM reading_prices WHERE reading_type = $1`,
		readingType).Scan(&p.ReadingType, &p.Cost, &p.Version, &p.UpdatedAt)
	if err != nil {
		return nil, wrap(op, err)
	}
	return &p, nil
}

// UpdateReadingPrice меняет цену типа прочтения и увеличивает её версию.
// Неизвестный тип возвращает models.ErrNotFound.
func (s *Storage) UpdateReadingPrice(ctx context.Context, readingType string, cost int64) (*models.ReadingPrice, error) {
	const op = "storage.UpdateReadingPrice"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var p models.ReadingPrice
	err := s.q(ctx).QueryRowContext(ctx,
		`UPDATE reading_prices SET cost = $1, version = version + 1, updated_at = NOW()
		 WHERE reading_type = $2
		 RETURNING reading_type, cost, version, updated_at`,
		cost, readingType).Scan(&p.ReadingType, &p.Cost, &p.Version, &p.UpdatedAt)
	if err != nil {
		return nil, wrap(op, err)
	}
	return &p, nil
}
