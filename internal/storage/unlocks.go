package storage

import (
	"context"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// IsSectionUnlocked сообщает, есть ли запись о разблокировке секции.
func (s *Storage) IsSectionUnlocked(ctx context.Context, readingID, sectionKey string) (bool, error) {
	const op = "storage.IsSectionUnlocked"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM section_unlocks WHERE reading_id::text = $1 AND section_key = $2
		 )`, readingID, sectionKey).Scan(&exists)
	if err != nil {
		return false, wrap(op, err)
	}
	return exists, nil
}

// InsertSectionUnlock сохраняет разблокировку. Повтор для той же секции или
// того же платежа возвращает models.ErrConflict.
func (s *Storage) InsertSectionUnlock(ctx context.Context, u models.SectionUnlock) error {
	const op = "storage.InsertSectionUnlock"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO section_unlocks (reading_id, section_key, user_id, method, credits_charged,
		     payment_id, cash_amount_cents)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ReadingID, u.SectionKey, u.UserID, string(u.Method), u.CreditsCharged, u.PaymentID, u.CashAmountCents)
	return wrap(op, err)
}

// ListUnlockedSections возвращает ключи открытых секций прочтения.
func (s *Storage) ListUnlockedSections(ctx context.Context, readingID string) ([]string, error) {
	const op = "storage.ListUnlockedSections"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT section_key FROM section_unlocks WHERE reading_id::text = $1 ORDER BY section_key`, readingID)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, wrap(op, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return keys, nil
}
