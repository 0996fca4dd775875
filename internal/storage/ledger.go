package storage

import (
	"context"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// InsertLedgerEntry добавляет строку леджера и возвращает её ID.
func (s *Storage) InsertLedgerEntry(ctx context.Context, e models.LedgerEntry) (int64, error) {
	const op = "storage.InsertLedgerEntry"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var id int64
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO credit_ledger (user_id, delta, reason, reference, balance_after)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.UserID, e.Delta, string(e.Reason), e.Reference, e.BalanceAfter).Scan(&id)
	if err != nil {
		return 0, wrap(op, err)
	}
	return id, nil
}

// ListLedgerEntries возвращает строки леджера пользователя, новые первыми.
func (s *Storage) ListLedgerEntries(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	const op = "storage.ListLedgerEntries"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, user_id, delta, reason, reference, balance_after, created_at
		 FROM credit_ledger
		 WHERE user_id = $1
		 ORDER BY id DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.LedgerEntry, 0)
	for rows.Next() {
		var (
			e      models.LedgerEntry
			reason string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &reason, &e.Reference, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, wrap(op, err)
		}
		e.Reason = models.Reason(reason)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}
