package storage

import (
	"context"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// InsertAuditEntry добавляет запись аудита и событие в outbox в текущей транзакции.
func (s *Storage) InsertAuditEntry(ctx context.Context, e *models.AuditEntry, payload func(*models.AuditEntry) ([]byte, error)) error {
	const op = "storage.InsertAuditEntry"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	q := s.q(ctx)
	err := q.QueryRowContext(ctx,
		`INSERT INTO audit_entries (actor_id, action, target_id, delta, reason)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.ActorID, e.Action, e.TargetID, e.Delta, string(e.Reason)).Scan(&e.ID, &e.Timestamp)
	if err != nil {
		return wrap(op, err)
	}

	body, err := payload(e)
	if err != nil {
		return wrap(op, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO audit_outbox (audit_entry_id, routing_key, payload) VALUES ($1, $2, $3)`,
		e.ID, e.Action, string(body))
	return wrap(op, err)
}

// ListAuditEntries возвращает записи аудита, новые первыми. Пустой actorID выбирает все записи.
func (s *Storage) ListAuditEntries(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error) {
	const op = "storage.ListAuditEntries"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, actor_id, action, target_id, delta, reason, created_at
		 FROM audit_entries
		 WHERE ($1 = '' OR actor_id = $1)
		 ORDER BY id DESC
		 LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.AuditEntry, 0)
	for rows.Next() {
		var (
			e      models.AuditEntry
			reason string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetID, &e.Delta, &reason, &e.Timestamp); err != nil {
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

// ClaimOutboxMessages забирает до limit готовых к отправке событий и откладывает их
// повторную выдачу на lease, чтобы параллельные диспетчеры не публиковали их дважды.
func (s *Storage) ClaimOutboxMessages(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxMessage, error) {
	const op = "storage.ClaimOutboxMessages"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`WITH candidates AS (
		     SELECT id
		     FROM audit_outbox
		     WHERE next_attempt_at <= NOW()
		     ORDER BY id
		     LIMIT $1
		     FOR UPDATE SKIP LOCKED
		 )
		 UPDATE audit_outbox AS o
		 SET attempts = o.attempts + 1,
		     next_attempt_at = NOW() + ($2 * INTERVAL '1 millisecond')
		 FROM candidates
		 WHERE o.id = candidates.id
		 RETURNING o.id, o.audit_entry_id, o.routing_key, o.payload::text, o.attempts`,
		limit, lease.Milliseconds())
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	messages := make([]models.OutboxMessage, 0, limit)
	for rows.Next() {
		var (
			msg     models.OutboxMessage
			payload string
		)
		if err := rows.Scan(&msg.ID, &msg.AuditEntryID, &msg.RoutingKey, &payload, &msg.Attempts); err != nil {
			return nil, wrap(op, err)
		}
		msg.Payload = []byte(payload)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return messages, nil
}

// DeleteOutboxMessage удаляет доставленное событие.
func (s *Storage) DeleteOutboxMessage(ctx context.Context, id int64) error {
	const op = "storage.DeleteOutboxMessage"
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM audit_outbox WHERE id = $1`, id)
	return wrap(op, err)
}

// MarkOutboxFailed откладывает повторную отправку события на retryAfter.
func (s *Storage) MarkOutboxFailed(ctx context.Context, id int64, retryAfter time.Duration, lastError string) error {
	const op = "storage.MarkOutboxFailed"
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE audit_outbox
		 SET next_attempt_at = NOW() + ($2 * INTERVAL '1 millisecond'),
		     last_error = $3
		 WHERE id = $1`, id, retryAfter.Milliseconds(), lastError)
	return wrap(op, err)
}
