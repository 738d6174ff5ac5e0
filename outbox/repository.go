package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound signals the outbox row is missing or already settled.
var ErrNotFound = errors.New("outbox: message not found")

// Repository reads and writes the outbox table inside caller-owned
// transactions so business writes and their events commit together.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Enqueue inserts a pending message. payload is JSON encoded.
func (r *Repository) Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal payload: %w", err)
	}
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, q, topic, body); err != nil {
		return fmt.Errorf("outbox: enqueue: %w", err)
	}
	return nil
}

// FetchPending locks up to limit pending messages, oldest first. Rows locked
// by another relay are skipped.
func (r *Repository) FetchPending(ctx context.Context, tx pgx.Tx, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > 1000 {
		limit = 1000
	}
	const q = `
        SELECT id, topic, payload, status, attempts, last_error, created_at
        FROM outbox
        WHERE status = 'pending'
        ORDER BY created_at ASC
        LIMIT $1
        FOR UPDATE SKIP LOCKED
    `
	rows, err := tx.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: fetch pending: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Status, &m.Attempts, &m.LastError, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate: %w", err)
	}
	return out, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `UPDATE outbox SET status = 'processed', processed_at = now() WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("outbox: mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a failed dispatch. The message becomes dead once it has
// failed MaxAttempts times.
func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id string, cause error) error {
	const q = `
        UPDATE outbox
        SET attempts = attempts + 1,
            last_error = $2,
            status = CASE WHEN attempts + 1 >= $3 THEN 'dead' ELSE status END
        WHERE id = $1 AND status = 'pending'
    `
	tag, err := tx.Exec(ctx, q, id, cause.Error(), MaxAttempts)
	if err != nil {
		return fmt.Errorf("outbox: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
