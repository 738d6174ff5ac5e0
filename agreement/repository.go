package agreement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists agreements in PostgreSQL. Clauses, signers and meta are
// JSONB columns; writes that must commit together take the caller's pgx.Tx.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const agreementColumns = `
    id::text, template_name, state_code, clauses, pdf_url, pdf_public_id, version,
    created_by::text, tenancy_id::text, tenant_id::text, status, signers,
    last_signed_at, meta, created_at, updated_at`

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, a Agreement) (Agreement, error) {
	clauses, signers, meta, err := encodeDocument(a)
	if err != nil {
		return Agreement{}, err
	}
	q := `
        INSERT INTO agreements (
            template_name, state_code, clauses, pdf_url, pdf_public_id, version,
            created_by, tenancy_id, tenant_id, status, signers, last_signed_at, meta
        )
        VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13::jsonb)
        RETURNING` + agreementColumns

	out, err := scanAgreement(tx.QueryRow(ctx, q,
		a.TemplateName, a.StateCode, clauses, a.PDFURL, a.PDFPublicID, a.Version,
		a.CreatedBy, a.TenancyID, a.TenantID, a.Status, signers, a.LastSignedAt, meta,
	))
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: insert: %w", err)
	}
	return out, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Agreement, error) {
	a, err := scanAgreement(r.pool.QueryRow(ctx, `SELECT`+agreementColumns+` FROM agreements WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: get by id: %w", err)
	}
	return a, nil
}

// GetForUpdate loads the agreement and holds its row lock until tx ends.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Agreement, error) {
	a, err := scanAgreement(tx.QueryRow(ctx, `SELECT`+agreementColumns+` FROM agreements WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: lock: %w", err)
	}
	return a, nil
}

// List returns one page of agreements matching f, newest first, and the
// total number of matches.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Agreement, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.TenancyID != "" {
		args = append(args, f.TenancyID)
		conds = append(conds, fmt.Sprintf("tenancy_id = $%d", len(args)))
	}
	if f.TenantID != "" {
		args = append(args, f.TenantID)
		conds = append(conds, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM agreements`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("agreement: count: %w", err)
	}

	pageArgs := append(append([]any{}, args...), f.Limit, (f.Page-1)*f.Limit)
	q := fmt.Sprintf(`SELECT%s FROM agreements%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		agreementColumns, where, len(args)+1, len(args)+2)

	rows, err := r.pool.Query(ctx, q, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("agreement: list: %w", err)
	}
	defer rows.Close()

	out := []Agreement{}
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("agreement: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("agreement: iterate: %w", err)
	}
	return out, total, nil
}

// SaveSigning writes the signer list, status and last signature time in one
// statement.
func (r *Repository) SaveSigning(ctx context.Context, tx pgx.Tx, a Agreement) error {
	signers, err := json.Marshal(nonNilSigners(a.Signers))
	if err != nil {
		return fmt.Errorf("agreement: marshal signers: %w", err)
	}
	const q = `
        UPDATE agreements
        SET signers = $2::jsonb, status = $3, last_signed_at = $4, updated_at = now()
        WHERE id = $1
    `
	tag, err := tx.Exec(ctx, q, a.ID, signers, a.Status, a.LastSignedAt)
	if err != nil {
		return fmt.Errorf("agreement: save signing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Update writes every mutable column of a.
func (r *Repository) Update(ctx context.Context, tx pgx.Tx, a Agreement) (Agreement, error) {
	clauses, signers, meta, err := encodeDocument(a)
	if err != nil {
		return Agreement{}, err
	}
	q := `
        UPDATE agreements
        SET template_name = $2, state_code = $3, clauses = $4::jsonb, pdf_url = $5,
            version = $6, status = $7, signers = $8::jsonb, meta = $9::jsonb, updated_at = now()
        WHERE id = $1
        RETURNING` + agreementColumns
	out, err := scanAgreement(tx.QueryRow(ctx, q,
		a.ID, a.TemplateName, a.StateCode, clauses, a.PDFURL, a.Version, a.Status, signers, meta,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: update: %w", err)
	}
	return out, nil
}

// Delete removes the agreement and returns the deleted row.
func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, id string) (Agreement, error) {
	a, err := scanAgreement(tx.QueryRow(ctx, `DELETE FROM agreements WHERE id = $1 RETURNING`+agreementColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: delete: %w", err)
	}
	return a, nil
}

// SetTenancyID backfills tenancy_id when it is still empty.
func (r *Repository) SetTenancyID(ctx context.Context, tx pgx.Tx, id, tenancyID string) error {
	const q = `UPDATE agreements SET tenancy_id = $2, updated_at = now() WHERE id = $1 AND tenancy_id IS NULL`
	if _, err := tx.Exec(ctx, q, id, tenancyID); err != nil {
		return fmt.Errorf("agreement: set tenancy: %w", err)
	}
	return nil
}

// InsertIdempotencyKey reserves key inside the active transaction.
func (r *Repository) InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error {
	if key == "" {
		return fmt.Errorf("agreement: empty idempotency key")
	}
	_, err := tx.Exec(ctx, `INSERT INTO idempotency (key) VALUES ($1)`, key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("agreement: insert idempotency key: %w", err)
	}
	return nil
}

func (r *Repository) AppendTimeline(ctx context.Context, tx pgx.Tx, ev TimelineEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("agreement: marshal timeline payload: %w", err)
	}
	const q = `
        INSERT INTO timeline_events (agreement_id, type, payload, actor_id)
        VALUES ($1, $2, $3::jsonb, $4)
    `
	if _, err := tx.Exec(ctx, q, ev.AgreementID, ev.Type, payload, ev.ActorID); err != nil {
		return fmt.Errorf("agreement: insert timeline: %w", err)
	}
	return nil
}

func (r *Repository) ListTimeline(ctx context.Context, agreementID string) ([]TimelineEvent, error) {
	const q = `
        SELECT id, agreement_id::text, type, actor_id::text, payload, created_at
        FROM timeline_events
        WHERE agreement_id = $1
        ORDER BY id ASC
    `
	rows, err := r.pool.Query(ctx, q, agreementID)
	if err != nil {
		return nil, fmt.Errorf("agreement: list timeline: %w", err)
	}
	defer rows.Close()

	out := []TimelineEvent{}
	for rows.Next() {
		var (
			ev      TimelineEvent
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.AgreementID, &ev.Type, &ev.ActorID, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("agreement: scan timeline: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("agreement: decode timeline payload: %w", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agreement: iterate timeline: %w", err)
	}
	return out, nil
}

func encodeDocument(a Agreement) (clauses, signers, meta []byte, err error) {
	if a.Clauses == nil {
		a.Clauses = []Clause{}
	}
	if clauses, err = json.Marshal(a.Clauses); err != nil {
		return nil, nil, nil, fmt.Errorf("agreement: marshal clauses: %w", err)
	}
	if signers, err = json.Marshal(nonNilSigners(a.Signers)); err != nil {
		return nil, nil, nil, fmt.Errorf("agreement: marshal signers: %w", err)
	}
	if a.Meta != nil {
		if meta, err = json.Marshal(a.Meta); err != nil {
			return nil, nil, nil, fmt.Errorf("agreement: marshal meta: %w", err)
		}
	}
	return clauses, signers, meta, nil
}

func nonNilSigners(s []Signer) []Signer {
	if s == nil {
		return []Signer{}
	}
	return s
}

func scanAgreement(row pgx.Row) (Agreement, error) {
	var (
		a                      Agreement
		clauses, signers, meta []byte
		lastSignedAt           *time.Time
	)
	if err := row.Scan(
		&a.ID,
		&a.TemplateName,
		&a.StateCode,
		&clauses,
		&a.PDFURL,
		&a.PDFPublicID,
		&a.Version,
		&a.CreatedBy,
		&a.TenancyID,
		&a.TenantID,
		&a.Status,
		&signers,
		&lastSignedAt,
		&meta,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Agreement{}, err
	}
	a.LastSignedAt = lastSignedAt
	if err := json.Unmarshal(clauses, &a.Clauses); err != nil {
		return Agreement{}, fmt.Errorf("agreement: decode clauses: %w", err)
	}
	if err := json.Unmarshal(signers, &a.Signers); err != nil {
		return Agreement{}, fmt.Errorf("agreement: decode signers: %w", err)
	}
	if len(meta) > 0 && string(meta) != "null" {
		if err := json.Unmarshal(meta, &a.Meta); err != nil {
			return Agreement{}, fmt.Errorf("agreement: decode meta: %w", err)
		}
	}
	return a, nil
}
