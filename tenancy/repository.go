package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested tenancy does not exist.
var ErrNotFound = errors.New("tenancy: not found")

// Repository persists tenancies in PostgreSQL. Rent, deposit and the agreement
// summary are JSONB columns.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tenancyColumns = `id, unit_id, owner_id, tenant_id, status, rent, deposit, agreement, created_at, updated_at`

func (r *Repository) GetByID(ctx context.Context, id string) (Tenancy, error) {
	t, err := scanTenancy(r.pool.QueryRow(ctx, `SELECT `+tenancyColumns+` FROM tenancies WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenancy{}, ErrNotFound
		}
		return Tenancy{}, fmt.Errorf("tenancy: get by id: %w", err)
	}
	return t, nil
}

// FindByAgreementID returns the oldest tenancy whose embedded agreement
// summary points at agreementID.
func (r *Repository) FindByAgreementID(ctx context.Context, agreementID string) (Tenancy, error) {
	const q = `SELECT ` + tenancyColumns + `
        FROM tenancies
        WHERE agreement->>'agreementId' = $1
        ORDER BY created_at ASC
        LIMIT 1`
	t, err := scanTenancy(r.pool.QueryRow(ctx, q, agreementID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenancy{}, ErrNotFound
		}
		return Tenancy{}, fmt.Errorf("tenancy: find by agreement: %w", err)
	}
	return t, nil
}

func (r *Repository) SetStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tenancies SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("tenancy: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetAgreementSummary(ctx context.Context, id string, summary AgreementSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("tenancy: marshal agreement summary: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE tenancies SET agreement = $2::jsonb, updated_at = now() WHERE id = $1`, id, payload)
	if err != nil {
		return fmt.Errorf("tenancy: set agreement summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTenancy(row pgx.Row) (Tenancy, error) {
	var (
		t                          Tenancy
		rent, deposit, agreementJS []byte
	)
	if err := row.Scan(
		&t.ID,
		&t.UnitID,
		&t.OwnerID,
		&t.TenantID,
		&t.Status,
		&rent,
		&deposit,
		&agreementJS,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return Tenancy{}, err
	}
	if len(rent) > 0 {
		if err := json.Unmarshal(rent, &t.Rent); err != nil {
			return Tenancy{}, fmt.Errorf("tenancy: decode rent: %w", err)
		}
	}
	if len(deposit) > 0 && string(deposit) != "null" {
		t.Deposit = &Deposit{}
		if err := json.Unmarshal(deposit, t.Deposit); err != nil {
			return Tenancy{}, fmt.Errorf("tenancy: decode deposit: %w", err)
		}
	}
	if len(agreementJS) > 0 && string(agreementJS) != "null" {
		t.Agreement = &AgreementSummary{}
		if err := json.Unmarshal(agreementJS, t.Agreement); err != nil {
			return Tenancy{}, fmt.Errorf("tenancy: decode agreement summary: %w", err)
		}
	}
	return t, nil
}
