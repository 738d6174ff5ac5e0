package infra

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Parties are the rows an agreement needs: a landlord, a tenant, the unit
// and an upcoming tenancy tying them together.
type Parties struct {
	OwnerID   string
	TenantID  string
	UnitID    string
	TenancyID string
}

// SeedParties inserts a fresh set of parties with unique emails.
func SeedParties(ctx context.Context, pool *pgxpool.Pool) (Parties, error) {
	var p Parties
	tag := uuid.NewString()[:8]

	const insertUser = `
		INSERT INTO users (first_name, last_name, email, phone, password_hash, role)
		VALUES ($1, $2, $3, '', 'x', $4)
		RETURNING id::text`
	if err := pool.QueryRow(ctx, insertUser, "Asha", "Rao", fmt.Sprintf("owner-%s@example.com", tag), "landlord").Scan(&p.OwnerID); err != nil {
		return Parties{}, fmt.Errorf("seed owner: %w", err)
	}
	if err := pool.QueryRow(ctx, insertUser, "Vikram", "Shah", fmt.Sprintf("tenant-%s@example.com", tag), "tenant").Scan(&p.TenantID); err != nil {
		return Parties{}, fmt.Errorf("seed tenant: %w", err)
	}
	if err := pool.QueryRow(ctx, `
		INSERT INTO units (owner_id, title, address_line1, city, state, pincode)
		VALUES ($1, '2BHK Indiranagar', '12 CMH Road', 'Bengaluru', 'KA', '560038')
		RETURNING id::text`, p.OwnerID).Scan(&p.UnitID); err != nil {
		return Parties{}, fmt.Errorf("seed unit: %w", err)
	}
	if err := pool.QueryRow(ctx, `
		INSERT INTO tenancies (unit_id, owner_id, tenant_id, status, rent, deposit)
		VALUES ($1, $2, $3, 'upcoming',
		        '{"amount":25000,"cycle":"monthly","dueDateDay":5}'::jsonb,
		        '{"amount":150000,"status":"held"}'::jsonb)
		RETURNING id::text`, p.UnitID, p.OwnerID, p.TenantID).Scan(&p.TenancyID); err != nil {
		return Parties{}, fmt.Errorf("seed tenancy: %w", err)
	}
	return p, nil
}
