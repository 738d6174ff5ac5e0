package unit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested unit does not exist.
var ErrNotFound = errors.New("unit: not found")

// Repository provides read access to units.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a unit and its address.
func (r *Repository) GetByID(ctx context.Context, id string) (Unit, error) {
	const query = `
		SELECT id::text, owner_id::text, title, address_line1, address_line2, city, state, pincode, created_at
		FROM units
		WHERE id = $1
	`

	var u Unit
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.OwnerID,
		&u.Title,
		&u.Address.Line1,
		&u.Address.Line2,
		&u.Address.City,
		&u.Address.State,
		&u.Address.Pincode,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unit{}, ErrNotFound
		}
		return Unit{}, fmt.Errorf("unit: query by id: %w", err)
	}
	return u, nil
}
