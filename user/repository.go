package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the user does not exist.
	ErrNotFound = errors.New("user: not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("user: email already exists")
)

// Reader resolves public user identities by ID.
type Reader interface {
	GetSummary(ctx context.Context, id string) (Summary, error)
}

// CreateParams contains write parameters for creating users.
type CreateParams struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
}

// PGRepository implements user persistence backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, email, phone, password_hash, role, created_at, updated_at`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (User, error) {
	q := `
        INSERT INTO users (first_name, last_name, email, phone, password_hash, role)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, q,
		params.FirstName, params.LastName, params.Email, params.Phone, params.PasswordHash, params.Role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("user: create: %w", err)
	}
	return u, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("user: get by id: %w", err)
	}
	return u, nil
}

func (r *PGRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("user: get by email: %w", err)
	}
	return u, nil
}

// GetSummary implements Reader.
func (r *PGRepository) GetSummary(ctx context.Context, id string) (Summary, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return u.Summary(), nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return u, nil
}
