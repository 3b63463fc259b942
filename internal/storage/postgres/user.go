package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/user"
)

const (
	getUserSQL = `SELECT id, email, full_name, phone, created_at FROM users WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (email, full_name, phone)
	VALUES ($1, $2, $3)
	ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name, phone = EXCLUDED.phone
	RETURNING id, created_at`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns user.ErrNotFound when no user has the given id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	err := conn(ctx, r.pool).QueryRow(ctx, getUserSQL, id).Scan(
		&u.ID, &u.Email, &u.FullName, &u.Phone, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}
	return &u, nil
}

// Upsert inserts the user or updates the one with the same email, setting
// u.ID and u.CreatedAt.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	err := conn(ctx, r.pool).QueryRow(ctx, upsertUserSQL, u.Email, u.FullName, u.Phone).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Email, err)
	}
	return nil
}
