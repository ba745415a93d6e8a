package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a user by ID.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	var u User
	var role string
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, role, is_active, created_at, updated_at
FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Email, &u.Name, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	u.Role = catalog.Role(role)
	return u, nil
}

// UpdateRole changes a user's base role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, role catalog.Role) (User, error) {
	var u User
	var raw string
	err := r.pool.QueryRow(ctx, `UPDATE users SET role = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, email, name, role, is_active, created_at, updated_at`,
		id, string(role)).Scan(&u.ID, &u.Email, &u.Name, &raw, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users: update role: %w", err)
	}
	u.Role = catalog.Role(raw)
	return u, nil
}
