package adminroles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ip/meridian/internal/authz"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

const assignmentColumns = `id, user_id, department, COALESCE(seniority, ''), custom_permissions,
is_active, expires_at, created_by, created_at, updated_at, deleted_at`

// Repository provides PostgreSQL backed persistence for assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new assignment.
func (r *Repository) Create(ctx context.Context, a Assignment) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO admin_role_assignments
(user_id, department, seniority, custom_permissions, is_active, expires_at, created_by)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
RETURNING `+assignmentColumns,
		a.UserID, string(a.Department), string(a.Seniority), permsToStrings(a.Custom), a.IsActive, a.ExpiresAt, a.CreatedBy)
	created, err := scanAssignment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Assignment{}, ErrDuplicate
		}
		return Assignment{}, fmt.Errorf("adminroles: create: %w", err)
	}
	return created, nil
}

// Get fetches an assignment by ID, soft-deleted rows included (they remain
// part of the audit history).
func (r *Repository) Get(ctx context.Context, id int64) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM admin_role_assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, fmt.Errorf("adminroles: get: %w", err)
	}
	return a, nil
}

// FindByUserAndDepartment returns the live assignment for the pair.
func (r *Repository) FindByUserAndDepartment(ctx context.Context, userID int64, dept catalog.Department) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM admin_role_assignments
WHERE user_id = $1 AND department = $2 AND deleted_at IS NULL`, userID, string(dept))
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, fmt.Errorf("adminroles: find by user and department: %w", err)
	}
	return a, nil
}

// FindActiveByUser returns the user's currently effective assignments.
func (r *Repository) FindActiveByUser(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assignmentColumns+` FROM admin_role_assignments
WHERE user_id = $1 AND is_active AND deleted_at IS NULL
  AND (expires_at IS NULL OR expires_at > NOW())
ORDER BY department`, userID)
	if err != nil {
		return nil, fmt.Errorf("adminroles: find active by user: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// ListByUser returns every non-deleted assignment for the user.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assignmentColumns+` FROM admin_role_assignments
WHERE user_id = $1 AND deleted_at IS NULL ORDER BY department`, userID)
	if err != nil {
		return nil, fmt.Errorf("adminroles: list by user: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// CountActiveByDepartment counts currently effective assignments in a
// department.
func (r *Repository) CountActiveByDepartment(ctx context.Context, dept catalog.Department) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_role_assignments
WHERE department = $1 AND is_active AND deleted_at IS NULL
  AND (expires_at IS NULL OR expires_at > NOW())`, string(dept)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("adminroles: count active by department: %w", err)
	}
	return count, nil
}

// Update persists seniority, custom permissions and expiry for an
// assignment. When guardSuperAdmin is set the update only applies while at
// least one other effective SUPER_ADMIN assignment exists, re-evaluated
// inside the same statement as in Revoke; a guarded statement matching no
// row surfaces as ErrNotFound for the caller to interpret.
func (r *Repository) Update(ctx context.Context, id int64, seniority catalog.Seniority, custom []catalog.Permission, expiresAt *time.Time, guardSuperAdmin bool) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `UPDATE admin_role_assignments
SET seniority = NULLIF($2, ''), custom_permissions = $3, expires_at = $4, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
  AND ($5::boolean = FALSE OR (
	SELECT COUNT(*) FROM admin_role_assignments
	WHERE department = 'SUPER_ADMIN' AND id <> $1
	  AND is_active AND deleted_at IS NULL
	  AND (expires_at IS NULL OR expires_at > NOW())) > 0)
RETURNING `+assignmentColumns,
		id, string(seniority), permsToStrings(custom), expiresAt, guardSuperAdmin)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, fmt.Errorf("adminroles: update: %w", err)
	}
	return a, nil
}

// Revoke soft-deletes an assignment. When guardSuperAdmin is set the update
// only applies while at least one other effective SUPER_ADMIN assignment
// exists; the count is re-evaluated inside the same statement, so two
// concurrent revocations cannot both slip past the guard.
func (r *Repository) Revoke(ctx context.Context, id int64, guardSuperAdmin bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE admin_role_assignments
SET is_active = FALSE, deleted_at = NOW(), updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
  AND ($2::boolean = FALSE OR (
	SELECT COUNT(*) FROM admin_role_assignments
	WHERE department = 'SUPER_ADMIN' AND id <> $1
	  AND is_active AND deleted_at IS NULL
	  AND (expires_at IS NULL OR expires_at > NOW())) > 0)`, id, guardSuperAdmin)
	if err != nil {
		return false, fmt.Errorf("adminroles: revoke: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Deactivate flips is_active off without deleting, under the same
// SUPER_ADMIN guard as Revoke.
func (r *Repository) Deactivate(ctx context.Context, id int64, guardSuperAdmin bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE admin_role_assignments
SET is_active = FALSE, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL AND is_active
  AND ($2::boolean = FALSE OR (
	SELECT COUNT(*) FROM admin_role_assignments
	WHERE department = 'SUPER_ADMIN' AND id <> $1
	  AND is_active AND deleted_at IS NULL
	  AND (expires_at IS NULL OR expires_at > NOW())) > 0)`, id, guardSuperAdmin)
	if err != nil {
		return false, fmt.Errorf("adminroles: deactivate: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeactivateExpired flips is_active off for every assignment whose expiry
// has passed. Conditional on expires_at, so it is safe to run concurrently
// with live permission checks and with itself. Returns the affected user IDs
// for cache invalidation.
func (r *Repository) DeactivateExpired(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `UPDATE admin_role_assignments
SET is_active = FALSE, updated_at = NOW()
WHERE is_active AND deleted_at IS NULL
  AND expires_at IS NOT NULL AND expires_at <= NOW()
RETURNING user_id`)
	if err != nil {
		return nil, fmt.Errorf("adminroles: deactivate expired: %w", err)
	}
	defer rows.Close()
	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("adminroles: deactivate expired: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("adminroles: deactivate expired: %w", err)
	}
	return userIDs, nil
}

func permsToStrings(perms []catalog.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (Assignment, error) {
	var (
		a         Assignment
		dept      string
		seniority string
		raw       []string
	)
	err := row.Scan(&a.ID, &a.UserID, &dept, &seniority, &raw,
		&a.IsActive, &a.ExpiresAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if err != nil {
		return Assignment{}, err
	}
	a.Department = catalog.Department(dept)
	a.Seniority = catalog.Seniority(seniority)
	a.Custom = authz.ParsePermissions(raw)
	return a, nil
}

func scanAssignments(rows pgx.Rows) ([]Assignment, error) {
	var assignments []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("adminroles: scan: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("adminroles: rows: %w", err)
	}
	return assignments, nil
}
