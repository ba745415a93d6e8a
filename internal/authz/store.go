package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// RoleGrant is one effective administrative role assignment, reduced to what
// resolution needs.
type RoleGrant struct {
	Department catalog.Department   `json:"department"`
	Seniority  catalog.Seniority    `json:"seniority"`
	Custom     []catalog.Permission `json:"custom"`
}

// RoleView is the merged assignment view for one user. It is cached
// independently of the resolved permission list (shorter TTL) to avoid
// redundant template lookups.
type RoleView struct {
	Grants []RoleGrant `json:"grants"`
}

// Store loads the authority facts resolution depends on.
type Store interface {
	// BaseRole returns the user's coarse role, or ErrRoleNotFound.
	BaseRole(ctx context.Context, userID int64) (catalog.Role, error)
	// EffectiveGrants returns the user's currently effective admin role
	// assignments: active, not soft-deleted, not expired.
	EffectiveGrants(ctx context.Context, userID int64) ([]RoleGrant, error)
}

// PGStore is the PostgreSQL-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// BaseRole implements Store.
func (s *PGStore) BaseRole(ctx context.Context, userID int64) (catalog.Role, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRoleNotFound
		}
		return "", fmt.Errorf("%w: base role: %v", ErrStoreUnavailable, err)
	}
	role := catalog.Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", &MisconfiguredError{Subject: fmt.Sprintf("unknown base role %q for user %d", raw, userID)}
	}
	return role, nil
}

// EffectiveGrants implements Store.
func (s *PGStore) EffectiveGrants(ctx context.Context, userID int64) ([]RoleGrant, error) {
	rows, err := s.pool.Query(ctx, `SELECT department, COALESCE(seniority, ''), custom_permissions
FROM admin_role_assignments
WHERE user_id = $1
  AND is_active
  AND deleted_at IS NULL
  AND (expires_at IS NULL OR expires_at > NOW())`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: effective grants: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var (
			dept      string
			seniority string
			raw       []string
		)
		if err := rows.Scan(&dept, &seniority, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan grant: %v", ErrStoreUnavailable, err)
		}
		grants = append(grants, RoleGrant{
			Department: catalog.Department(dept),
			Seniority:  catalog.Seniority(seniority),
			Custom:     ParsePermissions(raw),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: effective grants: %v", ErrStoreUnavailable, err)
	}
	return grants, nil
}

// ParsePermissions checks raw permission strings at the storage boundary.
// Blank entries are dropped; everything else is normalised to lower case.
func ParsePermissions(raw []string) []catalog.Permission {
	perms := make([]catalog.Permission, 0, len(raw))
	for _, r := range raw {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		perms = append(perms, catalog.Permission(r))
	}
	return perms
}
