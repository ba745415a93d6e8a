package authz

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// Resolver merges base role, effective admin role assignments and the
// hierarchy closure into one effective permission set per user.
type Resolver struct {
	store    Store
	catalog  *catalog.Catalog
	expander *catalog.Expander
	cache    *Cache
	group    singleflight.Group
	logger   *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, cat *catalog.Catalog, cache *Cache, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		catalog:  cat,
		expander: catalog.NewExpander(cat.Hierarchy()),
		cache:    cache,
		logger:   logger,
	}
}

// EffectivePermissions resolves the full permission list for a user.
// Lookup order: per-operation memo, shared TTL cache, authoritative load.
// Concurrent misses for the same user collapse into one load.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) ([]catalog.Permission, error) {
	if m := memoFrom(ctx); m != nil {
		if perms, ok := m.perms[userID]; ok {
			return perms, nil
		}
	}
	if perms, ok := r.cache.GetPermissions(ctx, userID); ok {
		r.memoizePerms(ctx, userID, perms)
		return perms, nil
	}

	v, err, _ := r.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		perms, err := r.resolve(ctx, userID)
		if err != nil {
			return nil, err
		}
		r.cache.SetPermissions(ctx, userID, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	perms := v.([]catalog.Permission)
	r.memoizePerms(ctx, userID, perms)
	return perms, nil
}

// HasPermission reports whether the user holds the permission, honouring the
// global and namespace wildcards. A denial is (false, nil); errors mean
// resolution itself failed and the caller must fail closed.
func (r *Resolver) HasPermission(ctx context.Context, userID int64, p catalog.Permission) (bool, error) {
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return holds(perms, p), nil
}

// HasAny reports whether the user holds at least one of the permissions.
func (r *Resolver) HasAny(ctx context.Context, userID int64, required ...catalog.Permission) (bool, error) {
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range required {
		if holds(perms, p) {
			return true, nil
		}
	}
	return false, nil
}

// HasAll reports whether the user holds every one of the permissions.
func (r *Resolver) HasAll(ctx context.Context, userID int64, required ...catalog.Permission) (bool, error) {
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range required {
		if !holds(perms, p) {
			return false, nil
		}
	}
	return true, nil
}

// Require returns nil when the user holds every permission, or a
// *DeniedError listing the missing ones.
func (r *Resolver) Require(ctx context.Context, userID int64, required ...catalog.Permission) error {
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return err
	}
	var missing []catalog.Permission
	for _, p := range required {
		if !holds(perms, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &DeniedError{Missing: missing}
	}
	return nil
}

// BaseRole exposes the user's coarse role for collaborators that branch on
// it (resource evaluation, approval eligibility).
func (r *Resolver) BaseRole(ctx context.Context, userID int64) (catalog.Role, error) {
	return r.store.BaseRole(ctx, userID)
}

// RoleView returns the merged effective assignment view, using its own cache
// entry so repeated template lookups within a TTL hit Redis, not Postgres.
func (r *Resolver) RoleView(ctx context.Context, userID int64) (*RoleView, error) {
	if m := memoFrom(ctx); m != nil {
		if view, ok := m.views[userID]; ok {
			return view, nil
		}
	}
	if view, ok := r.cache.GetRoleView(ctx, userID); ok {
		r.memoizeView(ctx, userID, view)
		return view, nil
	}
	grants, err := r.store.EffectiveGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &RoleView{Grants: grants}
	r.cache.SetRoleView(ctx, userID, view)
	r.memoizeView(ctx, userID, view)
	return view, nil
}

// InvalidateUser removes both shared cache entries for the user.
func (r *Resolver) InvalidateUser(ctx context.Context, userID int64) error {
	return r.cache.InvalidateUser(ctx, userID)
}

// InvalidateUsers removes both shared cache entries for each user.
func (r *Resolver) InvalidateUsers(ctx context.Context, userIDs ...int64) error {
	return r.cache.InvalidateUsers(ctx, userIDs...)
}

func (r *Resolver) resolve(ctx context.Context, userID int64) ([]catalog.Permission, error) {
	role, err := r.store.BaseRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	base, ok := r.catalog.BaseRolePermissions(role)
	if !ok {
		return nil, &MisconfiguredError{Subject: "no permission set registered for role " + string(role)}
	}
	if role != catalog.RoleAdmin {
		return r.expander.ExpandAll(base), nil
	}

	view, err := r.RoleView(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, grant := range view.Grants {
		if grant.Department == catalog.DeptSuperAdmin {
			return []catalog.Permission{catalog.Wildcard}, nil
		}
	}
	merged := catalog.NewSet(base...)
	for _, grant := range view.Grants {
		tpl, ok := r.catalog.TemplatePermissions(grant.Department, grant.Seniority)
		if !ok {
			return nil, &MisconfiguredError{Subject: "no template registered for department " + string(grant.Department)}
		}
		merged.Union(catalog.NewSet(tpl...))
		merged.Union(catalog.NewSet(grant.Custom...))
	}
	return r.expander.ExpandAll(merged.List()), nil
}

func (r *Resolver) memoizePerms(ctx context.Context, userID int64, perms []catalog.Permission) {
	if m := memoFrom(ctx); m != nil {
		m.perms[userID] = perms
	}
}

func (r *Resolver) memoizeView(ctx context.Context, userID int64, view *RoleView) {
	if m := memoFrom(ctx); m != nil {
		m.views[userID] = view
	}
}

func holds(held []catalog.Permission, required catalog.Permission) bool {
	for _, p := range held {
		if p.Satisfies(required) {
			return true
		}
	}
	return false
}
