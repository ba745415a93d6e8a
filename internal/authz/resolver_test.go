package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

type mockStore struct {
	roles      map[int64]catalog.Role
	grants     map[int64][]RoleGrant
	roleErr    error
	grantErr   error
	roleCalls  int
	grantCalls int
}

func (m *mockStore) BaseRole(ctx context.Context, userID int64) (catalog.Role, error) {
	m.roleCalls++
	if m.roleErr != nil {
		return "", m.roleErr
	}
	role, ok := m.roles[userID]
	if !ok {
		return "", ErrRoleNotFound
	}
	return role, nil
}

func (m *mockStore) EffectiveGrants(ctx context.Context, userID int64) ([]RoleGrant, error) {
	m.grantCalls++
	if m.grantErr != nil {
		return nil, m.grantErr
	}
	return m.grants[userID], nil
}

func newTestResolver(t *testing.T, store Store) (*Resolver, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.DiscardHandler)
	cache := NewCache(client, time.Minute, time.Minute, logger)
	resolver := NewResolver(store, catalog.Default(), cache, logger)
	return resolver, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestViewerPermissions(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{1: catalog.RoleViewer}}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	ctx := context.Background()
	ok, err := resolver.HasPermission(ctx, 1, catalog.PermIPAssetsViewPublic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("viewer should view public assets")
	}
	ok, err = resolver.HasPermission(ctx, 1, catalog.PermIPAssetsEditAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("viewer must not edit all assets")
	}
}

func TestCreatorHierarchyImpliesView(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{2: catalog.RoleCreator}}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	// Creator base set grants edit_own; view_own arrives through the
	// hierarchy, never directly.
	ok, err := resolver.HasPermission(context.Background(), 2, catalog.PermIPAssetsViewOwn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("edit_own should imply view_own")
	}
}

func TestAdminUnionAcrossDepartments(t *testing.T) {
	store := &mockStore{
		roles: map[int64]catalog.Role{3: catalog.RoleAdmin},
		grants: map[int64][]RoleGrant{3: {
			{Department: catalog.DeptFinance, Seniority: catalog.SeniorityJunior},
			{Department: catalog.DeptLegal, Seniority: catalog.SeniorityJunior, Custom: []catalog.Permission{catalog.PermAuditView}},
		}},
	}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	ctx := context.Background()
	for _, p := range []catalog.Permission{
		catalog.PermPayoutsViewAll,  // finance template
		catalog.PermLicensesViewAll, // legal template
		catalog.PermAuditView,       // legal custom
	} {
		ok, err := resolver.HasPermission(ctx, 3, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatalf("union of departments should grant %q", p)
		}
	}
	// Neither department grants senior finance powers.
	ok, _ := resolver.HasPermission(ctx, 3, catalog.PermPayoutsApprove)
	if ok {
		t.Fatal("junior assignments must not grant payouts.approve")
	}
}

func TestSuperAdminShortCircuitsToWildcard(t *testing.T) {
	store := &mockStore{
		roles: map[int64]catalog.Role{4: catalog.RoleAdmin},
		grants: map[int64][]RoleGrant{4: {
			{Department: catalog.DeptFinance, Seniority: catalog.SeniorityJunior},
			{Department: catalog.DeptSuperAdmin},
		}},
	}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	perms, err := resolver.EffectivePermissions(context.Background(), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(perms) != 1 || perms[0] != catalog.Wildcard {
		t.Fatalf("super admin should resolve to the wildcard sentinel, got %v", perms)
	}
	ok, _ := resolver.HasPermission(context.Background(), 4, catalog.PermUsersDelete)
	if !ok {
		t.Fatal("wildcard should satisfy any permission")
	}
}

func TestNamespaceWildcard(t *testing.T) {
	store := &mockStore{
		roles: map[int64]catalog.Role{5: catalog.RoleAdmin},
		grants: map[int64][]RoleGrant{5: {
			{Department: catalog.DeptFinance, Custom: []catalog.Permission{"payouts.*"}},
		}},
	}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	ok, err := resolver.HasPermission(context.Background(), 5, catalog.PermPayoutsApprove)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("payouts.* should satisfy payouts.approve")
	}
}

func TestRoleNotFoundIsNotADenial(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{}}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	_, err := resolver.HasPermission(context.Background(), 99, catalog.PermUsersView)
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
	if IsDenied(err) {
		t.Fatal("role-not-found must not read as a denial")
	}

	err = resolver.Require(context.Background(), 99, catalog.PermUsersView)
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("Require should propagate ErrRoleNotFound, got %v", err)
	}
}

func TestRequireEnumeratesMissing(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{6: catalog.RoleViewer}}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	err := resolver.Require(context.Background(), 6, catalog.PermUsersDelete, catalog.PermIPAssetsViewPublic)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if len(denied.Missing) != 1 || denied.Missing[0] != catalog.PermUsersDelete {
		t.Fatalf("expected missing users.delete, got %v", denied.Missing)
	}
}

func TestResolutionSoundness(t *testing.T) {
	custom := []catalog.Permission{catalog.PermProjectsApprove}
	store := &mockStore{
		roles: map[int64]catalog.Role{7: catalog.RoleAdmin},
		grants: map[int64][]RoleGrant{7: {
			{Department: catalog.DeptContent, Seniority: catalog.SenioritySenior, Custom: custom},
		}},
	}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	perms, err := resolver.EffectivePermissions(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cat := catalog.Default()
	expander := catalog.NewExpander(cat.Hierarchy())
	base, _ := cat.BaseRolePermissions(catalog.RoleAdmin)
	tpl, _ := cat.TemplatePermissions(catalog.DeptContent, catalog.SenioritySenior)
	var inputs []catalog.Permission
	inputs = append(inputs, base...)
	inputs = append(inputs, tpl...)
	inputs = append(inputs, custom...)
	allowed := catalog.NewSet(expander.ExpandAll(inputs)...)

	for _, p := range perms {
		if !allowed.Has(p) {
			t.Fatalf("resolved permission %q outside base ∪ closure ∪ grants", p)
		}
	}
}

func TestInvalidationForcesFreshLoadMidTTL(t *testing.T) {
	store := &mockStore{
		roles: map[int64]catalog.Role{8: catalog.RoleAdmin},
		grants: map[int64][]RoleGrant{8: {
			{Department: catalog.DeptFinance, Seniority: catalog.SeniorityJunior},
		}},
	}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	ctx := context.Background()
	ok, _ := resolver.HasPermission(ctx, 8, catalog.PermPayoutsApprove)
	if ok {
		t.Fatal("junior finance must not approve payouts")
	}
	storeCalls := store.roleCalls

	// Promote to senior behind the cache's back. Without invalidation the
	// stale entry keeps answering; this bounded staleness (up to one TTL) is
	// the accepted tradeoff for concurrent readers racing an invalidation.
	store.grants[8] = []RoleGrant{{Department: catalog.DeptFinance, Seniority: catalog.SenioritySenior}}
	ok, _ = resolver.HasPermission(ctx, 8, catalog.PermPayoutsApprove)
	if ok {
		t.Fatal("cached entry should still answer within TTL")
	}
	if store.roleCalls != storeCalls {
		t.Fatalf("expected cache hit, store consulted %d extra times", store.roleCalls-storeCalls)
	}

	if err := resolver.InvalidateUser(ctx, 8); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	ok, err := resolver.HasPermission(ctx, 8, catalog.PermPayoutsApprove)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("next lookup after invalidation must reflect the new grants")
	}
}

func TestCacheOutageDegradesToMiss(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{9: catalog.RoleViewer}}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.DiscardHandler)
	resolver := NewResolver(store, catalog.Default(), NewCache(client, time.Minute, time.Minute, logger), logger)

	// Kill the cache before the first resolution. Decisions must keep
	// flowing from the authoritative store.
	mr.Close()
	_ = client.Close()

	ok, err := resolver.HasPermission(context.Background(), 9, catalog.PermIPAssetsViewPublic)
	if err != nil {
		t.Fatalf("cache outage must not fail resolution: %v", err)
	}
	if !ok {
		t.Fatal("viewer should still view public assets without a cache")
	}
}

func TestMemoScopedToOperation(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{10: catalog.RoleViewer}}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	opCtx := WithMemo(context.Background())
	if _, err := resolver.EffectivePermissions(opCtx, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Wipe the shared tier; the memo should still answer within the same
	// logical operation.
	if err := resolver.InvalidateUser(opCtx, 10); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	calls := store.roleCalls
	if _, err := resolver.EffectivePermissions(opCtx, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.roleCalls != calls {
		t.Fatal("memo should serve repeat lookups within one operation")
	}

	// A fresh operation starts with a fresh memo.
	if _, err := resolver.EffectivePermissions(WithMemo(context.Background()), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.roleCalls == calls {
		t.Fatal("new operation should miss the old memo")
	}
}

func TestStoreFailureFailsClosed(t *testing.T) {
	store := &mockStore{roleErr: errors.New("connection refused")}
	resolver, cleanup := newTestResolver(t, store)
	defer cleanup()

	_, err := resolver.EffectivePermissions(context.Background(), 11)
	if err == nil {
		t.Fatal("store failure must surface as an error")
	}
}
