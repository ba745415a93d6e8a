package authz

import (
	"context"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

type mockResourceData struct {
	owner        map[int64]bool
	relationship map[int64]bool
	ownerErr     error
}

func (m *mockResourceData) IsOwner(ctx context.Context, userID int64, resourceType string, resourceID int64) (bool, error) {
	if m.ownerErr != nil {
		return false, m.ownerErr
	}
	return m.owner[resourceID], nil
}

func (m *mockResourceData) HasRelationship(ctx context.Context, userID int64, resourceType string, resourceID int64) (bool, error) {
	return m.relationship[resourceID], nil
}

func newTestEvaluator(t *testing.T, store Store, data ResourceData) (*AccessEvaluator, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.DiscardHandler)
	resolver := NewResolver(store, catalog.Default(), NewCache(client, time.Minute, time.Minute, logger), logger)
	return NewAccessEvaluator(resolver, data, logger), func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestAdminBypassesResourceChecks(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{1: catalog.RoleAdmin}}
	eval, cleanup := newTestEvaluator(t, store, &mockResourceData{})
	defer cleanup()

	ok, err := eval.CanAccess(context.Background(), 1, ResourceIPAssets, 55, ActionDelete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("admin role should bypass resource checks")
	}
}

func TestOwnershipSelectsScopedPermission(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{2: catalog.RoleCreator}}
	data := &mockResourceData{owner: map[int64]bool{10: true, 20: false}}
	eval, cleanup := newTestEvaluator(t, store, data)
	defer cleanup()

	ctx := context.Background()
	// Creator holds edit_own: owned asset edits pass, foreign ones do not.
	ok, err := eval.CanAccess(ctx, 2, ResourceIPAssets, 10, ActionEdit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("owner with edit_own should edit their asset")
	}
	ok, err = eval.CanAccess(ctx, 2, ResourceIPAssets, 20, ActionEdit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("edit_own must not reach a foreign asset")
	}
}

func TestRelationshipGrantsTeamAccess(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{3: catalog.RoleBrand}}
	data := &mockResourceData{relationship: map[int64]bool{30: true, 40: false}}
	eval, cleanup := newTestEvaluator(t, store, data)
	defer cleanup()

	ctx := context.Background()
	ok, err := eval.CanAccess(ctx, 3, ResourceIPAssets, 30, ActionView)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("brand team relationship should grant view")
	}
	ok, _ = eval.CanAccess(ctx, 3, ResourceIPAssets, 40, ActionView)
	if ok {
		t.Fatal("no relationship, no view_all: deny")
	}
}

func TestUnmappedPairDeniesByDefault(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{4: catalog.RoleBrand}}
	eval, cleanup := newTestEvaluator(t, store, &mockResourceData{})
	defer cleanup()

	ok, err := eval.CanAccess(context.Background(), 4, ResourceBrands, 1, ActionPublish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("unmapped resource/action pair must deny")
	}
}

func TestOwnershipLookupFailureFailsClosed(t *testing.T) {
	store := &mockStore{roles: map[int64]catalog.Role{5: catalog.RoleCreator}}
	data := &mockResourceData{ownerErr: context.DeadlineExceeded}
	eval, cleanup := newTestEvaluator(t, store, data)
	defer cleanup()

	ok, err := eval.CanAccess(context.Background(), 5, ResourceIPAssets, 1, ActionView)
	if err == nil {
		t.Fatal("data provider failure must surface")
	}
	if ok {
		t.Fatal("failure must not grant access")
	}
}
