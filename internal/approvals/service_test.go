package approvals

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-ip/meridian/internal/authz"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

type fakeRequestStore struct {
	requests map[uuid.UUID]*Request
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[uuid.UUID]*Request)}
}

func (f *fakeRequestStore) Create(ctx context.Context, req Request) (Request, error) {
	req.Status = StatusPending
	req.CreatedAt = time.Now()
	f.requests[req.ID] = &req
	return req, nil
}

func (f *fakeRequestStore) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *req, nil
}

func (f *fakeRequestStore) ListPending(ctx context.Context, dept catalog.Department) ([]Request, error) {
	var out []Request
	for _, req := range f.requests {
		if req.Status != StatusPending {
			continue
		}
		if dept != "" && req.Department != dept {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (f *fakeRequestStore) Resolve(ctx context.Context, id uuid.UUID, status Status, reviewerID int64, comments string) (bool, error) {
	req, ok := f.requests[id]
	if !ok || req.Status != StatusPending {
		return false, nil
	}
	now := time.Now()
	req.Status = status
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &now
	req.ReviewComments = comments
	return true, nil
}

type fakeAuthority struct {
	roles map[int64]catalog.Role
	views map[int64]*authz.RoleView
}

func (f *fakeAuthority) BaseRole(ctx context.Context, userID int64) (catalog.Role, error) {
	role, ok := f.roles[userID]
	if !ok {
		return "", authz.ErrRoleNotFound
	}
	return role, nil
}

func (f *fakeAuthority) RoleView(ctx context.Context, userID int64) (*authz.RoleView, error) {
	if view, ok := f.views[userID]; ok {
		return view, nil
	}
	return &authz.RoleView{}, nil
}

func newApprovalService(store Store, authority AuthorityReader) *Service {
	logger := slog.New(slog.DiscardHandler)
	return NewService(store, NewEngine(DefaultRequirements(), logger), authority, nil, logger)
}

func seniorFinanceView() *authz.RoleView {
	return &authz.RoleView{Grants: []authz.RoleGrant{
		{Department: catalog.DeptFinance, Seniority: catalog.SenioritySenior},
	}}
}

func TestSubmitAndApprove(t *testing.T) {
	store := newFakeRequestStore()
	authority := &fakeAuthority{
		roles: map[int64]catalog.Role{1: catalog.RoleAdmin, 2: catalog.RoleAdmin},
		views: map[int64]*authz.RoleView{2: seniorFinanceView()},
	}
	svc := newApprovalService(store, authority)

	ctx := context.Background()
	created, err := svc.Submit(ctx, 1, ActionPayoutInitiate, map[string]any{"amount": 25_000.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != StatusPending {
		t.Fatalf("new request should be pending, got %s", created.Status)
	}

	approved, err := svc.Approve(ctx, 2, created.ID, "verified against ledger")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.ReviewedBy == nil || *approved.ReviewedBy != 2 {
		t.Fatal("reviewer should be recorded")
	}
}

func TestApproveOwnRequestRejected(t *testing.T) {
	store := newFakeRequestStore()
	authority := &fakeAuthority{
		roles: map[int64]catalog.Role{1: catalog.RoleAdmin},
		views: map[int64]*authz.RoleView{1: seniorFinanceView()},
	}
	svc := newApprovalService(store, authority)

	ctx := context.Background()
	created, err := svc.Submit(ctx, 1, ActionPayoutInitiate, map[string]any{"amount": 25_000.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.Approve(ctx, 1, created.ID, "looks fine to me")
	if !errors.Is(err, ErrSelfApproval) {
		t.Fatalf("expected ErrSelfApproval even with qualifying grants, got %v", err)
	}
}

func TestResolveTerminalRequestConflicts(t *testing.T) {
	store := newFakeRequestStore()
	authority := &fakeAuthority{
		roles: map[int64]catalog.Role{1: catalog.RoleAdmin, 2: catalog.RoleAdmin, 3: catalog.RoleAdmin},
		views: map[int64]*authz.RoleView{2: seniorFinanceView(), 3: seniorFinanceView()},
	}
	svc := newApprovalService(store, authority)

	ctx := context.Background()
	created, _ := svc.Submit(ctx, 1, ActionPayoutInitiate, map[string]any{"amount": 25_000.0})
	if _, err := svc.Approve(ctx, 2, created.ID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Reject(ctx, 3, created.ID, "too late"); !errors.Is(err, ErrConflict) {
		t.Fatalf("terminal request must conflict, got %v", err)
	}
	final, _ := store.Get(ctx, created.ID)
	if final.Status != StatusApproved {
		t.Fatal("losing transition must not mutate the request")
	}
}

func TestApproveIneligibleReviewer(t *testing.T) {
	store := newFakeRequestStore()
	authority := &fakeAuthority{
		roles: map[int64]catalog.Role{1: catalog.RoleAdmin, 4: catalog.RoleAdmin},
		views: map[int64]*authz.RoleView{4: {Grants: []authz.RoleGrant{
			{Department: catalog.DeptFinance, Seniority: catalog.SeniorityJunior},
		}}},
	}
	svc := newApprovalService(store, authority)

	ctx := context.Background()
	created, _ := svc.Submit(ctx, 1, ActionPayoutInitiate, map[string]any{"amount": 25_000.0})
	_, err := svc.Approve(ctx, 4, created.ID, "")
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestSubmitUnregisteredActionIsMisconfiguration(t *testing.T) {
	svc := newApprovalService(newFakeRequestStore(), &fakeAuthority{})

	_, err := svc.Submit(context.Background(), 1, "widgets.frobnicate", nil)
	var mis *authz.MisconfiguredError
	if !errors.As(err, &mis) {
		t.Fatalf("expected MisconfiguredError, got %v", err)
	}
}
