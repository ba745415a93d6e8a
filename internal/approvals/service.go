package approvals

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-ip/meridian/internal/authz"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/shared"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	ListPending(ctx context.Context, dept catalog.Department) ([]Request, error)
	Resolve(ctx context.Context, id uuid.UUID, status Status, reviewerID int64, comments string) (bool, error)
}

// AuthorityReader answers role and assignment questions about an actor.
// Satisfied by authz.Resolver.
type AuthorityReader interface {
	BaseRole(ctx context.Context, userID int64) (catalog.Role, error)
	RoleView(ctx context.Context, userID int64) (*authz.RoleView, error)
}

// Service hosts the approval request workflow.
type Service struct {
	store     Store
	engine    *Engine
	authority AuthorityReader
	audit     *shared.AuditLogger
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, engine *Engine, authority AuthorityReader, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{store: store, engine: engine, authority: authority, audit: audit, logger: logger}
}

// RequiresApproval reports whether the action needs dual control for this
// requester and payload.
func (s *Service) RequiresApproval(ctx context.Context, requesterID int64, action string, payload map[string]any) (bool, error) {
	role, err := s.authority.BaseRole(ctx, requesterID)
	if err != nil {
		return false, err
	}
	return s.engine.RequiresApproval(action, payload, Requester{ID: requesterID, Role: role}), nil
}

// Submit opens a pending approval request for a gated action. Submitting
// for an action with no registered requirement is a configuration failure,
// not an implicit pass.
func (s *Service) Submit(ctx context.Context, requesterID int64, action string, payload map[string]any) (Request, error) {
	req, ok := s.engine.Requirement(action)
	if !ok {
		return Request{}, &authz.MisconfiguredError{Subject: "no approval requirement registered for action " + action}
	}
	dept := req.DepartmentScope
	if dept == "" && len(req.RequiredDepartments) > 0 {
		dept = req.RequiredDepartments[0]
	}
	created, err := s.store.Create(ctx, Request{
		ID:          uuid.New(),
		ActionType:  action,
		RequestedBy: requesterID,
		Department:  dept,
		Payload:     payload,
	})
	if err != nil {
		return Request{}, err
	}
	s.audit.Record(ctx, shared.AuditEvent{
		Action:       "approval.submit",
		ActorID:      requesterID,
		ResourceType: "approval_request",
		ResourceID:   created.ID.String(),
		After:        map[string]any{"action_type": action, "status": string(created.Status)},
	})
	return created, nil
}

// CanApprove reports whether the reviewer is eligible to resolve the
// request.
func (s *Service) CanApprove(ctx context.Context, reviewerID int64, requestID uuid.UUID) (bool, error) {
	request, err := s.store.Get(ctx, requestID)
	if err != nil {
		return false, err
	}
	view, err := s.authority.RoleView(ctx, reviewerID)
	if err != nil {
		return false, err
	}
	return s.engine.CanApprove(ApproverView{ID: reviewerID, Grants: view.Grants}, request), nil
}

// Approve resolves a pending request as APPROVED.
func (s *Service) Approve(ctx context.Context, reviewerID int64, requestID uuid.UUID, comments string) (Request, error) {
	return s.resolve(ctx, reviewerID, requestID, StatusApproved, comments)
}

// Reject resolves a pending request as REJECTED.
func (s *Service) Reject(ctx context.Context, reviewerID int64, requestID uuid.UUID, comments string) (Request, error) {
	return s.resolve(ctx, reviewerID, requestID, StatusRejected, comments)
}

// Get returns one approval request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.store.Get(ctx, id)
}

// ListPending returns pending requests, optionally scoped to a department.
func (s *Service) ListPending(ctx context.Context, dept catalog.Department) ([]Request, error) {
	return s.store.ListPending(ctx, dept)
}

func (s *Service) resolve(ctx context.Context, reviewerID int64, requestID uuid.UUID, status Status, comments string) (Request, error) {
	request, err := s.store.Get(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if request.Status != StatusPending {
		return Request{}, ErrConflict
	}
	if reviewerID == request.RequestedBy {
		return Request{}, ErrSelfApproval
	}
	view, err := s.authority.RoleView(ctx, reviewerID)
	if err != nil {
		return Request{}, err
	}
	if !s.engine.CanApprove(ApproverView{ID: reviewerID, Grants: view.Grants}, request) {
		return Request{}, ErrNotEligible
	}
	resolved, err := s.store.Resolve(ctx, requestID, status, reviewerID, comments)
	if err != nil {
		return Request{}, err
	}
	if !resolved {
		// Another reviewer won the race since our read.
		return Request{}, ErrConflict
	}
	final, err := s.store.Get(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	s.audit.Record(ctx, shared.AuditEvent{
		Action:       fmt.Sprintf("approval.%s", statusAuditVerb(status)),
		ActorID:      reviewerID,
		ResourceType: "approval_request",
		ResourceID:   requestID.String(),
		Before:       map[string]any{"status": string(StatusPending)},
		After:        map[string]any{"status": string(status), "comments": comments},
	})
	return final, nil
}

func statusAuditVerb(status Status) string {
	if status == StatusApproved {
		return "approve"
	}
	return "reject"
}
