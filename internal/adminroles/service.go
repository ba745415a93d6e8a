package adminroles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/shared"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, a Assignment) (Assignment, error)
	Get(ctx context.Context, id int64) (Assignment, error)
	ListByUser(ctx context.Context, userID int64) ([]Assignment, error)
	Update(ctx context.Context, id int64, seniority catalog.Seniority, custom []catalog.Permission, expiresAt *time.Time, guardSuperAdmin bool) (Assignment, error)
	Revoke(ctx context.Context, id int64, guardSuperAdmin bool) (bool, error)
	Deactivate(ctx context.Context, id int64, guardSuperAdmin bool) (bool, error)
	DeactivateExpired(ctx context.Context) ([]int64, error)
}

// Invalidator drops a user's cached authority state. Satisfied by
// authz.Resolver. Invalidation errors are surfaced, not swallowed: a grant
// mutation that leaves a stale cache behind has not succeeded.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
	InvalidateUsers(ctx context.Context, userIDs ...int64) error
}

// Service orchestrates admin role assignment lifecycle.
type Service struct {
	store   Store
	catalog *catalog.Catalog
	cache   Invalidator
	audit   *shared.AuditLogger
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, cat *catalog.Catalog, cache Invalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{store: store, catalog: cat, cache: cache, audit: audit, logger: logger}
}

// CreateInput carries a new assignment request.
type CreateInput struct {
	UserID     int64
	Department catalog.Department
	Seniority  catalog.Seniority
	Custom     []catalog.Permission
	ExpiresAt  *time.Time
}

// UpdateInput mutates an existing assignment. Nil Custom keeps the current
// set; nil ExpiresAt with ClearExpiry keeps or clears the expiry.
type UpdateInput struct {
	Seniority   *catalog.Seniority
	Custom      []catalog.Permission
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// Create validates the request against the department template, persists the
// assignment and synchronously invalidates the user's cached authority.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (Assignment, error) {
	if !s.catalog.KnownDepartment(in.Department) {
		return Assignment{}, &ValidationError{Department: in.Department, UnknownDepartment: true}
	}
	if err := validSeniority(in.Seniority); err != nil {
		return Assignment{}, err
	}
	if disallowed := s.disallowedCustom(in.Department, in.Custom); len(disallowed) > 0 {
		return Assignment{}, &ValidationError{Department: in.Department, Disallowed: disallowed}
	}

	created, err := s.store.Create(ctx, Assignment{
		UserID:     in.UserID,
		Department: in.Department,
		Seniority:  in.Seniority,
		Custom:     in.Custom,
		IsActive:   true,
		ExpiresAt:  in.ExpiresAt,
		CreatedBy:  actorID,
	})
	if err != nil {
		return Assignment{}, err
	}
	if err := s.cache.InvalidateUser(ctx, created.UserID); err != nil {
		return Assignment{}, err
	}
	s.audit.Record(ctx, shared.AuditEvent{
		Action:       "admin_role.create",
		ActorID:      actorID,
		ResourceType: "admin_role_assignment",
		ResourceID:   fmt.Sprint(created.ID),
		After:        auditView(created),
	})
	return created, nil
}

// Update changes seniority, custom permissions or expiry under template
// validation and the critical-permission retention rule.
func (s *Service) Update(ctx context.Context, actorID int64, id int64, in UpdateInput) (Assignment, error) {
	existing, updated, err := s.applyUpdate(ctx, id, in)
	if err != nil {
		return Assignment{}, err
	}
	if err := s.cache.InvalidateUser(ctx, updated.UserID); err != nil {
		return Assignment{}, err
	}
	s.audit.Record(ctx, shared.AuditEvent{
		Action:       "admin_role.update",
		ActorID:      actorID,
		ResourceType: "admin_role_assignment",
		ResourceID:   fmt.Sprint(id),
		Before:       auditView(existing),
		After:        auditView(updated),
	})
	return updated, nil
}

// BulkUpdate applies the same mutation to several assignments, then drops
// cached authority for every affected user in one round trip. The whole
// batch is validated before any row changes, so a validation failure aborts
// without side effects.
func (s *Service) BulkUpdate(ctx context.Context, actorID int64, ids []int64, in UpdateInput) ([]Assignment, error) {
	plans := make([]updatePlan, 0, len(ids))
	for _, id := range ids {
		plan, err := s.planUpdate(ctx, id, in)
		if err != nil {
			return nil, fmt.Errorf("adminroles: bulk update assignment %d: %w", id, err)
		}
		plans = append(plans, plan)
	}

	seen := make(map[int64]struct{}, len(plans))
	userIDs := make([]int64, 0, len(plans))
	updated := make([]Assignment, 0, len(plans))
	for _, plan := range plans {
		after, err := s.execUpdate(ctx, plan)
		if err != nil {
			// Rows already written still need their caches dropped.
			if ierr := s.cache.InvalidateUsers(ctx, userIDs...); ierr != nil {
				s.logger.Error("bulk update invalidation after failure", slog.Any("error", ierr))
			}
			return nil, fmt.Errorf("adminroles: bulk update assignment %d: %w", plan.existing.ID, err)
		}
		updated = append(updated, after)
		if _, dup := seen[after.UserID]; !dup {
			seen[after.UserID] = struct{}{}
			userIDs = append(userIDs, after.UserID)
		}
	}
	if err := s.cache.InvalidateUsers(ctx, userIDs...); err != nil {
		return nil, err
	}
	for i, after := range updated {
		s.audit.Record(ctx, shared.AuditEvent{
			Action:       "admin_role.update",
			ActorID:      actorID,
			ResourceType: "admin_role_assignment",
			ResourceID:   fmt.Sprint(after.ID),
			Before:       auditView(plans[i].existing),
			After:        auditView(after),
		})
	}
	return updated, nil
}

type updatePlan struct {
	existing  Assignment
	seniority catalog.Seniority
	custom    []catalog.Permission
	expiresAt *time.Time
	guard     bool
}

func (s *Service) planUpdate(ctx context.Context, id int64, in UpdateInput) (updatePlan, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return updatePlan{}, err
	}
	if existing.DeletedAt != nil {
		return updatePlan{}, ErrNotFound
	}

	seniority := existing.Seniority
	if in.Seniority != nil {
		if err := validSeniority(*in.Seniority); err != nil {
			return updatePlan{}, err
		}
		seniority = *in.Seniority
	}
	custom := existing.Custom
	if in.Custom != nil {
		custom = in.Custom
	}
	expiresAt := existing.ExpiresAt
	if in.ClearExpiry {
		expiresAt = nil
	} else if in.ExpiresAt != nil {
		expiresAt = in.ExpiresAt
	}

	verr := &ValidationError{Department: existing.Department}
	verr.Disallowed = s.disallowedCustom(existing.Department, custom)
	verr.RemovedCritical = removedCritical(s.catalog.CriticalForDepartment(existing.Department), existing.Custom, custom)
	if len(verr.Disallowed) > 0 || len(verr.RemovedCritical) > 0 {
		return updatePlan{}, verr
	}

	// An expiry in the past deactivates the assignment as surely as Revoke
	// does, so it runs under the same last-SUPER_ADMIN guard.
	now := time.Now()
	guard := existing.Department == catalog.DeptSuperAdmin &&
		existing.Effective(now) &&
		expiresAt != nil && !expiresAt.After(now)

	return updatePlan{existing: existing, seniority: seniority, custom: custom, expiresAt: expiresAt, guard: guard}, nil
}

func (s *Service) applyUpdate(ctx context.Context, id int64, in UpdateInput) (existing, updated Assignment, err error) {
	plan, err := s.planUpdate(ctx, id, in)
	if err != nil {
		return Assignment{}, Assignment{}, err
	}
	updated, err = s.execUpdate(ctx, plan)
	if err != nil {
		return Assignment{}, Assignment{}, err
	}
	return plan.existing, updated, nil
}

// execUpdate persists a planned update. A guarded statement that matched no
// row means the guard refused it: the target was the last effective
// SUPER_ADMIN assignment and the new expiry would have retired it.
func (s *Service) execUpdate(ctx context.Context, plan updatePlan) (Assignment, error) {
	updated, err := s.store.Update(ctx, plan.existing.ID, plan.seniority, plan.custom, plan.expiresAt, plan.guard)
	if err != nil {
		if plan.guard && errors.Is(err, ErrNotFound) {
			return Assignment{}, &InvariantViolationError{Reason: "cannot expire the last effective SUPER_ADMIN assignment"}
		}
		return Assignment{}, err
	}
	return updated, nil
}

// Revoke soft-deletes an assignment. Revoking a SUPER_ADMIN assignment is
// refused when it is the last effective one; the guard is re-evaluated
// inside the revoking statement itself, so concurrent revocations cannot
// race past it.
func (s *Service) Revoke(ctx context.Context, actorID int64, id int64) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.DeletedAt != nil {
		return ErrNotFound
	}
	guard := existing.Department == catalog.DeptSuperAdmin
	revoked, err := s.store.Revoke(ctx, id, guard)
	if err != nil {
		return err
	}
	if !revoked {
		if guard {
			return &InvariantViolationError{Reason: "cannot revoke the last effective SUPER_ADMIN assignment"}
		}
		return ErrNotFound
	}
	if err := s.cache.InvalidateUser(ctx, existing.UserID); err != nil {
		return err
	}
	s.audit.Record(ctx, shared.AuditEvent{
		Action:       "admin_role.revoke",
		ActorID:      actorID,
		ResourceType: "admin_role_assignment",
		ResourceID:   fmt.Sprint(id),
		Before:       auditView(existing),
	})
	return nil
}

// Deactivate suspends an assignment without deleting it, under the same
// last-SUPER_ADMIN guard as Revoke.
func (s *Service) Deactivate(ctx context.Context, actorID int64, id int64) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.DeletedAt != nil || !existing.IsActive {
		return ErrNotFound
	}
	guard := existing.Department == catalog.DeptSuperAdmin
	done, err := s.store.Deactivate(ctx, id, guard)
	if err != nil {
		return err
	}
	if !done {
		if guard {
			return &InvariantViolationError{Reason: "cannot deactivate the last effective SUPER_ADMIN assignment"}
		}
		return ErrNotFound
	}
	if err := s.cache.InvalidateUser(ctx, existing.UserID); err != nil {
		return err
	}
	s.audit.Record(ctx, shared.AuditEvent{
		Action:       "admin_role.deactivate",
		ActorID:      actorID,
		ResourceType: "admin_role_assignment",
		ResourceID:   fmt.Sprint(id),
		Before:       auditView(existing),
	})
	return nil
}

// SweepExpired deactivates every assignment whose expiry has passed and
// invalidates the affected users. Idempotent; safe to run concurrently with
// live checks because the update is conditional on expires_at.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	userIDs, err := s.store.DeactivateExpired(ctx)
	if err != nil {
		return 0, err
	}
	if len(userIDs) == 0 {
		return 0, nil
	}
	unique := make(map[int64]struct{}, len(userIDs))
	deduped := userIDs[:0]
	for _, id := range userIDs {
		if _, seen := unique[id]; seen {
			continue
		}
		unique[id] = struct{}{}
		deduped = append(deduped, id)
	}
	if err := s.cache.InvalidateUsers(ctx, deduped...); err != nil {
		return 0, err
	}
	s.logger.Info("expired admin role assignments deactivated", slog.Int("count", len(userIDs)))
	return len(userIDs), nil
}

// Get returns one assignment.
func (s *Service) Get(ctx context.Context, id int64) (Assignment, error) {
	return s.store.Get(ctx, id)
}

// ListByUser returns a user's non-deleted assignments.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Assignment, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) disallowedCustom(dept catalog.Department, custom []catalog.Permission) []catalog.Permission {
	allowed, ok := s.catalog.AllowedForDepartment(dept)
	if !ok {
		return custom
	}
	var disallowed []catalog.Permission
	for _, p := range custom {
		if !allowed.Has(p) {
			disallowed = append(disallowed, p)
		}
	}
	return disallowed
}

func removedCritical(critical []catalog.Permission, oldCustom, newCustom []catalog.Permission) []catalog.Permission {
	oldSet := catalog.NewSet(oldCustom...)
	newSet := catalog.NewSet(newCustom...)
	var removed []catalog.Permission
	for _, p := range critical {
		if oldSet.Has(p) && !newSet.Has(p) {
			removed = append(removed, p)
		}
	}
	return removed
}

func validSeniority(s catalog.Seniority) error {
	switch s {
	case catalog.SeniorityJunior, catalog.SenioritySenior, catalog.SeniorityNone:
		return nil
	}
	return fmt.Errorf("adminroles: unknown seniority %q", s)
}

func auditView(a Assignment) map[string]any {
	view := map[string]any{
		"user_id":    a.UserID,
		"department": string(a.Department),
		"seniority":  string(a.Seniority),
		"custom":     permsToStrings(a.Custom),
		"is_active":  a.IsActive,
	}
	if a.ExpiresAt != nil {
		view["expires_at"] = a.ExpiresAt.UTC()
	}
	return view
}
