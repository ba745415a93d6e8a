package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-ip/meridian/internal/adminroles"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (User, error)
	UpdateRole(ctx context.Context, id int64, role catalog.Role) (User, error)
}

// Service handles user account business logic.
type Service struct {
	repo   RepositoryPort
	cache  adminroles.Invalidator
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, cache adminroles.Invalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger}
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// AssignRole changes a user's base role and synchronously invalidates their
// cached authority.
func (s *Service) AssignRole(ctx context.Context, actorID, userID int64, role catalog.Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("users: unknown role %q", role)
	}
	before, err := s.repo.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	updated, err := s.repo.UpdateRole(ctx, userID, role)
	if err != nil {
		return User{}, err
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		return User{}, err
	}
	s.audit.Record(ctx, shared.AuditEvent{
		Action:       "users.assign_role",
		ActorID:      actorID,
		ResourceType: "user",
		ResourceID:   fmt.Sprint(userID),
		Before:       map[string]any{"role": string(before.Role)},
		After:        map[string]any{"role": string(role)},
	})
	return updated, nil
}
