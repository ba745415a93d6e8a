package adminroles

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// Assignment is a time-bounded, department-scoped grant of additional
// permissions to a user. Unique per (user, department). Revocation soft
// deletes; rows are never physically removed.
type Assignment struct {
	ID         int64
	UserID     int64
	Department catalog.Department
	Seniority  catalog.Seniority
	Custom     []catalog.Permission
	IsActive   bool
	ExpiresAt  *time.Time
	CreatedBy  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// Effective reports whether the assignment currently contributes
// permissions.
func (a Assignment) Effective(now time.Time) bool {
	if !a.IsActive || a.DeletedAt != nil {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

var (
	// ErrNotFound indicates the assignment does not exist.
	ErrNotFound = errors.New("adminroles: assignment not found")
	// ErrDuplicate indicates a live assignment already exists for the
	// (user, department) pair.
	ErrDuplicate = errors.New("adminroles: assignment already exists for user and department")
)

// InvariantViolationError is raised when a mutation would leave the platform
// without an effective SUPER_ADMIN assignment. The mutation is rejected with
// state unchanged.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return "adminroles: invariant violation: " + e.Reason
}

// ValidationError rejects a create or update whose department is unknown or
// whose permission set falls outside the department template, enumerating
// the offending permissions.
type ValidationError struct {
	Department        catalog.Department
	UnknownDepartment bool
	Disallowed        []catalog.Permission
	RemovedCritical   []catalog.Permission
}

func (e *ValidationError) Error() string {
	if e.UnknownDepartment {
		return fmt.Sprintf("adminroles: unknown department %q", e.Department)
	}
	var parts []string
	if len(e.Disallowed) > 0 {
		parts = append(parts, fmt.Sprintf("permissions not allowed for %s: %s", e.Department, joinPerms(e.Disallowed)))
	}
	if len(e.RemovedCritical) > 0 {
		parts = append(parts, "critical permissions may not be removed: "+joinPerms(e.RemovedCritical))
	}
	return "adminroles: " + strings.Join(parts, "; ")
}

func joinPerms(perms []catalog.Permission) string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
