package adminroles

import (
	"time"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// CreateAssignmentRequest opens a new department assignment for a user.
type CreateAssignmentRequest struct {
	UserID      int64      `json:"user_id" validate:"required,gt=0"`
	Department  string     `json:"department" validate:"required"`
	Seniority   string     `json:"seniority" validate:"omitempty,oneof=JUNIOR SENIOR"`
	Permissions []string   `json:"permissions" validate:"omitempty,dive,required"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// UpdateAssignmentRequest mutates seniority, custom permissions or expiry.
type UpdateAssignmentRequest struct {
	Seniority   *string    `json:"seniority,omitempty" validate:"omitempty,oneof=JUNIOR SENIOR"`
	Permissions []string   `json:"permissions,omitempty" validate:"omitempty,dive,required"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClearExpiry bool       `json:"clear_expiry,omitempty"`
}

// BulkUpdateRequest applies the same mutation to several assignments.
type BulkUpdateRequest struct {
	IDs    []int64                 `json:"ids" validate:"required,min=1,dive,gt=0"`
	Update UpdateAssignmentRequest `json:"update" validate:"required"`
}

// AssignmentResponse is the wire form of an assignment.
type AssignmentResponse struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Department  string     `json:"department"`
	Seniority   string     `json:"seniority,omitempty"`
	Permissions []string   `json:"permissions"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toResponse(a Assignment) AssignmentResponse {
	perms := make([]string, len(a.Custom))
	for i, p := range a.Custom {
		perms[i] = string(p)
	}
	return AssignmentResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		Department:  string(a.Department),
		Seniority:   string(a.Seniority),
		Permissions: perms,
		IsActive:    a.IsActive,
		ExpiresAt:   a.ExpiresAt,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func parsePerms(raw []string) []catalog.Permission {
	perms := make([]catalog.Permission, 0, len(raw))
	for _, r := range raw {
		perms = append(perms, catalog.Permission(r))
	}
	return perms
}
