package authz

import "github.com/meridian-ip/meridian/internal/authz/catalog"

// CheckRequest asks whether a user holds permissions. Mode selects the
// combinator: any (default) or all.
type CheckRequest struct {
	UserID      int64    `json:"user_id" validate:"required,gt=0"`
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
	Mode        string   `json:"mode" validate:"omitempty,oneof=any all"`
}

// CheckResponse reports the outcome of a permission check.
type CheckResponse struct {
	Allowed bool     `json:"allowed"`
	Missing []string `json:"missing,omitempty"`
}

// AccessRequest asks whether a user may act on a specific resource.
type AccessRequest struct {
	UserID       int64  `json:"user_id" validate:"required,gt=0"`
	ResourceType string `json:"resource_type" validate:"required"`
	ResourceID   int64  `json:"resource_id" validate:"required,gt=0"`
	Action       string `json:"action" validate:"required,oneof=view edit delete create approve publish"`
}

// AccessResponse reports a resource access decision.
type AccessResponse struct {
	Allowed bool `json:"allowed"`
}

// FilterFieldsRequest asks for a read-filtered view of an object.
type FilterFieldsRequest struct {
	UserID       int64          `json:"user_id" validate:"required,gt=0"`
	ResourceType string         `json:"resource_type" validate:"required"`
	Object       map[string]any `json:"object" validate:"required"`
}

// ValidateWritesRequest asks which payload fields the user may not write.
type ValidateWritesRequest struct {
	UserID       int64          `json:"user_id" validate:"required,gt=0"`
	ResourceType string         `json:"resource_type" validate:"required"`
	Payload      map[string]any `json:"payload" validate:"required"`
}

// ValidateWritesResponse lists violating fields; empty means the whole
// write is permitted.
type ValidateWritesResponse struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

// InvalidateRequest drops cached authority state for users.
type InvalidateRequest struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1,dive,gt=0"`
}

// PermissionsResponse lists a user's effective permissions.
type PermissionsResponse struct {
	UserID      int64    `json:"user_id"`
	Permissions []string `json:"permissions"`
}

func toPermissions(raw []string) []catalog.Permission {
	return ParsePermissions(raw)
}

func fromPermissions(perms []catalog.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
