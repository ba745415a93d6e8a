package approvals

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// Status is the approval request state. PENDING is the only non-terminal
// state; APPROVED and REJECTED are both final.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Request is one dual-control gate awaiting a second, sufficiently senior
// reviewer.
type Request struct {
	ID             uuid.UUID
	ActionType     string
	RequestedBy    int64
	Department     catalog.Department
	Payload        map[string]any
	Status         Status
	ReviewedBy     *int64
	ReviewedAt     *time.Time
	ReviewComments string
	CreatedAt      time.Time
}

var (
	// ErrNotFound indicates the request does not exist.
	ErrNotFound = errors.New("approvals: request not found")
	// ErrConflict indicates a transition attempt on a terminal request.
	ErrConflict = errors.New("approvals: request already resolved")
	// ErrSelfApproval indicates the requester tried to review their own
	// request. Never permitted, for any role or department.
	ErrSelfApproval = errors.New("approvals: requester cannot review their own request")
	// ErrNotEligible indicates the reviewer lacks a qualifying assignment.
	ErrNotEligible = errors.New("approvals: reviewer not eligible")
)
