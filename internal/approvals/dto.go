package approvals

import (
	"time"

	"github.com/google/uuid"
)

// SubmitRequest opens a pending approval for a gated action.
type SubmitRequest struct {
	ActionType string         `json:"action_type" validate:"required"`
	Payload    map[string]any `json:"payload" validate:"required"`
}

// CheckRequiredRequest asks whether an action needs dual control for this
// requester and payload.
type CheckRequiredRequest struct {
	ActionType string         `json:"action_type" validate:"required"`
	Payload    map[string]any `json:"payload" validate:"required"`
}

// CheckRequiredResponse reports the gating decision.
type CheckRequiredResponse struct {
	Required bool `json:"required"`
}

// ResolveRequest carries reviewer comments on approve or reject.
type ResolveRequest struct {
	Comments string `json:"comments" validate:"omitempty,max=2000"`
}

// RequestResponse is the wire form of an approval request.
type RequestResponse struct {
	ID             uuid.UUID      `json:"id"`
	ActionType     string         `json:"action_type"`
	RequestedBy    int64          `json:"requested_by"`
	Department     string         `json:"department,omitempty"`
	Payload        map[string]any `json:"payload"`
	Status         string         `json:"status"`
	ReviewedBy     *int64         `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time     `json:"reviewed_at,omitempty"`
	ReviewComments string         `json:"review_comments,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func toRequestResponse(r Request) RequestResponse {
	return RequestResponse{
		ID:             r.ID,
		ActionType:     r.ActionType,
		RequestedBy:    r.RequestedBy,
		Department:     string(r.Department),
		Payload:        r.Payload,
		Status:         string(r.Status),
		ReviewedBy:     r.ReviewedBy,
		ReviewedAt:     r.ReviewedAt,
		ReviewComments: r.ReviewComments,
		CreatedAt:      r.CreatedAt,
	}
}
