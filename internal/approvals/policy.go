package approvals

import (
	"log/slog"

	"github.com/meridian-ip/meridian/internal/authz"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// Comparator relates a payload field to the configured threshold value.
type Comparator string

const (
	CompareGTE Comparator = "gte"
	CompareGT  Comparator = "gt"
	CompareLTE Comparator = "lte"
	CompareLT  Comparator = "lt"
	CompareEQ  Comparator = "eq"
)

// Threshold gates approval on a numeric payload field.
type Threshold struct {
	Field      string
	Value      float64
	Comparator Comparator
}

// Requester is the actor asking whether their action needs approval.
type Requester struct {
	ID   int64
	Role catalog.Role
}

// Condition is an arbitrary predicate over the action payload. A predicate
// error is treated as "approval required": missing or broken data must never
// silently skip dual control.
type Condition func(payload map[string]any, requester Requester) (bool, error)

// Requirement describes the dual-control gate for one action type.
type Requirement struct {
	RequiredDepartments []catalog.Department
	RequiresSeniorLevel bool
	DepartmentScope     catalog.Department
	Threshold           *Threshold
	Condition           Condition
}

// Approval-gated action types.
const (
	ActionPayoutInitiate    = "payouts.initiate"
	ActionOwnershipTransfer = "ip_assets.transfer_ownership"
	ActionLicenseTerminate  = "licenses.terminate"
	ActionUserDelete        = "users.delete"
)

// PayoutApprovalThreshold is the amount at and above which payouts need a
// second reviewer.
const PayoutApprovalThreshold = 10_000

// DefaultRequirements returns the platform approval policy. Approval is
// required for every qualifying action regardless of the requester's own
// seniority: dual control is unconditional by policy.
func DefaultRequirements() map[string]Requirement {
	return map[string]Requirement{
		ActionPayoutInitiate: {
			RequiredDepartments: []catalog.Department{catalog.DeptFinance},
			RequiresSeniorLevel: true,
			DepartmentScope:     catalog.DeptFinance,
			Threshold:           &Threshold{Field: "amount", Value: PayoutApprovalThreshold, Comparator: CompareGTE},
		},
		ActionOwnershipTransfer: {
			RequiredDepartments: []catalog.Department{catalog.DeptLegal},
			RequiresSeniorLevel: true,
		},
		ActionLicenseTerminate: {
			RequiredDepartments: []catalog.Department{catalog.DeptLegal},
			RequiresSeniorLevel: true,
			DepartmentScope:     catalog.DeptLegal,
			Condition: func(payload map[string]any, _ Requester) (bool, error) {
				// Terminating an already inactive license needs no gate.
				status, ok := payload["status"].(string)
				if !ok {
					return false, errMissingPayloadField("status")
				}
				return status == "active", nil
			},
		},
		ActionUserDelete: {
			RequiredDepartments: []catalog.Department{catalog.DeptSupport},
			RequiresSeniorLevel: true,
		},
	}
}

type missingFieldError string

func (e missingFieldError) Error() string { return "approvals: payload field missing: " + string(e) }

func errMissingPayloadField(name string) error { return missingFieldError(name) }

// Engine evaluates approval requirements and approver eligibility.
type Engine struct {
	requirements map[string]Requirement
	logger       *slog.Logger
}

// NewEngine constructs an Engine over the given requirement table.
func NewEngine(requirements map[string]Requirement, logger *slog.Logger) *Engine {
	return &Engine{requirements: requirements, logger: logger}
}

// Requirement returns the registered gate for an action.
func (e *Engine) Requirement(action string) (Requirement, bool) {
	req, ok := e.requirements[action]
	return req, ok
}

// RequiresApproval decides whether the action needs a second reviewer.
// Unregistered actions never do. A configured threshold clears (or
// short-circuits to false) before any condition runs; a missing threshold
// field or a failing condition predicate both fail safe to "approval
// required".
func (e *Engine) RequiresApproval(action string, payload map[string]any, requester Requester) bool {
	req, ok := e.requirements[action]
	if !ok {
		return false
	}
	if req.Threshold != nil {
		raw, present := payload[req.Threshold.Field]
		if !present {
			e.warn(action, "threshold field absent, requiring approval")
			return true
		}
		value, ok := toFloat(raw)
		if !ok {
			e.warn(action, "threshold field not numeric, requiring approval")
			return true
		}
		if !compare(value, req.Threshold.Value, req.Threshold.Comparator) {
			return false
		}
	}
	if req.Condition != nil {
		met, err := req.Condition(payload, requester)
		if err != nil {
			e.warn(action, "condition errored, requiring approval")
			return true
		}
		if !met {
			return false
		}
	}
	return true
}

// ApproverView is the reviewer's effective assignment picture.
type ApproverView struct {
	ID     int64
	Grants []authz.RoleGrant
}

// CanApprove reports whether the reviewer may resolve the request. The
// requester never can, nor can anyone once the request is terminal.
// SUPER_ADMIN assignments satisfy department scope and bypass the seniority
// requirement.
func (e *Engine) CanApprove(approver ApproverView, request Request) bool {
	if approver.ID == request.RequestedBy {
		return false
	}
	if request.Status != StatusPending {
		return false
	}
	req, ok := e.requirements[request.ActionType]
	if !ok {
		return false
	}
	for _, grant := range approver.Grants {
		if e.grantQualifies(grant, req) {
			return true
		}
	}
	return false
}

func (e *Engine) grantQualifies(grant authz.RoleGrant, req Requirement) bool {
	super := grant.Department == catalog.DeptSuperAdmin
	if !super {
		inRequired := false
		for _, dept := range req.RequiredDepartments {
			if grant.Department == dept {
				inRequired = true
				break
			}
		}
		if !inRequired {
			return false
		}
		if req.DepartmentScope != "" && grant.Department != req.DepartmentScope {
			return false
		}
		if req.RequiresSeniorLevel && grant.Seniority != catalog.SenioritySenior {
			return false
		}
	}
	return true
}

func (e *Engine) warn(action, msg string) {
	if e.logger != nil {
		e.logger.Warn("approval fail-safe", slog.String("action", action), slog.String("reason", msg))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func compare(value, threshold float64, cmp Comparator) bool {
	switch cmp {
	case CompareGTE:
		return value >= threshold
	case CompareGT:
		return value > threshold
	case CompareLTE:
		return value <= threshold
	case CompareLT:
		return value < threshold
	case CompareEQ:
		return value == threshold
	}
	return false
}
