package approvals

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ip/meridian/internal/authz"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultRequirements(), slog.New(slog.DiscardHandler))
}

func TestRequiresApprovalUnregisteredAction(t *testing.T) {
	e := newTestEngine()
	assert.False(t, e.RequiresApproval("ip_assets.rename", map[string]any{}, Requester{ID: 1}))
}

func TestRequiresApprovalThresholdBoundary(t *testing.T) {
	e := newTestEngine()
	requester := Requester{ID: 1, Role: catalog.RoleAdmin}

	cases := []struct {
		name   string
		amount float64
		want   bool
	}{
		{"below", PayoutApprovalThreshold - 0.01, false},
		{"exactly at", PayoutApprovalThreshold, true},
		{"above", PayoutApprovalThreshold + 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.RequiresApproval(ActionPayoutInitiate, map[string]any{"amount": tc.amount}, requester)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRequiresApprovalMissingThresholdFieldFailsSafe(t *testing.T) {
	e := newTestEngine()
	got := e.RequiresApproval(ActionPayoutInitiate, map[string]any{"currency": "USD"}, Requester{ID: 1})
	assert.True(t, got, "missing threshold field must require approval, never skip it")
}

func TestRequiresApprovalNonNumericThresholdFailsSafe(t *testing.T) {
	e := newTestEngine()
	got := e.RequiresApproval(ActionPayoutInitiate, map[string]any{"amount": "a lot"}, Requester{ID: 1})
	assert.True(t, got)
}

func TestRequiresApprovalConditionOutcomes(t *testing.T) {
	e := newTestEngine()
	requester := Requester{ID: 1}

	// Condition true: gate applies.
	assert.True(t, e.RequiresApproval(ActionLicenseTerminate, map[string]any{"status": "active"}, requester))
	// Condition false: no gate.
	assert.False(t, e.RequiresApproval(ActionLicenseTerminate, map[string]any{"status": "expired"}, requester))
	// Condition error (missing field): fail safe.
	assert.True(t, e.RequiresApproval(ActionLicenseTerminate, map[string]any{}, requester))
}

func TestRequiresApprovalThresholdShortCircuitsBeforeCondition(t *testing.T) {
	conditionCalled := false
	reqs := map[string]Requirement{
		"test.action": {
			Threshold: &Threshold{Field: "amount", Value: 100, Comparator: CompareGTE},
			Condition: func(map[string]any, Requester) (bool, error) {
				conditionCalled = true
				return true, nil
			},
		},
	}
	e := NewEngine(reqs, slog.New(slog.DiscardHandler))

	assert.False(t, e.RequiresApproval("test.action", map[string]any{"amount": 50}, Requester{}))
	assert.False(t, conditionCalled, "condition must not run when the threshold short-circuits")

	assert.True(t, e.RequiresApproval("test.action", map[string]any{"amount": 150}, Requester{}))
	assert.True(t, conditionCalled)
}

func TestRequiresApprovalIgnoresRequesterSeniority(t *testing.T) {
	// Dual control is unconditional: a senior finance admin still needs a
	// second reviewer for their own large payout.
	e := newTestEngine()
	got := e.RequiresApproval(ActionPayoutInitiate, map[string]any{"amount": 50_000.0}, Requester{ID: 1, Role: catalog.RoleAdmin})
	assert.True(t, got)
}

func pendingRequest(requestedBy int64, action string) Request {
	return Request{
		ID:          uuid.New(),
		ActionType:  action,
		RequestedBy: requestedBy,
		Status:      StatusPending,
	}
}

func TestCanApproveNeverSelf(t *testing.T) {
	e := newTestEngine()
	request := pendingRequest(42, ActionPayoutInitiate)

	grantSets := [][]authz.RoleGrant{
		nil,
		{{Department: catalog.DeptFinance, Seniority: catalog.SenioritySenior}},
		{{Department: catalog.DeptSuperAdmin}},
	}
	for _, grants := range grantSets {
		assert.False(t, e.CanApprove(ApproverView{ID: 42, Grants: grants}, request),
			"requester must never approve their own request, grants %v", grants)
	}
}

func TestCanApproveRequiresPending(t *testing.T) {
	e := newTestEngine()
	request := pendingRequest(1, ActionPayoutInitiate)
	request.Status = StatusApproved

	approver := ApproverView{ID: 2, Grants: []authz.RoleGrant{{Department: catalog.DeptFinance, Seniority: catalog.SenioritySenior}}}
	assert.False(t, e.CanApprove(approver, request))
}

func TestCanApproveSeniorityAndDepartment(t *testing.T) {
	e := newTestEngine()
	request := pendingRequest(1, ActionPayoutInitiate)

	cases := []struct {
		name   string
		grants []authz.RoleGrant
		want   bool
	}{
		{"senior finance", []authz.RoleGrant{{Department: catalog.DeptFinance, Seniority: catalog.SenioritySenior}}, true},
		{"junior finance", []authz.RoleGrant{{Department: catalog.DeptFinance, Seniority: catalog.SeniorityJunior}}, false},
		{"senior legal wrong department", []authz.RoleGrant{{Department: catalog.DeptLegal, Seniority: catalog.SenioritySenior}}, false},
		{"super admin bypasses seniority and scope", []authz.RoleGrant{{Department: catalog.DeptSuperAdmin}}, true},
		{"no grants", nil, false},
		{"one qualifying among several", []authz.RoleGrant{
			{Department: catalog.DeptSupport, Seniority: catalog.SeniorityJunior},
			{Department: catalog.DeptFinance, Seniority: catalog.SenioritySenior},
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.CanApprove(ApproverView{ID: 2, Grants: tc.grants}, request)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanApproveUnregisteredAction(t *testing.T) {
	e := newTestEngine()
	request := pendingRequest(1, "unknown.action")
	approver := ApproverView{ID: 2, Grants: []authz.RoleGrant{{Department: catalog.DeptSuperAdmin}}}
	assert.False(t, e.CanApprove(approver, request))
}

func TestConditionErrorType(t *testing.T) {
	err := errMissingPayloadField("status")
	require.Error(t, err)
	var missing missingFieldError
	assert.True(t, errors.As(err, &missing))
}
