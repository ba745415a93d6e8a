package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// Action is a resource-scoped operation.
type Action string

const (
	ActionView    Action = "view"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionCreate  Action = "create"
	ActionApprove Action = "approve"
	ActionPublish Action = "publish"
)

// Resource type identifiers understood by the evaluator.
const (
	ResourceIPAssets = "ip_assets"
	ResourceLicenses = "licenses"
	ResourceProjects = "projects"
	ResourcePayouts  = "payouts"
	ResourceBrands   = "brands"
)

// ResourceData answers ownership and relationship questions for a resource.
// Implemented by internal/resources against the platform schema.
type ResourceData interface {
	IsOwner(ctx context.Context, userID int64, resourceType string, resourceID int64) (bool, error)
	HasRelationship(ctx context.Context, userID int64, resourceType string, resourceID int64) (bool, error)
}

type accessRule struct {
	resource string
	action   Action
	owned    bool
}

// accessTable maps (resource, action, ownership) to the one permission that
// grants it. Pairs absent from the table deny by default.
var accessTable = map[accessRule]catalog.Permission{
	{ResourceIPAssets, ActionView, true}:     catalog.PermIPAssetsViewOwn,
	{ResourceIPAssets, ActionView, false}:    catalog.PermIPAssetsViewAll,
	{ResourceIPAssets, ActionEdit, true}:     catalog.PermIPAssetsEditOwn,
	{ResourceIPAssets, ActionEdit, false}:    catalog.PermIPAssetsEditAll,
	{ResourceIPAssets, ActionDelete, true}:   catalog.PermIPAssetsDeleteOwn,
	{ResourceIPAssets, ActionDelete, false}:  catalog.PermIPAssetsDeleteAll,
	{ResourceIPAssets, ActionCreate, true}:   catalog.PermIPAssetsCreate,
	{ResourceIPAssets, ActionCreate, false}:  catalog.PermIPAssetsCreate,
	{ResourceIPAssets, ActionPublish, true}:  catalog.PermIPAssetsPublish,
	{ResourceIPAssets, ActionPublish, false}: catalog.PermIPAssetsPublish,

	{ResourceLicenses, ActionView, true}:     catalog.PermLicensesViewOwn,
	{ResourceLicenses, ActionView, false}:    catalog.PermLicensesViewAll,
	{ResourceLicenses, ActionEdit, true}:     catalog.PermLicensesEditOwn,
	{ResourceLicenses, ActionEdit, false}:    catalog.PermLicensesEditAll,
	{ResourceLicenses, ActionCreate, true}:   catalog.PermLicensesCreate,
	{ResourceLicenses, ActionCreate, false}:  catalog.PermLicensesCreate,
	{ResourceLicenses, ActionApprove, true}:  catalog.PermLicensesApprove,
	{ResourceLicenses, ActionApprove, false}: catalog.PermLicensesApprove,

	{ResourceProjects, ActionView, true}:     catalog.PermProjectsView,
	{ResourceProjects, ActionView, false}:    catalog.PermProjectsView,
	{ResourceProjects, ActionEdit, true}:     catalog.PermProjectsEdit,
	{ResourceProjects, ActionEdit, false}:    catalog.PermProjectsEdit,
	{ResourceProjects, ActionCreate, true}:   catalog.PermProjectsCreate,
	{ResourceProjects, ActionCreate, false}:  catalog.PermProjectsCreate,
	{ResourceProjects, ActionApprove, true}:  catalog.PermProjectsApprove,
	{ResourceProjects, ActionApprove, false}: catalog.PermProjectsApprove,

	{ResourcePayouts, ActionView, true}:     catalog.PermPayoutsViewOwn,
	{ResourcePayouts, ActionView, false}:    catalog.PermPayoutsViewAll,
	{ResourcePayouts, ActionApprove, true}:  catalog.PermPayoutsApprove,
	{ResourcePayouts, ActionApprove, false}: catalog.PermPayoutsApprove,

	{ResourceBrands, ActionView, true}:  catalog.PermBrandsView,
	{ResourceBrands, ActionView, false}: catalog.PermBrandsView,
	{ResourceBrands, ActionEdit, true}:  catalog.PermBrandsEdit,
	{ResourceBrands, ActionEdit, false}: catalog.PermBrandsEdit,
}

type relationshipRule struct {
	resource string
	action   Action
}

// relationshipTable lists the base roles whose relationship to a resource
// (team membership, co-ownership) grants the action without an explicit
// permission. Small and static on purpose.
var relationshipTable = map[relationshipRule][]catalog.Role{
	{ResourceProjects, ActionView}: {catalog.RoleBrand, catalog.RoleViewer},
	{ResourceIPAssets, ActionView}: {catalog.RoleBrand},
	{ResourceLicenses, ActionView}: {catalog.RoleBrand, catalog.RoleCreator},
}

// AccessEvaluator layers ownership and relationship facts on top of the
// resolver for resource-scoped decisions.
type AccessEvaluator struct {
	resolver *Resolver
	data     ResourceData
	logger   *slog.Logger
}

// NewAccessEvaluator constructs an AccessEvaluator.
func NewAccessEvaluator(resolver *Resolver, data ResourceData, logger *slog.Logger) *AccessEvaluator {
	return &AccessEvaluator{resolver: resolver, data: data, logger: logger}
}

// CanAccess decides whether the user may perform the action on the resource.
// ADMIN bypasses everything else; otherwise the decision is the mapped
// permission OR a relationship grant. Errors mean the decision could not be
// made and the caller must fail closed.
func (e *AccessEvaluator) CanAccess(ctx context.Context, userID int64, resourceType string, resourceID int64, action Action) (bool, error) {
	role, err := e.resolver.BaseRole(ctx, userID)
	if err != nil {
		return false, err
	}
	if role == catalog.RoleAdmin {
		return true, nil
	}

	owned, err := e.data.IsOwner(ctx, userID, resourceType, resourceID)
	if err != nil {
		return false, fmt.Errorf("authz: ownership lookup: %w", err)
	}
	perm, mapped := accessTable[accessRule{resourceType, action, owned}]
	if !mapped {
		// Unknown resource/action combinations deny outright.
		return false, nil
	}
	ok, err := e.resolver.HasPermission(ctx, userID, perm)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	eligible, ruleExists := relationshipTable[relationshipRule{resourceType, action}]
	if !ruleExists {
		return false, nil
	}
	roleEligible := false
	for _, r := range eligible {
		if r == role {
			roleEligible = true
			break
		}
	}
	if !roleEligible {
		return false, nil
	}
	related, err := e.data.HasRelationship(ctx, userID, resourceType, resourceID)
	if err != nil {
		return false, fmt.Errorf("authz: relationship lookup: %w", err)
	}
	return related, nil
}
