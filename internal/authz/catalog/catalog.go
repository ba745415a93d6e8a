package catalog

// Role is the coarse account classification. Every user has exactly one.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleCreator Role = "CREATOR"
	RoleBrand   Role = "BRAND"
	RoleViewer  Role = "VIEWER"
)

// Valid reports whether the role is one of the known classifications.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCreator, RoleBrand, RoleViewer:
		return true
	}
	return false
}

// Department scopes an administrative role assignment.
type Department string

const (
	DeptSuperAdmin Department = "SUPER_ADMIN"
	DeptFinance    Department = "FINANCE"
	DeptContent    Department = "CONTENT"
	DeptLegal      Department = "LEGAL"
	DeptSupport    Department = "SUPPORT"
	DeptContractor Department = "CONTRACTOR"
)

// Seniority gates escalation and approval authority within a department.
type Seniority string

const (
	SeniorityJunior Seniority = "JUNIOR"
	SenioritySenior Seniority = "SENIOR"
	SeniorityNone   Seniority = ""
)

// IP asset permissions.
const (
	PermIPAssetsViewPublic Permission = "ip_assets.view_public"
	PermIPAssetsViewOwn    Permission = "ip_assets.view_own"
	PermIPAssetsViewAll    Permission = "ip_assets.view_all"
	PermIPAssetsCreate     Permission = "ip_assets.create"
	PermIPAssetsEditOwn    Permission = "ip_assets.edit_own"
	PermIPAssetsEditAll    Permission = "ip_assets.edit_all"
	PermIPAssetsDeleteOwn  Permission = "ip_assets.delete_own"
	PermIPAssetsDeleteAll  Permission = "ip_assets.delete_all"
	PermIPAssetsPublish    Permission = "ip_assets.publish"
	PermIPAssetsTransfer   Permission = "ip_assets.transfer_ownership"
)

// License permissions.
const (
	PermLicensesViewOwn   Permission = "licenses.view_own"
	PermLicensesViewAll   Permission = "licenses.view_all"
	PermLicensesCreate    Permission = "licenses.create"
	PermLicensesEditOwn   Permission = "licenses.edit_own"
	PermLicensesEditAll   Permission = "licenses.edit_all"
	PermLicensesApprove   Permission = "licenses.approve"
	PermLicensesTerminate Permission = "licenses.terminate"
)

// Royalty and payout permissions.
const (
	PermRoyaltiesViewOwn   Permission = "royalties.view_own"
	PermRoyaltiesViewAll   Permission = "royalties.view_all"
	PermRoyaltiesConfigure Permission = "royalties.configure"

	PermPayoutsViewOwn  Permission = "payouts.view_own"
	PermPayoutsViewAll  Permission = "payouts.view_all"
	PermPayoutsInitiate Permission = "payouts.initiate"
	PermPayoutsApprove  Permission = "payouts.approve"
)

// User, brand and project permissions.
const (
	PermUsersView    Permission = "users.view"
	PermUsersEdit    Permission = "users.edit"
	PermUsersSuspend Permission = "users.suspend"
	PermUsersDelete  Permission = "users.delete"

	PermBrandsView       Permission = "brands.view"
	PermBrandsEdit       Permission = "brands.edit"
	PermBrandsManageTeam Permission = "brands.manage_team"

	PermProjectsView    Permission = "projects.view"
	PermProjectsCreate  Permission = "projects.create"
	PermProjectsEdit    Permission = "projects.edit"
	PermProjectsApprove Permission = "projects.approve"
)

// Platform administration permissions.
const (
	PermAdminRolesView   Permission = "admin_roles.view"
	PermAdminRolesCreate Permission = "admin_roles.create"
	PermAdminRolesEdit   Permission = "admin_roles.edit"
	PermAdminRolesRevoke Permission = "admin_roles.revoke"

	PermAuditView Permission = "audit.view"
)

// Template describes the permission grants for one department.
// Base applies to every effective assignment in the department; Senior is
// additionally granted at SENIOR seniority. Allowed bounds which custom
// permissions an assignment may carry on top of its template. Critical
// permissions may never be removed from an assignment once granted.
type Template struct {
	Base     []Permission
	Senior   []Permission
	Allowed  []Permission
	Critical []Permission
}

// Catalog is the static registry of permissions, role base sets, department
// templates and the implication hierarchy.
type Catalog struct {
	hierarchy map[Permission][]Permission
	roleSets  map[Role][]Permission
	templates map[Department]Template
}

// Default returns the platform catalog.
func Default() *Catalog {
	return &Catalog{
		hierarchy: defaultHierarchy(),
		roleSets:  defaultRoleSets(),
		templates: defaultTemplates(),
	}
}

// BaseRolePermissions returns the permission set granted by a base role.
func (c *Catalog) BaseRolePermissions(r Role) ([]Permission, bool) {
	perms, ok := c.roleSets[r]
	return perms, ok
}

// TemplatePermissions returns the template grants for a department at the
// given seniority. SENIOR receives the base set plus the senior extension.
func (c *Catalog) TemplatePermissions(d Department, s Seniority) ([]Permission, bool) {
	tpl, ok := c.templates[d]
	if !ok {
		return nil, false
	}
	perms := make([]Permission, 0, len(tpl.Base)+len(tpl.Senior))
	perms = append(perms, tpl.Base...)
	if s == SenioritySenior {
		perms = append(perms, tpl.Senior...)
	}
	return perms, true
}

// AllowedForDepartment returns the set of permissions an assignment in the
// department may carry, template grants included.
func (c *Catalog) AllowedForDepartment(d Department) (Set, bool) {
	tpl, ok := c.templates[d]
	if !ok {
		return nil, false
	}
	allowed := NewSet(tpl.Base...)
	allowed.Union(NewSet(tpl.Senior...))
	allowed.Union(NewSet(tpl.Allowed...))
	return allowed, true
}

// CriticalForDepartment returns permissions that must not be removed from an
// existing assignment in the department.
func (c *Catalog) CriticalForDepartment(d Department) []Permission {
	return c.templates[d].Critical
}

// KnownDepartment reports whether a department has a registered template.
func (c *Catalog) KnownDepartment(d Department) bool {
	_, ok := c.templates[d]
	return ok
}

// Hierarchy exposes the direct implication edges.
func (c *Catalog) Hierarchy() map[Permission][]Permission {
	return c.hierarchy
}

func defaultHierarchy() map[Permission][]Permission {
	return map[Permission][]Permission{
		PermIPAssetsViewOwn:   {PermIPAssetsViewPublic},
		PermIPAssetsViewAll:   {PermIPAssetsViewOwn},
		PermIPAssetsEditOwn:   {PermIPAssetsViewOwn},
		PermIPAssetsEditAll:   {PermIPAssetsEditOwn, PermIPAssetsViewAll},
		PermIPAssetsDeleteOwn: {PermIPAssetsEditOwn},
		PermIPAssetsDeleteAll: {PermIPAssetsDeleteOwn, PermIPAssetsEditAll},
		PermIPAssetsPublish:   {PermIPAssetsViewAll},
		PermIPAssetsTransfer:  {PermIPAssetsViewAll},

		PermLicensesViewAll:   {PermLicensesViewOwn},
		PermLicensesEditOwn:   {PermLicensesViewOwn},
		PermLicensesEditAll:   {PermLicensesEditOwn, PermLicensesViewAll},
		PermLicensesApprove:   {PermLicensesViewAll},
		PermLicensesTerminate: {PermLicensesViewAll},

		PermRoyaltiesViewAll:   {PermRoyaltiesViewOwn},
		PermRoyaltiesConfigure: {PermRoyaltiesViewAll},

		PermPayoutsViewAll:  {PermPayoutsViewOwn},
		PermPayoutsInitiate: {PermPayoutsViewAll},
		PermPayoutsApprove:  {PermPayoutsViewAll},

		PermUsersEdit:    {PermUsersView},
		PermUsersSuspend: {PermUsersView},
		PermUsersDelete:  {PermUsersEdit},

		PermBrandsEdit:       {PermBrandsView},
		PermBrandsManageTeam: {PermBrandsView},

		PermProjectsEdit:    {PermProjectsView},
		PermProjectsApprove: {PermProjectsView},

		PermAdminRolesCreate: {PermAdminRolesView},
		PermAdminRolesEdit:   {PermAdminRolesView},
		PermAdminRolesRevoke: {PermAdminRolesView},
	}
}

func defaultRoleSets() map[Role][]Permission {
	return map[Role][]Permission{
		RoleViewer: {
			PermIPAssetsViewPublic,
		},
		RoleCreator: {
			PermIPAssetsViewPublic,
			PermIPAssetsCreate,
			PermIPAssetsEditOwn,
			PermIPAssetsDeleteOwn,
			PermLicensesViewOwn,
			PermRoyaltiesViewOwn,
			PermPayoutsViewOwn,
			PermProjectsView,
		},
		RoleBrand: {
			PermIPAssetsViewPublic,
			PermLicensesViewOwn,
			PermLicensesCreate,
			PermBrandsView,
			PermProjectsView,
			PermProjectsCreate,
		},
		RoleAdmin: {
			PermUsersView,
			PermAuditView,
			PermIPAssetsViewAll,
			PermLicensesViewAll,
			PermAdminRolesView,
		},
	}
}

func defaultTemplates() map[Department]Template {
	return map[Department]Template{
		DeptSuperAdmin: {
			Base:     []Permission{Wildcard},
			Critical: []Permission{Wildcard},
		},
		DeptFinance: {
			Base:     []Permission{PermPayoutsViewAll, PermRoyaltiesViewAll},
			Senior:   []Permission{PermPayoutsInitiate, PermPayoutsApprove, PermRoyaltiesConfigure},
			Allowed:  []Permission{PermLicensesViewAll, PermAuditView},
			Critical: []Permission{PermPayoutsViewAll},
		},
		DeptContent: {
			Base:     []Permission{PermIPAssetsViewAll, PermIPAssetsEditAll},
			Senior:   []Permission{PermIPAssetsPublish, PermIPAssetsDeleteAll},
			Allowed:  []Permission{PermProjectsEdit, PermProjectsApprove},
			Critical: []Permission{PermIPAssetsViewAll},
		},
		DeptLegal: {
			Base:     []Permission{PermLicensesViewAll},
			Senior:   []Permission{PermLicensesApprove, PermLicensesTerminate, PermIPAssetsTransfer},
			Allowed:  []Permission{PermIPAssetsViewAll, PermAuditView},
			Critical: []Permission{PermLicensesViewAll},
		},
		DeptSupport: {
			Base:     []Permission{PermUsersView, PermBrandsView},
			Senior:   []Permission{PermUsersEdit, PermUsersSuspend},
			Allowed:  []Permission{PermProjectsView, PermLicensesViewOwn},
			Critical: []Permission{PermUsersView},
		},
		DeptContractor: {
			Base:    []Permission{PermIPAssetsViewPublic, PermProjectsView},
			Allowed: []Permission{PermIPAssetsViewOwn, PermLicensesViewOwn},
		},
	}
}
