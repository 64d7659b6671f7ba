package utils

import (
	"strings"

	"p9e.in/zeladoria/models"
)

// Permissions used by the API, "resource:action".
const (
	PermReportRead     = "report:read"
	PermReportCreate   = "report:create"
	PermReportUpdate   = "report:update"
	PermReportStatus   = "report:status"
	PermReportDelete   = "report:delete"
	PermReportExport   = "report:export"
	PermTrackingCreate = "tracking:create"
	PermTrackingRead   = "tracking:read"
	PermTrackingDelete = "tracking:delete"
	PermAreaManage     = "area:manage"
)

// RolePermissions grants permission patterns per role. Patterns may use
// "*" for the resource or the action.
var RolePermissions = map[string][]string{
	models.RoleAdmin: {"*:*"},
	models.RoleSupervisor: {
		"report:*",
		PermTrackingRead,
	},
	models.RoleAgent: {
		PermReportRead,
		PermReportCreate,
		PermReportUpdate,
		PermReportStatus,
		PermTrackingCreate,
		PermTrackingRead,
		PermTrackingDelete,
	},
}

// Can reports whether role holds perm.
func Can(role, perm string) bool {
	for _, p := range RolePermissions[role] {
		if MatchesPermission(p, perm) {
			return true
		}
	}
	return false
}

// MatchesPermission checks a granted pattern against a required permission.
//
//   - "*:*" or "*" matches everything
//   - "report:*" matches every action on reports
//   - "*:read" matches read on every resource
//
// Anything without a colon only matches exactly.
func MatchesPermission(granted, required string) bool {
	if granted == required {
		return true
	}
	if granted == "*:*" || granted == "*" {
		return required != ""
	}

	g := strings.SplitN(granted, ":", 2)
	r := strings.SplitN(required, ":", 2)
	if len(g) < 2 || len(r) < 2 {
		return false
	}
	return (g[0] == "*" || g[0] == r[0]) && (g[1] == "*" || g[1] == r[1])
}
