package utils

import (
	"testing"

	"p9e.in/zeladoria/models"
)

func TestMatchesPermission(t *testing.T) {
	tests := []struct {
		name     string
		granted  string
		required string
		expected bool
	}{
		// Exact matches
		{"exact match", "report:read", "report:read", true},
		{"different action", "report:read", "report:delete", false},
		{"different resource", "report:read", "tracking:read", false},

		// Full wildcard
		{"full wildcard *:*", "*:*", "report:delete", true},
		{"full wildcard *", "*", "area:manage", true},
		{"full wildcard needs a permission", "*:*", "", false},

		// Resource wildcard
		{"resource wildcard matches export", "report:*", "report:export", true},
		{"resource wildcard matches status", "report:*", "report:status", true},
		{"resource wildcard other resource", "report:*", "tracking:read", false},

		// Action wildcard
		{"action wildcard reports", "*:read", "report:read", true},
		{"action wildcard tracking", "*:read", "tracking:read", true},
		{"action wildcard other action", "*:read", "report:create", false},

		// Edge cases
		{"both empty", "", "", true},
		{"empty granted", "", "report:read", false},
		{"single part", "admin", "admin", true},
		{"single part vs pair", "admin", "admin:read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchesPermission(tt.granted, tt.required)
			if result != tt.expected {
				t.Errorf("MatchesPermission(%q, %q) = %v, expected %v",
					tt.granted, tt.required, result, tt.expected)
			}
		})
	}
}

func TestCan(t *testing.T) {
	tests := []struct {
		role     string
		perm     string
		expected bool
	}{
		{models.RoleAdmin, PermReportDelete, true},
		{models.RoleAdmin, PermAreaManage, true},
		{models.RoleSupervisor, PermReportDelete, true},
		{models.RoleSupervisor, PermReportExport, true},
		{models.RoleSupervisor, PermTrackingRead, true},
		{models.RoleSupervisor, PermTrackingCreate, false},
		{models.RoleSupervisor, PermAreaManage, false},
		{models.RoleAgent, PermReportCreate, true},
		{models.RoleAgent, PermReportStatus, true},
		{models.RoleAgent, PermReportDelete, false},
		{models.RoleAgent, PermReportExport, false},
		{"visitor", PermReportRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+" "+tt.perm, func(t *testing.T) {
			if got := Can(tt.role, tt.perm); got != tt.expected {
				t.Errorf("Can(%q, %q) = %v, expected %v", tt.role, tt.perm, got, tt.expected)
			}
		})
	}
}

func BenchmarkMatchesPermission(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("report:*", "report:export")
	}
}
