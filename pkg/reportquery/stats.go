package reportquery

import (
	"sort"

	"p9e.in/zeladoria/models"
)

// Stats are the dashboard counters.
type Stats struct {
	TotalReports      int `json:"totalReports"`
	PendingReports    int `json:"pendingReports"`
	InProgressReports int `json:"inProgressReports"`
	ResolvedReports   int `json:"resolvedReports"`
}

// ComputeStats counts reports by status in one pass.
func ComputeStats(reports []models.Report) Stats {
	s := Stats{TotalReports: len(reports)}
	for i := range reports {
		switch reports[i].Status {
		case models.StatusPending:
			s.PendingReports++
		case models.StatusInProgress:
			s.InProgressReports++
		case models.StatusResolved:
			s.ResolvedReports++
		}
	}
	return s
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// CountByType groups reports by type, most frequent first, then by name.
func CountByType(reports []models.Report) []TypeCount {
	counts := make(map[string]int)
	for i := range reports {
		counts[reports[i].Type]++
	}
	out := make([]TypeCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TypeCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}
