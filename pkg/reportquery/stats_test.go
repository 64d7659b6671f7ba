package reportquery

import (
	"reflect"
	"testing"

	"p9e.in/zeladoria/models"
)

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name    string
		reports []models.Report
		want    Stats
	}{
		{"empty", nil, Stats{}},
		{"sample", sample(), Stats{TotalReports: 4, PendingReports: 2, InProgressReports: 1, ResolvedReports: 1}},
		{
			"unknown status only counts in total",
			[]models.Report{{Status: "Arquivado"}, {Status: models.StatusResolved}},
			Stats{TotalReports: 2, ResolvedReports: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeStats(tt.reports); got != tt.want {
				t.Errorf("ComputeStats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCountByType(t *testing.T) {
	reports := []models.Report{
		{Type: "Lixo acumulado"},
		{Type: "Buraco na via"},
		{Type: "Lixo acumulado"},
		{Type: "Árvore caída"},
		{Type: "Buraco na via"},
		{Type: "Lixo acumulado"},
	}
	want := []TypeCount{
		{"Lixo acumulado", 3},
		{"Buraco na via", 2},
		{"Árvore caída", 1},
	}
	if got := CountByType(reports); !reflect.DeepEqual(got, want) {
		t.Errorf("CountByType() = %v, want %v", got, want)
	}
}

func BenchmarkComputeStats(b *testing.B) {
	reports := make([]models.Report, 10000)
	for i := range reports {
		reports[i].Status = models.Statuses[i%len(models.Statuses)]
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputeStats(reports)
	}
}
