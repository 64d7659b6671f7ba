package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"p9e.in/zeladoria/models"
)

var (
	once sync.Once

	// HTTPRequests counts handled requests by route template and status code.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zeladoria",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests, labeled by method, route template and status code.",
	}, []string{"method", "route", "status"})

	// HTTPDuration is the handler latency per route template.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zeladoria",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP handler latency in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})

	// StoreOperations counts report CRUD calls by outcome.
	StoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zeladoria",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Report store operations, labeled by op and result (ok, not_found, error, unavailable).",
	}, []string{"op", "result"})

	// Reports is the current number of reports per status.
	Reports = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "zeladoria",
		Name:      "reports",
		Help:      "Reports currently held by the store, labeled by status.",
	}, []string{"status"})

	// LiveClients is the number of connected websocket clients.
	LiveClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zeladoria",
		Subsystem: "live",
		Name:      "clients",
		Help:      "Connected websocket clients.",
	})
)

// Register registers the collectors with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequests,
			HTTPDuration,
			StoreOperations,
			Reports,
			LiveClients,
		)
	})
}

// SetReportGauges refreshes the per-status gauge from a full list.
func SetReportGauges(reports []models.Report) {
	counts := make(map[models.ReportStatus]int, len(models.Statuses))
	for _, r := range reports {
		counts[r.Status]++
	}
	SetReportCounts(counts)
}

// SetReportCounts sets the per-status gauge from precomputed counts. Missing
// statuses are set to zero.
func SetReportCounts(counts map[models.ReportStatus]int) {
	for _, st := range models.Statuses {
		Reports.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}
