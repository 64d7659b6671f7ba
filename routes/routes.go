package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"p9e.in/zeladoria/handlers"
	"p9e.in/zeladoria/middleware"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/utils"
)

// Options are the router settings that do not belong to a handler.
type Options struct {
	// UploadDir is served under /uploads/ when photos are stored locally.
	UploadDir string
	// LoginPerMinute bounds /login and /register attempts per client IP.
	LoginPerMinute int
	// TrustedProxies may report the client IP in forwarding headers.
	TrustedProxies middleware.TrustedProxies
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(h *handlers.Handler, opts Options) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	limiter := middleware.NewRateLimiter(opts.LoginPerMinute).TrustProxies(opts.TrustedProxies)
	r.Handle("/register", limiter.Middleware(http.HandlerFunc(h.Register))).Methods("POST")
	r.Handle("/login", limiter.Middleware(http.HandlerFunc(h.Login))).Methods("POST")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	if opts.UploadDir != "" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))),
		)
	}

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.Tokens.JWT)

	api.HandleFunc("/me", h.CurrentUser).Methods("GET")
	api.Handle("/users", middleware.RequireRole([]string{models.RoleAdmin}, http.HandlerFunc(h.CreateUser))).Methods("POST")

	registerReportRoutes(api, h)
	registerTrackingRoutes(api, h)
	registerAreaRoutes(api, h)

	api.Handle("/uploads", permit(utils.PermReportCreate, h.UploadPhoto)).Methods("POST")
	api.Handle("/live", permit(utils.PermReportRead, h.Live)).Methods("GET")

	return r
}

func permit(perm string, fn http.HandlerFunc) http.Handler {
	return middleware.RequirePermission(perm)(fn)
}

func registerReportRoutes(api *mux.Router, h *handlers.Handler) {
	reports := api.PathPrefix("/reports").Subrouter()

	reports.Handle("", permit(utils.PermReportRead, h.ListReports)).Methods("GET")
	reports.Handle("", permit(utils.PermReportCreate, h.CreateReport)).Methods("POST")
	reports.Handle("/stats", permit(utils.PermReportRead, h.ReportStats)).Methods("GET")
	reports.Handle("/map", permit(utils.PermReportRead, h.ReportMap)).Methods("GET")
	reports.Handle("/export", permit(utils.PermReportExport, h.ExportReports)).Methods("GET")

	reports.Handle("/{id:[0-9]+}", permit(utils.PermReportRead, h.GetReport)).Methods("GET")
	reports.Handle("/{id:[0-9]+}", permit(utils.PermReportUpdate, h.UpdateReport)).Methods("PUT")
	reports.Handle("/{id:[0-9]+}/status", permit(utils.PermReportStatus, h.UpdateReportStatus)).Methods("PATCH")
	reports.Handle("/{id:[0-9]+}", permit(utils.PermReportDelete, h.DeleteReport)).Methods("DELETE")
}

func registerTrackingRoutes(api *mux.Router, h *handlers.Handler) {
	api.Handle("/tracking/points", permit(utils.PermTrackingCreate, h.RecordPoint)).Methods("POST")
	api.Handle("/tracking/{agentId}", permit(utils.PermTrackingRead, h.GetRoute)).Methods("GET")
	api.Handle("/tracking/{agentId}", permit(utils.PermTrackingDelete, h.ClearRoute)).Methods("DELETE")
}

func registerAreaRoutes(api *mux.Router, h *handlers.Handler) {
	api.Handle("/areas", permit(utils.PermReportRead, h.ListAreas)).Methods("GET")
	api.Handle("/areas", permit(utils.PermAreaManage, h.ImportAreas)).Methods("POST")
	api.Handle("/areas/{name}/reports", permit(utils.PermReportRead, h.AreaReports)).Methods("GET")
}
