// Package handlers holds the HTTP handlers of the report API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/mux"
	"p9e.in/zeladoria/accounts"
	"p9e.in/zeladoria/areas"
	"p9e.in/zeladoria/live"
	"p9e.in/zeladoria/middleware"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/photos"
	"p9e.in/zeladoria/pkg/reportquery"
	"p9e.in/zeladoria/storage"
	"p9e.in/zeladoria/store"
	"p9e.in/zeladoria/tracking"
)

// Handler carries the services every endpoint needs. main builds one and
// routes mounts its methods.
type Handler struct {
	Reports        store.Repository
	Accounts       *accounts.Service
	Tokens         *middleware.Tokens
	Tracker        *tracking.Tracker
	Photos         photos.Store
	Areas          *areas.Registry
	Events         live.Publisher
	Hub            *live.Hub
	PageSize       int
	ImportLimit    int64  // area import body cap; areas.MaxKMLSize when zero
	SignupGabinete string // assigned to every public sign-up
	Now            func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) pageSize() int {
	if h.PageSize > 0 {
		return h.PageSize
	}
	return reportquery.DefaultPageSize
}

func (h *Handler) publish(e live.Event) {
	if h.Events != nil {
		h.Events.Publish(e)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}

// storeError maps a persistence failure to a response.
func storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrUnavailable):
		log.WithError(err).WithField("op", op).Error("storage unavailable")
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
	default:
		log.WithError(err).WithField("op", op).Error("store failure")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func reportID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// scopedReports is the caller's gabinete view of the whole store.
func (h *Handler) scopedReports(r *http.Request) ([]models.Report, error) {
	all, err := h.Reports.List(r.Context())
	if err != nil {
		return nil, err
	}
	return reportquery.VisibleTo(all, middleware.GetViewer(r)), nil
}

// scopedReport loads one report and hides it when the caller's gabinete may
// not see it.
func (h *Handler) scopedReport(r *http.Request, id int) (models.Report, bool, error) {
	rep, found, err := h.Reports.Get(r.Context(), id)
	if err != nil || !found {
		return rep, found, err
	}
	if !reportquery.CanSee(middleware.GetViewer(r), &rep) {
		return models.Report{}, false, nil
	}
	return rep, true, nil
}

// Health answers the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
