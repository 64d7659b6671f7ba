package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb/geojson"
	"p9e.in/zeladoria/middleware"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/tracking"
)

// RecordPoint appends a GPS fix to the calling agent's route.
func (h *Handler) RecordPoint(w http.ResponseWriter, r *http.Request) {
	var p models.TrackPoint
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	saved, err := h.Tracker.Record(r.Context(), middleware.GetUserID(r), p)
	if errors.Is(err, tracking.ErrInvalidPoint) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		storeError(w, "track", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// mayAccessRoute: agents only reach their own route.
func mayAccessRoute(r *http.Request, agentID string) bool {
	if middleware.GetUserID(r) == agentID {
		return true
	}
	role := middleware.GetRole(r)
	return role == models.RoleAdmin || role == models.RoleSupervisor
}

type routeResponse struct {
	tracking.Route
	Geometry *geojson.Geometry `json:"path"`
}

// GetRoute returns an agent's route history; ?date=YYYY-MM-DD keeps one day.
func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]
	if !mayAccessRoute(r, agentID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var day *time.Time
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = &d
	}

	route, err := h.Tracker.Route(r.Context(), agentID, day)
	if err != nil {
		storeError(w, "route", err)
		return
	}
	writeJSON(w, http.StatusOK, routeResponse{Route: route, Geometry: geojson.NewGeometry(route.Path)})
}

// ClearRoute deletes an agent's history. Only the agent or an admin may.
func (h *Handler) ClearRoute(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]
	if middleware.GetUserID(r) != agentID && middleware.GetRole(r) != models.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := h.Tracker.Clear(r.Context(), agentID); err != nil {
		storeError(w, "route", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
