package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/apex/log"
	"github.com/gorilla/mux"
	"p9e.in/zeladoria/areas"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/pkg/reportquery"
)

// ListAreas returns the service areas as GeoJSON.
func (h *Handler) ListAreas(w http.ResponseWriter, r *http.Request) {
	list, err := h.Areas.List(r.Context())
	if err != nil {
		storeError(w, "areas", err)
		return
	}
	data, err := areas.FeatureCollection(list).MarshalJSON()
	if err != nil {
		http.Error(w, "failed to encode areas", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

func (h *Handler) importLimit() int64 {
	if h.ImportLimit > 0 {
		return h.ImportLimit
	}
	return areas.MaxKMLSize
}

// ImportAreas replaces the service areas with the polygons of an uploaded
// KMZ or KML file (multipart field "file").
func (h *Handler) ImportAreas(w http.ResponseWriter, r *http.Request) {
	limit := h.importLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "bad multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}
	parsed, err := areas.ParseKMZ(data)
	if errors.Is(err, areas.ErrTooLarge) {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Areas.Replace(r.Context(), parsed); err != nil {
		storeError(w, "areas", err)
		return
	}
	log.WithField("file", header.Filename).WithField("areas", len(parsed)).Info("service areas imported")
	writeJSON(w, http.StatusCreated, map[string]any{"imported": len(parsed), "areas": parsed})
}

type areaReportsResponse struct {
	Area    string            `json:"area"`
	Stats   reportquery.Stats `json:"stats"`
	Reports []models.Report   `json:"reports"`
}

// AreaReports lists the caller's reports located inside one area.
func (h *Handler) AreaReports(w http.ResponseWriter, r *http.Request) {
	a, found, err := h.Areas.Find(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		storeError(w, "areas", err)
		return
	}
	if !found {
		http.Error(w, "unknown area", http.StatusNotFound)
		return
	}
	inside, err := h.reportsIn(r, a)
	if err != nil {
		storeError(w, "areas", err)
		return
	}
	inside = reportquery.Sort(inside, reportquery.NewestFirst)
	writeJSON(w, http.StatusOK, areaReportsResponse{
		Area:    a.Name,
		Stats:   reportquery.ComputeStats(inside),
		Reports: inside,
	})
}
