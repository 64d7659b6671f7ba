package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/apex/log"
	"github.com/paulmach/orb/geojson"
	"p9e.in/zeladoria/areas"
	"p9e.in/zeladoria/export"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/pkg/reportquery"
	"p9e.in/zeladoria/utils"
)

type statsResponse struct {
	reportquery.Stats
	ByType []reportquery.TypeCount `json:"byType"`
}

// ReportStats is the dashboard summary of the caller's reports. The list
// filters apply, so the UI can show counts for the current view.
func (h *Handler) ReportStats(w http.ResponseWriter, r *http.Request) {
	reports, code, err := h.filteredReports(r)
	if err != nil {
		respondFilterError(w, "stats", code, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:  reportquery.ComputeStats(reports),
		ByType: reportquery.CountByType(reports),
	})
}

// ReportMap returns the located reports as a GeoJSON FeatureCollection.
// bbox=minLng,minLat,maxLng,maxLat narrows to the viewport and area=<name>
// to one service area.
func (h *Handler) ReportMap(w http.ResponseWriter, r *http.Request) {
	reports, code, err := h.filteredReports(r)
	if err != nil {
		respondFilterError(w, "map", code, err)
		return
	}

	if s := r.URL.Query().Get("bbox"); s != "" {
		b, err := utils.ParseBBox(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reports = reportquery.WithinBounds(reports, b)
	}

	var known []areas.Area
	if h.Areas != nil {
		known, err = h.Areas.List(r.Context())
		if err != nil {
			storeError(w, "areas", err)
			return
		}
	}
	if name := r.URL.Query().Get("area"); name != "" {
		var match *areas.Area
		for i := range known {
			if strings.EqualFold(known[i].Name, name) {
				match = &known[i]
				break
			}
		}
		if match == nil {
			http.Error(w, "unknown area", http.StatusNotFound)
			return
		}
		reports = areas.Within(reports, *match)
	}

	fc := geojson.NewFeatureCollection()
	for _, rep := range reports {
		if rep.Coordinates == nil {
			continue
		}
		f := geojson.NewFeature(utils.Point(*rep.Coordinates))
		f.ID = rep.ID
		f.Properties["id"] = rep.ID
		f.Properties["type"] = rep.Type
		f.Properties["status"] = string(rep.Status)
		f.Properties["address"] = rep.Address
		f.Properties["createdAt"] = stamp(rep.CreatedAt.Time())
		if a := areas.Locate(known, *rep.Coordinates); a != "" {
			f.Properties["area"] = a
		}
		fc.Append(f)
	}

	w.Header().Set("Content-Type", "application/geo+json")
	data, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, "failed to encode map", http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

// ExportReports downloads the filtered list as xlsx (default) or csv.
func (h *Handler) ExportReports(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		http.Error(w, "format must be xlsx or csv", http.StatusBadRequest)
		return
	}

	reports, code, err := h.filteredReports(r)
	if err != nil {
		respondFilterError(w, "export", code, err)
		return
	}

	now := h.now()
	var buf bytes.Buffer
	var contentType string
	switch format {
	case "csv":
		err = export.WriteCSV(&buf, reports)
		contentType = "text/csv; charset=utf-8"
	default:
		err = export.WriteXLSX(&buf, "Relatório de ocorrências", reports, now)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		log.WithError(err).WithField("format", format).Error("export failed")
		http.Error(w, "failed to generate export", http.StatusInternalServerError)
		return
	}

	filename := export.Filename("ocorrencias", format, now)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// reportsIn is used by the area endpoint: scoped reports inside a.
func (h *Handler) reportsIn(r *http.Request, a areas.Area) ([]models.Report, error) {
	visible, err := h.scopedReports(r)
	if err != nil {
		return nil, err
	}
	return areas.Within(visible, a), nil
}
