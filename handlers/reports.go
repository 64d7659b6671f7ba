package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"p9e.in/zeladoria/live"
	"p9e.in/zeladoria/middleware"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/pkg/reportquery"
	"p9e.in/zeladoria/utils"
)

var errBadQuery = errors.New("bad query")

// parseCriteria reads the filter of the list, map and export views.
func parseCriteria(q url.Values) (reportquery.Criteria, error) {
	var c reportquery.Criteria

	status, err := reportquery.ParseStatusToken(q.Get("status"))
	if err != nil {
		return c, err
	}
	c.Status = status

	exact, keyword := q.Get("type"), q.Get("typeKeyword")
	if exact != "" && keyword != "" {
		return c, errors.New("use either type or typeKeyword")
	}
	if keyword != "" {
		c.Type = reportquery.TypeKeyword(keyword)
	} else {
		c.Type = reportquery.ExactType(exact)
	}

	c.Search = q.Get("q")

	if s := q.Get("dateStart"); s != "" {
		t, err := models.ParseTime(s)
		if err != nil {
			return c, errors.New("invalid dateStart")
		}
		c.DateStart = &t
	}
	if s := q.Get("dateEnd"); s != "" {
		t, err := models.ParseTime(s)
		if err != nil {
			return c, errors.New("invalid dateEnd")
		}
		c.DateEnd = &t
	}
	return c, nil
}

// positiveInt parses an optional positive query value; 0 means unset.
func positiveInt(q url.Values, key string) (int, error) {
	s := q.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errBadQuery
	}
	return n, nil
}

type listResponse struct {
	Data       []models.Report `json:"data"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
	StartIndex int             `json:"startIndex"`
	EndIndex   int             `json:"endIndex"`
}

// ListReports returns one page of the caller's reports after filtering.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	crit, err := parseCriteria(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, err := positiveInt(q, "page")
	if err != nil {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	perPage, err := positiveInt(q, "perPage")
	if err != nil {
		http.Error(w, "invalid perPage", http.StatusBadRequest)
		return
	}
	if perPage == 0 {
		perPage = h.pageSize()
	}

	visible, err := h.scopedReports(r)
	if err != nil {
		storeError(w, "list", err)
		return
	}
	matched := reportquery.Sort(reportquery.Filter(visible, crit), reportquery.ParseOrder(q.Get("order")))
	pg := reportquery.Paginate(matched, perPage, page)

	writeJSON(w, http.StatusOK, listResponse{
		Data:       pg.Items,
		Total:      pg.TotalItems,
		Page:       pg.CurrentPage,
		PageSize:   perPage,
		TotalPages: pg.TotalPages,
		StartIndex: pg.StartIndex,
		EndIndex:   pg.EndIndex,
	})
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	rep, found, err := h.scopedReport(r, id)
	if err != nil {
		storeError(w, "get", err)
		return
	}
	if !found {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type reportDraft struct {
	Type        string              `json:"type"`
	Description string              `json:"description"`
	Address     string              `json:"address"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`
	Photos      []string            `json:"photos"`
	Complainant *models.Complainant `json:"complainant,omitempty"`
}

// CreateReport files a new report on behalf of the calling agent.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var d reportDraft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	d.Type = strings.TrimSpace(d.Type)
	if d.Type == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}
	if d.Coordinates != nil {
		if err := utils.ValidateCoordinates(*d.Coordinates); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	created, err := h.Reports.Add(r.Context(), models.Report{
		Type:        d.Type,
		Description: d.Description,
		Address:     d.Address,
		Coordinates: d.Coordinates,
		Photos:      d.Photos,
		Complainant: d.Complainant,
		Agent:       middleware.GetAgent(r),
	})
	if err != nil {
		storeError(w, "add", err)
		return
	}
	log.WithField("id", created.ID).WithField("user", middleware.GetUserID(r)).Info("report created")
	h.publish(live.ReportEvent(live.Created, created, h.now()))
	writeJSON(w, http.StatusCreated, created)
}

// UpdateReport edits the descriptive fields of a report.
func (h *Handler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	var patch models.ReportPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if patch.Type != nil && strings.TrimSpace(*patch.Type) == "" {
		http.Error(w, "type cannot be empty", http.StatusBadRequest)
		return
	}
	if patch.Coordinates != nil && !patch.ClearCoordinates {
		if err := utils.ValidateCoordinates(*patch.Coordinates); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if _, found, err := h.scopedReport(r, id); err != nil {
		storeError(w, "update", err)
		return
	} else if !found {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}

	updated, found, err := h.Reports.Update(r.Context(), id, patch)
	if err != nil {
		storeError(w, "update", err)
		return
	}
	if !found {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	h.publish(live.ReportEvent(live.Updated, updated, h.now()))
	writeJSON(w, http.StatusOK, updated)
}

type statusRequest struct {
	Status     string                  `json:"status"`
	Resolution *models.ResolutionInput `json:"resolution,omitempty"`
}

// UpdateReportStatus moves a report through Pendente, Em andamento and
// Resolvido.
func (h *Handler) UpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	status, ok := models.ParseStatus(req.Status)
	if !ok {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	if _, found, err := h.scopedReport(r, id); err != nil {
		storeError(w, "status", err)
		return
	} else if !found {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}

	found, err := h.Reports.UpdateStatus(r.Context(), id, status, req.Resolution)
	if err != nil {
		storeError(w, "status", err)
		return
	}
	if !found {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	updated, found, err := h.Reports.Get(r.Context(), id)
	if err != nil || !found {
		// deleted between the two calls; the status change itself succeeded
		w.WriteHeader(http.StatusNoContent)
		return
	}
	log.WithField("id", id).WithField("status", string(status)).Info("report status changed")
	h.publish(live.ReportEvent(live.Updated, updated, h.now()))
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	rep, found, err := h.scopedReport(r, id)
	if err != nil {
		storeError(w, "delete", err)
		return
	}
	if !found {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}

	found, err = h.Reports.Delete(r.Context(), id)
	if err != nil {
		storeError(w, "delete", err)
		return
	}
	if !found {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	log.WithField("id", id).WithField("user", middleware.GetUserID(r)).Info("report deleted")
	h.publish(live.DeletedEvent(id, rep.GabineteID(), h.now()))
	w.WriteHeader(http.StatusNoContent)
}

// filteredReports is the scoped, filtered and ordered list shared by the
// stats, map and export endpoints.
func (h *Handler) filteredReports(r *http.Request) ([]models.Report, int, error) {
	crit, err := parseCriteria(r.URL.Query())
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	visible, err := h.scopedReports(r)
	if err != nil {
		return nil, 0, err
	}
	out := reportquery.Filter(visible, crit)
	return reportquery.Sort(out, reportquery.ParseOrder(r.URL.Query().Get("order"))), 0, nil
}

// respondFilterError writes the error of filteredReports.
func respondFilterError(w http.ResponseWriter, op string, code int, err error) {
	if code != 0 {
		http.Error(w, err.Error(), code)
		return
	}
	storeError(w, op, err)
}

// stamp formats t the way list clients expect it.
func stamp(t time.Time) string {
	return models.StampNow(t).String()
}
