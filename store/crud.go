package store

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"p9e.in/zeladoria/metrics"
	"p9e.in/zeladoria/models"
)

// Repository is the CRUD surface shared by the in-memory Store and the
// relational backend.
type Repository interface {
	List(ctx context.Context) ([]models.Report, error)
	Add(ctx context.Context, draft models.Report) (models.Report, error)
	Get(ctx context.Context, id int) (models.Report, bool, error)
	Update(ctx context.Context, id int, patch models.ReportPatch) (models.Report, bool, error)
	UpdateStatus(ctx context.Context, id int, status models.ReportStatus, res *models.ResolutionInput) (bool, error)
	Delete(ctx context.Context, id int) (bool, error)
}

var _ Repository = (*Store)(nil)

func observe(op string, err error, found bool) {
	result := "ok"
	switch {
	case err != nil && isUnavailable(err):
		result = "unavailable"
	case err != nil:
		result = "error"
	case !found:
		result = "not_found"
	}
	metrics.StoreOperations.WithLabelValues(op, result).Inc()
}

// NextID is one more than the highest id in reports, or 1 for an empty list.
func NextID(reports []models.Report) int {
	maxID := 0
	for _, r := range reports {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID + 1
}

// NewReport normalizes a caller draft into a freshly created report: status
// Pendente, no resolution, creation stamp set.
func NewReport(draft models.Report, id int, created models.JSONTime) models.Report {
	r := draft.Clone()
	r.ID = id
	r.CreatedAt = created
	r.UpdatedAt = nil
	r.Status = models.StatusPending
	r.Resolution = nil
	if r.Photos == nil {
		r.Photos = []string{}
	}
	return r
}

// Add appends draft with the next id and returns the stored copy.
func (s *Store) Add(ctx context.Context, draft models.Report) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := NewReport(draft, NextID(s.reports), s.stamp())

	next := make([]models.Report, 0, len(s.reports)+1)
	next = append(next, s.reports...)
	next = append(next, r)

	err := s.replaceLocked(ctx, next)
	observe("add", err, true)
	if err != nil {
		return models.Report{}, fmt.Errorf("add report: %w", err)
	}
	log.WithField("id", r.ID).WithField("type", r.Type).Info("report created")
	return r.Clone(), nil
}

// Get finds a report by id.
func (s *Store) Get(_ context.Context, id int) (models.Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reports {
		if r.ID == id {
			observe("get", nil, true)
			return r.Clone(), true, nil
		}
	}
	observe("get", nil, false)
	return models.Report{}, false, nil
}

// UpdateStatus moves a report to status and stamps updatedAt. Resolving with
// a resolution records it dated now; leaving Resolvido drops any resolution.
// It reports false when id does not exist.
func (s *Store) UpdateStatus(ctx context.Context, id int, status models.ReportStatus, res *models.ResolutionInput) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		observe("update_status", nil, false)
		log.WithField("id", id).Debug("status update for unknown report")
		return false, nil
	}

	now := s.stamp()
	next := models.CloneReports(s.reports)
	applyStatus(&next[idx], status, res, now)

	err := s.replaceLocked(ctx, next)
	observe("update_status", err, true)
	if err != nil {
		return false, fmt.Errorf("update report %d status: %w", id, err)
	}
	log.WithField("id", id).WithField("status", status).Info("report status changed")
	return true, nil
}

func applyStatus(r *models.Report, status models.ReportStatus, res *models.ResolutionInput, now models.JSONTime) {
	r.Status = status
	r.UpdatedAt = &now
	switch {
	case status == models.StatusResolved && res != nil:
		r.Resolution = &models.Resolution{
			Description: res.Description,
			Responsible: res.Responsible,
			Date:        now,
		}
	case status != models.StatusResolved:
		r.Resolution = nil
	}
}

// Update applies the editable fields of patch and stamps updatedAt.
func (s *Store) Update(ctx context.Context, id int, patch models.ReportPatch) (models.Report, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		observe("update", nil, false)
		return models.Report{}, false, nil
	}

	now := s.stamp()
	next := models.CloneReports(s.reports)
	patch.Apply(&next[idx])
	next[idx].UpdatedAt = &now

	err := s.replaceLocked(ctx, next)
	observe("update", err, true)
	if err != nil {
		return models.Report{}, false, fmt.Errorf("update report %d: %w", id, err)
	}
	return next[idx].Clone(), true, nil
}

// Delete removes a report. It reports false when id does not exist.
func (s *Store) Delete(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		if r.ID != id {
			next = append(next, r)
		}
	}
	if len(next) == len(s.reports) {
		observe("delete", nil, false)
		return false, nil
	}

	err := s.replaceLocked(ctx, next)
	observe("delete", err, true)
	if err != nil {
		return false, fmt.Errorf("delete report %d: %w", id, err)
	}
	log.WithField("id", id).Info("report deleted")
	return true, nil
}

func (s *Store) indexLocked(id int) int {
	for i, r := range s.reports {
		if r.ID == id {
			return i
		}
	}
	return -1
}
