package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"p9e.in/zeladoria/metrics"
	"p9e.in/zeladoria/models"
)

// RelationalRepository keeps reports as rows of the reports table. Ids come
// from the serial primary key, so they are never reused after a delete.
type RelationalRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Repository = (*RelationalRepository)(nil)

func NewRelationalRepository(db *gorm.DB, opts ...Option) *RelationalRepository {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return &RelationalRepository{db: db, now: s.now}
}

func (r *RelationalRepository) List(ctx context.Context) ([]models.Report, error) {
	var rows []models.ReportRow
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out := make([]models.Report, 0, len(rows))
	for _, row := range rows {
		rep, err := row.ToReport()
		if err != nil {
			return nil, fmt.Errorf("decode report %d: %w", row.ID, err)
		}
		out = append(out, rep)
	}
	metrics.SetReportGauges(out)
	return out, nil
}

type statusCount struct {
	Status string
	Total  int
}

// refreshGauges recounts rows per status after a write. Errors are only logged.
func (r *RelationalRepository) refreshGauges(ctx context.Context) {
	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&models.ReportRow{}).
		Select("status, count(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		log.WithError(err).Warn("report gauge refresh failed")
		return
	}
	counts := make(map[models.ReportStatus]int, len(rows))
	for _, c := range rows {
		counts[models.ReportStatus(c.Status)] = c.Total
	}
	metrics.SetReportCounts(counts)
}

func (r *RelationalRepository) Add(ctx context.Context, draft models.Report) (models.Report, error) {
	rep := NewReport(draft, 0, models.StampNow(r.now()))
	row, err := models.ToRow(rep)
	if err != nil {
		return models.Report{}, fmt.Errorf("add report: %w", err)
	}
	err = r.db.WithContext(ctx).Create(&row).Error
	observe("add", err, true)
	if err != nil {
		return models.Report{}, fmt.Errorf("add report: %w", err)
	}
	rep.ID = row.ID
	r.refreshGauges(ctx)
	log.WithField("id", rep.ID).WithField("type", rep.Type).Info("report created")
	return rep, nil
}

func (r *RelationalRepository) Get(ctx context.Context, id int) (models.Report, bool, error) {
	rep, found, err := r.take(r.db.WithContext(ctx), id)
	observe("get", err, found)
	return rep, found, err
}

func (r *RelationalRepository) take(tx *gorm.DB, id int) (models.Report, bool, error) {
	var row models.ReportRow
	err := tx.Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Report{}, false, nil
	}
	if err != nil {
		return models.Report{}, false, fmt.Errorf("get report %d: %w", id, err)
	}
	rep, err := row.ToReport()
	if err != nil {
		return models.Report{}, false, fmt.Errorf("decode report %d: %w", id, err)
	}
	return rep, true, nil
}

// mutate loads the row under a row lock, lets fn change it and saves it back
// in the same transaction.
func (r *RelationalRepository) mutate(ctx context.Context, id int, fn func(*models.Report)) (models.Report, bool, error) {
	var (
		out   models.Report
		found bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rep, ok, err := r.take(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
		if err != nil || !ok {
			return err
		}
		fn(&rep)
		row, err := models.ToRow(rep)
		if err != nil {
			return err
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		out, found = rep, true
		return nil
	})
	return out, found, err
}

func (r *RelationalRepository) Update(ctx context.Context, id int, patch models.ReportPatch) (models.Report, bool, error) {
	now := models.StampNow(r.now())
	rep, found, err := r.mutate(ctx, id, func(rep *models.Report) {
		patch.Apply(rep)
		rep.UpdatedAt = &now
	})
	observe("update", err, found)
	if err != nil {
		return models.Report{}, false, fmt.Errorf("update report %d: %w", id, err)
	}
	return rep, found, nil
}

func (r *RelationalRepository) UpdateStatus(ctx context.Context, id int, status models.ReportStatus, res *models.ResolutionInput) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	now := models.StampNow(r.now())
	_, found, err := r.mutate(ctx, id, func(rep *models.Report) {
		applyStatus(rep, status, res, now)
	})
	observe("update_status", err, found)
	if err != nil {
		return false, fmt.Errorf("update report %d status: %w", id, err)
	}
	if found {
		r.refreshGauges(ctx)
	}
	return found, nil
}

func (r *RelationalRepository) Delete(ctx context.Context, id int) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ReportRow{})
	if result.Error != nil {
		observe("delete", result.Error, true)
		return false, fmt.Errorf("delete report %d: %w", id, result.Error)
	}
	found := result.RowsAffected > 0
	observe("delete", nil, found)
	if found {
		r.refreshGauges(ctx)
	}
	return found, nil
}

// SeedIfEmpty inserts the example reports when the table has no rows.
func (r *RelationalRepository) SeedIfEmpty(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ReportRow{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count reports: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, rep := range SeedReports(r.now()) {
		row, err := models.ToRow(rep)
		if err != nil {
			return err
		}
		row.ID = 0
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("seed report: %w", err)
		}
	}
	r.refreshGauges(ctx)
	log.Info("seeded example reports")
	return nil
}
