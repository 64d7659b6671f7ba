package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apex/log"
	"p9e.in/zeladoria/models"
)

// DefaultReportsKey is the slot the report list is stored under.
const DefaultReportsKey = "zeladoria_reports"

// ReportStorage serializes the whole report list as one JSON array under a
// single key.
type ReportStorage struct {
	kv  KeyValue
	key string
}

func NewReportStorage(kv KeyValue, key string) *ReportStorage {
	if key == "" {
		key = DefaultReportsKey
	}
	return &ReportStorage{kv: kv, key: key}
}

// Load returns the persisted list. A key that was never written yields an
// empty list and no error; backend and decode failures are returned wrapped
// in ErrUnavailable or ErrCorrupt so the caller decides whether to fail open.
func (s *ReportStorage) Load(ctx context.Context) ([]models.Report, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, ErrKeyNotFound) {
		log.WithField("key", s.key).Debug("no persisted reports")
		return []models.Report{}, nil
	}
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		log.WithError(err).WithField("key", s.key).Error("loading reports")
		return []models.Report{}, err
	}

	var reports []models.Report
	if err := json.Unmarshal(raw, &reports); err != nil {
		log.WithError(err).WithField("key", s.key).Error("decoding persisted reports")
		return []models.Report{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return reports, nil
}

// Save writes the full list, replacing whatever was stored.
func (s *ReportStorage) Save(ctx context.Context, reports []models.Report) error {
	if reports == nil {
		reports = []models.Report{}
	}
	raw, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("encode reports: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		log.WithError(err).WithField("key", s.key).Error("saving reports")
		return err
	}
	return nil
}
