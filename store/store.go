// Package store owns the canonical in-memory report list and the CRUD
// operations on it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"p9e.in/zeladoria/metrics"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/storage"
)

// ErrInvalidStatus is returned when a status outside the three known
// literals is requested.
var ErrInvalidStatus = errors.New("store: invalid report status")

// Persister is the Storage Adapter contract the store depends on.
type Persister interface {
	Load(ctx context.Context) ([]models.Report, error)
	Save(ctx context.Context, reports []models.Report) error
}

// Store keeps the report list in memory and flushes it through the
// Persister on every mutation. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	reports []models.Report

	persister Persister
	now       func() time.Time
	seed      bool
	failOpen  bool
}

type Option func(*Store)

// WithClock replaces time.Now for every timestamp the store writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSeed controls whether an empty store is filled with example reports.
func WithSeed(seed bool) Option {
	return func(s *Store) { s.seed = seed }
}

// WithFailOpen makes Open start with an empty list instead of failing when
// the persisted list cannot be read.
func WithFailOpen(failOpen bool) Option {
	return func(s *Store) { s.failOpen = failOpen }
}

// Open hydrates a new store from p. When nothing is persisted and seeding is
// enabled, the example reports are written back immediately.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	s := &Store{
		persister: p,
		now:       time.Now,
		seed:      true,
	}
	for _, opt := range opts {
		opt(s)
	}

	reports, err := p.Load(ctx)
	if err != nil {
		if !s.failOpen {
			return nil, fmt.Errorf("open report store: %w", err)
		}
		log.WithError(err).Warn("starting with an empty report list")
		reports = []models.Report{}
	}

	if len(reports) == 0 && s.seed {
		reports = SeedReports(s.now())
		if err := p.Save(ctx, reports); err != nil {
			if !s.failOpen {
				return nil, fmt.Errorf("persist seed reports: %w", err)
			}
			log.WithError(err).Warn("seed reports kept in memory only")
		}
		log.WithField("count", len(reports)).Info("seeded example reports")
	}

	s.reports = reports
	metrics.SetReportGauges(reports)
	return s, nil
}

// Reports returns a deep copy of the current list.
func (s *Store) Reports() []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneReports(s.reports)
}

// List implements Repository.
func (s *Store) List(_ context.Context) ([]models.Report, error) {
	return s.Reports(), nil
}

// SetReports replaces the whole list. The new list is persisted before it
// becomes visible; on a save failure nothing changes.
func (s *Store) SetReports(ctx context.Context, reports []models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(ctx, models.CloneReports(reports))
}

func (s *Store) replaceLocked(ctx context.Context, next []models.Report) error {
	if err := s.persister.Save(ctx, next); err != nil {
		return err
	}
	s.reports = next
	metrics.SetReportGauges(next)
	return nil
}

func (s *Store) stamp() models.JSONTime {
	return models.StampNow(s.now())
}

func isUnavailable(err error) bool {
	return errors.Is(err, storage.ErrUnavailable)
}
