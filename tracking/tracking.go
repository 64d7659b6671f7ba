// Package tracking records the GPS route of field agents during their shift.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/paulmach/orb"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/storage"
	"p9e.in/zeladoria/utils"
)

// MaxPoints bounds the history kept per agent; the oldest points go first.
const MaxPoints = 5000

var ErrInvalidPoint = errors.New("tracking: invalid point")

// Route is an agent's history, optionally narrowed to one day.
type Route struct {
	AgentID  string              `json:"agentId"`
	Points   []models.TrackPoint `json:"points"`
	Distance float64             `json:"distanceMeters"`
	Path     orb.LineString      `json:"-"`
}

// Tracker keeps one history per agent under route_history:<agentID>.
type Tracker struct {
	mu  sync.Mutex
	kv  storage.KeyValue
	now func() time.Time
}

func NewTracker(kv storage.KeyValue) *Tracker {
	return &Tracker{kv: kv, now: time.Now}
}

// WithClock replaces time.Now for points recorded without a timestamp.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func key(agentID string) string {
	return "route_history:" + agentID
}

func (t *Tracker) load(ctx context.Context, agentID string) ([]models.TrackPoint, error) {
	var pts []models.TrackPoint
	if _, err := storage.GetJSON(ctx, t.kv, key(agentID), &pts); err != nil {
		return nil, err
	}
	return pts, nil
}

// Record appends p to the agent's history.
func (t *Tracker) Record(ctx context.Context, agentID string, p models.TrackPoint) (models.TrackPoint, error) {
	if agentID == "" {
		return p, fmt.Errorf("%w: missing agent", ErrInvalidPoint)
	}
	if err := utils.ValidateCoordinates(models.Coordinates{Lat: p.Lat, Lng: p.Lng}); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	if p.Accuracy != nil && *p.Accuracy < 0 {
		return p, fmt.Errorf("%w: negative accuracy", ErrInvalidPoint)
	}
	if p.RecordedAt.Time().IsZero() {
		p.RecordedAt = models.StampNow(t.now())
	} else {
		p.RecordedAt = models.StampNow(p.RecordedAt.Time())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pts, err := t.load(ctx, agentID)
	if err != nil {
		return p, err
	}
	pts = append(pts, p)
	if len(pts) > MaxPoints {
		pts = pts[len(pts)-MaxPoints:]
	}
	if err := storage.SetJSON(ctx, t.kv, key(agentID), pts); err != nil {
		return p, err
	}
	log.WithField("agent", agentID).Debug("track point recorded")
	return p, nil
}

// Route returns the agent's points in recording order. A non-nil day keeps
// only the points of that UTC calendar day.
func (t *Tracker) Route(ctx context.Context, agentID string, day *time.Time) (Route, error) {
	pts, err := t.load(ctx, agentID)
	if err != nil {
		return Route{}, err
	}

	if day != nil {
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		end := start.Add(24 * time.Hour)
		kept := pts[:0:0]
		for _, p := range pts {
			at := p.RecordedAt.Time()
			if !at.Before(start) && at.Before(end) {
				kept = append(kept, p)
			}
		}
		pts = kept
	}
	if pts == nil {
		pts = []models.TrackPoint{}
	}

	path := make(orb.LineString, 0, len(pts))
	for _, p := range pts {
		path = append(path, orb.Point{p.Lng, p.Lat})
	}
	return Route{
		AgentID:  agentID,
		Points:   pts,
		Distance: utils.PathLength(path),
		Path:     path,
	}, nil
}

// Clear drops the agent's history.
func (t *Tracker) Clear(ctx context.Context, agentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := storage.SetJSON(ctx, t.kv, key(agentID), []models.TrackPoint{}); err != nil {
		return err
	}
	log.WithField("agent", agentID).Info("route history cleared")
	return nil
}
