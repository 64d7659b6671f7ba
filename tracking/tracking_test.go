package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/storage"
)

var now = time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

func newTracker() *Tracker {
	return NewTracker(storage.NewMemoryKV()).WithClock(func() time.Time { return now })
}

func TestRecordAndRoute(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()

	p, err := tr.Record(ctx, "a1", models.TrackPoint{Lat: -23.0, Lng: -46.6})
	require.NoError(t, err)
	assert.Equal(t, now, p.RecordedAt.Time())

	_, err = tr.Record(ctx, "a1", models.TrackPoint{Lat: -24.0, Lng: -46.6, RecordedAt: models.JSONTime(now.Add(time.Hour))})
	require.NoError(t, err)
	_, err = tr.Record(ctx, "a2", models.TrackPoint{Lat: 0, Lng: 0})
	require.NoError(t, err)

	r, err := tr.Route(ctx, "a1", nil)
	require.NoError(t, err)
	require.Len(t, r.Points, 2)
	assert.Len(t, r.Path, 2)
	assert.InDelta(t, 111195, r.Distance, 500)

	other, err := tr.Route(ctx, "a2", nil)
	require.NoError(t, err)
	assert.Len(t, other.Points, 1)
	assert.Zero(t, other.Distance)
}

func TestRoute_ByDay(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()

	yesterday := now.Add(-24 * time.Hour)
	for _, at := range []time.Time{yesterday, now, now.Add(time.Minute)} {
		_, err := tr.Record(ctx, "a1", models.TrackPoint{Lat: 1, Lng: 1, RecordedAt: models.JSONTime(at)})
		require.NoError(t, err)
	}

	r, err := tr.Route(ctx, "a1", &now)
	require.NoError(t, err)
	assert.Len(t, r.Points, 2)

	none, err := tr.Route(ctx, "a1", &time.Time{})
	require.NoError(t, err)
	assert.NotNil(t, none.Points)
	assert.Empty(t, none.Points)
}

func TestRecord_Invalid(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()
	neg := -1.0

	tests := []struct {
		name  string
		agent string
		p     models.TrackPoint
	}{
		{"no agent", "", models.TrackPoint{Lat: 1, Lng: 1}},
		{"bad lat", "a1", models.TrackPoint{Lat: 100, Lng: 1}},
		{"bad lng", "a1", models.TrackPoint{Lat: 1, Lng: 200}},
		{"negative accuracy", "a1", models.TrackPoint{Lat: 1, Lng: 1, Accuracy: &neg}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Record(ctx, tt.agent, tt.p)
			assert.ErrorIs(t, err, ErrInvalidPoint)
		})
	}
}

func TestRecord_CapsHistory(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	tr := NewTracker(kv).WithClock(func() time.Time { return now })

	pts := make([]models.TrackPoint, MaxPoints)
	for i := range pts {
		pts[i] = models.TrackPoint{Lat: 1, Lng: 1, RecordedAt: models.JSONTime(now.Add(time.Duration(i) * time.Second))}
	}
	require.NoError(t, storage.SetJSON(ctx, kv, key("a1"), pts))

	_, err := tr.Record(ctx, "a1", models.TrackPoint{Lat: 2, Lng: 2, RecordedAt: models.JSONTime(now.Add(time.Hour * 3))})
	require.NoError(t, err)

	r, err := tr.Route(ctx, "a1", nil)
	require.NoError(t, err)
	require.Len(t, r.Points, MaxPoints)
	assert.Equal(t, now.Add(time.Second), r.Points[0].RecordedAt.Time())
	assert.Equal(t, 2.0, r.Points[MaxPoints-1].Lat)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()
	_, err := tr.Record(ctx, "a1", models.TrackPoint{Lat: 1, Lng: 1})
	require.NoError(t, err)

	require.NoError(t, tr.Clear(ctx, "a1"))
	r, err := tr.Route(ctx, "a1", nil)
	require.NoError(t, err)
	assert.Empty(t, r.Points)
}
