package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/pkg/reportquery"
)

var ts = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

func startHub(t *testing.T) (*Hub, func(v reportquery.Viewer) *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	dial := func(v reportquery.Viewer) *websocket.Conn {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, hub.Serve(w, r, "u1", v))
		}))
		t.Cleanup(srv.Close)

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	return hub, dial
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHub_BroadcastsScopedEvents(t *testing.T) {
	hub, dial := startHub(t)

	admin := dial(reportquery.Viewer{Role: models.RoleAdmin})
	agentG2 := dial(reportquery.Viewer{Role: models.RoleAgent, GabineteID: "g2"})
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	r := models.Report{ID: 7, Type: "Buraco na via", Status: models.StatusPending, Agent: &models.Agent{GabineteID: "g1"}}
	hub.Publish(ReportEvent(Created, r, ts))
	hub.Publish(DeletedEvent(9, "g2", ts))

	first := readEvent(t, admin)
	assert.Equal(t, "created", first["type"])
	assert.Equal(t, float64(7), first["id"])
	assert.Equal(t, "2025-06-10T14:00:00.000Z", first["timestamp"])
	report, ok := first["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Buraco na via", report["type"])

	second := readEvent(t, admin)
	assert.Equal(t, "deleted", second["type"])

	// the g2 agent never sees the g1 report
	only := readEvent(t, agentG2)
	assert.Equal(t, "deleted", only["type"])
	assert.Equal(t, float64(9), only["id"])
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, dial := startHub(t)

	conn := dial(reportquery.Viewer{Role: models.RoleAdmin})
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventVisibility(t *testing.T) {
	e := DeletedEvent(1, "g1", ts)
	assert.True(t, e.visibleTo(reportquery.Viewer{Role: models.RoleAdmin}))
	assert.True(t, e.visibleTo(reportquery.Viewer{Role: models.RoleAgent, GabineteID: "g1"}))
	assert.False(t, e.visibleTo(reportquery.Viewer{Role: models.RoleSupervisor, GabineteID: "g2"}))
	assert.False(t, DeletedEvent(1, "", ts).visibleTo(reportquery.Viewer{Role: models.RoleAgent}))
}
