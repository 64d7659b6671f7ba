package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"p9e.in/zeladoria/accounts"
	"p9e.in/zeladoria/areas"
	"p9e.in/zeladoria/handlers"
	"p9e.in/zeladoria/middleware"
	"p9e.in/zeladoria/photos"
	"p9e.in/zeladoria/storage"
	"p9e.in/zeladoria/store"
	"p9e.in/zeladoria/tracking"
)

func newServer(t *testing.T) (*httptest.Server, *accounts.Service) {
	t.Helper()
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	st, err := store.Open(ctx, storage.NewReportStorage(kv, storage.DefaultReportsKey))
	require.NoError(t, err)

	users := accounts.NewService(kv).WithCost(bcrypt.MinCost)
	require.NoError(t, users.EnsureAdmin(ctx, "Admin", "11900000000", "admin123"))

	h := &handlers.Handler{
		Reports:  st,
		Accounts: users,
		Tokens:   middleware.NewTokens("routes-secret", time.Hour),
		Tracker:  tracking.NewTracker(kv),
		Photos:   photos.NewLocalStore(t.TempDir(), "/uploads"),
		Areas:    areas.NewRegistry(kv),

		SignupGabinete: "gabinete-1",
	}
	srv := httptest.NewServer(RegisterRoutes(h, Options{UploadDir: t.TempDir(), LoginPerMinute: 50}))
	t.Cleanup(srv.Close)
	return srv, users
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func login(t *testing.T, srv *httptest.Server, phone, password string) string {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/login", "", map[string]string{"phone": phone, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Token
}

func TestRoutes_Public(t *testing.T) {
	srv, _ := newServer(t)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "", nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/metrics", "", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/v1/reports", "", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/v1/reports", "nonsense", nil).StatusCode)
}

func TestRoutes_AgentFlow(t *testing.T) {
	srv, _ := newServer(t)
	adminToken := login(t, srv, "11900000000", "admin123")

	// admin creates a supervisor; the public sign-up creates an agent
	resp := do(t, srv, http.MethodPost, "/api/v1/users", adminToken, map[string]string{
		"name": "Sup", "phone": "11922223333", "password": "sup123", "role": "supervisor", "gabineteId": "gabinete-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, srv, http.MethodPost, "/register", "", map[string]string{
		"name": "Agente", "phone": "11944445555", "password": "agente1", "gabineteId": "gabinete-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	agentToken := login(t, srv, "11944445555", "agente1")

	// agents cannot create users
	resp = do(t, srv, http.MethodPost, "/api/v1/users", agentToken, map[string]string{
		"name": "X", "phone": "11966667777", "password": "xxxxxx",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/v1/reports", agentToken, map[string]any{
		"type": "Buraco na via", "description": "Buraco grande", "address": "Rua A, 1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID     int    `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "Pendente", created.Status)

	resp = do(t, srv, http.MethodGet, "/api/v1/reports?perPage=100", agentToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	seeded := len(store.SeedReports(time.Now()))
	assert.Equal(t, seeded+1, list.Total, "seed reports belong to the agent's gabinete")

	path := "/api/v1/reports/" + strconv.Itoa(created.ID)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, path, agentToken, nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPatch, path+"/status", agentToken,
		map[string]string{"status": "Em andamento"}).StatusCode)

	// delete and export are supervisor/admin permissions
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodDelete, path, agentToken, nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodGet, "/api/v1/reports/export", agentToken, nil).StatusCode)

	supToken := login(t, srv, "11922223333", "sup123")
	resp = do(t, srv, http.MethodGet, "/api/v1/reports/export?format=csv", supToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, path, supToken, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, path, agentToken, nil).StatusCode)

	// only admins import areas
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPost, "/api/v1/areas", supToken, nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/areas", agentToken, nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/reports/stats", agentToken, nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/me", agentToken, nil).StatusCode)
}

func TestRoutes_LoginRateLimited(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	h := &handlers.Handler{
		Accounts: accounts.NewService(kv).WithCost(bcrypt.MinCost),
		Tokens:   middleware.NewTokens("routes-secret", time.Hour),
	}
	require.NoError(t, h.Accounts.EnsureAdmin(ctx, "Admin", "11900000000", "admin123"))
	srv := httptest.NewServer(RegisterRoutes(h, Options{LoginPerMinute: 2}))
	defer srv.Close()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp := do(t, srv, http.MethodPost, "/login", "", map[string]string{"phone": "11900000000", "password": "wrong"})
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestRoutes_LoginRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	ctx := context.Background()
	h := &handlers.Handler{
		Accounts: accounts.NewService(storage.NewMemoryKV()).WithCost(bcrypt.MinCost),
		Tokens:   middleware.NewTokens("routes-secret", time.Hour),
	}
	require.NoError(t, h.Accounts.EnsureAdmin(ctx, "Admin", "11900000000", "admin123"))
	srv := httptest.NewServer(RegisterRoutes(h, Options{LoginPerMinute: 2}))
	defer srv.Close()

	limited := 0
	for i := 0; i < 10; i++ {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{"phone": "11900000000", "password": "wrong"}))
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/login", &buf)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i+1))
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 8, limited)
}
