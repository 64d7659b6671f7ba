package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/utils"
)

var testUser = models.User{
	ID:         uuid.MustParse("6f1c1d3e-0a55-4c55-9a1b-3f3d2f1e0b01"),
	Name:       "Ana Souza",
	Phone:      "11987654321",
	Role:       models.RoleAgent,
	GabineteID: "gabinete-1",
}

func echoClaims(w http.ResponseWriter, r *http.Request) {
	c := GetClaims(r)
	if c == nil {
		http.Error(w, "no claims", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(c.UserID + "|" + c.Role + "|" + GetViewer(r).GabineteID))
}

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	tok, err := tokens.Generate(testUser)
	require.NoError(t, err)

	claims, err := tokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, testUser.ID.String(), claims.UserID)
	assert.Equal(t, models.RoleAgent, claims.Role)
	assert.Equal(t, "gabinete-1", claims.GabineteID)
	assert.Equal(t, "Ana Souza", claims.Name)
}

func TestTokens_RejectsExpiredAndForeign(t *testing.T) {
	issued := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	tokens := NewTokens("secret", time.Hour)
	tokens.now = func() time.Time { return issued }
	tok, err := tokens.Generate(testUser)
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = tokens.Parse(tok)
	assert.Error(t, err, "expired")

	other := NewTokens("other-secret", time.Hour)
	other.now = func() time.Time { return issued }
	_, err = other.Parse(tok)
	assert.Error(t, err, "signed with another secret")
}

func TestJWT(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	tok, err := tokens.Generate(testUser)
	require.NoError(t, err)
	h := tokens.JWT(http.HandlerFunc(echoClaims))

	tests := []struct {
		name   string
		url    string
		header string
		want   int
	}{
		{"bearer header", "/x", "Bearer " + tok, http.StatusOK},
		{"lowercase scheme", "/x", "bearer " + tok, http.StatusOK},
		{"query token", "/x?token=" + tok, "", http.StatusOK},
		{"missing", "/x", "", http.StatusUnauthorized},
		{"wrong scheme", "/x", "Basic abc", http.StatusUnauthorized},
		{"garbage", "/x", "Bearer not-a-token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, testUser.ID.String()+"|agent|gabinete-1", rec.Body.String())
			}
		})
	}
}

func withRole(role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(WithClaims(req.Context(), &Claims{UserID: "u1", Role: role}))
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireRole([]string{models.RoleAdmin, models.RoleSupervisor}, ok)

	for role, want := range map[string]int{
		models.RoleAdmin:      http.StatusNoContent,
		models.RoleSupervisor: http.StatusNoContent,
		models.RoleAgent:      http.StatusForbidden,
		"":                    http.StatusForbidden,
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withRole(role))
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}

func TestRequirePermission(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	tests := []struct {
		role string
		perm string
		want int
	}{
		{models.RoleAgent, utils.PermReportCreate, http.StatusNoContent},
		{models.RoleAgent, utils.PermReportDelete, http.StatusForbidden},
		{models.RoleAgent, utils.PermReportExport, http.StatusForbidden},
		{models.RoleSupervisor, utils.PermReportDelete, http.StatusNoContent},
		{models.RoleSupervisor, utils.PermAreaManage, http.StatusForbidden},
		{models.RoleAdmin, utils.PermAreaManage, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.perm, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RequirePermission(tt.perm)(ok).ServeHTTP(rec, withRole(tt.role))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetAgent(t *testing.T) {
	assert.Nil(t, GetAgent(httptest.NewRequest(http.MethodGet, "/", nil)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: "u9", Name: "Bia", GabineteID: "g2"}))
	assert.Equal(t, &models.Agent{ID: "u9", Name: "Bia", GabineteID: "g2"}, GetAgent(req))
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(2)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	// other clients have their own budget
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	h := NewRateLimiter(2).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "198.51.100.20:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429, 429, 429}, codes)
}

func TestRateLimiter_TrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.0.0.0/8")
	require.NoError(t, err)
	h := NewRateLimiter(1).TrustProxies(proxies).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.1.2.3:4000"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// each client behind the proxy has its own budget
	assert.Equal(t, http.StatusOK, call("203.0.113.1"))
	assert.Equal(t, http.StatusOK, call("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.1"))
}

func TestParseTrustedProxies(t *testing.T) {
	p, err := ParseTrustedProxies(" 192.0.2.10, 10.0.0.0/8 ,")
	require.NoError(t, err)
	assert.Len(t, p, 2)
	assert.True(t, p.trusts("192.0.2.10"))
	assert.True(t, p.trusts("10.200.0.1"))
	assert.False(t, p.trusts("192.0.2.11"))
	assert.False(t, p.trusts("not-an-ip"))

	empty, err := ParseTrustedProxies("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseTrustedProxies("proxy.local")
	assert.Error(t, err)
	_, err = ParseTrustedProxies("10.0.0.0/40")
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.0.0.1")
	require.NoError(t, err)

	tests := []struct {
		name    string
		remote  string
		xff     string
		realIP  string
		proxies TrustedProxies
		want    string
	}{
		{"plain peer", "192.0.2.1:1234", "", "", proxies, "192.0.2.1"},
		{"untrusted peer ignores headers", "192.0.2.1:1234", "203.0.113.5", "198.51.100.7", proxies, "192.0.2.1"},
		{"no proxies configured", "10.0.0.1:80", "203.0.113.5", "", nil, "10.0.0.1"},
		{"trusted proxy forwards", "10.0.0.1:80", "203.0.113.5", "", proxies, "203.0.113.5"},
		{"spoofed left entries skipped", "10.0.0.1:80", "1.1.1.1, 203.0.113.5", "", proxies, "203.0.113.5"},
		{"trusted proxy real ip", "10.0.0.1:80", "", "198.51.100.7", proxies, "198.51.100.7"},
		{"only proxies in chain", "10.0.0.1:80", "10.0.0.1", "", proxies, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.proxies.ClientIP(req))
		})
	}
}

func TestRequestLogger(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RequestLogger)
	r.HandleFunc("/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/reports/7", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/reports/8", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}
