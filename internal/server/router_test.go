package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authava/authgate/internal/config"
	"github.com/authava/authgate/internal/metrics"
	"github.com/authava/authgate/internal/session"
)

type staticProvider struct {
	cfg config.AuthConfig
	err error
}

func (p *staticProvider) Current(context.Context) (config.AuthConfig, error) { return p.cfg, p.err }
func (p *staticProvider) RoutesList(context.Context) ([]config.RouteDef, error) {
	return p.cfg.Routes, nil
}
func (p *staticProvider) RouteGet(context.Context, string) (config.RouteDef, error) {
	return config.RouteDef{}, config.NotFound("")
}
func (p *staticProvider) RouteCreate(context.Context, config.RouteDef) (string, error) {
	return "", config.NotSupported("create")
}
func (p *staticProvider) RouteUpdate(context.Context, string, config.RouteDef) error {
	return config.NotSupported("update")
}
func (p *staticProvider) RouteDelete(context.Context, string) error {
	return config.NotSupported("delete")
}
func (p *staticProvider) Close(context.Context) error { return nil }

func newTestHandler(t *testing.T, cfg config.AuthConfig, sessionServerURL string) *ForwardAuthHandler {
	t.Helper()
	resolver := session.NewResolver(session.NewMemory(0), nil, nil)
	return &ForwardAuthHandler{
		Provider: &staticProvider{cfg: cfg},
		Resolver: resolver,
		Metrics:  metrics.NewRecorder(nil),
	}
}

func baseConfig(sessionURL string) config.AuthConfig {
	return config.AuthConfig{
		SessionURL:    sessionURL,
		LoginRedirect: "https://login.example.com/login",
		CookieName:    "session",
		Routes: []config.RouteDef{
			{ID: "1", Host: "app.example.com", Path: "/admin/*", Require: config.RequireBlock{Roles: []string{"admin"}}},
			{ID: "2", Host: "app.example.com", Path: "/", Require: config.RequireBlock{}},
		},
	}
}

func TestForwardAuthUnmatchedRouteAllowsWithoutIdentityHeaders(t *testing.T) {
	h := newTestHandler(t, baseConfig("https://unused.example.com"), "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Host", "other.example.com")
	req.Header.Set("X-Forwarded-Uri", "/anything")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("X-Auth-User-Id"))
}

func TestForwardAuthMissingCookieRedirects(t *testing.T) {
	h := newTestHandler(t, baseConfig("https://unused.example.com"), "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Host", "app.example.com")
	req.Header.Set("X-Forwarded-Uri", "/admin/users")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	loc := rr.Header().Get("Location")
	assert.Contains(t, loc, "https://login.example.com/login")
	assert.Contains(t, loc, "redirect=")
}

func TestForwardAuthAllowsWithValidSessionAndRole(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"a@b.com","roles":["admin","user"]}}`))
	}))
	defer upstream.Close()

	h := newTestHandler(t, baseConfig(upstream.URL), upstream.URL)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Host", "app.example.com")
	req.Header.Set("X-Forwarded-Uri", "/admin/users")
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", rr.Header().Get("X-Auth-User-Id"))
	assert.Equal(t, "admin,user", rr.Header().Get("X-Auth-User-Roles"))
}

func TestEncodeHeaderListEscapesElementsNotTheJoin(t *testing.T) {
	got := encodeHeaderList([]string{"team lead", "user"})
	assert.Equal(t, "team+lead,user", got)
}

func TestForwardAuthDeniesMissingRole(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","roles":["user"]}}`))
	}))
	defer upstream.Close()

	h := newTestHandler(t, baseConfig(upstream.URL), upstream.URL)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Host", "app.example.com")
	req.Header.Set("X-Forwarded-Uri", "/admin/users")
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "MissingRole", rr.Header().Get("X-Auth-Deny-Reason"))
}

func TestForwardAuthUpstreamDownReturns502(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	h := newTestHandler(t, baseConfig(upstream.URL), upstream.URL)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Host", "app.example.com")
	req.Header.Set("X-Forwarded-Uri", "/")
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestForwardAuthUnauthenticatedSessionRedirects(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	h := newTestHandler(t, baseConfig(upstream.URL), upstream.URL)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Host", "app.example.com")
	req.Header.Set("X-Forwarded-Uri", "/")
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestForwardAuthGeneratesCorrelationIDWhenAbsent(t *testing.T) {
	h := newTestHandler(t, baseConfig("https://unused.example.com"), "")
	h.CorrelationHeader = "X-Request-ID"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Host", "other.example.com")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestForwardAuthEchoesIncomingCorrelationID(t *testing.T) {
	h := newTestHandler(t, baseConfig("https://unused.example.com"), "")
	h.CorrelationHeader = "X-Request-ID"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Host", "other.example.com")
	req.Header.Set("X-Request-ID", "incoming-id")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, "incoming-id", rr.Header().Get("X-Request-ID"))
}

func TestHealthHandlerReturns200(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewRouterRejectsAdminWhenDisabled(t *testing.T) {
	router := NewRouter("/", http.HandlerFunc(HealthHandler), nil, metrics.NewRecorder(nil))
	req := httptest.NewRequest(http.MethodGet, "/admin/routes", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
