package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gavv/httpexpect/v2"

	"github.com/authava/authgate/internal/metrics"
	"github.com/authava/authgate/internal/session"
)

// TestForwardAuthRouterIntegration drives the assembled router (forward-auth
// endpoint + /healthz + /metrics) over a real httptest.Server, the way the
// teacher's own HTTP-facing tests exercise a running listener — adapted to
// run in-process rather than spawning a subprocess.
func TestForwardAuthRouterIntegration(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"u1@example.com","roles":["admin"]}}`))
	}))
	defer upstream.Close()

	provider := &staticProvider{cfg: baseConfig(upstream.URL)}
	authHandler := &ForwardAuthHandler{
		Provider: provider,
		Resolver: session.NewResolver(session.NewMemory(0), nil, nil),
		Metrics:  metrics.NewRecorder(nil),
	}
	router := NewRouter("/", authHandler, nil, metrics.NewRecorder(nil))
	server := httptest.NewServer(router)
	defer server.Close()

	e := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  server.URL,
		Reporter: httpexpect.NewRequireReporter(t),
	})

	e.GET("/healthz").Expect().Status(http.StatusOK)

	e.GET("/").
		WithHeader("X-Forwarded-Host", "app.example.com").
		WithHeader("X-Forwarded-Uri", "/admin/users").
		WithCookie("session", "abc").
		Expect().
		Status(http.StatusOK).
		Header("X-Auth-User-Id").IsEqual("u1")

	e.GET("/").
		WithHeader("X-Forwarded-Host", "other.example.com").
		WithHeader("X-Forwarded-Uri", "/whatever").
		Expect().
		Status(http.StatusOK).
		Header("X-Auth-User-Id").IsEqual("")

	e.GET("/admin/routes").Expect().Status(http.StatusForbidden)
}
