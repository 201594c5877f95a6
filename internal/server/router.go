package server

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/authava/authgate/internal/authz"
	"github.com/authava/authgate/internal/config"
	"github.com/authava/authgate/internal/match"
	"github.com/authava/authgate/internal/metrics"
	"github.com/authava/authgate/internal/session"
)

// ForwardAuthHandler implements the Forward-Auth Endpoint (C6): it reads the
// proxy's forwarded-request headers, matches a route against the current
// config snapshot, resolves the session cookie, evaluates the route's
// RequireBlock, and returns the decision-table response documented in
// spec.md §4.5.
//
// CorrelationHeader, when set, is both read from the incoming request (so a
// proxy-assigned id survives) and echoed back on the response; a request
// that omits it gets a generated uuid, mirroring the teacher's per-request
// correlation id but sourced from a real id generator rather than raw bytes.
type ForwardAuthHandler struct {
	Provider          config.Provider
	Resolver          *session.Resolver
	Metrics           *metrics.Recorder
	Logger            *slog.Logger
	CorrelationHeader string
}

func (h *ForwardAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	correlationID := h.correlationID(r)
	reqLogger := h.logger().With(slog.String("correlation_id", correlationID))
	if h.CorrelationHeader != "" {
		w.Header().Set(h.CorrelationHeader, correlationID)
	}

	cfg, err := h.Provider.Current(ctx)
	if err != nil {
		reqLogger.Error("config snapshot unavailable", slog.Any("error", err))
		h.respond(w, http.StatusBadGateway, "upstream_error", start, false)
		return
	}

	host := forwardedHost(r)
	path := forwardedPath(r)

	route, matched := match.Match(host, path, cfg.Routes)
	if !matched {
		h.respond(w, http.StatusOK, "allow", start, false)
		return
	}

	cookie, hasCookie := lookupCookie(r, cfg.CookieName)
	if !hasCookie {
		h.redirect(w, r, cfg.LoginRedirect, host, path)
		h.respond(w, http.StatusFound, "redirect", start, false)
		return
	}

	sess, fromCache, err := h.Resolver.Resolve(ctx, cfg.SessionURL, cfg.CookieName, cookie)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnauthenticated):
			h.redirect(w, r, cfg.LoginRedirect, host, path)
			h.respond(w, http.StatusFound, "redirect", start, false)
		case errors.Is(err, session.ErrUpstream):
			reqLogger.Error("session resolution failed", slog.Any("error", err))
			h.respond(w, http.StatusBadGateway, "upstream_error", start, false)
		default:
			reqLogger.Error("unexpected session resolver error", slog.Any("error", err))
			h.respond(w, http.StatusBadGateway, "upstream_error", start, false)
		}
		return
	}

	decision := authz.Evaluate(sess, route.Require)
	if !decision.Allowed {
		w.Header().Set("X-Auth-Deny-Reason", decision.Reason.String())
		h.respond(w, http.StatusForbidden, "deny", start, fromCache)
		return
	}

	setIdentityHeaders(w, sess)
	h.respond(w, http.StatusOK, "allow", start, fromCache)
}

func (h *ForwardAuthHandler) respond(w http.ResponseWriter, status int, outcome string, start time.Time, fromCache bool) {
	w.WriteHeader(status)
	h.Metrics.ObserveForwardAuth(outcome, status, fromCache, time.Since(start))
}

func (h *ForwardAuthHandler) redirect(w http.ResponseWriter, r *http.Request, loginRedirect, host, path string) {
	target, err := url.Parse(loginRedirect)
	if err != nil {
		w.Header().Set("Location", loginRedirect)
		return
	}
	q := target.Query()
	q.Set("redirect", originalURL(r, host, path))
	target.RawQuery = q.Encode()
	w.Header().Set("Location", target.String())
}

func (h *ForwardAuthHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// correlationID returns the incoming request's correlation header value, or
// a freshly generated uuid if the header is unset or unconfigured.
func (h *ForwardAuthHandler) correlationID(r *http.Request) string {
	if h.CorrelationHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(h.CorrelationHeader)); v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// forwardedHost implements spec.md §4.5's host fallback: X-Forwarded-Host,
// else Host.
func forwardedHost(r *http.Request) string {
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		return h
	}
	return r.Host
}

// forwardedPath returns the path component only (query stripped) from
// X-Forwarded-Uri, falling back to X-Forwarded-Path, then the request's own
// URL path.
func forwardedPath(r *http.Request) string {
	raw := r.Header.Get("X-Forwarded-Uri")
	if raw == "" {
		raw = r.Header.Get("X-Forwarded-Path")
	}
	if raw == "" {
		return r.URL.Path
	}
	if u, err := url.Parse(raw); err == nil {
		return u.Path
	}
	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

func forwardedProto(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func originalURL(r *http.Request, host, path string) string {
	raw := r.Header.Get("X-Forwarded-Uri")
	if raw == "" {
		raw = r.Header.Get("X-Forwarded-Path")
	}
	if raw == "" {
		raw = path
		if r.URL.RawQuery != "" {
			raw += "?" + r.URL.RawQuery
		}
	}
	return forwardedProto(r) + "://" + host + raw
}

func lookupCookie(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// setIdentityHeaders implements spec.md §4.5's identity header contract.
// Values are URL-encoded whenever they would otherwise contain commas or
// characters outside the HTTP token grammar.
func setIdentityHeaders(w http.ResponseWriter, sess session.Session) {
	w.Header().Set("X-Auth-User-Id", encodeHeaderValue(sess.User.ID))
	w.Header().Set("X-Auth-User-Email", encodeHeaderValue(sess.User.Email))
	w.Header().Set("X-Auth-User-Roles", encodeHeaderList(sess.User.Roles))
	w.Header().Set("X-Auth-User-Permissions", encodeHeaderList(sess.User.Permissions))
}

func encodeHeaderList(values []string) string {
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = encodeHeaderValue(v)
	}
	return strings.Join(encoded, ",")
}

func encodeHeaderValue(value string) string {
	if isHTTPToken(value) {
		return value
	}
	return url.QueryEscape(value)
}

func isHTTPToken(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if !isTokenRune(r) {
			return false
		}
	}
	return true
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("!#$%&'*+-.^_`|~", r):
		return true
	default:
		return false
	}
}

// HealthHandler responds 200 to liveness probes.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// NewRouter assembles the top-level mux: the forward-auth endpoint at
// authPath (typically "/" or "/auth"), /healthz, /metrics, and — when
// adminHandler is non-nil — /admin/. When adminHandler is nil the admin
// surface responds 403 per spec.md §4.6's availability rule.
func NewRouter(authPath string, authHandler http.Handler, adminHandler http.Handler, metricsRecorder *metrics.Recorder) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthHandler)
	mux.Handle("/metrics", metricsRecorder.Handler())

	if adminHandler != nil {
		mux.Handle("/admin/", adminHandler)
	} else {
		mux.HandleFunc("/admin/", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "admin api disabled", http.StatusForbidden)
		})
	}

	if authPath == "" {
		authPath = "/"
	}
	mux.Handle(authPath, authHandler)

	return mux
}
