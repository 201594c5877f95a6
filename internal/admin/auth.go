// Package admin implements the Admin API (C7): CRUD over routes, gated by
// an ordered, short-circuiting chain of authenticators.
package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/authava/authgate/internal/config"
	"github.com/authava/authgate/internal/session"
)

// Authenticator decides whether a request is allowed onto the admin
// surface. ok=false, err=nil means "this authenticator has no opinion, try
// the next one"; a non-nil err is a rejection with this status, which Chain
// applies only if no later authenticator grants access.
type Authenticator interface {
	Authenticate(r *http.Request) (ok bool, err *HTTPError)
}

// HTTPError carries the status and headers an authenticator wants on a
// rejected request.
type HTTPError struct {
	Status  int
	Headers map[string]string
}

// BearerAuthenticator accepts `Authorization: Bearer <token>` compared in
// constant time against a configured secret.
type BearerAuthenticator struct {
	Token string
}

func (a *BearerAuthenticator) Authenticate(r *http.Request) (bool, *HTTPError) {
	if a.Token == "" {
		return false, nil
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false, nil
	}
	presented := strings.TrimPrefix(header, prefix)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(a.Token)) != 1 {
		return false, &HTTPError{Status: http.StatusUnauthorized, Headers: map[string]string{"WWW-Authenticate": "Bearer"}}
	}
	return true, nil
}

// SessionCookieAuthenticator resolves the request's session cookie via the
// Session Resolver and requires the user's roles to intersect AdminRoles.
// The session endpoint URL is read from the live config snapshot, not
// cached at construction time, so it tracks config reloads.
type SessionCookieAuthenticator struct {
	Provider   config.Provider
	Resolver   *session.Resolver
	CookieName string
	AdminRoles []string
}

func (a *SessionCookieAuthenticator) Authenticate(r *http.Request) (bool, *HTTPError) {
	if a.Resolver == nil || a.Provider == nil || len(a.AdminRoles) == 0 {
		return false, nil
	}
	cookie, err := r.Cookie(a.CookieName)
	if err != nil || cookie.Value == "" {
		return false, nil
	}
	cfg, err := a.Provider.Current(r.Context())
	if err != nil {
		return false, nil
	}
	sess, _, err2 := a.Resolver.Resolve(r.Context(), cfg.SessionURL, a.CookieName, cookie.Value)
	if err2 != nil {
		return false, nil
	}
	if !intersects(sess.User.Roles, a.AdminRoles) {
		return false, &HTTPError{Status: http.StatusForbidden}
	}
	return true, nil
}

func intersects(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// Chain tries each Authenticator in order; the first to say ok=true grants
// access. If none grants access, the first rejection's HTTPError is used,
// or a 401 with `WWW-Authenticate: Bearer` if every authenticator abstained
// (spec.md §4.6: no
// mechanism configured ⇒ admin API is inaccessible).
type Chain struct {
	Authenticators []Authenticator
}

func (c *Chain) Authorize(r *http.Request) *HTTPError {
	var firstReject *HTTPError
	for _, a := range c.Authenticators {
		ok, rejectErr := a.Authenticate(r)
		if ok {
			return nil
		}
		if rejectErr != nil && firstReject == nil {
			firstReject = rejectErr
		}
	}
	if firstReject != nil {
		return firstReject
	}
	return &HTTPError{Status: http.StatusUnauthorized, Headers: map[string]string{"WWW-Authenticate": "Bearer"}}
}

// Middleware wraps next, enforcing the chain before delegating.
func (c *Chain) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rejectErr := c.Authorize(r); rejectErr != nil {
			for k, v := range rejectErr.Headers {
				w.Header().Set(k, v)
			}
			http.Error(w, http.StatusText(rejectErr.Status), rejectErr.Status)
			return
		}
		next.ServeHTTP(w, r)
	})
}
