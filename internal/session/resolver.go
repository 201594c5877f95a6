package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/authava/authgate/internal/metrics"
)

// ErrUnauthenticated is returned when the session endpoint rejects the cookie
// (401/403 or any other non-2xx status below 500) or answers 2xx with a body
// that does not parse as a Session. Callers must
// not treat this the same as ErrUpstream — the distinction is load-bearing
// per spec.md §7.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// ErrUpstream is returned on connection failure, 5xx, or timeout talking to
// the session endpoint.
var ErrUpstream = errors.New("session: upstream failure")

// Resolver implements the Session Resolver (C4): read-through cache lookup,
// then an HTTPS fetch against the configured session endpoint, computing a
// JWT-derived cache TTL on success.
type Resolver struct {
	client  *http.Client
	cache   Cache
	cacheOn bool
	logger  *slog.Logger
	group   singleflight.Group
	nowFunc func() time.Time

	// Metrics, when set, receives real session-cache lookup/store outcomes.
	// Left nil it's simply not recorded (Recorder's methods are nil-safe).
	Metrics *metrics.Recorder
}

// NewResolver builds a Resolver. cache may be nil, in which case caching is
// disabled entirely (every call fetches). httpClient, if nil, gets the
// connect/total timeouts mandated by spec.md §5.
func NewResolver(cache Cache, httpClient *http.Client, logger *slog.Logger) *Resolver {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:  httpClient,
		cache:   cache,
		cacheOn: cache != nil,
		logger:  logger.With(slog.String("agent", "session_resolver")),
		nowFunc: time.Now,
	}
}

func defaultHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: dialer.DialContext,
		},
	}
}

// Resolve implements spec.md §4.4's algorithm. Concurrent calls for the same
// cookieValue are coalesced onto a single upstream fetch (the spec's
// stampede note permits, but does not require, this); a failed coalesced
// fetch propagates identically to every waiter. The returned bool reports
// whether the session came from the cache rather than a fresh fetch.
func (r *Resolver) Resolve(ctx context.Context, sessionURL, cookieName, cookieValue string) (Session, bool, error) {
	if r.cacheOn {
		lookupStart := r.nowFunc()
		entry, ok, err := r.cache.Lookup(ctx, cookieValue)
		r.observeCacheLookup(err, ok, r.nowFunc().Sub(lookupStart))
		if err == nil && ok {
			return entry.Session, true, nil
		}
	}

	type fetchResult struct {
		session Session
		ttl     time.Duration
	}

	v, err, _ := r.group.Do(cookieValue, func() (any, error) {
		session, err := r.fetch(ctx, sessionURL, cookieName, cookieValue)
		if err != nil {
			return nil, err
		}
		ttl := ComputeTTL(cookieValue, r.nowFunc())
		if r.cacheOn {
			now := r.nowFunc()
			entry := Entry{Session: session, StoredAt: now, ExpiresAt: now.Add(ttl)}
			storeStart := now
			storeErr := r.cache.Store(ctx, cookieValue, entry)
			r.observeCacheStore(storeErr, r.nowFunc().Sub(storeStart))
			if storeErr != nil {
				r.logger.Warn("session cache store failed", slog.Any("error", storeErr))
			}
		}
		return fetchResult{session: session, ttl: ttl}, nil
	})
	if err != nil {
		return Session{}, false, err
	}
	return v.(fetchResult).session, false, nil
}

func (r *Resolver) observeCacheLookup(err error, hit bool, duration time.Duration) {
	if r.Metrics == nil {
		return
	}
	result := metrics.CacheLookupMiss
	switch {
	case err != nil:
		result = metrics.CacheLookupError
	case hit:
		result = metrics.CacheLookupHit
	}
	r.Metrics.ObserveCacheLookup(result, duration)
}

func (r *Resolver) observeCacheStore(err error, duration time.Duration) {
	if r.Metrics == nil {
		return
	}
	result := metrics.CacheStoreStored
	if err != nil {
		result = metrics.CacheStoreError
	}
	r.Metrics.ObserveCacheStore(result, duration)
}

func (r *Resolver) fetch(ctx context.Context, sessionURL, cookieName, cookieValue string) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sessionURL, nil)
	if err != nil {
		return Session{}, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.AddCookie(&http.Cookie{Name: cookieName, Value: cookieValue})

	resp, err := r.client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Session{}, ErrUnauthenticated
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var session Session
		if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
			return Session{}, ErrUnauthenticated
		}
		return session, nil
	case resp.StatusCode >= 500:
		return Session{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	default:
		return Session{}, ErrUnauthenticated
	}
}
