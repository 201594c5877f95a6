// Package metrics exposes the Prometheus instrumentation surface for
// forward-auth decisions, session cache activity, and the admin API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the session cache method being instrumented.
type CacheOperation string

const (
	CacheOperationLookup CacheOperation = "lookup"
	CacheOperationStore  CacheOperation = "store"
)

// CacheLookupOutcome captures the result of a cache lookup.
type CacheLookupOutcome string

const (
	CacheLookupHit   CacheLookupOutcome = "hit"
	CacheLookupMiss  CacheLookupOutcome = "miss"
	CacheLookupError CacheLookupOutcome = "error"
)

// CacheStoreOutcome captures the result of a cache store attempt.
type CacheStoreOutcome string

const (
	CacheStoreStored CacheStoreOutcome = "stored"
	CacheStoreError  CacheStoreOutcome = "error"
)

// Recorder publishes Prometheus metrics for the forward-auth endpoint, the
// session cache, and the admin API.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	authRequests *prometheus.CounterVec
	authLatency  *prometheus.HistogramVec

	cacheOperations *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec

	adminRequests *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist in tests
// without conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	authRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgate",
		Subsystem: "forward_auth",
		Name:      "requests_total",
		Help:      "Total forward-auth decisions returned, by outcome and status code.",
	}, []string{"outcome", "status_code", "from_cache"})

	authLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "authgate",
		Subsystem: "forward_auth",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for completed forward-auth decisions.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"outcome"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgate",
		Subsystem: "session_cache",
		Name:      "operations_total",
		Help:      "Session cache operations executed by the resolver.",
	}, []string{"operation", "result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "authgate",
		Subsystem: "session_cache",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for session cache operations.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "result"})

	adminRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgate",
		Subsystem: "admin",
		Name:      "requests_total",
		Help:      "Admin API requests, by route and status code.",
	}, []string{"route", "status_code"})

	reg.MustRegister(authRequests, authLatency, cacheOperations, cacheLatency, adminRequests)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		authRequests:    authRequests,
		authLatency:     authLatency,
		cacheOperations: cacheOperations,
		cacheLatency:    cacheLatency,
		adminRequests:   adminRequests,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveForwardAuth records the outcome and latency of a completed
// forward-auth decision. outcome is one of "allow", "deny", "redirect",
// "upstream_error".
func (r *Recorder) ObserveForwardAuth(outcome string, statusCode int, fromCache bool, duration time.Duration) {
	if r == nil {
		return
	}
	outcomeLabel := normalizeLabel(outcome)
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "unknown"
	}
	cacheLabel := "false"
	if fromCache {
		cacheLabel = "true"
	}
	r.authRequests.WithLabelValues(outcomeLabel, statusLabel, cacheLabel).Inc()
	r.authLatency.WithLabelValues(outcomeLabel).Observe(duration.Seconds())
}

// ObserveCacheLookup records the result of a session cache lookup.
func (r *Recorder) ObserveCacheLookup(result CacheLookupOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheLookupMiss)
	}
	r.observeCache(CacheOperationLookup, resultLabel, duration)
}

// ObserveCacheStore records the result of a session cache store attempt.
func (r *Recorder) ObserveCacheStore(result CacheStoreOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheStoreError)
	}
	r.observeCache(CacheOperationStore, resultLabel, duration)
}

func (r *Recorder) observeCache(operation CacheOperation, result string, duration time.Duration) {
	opLabel := string(operation)
	if opLabel == "" {
		opLabel = string(CacheOperationLookup)
	}
	resLabel := normalizeLabel(result)
	r.cacheOperations.WithLabelValues(opLabel, resLabel).Inc()
	r.cacheLatency.WithLabelValues(opLabel, resLabel).Observe(duration.Seconds())
}

// ObserveAdmin records an admin API request outcome.
func (r *Recorder) ObserveAdmin(route string, statusCode int) {
	if r == nil {
		return
	}
	routeLabel := normalizeLabel(route)
	r.adminRequests.WithLabelValues(routeLabel, strconv.Itoa(statusCode)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
