// Package telemetry exposes Prometheus collectors for the decision service.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisions_total",
			Help: "Decisions made, by decision type, source and outcome",
		},
		[]string{"type", "source", "enabled"},
	)
	ProfileStoreErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "profile_store_errors_total",
		Help: "User profile store lookups or saves that failed",
	})

	SSEClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sse_clients",
		Help: "Number of currently connected SSE clients",
	})
	SnapshotExperiments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_experiments",
		Help: "Number of experiments in the active datafile",
	})
	SnapshotFeatures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_features",
		Help: "Number of feature flags in the active datafile",
	})
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Later calls are
// no-ops.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpReqs, httpDur, Decisions, ProfileStoreErrors, SSEClients, SnapshotExperiments, SnapshotFeatures)
	})
}

// RecordDecision counts one decision.
func RecordDecision(decisionType, source string, enabled bool) {
	if source == "" {
		source = "none"
	}
	Decisions.WithLabelValues(decisionType, source, strconv.FormatBool(enabled)).Inc()
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		// The route pattern is only complete once routing has run.
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
