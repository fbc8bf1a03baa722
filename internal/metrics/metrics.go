// Package metrics exposes a Prometheus /metrics endpoint on a separate
// port, grounded on the teacher's promauto-vector pattern.
package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yacgo_request_duration_seconds",
		Help:    "Duration of HTTP requests served.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	RequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yacgo_request_total",
		Help: "Total number of HTTP requests served.",
	}, []string{"method", "route", "status"})

	GitOperationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yacgo_git_operation_total",
		Help: "Total number of git operations performed against the entity repository.",
	}, []string{"operation", "status"})

	GitOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yacgo_git_operation_duration_seconds",
		Help:    "Duration of git operations performed against the entity repository.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	SchemaValidationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yacgo_schema_validation_total",
		Help: "Total number of schema validations performed, by type and outcome.",
	}, []string{"type", "valid"})

	RepoReadersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yacgo_repo_readers_active",
		Help: "Number of reader grants currently held on the entity repository.",
	})

	RepoWriterHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yacgo_repo_writer_held",
		Help: "1 while the exclusive writer grant is held, 0 otherwise.",
	})
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records RequestDuration and RequestTotal for every request,
// labelled by the matched chi route pattern rather than the raw path so
// that parameterized routes (e.g. /entity/{type}/{name}) aggregate
// correctly.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.status)
		RequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		RequestTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// Serve starts the Prometheus metrics server on the given address.
func Serve(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("metrics server starting", "listen", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "error", err)
	}
}
