// Package metrics provides Prometheus instrumentation for Playasset.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesRecorded counts trades applied to the ledger, partitioned by side.
	TradesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playasset_trades_recorded_total",
		Help: "Total number of trades applied to positions",
	}, []string{"side"})

	// TradesRejected counts trades rejected as invalid input.
	TradesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playasset_trades_rejected_total",
		Help: "Trades rejected by validation",
	})

	// OversellClamped counts sells clamped to the held quantity.
	OversellClamped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playasset_oversell_clamped_total",
		Help: "Sell trades that requested more than the held quantity",
	})

	// AdviceComputed counts advice computations by resulting risk level.
	AdviceComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playasset_advice_computed_total",
		Help: "Portfolio advice computations",
	}, []string{"risk_level"})

	// SimulationRebuildDuration tracks snapshot rebuild latency.
	SimulationRebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "playasset_simulation_rebuild_duration_seconds",
		Help:    "Simulation snapshot rebuild latency in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// SimulationRowsWritten counts snapshot rows written.
	SimulationRowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playasset_simulation_rows_written_total",
		Help: "Simulation snapshot rows upserted",
	})

	// CacheRequests counts cache lookups by name and result.
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playasset_cache_requests_total",
		Help: "Result cache lookups",
	}, []string{"cache", "result"})

	// JobRuns counts background job executions by job and status.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playasset_job_runs_total",
		Help: "Background job runs",
	}, []string{"job", "status"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playasset_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playasset_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "route"})
)

// CacheHit records a cache lookup outcome.
func CacheHit(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequests.WithLabelValues(cache, result).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
// The route label uses the matched mux pattern to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
