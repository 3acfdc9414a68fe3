package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: response cache hits by tier (exact | similar).
	ResponseHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_hits_total",
			Help: "Total number of response cache hits by lookup tier.",
		},
		[]string{"tier"},
	)

	// Counter: response cache misses.
	ResponseMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_misses_total",
			Help: "Total number of response cache misses.",
		},
	)

	// Counter: responses stored in the cache.
	ResponseSetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_sets_total",
			Help: "Total number of responses written to the cache.",
		},
	)

	// Counter: responses rejected by the cache-worthiness check.
	ResponseRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_rejected_total",
			Help: "Total number of responses rejected as not cache-worthy.",
		},
	)

	// Counter: cache keys invalidated, by category (context | responses).
	InvalidatedKeysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidated_keys_total",
			Help: "Total number of cache keys invalidated by category.",
		},
		[]string{"category"},
	)

	// Counter: change events routed, by entity kind.
	ChangeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_total",
			Help: "Total number of data-change events routed for invalidation.",
		},
		[]string{"entity"},
	)

	// Counter: async chat tasks reaching a terminal state.
	TasksFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_tasks_finished_total",
			Help: "Total number of async chat tasks by terminal status.",
		},
		[]string{"status"},
	)

	// Histogram: gateway HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		ResponseHitsTotal,
		ResponseMissesTotal,
		ResponseSetsTotal,
		ResponseRejectedTotal,
		InvalidatedKeysTotal,
		ChangeEventsTotal,
		TasksFinishedTotal,
		GatewayLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture status code
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()

		// Label by route pattern, not raw path: task ids and other
		// variables in the URL would mint unbounded label values.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		method := r.Method
		status := strconv.Itoa(rec.statusCode)

		GatewayLatencySeconds.
			WithLabelValues(path, method, status).
			Observe(duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
