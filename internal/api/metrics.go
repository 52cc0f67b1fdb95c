package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rigbuild_http_requests_total",
		Help: "HTTP requests by method, route pattern and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rigbuild_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "route"})

	buildMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rigbuild_build_mutations_total",
		Help: "Build store mutations applied through the API, by action",
	}, []string{"action"})

	compatChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rigbuild_compat_checks_total",
		Help: "Compatibility checks by candidate category and outcome",
	}, []string{"category", "result"})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rigbuild_sessions_created_total",
		Help: "Sessions created",
	})

	rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rigbuild_rate_limit_rejections_total",
		Help: "Requests rejected by the delete rate limiter",
	})
)

// MetricsMiddleware records request counts and latency per chi route
// pattern, so path parameters do not explode label cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func recordCompat(category string, ok bool) {
	result := "ok"
	if !ok {
		result = "conflict"
	}
	compatChecks.WithLabelValues(category, result).Inc()
}
