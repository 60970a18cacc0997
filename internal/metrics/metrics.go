// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registrationToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_registration_toggles_total",
			Help: "Registration toggles by resulting action",
		},
		[]string{"action"},
	)

	ratingSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_rating_submissions_total",
			Help: "Rating submissions by resulting action",
		},
		[]string{"action"},
	)

	constraintRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_constraint_retries_total",
			Help: "Mutations retried after a constraint violation",
		},
		[]string{"operation"},
	)

	searchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_search_requests_total",
			Help: "Search requests by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventhub_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func TrackRegistration(action string) {
	registrationToggles.WithLabelValues(action).Inc()
}

func TrackRating(action string) {
	ratingSubmissions.WithLabelValues(action).Inc()
}

func TrackRetry(operation string) {
	constraintRetries.WithLabelValues(operation).Inc()
}

// TrackSearch records one search; outcome is "ok", "empty_query",
// "unavailable" or "error".
func TrackSearch(kind, outcome string) {
	searchRequests.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware observes request durations labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
