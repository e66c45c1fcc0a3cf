package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodie_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foodie_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Domain operation metrics
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodie_logins_total",
			Help: "Total number of successful logins by method",
		},
		[]string{"method"},
	)

	postsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodie_posts_created_total",
			Help: "Total number of feed posts created",
		},
	)

	imagesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodie_images_processed_total",
			Help: "Total number of uploaded images processed into renditions",
		},
	)

	searchQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodie_search_queries_total",
			Help: "Total number of post search queries",
		},
	)

	// Error metrics
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodie_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"},
	)
)

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			// Normalized path keeps label cardinality bounded
			path := normalizePath(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.status)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)

			if wrapped.status >= 400 {
				errorType := "client_error"
				if wrapped.status >= 500 {
					errorType = "server_error"
				}
				errorsTotal.WithLabelValues(errorType).Inc()
			}
		})
	}
}

// normalizePath normalizes URL paths to prevent cardinality explosion.
func normalizePath(r *http.Request) string {
	// Get route pattern from chi if available
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}

	// Fallback: collapse UUID and ULID path segments
	segments := strings.Split(r.URL.Path, "/")
	for i, seg := range segments {
		if len(seg) == 36 && strings.Count(seg, "-") == 4 {
			segments[i] = "{id}"
		}
		if len(seg) == 26 && isAlphanumeric(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func isAlphanumeric(s string) bool {
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// IncrementLogins increments the login counter for an auth method.
func IncrementLogins(method string) {
	loginsTotal.WithLabelValues(method).Inc()
}

// IncrementPostsCreated increments the posts created counter.
func IncrementPostsCreated() {
	postsCreatedTotal.Inc()
}

// IncrementImagesProcessed adds processed images to the counter.
func IncrementImagesProcessed(n int) {
	imagesProcessedTotal.Add(float64(n))
}

// IncrementSearchQueries increments the search query counter.
func IncrementSearchQueries() {
	searchQueriesTotal.Inc()
}
