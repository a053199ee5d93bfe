package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatched = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, excluding streams.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	streamClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadence_stream_clients",
			Help: "Connected snapshot and console stream clients.",
		},
		[]string{"stream"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(streamClients)
}

// metricsMiddleware records request count and duration. The chi route pattern
// is used as the path label to keep cardinality bounded. Long-lived stream
// requests are counted but not timed.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		path := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		if !isStream(path) {
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		}
	})
}

// trackStream counts a stream client until the returned func is called.
func trackStream(name string) func() {
	g := streamClients.WithLabelValues(name)
	g.Inc()
	return g.Dec
}

func isStream(path string) bool {
	switch path {
	case "/v1/snapshots/stream", "/v1/snapshots/ws", "/v1/console/stream":
		return true
	}
	return false
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
