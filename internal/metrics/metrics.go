// Package metrics provides Prometheus instrumentation for the community
// engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// VotesTotal counts vote toggles by outcome (added/removed/switched).
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_votes_total",
		Help: "Total vote toggles processed",
	}, []string{"outcome"})

	// SuggestionsCreated counts accepted suggestion submissions.
	SuggestionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_suggestions_created_total",
		Help: "Total suggestions created",
	})

	// PointAwards counts point-award procedure calls by reason and status.
	// Failed awards never roll back the primary write, so the failure
	// counter is the only place they remain visible.
	PointAwards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_point_awards_total",
		Help: "Point award procedure invocations",
	}, []string{"reason", "status"})

	// FeedEvents counts change-feed events applied, by resource and type.
	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_feed_events_total",
		Help: "Change-feed events applied to views",
	}, []string{"resource", "type"})

	// FeedEventsDropped counts malformed or unparseable events skipped.
	FeedEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_feed_events_dropped_total",
		Help: "Change-feed events skipped as unparseable",
	}, []string{"resource"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
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

// Hijack forwards to the underlying writer so WebSocket upgrades work
// through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
