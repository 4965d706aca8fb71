// Package metrics holds the Prometheus collectors shared by the listener,
// the session tracker and the monitor API.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sundew_events_recorded_total",
		Help: "Observed events recorded by transport.",
	}, []string{"transport"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sundew_events_dropped_total",
		Help: "Observed events discarded before recording, by reason.",
	}, []string{"reason"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sundew_sessions_active",
		Help: "Sessions currently held by the tracker, open or awaiting eviction.",
	})

	sessionsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sundew_sessions_finalized_total",
		Help: "Sessions finalized by label and reason.",
	}, []string{"label", "reason"})

	artifactLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sundew_artifact_lookups_total",
		Help: "Artifact cache lookups by result.",
	}, []string{"result"})

	sinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sundew_sink_errors_total",
		Help: "Failed verdict writes by sink.",
	}, []string{"sink"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sundew_monitor_requests_total",
		Help: "Monitor API requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sundew_monitor_request_duration_seconds",
		Help:    "Monitor API request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// RecordEvent counts a recorded event.
func RecordEvent(transport string) {
	eventsRecorded.WithLabelValues(transport).Inc()
}

// RecordDropped counts a discarded event.
func RecordDropped(reason string) {
	eventsDropped.WithLabelValues(reason).Inc()
}

// SessionOpened increments the active session gauge.
func SessionOpened() { activeSessions.Inc() }

// SessionEvicted decrements the active session gauge.
func SessionEvicted() { activeSessions.Dec() }

// RecordFinalized counts a finalized session.
func RecordFinalized(label, reason string) {
	sessionsFinalized.WithLabelValues(label, reason).Inc()
}

// RecordLookup counts an artifact cache hit or miss.
func RecordLookup(hit bool) {
	if hit {
		artifactLookups.WithLabelValues("hit").Inc()
	} else {
		artifactLookups.WithLabelValues("miss").Inc()
	}
}

// RecordSinkError counts a failed write to the named sink.
func RecordSinkError(sink string) {
	sinkErrors.WithLabelValues(sink).Inc()
}

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		requestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns a Gin handler that serves Prometheus metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
