// Package metrics holds the Prometheus instruments shared by the server,
// the content clients and the tracker.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Analytics ingestion
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_ingested_total",
			Help: "Analytics events accepted and stored, by event name",
		},
		[]string{"event"},
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_ingest_errors_total",
			Help: "Analytics ingest failures by reason",
		},
		[]string{"reason"}, // "bind", "too_large", "store"
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_rate_limited_total",
			Help: "Requests rejected by the per-IP ingest limiter",
		},
	)

	// Content clients
	CMSQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_queries_total",
			Help: "CMS queries by outcome",
		},
		[]string{"outcome"}, // "hit", "miss", "error"
	)

	MetadataLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_metadata_lookups_total",
			Help: "Movie-metadata API lookups by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "open"
	)

	PaymentIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Payment intents requested by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	// Tracker (client side)
	TrackerSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_send_failures_total",
			Help: "Analytics events dropped because the send failed",
		},
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// GinMiddleware observes request latency keyed by the matched route pattern.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.WithLabelValues(route, c.Request.Method, statusClass(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
