package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket events handled, by client event name.",
		},
		[]string{"event"},
	)
	// CacheHits counts cache reads served from the store, by cache name.
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_cache_hits_total",
			Help: "Total number of cache hits.",
		},
		[]string{"cache"},
	)
	// CacheMisses counts cache reads that fell through to the database.
	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_cache_misses_total",
			Help: "Total number of cache misses.",
		},
		[]string{"cache"},
	)
	pushPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_push_publish_errors_total",
			Help: "Total number of push notification publish errors.",
		},
	)
	transfersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_file_transfers_active",
			Help: "Number of chunked file transfers currently buffering.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		CacheHits,
		CacheMisses,
		pushPublishErrorsTotal,
		transfersActive,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncPushPublishError() {
	pushPublishErrorsTotal.Inc()
}

func IncTransfersActive() {
	transfersActive.Inc()
}

func DecTransfersActive() {
	transfersActive.Dec()
}
