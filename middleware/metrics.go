package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// OrdersProcessedTotal counts order tasks consumed, by outcome.
	OrdersProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_processed_total",
			Help: "Total number of order tasks processed",
		},
		[]string{"status"},
	)

	// PaymentsProcessedTotal counts payment settlements, by terminal state.
	PaymentsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_processed_total",
			Help: "Total number of payments processed",
		},
		[]string{"status"},
	)

	// ShipmentsProcessedTotal counts shipment dispatches, by terminal state.
	ShipmentsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipments_processed_total",
			Help: "Total number of shipments processed",
		},
		[]string{"status"},
	)

	// ConfirmationsAppliedTotal counts status-reconciliation merges.
	// outcome is "applied" or "skipped" (duplicate / regression).
	ConfirmationsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmations_applied_total",
			Help: "Total number of confirmation merges into orders",
		},
		[]string{"kind", "outcome"},
	)

	// DeadLetteredTotal counts messages parked after exhausting retries.
	DeadLetteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_dead_lettered_total",
			Help: "Total number of messages moved to a dead-letter queue",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(OrdersProcessedTotal)
	prometheus.MustRegister(PaymentsProcessedTotal)
	prometheus.MustRegister(ShipmentsProcessedTotal)
	prometheus.MustRegister(ConfirmationsAppliedTotal)
	prometheus.MustRegister(DeadLetteredTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
