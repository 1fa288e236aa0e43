package daemon

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battsense_predictions_total",
			Help: "Total number of completed predictions",
		},
		[]string{"model", "trigger"},
	)

	predictionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battsense_prediction_failures_total",
			Help: "Total number of failed predictions",
		},
		[]string{"model", "trigger"},
	)

	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battsense_classifications_total",
			Help: "Total number of SoH classifications by resulting category",
		},
		[]string{"category"},
	)

	predictionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "battsense_prediction_latency_seconds",
			Help:    "Time spent inside predictors, including the simulated processing delay",
			Buckets: []float64{.001, .01, .1, .5, 1, 2, 3, 5, 10},
		},
	)

	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battsense_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "battsense_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// observeRequests records per-route request counts and latency.
func observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Route pattern keeps label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
