package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthapp",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "healthapp",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	datasetLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthapp",
		Name:      "dataset_loads_total",
		Help:      "Dataset reads from disk by result.",
	}, []string{"result"})

	datasetRows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "healthapp",
		Name:      "dataset_rows",
		Help:      "Rows in the most recent successful dataset load.",
	})
)

// ObserveDatasetLoad records one dataset read. rows is ignored on error.
func ObserveDatasetLoad(rows int, err error) {
	if err != nil {
		datasetLoads.WithLabelValues("error").Inc()
		return
	}
	datasetLoads.WithLabelValues("ok").Inc()
	datasetRows.Set(float64(rows))
}

// Middleware counts requests and their latency. Unmatched routes are
// labelled "unmatched" to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
