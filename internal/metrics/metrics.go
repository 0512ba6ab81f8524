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
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunehaven_http_requests_total",
		Help: "The total number of HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tunehaven_http_request_duration_seconds",
		Help:    "The duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	SongsStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunehaven_songs_streamed_total",
		Help: "The total number of stream requests served",
	})

	SongsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunehaven_songs_uploaded_total",
		Help: "The total number of songs uploaded",
	})

	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tunehaven_upload_size_bytes",
		Help:    "The size of uploaded files",
		Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
	})

	ListensRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunehaven_listens_recorded_total",
		Help: "The total number of listens recorded",
	})

	RemoteConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunehaven_remote_connections",
		Help: "The number of open remote control sockets",
	})
)

// Middleware records request counts and latencies by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
