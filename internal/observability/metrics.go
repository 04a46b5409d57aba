package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	wsConnectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_client_ws_connected",
			Help: "Whether the push-channel connection is currently open (1) or not (0).",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_ws_events_total",
			Help: "Total number of push-channel lifecycle events.",
		},
		[]string{"event"},
	)
	framesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_frames_received_total",
			Help: "Total number of inbound frames by frame type.",
		},
		[]string{"type"},
	)
	framesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_frames_dropped_total",
			Help: "Total number of inbound frames dropped as malformed.",
		},
	)
	restRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_rest_requests_total",
			Help: "Total number of REST requests issued by the client.",
		},
		[]string{"method", "route", "status"},
	)
	restRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_rest_request_duration_seconds",
			Help:    "REST request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	debugRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_debug_http_requests_total",
			Help: "Total number of HTTP requests served by the debug endpoint.",
		},
		[]string{"method", "route", "status"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		wsConnectionState,
		wsEventsTotal,
		framesReceivedTotal,
		framesDroppedTotal,
		restRequestsTotal,
		restRequestDuration,
		debugRequestsTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware instruments the local debug server.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		debugRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
	}
}

func SetWSConnected(connected bool) {
	if connected {
		wsConnectionState.Set(1)
		return
	}
	wsConnectionState.Set(0)
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncFrameReceived(frameType string) {
	framesReceivedTotal.WithLabelValues(frameType).Inc()
}

func IncFrameDropped() {
	framesDroppedTotal.Inc()
}

func IncRESTRequest(method, route string, status int) {
	restRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func ObserveRESTDuration(route string, elapsed time.Duration) {
	restRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
