package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
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
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of open socket connections on this instance.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Socket lifecycle events (connect, disconnect, error).",
		},
		[]string{"event"},
	)
	socketFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_socket_frames_total",
			Help: "Inbound socket frames by event name and outcome.",
		},
		[]string{"event", "result"},
	)
	messagesPersistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Chat messages written to storage.",
		},
		[]string{"scope", "op"},
	)
	fanoutDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_deliveries_total",
			Help: "Per-connection pushes made by the fan-out router.",
		},
		[]string{"result"},
	)
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_total",
			Help: "Durable notifications and live alerts produced by the dispatcher.",
		},
		[]string{"kind", "result"},
	)
	joinTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_join_transitions_total",
			Help: "Group join-request transitions.",
		},
		[]string{"action", "result"},
	)
	relayMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_messages_total",
			Help: "Messages exchanged with peer instances over the relay.",
		},
		[]string{"direction"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		socketFramesTotal,
		messagesPersistedTotal,
		fanoutDeliveriesTotal,
		notificationsTotal,
		joinTransitionsTotal,
		relayMessagesTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latency per route.
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

// GRPCServerMetricsUnaryInterceptor counts handled unary calls by code.
func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		statusInfo := status.Convert(err)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, statusInfo.Code().String()).Inc()
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive() { wsActiveConnections.Inc() }
func DecWSActive() { wsActiveConnections.Dec() }

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

// IncSocketFrame counts an inbound frame; result is ok, invalid, limited or error.
func IncSocketFrame(event, result string) {
	socketFramesTotal.WithLabelValues(event, result).Inc()
}

// IncMessagePersisted counts a stored message; scope is group or private, op is create or edit.
func IncMessagePersisted(scope, op string) {
	messagesPersistedTotal.WithLabelValues(scope, op).Inc()
}

func IncFanoutDelivery(result string) {
	fanoutDeliveriesTotal.WithLabelValues(result).Inc()
}

func IncNotification(kind, result string) {
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

func IncJoinTransition(action, result string) {
	joinTransitionsTotal.WithLabelValues(action, result).Inc()
}

func IncRelay(direction string) {
	relayMessagesTotal.WithLabelValues(direction).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
