package grpc

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"community-chat/internal/logging"
	"community-chat/internal/observability"
)

// ServiceName is the health service key reported next to the overall status.
const ServiceName = "community-chat"

// PingFunc checks a dependency the service cannot work without.
type PingFunc func(ctx context.Context) error

// HealthServer exposes grpc.health.v1 with status driven by periodic pings.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	ping     PingFunc
	interval time.Duration
}

// NewHealthServer builds the gRPC server with metrics and tracing attached.
func NewHealthServer(ping PingFunc, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{server: server, health: hs, ping: ping, interval: interval}
}

// Watch pings until ctx is done, updating the reported status after each ping.
func (s *HealthServer) Watch(ctx context.Context) {
	s.check(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *HealthServer) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		logging.Ctx(ctx).Warn().Err(err).Msg("health ping failed")
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks serving gRPC on lis.
func (s *HealthServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop marks the service as shutting down and drains in-flight calls.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
