package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealthServer(t *testing.T, ping PingFunc) (*HealthServer, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	server := NewHealthServer(ping, 0)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return server, healthpb.NewHealthClient(conn)
}

func TestHealthFollowsPing(t *testing.T) {
	var failing atomic.Bool
	server, client := startHealthServer(t, func(context.Context) error {
		if failing.Load() {
			return errors.New("db down")
		}
		return nil
	})
	ctx := context.Background()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	server.check(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	failing.Store(true)
	server.check(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestHealthUnknownService(t *testing.T) {
	_, client := startHealthServer(t, func(context.Context) error { return nil })

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "other"})
	assert.Error(t, err)
}

func TestWatchStopsWithContext(t *testing.T) {
	var calls atomic.Int32
	server := NewHealthServer(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server.Watch(ctx)

	assert.Equal(t, int32(1), calls.Load())
}
