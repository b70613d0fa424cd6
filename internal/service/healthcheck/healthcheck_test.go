package healthcheck

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/alarm-gateway/internal/config"
)

// startHealth serves a health service and returns its address and status setter.
func startHealth(t *testing.T) (string, *health.Server) {
	t.Helper()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	status := health.NewServer()
	healthpb.RegisterHealthServer(server, status)

	go func() {
		_ = server.Serve(lis)
	}()

	t.Cleanup(server.Stop)

	return lis.Addr().String(), status
}

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial("")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestDialTarget fills in a loopback host for port-only addresses.
func TestDialTarget(t *testing.T) {
	t.Parallel()

	require.Equal(t, "127.0.0.1:9090", dialTarget(":9090"))
	require.Equal(t, "gateway:9090", dialTarget("gateway:9090"))
	require.Equal(t, "dns:///gateway", dialTarget("dns:///gateway"))
}

// TestRun_ReportsStatus succeeds only while the server is SERVING.
func TestRun_ReportsStatus(t *testing.T) {
	t.Parallel()

	address, status := startHealth(t)
	opts := &Options{Address: address, Timeout: 2 * time.Second}

	status.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, Run(context.Background(), opts))

	status.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	require.ErrorIs(t, Run(context.Background(), opts), ErrNotServing)
}

// TestRun_Unreachable fails when nothing listens.
func TestRun_Unreachable(t *testing.T) {
	t.Parallel()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := lis.Addr().String()
	require.NoError(t, lis.Close())

	err = Run(context.Background(), &Options{Address: address, Timeout: 500 * time.Millisecond})
	require.Error(t, err)
}

// TestRun_WatchStopsOnCancel polls until the context ends.
func TestRun_WatchStopsOnCancel(t *testing.T) {
	t.Parallel()

	address, _ := startHealth(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := Run(ctx, &Options{Address: address, Interval: 10 * time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)
}

// TestRun_RequiresConfiguredAddress falls back to the settings.
//
//nolint:paralleltest // Uses t.Setenv.
func TestRun_RequiresConfiguredAddress(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "https://connect.example.com")
	t.Setenv(config.EnvVendor, "acme")
	t.Setenv(config.EnvPrefix+"_HEALTH_ADDR", "")

	require.ErrorIs(t, Run(context.Background(), &Options{}), ErrNoHealthAddress)
}
