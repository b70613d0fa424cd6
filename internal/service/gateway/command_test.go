package gateway

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/alarm-gateway/internal/config"
)

func listenLocal(t *testing.T) net.Listener {
	t.Helper()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	return lis
}

// TestRun_RefusesInvalidSettings ensures the process does not start without a remote system.
//
//nolint:paralleltest // Uses t.Setenv.
func TestRun_RefusesInvalidSettings(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvVendor, "acme")

	err := Run(context.Background(), &Options{})
	require.ErrorIs(t, err, config.ErrBaseURLRequired)

	t.Setenv(config.EnvBaseURL, "http://plain.example.com")

	err = Run(context.Background(), nil)
	require.ErrorIs(t, err, config.ErrBaseURLNotHTTPS)
}

// TestRun_StopsOnCancel starts both servers and stops them with the context.
//
//nolint:paralleltest // Uses t.Setenv.
func TestRun_StopsOnCancel(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "https://connect.example.com")
	t.Setenv(config.EnvVendor, "acme")
	t.Setenv(config.EnvPrefix+"_HEALTH_ADDR", "127.0.0.1:0")
	t.Setenv(config.EnvPrefix+"_LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	err := Run(ctx, &Options{ListenAddress: "127.0.0.1:0"})
	require.NoError(t, err)
}

// TestServe_GracefulShutdown serves a request and returns cleanly once canceled.
func TestServe_GracefulShutdown(t *testing.T) {
	t.Parallel()

	lis := listenLocal(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- serve(ctx, lis, handler)
	}()

	resp, err := http.Get("http://" + lis.Addr().String() + "/")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "ok", string(body))

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

// TestServe_ListenerFailure surfaces errors from a broken listener.
func TestServe_ListenerFailure(t *testing.T) {
	t.Parallel()

	lis := listenLocal(t)
	require.NoError(t, lis.Close())

	err := serve(context.Background(), lis, http.NotFoundHandler())
	require.Error(t, err)
}

// TestHealthServer_ReportsServing checks the standard health protocol.
func TestHealthServer_ReportsServing(t *testing.T) {
	t.Parallel()

	lis := listenLocal(t)
	server := newHealthServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	client := healthpb.NewHealthClient(conn)

	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})

		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("health server did not stop")
	}
}

// TestNewHandler_ServesAPI checks the assembled handler without touching the remote system.
func TestNewHandler_ServesAPI(t *testing.T) {
	t.Parallel()

	handler := NewHandler(&config.Config{
		BaseURL: "https://connect.example.com",
		Vendor:  "acme",
		Timeout: time.Second,
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")

	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth", strings.NewReader("username=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/v0/alarms", strings.NewReader(`{"code":"1"}`))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
