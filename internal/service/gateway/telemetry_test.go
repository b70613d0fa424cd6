package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/oshokin/alarm-gateway/internal/config"
	"github.com/oshokin/alarm-gateway/internal/elmo"
	"github.com/oshokin/alarm-gateway/internal/logger"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// TestRun_LogsJSON checks that the configured log format reaches request logs.
//
//nolint:paralleltest // Uses t.Setenv and replaces the global logger.
func TestRun_LogsJSON(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "https://connect.example.com")
	t.Setenv(config.EnvVendor, "acme")
	t.Setenv(config.EnvPrefix+"_LOG_FORMAT", "json")
	t.Setenv(config.EnvPrefix+"_LOG_LEVEL", "info")

	t.Cleanup(func() {
		_ = logger.Configure("info", logger.FormatConsole)
	})

	lis := listenLocal(t)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	var output syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Run(ctx, &Options{ListenAddress: addr, LogOutput: &output})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}

		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not stop")
	}

	var requestLogged bool

	scanner := bufio.NewScanner(strings.NewReader(output.String()))
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line), scanner.Text())

		if line["message"] != "HTTP request handled" {
			continue
		}

		requestLogged = true

		require.Equal(t, "alarm-gateway", line["logger"])
		require.NotEmpty(t, line["request_id"])
	}

	require.True(t, requestLogged, output.String())
}

// TestNewHandler_RecordsSpans checks server and vendor client spans share the caller's trace.
//
//nolint:paralleltest // Replaces OpenTelemetry globals.
func TestNewHandler_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previousProvider, previousPropagator := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		otel.SetTracerProvider(previousProvider)
		otel.SetTextMapPropagator(previousPropagator)
		_ = provider.Shutdown(context.Background())
	})

	const (
		traceID  = "4bf92f3577b34da6a3ce929d0e0e4736"
		parentID = "00f067aa0ba902b7"
	)

	var (
		mu                sync.Mutex
		vendorTraceparent string
	)

	vendor := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		vendorTraceparent = r.Header.Get("traceparent")
		mu.Unlock()

		_, _ = fmt.Fprint(w, "<script>var sessionId = '127d9a48-927a-43f3-a3e3-842f3f2b7393';</script>")
	}))
	t.Cleanup(vendor.Close)

	handler := NewHandler(
		&config.Config{BaseURL: vendor.URL, Vendor: "acme", Timeout: time.Second},
		elmo.WithTransport(vendor.Client().Transport),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth", strings.NewReader(`{"username":"u","password":"p"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("traceparent", "00-"+traceID+"-"+parentID+"-01")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	kinds := make(map[trace.SpanKind]int)

	for _, span := range recorder.Ended() {
		require.Equal(t, traceID, span.SpanContext().TraceID().String())

		kinds[span.SpanKind()]++
	}

	require.Equal(t, 1, kinds[trace.SpanKindServer])
	require.Equal(t, 1, kinds[trace.SpanKindClient])

	mu.Lock()
	defer mu.Unlock()

	require.Contains(t, vendorTraceparent, traceID)
}
