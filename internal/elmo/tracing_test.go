package elmo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// TestClient_TracesVendorCalls records a client span per vendor call and
// forwards the caller's trace context.
//
//nolint:paralleltest // Replaces OpenTelemetry globals.
func TestClient_TracesVendorCalls(t *testing.T) {
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

	var (
		mu           sync.Mutex
		traceparents []string
	)

	vendor := newFakeVendor()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		traceparents = append(traceparents, r.Header.Get("traceparent"))
		mu.Unlock()

		vendor.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "acme", WithTransport(srv.Client().Transport))
	require.NoError(t, err)

	ctx, parent := provider.Tracer("test").Start(context.Background(), "request")

	_, err = c.Auth(ctx, "user", "pass")
	require.NoError(t, err)

	parent.End()

	traceID := parent.SpanContext().TraceID()

	var clientSpans int

	for _, span := range recorder.Ended() {
		if span.SpanKind() != trace.SpanKindClient {
			continue
		}

		clientSpans++

		require.Equal(t, traceID, span.SpanContext().TraceID())
	}

	require.Equal(t, 1, clientSpans)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, traceparents, 1)
	require.Contains(t, traceparents[0], traceID.String())
}
