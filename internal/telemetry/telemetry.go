package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/oshokin/alarm-gateway/internal/logger"
)

// ServiceName identifies the gateway in exported spans.
const ServiceName = "alarm-gateway"

// Default OTLP ports per protocol.
const (
	defaultGRPCPort = "4317"
	defaultHTTPPort = "4318"
	exportTimeout   = 10 * time.Second
)

// Supported OTLP transports.
const (
	protocolGRPC = "grpc"
	protocolHTTP = "http"
)

// ErrInvalidEndpoint is returned for an OTLP endpoint that cannot be used.
var ErrInvalidEndpoint = errors.New("invalid OTLP endpoint")

// Provider owns the tracer provider installed by Setup.
// A nil *Provider is valid and shuts down as a no-op.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
}

// target is a resolved OTLP collector address.
type target struct {
	protocol string
	endpoint string
	path     string
	insecure bool
}

// errorHandler routes OpenTelemetry internal errors to the gateway logger.
type errorHandler struct {
	ctx context.Context //nolint:containedctx // Carries the scoped logger only.
}

// Handle logs exporter failures without interrupting requests.
func (h errorHandler) Handle(err error) {
	if err == nil {
		return
	}

	logger.WarnKV(h.ctx, "Telemetry exporter error", "error", err)
}

// Setup installs the W3C trace context propagator and, when endpoint is not
// empty, a tracer provider exporting spans to the OTLP collector at endpoint.
//
// Endpoint forms: "host:port" (gRPC, plaintext), "grpc://", "grpcs://",
// "http://" and "https://" URLs; http URLs may carry the traces path.
func Setup(ctx context.Context, endpoint, serviceVersion string) (*Provider, error) {
	ctx = logger.WithName(ctx, "telemetry")

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return new(Provider), nil
	}

	collector, err := resolveTarget(endpoint)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	exporter, err := newExporter(ctx, collector)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetErrorHandler(errorHandler{ctx: context.WithoutCancel(ctx)})

	logger.InfoKV(ctx, "Tracing enabled",
		"protocol", collector.protocol,
		"endpoint", collector.endpoint,
		"insecure", collector.insecure,
	)

	return &Provider{tracerProvider: tracerProvider}, nil
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracerProvider == nil {
		return nil
	}

	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}

	return nil
}

func newExporter(ctx context.Context, collector target) (sdktrace.SpanExporter, error) {
	switch collector.protocol {
	case protocolGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(collector.endpoint),
			otlptracegrpc.WithTimeout(exportTimeout),
		}

		if collector.insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}

		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create OTLP gRPC exporter: %w", err)
		}

		return exporter, nil
	default:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(collector.endpoint),
			otlptracehttp.WithTimeout(exportTimeout),
		}

		if collector.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}

		if collector.path != "" {
			opts = append(opts, otlptracehttp.WithURLPath(collector.path))
		}

		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create OTLP HTTP exporter: %w", err)
		}

		return exporter, nil
	}
}

// resolveTarget parses the configured collector endpoint.
func resolveTarget(raw string) (target, error) {
	if !strings.Contains(raw, "://") {
		endpoint := raw
		if _, _, err := net.SplitHostPort(endpoint); err != nil {
			endpoint = net.JoinHostPort(endpoint, defaultGRPCPort)
		}

		return target{protocol: protocolGRPC, endpoint: endpoint, insecure: true}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}

	if u.Host == "" {
		return target{}, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, raw)
	}

	result := target{
		endpoint: u.Host,
		path:     strings.TrimSuffix(u.Path, "/"),
	}

	defaultPort := defaultHTTPPort

	switch strings.ToLower(u.Scheme) {
	case "grpc":
		result.protocol, result.insecure, defaultPort = protocolGRPC, true, defaultGRPCPort
	case "grpcs":
		result.protocol, defaultPort = protocolGRPC, defaultGRPCPort
	case "http":
		result.protocol, result.insecure = protocolHTTP, true
	case "https":
		result.protocol = protocolHTTP
	default:
		return target{}, fmt.Errorf("%w: unknown scheme %q", ErrInvalidEndpoint, u.Scheme)
	}

	if u.Port() == "" {
		result.endpoint = net.JoinHostPort(u.Hostname(), defaultPort)
	}

	return result, nil
}

// ValidateEndpoint reports whether endpoint can be used by Setup.
func ValidateEndpoint(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}

	_, err := resolveTarget(endpoint)

	return err
}
