// Package telemetry installs the OpenTelemetry tracer provider and
// propagators used by the instrumented inbound and outbound HTTP stacks.
//
// Spans are exported over OTLP when an endpoint is configured. W3C trace
// context is propagated in every case, so an upstream trace continues to the
// alarm system even when this process does not export anything.
package telemetry
