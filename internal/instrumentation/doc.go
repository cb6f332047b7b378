// Package instrumentation wires OpenTelemetry metrics and tracing for quoteflow.
//
// A Provider is created once at startup from DefaultConfig (environment
// driven) and hands out a Metrics recorder. Every Record* method is safe to
// call on a zero or nil Metrics, so components take a *Metrics without
// checking whether instrumentation is enabled.
//
// # Environment
//
//   - INSTRUMENTATION_ENABLED (default true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout
//   - TRACING_EXPORTER: otlp, stdout or none
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII
//
// Prometheus metrics are served by the metrics server in internal/server.
package instrumentation
