package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrKind      = "kind"
	attrFormat    = "format"
)

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// Metrics provides methods for recording observability metrics.
// The zero value is a valid no-op recorder.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	upstreamCallsTotal   metric.Int64Counter
	upstreamCallDuration metric.Float64Histogram

	tokenRefreshTotal metric.Int64Counter
	loginsTotal       metric.Int64Counter

	uploadsTotal     metric.Int64Counter
	quotationsTotal  metric.Int64Counter
	exportsTotal     metric.Int64Counter
	mailboxSyncTotal metric.Int64Counter
	messagesLoaded   metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.httpRequestsTotal, "http_requests_total", "Total number of local API requests", "{request}"},
		{&m.upstreamCallsTotal, "upstream_calls_total", "Total number of calls to identity, backend, storage and Google APIs", "{call}"},
		{&m.tokenRefreshTotal, "token_refresh_total", "Total number of session refresh ticks by result", "{attempt}"},
		{&m.loginsTotal, "logins_total", "Total number of login attempts by method and result", "{attempt}"},
		{&m.uploadsTotal, "uploads_total", "Total number of document uploads by kind and result", "{upload}"},
		{&m.quotationsTotal, "quotations_generated_total", "Total number of quotation generations by result", "{quotation}"},
		{&m.exportsTotal, "quotation_exports_total", "Total number of quotation exports by format", "{export}"},
		{&m.mailboxSyncTotal, "mailbox_sync_total", "Total number of mailbox page loads by result", "{sync}"},
		{&m.messagesLoaded, "mailbox_messages_loaded_total", "Total number of message headers merged into the mailbox", "{message}"},
		{&m.toolInvocationsTotal, "mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.httpRequestDuration, "http_request_duration_seconds", "Local API request duration in seconds"},
		{&m.upstreamCallDuration, "upstream_call_duration_seconds", "Upstream call duration in seconds"},
		{&m.toolDuration, "mcp_tool_duration_seconds", "MCP tool execution duration in seconds"},
	}
	for _, h := range histograms {
		*h.dst, err = meter.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(durationBuckets...),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
	}

	return m, nil
}

// RecordHTTPRequest records a local API request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordUpstreamCall records a call to one of the hosted collaborators.
//
// Parameters:
//   - service: identity, backend, storage, gmail or sheets
//   - operation: short verb such as "list", "refresh", "generate"
//   - status: "success" or "error"
func (m *Metrics) RecordUpstreamCall(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.upstreamCallsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.upstreamCallsTotal.Add(ctx, 1, attrs)
	m.upstreamCallDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTokenRefresh records one refresher tick outcome.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m == nil {
		return
	}
	addOne(ctx, m.tokenRefreshTotal, attribute.String(attrResult, result))
}

// RecordLogin records a login attempt. Method is "password" or "oauth".
func (m *Metrics) RecordLogin(ctx context.Context, method, result string) {
	if m == nil {
		return
	}
	addOne(ctx, m.loginsTotal, attribute.String(attrKind, method), attribute.String(attrResult, result))
}

// RecordUpload records an upload attempt for a document kind.
func (m *Metrics) RecordUpload(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	addOne(ctx, m.uploadsTotal, attribute.String(attrKind, kind), attribute.String(attrStatus, status))
}

// RecordQuotation records a quotation generation. Status "degraded" marks
// a parse failure that was replaced by the placeholder row.
func (m *Metrics) RecordQuotation(ctx context.Context, status string) {
	if m == nil {
		return
	}
	addOne(ctx, m.quotationsTotal, attribute.String(attrStatus, status))
}

// RecordExport records a quotation export in the given format (pdf, xlsx, sheets).
func (m *Metrics) RecordExport(ctx context.Context, format string) {
	if m == nil {
		return
	}
	addOne(ctx, m.exportsTotal, attribute.String(attrFormat, format))
}

// RecordMailboxSync records a mailbox page load and the number of merged messages.
func (m *Metrics) RecordMailboxSync(ctx context.Context, status string, merged int) {
	if m == nil {
		return
	}
	addOne(ctx, m.mailboxSyncTotal, attribute.String(attrStatus, status))
	if m.messagesLoaded != nil && merged > 0 {
		m.messagesLoaded.Add(ctx, int64(merged))
	}
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

func addOne(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return // Instrumentation not initialized
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
