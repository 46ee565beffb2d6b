package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for scrape operations.
	TracerName = "recap"
)

// Span attribute keys
const (
	AttrOperation  = "operation"
	AttrRequestID  = "request_id"
	AttrPageURL    = "page_url"
	AttrFrame      = "frame"
	AttrEntries    = "entries"
	AttrDurationMs = "duration_ms"
	AttrErrorCode  = "error_code"
	AttrRetryable  = "retryable"
)

// Span names
const (
	SpanOperation = "recap.operation"
	SpanExport    = "recap.export"
)

// Tracer provides distributed tracing for scrape operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartOperationSpan starts a root span for one boundary operation.
func (t *Tracer) StartOperationSpan(ctx context.Context, operation, requestID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanOperation,
		trace.WithAttributes(
			attribute.String(AttrOperation, operation),
			attribute.String(AttrRequestID, requestID),
		),
	)
}

// StartExportSpan starts a span around a full export run.
func (t *Tracer) StartExportSpan(ctx context.Context, requestID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanExport,
		trace.WithAttributes(
			attribute.String(AttrRequestID, requestID),
		),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetPage records which page the operation read.
func (h *SpanHelper) SetPage(url string, frame bool) {
	h.span.SetAttributes(
		attribute.String(AttrPageURL, url),
		attribute.Bool(AttrFrame, frame),
	)
}

// SetEntries records how many entries were produced.
func (h *SpanHelper) SetEntries(n int) {
	h.span.SetAttributes(attribute.Int(AttrEntries, n))
}

// SetDuration sets the duration attribute.
func (h *SpanHelper) SetDuration(durationMs int64) {
	h.span.SetAttributes(attribute.Int64(AttrDurationMs, durationMs))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, code string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
