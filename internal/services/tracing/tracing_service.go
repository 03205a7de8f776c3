package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys shared by the gateway client and the callback receiver
const (
	AttrPath      = "billine.path"
	AttrAlgorithm = "billine.algorithm"
	AttrInvoiceID = "billine.invoice_id"
	AttrStatus    = "billine.status"
	AttrOutcome   = "billine.outcome"
)

// Service provides OpenTelemetry tracing functionality
type Service struct {
	tracer trace.Tracer
}

// NewService creates a tracing service backed by the global tracer provider
func NewService(serviceName string) *Service {
	return &Service{
		tracer: otel.Tracer(serviceName),
	}
}

// NewNoopService returns a service whose spans are never recorded
func NewNoopService() *Service {
	return &Service{
		tracer: noop.NewTracerProvider().Tracer("noop"),
	}
}

// StartSpan starts a new span
func (s *Service) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, opts...)
}

// StartClientSpan starts a span for an outbound gateway request
func (s *Service) StartClientSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	AddSpanAttributes(span, attrs)
	return ctx, span
}

// StartServerSpan starts a span for an inbound callback
func (s *Service) StartServerSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
	AddSpanAttributes(span, attrs)
	return ctx, span
}

// AddSpanAttributes adds attributes to a span
func AddSpanAttributes(span trace.Span, attrs map[string]string) {
	attributes := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		attributes = append(attributes, attribute.String(k, v))
	}
	span.SetAttributes(attributes...)
}

// RecordError records an error on a span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// ExtractTraceID extracts trace ID from context
func ExtractTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// WithSpan wraps a function with span creation. An error returned by fn is
// recorded on the span.
func (s *Service) WithSpan(ctx context.Context, name string, attrs map[string]string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	AddSpanAttributes(span, attrs)
	err := fn(ctx)
	RecordError(span, err)
	return err
}
