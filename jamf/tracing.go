package jamf

import (
	"context"
	"time"

	"github.com/fjacquet/jamfpro/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerWrapper hides the "is tracing enabled" question from call sites.
// With a nil provider it falls back to the noop tracer, so spans are always non-nil.
type TracerWrapper struct {
	tracer trace.Tracer
}

// NewTracerWrapper returns a wrapper around tp, or around a noop provider when tp is nil.
func NewTracerWrapper(tp trace.TracerProvider, instrumentation string) *TracerWrapper {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &TracerWrapper{tracer: tp.Tracer(instrumentation)}
}

// StartSpan starts a span of the given kind as a child of ctx.
func (w *TracerWrapper) StartSpan(ctx context.Context, operation string, kind trace.SpanKind) (context.Context, trace.Span) {
	return w.tracer.Start(ctx, operation, trace.WithSpanKind(kind))
}

func recordHTTPAttributes(span trace.Span, method, url string, family Family, statusCode int, requestSize, responseSize int64, duration time.Duration) {
	span.SetAttributes(
		attribute.String(telemetry.AttrHTTPMethod, method),
		attribute.String(telemetry.AttrHTTPURL, url),
		attribute.String(telemetry.AttrJamfAPIFamily, family.String()),
		attribute.Int(telemetry.AttrHTTPStatusCode, statusCode),
		attribute.Int64(telemetry.AttrHTTPRequestContentLength, requestSize),
		attribute.Int64(telemetry.AttrHTTPResponseContentLength, responseSize),
		attribute.Float64(telemetry.AttrHTTPDurationMS, float64(duration.Milliseconds())),
	)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.String(telemetry.AttrError, err.Error()),
		attribute.String(telemetry.AttrErrorKind, KindOf(err).String()),
	)
}

// injectTraceContext adds W3C trace context headers for the span in ctx.
func injectTraceContext(ctx context.Context, headers map[string]string) map[string]string {
	carrier := propagation.MapCarrier{}
	for k, v := range headers {
		carrier.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}
