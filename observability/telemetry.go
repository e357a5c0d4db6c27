package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tattler-io/tattler/pkg/config"
)

// TelemetryProvider exports traces and metrics for the dispatch service.
// With telemetry disabled every method degrades to a no-op.
type TelemetryProvider struct {
	config        config.TelemetrySettings
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider

	notificationsSent   metric.Int64Counter
	notificationsFailed metric.Int64Counter
	dispatchDuration    metric.Float64Histogram
}

// NewTelemetryProvider creates a telemetry provider from settings.
func NewTelemetryProvider(cfg config.TelemetrySettings) (*TelemetryProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "tattler"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	tp := &TelemetryProvider{config: cfg}
	if !cfg.Enabled {
		tp.tracer = otel.Tracer("tattler")
		tp.meter = otel.Meter("tattler")
		return tp, nil
	}

	if err := tp.initTracing(); err != nil {
		return nil, fmt.Errorf("init tracing: %v", err)
	}
	if err := tp.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %v", err)
	}
	return tp, nil
}

func (tp *TelemetryProvider) initTracing() error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(tp.config.ServiceName),
			semconv.ServiceVersion(tp.config.ServiceVersion),
			semconv.DeploymentEnvironment(tp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %v", err)
	}

	exporter, err := otlptrace.New(context.Background(),
		otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(tp.config.OTLPEndpoint),
		),
	)
	if err != nil {
		return fmt.Errorf("create exporter: %v", err)
	}

	tp.traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tp.config.SampleRate)),
	)
	otel.SetTracerProvider(tp.traceProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tp.tracer = otel.Tracer("tattler",
		trace.WithSchemaURL(semconv.SchemaURL),
	)
	return nil
}

func (tp *TelemetryProvider) initMetrics() error {
	tp.meter = otel.Meter("tattler",
		metric.WithSchemaURL(semconv.SchemaURL),
	)

	var err error
	tp.notificationsSent, err = tp.meter.Int64Counter(
		"tattler_notifications_sent_total",
		metric.WithDescription("Total number of notifications delivered"),
	)
	if err != nil {
		return fmt.Errorf("create notifications_sent counter: %v", err)
	}

	tp.notificationsFailed, err = tp.meter.Int64Counter(
		"tattler_notifications_failed_total",
		metric.WithDescription("Total number of notification deliveries that failed"),
	)
	if err != nil {
		return fmt.Errorf("create notifications_failed counter: %v", err)
	}

	tp.dispatchDuration, err = tp.meter.Float64Histogram(
		"tattler_dispatch_duration_seconds",
		metric.WithDescription("Duration of dispatch operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create dispatch_duration histogram: %v", err)
	}
	return nil
}

// TraceDispatch opens a span covering one dispatch request.
func (tp *TelemetryProvider) TraceDispatch(ctx context.Context, scope, event, correlationID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("tattler.scope", scope),
		attribute.String("tattler.event", event),
		attribute.String("tattler.correlation_id", correlationID),
	}
	return tp.traceOperation(ctx, "tattler.dispatch", attrs...)
}

// TraceVectorSend opens a span covering one vector delivery.
func (tp *TelemetryProvider) TraceVectorSend(ctx context.Context, vector, notificationID string, recipients int) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("tattler.vector", vector),
		attribute.String("tattler.notification_id", notificationID),
		attribute.Int("tattler.recipients.count", recipients),
	}
	return tp.traceOperation(ctx, "tattler.send", attrs...)
}

func (tp *TelemetryProvider) traceOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tp.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tp.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordSent records a successful vector delivery.
func (tp *TelemetryProvider) RecordSent(ctx context.Context, vector string, duration time.Duration) {
	if tp.notificationsSent != nil {
		tp.notificationsSent.Add(ctx, 1, metric.WithAttributes(
			attribute.String("vector", vector),
		))
	}
	tp.recordDuration(ctx, vector, "success", duration)
}

// RecordFailed records a failed vector delivery.
func (tp *TelemetryProvider) RecordFailed(ctx context.Context, vector string, duration time.Duration) {
	if tp.notificationsFailed != nil {
		tp.notificationsFailed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("vector", vector),
		))
	}
	tp.recordDuration(ctx, vector, "error", duration)
}

func (tp *TelemetryProvider) recordDuration(ctx context.Context, vector, status string, duration time.Duration) {
	if tp.dispatchDuration == nil {
		return
	}
	tp.dispatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("vector", vector),
		attribute.String("status", status),
	))
}

// EndSpan closes a span, recording the error outcome if any.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Shutdown flushes pending telemetry.
func (tp *TelemetryProvider) Shutdown(ctx context.Context) error {
	if tp.traceProvider == nil {
		return nil
	}
	return tp.traceProvider.Shutdown(ctx)
}
