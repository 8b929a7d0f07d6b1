package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"conversation-analyzer/internal/common/logger"
)

type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	analysisCounter  otelmetric.Int64Counter
	analysisDuration otelmetric.Float64Histogram

	tracing *Tracing
	tracer  trace.Tracer
}

// New wires the OpenTelemetry meter (Prometheus exporter) and tracer (Jaeger
// exporter when jaegerEndpoint is set). Failures degrade to no-op instruments.
func New(serviceName, jaegerEndpoint string, log logger.Logger) *Observability {
	o := &Observability{tracer: noop.NewTracerProvider().Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err.Error()})
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
		o.meter = o.meterProvider.Meter(serviceName)

		o.analysisCounter, _ = o.meter.Int64Counter(
			"analysis.processed",
			otelmetric.WithDescription("Number of analyses processed"),
		)
		o.analysisDuration, _ = o.meter.Float64Histogram(
			"analysis.duration",
			otelmetric.WithDescription("Analysis processing duration"),
			otelmetric.WithUnit("ms"),
		)
	}

	tracing, err := NewTracing(serviceName, jaegerEndpoint)
	if err != nil {
		log.Warn("failed to create jaeger exporter", map[string]interface{}{"error": err.Error()})
		return o
	}
	o.tracing = tracing
	o.tracer = tracing.Tracer()
	return o
}

// Tracer returns the service tracer. It is never nil.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return o.tracer
}

func (o *Observability) RecordAnalysis(ctx context.Context, transport, outcome string) {
	if o == nil || o.analysisCounter == nil {
		return
	}
	o.analysisCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("transport", transport),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) RecordAnalysisDuration(ctx context.Context, duration time.Duration, transport, outcome string) {
	if o == nil || o.analysisDuration == nil {
		return
	}
	o.analysisDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("transport", transport),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracing != nil {
		_ = o.tracing.Shutdown(ctx)
	}
}
