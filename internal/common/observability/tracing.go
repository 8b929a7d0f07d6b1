package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracing owns the process tracer provider.
type Tracing struct {
	provider    *sdktrace.TracerProvider
	serviceName string
}

// NewTracing builds a tracer provider for serviceName. Spans are exported to
// the Jaeger collector at endpoint; with an empty endpoint they are recorded
// but never exported.
func NewTracing(serviceName, endpoint string, extra ...sdktrace.TracerProviderOption) (*Tracing, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	}

	if endpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	opts = append(opts, extra...)

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &Tracing{provider: provider, serviceName: serviceName}, nil
}

func (t *Tracing) Tracer() trace.Tracer {
	return t.provider.Tracer(t.serviceName)
}

func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
