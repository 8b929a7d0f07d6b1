package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"conversation-analyzer/internal/common/logger"
)

func TestNewTracing_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracing, err := NewTracing("conversation-analyzer", "", sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	defer tracing.Shutdown(context.Background())

	_, span := tracing.Tracer().Start(context.Background(), "analysis.handle")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "analysis.handle", ended[0].Name())

	var service string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "conversation-analyzer", service)
}

func TestObservability_RecordWithoutPanics(t *testing.T) {
	o := New("conversation-analyzer", "", logger.NewTestLogger(t))
	defer o.Shutdown()

	assert.NotNil(t, o.Tracer())
	assert.NotPanics(t, func() {
		o.RecordAnalysis(context.Background(), "http", "success")
		o.RecordAnalysisDuration(context.Background(), 150*time.Millisecond, "http", "success")
	})
}

func TestObservability_NilSafe(t *testing.T) {
	var o *Observability

	assert.NotNil(t, o.Tracer())
	assert.NotPanics(t, func() {
		o.RecordAnalysis(context.Background(), "cli", "DECODE_ERROR")
		o.RecordAnalysisDuration(context.Background(), time.Second, "cli", "DECODE_ERROR")
		o.Shutdown()
	})
}
