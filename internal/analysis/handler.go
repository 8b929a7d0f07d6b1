// Package analysis turns conversation text into a validated analysis using a
// generative model.
package analysis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "conversation-analyzer/internal/common/errors"
	"conversation-analyzer/internal/common/logger"
	"conversation-analyzer/internal/common/metrics"
	"conversation-analyzer/internal/common/observability"
	"conversation-analyzer/internal/common/validation"
	"conversation-analyzer/internal/templates"
)

// Generator returns the raw text the model produced for prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type Handler struct {
	generator Generator
	store     templates.Store
	logger    logger.Logger
	tracer    trace.Tracer
	obs       *observability.Observability
}

type Option func(*Handler)

func WithTracer(tracer trace.Tracer) Option {
	return func(h *Handler) {
		if tracer != nil {
			h.tracer = tracer
		}
	}
}

// WithObservability records OpenTelemetry analysis metrics and uses its tracer.
func WithObservability(obs *observability.Observability) Option {
	return func(h *Handler) {
		h.obs = obs
		if obs != nil {
			h.tracer = obs.Tracer()
		}
	}
}

// NewHandler holds no per-request state and may be shared across goroutines.
func NewHandler(generator Generator, store templates.Store, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		generator: generator,
		store:     store,
		logger:    log,
		tracer:    noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle runs one analysis. payload is the decoded request body; a nil or
// empty payload, or one without "content", is a 400. Every other failure is a
// 500 *apperrors.AnalysisError.
func (h *Handler) Handle(ctx context.Context, payload map[string]interface{}) (Analysis, error) {
	requestID := RequestID(ctx)
	ctx, span := h.tracer.Start(ctx, "analysis.handle", trace.WithAttributes(
		attribute.String("request.id", requestID),
	))
	defer span.End()

	log := h.logger.With(map[string]interface{}{"requestId": requestID})

	raw, ok := payload["content"]
	if len(payload) == 0 || !ok {
		log.Warn("rejected request without content", nil)
		return nil, fail(span, apperrors.NewContentRequiredError())
	}

	content := ContentText(raw)
	log.Info("analysis request accepted", map[string]interface{}{"contentLength": len(content)})

	prompts, err := h.loadTemplates(ctx)
	if err != nil {
		log.Error("failed to load prompt templates", map[string]interface{}{"error": err.Error()})
		return nil, fail(span, apperrors.NewConfigError(err))
	}

	prompt, err := BuildPrompt(prompts.System, prompts.OutputFormat, content)
	if err != nil {
		return nil, fail(span, apperrors.NewConfigError(err))
	}

	result, err := h.generateAndParse(ctx, prompt, log)
	if err != nil {
		return nil, fail(span, err)
	}

	log.Info("analysis completed", nil)
	return result, nil
}

// Run is Handle plus request metrics labelled with transport.
func (h *Handler) Run(ctx context.Context, transport string, payload map[string]interface{}) (Analysis, error) {
	metrics.AnalysisInFlight.WithLabelValues(transport).Inc()
	defer metrics.AnalysisInFlight.WithLabelValues(transport).Dec()

	start := time.Now()
	result, err := h.Handle(ctx, payload)
	elapsed := time.Since(start)

	outcome := metrics.Outcome("")
	if err != nil {
		outcome = metrics.Outcome(string(apperrors.AsAnalysisError(err).Kind))
	}
	metrics.ObserveAnalysis(transport, outcome, elapsed.Seconds())
	h.obs.RecordAnalysis(ctx, transport, outcome)
	h.obs.RecordAnalysisDuration(ctx, elapsed, transport, outcome)

	return result, err
}

func (h *Handler) loadTemplates(ctx context.Context) (templates.Prompts, error) {
	ctx, span := h.tracer.Start(ctx, "analysis.load_templates")
	defer span.End()

	prompts, err := templates.LoadPrompts(ctx, h.store)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return prompts, err
}

// generateAndParse calls the model, extracts JSON and validates it. Every
// failure comes back restamped as "generate_and_parse_json: ...".
func (h *Handler) generateAndParse(ctx context.Context, prompt string, log logger.Logger) (Analysis, error) {
	ctx, span := h.tracer.Start(ctx, "analysis.generate_and_parse")
	defer span.End()

	start := time.Now()
	text, err := h.generator.GenerateContent(ctx, prompt)
	log.Info("model call finished", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
		"success":    err == nil,
	})
	if err != nil {
		log.Error("model call failed", map[string]interface{}{"error": err.Error()})
		return nil, fail(span, apperrors.WrapGenerateAndParse(apperrors.NewUpstreamError(err)))
	}

	parsed, err := ExtractJSONFromMarkdown(text)
	if err != nil {
		log.Warn("model output is not valid JSON", map[string]interface{}{
			"error":        err.Error(),
			"outputLength": len(text),
		})
		return nil, fail(span, apperrors.WrapGenerateAndParse(err))
	}

	ok, violations := validation.Check(parsed)
	obj, isObject := parsed.(map[string]interface{})
	if !ok || !isObject {
		log.Warn("model output failed schema validation", map[string]interface{}{"violations": violations})
		return nil, fail(span, apperrors.WrapGenerateAndParse(apperrors.NewSchemaError()))
	}

	return Analysis(obj), nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if ae := apperrors.AsAnalysisError(err); ae != nil {
		span.SetAttributes(
			attribute.String("error.kind", string(ae.Kind)),
			attribute.Int("error.status_code", ae.StatusCode),
		)
	}
	return err
}
