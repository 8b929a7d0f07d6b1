// Package vertex calls the Vertex AI generateContent REST endpoint.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	commonhttp "conversation-analyzer/internal/common/http"
	"conversation-analyzer/internal/common/metrics"
)

// Fixed decoding parameters for every call.
const (
	Temperature     = 0.0
	TopP            = 0.8
	MaxOutputTokens = 8192
)

type Config struct {
	ProjectID string
	Location  string
	Model     string
	// BaseURL overrides https://{location}-aiplatform.googleapis.com.
	BaseURL string
	// Timeout bounds one call. Zero leaves it to the caller's context.
	Timeout time.Duration
}

type Client struct {
	config     Config
	endpoint   string
	httpClient *commonhttp.Client
	tracer     trace.Tracer
}

type Option func(*Client)

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// New builds a client that is safe for concurrent use. httpClient must add
// authentication; see commonhttp.NewGoogleClient.
func New(config Config, httpClient *commonhttp.Client, opts ...Option) *Client {
	base := strings.TrimSuffix(config.BaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com", config.Location)
	}

	c := &Client{
		config: config,
		endpoint: fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			base, config.ProjectID, config.Location, config.Model),
		httpClient: httpClient,
		tracer:     noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string {
	return c.config.Model
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// GenerateContent sends prompt as a single user turn and returns the text of
// the first candidate.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (text string, err error) {
	ctx, span := c.tracer.Start(ctx, "vertex.generate_content", trace.WithAttributes(
		attribute.String("genai.model", c.config.Model),
		attribute.Int("genai.prompt_length", len(prompt)),
	))
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.GenAIRequests.WithLabelValues(c.config.Model, status).Inc()
		metrics.GenAIDuration.WithLabelValues(c.config.Model).Observe(time.Since(start).Seconds())
		span.End()
	}()

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(generateContentRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: prompt}},
		}},
		GenerationConfig: generationConfig{
			Temperature:     Temperature,
			TopP:            TopP,
			MaxOutputTokens: MaxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vertex ai request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newAPIError(resp.StatusCode, raw)
	}

	var out generateContentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if out.UsageMetadata != nil {
		span.SetAttributes(
			attribute.Int("genai.prompt_tokens", out.UsageMetadata.PromptTokenCount),
			attribute.Int("genai.candidate_tokens", out.UsageMetadata.CandidatesTokenCount),
		)
	}

	return out.text()
}

// APIError is a non-2xx answer from Vertex AI.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("vertex ai returned %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("vertex ai returned %d: %s", e.StatusCode, e.Message)
}

func newAPIError(statusCode int, body []byte) *APIError {
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return &APIError{StatusCode: statusCode, Status: payload.Error.Status, Message: payload.Error.Message}
	}
	return &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
}
