// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conversation-analyzer/internal/analysis"
	"conversation-analyzer/internal/common/config"
	apperrors "conversation-analyzer/internal/common/errors"
	"conversation-analyzer/internal/common/logger"
	"conversation-analyzer/internal/common/metrics"
)

const RequestIDHeader = "X-Request-Id"

type Analyzer interface {
	Run(ctx context.Context, transport string, payload map[string]interface{}) (analysis.Analysis, error)
}

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	analyzer Analyzer
	logger   logger.Logger
	checks   map[string]ReadinessCheck
}

type Option func(*Server)

func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

func New(analyzer Analyzer, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		analyzer: analyzer,
		logger:   log,
		checks:   make(map[string]ReadinessCheck),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler routes POST / to the pipeline plus /health, /ready and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleAnalyze)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// NewHTTPServer applies the configured address and timeouts.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	ctx := analysis.WithRequestID(r.Context(), requestID)
	result, err := s.analyzer.Run(ctx, metrics.TransportHTTP, decodePayload(r.Body))
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		s.logger.Error("failed to write response", map[string]interface{}{
			"requestId": requestID,
			"error":     err.Error(),
		})
	}
}

// writeError sends the envelope as plain text. The transport status mirrors
// the envelope's status_code.
func (s *Server) writeError(w http.ResponseWriter, requestID string, err error) {
	ae := apperrors.AsAnalysisError(err)

	s.logger.Warn("analysis request failed", map[string]interface{}{
		"requestId":  requestID,
		"errorKind":  string(ae.Kind),
		"statusCode": ae.StatusCode,
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(ae.StatusCode)
	_, _ = io.WriteString(w, ae.Envelope().String())
}

// decodePayload returns nil for an empty body or anything that is not a JSON object.
func decodePayload(body io.Reader) map[string]interface{} {
	data, err := io.ReadAll(body)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil
	}
	return payload
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"checks": failed})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"checks": failed,
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
