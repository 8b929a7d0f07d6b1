package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"conversation-analyzer/internal/analysis"
	"conversation-analyzer/internal/common/config"
	commonhttp "conversation-analyzer/internal/common/http"
	"conversation-analyzer/internal/common/logger"
	"conversation-analyzer/internal/common/observability"
	"conversation-analyzer/internal/common/vertex"
	"conversation-analyzer/internal/templates"
)

var (
	cfgPath  string
	logLevel string

	appFs = afero.NewOsFs()

	// newHTTPClient builds the authenticated transport for Vertex AI.
	newHTTPClient = func(ctx context.Context, cfg *config.Config) (*commonhttp.Client, error) {
		return commonhttp.NewGoogleClient(ctx, cfg.VertexAI.CredentialsFile, 0)
	}
)

var rootCmd = &cobra.Command{
	Use:           "conversation-analyzer",
	Short:         "Analyze conversations with Gemini on Vertex AI",
	Long:          "conversation-analyzer turns conversation transcripts into a validated JSON analysis using a Gemini model on Vertex AI.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}

// loadConfig reads the explicit file when given, otherwise the layered configs/ lookup.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFromFile(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) (*zap.Logger, logger.Logger) {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	return zapLog, logger.NewZapAdapter(zapLog).With(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})
}

// pipeline is everything one analysis needs, built once per process.
type pipeline struct {
	handler *analysis.Handler
	closer  io.Closer
}

func (p *pipeline) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func buildPipeline(ctx context.Context, cfg *config.Config, log logger.Logger, obs *observability.Observability) (*pipeline, error) {
	store, closer, err := templates.NewStore(cfg, appFs)
	if err != nil {
		return nil, fmt.Errorf("prompt store: %w", err)
	}

	httpClient, err := newHTTPClient(ctx, cfg)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("vertex ai credentials: %w", err)
	}

	model := vertex.New(vertex.Config{
		ProjectID: cfg.VertexAI.ProjectID,
		Location:  cfg.VertexAI.Location,
		Model:     cfg.VertexAI.Model,
		BaseURL:   cfg.VertexAI.BaseURL,
		Timeout:   config.GetDuration(cfg.VertexAI.Timeout),
	}, httpClient, vertex.WithTracer(obs.Tracer()))

	log.Info("vertex ai client ready", map[string]interface{}{
		"model":       cfg.VertexAI.Model,
		"location":    cfg.VertexAI.Location,
		"promptStore": cfg.Prompts.Store,
	})

	return &pipeline{
		handler: analysis.NewHandler(model, store, log, analysis.WithObservability(obs)),
		closer:  closer,
	}, nil
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
