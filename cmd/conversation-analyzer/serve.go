package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"conversation-analyzer/internal/common/camunda"
	"conversation-analyzer/internal/common/config"
	apperrors "conversation-analyzer/internal/common/errors"
	"conversation-analyzer/internal/common/logger"
	"conversation-analyzer/internal/common/observability"
	"conversation-analyzer/internal/server"
	ac "conversation-analyzer/internal/workers/ai-conversation/analyze-conversation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST / and, when enabled, the analyze-conversation job worker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zapLog, log := setupLogger(cfg)
	defer zapLog.Sync()

	zapLog.Info("Starting conversation analyzer...", zap.String("address", cfg.Server.Address))

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, log, obs)
	if err != nil {
		zapLog.Error("pipeline setup failed", zap.Error(err))
		return err
	}
	defer p.Close()

	var opts []server.Option

	// --- Prompt store connection with retry ---
	if db, ok := p.closer.(pinger); ok {
		err = retryWithBackoff(func() error {
			return db.Ping(ctx)
		}, 10, 2*time.Second, log, cfg.Prompts.Store+" connection")
		if err != nil {
			zapLog.Error("prompt store unreachable after retries", zap.Error(err))
			return err
		}
		opts = append(opts, server.WithReadinessCheck(cfg.Prompts.Store, db.Ping))
	}

	// --- Zeebe worker ---
	var jobWorker *camunda.Worker
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			zapLog.Error("zeebe client failed after retries", zap.Error(err))
			return err
		}
		defer zeebe.Close()

		jobWorker = startAnalyzeWorker(cfg, zeebe, p, log)
		opts = append(opts, server.WithReadinessCheck("zeebe", zeebe.HealthCheck))
	}

	// --- HTTP server ---
	srv := server.NewHTTPServer(cfg.Server, server.New(p.handler, log, opts...).Handler())
	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received, stopping...")
	case err := <-errCh:
		if err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	jobWorker.Stop()

	zapLog.Info("Conversation analyzer stopped gracefully")
	return nil
}

func startAnalyzeWorker(cfg *config.Config, zeebe *camunda.Client, p *pipeline, log logger.Logger) *camunda.Worker {
	wcfg := config.GetWorkerConfig(cfg, ac.TaskType)
	handler := ac.NewHandler(ac.LoadConfig(cfg), p.handler, apperrors.NewErrorHandler(log), log)
	return camunda.StartWorker(zeebe.GetClient(), ac.TaskType, wcfg, handler.Handle, log)
}
