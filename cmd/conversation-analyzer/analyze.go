package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	apperrors "conversation-analyzer/internal/common/errors"
	"conversation-analyzer/internal/common/metrics"
	"conversation-analyzer/internal/common/observability"
)

var errAnalysisFailed = errors.New("analysis failed")

var analyzeFile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one conversation from a file or stdin and print the result",
	Args:  cobra.NoArgs,
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "conversation file (default: stdin)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zapLog, log := setupLogger(cfg)
	defer zapLog.Sync()

	var content []byte
	if analyzeFile != "" {
		content, err = afero.ReadFile(appFs, analyzeFile)
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read conversation: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint, log)
	defer obs.Shutdown()

	p, err := buildPipeline(ctx, cfg, log, obs)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.handler.Run(ctx, metrics.TransportCLI, map[string]interface{}{"content": string(content)})
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), apperrors.AsAnalysisError(err).Envelope().String())
		return errAnalysisFailed
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
