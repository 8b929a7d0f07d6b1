// internal/workers/ai-conversation/analyze-conversation/handler.go
package analyzeconversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"conversation-analyzer/internal/analysis"
	"conversation-analyzer/internal/common/logger"
	"conversation-analyzer/internal/common/metrics"
)

const (
	TaskType = "analyze-conversation"
)

type Analyzer interface {
	Run(ctx context.Context, transport string, payload map[string]interface{}) (analysis.Analysis, error)
}

type JobErrorHandler interface {
	HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error)
}

type Handler struct {
	config       *Config
	analyzer     Analyzer
	errorHandler JobErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, analyzer Analyzer, errorHandler JobErrorHandler, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		analyzer:     analyzer,
		errorHandler: errorHandler,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx := context.Background()
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}
	ctx = analysis.WithRequestID(ctx, fmt.Sprintf("job-%d", job.Key))

	output, err := h.Execute(ctx, parseVariables(job.Variables))
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute runs one analysis over decoded job variables.
func (h *Handler) Execute(ctx context.Context, payload map[string]interface{}) (*Output, error) {
	result, err := h.analyzer.Run(ctx, metrics.TransportWorker, payload)
	if err != nil {
		return nil, err
	}
	return &Output{Analysis: result}, nil
}

// parseVariables decodes the job variables. Anything that is not a JSON
// object is treated as an absent payload.
func parseVariables(variables string) map[string]interface{} {
	dec := json.NewDecoder(strings.NewReader(variables))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil
	}
	return payload
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{"jobKey": job.Key})
}
