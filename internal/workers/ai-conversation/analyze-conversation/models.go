// internal/workers/ai-conversation/analyze-conversation/models.go
package analyzeconversation

import "conversation-analyzer/internal/analysis"

// Output completes the job. Job variables in are the request payload, {"content": ...}.
type Output struct {
	Analysis analysis.Analysis `json:"analysis"`
}
