// internal/workers/ai-conversation/analyze-conversation/config.go
package analyzeconversation

import (
	"time"

	"conversation-analyzer/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	MaxJobsActive int
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:       config.GetDuration(wcfg.Timeout),
		MaxJobsActive: wcfg.MaxJobsActive,
	}
}
