// Package templates loads the system and output-format prompt templates.
package templates

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"conversation-analyzer/internal/common/config"
	"conversation-analyzer/internal/common/database"
)

// Template names.
const (
	SystemPrompt       = "system_prompt"
	OutputFormatPrompt = "ai_prompt"
)

var ErrTemplateNotFound = errors.New("template not found")

// Store reads a named template. Implementations must not cache: templates are
// read again on every request.
type Store interface {
	Load(ctx context.Context, name string) (string, error)
}

// Prompts holds the two templates one analysis needs.
type Prompts struct {
	System       string
	OutputFormat string
}

func LoadPrompts(ctx context.Context, store Store) (Prompts, error) {
	system, err := store.Load(ctx, SystemPrompt)
	if err != nil {
		return Prompts{}, fmt.Errorf("load %s: %w", SystemPrompt, err)
	}

	outputFormat, err := store.Load(ctx, OutputFormatPrompt)
	if err != nil {
		return Prompts{}, fmt.Errorf("load %s: %w", OutputFormatPrompt, err)
	}

	return Prompts{System: system, OutputFormat: outputFormat}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewStore builds the store selected by cfg.Prompts.Store. The returned closer
// releases any backing connection.
func NewStore(cfg *config.Config, fs afero.Fs) (Store, io.Closer, error) {
	switch cfg.Prompts.Store {
	case config.StoreFile, "":
		return NewFileStore(fs, cfg.Prompts.Dir, map[string]string{
			SystemPrompt:       cfg.Prompts.SystemPath,
			OutputFormatPrompt: cfg.Prompts.OutputFormatPath,
		}), nopCloser{}, nil

	case config.StoreRedis:
		client := database.NewRedis(cfg.Database.Redis)
		return NewRedisStore(client, cfg.Prompts.RedisKeyPrefix), client, nil

	case config.StorePostgres:
		client, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(client, cfg.Prompts.PostgresTable), client, nil

	default:
		return nil, nil, fmt.Errorf("unknown prompt store %q", cfg.Prompts.Store)
	}
}
