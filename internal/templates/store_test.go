package templates

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-analyzer/internal/common/config"
	"conversation-analyzer/internal/common/database"
)

func defaultPaths() map[string]string {
	return map[string]string{
		SystemPrompt:       "system_prompt.txt",
		OutputFormatPrompt: "ai_prompt.txt",
	}
}

func TestFileStore_Load(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/prompts/system_prompt.txt", []byte("คุณคือผู้ช่วย\r\nline two\rline three\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/prompts/ai_prompt.txt", []byte(`{"response": "..."}`), 0o644))

	store := NewFileStore(fs, "/prompts", defaultPaths())

	prompts, err := LoadPrompts(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "คุณคือผู้ช่วย\nline two\nline three\n", prompts.System)
	assert.Equal(t, `{"response": "..."}`, prompts.OutputFormat)
}

func TestFileStore_ReadsFreshOnEveryLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "system_prompt.txt", []byte("v1"), 0o644))
	store := NewFileStore(fs, "", defaultPaths())

	first, err := store.Load(context.Background(), SystemPrompt)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "system_prompt.txt", []byte("v2"), 0o644))
	second, err := store.Load(context.Background(), SystemPrompt)
	require.NoError(t, err)

	assert.Equal(t, "v1", first)
	assert.Equal(t, "v2", second)
}

func TestFileStore_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/system_prompt.txt", []byte{0xff, 0xfe, 'a'}, 0o644))
	store := NewFileStore(fs, "/p", defaultPaths())

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := store.Load(context.Background(), SystemPrompt)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid UTF-8")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.Load(context.Background(), OutputFormatPrompt)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ai_prompt.txt")
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := store.Load(context.Background(), "other")
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})

	t.Run("missing second template names it", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/p/system_prompt.txt", []byte("ok"), 0o644))
		_, err := LoadPrompts(context.Background(), store)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load ai_prompt")
	})
}

func TestRedisStore_Load(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Set("prompts:system_prompt", "system text")
	mr.Set("prompts:ai_prompt", "format text")

	client := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	defer client.Close()

	prompts, err := LoadPrompts(context.Background(), NewRedisStore(client, "prompts:"))
	require.NoError(t, err)
	assert.Equal(t, Prompts{System: "system text", OutputFormat: "format text"}, prompts)

	_, err = NewRedisStore(client, "missing:").Load(context.Background(), SystemPrompt)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Contains(t, err.Error(), "missing:system_prompt")
}

func TestRedisStore_ConnectionError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("prompts:system_prompt").SetErr(errors.New("connection refused"))

	store := NewRedisStore(&database.RedisClient{Client: rdb}, "prompts:")
	_, err := store.Load(context.Background(), SystemPrompt)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTemplateNotFound)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Nil(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("prompts:ai_prompt").RedisNil()

	store := NewRedisStore(&database.RedisClient{Client: rdb}, "prompts:")
	_, err := store.Load(context.Background(), OutputFormatPrompt)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.NotErrorIs(t, err, redis.Nil)
}

func TestPostgresStore_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta(`SELECT body FROM "prompt_templates" WHERE name = $1`)
	mock.ExpectQuery(query).
		WithArgs(SystemPrompt).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow("system text"))
	mock.ExpectQuery(query).
		WithArgs(OutputFormatPrompt).
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	store := NewPostgresStore(&database.PostgresClient{DB: db}, "prompt_templates")

	system, err := store.Load(context.Background(), SystemPrompt)
	require.NoError(t, err)
	assert.Equal(t, "system text", system)

	_, err = store.Load(context.Background(), OutputFormatPrompt)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM "prompt_templates" WHERE name = $1`)).
		WithArgs(SystemPrompt).
		WillReturnError(errors.New("relation does not exist"))

	store := NewPostgresStore(&database.PostgresClient{DB: db}, "prompt_templates")
	_, err = store.Load(context.Background(), SystemPrompt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query template system_prompt: relation does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStore(t *testing.T) {
	cfg := &config.Config{Prompts: config.PromptsConfig{
		Store:            config.StoreFile,
		Dir:              "/prompts",
		SystemPath:       "system_prompt.txt",
		OutputFormatPath: "ai_prompt.txt",
	}}

	store, closer, err := NewStore(cfg, afero.NewMemMapFs())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	assert.NoError(t, closer.Close())

	mr := miniredis.RunT(t)
	cfg.Prompts.Store = config.StoreRedis
	cfg.Database.Redis.Address = mr.Addr()
	store, closer, err = NewStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)
	assert.NoError(t, closer.Close())

	cfg.Prompts.Store = "s3"
	_, _, err = NewStore(cfg, nil)
	assert.Error(t, err)
}
