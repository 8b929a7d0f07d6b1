package templates

import (
	"context"
	"errors"
	"fmt"

	"conversation-analyzer/internal/common/database"
)

// RedisStore reads templates stored as plain strings under <prefix><name>.
type RedisStore struct {
	client *database.RedisClient
	prefix string
}

func NewRedisStore(client *database.RedisClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Load(ctx context.Context, name string) (string, error) {
	key := s.prefix + name
	val, err := s.client.Lookup(ctx, key)
	if errors.Is(err, database.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: redis key %s", ErrTemplateNotFound, key)
	}
	return val, err
}
