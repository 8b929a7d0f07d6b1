package templates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"conversation-analyzer/internal/common/database"
)

// PostgresStore reads templates from a (name, body) table.
type PostgresStore struct {
	client *database.PostgresClient
	query  string
}

func NewPostgresStore(client *database.PostgresClient, table string) *PostgresStore {
	return &PostgresStore{
		client: client,
		query:  fmt.Sprintf("SELECT body FROM %s WHERE name = $1", pq.QuoteIdentifier(table)),
	}
}

func (s *PostgresStore) Load(ctx context.Context, name string) (string, error) {
	var body string
	err := s.client.QueryRow(ctx, s.query, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("query template %s: %w", name, err)
	}
	return body, nil
}
