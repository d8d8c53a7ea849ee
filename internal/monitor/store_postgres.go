package monitor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookpipe/internal/core"
)

// PostgresStore persists run records in PostgreSQL, for deployments where
// several translation workers share one monitoring database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS chunk_mappings (
	run_id        TEXT NOT NULL,
	chunk_name    TEXT NOT NULL,
	paragraph_ids JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, chunk_name)
);
CREATE TABLE IF NOT EXISTS chunk_entries (
	id                TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL,
	chunk_name        TEXT NOT NULL,
	paragraph_ids     JSONB NOT NULL,
	output            TEXT,
	status            TEXT NOT NULL,
	attempts          INTEGER NOT NULL,
	provider          TEXT NOT NULL,
	model             TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	thinking_tokens   INTEGER NOT NULL,
	total_tokens      INTEGER NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunk_entries_run ON chunk_entries(run_id);
`

// NewPostgresStore connects to the database at dsn and ensures the schema
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) WriteMapping(runID string, mapping core.ChunkMapping) error {
	ctx := context.Background()
	batch := &pgx.Batch{}
	for _, ch := range mapping {
		ids, err := json.Marshal(ch.ParagraphIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal paragraph ids: %w", err)
		}
		batch.Queue(`INSERT INTO chunk_mappings (run_id, chunk_name, paragraph_ids)
			VALUES ($1, $2, $3)
			ON CONFLICT (run_id, chunk_name) DO UPDATE SET paragraph_ids = EXCLUDED.paragraph_ids`,
			runID, ch.Name, ids)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close() //nolint:errcheck
	}()
	for range mapping {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk mapping: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) WriteEntries(entries []Entry) error {
	ctx := context.Background()
	batch := &pgx.Batch{}
	for _, e := range entries {
		ids, err := json.Marshal(e.ParagraphIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal paragraph ids: %w", err)
		}
		batch.Queue(`INSERT INTO chunk_entries
			(id, run_id, chunk_name, paragraph_ids, output, status, attempts,
			 provider, model, prompt_tokens, completion_tokens, thinking_tokens,
			 total_tokens, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, e.RunID, e.ChunkName, ids, e.Output, e.Status, e.Attempts,
			e.Provider, e.Model, e.Usage.PromptTokens, e.Usage.CompletionTokens,
			e.Usage.ThinkingTokens, e.Usage.TotalTokens, e.Timestamp)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close() //nolint:errcheck
	}()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk entry: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
