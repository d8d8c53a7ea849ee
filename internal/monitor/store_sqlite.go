package monitor

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	_ "modernc.org/sqlite"

	"bookpipe/internal/core"
)

// SQLiteStore persists run records in a local SQLite database. Translated
// chunk text is brotli-compressed before storage; a book-length run can
// otherwise grow the database by tens of megabytes.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunk_mappings (
	run_id        TEXT NOT NULL,
	chunk_name    TEXT NOT NULL,
	paragraph_ids TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (run_id, chunk_name)
);
CREATE TABLE IF NOT EXISTS chunk_entries (
	id                TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL,
	chunk_name        TEXT NOT NULL,
	paragraph_ids     TEXT NOT NULL,
	output            BLOB,
	status            TEXT NOT NULL,
	attempts          INTEGER NOT NULL,
	provider          TEXT NOT NULL,
	model             TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	thinking_tokens   INTEGER NOT NULL,
	total_tokens      INTEGER NOT NULL,
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunk_entries_run ON chunk_entries(run_id);
`

// entryColumns is the number of bound parameters per entry row; batches
// stay under SQLite's default 999-variable limit.
const entryColumns = 14

// NewSQLiteStore opens (creating if necessary) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// modernc.org/sqlite does not support concurrent writers on one
	// connection pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) WriteMapping(runID string, mapping core.ChunkMapping) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck
	}()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO chunk_mappings
		(run_id, chunk_name, paragraph_ids, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare mapping insert: %w", err)
	}
	defer func() {
		_ = stmt.Close() //nolint:errcheck
	}()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, ch := range mapping {
		ids, err := json.Marshal(ch.ParagraphIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal paragraph ids: %w", err)
		}
		if _, err := stmt.Exec(runID, ch.Name, string(ids), now); err != nil {
			return fmt.Errorf("failed to insert mapping for %s: %w", ch.Name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) WriteEntries(entries []Entry) error {
	batchSize := 999 / entryColumns
	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))
		if err := s.writeBatch(entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) writeBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT OR REPLACE INTO chunk_entries
		(id, run_id, chunk_name, paragraph_ids, output, status, attempts,
		 provider, model, prompt_tokens, completion_tokens, thinking_tokens,
		 total_tokens, created_at) VALUES `)

	args := make([]any, 0, len(entries)*entryColumns)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

		ids, err := json.Marshal(e.ParagraphIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal paragraph ids: %w", err)
		}
		compressed, err := compressOutput(e.Output)
		if err != nil {
			return fmt.Errorf("failed to compress output for %s: %w", e.ChunkName, err)
		}
		args = append(args,
			e.ID, e.RunID, e.ChunkName, string(ids), compressed, e.Status,
			e.Attempts, e.Provider, e.Model,
			e.Usage.PromptTokens, e.Usage.CompletionTokens,
			e.Usage.ThinkingTokens, e.Usage.TotalTokens,
			e.Timestamp.Format(time.RFC3339))
	}

	if _, err := s.db.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert chunk entries: %w", err)
	}
	return nil
}

// ReadEntries returns the stored entries for one run in insertion order,
// with outputs decompressed.
func (s *SQLiteStore) ReadEntries(runID string) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT id, run_id, chunk_name, paragraph_ids,
		output, status, attempts, provider, model, prompt_tokens,
		completion_tokens, thinking_tokens, total_tokens, created_at
		FROM chunk_entries WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk entries: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck
	}()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ids string
		var output []byte
		var ts string
		if err := rows.Scan(&e.ID, &e.RunID, &e.ChunkName, &ids, &output,
			&e.Status, &e.Attempts, &e.Provider, &e.Model,
			&e.Usage.PromptTokens, &e.Usage.CompletionTokens,
			&e.Usage.ThinkingTokens, &e.Usage.TotalTokens, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan chunk entry: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &e.ParagraphIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal paragraph ids: %w", err)
		}
		text, err := decompressOutput(output)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress output for %s: %w", e.ChunkName, err)
		}
		e.Output = text
		if e.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func compressOutput(text string) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write([]byte(text)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressOutput(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	text, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return "", err
	}
	return string(text), nil
}
