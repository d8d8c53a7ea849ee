// Package monitor persists per-chunk translation records so a run can be
// audited (and a partially failed book recovered) after the fact.
package monitor

import (
	"time"

	"github.com/google/uuid"

	"bookpipe/internal/core"
)

// Chunk outcome statuses.
const (
	StatusSuccess   = "success"   // translated on the first attempt
	StatusRecovered = "recovered" // failed once, succeeded on retry
	StatusFailed    = "failed"    // both attempts failed, sentinel emitted
)

// Entry records the outcome of one chunk's translation.
type Entry struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id"`
	ChunkName    string          `json:"chunk_id"`
	ParagraphIDs []int           `json:"paragraphs_ids"`
	Output       string          `json:"translated_chunk"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	Usage        core.TokenUsage `json:"usage"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewEntry creates an entry with a fresh ID and the current timestamp.
func NewEntry(runID, chunkName string, paragraphIDs []int) Entry {
	return Entry{
		ID:           uuid.NewString(),
		RunID:        runID,
		ChunkName:    chunkName,
		ParagraphIDs: paragraphIDs,
		Timestamp:    time.Now().UTC(),
	}
}

// Store persists chunk mappings and per-chunk outcome entries.
type Store interface {
	// WriteMapping records which paragraphs each chunk holds, before any
	// translation happens, so an interrupted run still leaves the plan
	// on disk.
	WriteMapping(runID string, mapping core.ChunkMapping) error

	// WriteEntries persists chunk outcomes. Implementations batch where
	// the backend supports it.
	WriteEntries(entries []Entry) error

	Close() error
}
