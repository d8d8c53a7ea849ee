package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bookpipe/internal/core"
)

// JSONStore writes run records as JSON files in a directory, one mapping
// file and one entries file per run. The entries file is a flat array of
// Entry objects, append-equivalent: each WriteEntries rewrites the file
// with everything recorded so far.
type JSONStore struct {
	mu      sync.Mutex
	dir     string
	entries []Entry
}

// NewJSONStore creates the directory if needed and returns a store
// writing into it.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create monitor directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) WriteMapping(runID string, mapping core.ChunkMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(fmt.Sprintf("%s_mapping.json", runID), mapping)
}

func (s *JSONStore) WriteEntries(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entries...)
	if len(s.entries) == 0 {
		return nil
	}
	return s.writeFile(fmt.Sprintf("%s_translation_monitoring.json", s.entries[0].RunID), s.entries)
}

func (s *JSONStore) Close() error { return nil }

// writeFile marshals v and writes it atomically (temp file + rename) so
// a crash mid-write never leaves a truncated JSON file.
func (s *JSONStore) writeFile(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", name, err)
	}
	return nil
}
