package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalCache implements TokenCache using a single JSON file. The file is
// loaded once at construction; writes are buffered in memory and
// persisted on Close. Suitable for single-machine pipeline runs.
type LocalCache struct {
	mu       sync.RWMutex
	filePath string
	entries  map[string]Entry
	dirty    bool
}

// NewLocalCache creates a file-backed cache at filePath, loading any
// existing contents. A missing file is not an error.
func NewLocalCache(filePath string) (*LocalCache, error) {
	c := &LocalCache{
		filePath: filePath,
		entries:  make(map[string]Entry),
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read token cache file: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("failed to parse token cache file: %w", err)
	}
	return c, nil
}

// Get retrieves a cached count from memory.
func (c *LocalCache) Get(_ context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Set stores a count in memory; it is persisted on Close.
func (c *LocalCache) Set(_ context.Context, key string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry
	c.dirty = true
	return nil
}

// Close persists the cache to disk atomically (temp file + rename).
func (c *LocalCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty || c.filePath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}

	tmpFile := c.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write token cache file: %w", err)
	}
	if err := os.Rename(tmpFile, c.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename token cache file: %w", err)
	}

	c.dirty = false
	return nil
}
