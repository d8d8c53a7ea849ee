// Package cache provides a token-count cache so remote counting endpoints
// are not re-queried for text that has already been measured.
// Supports a local file backend and Redis for shared deployments.
package cache

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"bookpipe/internal/core"
)

// Entry is one cached token count. The provenance is cached alongside the
// count: an estimator-derived count must never masquerade as an
// authoritative one after a cache round-trip.
type Entry struct {
	Tokens int              `json:"tokens"`
	Source core.CountSource `json:"source"`
}

// TokenCache defines the interface for token-count cache backends.
// Implementations must be safe for concurrent use.
type TokenCache interface {
	// Get retrieves a cached count. Returns nil, nil on a miss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores a count.
	Set(ctx context.Context, key string, entry Entry) error

	// Close releases resources, flushing pending writes if any.
	Close() error
}

// Key builds the cache key for a piece of text counted for a specific
// provider and model. Counts are not portable across providers, so both
// are part of the key; the text itself is hashed.
func Key(providerType, model, text string) string {
	return fmt.Sprintf("%s:%s:%016x", providerType, model, xxhash.Sum64String(text))
}
