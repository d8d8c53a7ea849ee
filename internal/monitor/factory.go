package monitor

import (
	"context"

	"bookpipe/internal/core"
)

// New creates a monitoring store from configuration. An empty or "none"
// backend disables monitoring (returns nil, nil); callers treat a nil
// store as a no-op.
func New(ctx context.Context, backend, path, dsn string) (Store, error) {
	switch backend {
	case "", "none":
		return nil, nil
	case "json":
		return NewJSONStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, core.NewConfigError("unknown monitor backend: %s (valid: json, sqlite, postgres, none)", backend)
	}
}
