package cache

import (
	"fmt"
	"time"
)

// New creates a TokenCache for the configured backend type. An empty or
// "none" type disables caching (returns nil, nil); callers must treat a
// nil cache as a no-op.
func New(cacheType, path, redisURL string, redisTTL time.Duration) (TokenCache, error) {
	switch cacheType {
	case "", "none":
		return nil, nil
	case "local":
		if path == "" {
			return nil, fmt.Errorf("local token cache requires a file path")
		}
		return NewLocalCache(path)
	case "redis":
		return NewRedisCache(RedisConfig{URL: redisURL, TTL: redisTTL})
	default:
		return nil, fmt.Errorf("unknown token cache type: %s", cacheType)
	}
}
