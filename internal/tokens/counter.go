// Package tokens counts tokens with provider-appropriate accuracy and
// aggregates counts across paragraphs, prompts, and chunks.
package tokens

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"bookpipe/internal/cache"
	"bookpipe/internal/core"
)

// fallbackEncoding is the generic sub-word estimator encoding. cl100k_base
// matches modern tokenizers closely enough for size budgeting across
// providers that expose no counting endpoint of their own.
const fallbackEncoding = "cl100k_base"

// Counter produces provenance-tagged token counts for one provider/model
// pair. Counts from different Counters must never be mixed within one
// estimate: providers disagree on tokenization.
//
// Counter holds no per-book state; it is safe to reuse across runs.
type Counter struct {
	model        string
	providerType string

	// native is the provider's authoritative counting endpoint, or nil
	// when the provider has none.
	native core.NativeTokenCounter

	// tokenCache is optional; nil disables caching.
	tokenCache cache.TokenCache

	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
	encoderErr  error
}

// NewCounter creates a Counter. native may be nil for providers without
// an authoritative tokenizer; tokenCache may be nil to disable caching.
func NewCounter(model, providerType string, native core.NativeTokenCounter, tokenCache cache.TokenCache) *Counter {
	return &Counter{
		model:        model,
		providerType: providerType,
		native:       native,
		tokenCache:   tokenCache,
	}
}

// Count returns the token count for text. The provider's authoritative
// method is used when available; on any failure it degrades to the
// generic estimator with a warning rather than an error, tagging the
// result so downstream cost estimates know their accuracy.
func (c *Counter) Count(ctx context.Context, text string) core.TokenCount {
	if text == "" {
		return core.TokenCount{Tokens: 0, Source: c.defaultSource()}
	}

	key := cache.Key(c.providerType, c.model, text)
	if cached := c.cacheGet(ctx, key); cached != nil {
		return core.TokenCount{Tokens: cached.Tokens, Source: cached.Source}
	}

	count := c.countUncached(ctx, text)
	c.cacheSet(ctx, key, count)
	return count
}

func (c *Counter) countUncached(ctx context.Context, text string) core.TokenCount {
	if c.native != nil {
		n, err := c.native.CountTokens(ctx, text)
		if err == nil {
			return core.TokenCount{Tokens: n, Source: core.CountSourceProvider}
		}
		slog.Warn("authoritative token counting failed, falling back to estimator",
			"provider", c.providerType,
			"model", c.model,
			"error", err,
		)
	}
	return core.TokenCount{Tokens: c.estimate(text), Source: core.CountSourceEstimator}
}

// estimate counts tokens with the generic sub-word tokenizer. If the
// encoding cannot be initialized it degrades once more to a conservative
// character heuristic, keeping the result deterministic and monotonic.
func (c *Counter) estimate(text string) int {
	if text == "" {
		return 0
	}

	c.encoderOnce.Do(func() {
		c.encoder, c.encoderErr = tiktoken.GetEncoding(fallbackEncoding)
		if c.encoderErr != nil {
			slog.Warn("failed to initialize fallback tokenizer, using character heuristic",
				"encoding", fallbackEncoding,
				"error", c.encoderErr,
			)
		}
	})

	if c.encoderErr != nil {
		// ~3 chars per token is deliberately conservative to reduce the
		// risk of underestimating against a hard output limit.
		estimate := len(text) / 3
		if estimate < 1 {
			estimate = 1
		}
		return estimate
	}

	// Allow special tokens so input containing sequences like
	// "<|endoftext|>" is counted instead of rejected.
	return len(c.encoder.Encode(text, []string{"all"}, nil))
}

// defaultSource reports which source an empty-text count belongs to.
func (c *Counter) defaultSource() core.CountSource {
	if c.native != nil {
		return core.CountSourceProvider
	}
	return core.CountSourceEstimator
}

func (c *Counter) cacheGet(ctx context.Context, key string) *cache.Entry {
	if c.tokenCache == nil {
		return nil
	}
	entry, err := c.tokenCache.Get(ctx, key)
	if err != nil {
		slog.Warn("token cache read failed", "error", err)
		return nil
	}
	return entry
}

func (c *Counter) cacheSet(ctx context.Context, key string, count core.TokenCount) {
	if c.tokenCache == nil {
		return
	}
	err := c.tokenCache.Set(ctx, key, cache.Entry{Tokens: count.Tokens, Source: count.Source})
	if err != nil {
		slog.Warn("token cache write failed", "error", err)
	}
}
