package tokens

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookpipe/internal/cache"
	"bookpipe/internal/core"
)

type fakeNative struct {
	counts map[string]int
	err    error
	calls  int
}

func (f *fakeNative) CountTokens(_ context.Context, text string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[text], nil
}

type memCache struct {
	entries map[string]cache.Entry
	sets    int
}

func newMemCache() *memCache { return &memCache{entries: map[string]cache.Entry{}} }

func (m *memCache) Get(_ context.Context, key string) (*cache.Entry, error) {
	if e, ok := m.entries[key]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *memCache) Set(_ context.Context, key string, e cache.Entry) error {
	m.entries[key] = e
	m.sets++
	return nil
}

func (m *memCache) Close() error { return nil }

func TestCount_EmptyText(t *testing.T) {
	c := NewCounter("m", "gemini", nil, nil)
	count := c.Count(context.Background(), "")
	assert.Equal(t, 0, count.Tokens)
}

func TestCount_NativeAuthoritative(t *testing.T) {
	native := &fakeNative{counts: map[string]int{"hello world": 3}}
	c := NewCounter("m", "gemini", native, nil)

	count := c.Count(context.Background(), "hello world")
	assert.Equal(t, 3, count.Tokens)
	assert.Equal(t, core.CountSourceProvider, count.Source)
}

func TestCount_NativeFailureFallsBackToEstimator(t *testing.T) {
	native := &fakeNative{err: errors.New("endpoint down")}
	c := NewCounter("m", "gemini", native, nil)

	count := c.Count(context.Background(), "some text that still needs a size")
	assert.Greater(t, count.Tokens, 0)
	assert.Equal(t, core.CountSourceEstimator, count.Source)
}

func TestCount_EstimatorDeterministic(t *testing.T) {
	c := NewCounter("m", "deepseek", nil, nil)
	text := "The quick brown fox jumps over the lazy dog."

	first := c.Count(context.Background(), text)
	second := c.Count(context.Background(), text)
	assert.Equal(t, first, second)
	assert.Equal(t, core.CountSourceEstimator, first.Source)
	assert.Greater(t, first.Tokens, 0)
}

func TestCount_EstimatorGrowsWithText(t *testing.T) {
	c := NewCounter("m", "deepseek", nil, nil)
	base := "A paragraph of perfectly ordinary prose. "

	small := c.Count(context.Background(), strings.Repeat(base, 2))
	large := c.Count(context.Background(), strings.Repeat(base, 20))
	assert.Greater(t, large.Tokens, small.Tokens)
}

func TestCount_CacheHitSkipsNative(t *testing.T) {
	native := &fakeNative{counts: map[string]int{"cached text": 7}}
	mc := newMemCache()
	c := NewCounter("m", "gemini", native, mc)

	first := c.Count(context.Background(), "cached text")
	second := c.Count(context.Background(), "cached text")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, native.calls, "second count must come from the cache")
	assert.Equal(t, 1, mc.sets)
	// Provenance survives the cache round trip.
	assert.Equal(t, core.CountSourceProvider, second.Source)
}

func TestCacheKey_DistinguishesProviderAndModel(t *testing.T) {
	a := cache.Key("gemini", "model-a", "same text")
	b := cache.Key("gemini", "model-b", "same text")
	c := cache.Key("openai", "model-a", "same text")
	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
	assert.Equal(t, a, cache.Key("gemini", "model-a", "same text"))
}
