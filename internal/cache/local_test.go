package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookpipe/internal/core"
)

func TestLocalCache_SetGetPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	ctx := context.Background()

	c, err := NewLocalCache(path)
	require.NoError(t, err)

	key := Key("gemini", "gemini-2.5-flash", "some paragraph text")
	entry, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, entry, "miss must be nil, nil")

	require.NoError(t, c.Set(ctx, key, Entry{Tokens: 42, Source: core.CountSourceProvider}))

	entry, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 42, entry.Tokens)
	assert.Equal(t, core.CountSourceProvider, entry.Source)

	require.NoError(t, c.Close())

	// A fresh cache instance sees the persisted entry.
	reopened, err := NewLocalCache(path)
	require.NoError(t, err)
	entry, err = reopened.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 42, entry.Tokens)
	assert.Equal(t, core.CountSourceProvider, entry.Source, "provenance must survive persistence")
}

func TestLocalCache_CleanCloseWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	c, err := NewLocalCache(path)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no writes means no file")
}

func TestLocalCache_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{corrupt"), 0o644))

	_, err := NewLocalCache(path)
	require.Error(t, err)
}

func TestKey_Format(t *testing.T) {
	key := Key("gemini", "model-x", "text")
	assert.Contains(t, key, "gemini:")
	assert.Contains(t, key, "model-x:")
	// The text itself never appears in the key, only its hash.
	assert.NotContains(t, key, "text")
}
