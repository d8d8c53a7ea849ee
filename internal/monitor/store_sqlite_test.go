package monitor

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookpipe/internal/core"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	mapping := core.ChunkMapping{
		{Name: "chunk1", ParagraphIDs: []int{0, 1, 2}},
		{Name: "chunk2", ParagraphIDs: []int{3}},
	}
	require.NoError(t, store.WriteMapping("run-1", mapping))

	longOutput := strings.Repeat("Translated prose for the compression round trip. ", 200)
	entries := []Entry{
		func() Entry {
			e := NewEntry("run-1", "chunk1", []int{0, 1, 2})
			e.Output = longOutput
			e.Status = StatusSuccess
			e.Attempts = 1
			e.Provider = "gemini"
			e.Model = "gemini-2.5-flash"
			e.Usage = core.TokenUsage{PromptTokens: 100, CompletionTokens: 90, ThinkingTokens: 5, TotalTokens: 195}
			return e
		}(),
		func() Entry {
			e := NewEntry("run-1", "chunk2", []int{3})
			e.Output = "[TRANSLATION FAILED: chunk2]"
			e.Status = StatusFailed
			e.Attempts = 2
			e.Provider = "gemini"
			e.Model = "gemini-2.5-flash"
			return e
		}(),
	}
	require.NoError(t, store.WriteEntries(entries))

	got, err := store.ReadEntries("run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "chunk1", got[0].ChunkName)
	assert.Equal(t, []int{0, 1, 2}, got[0].ParagraphIDs)
	assert.Equal(t, longOutput, got[0].Output, "output must survive compression")
	assert.Equal(t, StatusSuccess, got[0].Status)
	assert.Equal(t, 195, got[0].Usage.TotalTokens)

	assert.Equal(t, StatusFailed, got[1].Status)
	assert.Equal(t, 2, got[1].Attempts)
}

func TestSQLiteStore_LargeBatch(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	// More entries than fit under the 999-variable limit in one statement.
	entries := make([]Entry, 200)
	for i := range entries {
		e := NewEntry("run-big", core.ChunkName(i+1), []int{i})
		e.Status = StatusSuccess
		e.Output = "text"
		e.Timestamp = time.Now().UTC()
		entries[i] = e
	}
	require.NoError(t, store.WriteEntries(entries))

	got, err := store.ReadEntries("run-big")
	require.NoError(t, err)
	require.Len(t, got, 200)
	assert.Equal(t, "chunk1", got[0].ChunkName)
	assert.Equal(t, "chunk200", got[199].ChunkName)
}

func TestSQLiteStore_EmptyWrite(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	require.NoError(t, store.WriteEntries(nil))
}
