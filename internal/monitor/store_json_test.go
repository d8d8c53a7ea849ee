package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookpipe/internal/core"
)

func TestJSONStore_MappingFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	require.NoError(t, err)

	mapping := core.ChunkMapping{
		{Name: "chunk1", ParagraphIDs: []int{0, 1}},
		{Name: "chunk2", ParagraphIDs: []int{2}},
	}
	require.NoError(t, store.WriteMapping("run-1", mapping))

	data, err := os.ReadFile(filepath.Join(dir, "run-1_mapping.json"))
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "chunk1", got[0]["chunk_id"])
	assert.Equal(t, []any{float64(0), float64(1)}, got[0]["paragraph_ids"])
}

func TestJSONStore_EntriesAccumulate(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	require.NoError(t, err)

	first := NewEntry("run-2", "chunk1", []int{0})
	first.Output = "prima parte"
	first.Status = StatusSuccess
	require.NoError(t, store.WriteEntries([]Entry{first}))

	second := NewEntry("run-2", "chunk2", []int{1})
	second.Output = "seconda parte"
	second.Status = StatusRecovered
	second.Attempts = 2
	require.NoError(t, store.WriteEntries([]Entry{second}))

	data, err := os.ReadFile(filepath.Join(dir, "run-2_translation_monitoring.json"))
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)

	// Field names follow the monitoring JSON layout consumed downstream.
	assert.Equal(t, "chunk1", got[0]["chunk_id"])
	assert.Equal(t, "prima parte", got[0]["translated_chunk"])
	assert.Contains(t, got[0], "paragraphs_ids")
	assert.Equal(t, "recovered", got[1]["status"])
}

func TestJSONStore_EmptyWriteIsNoop(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.WriteEntries(nil))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}
