package book

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookpipe/internal/core"
)

func TestLoadSegmented(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novel_segmented.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"par_id": 0, "sentences": ["First sentence.", "Second sentence."]},
		{"par_id": 1, "sentences": ["Another paragraph."]}
	]`), 0o644))

	paragraphs, err := LoadSegmented(path)
	require.NoError(t, err)
	require.Len(t, paragraphs, 2)
	assert.Equal(t, 0, paragraphs[0].ID)
	assert.Equal(t, "First sentence. Second sentence.", paragraphs[0].Text())
	assert.Equal(t, "Another paragraph.", paragraphs[1].Text())
}

func TestLoadSegmented_MissingFile(t *testing.T) {
	_, err := LoadSegmented(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadSegmented_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json]`), 0o644))
	_, err := LoadSegmented(path)
	require.Error(t, err)
}

func TestMergeParagraphs(t *testing.T) {
	paragraphs := []core.Paragraph{
		{ID: 0, Sentences: []string{"One."}},
		{ID: 1, Sentences: []string{"Two."}},
		{ID: 2, Sentences: []string{"Three."}},
	}

	assert.Equal(t, "One.\n\nThree.", MergeParagraphs(paragraphs, []int{0, 2}))
	assert.Equal(t, "Two.", MergeParagraphs(paragraphs, []int{1, 99}))
	assert.Equal(t, "", MergeParagraphs(paragraphs, nil))
}

func TestOutputFilename(t *testing.T) {
	assert.Equal(t, filepath.Join("books", "novel_translated.txt"),
		OutputFilename(filepath.Join("books", "novel_segmented.json")))
	assert.Equal(t, filepath.Join(".", "plain_translated.txt"),
		OutputFilename("plain.json"))
}

func TestWriteOutput_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "out.txt")
	require.NoError(t, WriteOutput(path, "translated text"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "translated text", string(data))
}
