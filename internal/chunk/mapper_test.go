package chunk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookpipe/internal/core"
)

func uniformInputs(n, tokens int) []Input {
	inputs := make([]Input, n)
	for i := range inputs {
		inputs[i] = Input{ParagraphID: i, Tokens: tokens}
	}
	return inputs
}

func TestMaxInputTokens(t *testing.T) {
	m := NewMapper(500, 1.0)
	limit, err := m.MaxInputTokens()
	require.NoError(t, err)
	assert.Equal(t, 400, limit)

	// floor(8192 / 1.2 * 0.8) = floor(5461.33) = 5461
	m = NewMapper(8192, 1.2)
	limit, err = m.MaxInputTokens()
	require.NoError(t, err)
	assert.Equal(t, 5461, limit)
}

func TestMaxInputTokens_ConfigErrors(t *testing.T) {
	_, err := NewMapper(0, 1.0).MaxInputTokens()
	require.Error(t, err)
	assert.True(t, core.IsConfigError(err))

	_, err = NewMapper(500, 0).MaxInputTokens()
	require.Error(t, err)
	assert.True(t, core.IsConfigError(err))

	_, err = NewMapper(500, -0.5).MaxInputTokens()
	require.Error(t, err)
	assert.True(t, core.IsConfigError(err))
}

func TestMap_UniformParagraphs(t *testing.T) {
	// 23 paragraphs of 50 tokens, ceiling 400: strict < packs 7 per chunk
	// (7*50=350; adding the 8th reaches exactly 400 and starts a new one).
	m := NewMapper(500, 1.0)
	mapping, err := m.Map(uniformInputs(23, 50))
	require.NoError(t, err)

	require.Len(t, mapping, 4)
	assert.Len(t, mapping[0].ParagraphIDs, 7)
	assert.Len(t, mapping[1].ParagraphIDs, 7)
	assert.Len(t, mapping[2].ParagraphIDs, 7)
	assert.Len(t, mapping[3].ParagraphIDs, 2)

	assert.Equal(t, "chunk1", mapping[0].Name)
	assert.Equal(t, "chunk4", mapping[3].Name)
}

func TestMap_ExactBoundaryStartsNewChunk(t *testing.T) {
	// Ceiling 640: two 320-token paragraphs sum to exactly 640, so the
	// second must start a new chunk.
	m := NewMapper(800, 1.0)
	limit, err := m.MaxInputTokens()
	require.NoError(t, err)
	require.Equal(t, 640, limit)

	mapping, err := m.Map([]Input{
		{ParagraphID: 0, Tokens: 320},
		{ParagraphID: 1, Tokens: 320},
	})
	require.NoError(t, err)
	require.Len(t, mapping, 2)
	assert.Equal(t, []int{0}, mapping[0].ParagraphIDs)
	assert.Equal(t, []int{1}, mapping[1].ParagraphIDs)
}

func TestMap_OversizedParagraphBecomesSingleton(t *testing.T) {
	// A paragraph above the ceiling is never split: it lands alone.
	m := NewMapper(500, 1.0)
	mapping, err := m.Map([]Input{
		{ParagraphID: 0, Tokens: 100},
		{ParagraphID: 1, Tokens: 2000},
		{ParagraphID: 2, Tokens: 100},
	})
	require.NoError(t, err)

	require.Len(t, mapping, 3)
	assert.Equal(t, []int{0}, mapping[0].ParagraphIDs)
	assert.Equal(t, []int{1}, mapping[1].ParagraphIDs)
	assert.Equal(t, []int{2}, mapping[2].ParagraphIDs)
}

func TestMap_Empty(t *testing.T) {
	m := NewMapper(500, 1.0)
	mapping, err := m.Map(nil)
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestMap_SingleParagraph(t *testing.T) {
	m := NewMapper(500, 1.0)
	mapping, err := m.Map([]Input{{ParagraphID: 42, Tokens: 10}})
	require.NoError(t, err)
	require.Len(t, mapping, 1)
	assert.Equal(t, "chunk1", mapping[0].Name)
	assert.Equal(t, []int{42}, mapping[0].ParagraphIDs)
}

// TestMap_CoverageAndOrder checks the core packing invariant on random
// inputs: every paragraph appears exactly once, in original order, and
// multi-paragraph chunks stay under the ceiling.
func TestMap_CoverageAndOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := NewMapper(4000, 1.25)
	limit, err := m.MaxInputTokens()
	require.NoError(t, err)

	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(200)
		inputs := make([]Input, n)
		tokensByID := make(map[int]int, n)
		for i := range inputs {
			tok := 1 + rng.Intn(limit*3/2)
			inputs[i] = Input{ParagraphID: i, Tokens: tok}
			tokensByID[i] = tok
		}

		mapping, err := m.Map(inputs)
		require.NoError(t, err)

		var flattened []int
		for _, ch := range mapping {
			require.NotEmpty(t, ch.ParagraphIDs)

			sum := 0
			for _, id := range ch.ParagraphIDs {
				sum += tokensByID[id]
			}
			if len(ch.ParagraphIDs) > 1 {
				assert.Less(t, sum, limit, "multi-paragraph chunk over ceiling")
			}
			flattened = append(flattened, ch.ParagraphIDs...)
		}

		require.Len(t, flattened, n)
		for i, id := range flattened {
			assert.Equal(t, i, id, "paragraph order not preserved")
		}
	}
}
