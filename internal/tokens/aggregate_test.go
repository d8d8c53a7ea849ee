package tokens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookpipe/internal/core"
	"bookpipe/internal/prompt"
)

func nativeForParagraphs(paragraphs []core.Paragraph, tokens map[int]int) *fakeNative {
	counts := make(map[string]int)
	for _, p := range paragraphs {
		counts[p.Text()] = tokens[p.ID]
	}
	return &fakeNative{counts: counts}
}

func TestCountParagraphs_Empty(t *testing.T) {
	c := NewCounter("m", "gemini", &fakeNative{}, nil)
	result := c.CountParagraphs(context.Background(), nil)
	assert.Equal(t, 0, result.Total)
	assert.Equal(t, 0.0, result.Average)
	assert.False(t, result.Estimated)
}

func TestCountParagraphs_TotalsAndAverage(t *testing.T) {
	paragraphs := []core.Paragraph{
		{ID: 0, Sentences: []string{"First."}},
		{ID: 1, Sentences: []string{"Second."}},
		{ID: 2, Sentences: []string{"Third."}},
	}
	native := nativeForParagraphs(paragraphs, map[int]int{0: 10, 1: 20, 2: 30})
	c := NewCounter("m", "gemini", native, nil)

	result := c.CountParagraphs(context.Background(), paragraphs)
	assert.Equal(t, 60, result.Total)
	assert.Equal(t, 20.0, result.Average)
	assert.Equal(t, []int{0, 1, 2}, result.Order)
	assert.False(t, result.Estimated)
	assert.Equal(t, 20, result.Counts[1].Tokens)
}

func TestCountParagraphs_EstimatedFlag(t *testing.T) {
	paragraphs := []core.Paragraph{{ID: 0, Sentences: []string{"Only paragraph."}}}
	c := NewCounter("m", "deepseek", nil, nil)

	result := c.CountParagraphs(context.Background(), paragraphs)
	assert.True(t, result.Estimated)
}

func TestChunkInputTokens(t *testing.T) {
	counts := ParagraphCounts{
		Counts: map[int]core.TokenCount{
			0: {Tokens: 100}, 1: {Tokens: 150}, 2: {Tokens: 50},
		},
	}
	mapping := core.ChunkMapping{
		{Name: "chunk1", ParagraphIDs: []int{0, 1}},
		{Name: "chunk2", ParagraphIDs: []int{2}},
	}

	records := ChunkInputTokens(counts, 40, mapping)
	require.Len(t, records, 2)
	assert.Equal(t, 250, records[0].ParagraphTokens)
	assert.Equal(t, 290, records[0].InputTokens)
	assert.Equal(t, 50, records[1].ParagraphTokens)
	assert.Equal(t, 90, records[1].InputTokens)
}

func TestChunkInputTokens_MissingParagraphCountsAsZero(t *testing.T) {
	counts := ParagraphCounts{Counts: map[int]core.TokenCount{0: {Tokens: 100}}}
	mapping := core.ChunkMapping{{Name: "chunk1", ParagraphIDs: []int{0, 99}}}

	records := ChunkInputTokens(counts, 10, mapping)
	require.Len(t, records, 1)
	assert.Equal(t, 100, records[0].ParagraphTokens)
	assert.Equal(t, 110, records[0].InputTokens)
}

func TestEstimateOutput(t *testing.T) {
	records := []core.ChunkRecord{{Name: "chunk1", InputTokens: 1000}}

	out := EstimateOutput(records, 1.5, nil)
	assert.Equal(t, 1500, out[0].OutputTokensEst)
	assert.Nil(t, out[0].ThinkingTokensEst)

	thinking := 0.25
	out = EstimateOutput(records, 0.9, &thinking)
	assert.Equal(t, 900, out[0].OutputTokensEst)
	require.NotNil(t, out[0].ThinkingTokensEst)
	assert.Equal(t, 250, *out[0].ThinkingTokensEst)
}

func TestEstimateOutput_Floors(t *testing.T) {
	records := []core.ChunkRecord{{InputTokens: 7}}
	out := EstimateOutput(records, 1.1, nil)
	assert.Equal(t, 7, out[0].OutputTokensEst) // floor(7.7)
}

func TestSumTotals(t *testing.T) {
	thinking := 30
	records := []core.ChunkRecord{
		{InputTokens: 100, OutputTokensEst: 120},
		{InputTokens: 200, OutputTokensEst: 240, ThinkingTokensEst: &thinking},
	}
	totals, hasThinking := SumTotals(records)
	assert.Equal(t, 300, totals.Input)
	assert.Equal(t, 360, totals.Output)
	assert.Equal(t, 30, totals.Thinking)
	assert.True(t, hasThinking)

	totals, hasThinking = SumTotals(records[:1])
	assert.False(t, hasThinking)
	assert.Equal(t, 0, totals.Thinking)
}

func TestCountPrompt_ExcludesChunkPayload(t *testing.T) {
	// The prompt overhead must not scale with chunk size: only the
	// boilerplate is measured, never the {text} payload line.
	tpl := prompt.New("Translate from {source_language} to {target_language}.\n{text}")
	c := NewCounter("m", "deepseek", nil, nil)

	overhead := c.CountPrompt(context.Background(), tpl, "English", "Italian")
	full := c.Count(context.Background(), tpl.Render("English", "Italian", "a very long payload repeated many times over and over"))
	assert.Greater(t, overhead.Tokens, 0)
	assert.Less(t, overhead.Tokens, full.Tokens)
}
