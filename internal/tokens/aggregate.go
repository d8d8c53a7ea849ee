package tokens

import (
	"context"
	"log/slog"
	"math"

	"bookpipe/internal/core"
	"bookpipe/internal/prompt"
)

// ParagraphCounts holds per-paragraph token counts for one book, measured
// by one provider's tokenizer, plus aggregate statistics.
type ParagraphCounts struct {
	// Counts maps paragraph ID to its token count.
	Counts map[int]core.TokenCount

	// Order lists paragraph IDs in document order.
	Order []int

	Total   int
	Average float64

	// Estimated is true when at least one count came from the fallback
	// estimator rather than the provider's authoritative method.
	Estimated bool
}

// CountParagraphs counts tokens for every paragraph. Zero paragraphs
// yields total 0 and average 0, not an error.
func (c *Counter) CountParagraphs(ctx context.Context, paragraphs []core.Paragraph) ParagraphCounts {
	result := ParagraphCounts{
		Counts: make(map[int]core.TokenCount, len(paragraphs)),
		Order:  make([]int, 0, len(paragraphs)),
	}

	for _, p := range paragraphs {
		count := c.Count(ctx, p.Text())
		result.Counts[p.ID] = count
		result.Order = append(result.Order, p.ID)
		result.Total += count.Tokens
		if count.Source == core.CountSourceEstimator {
			result.Estimated = true
		}
	}

	if len(paragraphs) > 0 {
		result.Average = float64(result.Total) / float64(len(paragraphs))
	}
	return result
}

// CountPrompt measures the fixed prompt overhead repeated in every chunk
// request: the template boilerplate without the per-chunk payload.
func (c *Counter) CountPrompt(ctx context.Context, tpl *prompt.Template, sourceLanguage, targetLanguage string) core.TokenCount {
	return c.Count(ctx, tpl.Boilerplate(sourceLanguage, targetLanguage))
}

// ChunkInputTokens derives per-chunk input token records from a chunk
// mapping: each chunk's paragraph token sum plus the fixed prompt
// overhead. A paragraph ID present in the mapping but absent from the
// count table contributes 0 and is logged as a data-consistency warning,
// since it means the packing invariant may be locally violated.
func ChunkInputTokens(counts ParagraphCounts, promptTokens int, mapping core.ChunkMapping) []core.ChunkRecord {
	records := make([]core.ChunkRecord, 0, len(mapping))

	for _, ch := range mapping {
		paragraphSum := 0
		for _, id := range ch.ParagraphIDs {
			count, ok := counts.Counts[id]
			if !ok {
				slog.Warn("paragraph in chunk mapping has no token count, counting as 0",
					"chunk", ch.Name,
					"paragraph_id", id,
				)
				continue
			}
			paragraphSum += count.Tokens
		}

		records = append(records, core.ChunkRecord{
			Name:            ch.Name,
			ParagraphIDs:    ch.ParagraphIDs,
			ParagraphTokens: paragraphSum,
			PromptTokens:    promptTokens,
			InputTokens:     paragraphSum + promptTokens,
		})
	}
	return records
}

// EstimateOutput extends chunk records with pessimistic pre-flight output
// estimates: floor(input * outputRatio), and floor(input * thinkingRatio)
// when a thinking ratio is supplied. Estimates are for planning only and
// never replace actual usage reported by the provider.
func EstimateOutput(records []core.ChunkRecord, outputRatio float64, thinkingRatio *float64) []core.ChunkRecord {
	estimated := make([]core.ChunkRecord, len(records))
	for i, r := range records {
		r.OutputTokensEst = int(math.Floor(float64(r.InputTokens) * outputRatio))
		if thinkingRatio != nil {
			thinking := int(math.Floor(float64(r.InputTokens) * *thinkingRatio))
			r.ThinkingTokensEst = &thinking
		}
		estimated[i] = r
	}
	return estimated
}

// SumTotals sums estimated tokens across chunk records. hasThinking is
// true iff at least one record carries a thinking estimate; callers that
// report totals omit the thinking category otherwise.
func SumTotals(records []core.ChunkRecord) (totals core.TokenTotals, hasThinking bool) {
	for _, r := range records {
		totals.Input += r.InputTokens
		totals.Output += r.OutputTokensEst
		if r.ThinkingTokensEst != nil {
			totals.Thinking += *r.ThinkingTokensEst
			hasThinking = true
		}
	}
	return totals, hasThinking
}
