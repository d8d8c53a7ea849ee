package core

import (
	"strconv"
	"strings"
)

// Paragraph is the unit of chunk packing: an ordered group of sentences
// produced by the external segmenter. IDs are dense, zero-based, and
// monotonically increasing in document order.
type Paragraph struct {
	ID        int      `json:"par_id"`
	Sentences []string `json:"sentences"`
}

// Text joins the paragraph's sentences into a single string.
func (p Paragraph) Text() string {
	return strings.Join(p.Sentences, " ")
}

// CountSource records how a token count was produced. Counts from the
// generic estimator carry more error than provider-authoritative counts,
// so the provenance must survive aggregation and caching.
type CountSource string

const (
	// CountSourceProvider means the count came from the provider's own
	// tokenizer or counting endpoint.
	CountSourceProvider CountSource = "provider"
	// CountSourceEstimator means the count came from the generic
	// sub-word estimator fallback.
	CountSourceEstimator CountSource = "estimator"
)

// TokenCount is a token count tagged with its provenance.
type TokenCount struct {
	Tokens int         `json:"tokens"`
	Source CountSource `json:"source"`
}

// Chunk is one contiguous, ordered group of paragraph IDs sized to fit
// within the model's per-request token budget.
type Chunk struct {
	Name         string `json:"chunk_id"`
	ParagraphIDs []int  `json:"paragraph_ids"`
}

// ChunkMapping is the ordered chunk-to-paragraph assignment for a book.
// Concatenating the paragraph ID lists in slice order reproduces the
// original paragraph sequence exactly once each.
type ChunkMapping []Chunk

// ChunkName returns the 1-based sequential chunk name ("chunk1", "chunk2", ...).
func ChunkName(i int) string {
	return "chunk" + strconv.Itoa(i)
}

// ParagraphIDs returns all paragraph IDs in chunk order.
func (m ChunkMapping) ParagraphIDs() []int {
	var ids []int
	for _, c := range m {
		ids = append(ids, c.ParagraphIDs...)
	}
	return ids
}

// ChunkRecord carries per-chunk token accounting derived from a mapping:
// the paragraph token sum, the fixed prompt overhead repeated in every
// request, and pre-flight output/thinking estimates.
type ChunkRecord struct {
	Name              string `json:"chunk_id"`
	ParagraphIDs      []int  `json:"paragraph_ids"`
	ParagraphTokens   int    `json:"paragraph_tokens"`
	PromptTokens      int    `json:"prompt_tokens"`
	InputTokens       int    `json:"tot_input_tokens"`
	OutputTokensEst   int    `json:"tot_output_tokens,omitempty"`
	ThinkingTokensEst *int   `json:"tot_thinking_tokens,omitempty"`
}

// TokenUsage is the actual usage reported by a provider call. It is
// authoritative and overrides pre-flight estimates for accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	ThinkingTokens   int `json:"thinking_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

// TokenTotals accumulates usage across a run. A single orchestration run
// owns one instance; it is never shared across runs.
type TokenTotals struct {
	Input    int `json:"input"`
	Output   int `json:"output"`
	Thinking int `json:"thinking"`
}

// Add folds one call's actual usage into the totals.
func (t *TokenTotals) Add(u TokenUsage) {
	t.Input += u.PromptTokens
	t.Output += u.CompletionTokens
	t.Thinking += u.ThinkingTokens
}

// Sum returns the grand total across all categories.
func (t TokenTotals) Sum() int {
	return t.Input + t.Output + t.Thinking
}

// PriceTable holds USD prices per million tokens per category.
// A zero price means the category is free (or not billed by the provider).
type PriceTable struct {
	InputPerMtok    float64 `json:"input"`
	OutputPerMtok   float64 `json:"output"`
	ThinkingPerMtok float64 `json:"thinking"`
}

// CostBreakdown is a pure function of token totals and a price table.
// It has no identity of its own and is always recomputed, never mutated.
type CostBreakdown struct {
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	ThinkingCost float64 `json:"thinking_cost"`
	TotalCost    float64 `json:"total_cost"`
}

// TranslateRequest is the per-chunk transformation input.
type TranslateRequest struct {
	// Text is the chunk text (paragraphs joined by blank lines).
	Text           string
	SourceLanguage string
	TargetLanguage string
	// ThinkingBudget controls extended thinking for providers that
	// support it: nil lets the model decide, 0 disables, -1 is
	// unlimited, positive values set an explicit budget.
	ThinkingBudget *int
}

// TranslateResult is a successful per-chunk transformation output.
type TranslateResult struct {
	Text  string
	Usage TokenUsage
	// FinishReason is the provider's stop reason, when reported.
	FinishReason string
	// Complete is false when the provider truncated the output.
	Complete bool
}
