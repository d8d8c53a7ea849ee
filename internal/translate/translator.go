// Package translate orchestrates a whole-book translation run: counting,
// chunk packing, paced provider calls with one retry pass, usage
// accounting, and ordered reassembly.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bookpipe/internal/book"
	"bookpipe/internal/chunk"
	"bookpipe/internal/core"
	"bookpipe/internal/cost"
	"bookpipe/internal/monitor"
	"bookpipe/internal/prompt"
	"bookpipe/internal/tokens"
)

// FailureSentinel is the placeholder inserted for a chunk whose
// translation failed on both attempts. The argument is the chunk name.
const FailureSentinel = "[TRANSLATION FAILED: %s]"

// Per-chunk execution states.
const (
	statePending = "pending"
	stateSuccess = "success"
	stateFailed  = "failed"
)

// Options controls one translation run.
type Options struct {
	SourceLanguage string
	TargetLanguage string

	// ThinkingBudget is forwarded to providers that support extended
	// thinking; nil lets the model decide.
	ThinkingBudget *int

	// OutputRatio is the model's calibrated output/input token ratio,
	// used for the pre-flight cost estimate.
	OutputRatio float64

	// ThinkingRatio, when set, adds a thinking-token component to the
	// pre-flight estimate.
	ThinkingRatio *float64

	// ChunkDelay paces consecutive provider calls within a pass.
	ChunkDelay time.Duration

	// RetryDelay is the pause before the retry pass starts.
	RetryDelay time.Duration
}

// DefaultOptions returns the pacing used for production runs: providers
// rate-limit aggressively on sustained book-length workloads.
func DefaultOptions() Options {
	return Options{
		OutputRatio: 1.0,
		ChunkDelay:  10 * time.Second,
		RetryDelay:  60 * time.Second,
	}
}

// Summary is the result of one run.
type Summary struct {
	RunID string

	// Output is the full translated text, chunks joined in order.
	// Failed chunks appear as FailureSentinel placeholders.
	Output string

	Mapping core.ChunkMapping

	// Records carries the pre-flight per-chunk token estimates.
	Records []core.ChunkRecord

	// Estimated is true when pre-flight counts came from the fallback
	// estimator rather than the provider's own tokenizer.
	Estimated bool

	// Totals is actual usage reported by the provider, accumulated
	// exactly once per successful call.
	Totals core.TokenTotals

	Cost core.CostBreakdown

	// FailedChunks lists names of chunks that exhausted both attempts.
	FailedChunks []string
}

// BookTranslator wires the pipeline components for one provider/model
// configuration. It holds no per-run state; Run may be called repeatedly.
type BookTranslator struct {
	mapper     *chunk.Mapper
	counter    *tokens.Counter
	translator core.Translator

	// newFallback creates a short-lived substitute provider for a single
	// content-blocked call. nil disables fallback.
	newFallback func() (core.Translator, error)

	costs    *cost.Calculator
	store    monitor.Store
	template *prompt.Template
	opts     Options
}

// New creates a BookTranslator. store and newFallback may be nil.
func New(
	mapper *chunk.Mapper,
	counter *tokens.Counter,
	translator core.Translator,
	newFallback func() (core.Translator, error),
	costs *cost.Calculator,
	store monitor.Store,
	template *prompt.Template,
	opts Options,
) *BookTranslator {
	if template == nil {
		template = prompt.New(prompt.DefaultTemplate)
	}
	return &BookTranslator{
		mapper:      mapper,
		counter:     counter,
		translator:  translator,
		newFallback: newFallback,
		costs:       costs,
		store:       store,
		template:    template,
		opts:        opts,
	}
}

// chunkState tracks one chunk through the pending/success/failed machine.
type chunkState struct {
	chunk    core.Chunk
	text     string
	state    string
	output   string
	attempts int
	lastErr  error
	provider string
	model    string
	usage    core.TokenUsage
}

// Run translates the whole book. It fails fast on configuration errors;
// per-chunk failures degrade to sentinel placeholders, and the run as a
// whole errors only when every chunk failed.
func (b *BookTranslator) Run(ctx context.Context, paragraphs []core.Paragraph) (*Summary, error) {
	runID := uuid.NewString()
	logger := slog.With("run_id", runID)

	// Pre-flight: counts, packing, estimates. All failures here are
	// configuration errors and abort before any provider spend.
	counts := b.counter.CountParagraphs(ctx, paragraphs)
	logger.Info("counted paragraph tokens",
		"paragraphs", len(paragraphs),
		"total_tokens", counts.Total,
		"avg_tokens", counts.Average,
		"estimated", counts.Estimated,
	)

	inputs := make([]chunk.Input, len(paragraphs))
	for i, p := range paragraphs {
		inputs[i] = chunk.Input{ParagraphID: p.ID, Tokens: counts.Counts[p.ID].Tokens}
	}
	mapping, err := b.mapper.Map(inputs)
	if err != nil {
		return nil, err
	}
	logger.Info("computed chunk mapping", "chunks", len(mapping))

	if b.store != nil {
		if err := b.store.WriteMapping(runID, mapping); err != nil {
			logger.Warn("failed to persist chunk mapping", "error", err)
		}
	}

	promptTemplate := b.template
	if augmenter, ok := b.translator.(core.PromptAugmenter); ok {
		promptTemplate = promptTemplate.WithNote(augmenter.PromptNote())
	}
	promptTokens := b.counter.CountPrompt(ctx, promptTemplate, b.opts.SourceLanguage, b.opts.TargetLanguage)

	records := tokens.ChunkInputTokens(counts, promptTokens.Tokens, mapping)
	records = tokens.EstimateOutput(records, b.opts.OutputRatio, b.opts.ThinkingRatio)

	states := b.buildStates(mapping, paragraphs)

	// First pass, then a single retry pass over the survivors.
	limiter := rate.NewLimiter(rate.Every(b.opts.ChunkDelay), 1)
	b.runPass(ctx, logger, states, limiter, false)

	if pending := pendingCount(states); pending > 0 {
		logger.Info("starting retry pass", "pending_chunks", pending)
		if err := sleepCtx(ctx, b.opts.RetryDelay); err != nil {
			logger.Warn("retry pass cancelled", "error", err)
		} else {
			limiter = rate.NewLimiter(rate.Every(b.opts.ChunkDelay), 1)
			b.runPass(ctx, logger, states, limiter, true)
		}
	}

	// Anything still pending after both passes is failed.
	summary := b.assemble(runID, mapping, records, counts.Estimated, states)

	if b.store != nil {
		entries := buildEntries(runID, states)
		if err := b.store.WriteEntries(entries); err != nil {
			logger.Warn("failed to persist chunk entries", "error", err)
		}
	}

	if len(summary.FailedChunks) == len(states) && len(states) > 0 {
		return summary, fmt.Errorf("all %d chunks failed translation", len(states))
	}

	logger.Info("run complete",
		"chunks", len(states),
		"failed", len(summary.FailedChunks),
		"input_tokens", summary.Totals.Input,
		"output_tokens", summary.Totals.Output,
		"thinking_tokens", summary.Totals.Thinking,
		"total_cost", summary.Cost.TotalCost,
	)
	return summary, nil
}

func (b *BookTranslator) buildStates(mapping core.ChunkMapping, paragraphs []core.Paragraph) []*chunkState {
	states := make([]*chunkState, len(mapping))
	for i, ch := range mapping {
		states[i] = &chunkState{
			chunk: ch,
			text:  book.MergeParagraphs(paragraphs, ch.ParagraphIDs),
			state: statePending,
		}
	}
	return states
}

// runPass attempts every pending chunk once, in order, paced by limiter.
// Every first-pass failure stays pending for the single retry pass,
// whatever its cause; failures on the retry pass are final.
func (b *BookTranslator) runPass(ctx context.Context, logger *slog.Logger, states []*chunkState, limiter *rate.Limiter, isRetry bool) {
	for _, cs := range states {
		if cs.state != statePending {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			logger.Warn("pass interrupted", "error", err)
			return
		}

		cs.attempts++
		output, usage, provider, model, err := b.translateChunk(ctx, cs)
		if err == nil {
			cs.state = stateSuccess
			cs.output = output
			cs.usage = usage
			cs.provider = provider
			cs.model = model
			logger.Info("chunk translated",
				"chunk", cs.chunk.Name,
				"attempt", cs.attempts,
				"output_tokens", usage.CompletionTokens,
			)
			continue
		}

		cs.lastErr = err
		if isRetry {
			cs.state = stateFailed
			logger.Error("chunk failed",
				"chunk", cs.chunk.Name,
				"attempt", cs.attempts,
				"error", err,
			)
			continue
		}
		logger.Warn("chunk failed, will retry",
			"chunk", cs.chunk.Name,
			"attempt", cs.attempts,
			"error", err,
		)
	}
}

// translateChunk performs one provider call for one chunk. A content-
// safety refusal triggers a single substitution with a fresh fallback
// provider for this call only; the primary provider is never mutated.
func (b *BookTranslator) translateChunk(ctx context.Context, cs *chunkState) (string, core.TokenUsage, string, string, error) {
	req := &core.TranslateRequest{
		Text:           cs.text,
		SourceLanguage: b.opts.SourceLanguage,
		TargetLanguage: b.opts.TargetLanguage,
		ThinkingBudget: b.opts.ThinkingBudget,
	}

	result, err := b.translator.Translate(ctx, req)
	if err == nil {
		return result.Text, result.Usage, b.translator.ProviderType(), b.translator.Model(), nil
	}

	if core.IsContentBlocked(err) && b.newFallback != nil {
		slog.Warn("content blocked, substituting fallback provider for this call",
			"chunk", cs.chunk.Name,
			"provider", b.translator.ProviderType(),
			"error", err,
		)
		fallback, fbErr := b.newFallback()
		if fbErr != nil {
			return "", core.TokenUsage{}, "", "", fmt.Errorf("failed to create fallback provider: %w", fbErr)
		}
		result, fbErr = fallback.Translate(ctx, req)
		if fbErr != nil {
			return "", core.TokenUsage{}, "", "", fbErr
		}
		return result.Text, result.Usage, fallback.ProviderType(), fallback.Model(), nil
	}

	return "", core.TokenUsage{}, "", "", err
}

// assemble finalizes states, accumulates usage once per successful chunk,
// and joins outputs in mapping order.
func (b *BookTranslator) assemble(runID string, mapping core.ChunkMapping, records []core.ChunkRecord, estimated bool, states []*chunkState) *Summary {
	summary := &Summary{
		RunID:     runID,
		Mapping:   mapping,
		Records:   records,
		Estimated: estimated,
	}

	outputs := make([]string, len(states))
	for i, cs := range states {
		if cs.state == statePending {
			cs.state = stateFailed
		}
		if cs.state == stateSuccess {
			outputs[i] = cs.output
			summary.Totals.Add(cs.usage)
			continue
		}
		outputs[i] = fmt.Sprintf(FailureSentinel, cs.chunk.Name)
		summary.FailedChunks = append(summary.FailedChunks, cs.chunk.Name)
	}
	summary.Output = strings.Join(outputs, "\n\n")

	if b.costs != nil {
		summary.Cost = b.costs.CalculateTotals(summary.Totals)
	}
	return summary
}

func buildEntries(runID string, states []*chunkState) []monitor.Entry {
	entries := make([]monitor.Entry, 0, len(states))
	for _, cs := range states {
		e := monitor.NewEntry(runID, cs.chunk.Name, cs.chunk.ParagraphIDs)
		e.Attempts = cs.attempts
		e.Provider = cs.provider
		e.Model = cs.model
		e.Usage = cs.usage
		switch {
		case cs.state == stateSuccess && cs.attempts > 1:
			e.Status = monitor.StatusRecovered
			e.Output = cs.output
		case cs.state == stateSuccess:
			e.Status = monitor.StatusSuccess
			e.Output = cs.output
		default:
			e.Status = monitor.StatusFailed
			e.Output = fmt.Sprintf(FailureSentinel, cs.chunk.Name)
		}
		entries = append(entries, e)
	}
	return entries
}

func pendingCount(states []*chunkState) int {
	n := 0
	for _, cs := range states {
		if cs.state == statePending {
			n++
		}
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
