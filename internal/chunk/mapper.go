// Package chunk packs ordered paragraphs into chunks that fit within a
// model's per-request token budget.
package chunk

import (
	"log/slog"
	"math"

	"bookpipe/internal/core"
)

// safetyMargin shrinks the derived input ceiling to absorb ratio
// estimation error and prompt-overhead underestimation.
const safetyMargin = 0.8

// Input is one paragraph's packing weight.
type Input struct {
	ParagraphID int
	Tokens      int
}

// Mapper computes a safe per-chunk input-token ceiling from the model's
// output limit and the empirically measured output/input token ratio,
// then greedily partitions paragraphs under that ceiling. It holds no
// per-book state; Map may be called repeatedly.
type Mapper struct {
	maxOutputTokens  int
	outputInputRatio float64
}

// NewMapper creates a Mapper for a model with the given output-token
// ceiling and output/input token ratio.
func NewMapper(maxOutputTokens int, outputInputRatio float64) *Mapper {
	return &Mapper{
		maxOutputTokens:  maxOutputTokens,
		outputInputRatio: outputInputRatio,
	}
}

// MaxInputTokens converts the output-token ceiling into an equivalent
// input-token ceiling: floor(maxOutput / ratio * 0.8). Output size scales
// with input size for translation, so dividing by the ratio bounds the
// input that keeps the output under the model's hard limit.
//
// A configuration that yields a non-positive ceiling cannot pack anything
// and is a fatal configuration error.
func (m *Mapper) MaxInputTokens() (int, error) {
	if m.maxOutputTokens <= 0 {
		return 0, core.NewConfigError("max output tokens must be positive, got %d", m.maxOutputTokens)
	}
	if m.outputInputRatio <= 0 {
		return 0, core.NewConfigError("output/input token ratio must be positive, got %g", m.outputInputRatio)
	}

	limit := int(math.Floor(float64(m.maxOutputTokens) / m.outputInputRatio * safetyMargin))
	if limit <= 0 {
		return 0, core.NewConfigError(
			"derived max input tokens is %d (max_output_tokens=%d, ratio=%g); nothing can be packed",
			limit, m.maxOutputTokens, m.outputInputRatio)
	}
	return limit, nil
}

// Map partitions paragraphs into ordered, contiguous, non-overlapping
// chunks whose token sums stay strictly under MaxInputTokens. Input order
// is preserved exactly: this is first-fit-forward packing, not an
// arbitrary bin-packing permutation.
//
// The comparison is strict (<), so a paragraph landing exactly on the
// boundary starts a new chunk. A single paragraph whose own count reaches
// the ceiling is placed alone in its own chunk rather than split; such a
// chunk risks exceeding the safe ceiling downstream and is logged as a
// data-consistency warning.
func (m *Mapper) Map(inputs []Input) (core.ChunkMapping, error) {
	limit, err := m.MaxInputTokens()
	if err != nil {
		return nil, err
	}

	var mapping core.ChunkMapping
	var current []int
	sum := 0

	emit := func() {
		if len(current) > 0 {
			mapping = append(mapping, core.Chunk{
				Name:         core.ChunkName(len(mapping) + 1),
				ParagraphIDs: current,
			})
		}
	}

	for _, in := range inputs {
		if sum+in.Tokens < limit {
			current = append(current, in.ParagraphID)
			sum += in.Tokens
			continue
		}

		emit()
		if in.Tokens >= limit {
			slog.Warn("paragraph exceeds safe chunk ceiling, keeping as singleton chunk",
				"paragraph_id", in.ParagraphID,
				"tokens", in.Tokens,
				"max_input_tokens", limit,
			)
		}
		current = []int{in.ParagraphID}
		sum = in.Tokens
	}
	emit()

	return mapping, nil
}
