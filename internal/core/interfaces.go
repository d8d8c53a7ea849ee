// Package core defines the domain types and interfaces for the book
// translation pipeline.
package core

import "context"

// Translator is the per-chunk external transformation. Implementations
// own their provider's request shape and response parsing.
//
// Recoverable conditions (timeouts, 5xx, content blocks) are returned as
// typed errors (see errors.go), never as panics; the orchestrator decides
// whether to retry or fall back.
type Translator interface {
	Translate(ctx context.Context, req *TranslateRequest) (*TranslateResult, error)

	// Model returns the model identifier used for requests.
	Model() string

	// ProviderType returns the provider type string ("gemini", "deepseek", ...).
	ProviderType() string
}

// NativeTokenCounter is implemented by providers with an authoritative
// tokenizer or remote counting endpoint. Providers without one simply do
// not implement this interface and the token counter degrades to the
// generic estimator.
type NativeTokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// PromptAugmenter is implemented by providers that need an extra
// instruction appended to the translation prompt. The note is part of the
// fixed per-request overhead and is included in prompt token measurement.
type PromptAugmenter interface {
	PromptNote() string
}
