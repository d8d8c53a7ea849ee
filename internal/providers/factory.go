// Package providers provides a registry and factory for translation
// provider implementations.
package providers

import (
	"fmt"
	"sort"

	"bookpipe/internal/core"
	"bookpipe/internal/prompt"
)

// Config holds the resolved configuration for constructing one provider.
type Config struct {
	// Type selects the provider implementation ("gemini", "deepseek",
	// "openai", "alibaba").
	Type string

	// Model is the model identifier sent in requests.
	Model string

	// APIKey authenticates requests. When empty, Create resolves it from
	// the provider's environment variables.
	APIKey string

	// BaseURL overrides the provider's default endpoint (useful for
	// tests and proxies).
	BaseURL string

	// Prompt is the translation prompt template.
	Prompt *prompt.Template

	// Temperature for generation. Zero means the provider default.
	Temperature float64

	// MaxTokens caps the response length per request. Zero means the
	// provider default.
	MaxTokens int
}

// Builder creates a provider instance from configuration.
type Builder func(cfg Config) (core.Translator, error)

// registry holds all registered provider builders, populated by provider
// packages from their init() functions.
var registry = make(map[string]Builder)

// Register adds a provider builder. Called from init() in provider packages.
func Register(providerType string, builder Builder) {
	registry[providerType] = builder
}

// Create instantiates a provider based on configuration, resolving the
// API key from the environment when not set explicitly.
func Create(cfg Config) (core.Translator, error) {
	builder, ok := registry[cfg.Type]
	if !ok {
		return nil, core.NewConfigError("unknown provider type: %s (registered: %v)", cfg.Type, ListRegistered())
	}

	if cfg.APIKey == "" {
		key, err := ResolveAPIKey(cfg.Type)
		if err != nil {
			return nil, err
		}
		cfg.APIKey = key
	}

	if cfg.Prompt == nil {
		cfg.Prompt = prompt.New(prompt.DefaultTemplate)
	}

	provider, err := builder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Type, err)
	}
	return provider, nil
}

// ListRegistered returns all registered provider types, sorted.
func ListRegistered() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
