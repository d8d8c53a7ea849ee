// Package config loads and validates pipeline configuration from a YAML
// file plus environment overrides.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"bookpipe/internal/core"
)

// ModelInfo describes one model's limits, calibration, and pricing.
type ModelInfo struct {
	// Provider selects the implementation ("gemini", "deepseek",
	// "openai", "alibaba").
	Provider string `mapstructure:"provider"`

	// MaxOutputTokens is the model's hard per-request output limit.
	MaxOutputTokens int `mapstructure:"max_output_tokens"`

	// OutputInputTokenRatio is the empirically calibrated output/input
	// token ratio for translation with this model.
	OutputInputTokenRatio float64 `mapstructure:"output_input_token_ratio"`

	// ThinkingInputRatio, when positive, enables a thinking-token
	// component in pre-flight estimates.
	ThinkingInputRatio float64 `mapstructure:"thinking_input_ratio"`

	// PricePerMillion holds USD prices per million tokens. Missing
	// categories price at zero.
	PricePerMillion PriceConfig `mapstructure:"price_per_million"`
}

// PriceConfig mirrors core.PriceTable in configuration form.
type PriceConfig struct {
	Input    float64 `mapstructure:"input"`
	Output   float64 `mapstructure:"output"`
	Thinking float64 `mapstructure:"thinking"`
}

// Table converts to the runtime price table.
func (p PriceConfig) Table() core.PriceTable {
	return core.PriceTable{
		InputPerMtok:    p.Input,
		OutputPerMtok:   p.Output,
		ThinkingPerMtok: p.Thinking,
	}
}

// TranslationConfig holds run-level translation parameters.
type TranslationConfig struct {
	Model          string `mapstructure:"model"`
	FallbackModel  string `mapstructure:"fallback_model"`
	SourceLanguage string `mapstructure:"source_language"`
	TargetLanguage string `mapstructure:"target_language"`

	// ThinkingBudget: unset lets the model decide, 0 disables extended
	// thinking, -1 is unlimited, positive values set an explicit budget.
	ThinkingBudget *int `mapstructure:"thinking_budget"`

	// PromptFile overrides the built-in prompt template.
	PromptFile string `mapstructure:"prompt_file"`
}

// PacingConfig controls call spacing.
type PacingConfig struct {
	ChunkDelay time.Duration `mapstructure:"chunk_delay"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// MonitorConfig selects the run-record store.
type MonitorConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// CacheConfig selects the token-count cache.
type CacheConfig struct {
	Type     string        `mapstructure:"type"`
	Path     string        `mapstructure:"path"`
	RedisURL string        `mapstructure:"redis_url"`
	RedisTTL time.Duration `mapstructure:"redis_ttl"`
}

// Config is the full pipeline configuration.
type Config struct {
	Models      map[string]ModelInfo `mapstructure:"models"`
	Translation TranslationConfig    `mapstructure:"translation"`
	Pacing      PacingConfig         `mapstructure:"pacing"`
	Monitor     MonitorConfig        `mapstructure:"monitor"`
	Cache       CacheConfig          `mapstructure:"cache"`
	LogFormat   string               `mapstructure:"log_format"`
	LogLevel    string               `mapstructure:"log_level"`
}

// Load reads configuration from path. Environment variables prefixed with
// BOOKPIPE_ override file values (BOOKPIPE_TRANSLATION_MODEL, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("pacing.chunk_delay", "10s")
	v.SetDefault("pacing.retry_delay", "60s")
	v.SetDefault("monitor.backend", "json")
	v.SetDefault("monitor.path", "monitoring")
	v.SetDefault("cache.type", "none")
	v.SetDefault("cache.redis_ttl", "720h")
	v.SetDefault("log_format", "pretty")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("BOOKPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, core.NewConfigError("failed to read config file %s: %v", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.NewConfigError("failed to parse config file %s: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for errors that must surface before
// any chunk processing starts.
func (c *Config) Validate() error {
	if c.Translation.Model == "" {
		return core.NewConfigError("translation.model is required")
	}

	model, ok := c.Models[c.Translation.Model]
	if !ok {
		return core.NewConfigError("model %q not found in models table", c.Translation.Model)
	}
	if err := validateModel(c.Translation.Model, model); err != nil {
		return err
	}

	if c.Translation.FallbackModel != "" {
		fallback, ok := c.Models[c.Translation.FallbackModel]
		if !ok {
			return core.NewConfigError("fallback model %q not found in models table", c.Translation.FallbackModel)
		}
		if err := validateModel(c.Translation.FallbackModel, fallback); err != nil {
			return err
		}
	}

	if c.Translation.SourceLanguage == "" || c.Translation.TargetLanguage == "" {
		return core.NewConfigError("translation.source_language and translation.target_language are required")
	}
	return nil
}

func validateModel(name string, m ModelInfo) error {
	if m.Provider == "" {
		return core.NewConfigError("model %q: provider is required", name)
	}
	if m.MaxOutputTokens <= 0 {
		return core.NewConfigError("model %q: max_output_tokens must be positive, got %d", name, m.MaxOutputTokens)
	}
	if m.OutputInputTokenRatio <= 0 {
		return core.NewConfigError("model %q: output_input_token_ratio must be positive, got %g", name, m.OutputInputTokenRatio)
	}
	return nil
}

// Model returns the configured primary model info.
func (c *Config) Model() ModelInfo {
	return c.Models[c.Translation.Model]
}

// ThinkingRatio returns the thinking/input ratio for pre-flight estimates
// if the primary model has one.
func (c *Config) ThinkingRatio() *float64 {
	m := c.Model()
	if m.ThinkingInputRatio > 0 {
		r := m.ThinkingInputRatio
		return &r
	}
	return nil
}
