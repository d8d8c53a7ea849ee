// Package gemini implements translation and token counting against the
// native Google Gemini API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"bookpipe/internal/core"
	"bookpipe/internal/httpclient"
	"bookpipe/internal/providers"
	"bookpipe/internal/prompt"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	// Translation output is roughly input-sized, so the per-request cap
	// must accommodate a full chunk plus headroom.
	defaultMaxOutputTokens = 45000

	defaultTemperature = 0.3

	// promptNote is appended to every prompt: grounding the translation
	// with search results changes the output and breaks the
	// output/input ratio calibration.
	promptNote = "Do not use google search to perform the translation."
)

func init() {
	providers.Register("gemini", func(cfg providers.Config) (core.Translator, error) {
		return New(cfg), nil
	})
}

// Provider implements core.Translator, core.NativeTokenCounter, and
// core.PromptAugmenter for Gemini.
type Provider struct {
	httpClient      *http.Client
	apiKey          string
	baseURL         string
	model           string
	template        *prompt.Template
	temperature     float64
	maxOutputTokens int
}

// New creates a Gemini provider from resolved configuration.
func New(cfg providers.Config) *Provider {
	p := &Provider{
		httpClient:      httpclient.New(nil),
		apiKey:          cfg.APIKey,
		baseURL:         defaultBaseURL,
		model:           cfg.Model,
		template:        cfg.Prompt.WithNote(promptNote),
		temperature:     defaultTemperature,
		maxOutputTokens: defaultMaxOutputTokens,
	}
	if cfg.BaseURL != "" {
		p.baseURL = cfg.BaseURL
	}
	if cfg.Temperature != 0 {
		p.temperature = cfg.Temperature
	}
	if cfg.MaxTokens != 0 {
		p.maxOutputTokens = cfg.MaxTokens
	}
	return p
}

// Model returns the configured model identifier.
func (p *Provider) Model() string { return p.model }

// ProviderType returns "gemini".
func (p *Provider) ProviderType() string { return "gemini" }

// PromptNote returns the Gemini-specific prompt instruction so prompt
// overhead measurement includes it.
func (p *Provider) PromptNote() string { return promptNote }

// Request/response shapes for the native generateContent API.

type generateRequest struct {
	Contents         []content       `json:"contents"`
	GenerationConfig *generateConfig `json:"generationConfig,omitempty"`
	SafetySettings   []safetySetting `json:"safetySettings,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateConfig struct {
	Temperature     float64         `json:"temperature"`
	MaxOutputTokens int             `json:"maxOutputTokens"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget *int `json:"thinkingBudget,omitempty"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// blockNoneSafetySettings disables content filtering for translation.
// Literary source text routinely trips false positives otherwise.
var blockNoneSafetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// Translate sends one chunk through generateContent.
//
// Thinking budget semantics: nil omits thinkingConfig (model decides),
// -1 sends an empty thinkingConfig (unlimited), any other value sets an
// explicit budget (0 disables thinking).
func (p *Provider) Translate(ctx context.Context, req *core.TranslateRequest) (*core.TranslateResult, error) {
	genCfg := &generateConfig{
		Temperature:     p.temperature,
		MaxOutputTokens: p.maxOutputTokens,
	}
	if req.ThinkingBudget != nil {
		if *req.ThinkingBudget == -1 {
			genCfg.ThinkingConfig = &thinkingConfig{}
		} else {
			genCfg.ThinkingConfig = &thinkingConfig{ThinkingBudget: req.ThinkingBudget}
		}
	}

	payload := generateRequest{
		Contents: []content{{Parts: []part{{
			Text: p.template.Render(req.SourceLanguage, req.TargetLanguage, req.Text),
		}}}},
		GenerationConfig: genCfg,
		SafetySettings:   blockNoneSafetySettings,
	}

	var resp generateResponse
	if err := p.post(ctx, fmt.Sprintf("%s/%s:generateContent", p.baseURL, p.model), payload, &resp); err != nil {
		return nil, err
	}

	usage := core.TokenUsage{
		PromptTokens:     resp.UsageMetadata.PromptTokenCount,
		CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		ThinkingTokens:   resp.UsageMetadata.ThoughtsTokenCount,
		TotalTokens:      resp.UsageMetadata.TotalTokenCount,
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, core.NewContentBlockedError("gemini", resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, core.NewProviderError("gemini", "no translation in API response", nil)
	}

	candidate := resp.Candidates[0]
	return &core.TranslateResult{
		Text:         candidate.Content.Parts[0].Text,
		Usage:        usage,
		FinishReason: candidate.FinishReason,
		Complete:     candidate.FinishReason == "STOP",
	}, nil
}

// CountTokens counts tokens with Gemini's countTokens endpoint, which
// matches actual billed usage exactly.
func (p *Provider) CountTokens(ctx context.Context, text string) (int, error) {
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
	}

	var resp struct {
		TotalTokens int `json:"totalTokens"`
	}
	if err := p.post(ctx, fmt.Sprintf("%s/%s:countTokens", p.baseURL, p.model), payload, &resp); err != nil {
		return 0, err
	}
	return resp.TotalTokens, nil
}

// post sends a JSON request to the native API. The API key travels as a
// query parameter; that is how Google's native Gemini API authenticates.
func (p *Provider) post(ctx context.Context, url string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	q := httpReq.URL.Query()
	q.Add("key", p.apiKey)
	httpReq.URL.RawQuery = q.Encode()

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return core.NewTransientError("gemini", "request failed", err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.NewTransientError("gemini", "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return core.ParseProviderError("gemini", resp.StatusCode, respBody, nil)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
