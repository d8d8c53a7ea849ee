// Package deepseek implements translation via the DeepSeek
// chat-completions API.
package deepseek

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
	defaultBaseURL     = "https://api.deepseek.com/v1"
	defaultMaxTokens   = 4000
	defaultTemperature = 0.3
)

func init() {
	providers.Register("deepseek", func(cfg providers.Config) (core.Translator, error) {
		return New(cfg), nil
	})
}

// Provider implements core.Translator for DeepSeek.
type Provider struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	template    *prompt.Template
	temperature float64
	maxTokens   int
}

// New creates a DeepSeek provider from resolved configuration.
func New(cfg providers.Config) *Provider {
	p := &Provider{
		httpClient:  httpclient.New(nil),
		apiKey:      cfg.APIKey,
		baseURL:     defaultBaseURL,
		model:       cfg.Model,
		template:    cfg.Prompt,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	if cfg.BaseURL != "" {
		p.baseURL = cfg.BaseURL
	}
	if cfg.Temperature != 0 {
		p.temperature = cfg.Temperature
	}
	if cfg.MaxTokens != 0 {
		p.maxTokens = cfg.MaxTokens
	}
	return p
}

// Model returns the configured model identifier.
func (p *Provider) Model() string { return p.model }

// ProviderType returns "deepseek".
func (p *Provider) ProviderType() string { return "deepseek" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens            int `json:"prompt_tokens"`
		CompletionTokens        int `json:"completion_tokens"`
		TotalTokens             int `json:"total_tokens"`
		CompletionTokensDetails struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"completion_tokens_details"`
	} `json:"usage"`
}

// Translate sends one chunk through the chat-completions endpoint.
// Reasoning models report their chain-of-thought spend in
// completion_tokens_details.reasoning_tokens; it surfaces as
// ThinkingTokens so cost accounting can price it separately.
func (p *Provider) Translate(ctx context.Context, req *core.TranslateRequest) (*core.TranslateResult, error) {
	payload := chatRequest{
		Model: p.model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: p.template.Render(req.SourceLanguage, req.TargetLanguage, req.Text),
		}},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewTransientError("deepseek", "request failed", err)
	}
	defer func() {
		_ = httpResp.Body.Close() //nolint:errcheck
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, core.NewTransientError("deepseek", "failed to read response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, core.ParseProviderError("deepseek", httpResp.StatusCode, respBody, nil)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, core.NewProviderError("deepseek", "no translation in API response", nil)
	}

	choice := resp.Choices[0]
	return &core.TranslateResult{
		Text: choice.Message.Content,
		Usage: core.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			ThinkingTokens:   resp.Usage.CompletionTokensDetails.ReasoningTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: choice.FinishReason,
		Complete:     choice.FinishReason == "stop",
	}, nil
}
