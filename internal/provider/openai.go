package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/model"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	mistralBaseURL = "https://api.mistral.ai/v1"
)

// ChatProvider talks to any OpenAI-compatible chat completions endpoint:
// OpenAI itself, Mistral and a local Ollama server.
type ChatProvider struct {
	client       *openai.Client
	kind         model.ProviderKind
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float32
}

// NewChatProvider creates a provider targeting baseURL.
func NewChatProvider(cfg config.LLMConfig, baseURL string, httpClient *http.Client) *ChatProvider {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "ollama" // Ollama ignores the key but the header must be present
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	clientCfg.HTTPClient = httpClient

	return &ChatProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		kind:         cfg.Provider,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  float32(cfg.Temperature),
	}
}

// Complete sends prompt as a single user message after the system prompt.
func (p *ChatProvider) Complete(ctx context.Context, prompt string) (model.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	maxTokens := maxTokensFrom(ctx, p.maxTokens)
	if usesCompletionTokens(p.model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}
	// Reasoning models reject any temperature other than the default.
	if !isReasoningModel(p.model) {
		req.Temperature = p.temperature
		// A zero float32 is dropped by omitempty, so send the nearest non-zero value.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return model.Completion{}, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return model.Completion{}, fmt.Errorf("%s returned no choices", p.kind)
	}

	return model.Completion{
		Text:     resp.Choices[0].Message.Content,
		Model:    p.model,
		Provider: p.kind,
		Usage: model.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}

func (p *ChatProvider) wrapError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == 0 {
		return fmt.Errorf("%s request: %w", p.kind, err)
	}
	return &model.HTTPError{Provider: p.kind.String(), StatusCode: status, Err: err}
}

// usesCompletionTokens reports whether the model takes max_completion_tokens.
func usesCompletionTokens(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "gpt-4o") || isReasoningModel(name)
}

// isReasoningModel matches the o-series and gpt-5 families.
func isReasoningModel(name string) bool {
	m := strings.ToLower(name)
	if strings.HasPrefix(m, "gpt-5") {
		return true
	}
	return len(m) >= 2 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9'
}

type maxTokensKey struct{}

// WithMaxTokens overrides the configured completion budget for calls made with ctx.
func WithMaxTokens(ctx context.Context, n int) context.Context {
	if n <= 0 {
		return ctx
	}
	return context.WithValue(ctx, maxTokensKey{}, n)
}

func maxTokensFrom(ctx context.Context, def int) int {
	if n, ok := ctx.Value(maxTokensKey{}).(int); ok {
		return n
	}
	return def
}
