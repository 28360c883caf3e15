package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/model"
)

// ClaudeProvider calls the Anthropic Messages API.
type ClaudeProvider struct {
	client       anthropic.Client
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float64
}

// NewClaudeProvider creates a provider for Claude models. SDK retries are
// disabled; retries happen in the retry decorator.
func NewClaudeProvider(cfg config.LLMConfig, httpClient *http.Client) *ClaudeProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &ClaudeProvider{
		client:       anthropic.NewClient(opts...),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
	}
}

// Complete sends prompt as a single user turn and concatenates the text blocks
// of the reply.
func (p *ClaudeProvider) Complete(ctx context.Context, prompt string) (model.Completion, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokensFrom(ctx, p.maxTokens)),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(p.temperature),
	}
	if p.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.systemPrompt}}
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			var h http.Header
			if apiErr.Response != nil {
				h = apiErr.Response.Header
			}
			return model.Completion{}, &model.HTTPError{
				Provider:   model.ProviderClaude.String(),
				StatusCode: apiErr.StatusCode,
				RetryAfter: parseRetryAfter(h),
				Err:        err,
			}
		}
		return model.Completion{}, fmt.Errorf("claude request: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return model.Completion{}, fmt.Errorf("claude returned no text (stop reason %q)", msg.StopReason)
	}

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return model.Completion{
		Text:     b.String(),
		Model:    p.model,
		Provider: model.ProviderClaude,
		Usage:    model.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		Duration: time.Since(start),
	}, nil
}
