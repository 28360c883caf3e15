package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/model"
)

const geminiMaxOutputTokens = 65000

// GeminiProvider calls generateContent through the genai SDK and asks for a
// JSON response body.
type GeminiProvider struct {
	client       *genai.Client
	model        string // always carries the "models/" prefix
	systemPrompt string
	temperature  float32
}

// NewGeminiProvider creates a provider on the Gemini API backend. An empty
// cfg.BaseURL keeps the SDK default host.
func NewGeminiProvider(cfg config.LLMConfig, httpClient *http.Client) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	name := cfg.Model
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}
	return &GeminiProvider{
		client:       client,
		model:        name,
		systemPrompt: cfg.SystemPrompt,
		temperature:  float32(cfg.Temperature),
	}, nil
}

// Complete sends prompt to generateContent and joins the text parts of the
// first candidate.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (model.Completion, error) {
	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(p.temperature),
		MaxOutputTokens:  geminiMaxOutputTokens,
		ResponseMIMEType: "application/json",
	}
	if p.systemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(p.systemPrompt, genai.RoleUser)
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), gc)
	if err != nil {
		return model.Completion{}, wrapGeminiError(err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return model.Completion{}, fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.Completion{}, fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}

	c := model.Completion{
		Text:     b.String(),
		Model:    p.model,
		Provider: model.ProviderGemini,
		Duration: time.Since(start),
	}
	if u := resp.UsageMetadata; u != nil {
		c.Usage = model.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return c, nil
}

// wrapGeminiError maps SDK status errors to model.HTTPError so the retry
// decorator can classify them.
func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &model.HTTPError{Provider: model.ProviderGemini.String(), StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &model.HTTPError{Provider: model.ProviderGemini.String(), StatusCode: apiErrPtr.Code, Err: err}
	}
	return fmt.Errorf("gemini request: %w", err)
}
