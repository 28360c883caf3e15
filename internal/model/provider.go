package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderKind identifies which LLM backend serves a model.
type ProviderKind int

const (
	ProviderUnknown ProviderKind = iota
	ProviderOpenAI
	ProviderMistral
	ProviderGemini
	ProviderClaude
	ProviderLocal // Ollama-compatible local models
)

var providerNames = map[ProviderKind]string{
	ProviderOpenAI:  "openai",
	ProviderMistral: "mistral",
	ProviderGemini:  "gemini",
	ProviderClaude:  "claude",
	ProviderLocal:   "local",
}

func (k ProviderKind) String() string {
	if name, ok := providerNames[k]; ok {
		return name
	}
	return "unknown"
}

// APIKeyEnv is the environment variable holding the key for this provider.
// Local models need none and return "".
func (k ProviderKind) APIKeyEnv() string {
	switch k {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderMistral:
		return "MISTRAL_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderClaude:
		return "ANTHROPIC_API_KEY"
	}
	return ""
}

// ParseProviderKind parses an explicit provider name from configuration.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "mistral":
		return ProviderMistral, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "claude", "anthropic":
		return ProviderClaude, nil
	case "local", "ollama", "llama":
		return ProviderLocal, nil
	}
	return ProviderUnknown, fmt.Errorf("unknown provider %q", s)
}

var localPrefixes = []string{"llama", "gemma", "qwen", "phi", "deepseek"}

// DetectProvider maps a model name to its provider by prefix.
func DetectProvider(modelName string) (ProviderKind, error) {
	m := strings.ToLower(strings.TrimSpace(modelName))
	switch {
	case m == "":
		return ProviderUnknown, fmt.Errorf("model name is empty")
	case strings.HasPrefix(m, "mistral"), strings.HasPrefix(m, "open-mistral"), strings.HasPrefix(m, "codestral"):
		return ProviderMistral, nil
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "chatgpt"),
		strings.HasPrefix(m, "text-"), strings.HasPrefix(m, "davinci"), isOSeries(m):
		return ProviderOpenAI, nil
	case strings.HasPrefix(m, "gemini"), strings.HasPrefix(m, "models/gemini"):
		return ProviderGemini, nil
	case strings.HasPrefix(m, "claude"):
		return ProviderClaude, nil
	}
	for _, p := range localPrefixes {
		if strings.HasPrefix(m, p) {
			return ProviderLocal, nil
		}
	}
	return ProviderUnknown, fmt.Errorf("unsupported model %q (expected a gpt, o-series, mistral, gemini, claude or local llama/gemma/qwen model)", modelName)
}

// isOSeries matches OpenAI reasoning models such as o1, o3-mini, o4-mini.
func isOSeries(m string) bool {
	return len(m) >= 2 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9'
}

// Usage is the token accounting reported by a provider for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Completion is the raw text returned by one provider call plus its accounting.
type Completion struct {
	Text     string
	Model    string
	Provider ProviderKind
	Usage    Usage
	Duration time.Duration
}

// Provider sends a prompt to an LLM and returns its raw text response.
type Provider interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}
