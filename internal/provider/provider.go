// Package provider adapts LLM backends to model.Provider.
package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/model"
)

// New builds the provider adapter for cfg.Provider. httpClient carries the
// request timeout and is shared by every adapter.
func New(cfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) (model.Provider, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	switch cfg.Provider {
	case model.ProviderOpenAI:
		return NewChatProvider(cfg, orDefault(cfg.BaseURL, openAIBaseURL), httpClient), nil
	case model.ProviderMistral:
		return NewChatProvider(cfg, orDefault(cfg.BaseURL, mistralBaseURL), httpClient), nil
	case model.ProviderLocal:
		return NewChatProvider(cfg, orDefault(cfg.BaseURL, strings.TrimRight(cfg.OllamaHost, "/")+"/v1"), httpClient), nil
	case model.ProviderClaude:
		return NewClaudeProvider(cfg, httpClient), nil
	case model.ProviderGemini:
		p, err := NewGeminiProvider(cfg, httpClient)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	logger.Error("no adapter for provider", "provider", cfg.Provider, "model", cfg.Model)
	return nil, fmt.Errorf("no adapter for provider %s (model %q)", cfg.Provider, cfg.Model)
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
