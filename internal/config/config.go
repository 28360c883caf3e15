package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qgenlab/qgen/internal/model"
)

// Config is the root configuration for qgen.
type Config struct {
	LLM          LLMConfig
	Retry        RetryConfig
	RateLimit    RateLimitConfig
	Paths        PathsConfig
	UsageLog     UsageLogConfig
	Notification NotificationConfig
	Server       ServerConfig
	PDF          PDFConfig
	Metrics      MetricsConfig
	Batch        BatchConfig
}

// LLMConfig selects the model and how to reach it.
type LLMConfig struct {
	Model        string
	Provider     model.ProviderKind
	BaseURL      string // overrides the provider default when set
	APIKey       string
	KeySource    string // where APIKey came from: "env:NAME", "config" or "none"
	Timeout      time.Duration
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	OllamaHost   string
}

// RetryConfig controls retries of failed provider calls.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// RateLimitConfig controls the minimum gap between calls to the same provider.
type RateLimitConfig struct {
	MinDelay          time.Duration
	ProviderOverrides map[string]time.Duration // keyed by provider name
}

// MinDelayFor returns the configured delay for the given provider, falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(provider string) time.Duration {
	if d, ok := r.ProviderOverrides[provider]; ok {
		return d
	}
	return r.MinDelay
}

// PathsConfig locates reference data and results. Relative paths are resolved
// against BaseDir.
type PathsConfig struct {
	BaseDir    string
	DataDir    string
	ResultsDir string
}

// UsageLogConfig controls where call records go.
type UsageLogConfig struct {
	SQLitePath string // empty disables the SQLite log
	CSV        bool
	CSVPath    string // empty means token_log.csv inside each run directory
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// ServerConfig configures `qgen serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// PDFConfig controls PDF export.
type PDFConfig struct {
	PageSize   string  `yaml:"page_size"`
	MarginMM   float64 `yaml:"margin_mm"`
	FontFamily string  `yaml:"font_family"`
}

// MetricsConfig controls the Prometheus textfile dump written after CLI runs.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// BatchConfig controls `qgen batch`.
type BatchConfig struct {
	Pause time.Duration
}

const (
	defaultTimeout     = 120 * time.Second
	defaultMaxTokens   = 4000
	defaultTemperature = 0.7
	defaultOllamaHost  = "http://localhost:11434"
	defaultSystem      = "You are a helpful assistant."
	defaultMaxRetries  = 3
	defaultBaseDelay   = 2 * time.Second
	defaultMinDelay    = 1 * time.Second
	defaultBatchPause  = 2 * time.Second
	slackHookPrefix    = "https://hooks.slack.com/"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	LLM          rawLLMConfig       `yaml:"llm"`
	Retry        rawRetryConfig     `yaml:"retry"`
	RateLimit    rawRateLimitConfig `yaml:"rate_limit"`
	Paths        rawPathsConfig     `yaml:"paths"`
	UsageLog     rawUsageLogConfig  `yaml:"usage_log"`
	Notification NotificationConfig `yaml:"notification"`
	Server       ServerConfig       `yaml:"server"`
	PDF          PDFConfig          `yaml:"pdf"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Batch        rawBatchConfig     `yaml:"batch"`
}

type rawLLMConfig struct {
	Model        string            `yaml:"model"`
	Provider     string            `yaml:"provider"`
	BaseURL      string            `yaml:"base_url"`
	APIKey       string            `yaml:"api_key"`
	APIKeys      map[string]string `yaml:"api_keys"` // keyed by provider name
	Timeout      string            `yaml:"timeout"`
	MaxTokens    int               `yaml:"max_tokens"`
	Temperature  *float64          `yaml:"temperature"`
	SystemPrompt string            `yaml:"system_prompt"`
	OllamaHost   string            `yaml:"ollama_host"`
}

type rawRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

type rawRateLimitConfig struct {
	MinDelay          string            `yaml:"min_delay"`
	ProviderOverrides map[string]string `yaml:"provider_overrides"`
}

type rawPathsConfig struct {
	BaseDir    string `yaml:"base_dir"`
	DataDir    string `yaml:"data_dir"`
	ResultsDir string `yaml:"results_dir"`
}

type rawUsageLogConfig struct {
	SQLitePath *string `yaml:"sqlite_path"`
	CSV        bool    `yaml:"csv"`
	CSVPath    string  `yaml:"csv_path"`
}

type rawBatchConfig struct {
	Pause string `yaml:"pause"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// getenv is the only source of environment values: it expands ${VAR} references
// in the file and supplies provider API keys. A nil getenv means os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(data, filepath.Dir(path), getenv)
}

// Default returns the configuration used when no file exists, with keys and
// the model taken from the environment (QGEN_MODEL).
func Default(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	doc := fmt.Sprintf("llm:\n  model: %q\n", getenv("QGEN_MODEL"))
	return parse([]byte(doc), ".", getenv)
}

func parse(data []byte, dir string, getenv func(string) string) (*Config, error) {
	expanded := os.Expand(string(data), getenv)

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	llm, err := buildLLM(raw.LLM, getenv)
	if err != nil {
		return nil, err
	}

	maxRetries := defaultMaxRetries
	if raw.Retry.MaxRetries != nil {
		maxRetries = *raw.Retry.MaxRetries
	}
	baseDelay, err := parseDuration("retry.base_delay", raw.Retry.BaseDelay, defaultBaseDelay)
	if err != nil {
		return nil, err
	}

	minDelay, err := parseDuration("rate_limit.min_delay", raw.RateLimit.MinDelay, defaultMinDelay)
	if err != nil {
		return nil, err
	}
	overrides := make(map[string]time.Duration)
	for name, s := range raw.RateLimit.ProviderOverrides {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.provider_overrides[%q]: %w", name, err)
		}
		overrides[strings.ToLower(name)] = d
	}

	pause, err := parseDuration("batch.pause", raw.Batch.Pause, defaultBatchPause)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LLM: llm,
		Retry: RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  baseDelay,
		},
		RateLimit: RateLimitConfig{
			MinDelay:          minDelay,
			ProviderOverrides: overrides,
		},
		Paths:        buildPaths(raw.Paths, dir),
		Notification: raw.Notification,
		Server:       raw.Server,
		PDF:          raw.PDF,
		Metrics:      raw.Metrics,
		Batch:        BatchConfig{Pause: pause},
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.PDF.PageSize == "" {
		cfg.PDF.PageSize = "A4"
	}
	if cfg.PDF.MarginMM == 0 {
		cfg.PDF.MarginMM = 15
	}
	if cfg.PDF.FontFamily == "" {
		cfg.PDF.FontFamily = "Helvetica"
	}

	cfg.UsageLog = UsageLogConfig{
		SQLitePath: cfg.Paths.Resolve("qgen.db"),
		CSV:        raw.UsageLog.CSV,
	}
	if raw.UsageLog.SQLitePath != nil {
		cfg.UsageLog.SQLitePath = ""
		if *raw.UsageLog.SQLitePath != "" {
			cfg.UsageLog.SQLitePath = cfg.Paths.Resolve(*raw.UsageLog.SQLitePath)
		}
	}
	if raw.UsageLog.CSVPath != "" {
		cfg.UsageLog.CSVPath = cfg.Paths.Resolve(raw.UsageLog.CSVPath)
	}
	if cfg.Metrics.TextfilePath != "" {
		cfg.Metrics.TextfilePath = cfg.Paths.Resolve(cfg.Metrics.TextfilePath)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func buildLLM(raw rawLLMConfig, getenv func(string) string) (LLMConfig, error) {
	llm := LLMConfig{
		Model:        strings.TrimSpace(raw.Model),
		BaseURL:      raw.BaseURL,
		MaxTokens:    raw.MaxTokens,
		Temperature:  defaultTemperature,
		SystemPrompt: raw.SystemPrompt,
		OllamaHost:   strings.TrimRight(raw.OllamaHost, "/"),
	}
	if raw.Temperature != nil {
		llm.Temperature = *raw.Temperature
	}
	if llm.MaxTokens == 0 {
		llm.MaxTokens = defaultMaxTokens
	}
	if llm.OllamaHost == "" {
		llm.OllamaHost = defaultOllamaHost
	}
	if llm.SystemPrompt == "" {
		llm.SystemPrompt = defaultSystem
	}

	timeout, err := parseDuration("llm.timeout", raw.Timeout, defaultTimeout)
	if err != nil {
		return llm, err
	}
	llm.Timeout = timeout

	if llm.Model == "" {
		return llm, nil // reported by validate
	}
	if raw.Provider != "" {
		llm.Provider, err = model.ParseProviderKind(raw.Provider)
	} else {
		llm.Provider, err = model.DetectProvider(llm.Model)
	}
	if err != nil {
		return llm, fmt.Errorf("llm: %w", err)
	}

	llm.APIKey, llm.KeySource = resolveKey(llm.Provider, raw, getenv)
	return llm, nil
}

// resolveKey prefers the provider's environment variable, then the config file.
func resolveKey(kind model.ProviderKind, raw rawLLMConfig, getenv func(string) string) (string, string) {
	env := kind.APIKeyEnv()
	if env == "" {
		return "", "none"
	}
	if v := getenv(env); v != "" {
		return v, "env:" + env
	}
	if v := raw.APIKeys[kind.String()]; v != "" {
		return v, "config"
	}
	if raw.APIKey != "" {
		return raw.APIKey, "config"
	}
	return "", "none"
}

func buildPaths(raw rawPathsConfig, dir string) PathsConfig {
	p := PathsConfig{
		BaseDir:    raw.BaseDir,
		DataDir:    raw.DataDir,
		ResultsDir: raw.ResultsDir,
	}
	if p.BaseDir == "" {
		p.BaseDir = dir
	} else if !filepath.IsAbs(p.BaseDir) {
		p.BaseDir = filepath.Join(dir, p.BaseDir)
	}
	if p.DataDir == "" {
		p.DataDir = "data"
	}
	p.DataDir = p.Resolve(p.DataDir)
	if p.ResultsDir == "" {
		p.ResultsDir = p.DataDir
	} else {
		p.ResultsDir = p.Resolve(p.ResultsDir)
	}
	return p
}

// Resolve joins a relative path onto BaseDir. Absolute paths are returned as is.
func (p PathsConfig) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

func parseDuration(field, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func validate(cfg *Config) error {
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.Provider != model.ProviderLocal && cfg.LLM.APIKey == "" {
		return fmt.Errorf("no API key for %s: set %s or llm.api_keys.%s",
			cfg.LLM.Provider, cfg.LLM.Provider.APIKeyEnv(), cfg.LLM.Provider)
	}
	if cfg.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %v", cfg.LLM.Timeout)
	}
	if cfg.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must not be negative, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be positive, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.RateLimit.MinDelay < 0 {
		return fmt.Errorf("rate_limit.min_delay must not be negative, got %v", cfg.RateLimit.MinDelay)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackHookPrefix) {
			return fmt.Errorf("notification.webhook_url must start with %s", slackHookPrefix)
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	return nil
}
