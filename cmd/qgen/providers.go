package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qgenlab/qgen/internal/model"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the resolved provider, model and key source",
	Long:  "Reads the config and prints which backend serves the configured model and where its API key comes from.",
	RunE:  runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	llm := cfg.LLM
	baseURL := llm.BaseURL
	if baseURL == "" {
		baseURL = "(provider default)"
	}
	if llm.Provider == model.ProviderLocal && llm.BaseURL == "" {
		baseURL = strings.TrimRight(llm.OllamaHost, "/") + "/v1"
	}

	fmt.Printf("%-12s %s\n", "Model", llm.Model)
	fmt.Printf("%-12s %s\n", "Provider", llm.Provider)
	fmt.Printf("%-12s %s\n", "Base URL", baseURL)
	fmt.Printf("%-12s %s\n", "API key", llm.KeySource)
	fmt.Printf("%-12s %s\n", "Timeout", llm.Timeout)
	fmt.Printf("%-12s %d\n", "Max tokens", llm.MaxTokens)
	fmt.Printf("%-12s %s\n", "Min delay", cfg.RateLimit.MinDelayFor(llm.Provider.String()))

	fmt.Printf("\n%-10s %s\n", "Provider", "Key variable")
	fmt.Println(strings.Repeat("─", 30))
	for _, k := range []model.ProviderKind{model.ProviderOpenAI, model.ProviderMistral, model.ProviderGemini, model.ProviderClaude, model.ProviderLocal} {
		env := k.APIKeyEnv()
		if env == "" {
			env = "(none)"
		}
		fmt.Printf("%-10s %s\n", k, env)
	}
	return nil
}
