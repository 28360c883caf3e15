package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/generator"
	"github.com/qgenlab/qgen/internal/metrics"
)

var (
	genParams string
	genMode   string
	genDryRun bool
	genStrict bool
	genNoPDF  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate questions, answers and rubrics",
	Long: `Generate questions for one parameter file.

  single  one prompt returns questions, answers and rubrics together
  chain   one prompt for the questions, then one prompt per question`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genParams, "params", "p", "params.json", "parameter file (.json or .yaml)")
	generateCmd.Flags().StringVarP(&genMode, "mode", "m", generator.ModeChain, "generation mode: single or chain")
	generateCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "print results instead of saving them; no usage log")
	generateCmd.Flags().BoolVar(&genStrict, "strict", false, "fail when a reference data file is missing")
	generateCmd.Flags().BoolVar(&genNoPDF, "no-pdf", false, "skip PDF export")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	if genMode != generator.ModeSingle && genMode != generator.ModeChain {
		logger.Error("invalid mode, want single or chain (use `qgen rubric` for rubric tables)", "mode", genMode)
		os.Exit(1)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	params, err := config.LoadParams(genParams)
	if err != nil {
		logger.Error("failed to load params", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"model", cfg.LLM.Model,
		"provider", cfg.LLM.Provider,
		"mode", genMode,
		"subject", params.Subject,
		"bloom_levels", params.BloomLevels,
		"num_questions", params.NumQuestions,
	)

	usage, err := setupUsageLog(cfg, genDryRun, logger)
	if err != nil {
		logger.Error("failed to open usage log", "error", err)
		os.Exit(1)
	}
	defer usage.Close()

	m := metrics.New()
	pl, err := buildPipeline(cfg, usage, m, genDryRun, logger)
	if err != nil {
		logger.Error("failed to set up provider", "error", err)
		os.Exit(1)
	}
	pl.strict = genStrict
	pl.noPDF = genNoPDF

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, summary, err := pl.run(ctx, genMode, params)
	writeMetrics(cfg, m, logger)
	if err != nil {
		logger.Error("generation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("done",
		"generated", summary.Generated,
		"failed", summary.Failed,
		"total_tokens", summary.Usage.TotalTokens,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return nil
}
