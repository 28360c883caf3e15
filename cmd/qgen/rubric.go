package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/generator"
	"github.com/qgenlab/qgen/internal/metrics"
)

var (
	rubricParams string
	rubricDryRun bool
	rubricNoPDF  bool
)

var rubricCmd = &cobra.Command{
	Use:   "rubric",
	Short: "Generate markdown questions with rubric tables",
	Long: `Generate questions with markdown rubric tables from the diff_level counts
in the parameter file. Saves questions.md, questions.csv and rubric.pdf.`,
	RunE: runRubric,
}

func init() {
	rubricCmd.Flags().StringVarP(&rubricParams, "params", "p", "params.json", "parameter file (.json or .yaml)")
	rubricCmd.Flags().BoolVar(&rubricDryRun, "dry-run", false, "print the markdown instead of saving it; no usage log")
	rubricCmd.Flags().BoolVar(&rubricNoPDF, "no-pdf", false, "skip PDF export")
	rootCmd.AddCommand(rubricCmd)
}

func runRubric(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	params, err := config.LoadParams(rubricParams)
	if err != nil {
		logger.Error("failed to load params", "error", err)
		os.Exit(1)
	}
	if len(params.LevelCounts) == 0 {
		logger.Error("params need a diff_level map of level to question count", "params", rubricParams)
		os.Exit(1)
	}

	usage, err := setupUsageLog(cfg, rubricDryRun, logger)
	if err != nil {
		logger.Error("failed to open usage log", "error", err)
		os.Exit(1)
	}
	defer usage.Close()

	m := metrics.New()
	pl, err := buildPipeline(cfg, usage, m, rubricDryRun, logger)
	if err != nil {
		logger.Error("failed to set up provider", "error", err)
		os.Exit(1)
	}
	pl.noPDF = rubricNoPDF

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, summary, err := pl.run(ctx, generator.ModeRubric, params)
	writeMetrics(cfg, m, logger)
	if err != nil {
		logger.Error("rubric generation failed", "error", err)
		os.Exit(1)
	}
	if summary.Failed > 0 {
		logger.Warn("fewer questions than requested", "requested", summary.Requested, "generated", summary.Generated)
	}
	return nil
}
