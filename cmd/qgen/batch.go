package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qgenlab/qgen/internal/batch"
	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/generator"
	"github.com/qgenlab/qgen/internal/metrics"
	"github.com/qgenlab/qgen/internal/model"
	"github.com/qgenlab/qgen/internal/notifier"
)

var (
	batchMode  string
	batchNoPDF bool
)

var batchCmd = &cobra.Command{
	Use:   "batch PARAMS...",
	Short: "Run several parameter files one after another",
	Long: `Runs each parameter file in order with the configured pause between jobs.
A failed job is logged and the batch continues. One summary notification is
sent at the end.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchMode, "mode", "m", generator.ModeChain, "generation mode: single, chain or rubric")
	batchCmd.Flags().BoolVar(&batchNoPDF, "no-pdf", false, "skip PDF export")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	usage, err := setupUsageLog(cfg, false, logger)
	if err != nil {
		logger.Error("failed to open usage log", "error", err)
		os.Exit(1)
	}
	defer usage.Close()

	m := metrics.New()
	pl, err := buildPipeline(cfg, usage, m, false, logger)
	if err != nil {
		logger.Error("failed to set up provider", "error", err)
		os.Exit(1)
	}
	pl.noPDF = batchNoPDF
	// Per-job summaries go to the log; the configured notifier gets the batch total.
	pl.notifier = notifier.NewLogNotifier(logger)

	runJob := func(ctx context.Context, path string) (model.RunSummary, error) {
		params, err := config.LoadParams(path)
		if err != nil {
			return model.RunSummary{}, err
		}
		if batchMode == generator.ModeRubric && len(params.LevelCounts) == 0 {
			return model.RunSummary{}, fmt.Errorf("%s: rubric mode needs diff_level", path)
		}
		_, summary, err := pl.run(ctx, batchMode, params)
		return summary, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := batch.NewRunner(runJob, cfg.Batch.Pause, logger).Run(ctx, args)
	writeMetrics(cfg, m, logger)

	total := batch.Summarize(results)
	n := setupNotifier(cfg, &http.Client{Timeout: notifyTimeout}, logger)
	if err := n.Notify(total); err != nil {
		logger.Warn("batch notification failed", "error", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 || len(results) < len(args) {
		logger.Error("batch finished with failures", "failed_jobs", failed, "skipped_jobs", len(args)-len(results))
		os.Exit(1)
	}
	return nil
}
