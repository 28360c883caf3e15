package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/generator"
	"github.com/qgenlab/qgen/internal/metrics"
	"github.com/qgenlab/qgen/internal/model"
	"github.com/qgenlab/qgen/internal/output"
	"github.com/qgenlab/qgen/internal/review"
)

var (
	reviewParams string
	reviewMode   string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse generated questions interactively (TUI)",
	Long: `Shows the run picker over saved output.json files, then the split-pane
review view. With --params a new run is generated first and opened directly.`,
	RunE: runReviewCmd,
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewParams, "params", "p", "", "generate from this parameter file, then review the result")
	reviewCmd.Flags().StringVarP(&reviewMode, "mode", "m", generator.ModeChain, "generation mode used with --params: single or chain")
	rootCmd.AddCommand(reviewCmd)
}

func runReviewCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if reviewParams != "" {
		if err := reviewLive(cfg, logger); err != nil {
			fmt.Printf("Generation failed: %v\n", err)
			os.Exit(1)
		}
		return nil
	}
	runReview(cfg.Paths.ResultsDir)
	return nil
}

// reviewLive generates behind a spinner and opens the new run. The TUI owns
// the terminal, so the pipeline logs are discarded.
func reviewLive(cfg *config.Config, logger *slog.Logger) error {
	if reviewMode != generator.ModeSingle && reviewMode != generator.ModeChain {
		return fmt.Errorf("invalid mode %q, want single or chain", reviewMode)
	}
	params, err := config.LoadParams(reviewParams)
	if err != nil {
		return err
	}

	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	usage, err := setupUsageLog(cfg, false, silentLogger)
	if err != nil {
		return err
	}
	defer usage.Close()

	m := metrics.New()
	pl, err := buildPipeline(cfg, usage, m, false, silentLogger)
	if err != nil {
		return err
	}

	label := fmt.Sprintf("Generating %s questions for %s", reviewMode, params.Subject)
	summary, err := review.RunLoader(context.Background(), label, func(ctx context.Context) (model.RunSummary, error) {
		_, s, err := pl.run(ctx, reviewMode, params)
		return s, err
	})
	writeMetrics(cfg, m, logger)
	if err != nil {
		return err
	}

	path := filepath.Join(summary.OutputPath, output.ResultsFile)
	groups, err := output.ReadResults(path)
	if err != nil {
		return err
	}
	if _, err := review.RunReviewTUI(reviewTitle(cfg.Paths.ResultsDir, path), groups); err != nil {
		return fmt.Errorf("review TUI: %w", err)
	}
	return nil
}

func runReview(root string) {
	for {
		runs, err := output.FindResults(root)
		if err != nil {
			fmt.Printf("Error listing runs: %v\n", err)
			return
		}
		if len(runs) == 0 {
			fmt.Printf("No results under %s.\n", root)
			return
		}

		choice, err := review.RunPicker(root, runs)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return
		}
		if choice < 0 {
			return
		}

		groups, err := output.ReadResults(runs[choice])
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", runs[choice], err)
			continue
		}

		wantQuit, err := review.RunReviewTUI(reviewTitle(root, runs[choice]), groups)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return
		}
		// else: loop → back to picker
	}
}

func reviewTitle(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return filepath.Dir(path)
	}
	return filepath.ToSlash(rel)
}
