package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/qgenlab/qgen/internal/model"
)

// RunFunc runs one job described by a parameters file.
type RunFunc func(ctx context.Context, paramsPath string) (model.RunSummary, error)

// Result is the outcome of one job.
type Result struct {
	Path    string
	Summary model.RunSummary
	Err     error
}

// Runner owns the batch loop: runs each job sequentially with a pause between them.
type Runner struct {
	run    RunFunc
	pause  time.Duration
	logger *slog.Logger
}

// NewRunner creates a runner that waits pause between consecutive jobs.
func NewRunner(run RunFunc, pause time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		run:    run,
		pause:  pause,
		logger: logger,
	}
}

// Run executes every job in order. A failed job is logged and the batch moves
// on. When ctx is cancelled the remaining jobs are not started and the results
// gathered so far are returned.
func (r *Runner) Run(ctx context.Context, paths []string) []Result {
	r.logger.Info("starting batch",
		"jobs", len(paths),
		"pause", r.pause.String(),
	)

	results := make([]Result, 0, len(paths))
	for i, path := range paths {
		if ctx.Err() != nil {
			r.logger.Info("batch cancelled", "completed", len(results), "skipped", len(paths)-i)
			return results
		}

		summary, err := r.run(ctx, path)
		if err != nil {
			r.logger.Error("job failed",
				"params", filepath.Base(path),
				"error", err,
			)
		}
		results = append(results, Result{Path: path, Summary: summary, Err: err})

		// Pause between jobs to stay under provider quotas, except after the last one.
		if i < len(paths)-1 && r.pause > 0 {
			select {
			case <-ctx.Done():
				r.logger.Info("batch cancelled", "completed", len(results), "skipped", len(paths)-i-1)
				return results
			case <-time.After(r.pause):
			}
		}
	}

	r.logger.Info("batch complete", "jobs", len(results))
	return results
}

// Summarize folds job results into one summary for notification.
func Summarize(results []Result) model.RunSummary {
	total := model.RunSummary{Mode: "batch", Subject: fmt.Sprintf("%d jobs", len(results))}
	for _, res := range results {
		s := res.Summary
		total.Requested += s.Requested
		total.Generated += s.Generated
		total.Failed += s.Failed
		total.Usage = total.Usage.Add(s.Usage)
		total.Duration += s.Duration
		if total.Model == "" {
			total.Model = s.Model
		}
		if res.Err != nil {
			total.Errors = append(total.Errors, fmt.Sprintf("%s: %v", filepath.Base(res.Path), res.Err))
		}
	}
	return total
}
