package provider

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/qgenlab/qgen/internal/metrics"
	"github.com/qgenlab/qgen/internal/model"
)

// Instrumented is a decorator that logs, records and measures every call to
// the wrapped provider.
type Instrumented struct {
	inner    model.Provider
	kind     model.ProviderKind
	model    string
	recorder model.UsageRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	label    string
}

// NewInstrumented wraps inner. recorder and m may be nil.
func NewInstrumented(inner model.Provider, kind model.ProviderKind, modelName string, recorder model.UsageRecorder, m *metrics.Metrics, logger *slog.Logger) *Instrumented {
	return &Instrumented{
		inner:    inner,
		kind:     kind,
		model:    modelName,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
		label:    cases.Title(language.English).String(kind.String()),
	}
}

// Complete delegates to the wrapped provider. Usage recording failures are
// logged and never fail the call.
func (p *Instrumented) Complete(ctx context.Context, prompt string) (model.Completion, error) {
	start := time.Now()
	c, err := p.inner.Complete(ctx, prompt)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.ObserveCall(p.kind.String(), status, c.Usage.PromptTokens, c.Usage.CompletionTokens, elapsed)

	info, _ := model.CallInfoFrom(ctx)
	if err != nil {
		p.logger.Warn(p.label+" call failed",
			"model", p.model,
			"stage", info.Stage,
			"duration", elapsed.Round(time.Millisecond),
			"error", err,
		)
	} else {
		p.logger.Info(p.label+" call complete",
			"model", p.model,
			"stage", info.Stage,
			"prompt_tokens", c.Usage.PromptTokens,
			"completion_tokens", c.Usage.CompletionTokens,
			"total_tokens", c.Usage.TotalTokens,
			"duration", elapsed.Round(time.Millisecond),
		)
	}

	if p.recorder != nil {
		rec := model.CallRecord{
			Timestamp: start,
			Model:     p.model,
			Provider:  p.kind.String(),
			Stage:     info.Stage,
			Status:    status,
			Usage:     c.Usage,
			Duration:  elapsed,
			Params:    info.Params,
		}
		if rerr := p.recorder.Record(rec); rerr != nil {
			p.logger.Warn("failed to record usage", "error", rerr)
		}
	}

	return c, err
}
