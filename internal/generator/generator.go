package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/qgenlab/qgen/internal/jsonfix"
	"github.com/qgenlab/qgen/internal/metrics"
	"github.com/qgenlab/qgen/internal/model"
	"github.com/qgenlab/qgen/internal/provider"
)

// Run modes, reported in RunSummary.Mode.
const (
	ModeSingle = "single"
	ModeChain  = "chain"
	ModeRubric = "rubric"
)

const (
	// maxSummaryErrors caps the per-item failures copied into a RunSummary.
	maxSummaryErrors = 5
	// windowBytes is the context shown either side of a JSON failure offset.
	windowBytes = 40
)

// Generator owns the generation pipelines for one provider:
// prompt → complete → recover → validate.
type Generator struct {
	provider         model.Provider
	modelName        string
	metrics          *metrics.Metrics
	logger           *slog.Logger
	contextSentences int
}

// New creates a generator. m may be nil.
func New(p model.Provider, modelName string, m *metrics.Metrics, logger *slog.Logger) *Generator {
	return &Generator{
		provider:         p,
		modelName:        modelName,
		metrics:          m,
		logger:           logger,
		contextSentences: 5,
	}
}

// complete sends one prompt, labelling the call with its stage and params.
func (g *Generator) complete(ctx context.Context, stage string, p model.GenerationParams, text string) (model.Completion, error) {
	ctx = model.WithCallInfo(ctx, model.CallInfo{Stage: stage, Params: p})
	ctx = provider.WithMaxTokens(ctx, p.MaxTokens)
	return g.provider.Complete(ctx, text)
}

// recover runs the JSON recovery pipeline and counts its outcome.
func (g *Generator) recover(text string) (*jsonfix.Recovery, error) {
	rec, err := jsonfix.Recover(text)
	switch {
	case errors.Is(err, jsonfix.ErrExtractionFailed):
		g.metrics.ObserveRecovery(metrics.OutcomeNoJSON)
	case err != nil:
		g.metrics.ObserveRecovery(metrics.OutcomeFailed)
	case rec.Repaired:
		g.metrics.ObserveRecovery(metrics.OutcomeRepaired)
	default:
		g.metrics.ObserveRecovery(metrics.OutcomeStrict)
	}
	return rec, err
}

// logFailure logs a skipped item, adding the diagnostic window for JSON
// recovery failures.
func (g *Generator) logFailure(msg string, err error, attrs ...any) {
	var recErr *jsonfix.RecoveryError
	if errors.As(err, &recErr) {
		attrs = append(attrs, "offset", recErr.Offset, "window", recErr.Window(windowBytes))
	}
	attrs = append(attrs, "error", err)
	g.logger.Warn(msg, attrs...)
}

func (g *Generator) newSummary(mode string, p model.GenerationParams) model.RunSummary {
	return model.RunSummary{
		Mode:     mode,
		Subject:  p.Subject,
		Topic:    p.Topic,
		Subtopic: p.Subtopic,
		Model:    g.modelName,
	}
}

func noteError(s *model.RunSummary, format string, args ...any) {
	s.Failed++
	if len(s.Errors) < maxSummaryErrors {
		s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	}
}

func finish(s *model.RunSummary, start time.Time) {
	s.Duration = time.Since(start)
}

// levelOrder compares levels by their position in the request. Levels that
// were not requested sort after, in taxonomy order.
func levelOrder(requested []string) func(a, b string) int {
	pos := make(map[string]int, len(requested))
	for i, l := range requested {
		key := strings.ToLower(strings.TrimSpace(l))
		if _, ok := pos[key]; !ok {
			pos[key] = i
		}
	}
	rank := func(l string) int {
		if i, ok := pos[strings.ToLower(strings.TrimSpace(l))]; ok {
			return i
		}
		return len(pos)
	}
	return func(a, b string) int {
		ra, rb := rank(a), rank(b)
		if ra != rb {
			return ra - rb
		}
		if ra < len(pos) {
			return 0
		}
		return model.CompareLevels(a, b)
	}
}

func sortQuestionSet(set model.QuestionSet, requested []string) {
	cmp := levelOrder(requested)
	slices.SortStableFunc(set, func(a, b model.LevelQuestions) int { return cmp(a.Level, b.Level) })
}

func sortGroups(groups model.QAGroups, requested []string) {
	cmp := levelOrder(requested)
	slices.SortStableFunc(groups, func(a, b model.LevelItems) int { return cmp(a.Level, b.Level) })
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
