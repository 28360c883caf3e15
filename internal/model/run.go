package model

import (
	"context"
	"time"
)

// Call stages, used to label usage records and metrics.
const (
	StageSingle    = "single"
	StageQuestions = "questions"
	StageAnswer    = "answer"
	StageRubric    = "rubric"
)

// CallRecord is one row of the usage log.
type CallRecord struct {
	Timestamp time.Time
	Model     string
	Provider  string
	Stage     string
	Status    string // "ok" or "error"
	Usage     Usage
	Duration  time.Duration
	Params    GenerationParams
}

// UsageRecorder persists call records.
type UsageRecorder interface {
	Record(rec CallRecord) error
}

// CallInfo labels a provider call with the pipeline stage and request that caused it.
type CallInfo struct {
	Stage  string
	Params GenerationParams
}

type callInfoKey struct{}

// WithCallInfo attaches info to ctx for decorators that record usage.
func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the info attached by WithCallInfo, if any.
func CallInfoFrom(ctx context.Context) (CallInfo, bool) {
	info, ok := ctx.Value(callInfoKey{}).(CallInfo)
	return info, ok
}

// RunSummary reports the outcome of one pipeline run.
type RunSummary struct {
	Mode       string // "single", "chain" or "rubric"
	Subject    string
	Topic      string
	Subtopic   string
	Model      string
	Requested  int
	Generated  int
	Failed     int
	Usage      Usage
	Duration   time.Duration
	OutputPath string
	Errors     []string // first few per-item failures
}

// Notifier delivers run summaries.
type Notifier interface {
	Notify(summary RunSummary) error
}
