package notifier

import (
	"log/slog"
	"time"

	"github.com/qgenlab/qgen/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes run summaries to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each summary via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the summary, then one warning per recorded item failure.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(s model.RunSummary) error {
	args := []any{
		"mode", s.Mode,
		"subject", s.Subject,
		"topic", s.Topic,
		"subtopic", s.Subtopic,
		"model", s.Model,
		"requested", s.Requested,
		"generated", s.Generated,
		"failed", s.Failed,
		"total_tokens", s.Usage.TotalTokens,
		"duration", s.Duration.Round(time.Millisecond),
	}
	if s.OutputPath != "" {
		args = append(args, "output", s.OutputPath)
	}
	n.logger.Info("run finished", args...)
	for _, e := range s.Errors {
		n.logger.Warn("item failed", "subject", s.Subject, "error", e)
	}
	return nil
}
