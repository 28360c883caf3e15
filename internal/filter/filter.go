package filter

import (
	"strings"

	"github.com/qgenlab/qgen/internal/model"
)

// LevelFilter keeps Bloom levels that were requested for a run.
// Matching is case-insensitive and ignores surrounding whitespace.
// An empty level list is treated as "match all".
type LevelFilter struct {
	levels map[string]struct{}
}

// NewLevelFilter returns a filter for the given requested levels.
func NewLevelFilter(levels []string) *LevelFilter {
	set := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		if k := normalize(l); k != "" {
			set[k] = struct{}{}
		}
	}
	return &LevelFilter{levels: set}
}

// Match returns true if level is one of the requested levels.
func (f *LevelFilter) Match(level string) bool {
	if len(f.levels) == 0 {
		return true
	}
	_, ok := f.levels[normalize(level)]
	return ok
}

// Apply returns the levels of set that match, preserving their order.
// The number of dropped levels is returned alongside.
func (f *LevelFilter) Apply(set model.QuestionSet) (model.QuestionSet, int) {
	kept := make(model.QuestionSet, 0, len(set))
	for _, lq := range set {
		if f.Match(lq.Level) {
			kept = append(kept, lq)
		}
	}
	return kept, len(set) - len(kept)
}

func normalize(level string) string {
	return strings.ToLower(strings.TrimSpace(level))
}
