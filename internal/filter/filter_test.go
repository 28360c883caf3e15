package filter

import (
	"testing"

	"github.com/qgenlab/qgen/internal/model"
)

func TestLevelFilter_Match(t *testing.T) {
	tests := []struct {
		name      string
		levels    []string
		level     string
		wantMatch bool
	}{
		{
			name:      "exact match",
			levels:    []string{"Remember", "Apply"},
			level:     "Apply",
			wantMatch: true,
		},
		{
			name:      "case insensitive matching",
			levels:    []string{"remember"},
			level:     "REMEMBER",
			wantMatch: true,
		},
		{
			name:      "surrounding whitespace ignored",
			levels:    []string{" Analyze "},
			level:     "analyze",
			wantMatch: true,
		},
		{
			name:      "level not requested",
			levels:    []string{"Remember", "Understand"},
			level:     "Create",
			wantMatch: false,
		},
		{
			name:      "empty level list passes all",
			levels:    []string{},
			level:     "Evaluate",
			wantMatch: true,
		},
		{
			name:      "blank entries are ignored",
			levels:    []string{"", "  "},
			level:     "Evaluate",
			wantMatch: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewLevelFilter(tt.levels)
			got := f.Match(tt.level)
			if got != tt.wantMatch {
				t.Errorf("Match(%q) = %v, want %v", tt.level, got, tt.wantMatch)
			}
		})
	}
}

func TestLevelFilter_Apply(t *testing.T) {
	set := model.QuestionSet{
		{Level: "Remember", Questions: []model.Question{{Question: "q1"}}},
		{Level: "Create", Questions: []model.Question{{Question: "q2"}}},
		{Level: "apply", Questions: []model.Question{{Question: "q3"}}},
	}

	kept, dropped := NewLevelFilter([]string{"Apply", "Remember"}).Apply(set)

	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if len(kept) != 2 {
		t.Fatalf("kept %d levels, want 2", len(kept))
	}
	if kept[0].Level != "Remember" || kept[1].Level != "apply" {
		t.Errorf("order not preserved: got %q, %q", kept[0].Level, kept[1].Level)
	}
}
