package generator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/qgenlab/qgen/internal/model"
	"github.com/qgenlab/qgen/internal/prompt"
)

var questionHeaderRe = regexp.MustCompile(`###\s*Question\s*(\d+)\s*\(([^)]+)\)`)

// RubricResult is the outcome of a markdown rubric run.
type RubricResult struct {
	Markdown  string
	Questions []model.RubricQuestion
	Summary   model.RunSummary
}

// Rubric asks for markdown questions with rubric tables and splits the reply
// into one entry per "### Question N (level)" section.
func (g *Generator) Rubric(ctx context.Context, p model.GenerationParams, refs prompt.References) (*RubricResult, error) {
	start := time.Now()
	summary := g.newSummary(ModeRubric, p)
	summary.Requested = p.QuestionTotal()

	text, err := prompt.RubricMarkdown(p, refs)
	if err != nil {
		return nil, err
	}

	c, err := g.complete(ctx, model.StageRubric, p, text)
	summary.Usage = c.Usage
	if err != nil {
		return nil, fmt.Errorf("rubric prompt: %w", err)
	}

	questions := ParseRubricMarkdown(c.Text)
	if len(questions) == 0 {
		g.logger.Warn("no question headers found in rubric output")
	}
	summary.Generated = len(questions)
	if short := summary.Requested - summary.Generated; short > 0 {
		summary.Failed = short
		summary.Errors = append(summary.Errors, fmt.Sprintf("%d of %d questions missing from output", short, summary.Requested))
	}
	finish(&summary, start)

	g.logger.Info("rubric run complete",
		"subject", p.Subject,
		"requested", summary.Requested,
		"generated", summary.Generated,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return &RubricResult{Markdown: c.Text, Questions: questions, Summary: summary}, nil
}

// ParseRubricMarkdown splits markdown on "### Question N (level)" headers.
// Text before the first header and sections with an empty body are dropped.
func ParseRubricMarkdown(text string) []model.RubricQuestion {
	locs := questionHeaderRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]model.RubricQuestion, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(text[loc[1]:end])
		if body == "" {
			continue
		}
		n, _ := strconv.Atoi(text[loc[2]:loc[3]])
		out = append(out, model.RubricQuestion{
			Number: n,
			Level:  strings.TrimSpace(text[loc[4]:loc[5]]),
			Body:   body,
		})
	}
	return out
}
