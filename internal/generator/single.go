package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qgenlab/qgen/internal/filter"
	"github.com/qgenlab/qgen/internal/jsonfix"
	"github.com/qgenlab/qgen/internal/model"
	"github.com/qgenlab/qgen/internal/prompt"
	"github.com/qgenlab/qgen/internal/source"
)

// itemKeys are the top-level keys a one-shot response may list its items under.
var itemKeys = []string{"Q&A&rubrics", "questions", "items"}

// SingleResult is the outcome of a one-shot run.
type SingleResult struct {
	Value    any            // recovered structure, saved as-is
	Groups   model.QAGroups // nil when no known item list was found
	Repaired bool
	Summary  model.RunSummary
}

// Single asks for questions, answers and rubrics in one call. The response
// must recover to a JSON object; a recognised item list is grouped by level,
// anything else is kept as the raw structure.
func (g *Generator) Single(ctx context.Context, p model.GenerationParams, lib *source.Library) (*SingleResult, error) {
	start := time.Now()
	summary := g.newSummary(ModeSingle, p)
	summary.Requested = p.QuestionTotal()

	text, err := prompt.Single(p, lib)
	if err != nil {
		return nil, err
	}

	c, err := g.complete(ctx, model.StageSingle, p, text)
	summary.Usage = c.Usage
	if err != nil {
		return nil, fmt.Errorf("single prompt: %w", err)
	}

	rec, err := g.recover(c.Text)
	if err != nil {
		g.logFailure("could not recover JSON from response", err, "stage", model.StageSingle)
		return nil, fmt.Errorf("recover single response: %w", err)
	}
	obj, ok := rec.Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("single response: expected a JSON object, got %T", rec.Value)
	}

	res := &SingleResult{Value: obj, Repaired: rec.Repaired}
	for _, key := range itemKeys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		var items []model.QAItem
		if err := jsonfix.Convert(v, &items); err != nil {
			g.logger.Warn("keeping raw response structure", "key", key, "error", err)
			break
		}
		res.Groups = g.groupItems(items, p.BloomLevels, &summary)
		break
	}
	if res.Groups == nil {
		g.logger.Warn("response has no recognised item list", "keys", strings.Join(itemKeys, ", "))
	}

	summary.Generated = res.Groups.Total()
	finish(&summary, start)
	res.Summary = summary

	g.logger.Info("single run complete",
		"subject", p.Subject,
		"subtopic", p.Subtopic,
		"generated", summary.Generated,
		"repaired", rec.Repaired,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return res, nil
}

// groupItems buckets items by bloom_level in request order. Items for levels
// that were not requested are dropped; items without a level are kept.
func (g *Generator) groupItems(items []model.QAItem, requested []string, s *model.RunSummary) model.QAGroups {
	f := filter.NewLevelFilter(requested)
	kept := make([]model.QAItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Question) == "" {
			noteError(s, "item with empty question")
			continue
		}
		if level := strings.TrimSpace(it.Level); level != "" && !f.Match(level) {
			g.logger.Debug("dropping item for unrequested level", "level", level)
			continue
		}
		kept = append(kept, it)
	}
	groups := model.GroupItems(kept)
	sortGroups(groups, requested)
	return groups
}
