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

// missingSource is recorded when a stage-one question has no source_text.
const missingSource = "N/A"

// ChainResult is the outcome of a two-stage run.
type ChainResult struct {
	Questions model.QuestionSet // stage one, after level filtering
	Output    model.QAGroups    // stage two, grouped by level
	Summary   model.RunSummary
}

// Document returns the output.json document.
func (r *ChainResult) Document() model.OutputFile {
	return model.OutputFile{Output: r.Output}
}

// Chained runs the two-stage pipeline: one call for the questions, then one
// call per question for its answer and rubric. A failure in stage one fails
// the run. A failure for a single question is logged and skipped.
//
// If ctx is cancelled during stage two the partial result is returned along
// with the context error.
func (g *Generator) Chained(ctx context.Context, p model.GenerationParams, lib *source.Library) (*ChainResult, error) {
	start := time.Now()
	summary := g.newSummary(ModeChain, p)

	set, usage, err := g.questions(ctx, p, lib)
	summary.Usage = summary.Usage.Add(usage)
	if err != nil {
		return nil, err
	}
	summary.Requested = set.Total()

	g.logger.Info("generated questions",
		"levels", len(set),
		"questions", set.Total(),
	)

	subtopicText, ok := lib.SubtopicText(p.Subtopic)
	if !ok {
		g.logger.Warn("no book content for subtopic, answers will rely on general knowledge",
			"subtopic", p.Subtopic,
		)
	}
	rubrics := lib.RubricsText()

	res := &ChainResult{Questions: set}
	for _, lq := range set {
		items := make([]model.QAItem, 0, len(lq.Questions))
		for i, q := range lq.Questions {
			if err := ctx.Err(); err != nil {
				res.Output = append(res.Output, model.LevelItems{Level: lq.Level, Items: items})
				summary.Generated = res.Output.Total()
				finish(&summary, start)
				res.Summary = summary
				return res, fmt.Errorf("chained generation: %w", err)
			}

			question := strings.TrimSpace(q.Question)
			if question == "" {
				g.logger.Warn("skipping malformed question", "level", lq.Level, "index", i)
				noteError(&summary, "%s #%d: empty question", lq.Level, i+1)
				continue
			}

			item, usage, err := g.answer(ctx, p, lq.Level, question, subtopicText, rubrics)
			summary.Usage = summary.Usage.Add(usage)
			if err != nil {
				g.logFailure("skipping question", err,
					"level", lq.Level,
					"index", i,
					"question", preview(question, 40),
				)
				noteError(&summary, "%s #%d: %v", lq.Level, i+1, err)
				continue
			}
			item.SourceText = q.SourceText
			if item.SourceText == "" {
				item.SourceText = missingSource
			}
			items = append(items, item)
		}
		res.Output = append(res.Output, model.LevelItems{Level: lq.Level, Items: items})
	}

	summary.Generated = res.Output.Total()
	finish(&summary, start)
	res.Summary = summary

	g.logger.Info("chained run complete",
		"subject", p.Subject,
		"subtopic", p.Subtopic,
		"requested", summary.Requested,
		"generated", summary.Generated,
		"failed", summary.Failed,
		"total_tokens", summary.Usage.TotalTokens,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return res, nil
}

// questions runs stage one and returns the validated, filtered question set.
func (g *Generator) questions(ctx context.Context, p model.GenerationParams, lib *source.Library) (model.QuestionSet, model.Usage, error) {
	text, err := prompt.Questions(p, lib)
	if err != nil {
		return nil, model.Usage{}, err
	}

	c, err := g.complete(ctx, model.StageQuestions, p, text)
	if err != nil {
		return nil, c.Usage, fmt.Errorf("question generation: %w", err)
	}

	rec, err := g.recover(c.Text)
	if err != nil {
		g.logFailure("could not recover JSON from response", err, "stage", model.StageQuestions)
		return nil, c.Usage, fmt.Errorf("recover questions response: %w", err)
	}

	set, err := decodeQuestionSet(rec.Value)
	if err != nil {
		return nil, c.Usage, fmt.Errorf("questions response: %w", err)
	}

	set, dropped := filter.NewLevelFilter(p.BloomLevels).Apply(set)
	if dropped > 0 {
		g.logger.Warn("dropped levels that were not requested", "dropped", dropped)
	}
	sortQuestionSet(set, p.BloomLevels)
	return set, c.Usage, nil
}

// decodeQuestionSet validates a level → [{question, source_text}] mapping,
// unwrapping a top-level "questions" key when present.
func decodeQuestionSet(v any) (model.QuestionSet, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object keyed by level, got %T", v)
	}
	if inner, ok := obj["questions"]; ok {
		v = inner
	}
	var set model.QuestionSet
	if err := jsonfix.Convert(v, &set); err != nil {
		return nil, err
	}
	return set, nil
}

// answer runs stage two for one question.
func (g *Generator) answer(ctx context.Context, p model.GenerationParams, level, question, subtopicText, rubrics string) (model.QAItem, model.Usage, error) {
	focused := source.FocusedContext(question, subtopicText, g.contextSentences)
	text, err := prompt.AnswerRubric(question, level, focused, rubrics)
	if err != nil {
		return model.QAItem{}, model.Usage{}, err
	}

	c, err := g.complete(ctx, model.StageAnswer, p, text)
	if err != nil {
		return model.QAItem{}, c.Usage, err
	}

	rec, err := g.recover(c.Text)
	if err != nil {
		return model.QAItem{}, c.Usage, err
	}
	var item model.QAItem
	if err := jsonfix.Convert(rec.Value, &item); err != nil {
		return model.QAItem{}, c.Usage, err
	}
	if strings.TrimSpace(item.Question) == "" {
		item.Question = question
	}
	return item, c.Usage, nil
}
