// Package prompt assembles the text sent to the model for each pipeline stage.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/qgenlab/qgen/internal/model"
	"github.com/qgenlab/qgen/internal/source"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// templates is parsed once at package init and reused for every prompt.
var templates = template.Must(template.New("").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(templateFS, "templates/*.tmpl"))

const (
	noTextbook   = "Use general knowledge."
	noCurriculum = "Use curriculum expectations."
)

type contextData struct {
	Subject      string
	GradeLevel   string
	Topic        string
	Subtopic     string
	Levels       []string
	NumQuestions int
	Keywords     string
	Textbook     string
	Curriculum   string
	Examples     string
	Rubrics      string
}

func newContextData(p model.GenerationParams, lib *source.Library) contextData {
	d := contextData{
		Subject:      orDefault(p.Subject, "Unknown Subject"),
		GradeLevel:   orDefault(p.GradeLevel, "Unknown Grade"),
		Topic:        orDefault(p.Topic, "Unknown Topic"),
		Subtopic:     orDefault(p.Subtopic, "Unknown Subtopic"),
		Levels:       p.BloomLevels,
		NumQuestions: p.NumQuestions,
		Keywords:     p.UserKeywords,
		Textbook:     noTextbook,
		Curriculum:   noCurriculum,
		Examples:     lib.ExamplesFor(p.Subtopic),
		Rubrics:      lib.RubricsText(),
	}
	if text, ok := lib.SubtopicText(p.Subtopic); ok && text != "" {
		d.Textbook = text
	}
	if text, ok := lib.TopicText(p.Topic); ok && text != "" {
		d.Curriculum = text
	}
	return d
}

// Single builds the one-shot prompt asking for questions, answers and rubrics together.
func Single(p model.GenerationParams, lib *source.Library) (string, error) {
	if len(p.BloomLevels) == 0 {
		return "", fmt.Errorf("build single prompt: no bloom levels requested")
	}
	return execute("single.tmpl", newContextData(p, lib))
}

// Questions builds the stage-one prompt: questions grouped by Bloom level,
// each with its supporting source text.
func Questions(p model.GenerationParams, lib *source.Library) (string, error) {
	if len(p.BloomLevels) == 0 {
		return "", fmt.Errorf("build questions prompt: no bloom levels requested")
	}
	return execute("questions.tmpl", newContextData(p, lib))
}

// AnswerRubric builds the stage-two prompt for one question.
func AnswerRubric(question, level, focusedContext, rubrics string) (string, error) {
	return execute("answer_rubric.tmpl", struct {
		Question string
		Level    string
		Context  string
		Rubrics  string
	}{question, level, focusedContext, rubrics})
}

// References holds the reference text available to markdown rubric generation.
type References struct {
	Curriculum     string
	SelfAssessment string
	Reference      string
}

type levelCount struct {
	Name  string
	Count int
}

// RubricMarkdown builds the prompt for markdown questions with rubric tables.
// Each reference is cut to source.DefaultSnippetRunes.
func RubricMarkdown(p model.GenerationParams, refs References) (string, error) {
	if len(p.LevelCounts) == 0 {
		return "", fmt.Errorf("build rubric prompt: diff_level missing or empty")
	}
	levels := make([]levelCount, 0, len(p.LevelCounts))
	for _, name := range p.Levels() {
		levels = append(levels, levelCount{name, p.LevelCounts[name]})
	}
	return execute("rubric_markdown.tmpl", struct {
		Subject        string
		Topic          string
		Subtopic       string
		PastQuestions  string
		Levels         []levelCount
		Curriculum     string
		SelfAssessment string
		Reference      string
	}{
		Subject:        p.Subject,
		Topic:          p.Topic,
		Subtopic:       p.Subtopic,
		PastQuestions:  p.PastQuestions,
		Levels:         levels,
		Curriculum:     source.Snippet(refs.Curriculum, source.DefaultSnippetRunes),
		SelfAssessment: source.Snippet(refs.SelfAssessment, source.DefaultSnippetRunes),
		Reference:      source.Snippet(refs.Reference, source.DefaultSnippetRunes),
	})
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
