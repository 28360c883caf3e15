package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Reference data files expected in each subject directory.
const (
	BookFile       = "book.json"
	CurriculumFile = "curriculum.json"
	ExamplesFile   = "examples.json"
	RubricsFile    = "rubrics.json"
)

// Library is the reference material for one subject.
type Library struct {
	Subject    string
	Dir        string
	Book       map[string]any // topic -> subtopic -> text, possibly nested
	Curriculum map[string]any // topic -> guidance
	Examples   map[string]any // subtopic -> example Q&As
	Rubrics    any            // free-form rubric structure
}

// SubjectDir returns <dataDir>/<subject in lower case>.
func SubjectDir(dataDir, subject string) string {
	return filepath.Join(dataDir, strings.ToLower(strings.TrimSpace(subject)))
}

// LoadSubject reads the four reference files for subject. A missing file
// yields empty data unless strict is set, in which case it is an error.
// Malformed files are repaired with jsonrepair before giving up.
func LoadSubject(dataDir, subject string, strict bool, logger *slog.Logger) (*Library, error) {
	lib := &Library{
		Subject: subject,
		Dir:     SubjectDir(dataDir, subject),
	}

	targets := []struct {
		name string
		dst  any
	}{
		{BookFile, &lib.Book},
		{CurriculumFile, &lib.Curriculum},
		{ExamplesFile, &lib.Examples},
		{RubricsFile, &lib.Rubrics},
	}
	for _, t := range targets {
		path := filepath.Join(lib.Dir, t.name)
		err := loadJSONFile(path, t.dst)
		if errors.Is(err, fs.ErrNotExist) {
			if strict {
				return nil, fmt.Errorf("load %s/%s: %w", subject, t.name, err)
			}
			logger.Warn("reference file not found, using empty fallback", "subject", subject, "file", t.name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s/%s: %w", subject, t.name, err)
		}
	}

	logger.Debug("reference data loaded",
		"subject", subject,
		"topics", len(lib.Book),
		"curriculum_topics", len(lib.Curriculum),
		"example_sets", len(lib.Examples),
	)
	return lib, nil
}

func loadJSONFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), dst); err != nil {
		return fmt.Errorf("invalid JSON after repair: %w", err)
	}
	return nil
}

// SubtopicText returns the book text for a subtopic, searching nested topic
// maps, "subtopics" maps and {"text": ...} leaves.
func (l *Library) SubtopicText(name string) (string, bool) {
	if l == nil {
		return "", false
	}
	return FindSubtopicText(l.Book, name)
}

// TopicText returns the curriculum guidance for a topic.
func (l *Library) TopicText(topic string) (string, bool) {
	if l == nil {
		return "", false
	}
	return FindTopicText(l.Curriculum, topic)
}

// ExamplesFor returns the example Q&As for a subtopic rendered as JSON, or "[]".
func (l *Library) ExamplesFor(subtopic string) string {
	if l == nil {
		return "[]"
	}
	v, ok := l.Examples[subtopic]
	if !ok || v == nil {
		return "[]"
	}
	return render(v)
}

// RubricsText renders the rubric structure for inclusion in a prompt.
func (l *Library) RubricsText() string {
	if l == nil || l.Rubrics == nil {
		return "{}"
	}
	return render(l.Rubrics)
}

// FindSubtopicText searches book depth-first for a key named name. Direct
// children of a topic win over deeper matches such as "subtopics" maps.
func FindSubtopicText(book map[string]any, name string) (string, bool) {
	for _, k := range slices.Sorted(maps.Keys(book)) {
		m, ok := book[k].(map[string]any)
		if !ok {
			continue
		}
		if hit, ok := m[name]; ok {
			return leafText(hit), true
		}
		if text, ok := FindSubtopicText(m, name); ok {
			return text, true
		}
	}
	return "", false
}

// FindTopicText looks up a top-level curriculum topic.
func FindTopicText(curriculum map[string]any, topic string) (string, bool) {
	v, ok := curriculum[topic]
	if !ok {
		return "", false
	}
	return leafText(v), true
}

func leafText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["text"].(string); ok {
			return s
		}
	}
	return render(v)
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
