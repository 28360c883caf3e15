package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qgenlab/qgen/internal/model"
)

// File names inside a run directory.
const (
	ResultsFile   = "output.json"
	QuestionsFile = "questions_with_content.json"
	RubricCSVFile = "questions.csv"
	RubricMDFile  = "questions.md"
	QAPDFFile     = "questions.pdf"
	RubricPDFFile = "rubric.pdf"
)

// RunDir returns <results>/<subject>/results/<folder>. An empty folder is
// replaced by a timestamp plus a random suffix, unique per call.
func RunDir(results, subject, folder string) string {
	if strings.TrimSpace(folder) == "" {
		folder = time.Now().Format("20060102-150405") + "-" + uuid.NewString()[:8]
	}
	return filepath.Join(results, strings.ToLower(strings.TrimSpace(subject)), "results", folder)
}

// WriteJSON writes v as 2-space indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFile(path, append(data, '\n'))
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadResults loads Q&A groups from an output.json written by either
// pipeline: {"Output": {level: [...]}} or {"Q&A&rubrics": [...]}.
func ReadResults(path string) (model.QAGroups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if raw, ok := probe["Output"]; ok {
		var groups model.QAGroups
		if err := json.Unmarshal(raw, &groups); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return groups, nil
	}
	for _, key := range []string{"Q&A&rubrics", "questions", "items"} {
		raw, ok := probe[key]
		if !ok {
			continue
		}
		var items []model.QAItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return model.GroupItems(items), nil
	}
	return nil, fmt.Errorf("parse %s: no Output or Q&A&rubrics section", path)
}

// FindResults returns every output.json under root, newest first.
func FindResults(root string) ([]string, error) {
	type found struct {
		path string
		mod  time.Time
	}
	var all []found
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != ResultsFile {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		all = append(all, found{path, info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	slices.SortFunc(all, func(a, b found) int { return b.mod.Compare(a.mod) })
	paths := make([]string, len(all))
	for i, f := range all {
		paths[i] = f.path
	}
	return paths, nil
}
