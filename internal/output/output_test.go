package output

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/model"
)

func sampleGroups() model.QAGroups {
	return model.QAGroups{
		{Level: "Remember", Items: []model.QAItem{{
			Question: "What controls entry to the cell?",
			Answer:   "The cell membrane.",
			Rubric: &model.Rubric{Levels: []model.RubricLevel{
				{Level: "Comprehensive", Description: "Names the membrane and explains selective permeability in detail, with an example."},
				{Level: "Limited", Description: "Names a cell part."},
			}},
			SourceText: "The cell membrane controls what enters the cell.",
		}}},
		{Level: "Apply", Items: []model.QAItem{{
			Question: "Why does a café's salted lettuce wilt?",
			Answer:   "Osmosis draws water out.",
			Rubric:   &model.Rubric{Text: "Mentions osmosis."},
		}}},
	}
}

func TestRunDir(t *testing.T) {
	got := RunDir("/data", " Biology ", "run1")
	want := filepath.Join("/data", "biology", "results", "run1")
	if got != want {
		t.Errorf("RunDir = %q, want %q", got, want)
	}

	stamped := RunDir("/data", "biology", "")
	if filepath.Dir(stamped) != filepath.Join("/data", "biology", "results") {
		t.Errorf("timestamped dir in wrong place: %q", stamped)
	}
	if !strings.HasPrefix(filepath.Base(stamped), time.Now().Format("2006")) {
		t.Errorf("expected a timestamp folder name, got %q", filepath.Base(stamped))
	}

	// Same subject, same second: still distinct directories.
	if other := RunDir("/data", "biology", ""); other == stamped {
		t.Errorf("two default run dirs collided: %q", other)
	}
}

func TestWriteJSON_CreatesDirsAndIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", ResultsFile)

	if err := WriteJSON(path, model.OutputFile{Output: sampleGroups()}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "{\n  \"Output\": {\n    \"Remember\"") {
		t.Errorf("unexpected layout:\n%s", data)
	}
}

func TestReadResults(t *testing.T) {
	dir := t.TempDir()

	chainPath := filepath.Join(dir, "chain.json")
	if err := WriteJSON(chainPath, model.OutputFile{Output: sampleGroups()}); err != nil {
		t.Fatal(err)
	}
	groups, err := ReadResults(chainPath)
	if err != nil {
		t.Fatalf("ReadResults(chain): %v", err)
	}
	if len(groups) != 2 || groups[0].Level != "Remember" || groups[1].Level != "Apply" {
		t.Errorf("chain groups = %+v", groups)
	}
	if groups[0].Items[0].Rubric == nil || len(groups[0].Items[0].Rubric.Levels) != 2 {
		t.Errorf("rubric bands lost: %+v", groups[0].Items[0].Rubric)
	}

	singlePath := filepath.Join(dir, "single.json")
	single := `{"Q&A&rubrics": [
		{"bloom_level": "Apply", "question": "q1", "answer": "a1", "rubric": "r"},
		{"question": "q2", "answer": "a2", "rubric": null},
		{"bloom_level": "Apply", "question": "q3", "answer": "a3", "rubric": "r"}
	]}`
	if err := os.WriteFile(singlePath, []byte(single), 0o644); err != nil {
		t.Fatal(err)
	}
	groups, err = ReadResults(singlePath)
	if err != nil {
		t.Fatalf("ReadResults(single): %v", err)
	}
	if len(groups) != 2 || len(groups[0].Items) != 2 || groups[1].Level != model.UnspecifiedLevel {
		t.Errorf("single groups = %+v", groups)
	}

	otherPath := filepath.Join(dir, "other.json")
	if err := os.WriteFile(otherPath, []byte(`{"foo": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadResults(otherPath); err == nil {
		t.Error("expected error for unknown document")
	}
}

func TestFindResults_NewestFirst(t *testing.T) {
	root := t.TempDir()
	older := filepath.Join(root, "biology", "results", "a", ResultsFile)
	newer := filepath.Join(root, "physics", "results", "b", ResultsFile)
	for _, p := range []string{older, newer} {
		if err := WriteFile(p, []byte(`{"Output": {}}`)); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(filepath.Join(root, "biology", "results", "a", "token_log.csv"), []byte("x")); err != nil {
		t.Fatal(err)
	}

	paths, err := FindResults(root)
	if err != nil {
		t.Fatalf("FindResults: %v", err)
	}
	if len(paths) != 2 || paths[0] != newer || paths[1] != older {
		t.Errorf("paths = %v", paths)
	}
}

func TestWriteRubricCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), RubricCSVFile)
	questions := []model.RubricQuestion{
		{Number: 1, Level: "Remember", Body: "Name the organelle.\n| Level | Criteria |"},
		{Number: 2, Level: "Apply", Body: `Explain "osmosis", briefly.`},
	}

	if err := WriteRubricCSV(path, questions); err != nil {
		t.Fatalf("WriteRubricCSV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Fatal("missing UTF-8 BOM")
	}

	rows, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	if err != nil {
		t.Fatalf("read back csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if strings.Join(rows[0], ",") != "Question,Level,Number" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != questions[0].Body || rows[2][0] != questions[1].Body {
		t.Errorf("bodies not preserved: %q / %q", rows[1][0], rows[2][0])
	}
	if rows[2][1] != "Apply" || rows[2][2] != "2" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func testPDFConfig() config.PDFConfig {
	return config.PDFConfig{PageSize: "A4", MarginMM: 15, FontFamily: "Helvetica"}
}

func TestPDFRenderer_RenderQA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", QAPDFFile)
	r := NewPDFRenderer(testPDFConfig())
	p := model.GenerationParams{Subject: "biology", Subtopic: "cell membrane", GradeLevel: "9"}

	if err := r.RenderQA(path, p, sampleGroups()); err != nil {
		t.Fatalf("RenderQA: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("not a PDF: %q", data[:min(len(data), 16)])
	}
}

func TestPDFRenderer_RenderRubric(t *testing.T) {
	path := filepath.Join(t.TempDir(), RubricPDFFile)
	r := NewPDFRenderer(testPDFConfig())
	questions := []model.RubricQuestion{{
		Number: 1,
		Level:  "remember",
		Body:   "**Question Text:** Name it.\n\n| Level | Criteria |\n|---|---|\n| 4 | Names it |",
	}}

	if err := r.RenderRubric(path, model.GenerationParams{Subject: "biology"}, questions); err != nil {
		t.Fatalf("RenderRubric: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("empty PDF")
	}
}

func TestIsTableRule(t *testing.T) {
	tests := map[string]bool{
		"|---|---|":       true,
		"| :-- | --: |":   true,
		"| 4 | Names it |": false,
		"|  |":            false,
	}
	for line, want := range tests {
		if got := isTableRule(line); got != want {
			t.Errorf("isTableRule(%q) = %v, want %v", line, got, want)
		}
	}
}
