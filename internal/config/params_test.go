package config

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadParams_JSONWithComments(t *testing.T) {
	path := writeFile(t, "params.json", `{
  // chapter 3 revision set
  "subject": "Biology",
  "grade_level": 10,
  "topic": "Cells",
  "subtopic": "Cell Membrane",
  "bloom_level": "Remembering, Understanding ,Applying",
  "num_questions": "2",
  "user_keywords": "osmosis",
  "output_folder": "run1",
}`)

	p, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if p.Subject != "Biology" || p.GradeLevel != "10" || p.Subtopic != "Cell Membrane" {
		t.Errorf("params = %+v", p)
	}
	want := []string{"Remembering", "Understanding", "Applying"}
	if !reflect.DeepEqual(p.BloomLevels, want) {
		t.Errorf("BloomLevels = %v, want %v", p.BloomLevels, want)
	}
	if p.NumQuestions != 2 || p.QuestionTotal() != 6 {
		t.Errorf("NumQuestions = %d, total = %d", p.NumQuestions, p.QuestionTotal())
	}
}

func TestLoadParams_YAMLRubricMode(t *testing.T) {
	path := writeFile(t, "params.yaml", `
subject: Chemistry
grade_level: "11"
topic: Acids
bloom_level:
  - Analyzing
diff_level:
  Creating: 1
  Remembering: 2
curriculum_file: curriculum.txt
reference_file: /abs/ref.md
`)

	p, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if !reflect.DeepEqual(p.BloomLevels, []string{"Analyzing"}) {
		t.Errorf("BloomLevels = %v", p.BloomLevels)
	}
	if got := p.Levels(); !reflect.DeepEqual(got, []string{"Remembering", "Creating"}) {
		t.Errorf("Levels() = %v", got)
	}
	if p.QuestionTotal() != 3 {
		t.Errorf("QuestionTotal = %d, want 3", p.QuestionTotal())
	}
	if p.CurriculumFile != filepath.Join(filepath.Dir(path), "curriculum.txt") {
		t.Errorf("CurriculumFile = %q", p.CurriculumFile)
	}
	if p.ReferenceFile != "/abs/ref.md" {
		t.Errorf("ReferenceFile = %q", p.ReferenceFile)
	}
	if p.NumQuestions != 1 {
		t.Errorf("NumQuestions default = %d, want 1", p.NumQuestions)
	}
}

func TestLoadParams_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad level type", "p.json", `{"bloom_level": 7}`},
		{"bad level entry", "p.json", `{"bloom_level": ["Applying", 3]}`},
		{"bad count", "p.json", `{"num_questions": "many"}`},
		{"negative diff level", "p.yaml", "diff_level:\n  Applying: -1\n"},
		{"broken yaml", "p.yaml", "subject: [x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadParams(writeFile(t, tt.file, tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseParamsJSON(t *testing.T) {
	p, err := ParseParamsJSON([]byte(`{"subject":"Physics","bloom_level":["Evaluating"],"num_questions":3}`))
	if err != nil {
		t.Fatalf("ParseParamsJSON: %v", err)
	}
	if p.Subject != "Physics" || p.NumQuestions != 3 || len(p.BloomLevels) != 1 {
		t.Errorf("params = %+v", p)
	}
}
