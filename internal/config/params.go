package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"

	"github.com/qgenlab/qgen/internal/model"
)

// rawParams accepts both JSON and YAML parameter files. Loosely typed fields
// are normalized by toParams.
type rawParams struct {
	Subject            string         `json:"subject" yaml:"subject"`
	GradeLevel         any            `json:"grade_level" yaml:"grade_level"`
	Topic              string         `json:"topic" yaml:"topic"`
	Subtopic           string         `json:"subtopic" yaml:"subtopic"`
	BloomLevel         any            `json:"bloom_level" yaml:"bloom_level"`
	NumQuestions       any            `json:"num_questions" yaml:"num_questions"`
	UserKeywords       string         `json:"user_keywords" yaml:"user_keywords"`
	OutputFolder       string         `json:"output_folder" yaml:"output_folder"`
	MaxTokens          int            `json:"max_tokens" yaml:"max_tokens"`
	DiffLevel          map[string]int `json:"diff_level" yaml:"diff_level"`
	PastQuestions      string         `json:"past_questions" yaml:"past_questions"`
	CurriculumFile     string         `json:"curriculum_file" yaml:"curriculum_file"`
	SelfAssessmentFile string         `json:"self_assessment_file" yaml:"self_assessment_file"`
	ReferenceFile      string         `json:"reference_file" yaml:"reference_file"`
}

// LoadParams reads generation parameters from a .json, .yaml or .yml file.
// JSON files may carry comments and trailing commas. Relative reference file
// paths are resolved against the params file's directory.
func LoadParams(path string) (model.GenerationParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.GenerationParams{}, fmt.Errorf("read params: %w", err)
	}

	var raw rawParams
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return model.GenerationParams{}, fmt.Errorf("parse params %s: %w", path, err)
		}
	default:
		if err := decodeLenientJSON(data, &raw); err != nil {
			return model.GenerationParams{}, fmt.Errorf("parse params %s: %w", path, err)
		}
	}

	p, err := raw.toParams()
	if err != nil {
		return model.GenerationParams{}, fmt.Errorf("params %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for _, f := range []*string{&p.CurriculumFile, &p.SelfAssessmentFile, &p.ReferenceFile} {
		if *f != "" && !filepath.IsAbs(*f) {
			*f = filepath.Join(dir, *f)
		}
	}
	return p, nil
}

// ParseParamsJSON decodes parameters from a JSON document, leniently.
func ParseParamsJSON(data []byte) (model.GenerationParams, error) {
	var raw rawParams
	if err := decodeLenientJSON(data, &raw); err != nil {
		return model.GenerationParams{}, err
	}
	return raw.toParams()
}

// decodeLenientJSON tries a strict decode and falls back to jsonrepair, which
// drops comments and trailing commas.
func decodeLenientJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return fmt.Errorf("%w (repair failed: %v)", err, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode repaired JSON: %w", err)
	}
	return nil
}

func (r rawParams) toParams() (model.GenerationParams, error) {
	p := model.GenerationParams{
		Subject:            strings.TrimSpace(r.Subject),
		GradeLevel:         scalarString(r.GradeLevel),
		Topic:              strings.TrimSpace(r.Topic),
		Subtopic:           strings.TrimSpace(r.Subtopic),
		UserKeywords:       r.UserKeywords,
		OutputFolder:       r.OutputFolder,
		MaxTokens:          r.MaxTokens,
		LevelCounts:        r.DiffLevel,
		PastQuestions:      r.PastQuestions,
		CurriculumFile:     r.CurriculumFile,
		SelfAssessmentFile: r.SelfAssessmentFile,
		ReferenceFile:      r.ReferenceFile,
	}

	levels, err := levelList(r.BloomLevel)
	if err != nil {
		return p, err
	}
	p.BloomLevels = levels

	n, err := intValue(r.NumQuestions)
	if err != nil {
		return p, fmt.Errorf("num_questions: %w", err)
	}
	p.NumQuestions = n
	if p.NumQuestions == 0 {
		p.NumQuestions = 1
	}

	for level, count := range p.LevelCounts {
		if count < 0 {
			return p, fmt.Errorf("diff_level[%q] must not be negative, got %d", level, count)
		}
	}
	if p.MaxTokens < 0 {
		return p, fmt.Errorf("max_tokens must not be negative, got %d", p.MaxTokens)
	}
	return p, nil
}

// levelList accepts "Remembering, Applying" or ["Remembering", "Applying"].
func levelList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return model.ParseLevels(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("bloom_level entries must be strings, got %T", e)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("bloom_level must be a string or a list, got %T", v)
}

func intValue(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, nil
		}
		return strconv.Atoi(strings.TrimSpace(t))
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
