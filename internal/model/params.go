package model

// GenerationParams describes one generation request: what to ask about and how many.
type GenerationParams struct {
	Subject       string         `json:"subject"`
	GradeLevel    string         `json:"grade_level"`
	Topic         string         `json:"topic"`
	Subtopic      string         `json:"subtopic"`
	BloomLevels   []string       `json:"bloom_level"`
	NumQuestions  int            `json:"num_questions"` // per level
	UserKeywords  string         `json:"user_keywords"` // extra instructions appended to the prompt
	OutputFolder  string         `json:"output_folder"`
	MaxTokens     int            `json:"max_tokens"` // overrides llm.max_tokens when > 0
	LevelCounts   map[string]int `json:"diff_level"` // rubric mode: level -> question count
	PastQuestions string         `json:"past_questions"`

	// Rubric mode reference files, read through source.ReadReference.
	CurriculumFile     string `json:"curriculum_file"`
	SelfAssessmentFile string `json:"self_assessment_file"`
	ReferenceFile      string `json:"reference_file"`
}

// Levels returns the rubric-mode levels in taxonomy order.
func (p GenerationParams) Levels() []string {
	levels := make([]string, 0, len(p.LevelCounts))
	for l := range p.LevelCounts {
		levels = append(levels, l)
	}
	SortLevels(levels)
	return levels
}

// QuestionTotal is the number of questions the request asks for.
func (p GenerationParams) QuestionTotal() int {
	if len(p.LevelCounts) > 0 {
		n := 0
		for _, c := range p.LevelCounts {
			n += c
		}
		return n
	}
	return p.NumQuestions * len(p.BloomLevels)
}
