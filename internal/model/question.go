package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Question is a stage-one question with the reference text that supports it.
type Question struct {
	Question   string `json:"question"`
	SourceText string `json:"source_text,omitempty"`
}

// RubricLevel is one band of a marking rubric.
type RubricLevel struct {
	Level       string `json:"level"`
	Description string `json:"description"`
}

// Rubric is either free text or a list of bands. Models emit both forms.
type Rubric struct {
	Text   string        `json:"-"`
	Levels []RubricLevel `json:"levels,omitempty"`
}

// UnmarshalJSON accepts a string, an object with "levels", or a bare list of bands.
func (r *Rubric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &r.Text)
	case data[0] == '[':
		return json.Unmarshal(data, &r.Levels)
	}
	var obj struct {
		Levels      []RubricLevel `json:"levels"`
		Criteria    string        `json:"criteria"`
		Description string        `json:"description"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode rubric: %w", err)
	}
	r.Levels = obj.Levels
	r.Text = obj.Criteria
	if r.Text == "" {
		r.Text = obj.Description
	}
	return nil
}

// MarshalJSON writes free-text rubrics as a string and banded ones as {"levels": [...]}.
func (r Rubric) MarshalJSON() ([]byte, error) {
	if len(r.Levels) == 0 {
		return json.Marshal(r.Text)
	}
	return json.Marshal(struct {
		Levels []RubricLevel `json:"levels"`
	}{r.Levels})
}

// QAItem is a question with its model answer and marking rubric.
type QAItem struct {
	Level      string  `json:"bloom_level,omitempty"` // set by one-shot generation only
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Rubric     *Rubric `json:"rubric"`
	SourceText string  `json:"source_text,omitempty"`
}

// LevelQuestions groups stage-one questions under one Bloom level.
type LevelQuestions struct {
	Level     string
	Questions []Question
}

// QuestionSet is an ordered Bloom level -> questions mapping. It round-trips
// through JSON as an object whose key order matches the model's output.
type QuestionSet []LevelQuestions

// Total returns the number of questions across all levels.
func (s QuestionSet) Total() int {
	n := 0
	for _, l := range s {
		n += len(l.Questions)
	}
	return n
}

func (s QuestionSet) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(s))
	vals := make([]any, len(s))
	for i, l := range s {
		keys[i] = l.Level
		qs := l.Questions
		if qs == nil {
			qs = []Question{}
		}
		vals[i] = qs
	}
	return marshalOrdered(keys, vals)
}

func (s *QuestionSet) UnmarshalJSON(data []byte) error {
	*s = nil
	return decodeOrdered(data, func(key string, raw json.RawMessage) error {
		var qs []Question
		if err := json.Unmarshal(raw, &qs); err != nil {
			return fmt.Errorf("level %q: %w", key, err)
		}
		*s = append(*s, LevelQuestions{Level: key, Questions: qs})
		return nil
	})
}

// LevelItems groups generated Q&A items under one Bloom level.
type LevelItems struct {
	Level string
	Items []QAItem
}

// QAGroups is an ordered Bloom level -> Q&A mapping.
type QAGroups []LevelItems

// Total returns the number of Q&A items across all levels.
func (g QAGroups) Total() int {
	n := 0
	for _, l := range g {
		n += len(l.Items)
	}
	return n
}

func (g QAGroups) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(g))
	vals := make([]any, len(g))
	for i, l := range g {
		keys[i] = l.Level
		items := l.Items
		if items == nil {
			items = []QAItem{}
		}
		vals[i] = items
	}
	return marshalOrdered(keys, vals)
}

func (g *QAGroups) UnmarshalJSON(data []byte) error {
	*g = nil
	return decodeOrdered(data, func(key string, raw json.RawMessage) error {
		var items []QAItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("level %q: %w", key, err)
		}
		*g = append(*g, LevelItems{Level: key, Items: items})
		return nil
	})
}

// UnspecifiedLevel groups items that carry no bloom_level.
const UnspecifiedLevel = "Unspecified"

// GroupItems buckets items by their Level in order of first appearance.
func GroupItems(items []QAItem) QAGroups {
	index := make(map[string]int)
	groups := QAGroups{}
	for _, it := range items {
		level := strings.TrimSpace(it.Level)
		if level == "" {
			level = UnspecifiedLevel
		}
		i, ok := index[level]
		if !ok {
			i = len(groups)
			index[level] = i
			groups = append(groups, LevelItems{Level: level})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// OutputFile is the document written by chained generation.
type OutputFile struct {
	Output QAGroups `json:"Output"`
}

// RubricQuestion is one "### Question N (level)" section of a markdown rubric run.
type RubricQuestion struct {
	Number int
	Level  string
	Body   string
}

func marshalOrdered(keys []string, vals []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeOrdered walks a JSON object's members in document order.
func decodeOrdered(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected a JSON object keyed by level, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("level %q: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// bloomOrder is the canonical low-to-high order of the revised taxonomy.
var bloomOrder = map[string]int{
	"remembering":   0,
	"remember":      0,
	"understanding": 1,
	"understand":    1,
	"applying":      2,
	"apply":         2,
	"analyzing":     3,
	"analysing":     3,
	"analyze":       3,
	"evaluating":    4,
	"evaluate":      4,
	"creating":      5,
	"create":        5,
}

// CompareLevels orders two level names along the taxonomy; unknown names sort
// last, alphabetically.
func CompareLevels(a, b string) int {
	rank := func(s string) int {
		if r, ok := bloomOrder[strings.ToLower(strings.TrimSpace(s))]; ok {
			return r
		}
		return len(bloomOrder)
	}
	if ra, rb := rank(a), rank(b); ra != rb {
		return ra - rb
	}
	return strings.Compare(a, b)
}

// SortLevels sorts level names with CompareLevels.
func SortLevels(levels []string) {
	slices.SortStableFunc(levels, CompareLevels)
}

// ParseLevels splits a comma-separated level list, dropping empty entries.
func ParseLevels(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
