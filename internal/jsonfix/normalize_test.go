package jsonfix

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

var validDocs = []string{
	`{"a":[1,2,{"b":null}]}`,
	`[1,"x",true]`,
	`{"Remembering":[{"question":"What is a cell?","source_text":"Cells are units."}],"Analyzing":[]}`,
	`{"question":"Q","answer":"A","rubric":{"levels":[{"level":"Comprehensive Response","description":"d"}]}}`,
}

func TestNormalize_StrictSuccess(t *testing.T) {
	got, err := Normalize(`{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, got)
}

func TestNormalize_Repairs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing commas", `{"a": 1, "b": [1, 2,],}`, `{"a": 1, "b": [1, 2]}`},
		{"missing closing brace", `{"a": {"b": 1}`, `{"a": {"b": 1}}`},
		{"missing opening brace", `"a": 1}`, `{"a": 1}`},
		{"missing closing bracket", `[1, 2`, `[1, 2]`},
		{"fenced candidate", "```json\n{\"a\": 1,}\n```", `{"a": 1}`},
		{"abutting objects inside an array", `[{"a":1}{"b":2}]`, `[{"a":1},{"b":2}]`},
		{"abutting objects with whitespace", "[{\"a\":1}\n  {\"b\":2}]", `[{"a":1},{"b":2}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, mustParse(t, tt.want), got)
		})
	}
}

func TestNormalize_Failure(t *testing.T) {
	_, err := Normalize(`{"a": tru}`)
	require.Error(t, err)

	var re *RecoveryError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, `{"a": tru}`, re.Text)
	assert.NotEmpty(t, re.Message)
	assert.Positive(t, re.Offset)
	assert.Contains(t, re.Error(), "offset")
}

// Two top-level objects have no single intended shape. The comma insertion
// must not turn them into something that parses.
func TestNormalize_AdjacentTopLevelObjectsAreFlagged(t *testing.T) {
	for _, in := range []string{`{"a":1}{"b":2}`, `{"a":1},{"b":2}`} {
		_, err := Normalize(in)
		var re *RecoveryError
		require.True(t, errors.As(err, &re), "in=%s err=%v", in, err)
		assert.Equal(t, `{"a":1},{"b":2}`, re.Text)
	}
}

func TestNormalize_SinglePass(t *testing.T) {
	// Balancing braces first leaves the bracket fix producing `}]`, which a
	// second pass could not fix either. One pass, one failure.
	_, err := Normalize(`{"a": [1, 2}`)
	var re *RecoveryError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, `{"a": [1, 2}]`, re.Text)
}

func TestRecoveryError_Window(t *testing.T) {
	re := &RecoveryError{Text: "abcdef", Offset: 3}
	assert.Equal(t, "cd", re.Window(1))
	assert.Equal(t, "abcdef", re.Window(80))

	past := &RecoveryError{Text: "abcdef", Offset: 100}
	assert.Equal(t, "ef", past.Window(2))

	assert.NotPanics(t, func() { assert.Equal(t, "", re.Window(-1)) })
	before := &RecoveryError{Text: "abcdef", Offset: -5}
	assert.Equal(t, "ab", before.Window(2))

	multi := &RecoveryError{Text: "aé b", Offset: 2}
	got := multi.Window(0)
	assert.Equal(t, "é", got)
	assert.True(t, utf8.ValidString(multi.Window(1)))
}

func TestProperty_FenceRoundTrip(t *testing.T) {
	for _, doc := range validDocs {
		raw := "Here you go:\n```json\n" + doc + "\n```\nLet me know!"
		candidate, err := Extract(raw)
		require.NoError(t, err)
		got, err := Normalize(candidate)
		require.NoError(t, err)
		assert.Equal(t, mustParse(t, doc), got, doc)
	}
}

func TestProperty_TrailingCommaRecovered(t *testing.T) {
	for _, doc := range validDocs {
		i := strings.LastIndexAny(doc, "}]")
		broken := doc[:i] + "," + doc[i:]
		got, err := Normalize(broken)
		require.NoError(t, err, broken)
		assert.Equal(t, mustParse(t, doc), got, broken)
	}
}

func TestProperty_MissingClosingBraceRecovered(t *testing.T) {
	for _, doc := range validDocs {
		if !strings.HasSuffix(doc, "}") {
			continue
		}
		got, err := Normalize(strings.TrimSuffix(doc, "}"))
		require.NoError(t, err, doc)
		assert.Equal(t, mustParse(t, doc), got, doc)
	}
}

func TestProperty_Idempotent(t *testing.T) {
	inputs := []string{`{"a": 1, "b": [1, 2,],}`, `{"a": {"b": 1}`, `[{"a":1}{"b":2}]`}
	for _, in := range inputs {
		first, err := Normalize(in)
		require.NoError(t, err)
		b, err := json.Marshal(first)
		require.NoError(t, err)
		second, err := Normalize(string(b))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestRecover(t *testing.T) {
	rec, err := Recover(`Here is the result: {"a": [1,2]} Thanks!`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": [1,2]}`, rec.Candidate)
	assert.False(t, rec.Repaired)
	assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, rec.Value)

	rec, err = Recover("```json\n{\"a\": 1,}\n```")
	require.NoError(t, err)
	assert.True(t, rec.Repaired)

	_, err = Recover("no json here")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestDecode(t *testing.T) {
	type payload struct {
		A []int `json:"a"`
	}
	got, err := Decode[payload](`Here is the result: {"a": [1,2]} Thanks!`)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got.A)

	_, err = Decode[[]string](`{"a": 1}`)
	require.Error(t, err)
	var re *RecoveryError
	assert.False(t, errors.As(err, &re), "shape mismatch is not a recovery failure")
	assert.Contains(t, err.Error(), "unexpected shape")
}

func TestRecover_ConcurrentCallers(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := Recover("```json\n{\"a\": [1, 2,],}\n```")
			assert.NoError(t, err)
			if rec != nil {
				assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, rec.Value)
			}
		}()
	}
	wg.Wait()
}
