package jsonfix

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "surrounding prose",
			raw:  `Here is the result: {"a": [1,2]} Thanks!`,
			want: `{"a": [1,2]}`,
		},
		{
			name: "json fence preferred over greedy match",
			raw:  "Sure!\n```json\n{\"a\": 1}\n```\nAlso see {x}",
			want: `{"a": 1}`,
		},
		{
			name: "uppercase fence label",
			raw:  "```JSON\n[1, 2]\n```",
			want: `[1, 2]`,
		},
		{
			name: "unlabeled fence falls back to span search",
			raw:  "```\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "array opener seen first",
			raw:  `Result: [{"q":1},{"q":2}] done`,
			want: `[{"q":1},{"q":2}]`,
		},
		{
			name: "greedy over-capture across two objects",
			raw:  `{"a":1} and also {"b":2}`,
			want: `{"a":1} and also {"b":2}`,
		},
		{
			name: "stray closer before the payload",
			raw:  `} text {"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "opener without closer of its kind is skipped",
			raw:  `[ oops {"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "unterminated fence keeps remaining text",
			raw:  "```json\n{\"a\": {\"b\": 1}\n",
			want: `{"a": {"b": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_NoJSON(t *testing.T) {
	for _, raw := range []string{"", "Sorry, I cannot help with that.", "only an opener {", "] backwards ["} {
		_, err := Extract(raw)
		require.Error(t, err, "raw=%q", raw)
		assert.True(t, errors.Is(err, ErrExtractionFailed), "raw=%q", raw)

		var ee *ExtractionError
		require.True(t, errors.As(err, &ee))
		assert.Equal(t, raw, ee.Raw)
	}
}
