package jsonfix

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExtractionFailed is returned when a response holds no {...} or [...] span.
var ErrExtractionFailed = errors.New("no JSON object or array found")

// ExtractionError carries the raw response that yielded no JSON candidate.
type ExtractionError struct {
	Raw string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%v (response length %d)", ErrExtractionFailed, len(e.Raw))
}

func (e *ExtractionError) Unwrap() error {
	return ErrExtractionFailed
}

const fence = "```"

// Extract locates the JSON payload inside an LLM response.
//
// A ```json fenced block is preferred when present. Otherwise the first opening
// delimiter is paired with the LAST closer of the same kind anywhere after it.
// The match is greedy and does not balance: trailing prose that contains a
// closer is captured too, and the normalizer's brace balancing absorbs the drift.
func Extract(raw string) (string, error) {
	if body, ok := fencedJSON(raw); ok {
		if span, ok := greedySpan(body); ok {
			return span, nil
		}
	}
	if span, ok := greedySpan(raw); ok {
		return span, nil
	}
	return "", &ExtractionError{Raw: raw}
}

// fencedJSON returns the body of the first fenced block labeled json. A missing
// closing fence (truncated output) yields the rest of the text.
func fencedJSON(s string) (string, bool) {
	lower := strings.ToLower(s)
	start := strings.Index(lower, fence+"json")
	if start < 0 {
		return "", false
	}
	body := s[start+len(fence)+len("json"):]
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return body, true
}

// greedySpan scans left to right for the first '{' or '[' that has a closer of
// its own kind somewhere after it, and returns the text up to that LAST closer.
func greedySpan(s string) (string, bool) {
	lastBrace := strings.LastIndexByte(s, '}')
	lastBracket := strings.LastIndexByte(s, ']')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if lastBrace > i {
				return s[i : lastBrace+1], true
			}
		case '[':
			if lastBracket > i {
				return s[i : lastBracket+1], true
			}
		}
	}
	return "", false
}
