package jsonfix

import (
	"encoding/json"
	"fmt"
)

// Recovery is the outcome of a successful Recover call.
type Recovery struct {
	Value     any    // parsed structure: map[string]any or []any
	Candidate string // span selected by Extract
	Repaired  bool   // true when the strict parse failed and the repair pass was needed
}

// Recover runs Extract then Normalize over a raw LLM response.
// Errors are either an *ExtractionError or a *RecoveryError.
func Recover(raw string) (*Recovery, error) {
	candidate, err := Extract(raw)
	if err != nil {
		return nil, err
	}
	v, repaired, err := normalize(candidate)
	if err != nil {
		return nil, err
	}
	return &Recovery{Value: v, Candidate: candidate, Repaired: repaired}, nil
}

// Decode recovers raw and re-decodes the parsed structure into T. A shape
// mismatch is reported as a plain error, distinct from the recovery kinds.
func Decode[T any](raw string) (T, error) {
	var out T
	rec, err := Recover(raw)
	if err != nil {
		return out, err
	}
	if err := Convert(rec.Value, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Convert re-decodes an already parsed structure into dst.
func Convert(v any, dst any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("re-encode parsed value: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("unexpected shape: %w", err)
	}
	return nil
}
