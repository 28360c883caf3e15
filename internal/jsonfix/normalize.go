package jsonfix

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RecoveryError is returned when a candidate still fails to parse after the
// repair pass. Text is the repaired candidate the parser last saw.
type RecoveryError struct {
	Text    string
	Message string
	Offset  int64
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("json recovery failed at offset %d: %s", e.Offset, e.Message)
}

// Window returns the repaired text within n bytes either side of the failure
// offset, clamped to the text bounds and widened to whole runes.
func (e *RecoveryError) Window(n int) string {
	n = max(n, 0)
	off := min(max(int(e.Offset), 0), len(e.Text))
	lo := max(off-n, 0)
	hi := min(off+n, len(e.Text))
	for lo > 0 && !utf8.RuneStart(e.Text[lo]) {
		lo--
	}
	for hi < len(e.Text) && !utf8.RuneStart(e.Text[hi]) {
		hi++
	}
	return e.Text[lo:hi]
}

var (
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	abuttingObjRe   = regexp.MustCompile(`\}(\s*)\{`)
)

// Normalize parses a candidate JSON text, applying one bounded repair pass when
// the strict parse fails. It never loops: a candidate that still fails after
// the pass is reported as a *RecoveryError.
func Normalize(candidate string) (any, error) {
	v, _, err := normalize(candidate)
	return v, err
}

func normalize(candidate string) (any, bool, error) {
	if v, err := parseStrict(candidate); err == nil {
		return v, false, nil
	}

	repaired := repair(candidate)
	v, err := parseStrict(repaired)
	if err != nil {
		return nil, true, toRecoveryError(repaired, err)
	}
	return v, true, nil
}

// repair applies the fixed sequence: fence strip, trailing comma removal,
// brace then bracket balancing, comma insertion between abutting objects.
func repair(s string) string {
	s = stripFence(s)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = balance(s, '{', '}')
	s = balance(s, '[', ']')
	s = abuttingObjRe.ReplaceAllString(s, "},${1}{")
	return s
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, fence) {
		s = strings.TrimPrefix(s, fence)
		// Language label, e.g. ```json
		s = strings.TrimLeftFunc(s, unicode.IsLetter)
	}
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

// balance compares raw occurrence counts (string literals included) and pads
// the deficit: missing closers are appended, missing openers prepended.
func balance(s string, open, close byte) string {
	opens := strings.Count(s, string(open))
	closes := strings.Count(s, string(close))
	switch {
	case opens > closes:
		return s + strings.Repeat(string(close), opens-closes)
	case closes > opens:
		return strings.Repeat(string(open), closes-opens) + s
	}
	return s
}

func parseStrict(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func toRecoveryError(text string, err error) *RecoveryError {
	re := &RecoveryError{Text: text, Message: err.Error()}
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		re.Offset = syn.Offset
	}
	return re
}
