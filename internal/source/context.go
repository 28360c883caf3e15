package source

import (
	"strings"
	"unicode"
)

// DefaultContextSentences is how many sentences FocusedContext keeps by default.
const DefaultContextSentences = 5

// FocusedContext picks the sentences of text that mention any word of the
// question, keeping at most n. With no match it falls back to the first n
// sentences. Matching is by substring on lower-cased text.
func FocusedContext(question, text string, n int) string {
	if n <= 0 {
		n = DefaultContextSentences
	}
	sentences := SplitSentences(text)
	keywords := questionWords(question)

	var picked []string
	for _, s := range sentences {
		if len(picked) == n {
			break
		}
		lower := strings.ToLower(s)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				picked = append(picked, s)
				break
			}
		}
	}
	if len(picked) == 0 {
		picked = sentences[:min(n, len(sentences))]
	}
	return strings.Join(picked, " ")
}

// SplitSentences splits after '.' or '?' followed by whitespace. Abbreviations
// such as "e.g. " and "Mr. " do not end a sentence.
func SplitSentences(text string) []string {
	r := []rune(text)
	var out []string
	start := 0
	for i := 1; i < len(r); i++ {
		if !unicode.IsSpace(r[i]) || (r[i-1] != '.' && r[i-1] != '?') {
			continue
		}
		if isAbbreviation(r, i) {
			continue
		}
		out = append(out, string(r[start:i]))
		start = i + 1
	}
	return append(out, string(r[start:]))
}

// isAbbreviation reports whether the terminator before r[i] closes "x.y." or "Mr.".
func isAbbreviation(r []rune, i int) bool {
	if i >= 4 && isWord(r[i-4]) && r[i-3] == '.' && isWord(r[i-2]) {
		return true
	}
	return i >= 3 && r[i-1] == '.' && unicode.IsUpper(r[i-3]) && unicode.IsLower(r[i-2])
}

func isWord(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

func questionWords(q string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.FieldsFunc(strings.ToLower(q), func(c rune) bool { return !isWord(c) }) {
		if !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	return words
}
