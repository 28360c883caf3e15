// Package jsonfix recovers JSON from free-form LLM responses.
//
// Recovery runs in two steps. Extract picks the candidate span: a ```json
// fenced block first, then a greedy first-opener/last-closer match. Normalize
// parses that span, applying at most one bounded repair pass. The functions
// are pure and hold no state, so they are safe to call concurrently.
package jsonfix
