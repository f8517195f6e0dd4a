// Package mask redacts proper-noun-like tokens before text is sent to the
// classifier or written to storage.
//
// The heuristic matches titlecase words, optionally hyphen-joined with a
// second titlecase word ("John", "Mary-Anne"). It over-masks titlecase words
// that are not names (sentence-initial words, place names) and misses names
// written in lowercase. It is a stop-gap, not a PII detector.
package mask

import (
	"regexp"
	"sync"
)

// Placeholder replaces every masked token.
const Placeholder = "[MASKED]"

// namePattern matches a capitalized word, optionally hyphen-joined with another.
var namePattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`\b[A-Z][a-z]+(?:-[A-Z][a-z]+)?\b`)
})

// Mask replaces every name-like token in text with Placeholder.
func Mask(text string) string {
	return namePattern().ReplaceAllString(text, Placeholder)
}

// Count returns how many tokens Mask would replace.
func Count(text string) int {
	return len(namePattern().FindAllStringIndex(text, -1))
}
