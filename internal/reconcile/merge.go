// Package reconcile folds streamed text fragments into a single display buffer.
//
// Streaming backends do not agree on what a "delta" is. Some send pure
// suffixes, some resend the whole answer so far, some repeat a chunk after a
// hiccup. Merge accepts all of these and only ever extends the buffer.
package reconcile

import (
	"strings"
	"unicode"
)

// Merge returns the text to display after incoming arrives on top of current.
//
// The result always has current as a prefix. Calling Merge again with the
// same fragment is a no-op.
func Merge(current, incoming string) string {
	if incoming == "" {
		return current
	}
	if current == "" {
		return incoming
	}

	k := overlap(current, incoming)
	addition := incoming[k:]

	if strings.TrimSpace(addition) == "" {
		return current
	}

	trimmed := strings.TrimLeftFunc(addition, unicode.IsSpace)
	if strings.HasSuffix(current, addition) || strings.HasSuffix(current, trimmed) {
		return current
	}

	// Some backends resend the full accumulated answer disguised as a delta.
	if incoming[:k] == current && (addition == current || trimmed == current) {
		return current
	}

	if strings.HasPrefix(current, trimmed) {
		return current
	}

	return current + addition
}

// Fold applies Merge to each fragment in order, starting from an empty buffer.
func Fold(fragments ...string) string {
	var out string
	for _, f := range fragments {
		out = Merge(out, f)
	}
	return out
}

// overlap is the length of the longest prefix of incoming that current ends
// with. Greedy from the top so the maximal overlap wins.
func overlap(current, incoming string) int {
	k := min(len(current), len(incoming))
	for k > 0 && !strings.HasSuffix(current, incoming[:k]) {
		k--
	}
	return k
}
