// Package similarity scores display-name collisions for the verification
// engine's display-name check (spec §4.2/§4.6): whole-string Jaro plus a
// word-aligned "Jaro-words" composite, both via github.com/xrash/smetrics.
package similarity

import (
	"strings"

	"github.com/xrash/smetrics"
)

// delimiters are the separators jaroWords splits on, merged into one word
// list per side rather than compared independently.
var delimiters = []string{" ", "-", "_"}

// Score returns the similarity between a and b: the max of whole-string
// Jaro and jaroWords. Both inputs are compared lowercased.
func Score(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)

	whole := smetrics.Jaro(a, b)
	words := jaroWords(a, b)
	if words > whole {
		return words
	}
	return whole
}

// jaroWords splits a and b into one combined word list per side — every
// delimiter's split results appended in turn, so a delimiter absent from
// the string contributes the whole trimmed string as one element — then
// takes, for each left word, its max Jaro against any right word; the sum
// of those maxes is normalized by max(|left|, |right|).
func jaroWords(a, b string) float64 {
	left := splitWords(a)
	right := splitWords(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	var sum float64
	for _, lw := range left {
		max := 0.0
		for _, rw := range right {
			if s := smetrics.Jaro(lw, rw); s > max {
				max = s
			}
		}
		sum += max
	}

	denom := len(left)
	if len(right) > denom {
		denom = len(right)
	}
	return sum / float64(denom)
}

// splitWords appends the split-and-trim-and-filter-empty result of every
// delimiter into one combined slice, so the same word can appear more than
// once when a delimiter doesn't occur in s (its split is the whole string).
func splitWords(s string) []string {
	var all []string
	for _, delim := range delimiters {
		for _, part := range strings.Split(s, delim) {
			part = strings.TrimSpace(part)
			if part != "" {
				all = append(all, part)
			}
		}
	}
	return all
}
