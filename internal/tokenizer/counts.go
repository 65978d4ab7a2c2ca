package tokenizer

import (
	"cmp"
	"slices"
)

// WordCounts accumulates word frequencies fed to a trainer.
type WordCounts map[string]uint64

// Feed counts each non-empty word once.
func (c WordCounts) Feed(words ...string) {
	for _, w := range words {
		if w != "" {
			c[w]++
		}
	}
}

// Sorted returns the words ordered by descending count, then ascending text.
func (c WordCounts) Sorted() []string {
	words := make([]string, 0, len(c))
	for w := range c {
		words = append(words, w)
	}
	slices.SortFunc(words, func(a, b string) int {
		if n := cmp.Compare(c[b], c[a]); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})
	return words
}
