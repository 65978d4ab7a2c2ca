package vocab

import (
	"fmt"
	"strings"
)

// Merge is one BPE merge rule. Its rank is its index in Merges.
type Merge struct {
	Left  string
	Right string
}

// String returns the merges-file form of the rule.
func (m Merge) String() string {
	return m.Left + " " + m.Right
}

// ParseMerge parses the merges-file form "left right".
func ParseMerge(s string) (Merge, error) {
	parts := strings.Split(s, " ")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Merge{}, fmt.Errorf("expected two space-separated fragments, got %q", s)
	}
	return Merge{Left: parts[0], Right: parts[1]}, nil
}

// Merges is a priority-ordered merge table; index 0 is applied first.
type Merges []Merge
