package vocab

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// ErrDuplicateID reports two tokens mapped to the same id.
var ErrDuplicateID = fmt.Errorf("%w: duplicate vocabulary id", tokenizer.ErrArgument)

// Entry is one token/id pair of a Table.
type Entry struct {
	Token string
	ID    uint32
}

// Table is an immutable bijective mapping between tokens and ids.
type Table struct {
	tokens map[string]uint32
	ids    map[uint32]string
}

// New builds a Table from a token->id mapping. The mapping is copied.
func New(tokens map[string]uint32) (*Table, error) {
	ids, dup := reverse(tokens)
	if dup != "" {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, dup)
	}

	return &Table{
		tokens: maps.Clone(tokens),
		ids:    ids,
	}, nil
}

// reverse builds the id->token map. dup describes the first clash found,
// or is empty when the mapping is bijective.
func reverse(tokens map[string]uint32) (ids map[uint32]string, dup string) {
	ids = make(map[uint32]string, len(tokens))
	for tok, id := range tokens {
		if other, ok := ids[id]; ok {
			a, b := min(tok, other), max(tok, other)
			return nil, fmt.Sprintf("%q and %q both map to %d", a, b, id)
		}
		ids[id] = tok
	}
	return ids, ""
}

// Empty returns a Table with no entries.
func Empty() *Table {
	return &Table{
		tokens: map[string]uint32{},
		ids:    map[uint32]string{},
	}
}

// ID returns the id of token.
func (t *Table) ID(token string) (uint32, bool) {
	id, ok := t.tokens[token]
	return id, ok
}

// Token returns the token with the given id.
func (t *Table) Token(id uint32) (string, bool) {
	tok, ok := t.ids[id]
	return tok, ok
}

// Contains reports whether token is in the table.
func (t *Table) Contains(token string) bool {
	_, ok := t.tokens[token]
	return ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.tokens)
}

// Map returns a copy of the token->id mapping.
func (t *Table) Map() map[string]uint32 {
	if t.tokens == nil {
		return map[string]uint32{}
	}
	return maps.Clone(t.tokens)
}

// Ordered returns the entries sorted by id.
func (t *Table) Ordered() []Entry {
	entries := make([]Entry, 0, len(t.tokens))
	for tok, id := range t.tokens {
		entries = append(entries, Entry{Token: tok, ID: id})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return entries
}

// Dense reports whether the ids are exactly 0..Len()-1.
func (t *Table) Dense() bool {
	for id := range t.ids {
		if int(id) >= len(t.ids) {
			return false
		}
	}
	return true
}
