package bpe

import (
	"cmp"
	"math/rand/v2"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// pairKey identifies two adjacent symbols by id.
type pairKey struct {
	left, right uint32
}

// rule is the outcome of merging a pairKey.
type rule struct {
	rank  int
	newID uint32
}

// symbol is one piece of a word being merged. Merged-away symbols keep their
// slot with removed set so neighbour indices stay valid.
type symbol struct {
	id         uint32
	start, end int
	prev, next int
	removed    bool
}

// word is a doubly linked list of symbols over a byte slice of the input.
type word struct {
	symbols []symbol
}

// candidate is a merge waiting in the priority queue.
type candidate struct {
	pos   int
	rank  int
	newID uint32
}

func compareCandidates(a, b candidate) int {
	if c := cmp.Compare(a.rank, b.rank); c != 0 {
		return c
	}
	return cmp.Compare(a.pos, b.pos)
}

func (w *word) add(id uint32, start, end int) {
	n := len(w.symbols)
	prev := -1
	if n > 0 {
		w.symbols[n-1].next = n
		prev = n - 1
	}
	w.symbols = append(w.symbols, symbol{id: id, start: start, end: end, prev: prev, next: -1})
}

// mergeAll applies merges by ascending (rank, position) until none apply.
// With dropout > 0 each candidate is skipped with that probability; skipped
// candidates return to the queue after the next successful merge.
func (w *word) mergeAll(merges map[pairKey]rule, dropout float64) {
	queue := heap.NewWith(compareCandidates)
	for i := 0; i+1 < len(w.symbols); i++ {
		if r, ok := merges[pairKey{w.symbols[i].id, w.symbols[i+1].id}]; ok {
			queue.Push(candidate{pos: i, rank: r.rank, newID: r.newID})
		}
	}

	var skipped []candidate
	for !queue.Empty() {
		top, _ := queue.Pop()
		if dropout > 0 && rand.Float64() < dropout {
			skipped = append(skipped, top)
			continue
		}
		if len(skipped) > 0 {
			queue.Push(skipped...)
			skipped = skipped[:0]
		}

		cur := &w.symbols[top.pos]
		if cur.removed || cur.next < 0 {
			continue
		}
		nextPos := cur.next
		right := w.symbols[nextPos]

		// The pair may have changed since the candidate was queued.
		if r, ok := merges[pairKey{cur.id, right.id}]; !ok || r.newID != top.newID {
			continue
		}

		cur.id = top.newID
		cur.end = right.end
		cur.next = right.next
		w.symbols[nextPos].removed = true
		if right.next >= 0 {
			w.symbols[right.next].prev = top.pos
		}

		if cur.prev >= 0 {
			prev := w.symbols[cur.prev]
			if r, ok := merges[pairKey{prev.id, cur.id}]; ok {
				queue.Push(candidate{pos: cur.prev, rank: r.rank, newID: r.newID})
			}
		}
		if cur.next >= 0 {
			next := w.symbols[cur.next]
			if r, ok := merges[pairKey{cur.id, next.id}]; ok {
				queue.Push(candidate{pos: top.pos, rank: r.rank, newID: r.newID})
			}
		}
	}

	live := w.symbols[:0]
	for _, s := range w.symbols {
		if !s.removed {
			live = append(live, s)
		}
	}
	w.symbols = live
}

// tokens converts the remaining symbols to Tokens using lookup for values.
func (w *word) tokens(lookup func(uint32) (string, bool)) []tokenizer.Token {
	out := make([]tokenizer.Token, 0, len(w.symbols))
	for _, s := range w.symbols {
		value, _ := lookup(s.id)
		out = append(out, tokenizer.Token{
			ID:      s.id,
			Value:   value,
			Offsets: tokenizer.Offsets{Start: s.start, End: s.end},
		})
	}
	return out
}
