package unigram

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// Trainer defaults.
const (
	DefaultTrainerVocabSize = 8000
	DefaultNSubIterations   = 2
	DefaultShrinkingFactor  = 0.75
	DefaultMaxPieceLength   = 16
	DefaultSeedSize         = 1_000_000
)

// ErrInvalidTrainer reports trainer settings that cannot produce a model.
var ErrInvalidTrainer = fmt.Errorf("%w: invalid unigram trainer", tokenizer.ErrArgument)

// Trainer learns pieces and scores from word counts with Viterbi-style EM:
// seed pieces from frequent substrings, re-estimate scores from the best
// segmentations, then prune the lowest scoring pieces until VocabSize is met.
type Trainer struct {
	VocabSize       int
	NSubIterations  int
	ShrinkingFactor float64
	SpecialTokens   []string

	// UnkToken becomes the unknown piece of the trained model; "" trains a
	// model without one.
	UnkToken string

	MaxPieceLength  int
	InitialAlphabet []rune
	SeedSize        int

	words tokenizer.WordCounts
}

// NewTrainer returns a trainer with default settings.
func NewTrainer() *Trainer {
	return &Trainer{
		VocabSize:       DefaultTrainerVocabSize,
		NSubIterations:  DefaultNSubIterations,
		ShrinkingFactor: DefaultShrinkingFactor,
		MaxPieceLength:  DefaultMaxPieceLength,
		SeedSize:        DefaultSeedSize,
		words:           tokenizer.WordCounts{},
	}
}

// Trainer returns a trainer that keeps this model's unknown piece.
func (m *Unigram) Trainer() *Trainer {
	t := NewTrainer()
	t.UnkToken = m.UnkToken()
	return t
}

// Feed adds words to the training counts.
func (t *Trainer) Feed(words ...string) {
	if t.words == nil {
		t.words = tokenizer.WordCounts{}
	}
	t.words.Feed(words...)
}

// WordCounts returns the accumulated counts.
func (t *Trainer) WordCounts() tokenizer.WordCounts {
	return t.words
}

func (t *Trainer) validate() error {
	switch {
	case t.VocabSize <= 0:
		return fmt.Errorf("%w: vocab size %d", ErrInvalidTrainer, t.VocabSize)
	case t.ShrinkingFactor <= 0 || t.ShrinkingFactor >= 1:
		return fmt.Errorf("%w: shrinking factor %v not in (0, 1)", ErrInvalidTrainer, t.ShrinkingFactor)
	case t.MaxPieceLength <= 0:
		return fmt.Errorf("%w: max piece length %d", ErrInvalidTrainer, t.MaxPieceLength)
	case t.NSubIterations < 0:
		return fmt.Errorf("%w: sub iterations %d", ErrInvalidTrainer, t.NSubIterations)
	}
	return nil
}

// Train learns from the fed words and builds a brand-new model.
func (t *Trainer) Train() (*Unigram, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	specials := t.specials()
	required := max(t.VocabSize-len(specials), 0)

	pieces := t.seed()
	for {
		for range t.NSubIterations {
			pieces = t.reestimate(pieces)
		}
		if len(pieces) <= required {
			break
		}
		pieces = prune(pieces, max(required, int(float64(len(pieces))*t.ShrinkingFactor)))
	}

	vocab := make([]Piece, 0, len(specials)+len(pieces))
	seen := make(map[string]bool, len(specials))
	for _, s := range specials {
		vocab = append(vocab, Piece{Token: s})
		seen[s] = true
	}
	for _, p := range sortedByScore(pieces) {
		if !seen[p.Token] {
			vocab = append(vocab, p)
		}
	}

	cfg := Config{Vocab: vocab}
	if t.UnkToken != "" {
		id := slices.IndexFunc(vocab, func(p Piece) bool { return p.Token == t.UnkToken })
		cfg.UnkID = &id
	}
	return cfg.Build()
}

// specials returns the special tokens followed by the unknown piece, without
// duplicates.
func (t *Trainer) specials() []string {
	out := make([]string, 0, len(t.SpecialTokens)+1)
	for _, s := range t.SpecialTokens {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	if t.UnkToken != "" && !slices.Contains(out, t.UnkToken) {
		out = append(out, t.UnkToken)
	}
	return out
}

// seed scores every substring up to MaxPieceLength characters by frequency
// and keeps the SeedSize best multi-character ones plus every character.
func (t *Trainer) seed() map[string]float64 {
	freq := make(map[string]float64)
	for w, n := range t.words {
		starts := runeStarts(w)
		for i, start := range starts {
			for j := i + 1; j <= len(starts) && j-i <= t.MaxPieceLength; j++ {
				end := len(w)
				if j < len(starts) {
					end = starts[j]
				}
				freq[w[start:end]] += float64(n)
			}
		}
	}
	for _, r := range t.InitialAlphabet {
		freq[string(r)] = max(freq[string(r)], 1)
	}

	var multi []string
	for s := range freq {
		if utf8.RuneCountInString(s) > 1 {
			multi = append(multi, s)
		}
	}
	if t.SeedSize > 0 && len(multi) > t.SeedSize {
		slices.SortFunc(multi, func(a, b string) int {
			wa := freq[a] * float64(utf8.RuneCountInString(a))
			wb := freq[b] * float64(utf8.RuneCountInString(b))
			if c := cmp.Compare(wb, wa); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		for _, s := range multi[t.SeedSize:] {
			delete(freq, s)
		}
	}

	return logProbabilities(freq)
}

// reestimate segments every word with the current scores and rescores pieces
// by how often the best segmentations use them. Unused multi-character
// pieces are dropped; characters are always kept.
func (t *Trainer) reestimate(pieces map[string]float64) map[string]float64 {
	model, err := Config{Vocab: sortedByScore(pieces)}.Build()
	if err != nil {
		return pieces
	}

	freq := make(map[string]float64, len(pieces))
	for w, n := range t.words {
		tokens, err := model.Tokenize(w)
		if err != nil {
			continue
		}
		for _, tok := range tokens {
			freq[tok.Value] += float64(n)
		}
	}
	for s := range pieces {
		if utf8.RuneCountInString(s) == 1 && freq[s] == 0 {
			freq[s] = 1
		}
	}
	return logProbabilities(freq)
}

// prune keeps the size best pieces, characters first.
func prune(pieces map[string]float64, size int) map[string]float64 {
	if len(pieces) <= size {
		return pieces
	}
	ordered := sortedByScore(pieces)
	slices.SortStableFunc(ordered, func(a, b Piece) int {
		return cmp.Compare(min(utf8.RuneCountInString(a.Token), 2), min(utf8.RuneCountInString(b.Token), 2))
	})

	kept := make(map[string]float64, size)
	for _, p := range ordered[:size] {
		kept[p.Token] = p.Score
	}
	return kept
}

// sortedByScore orders pieces by descending score, then token.
func sortedByScore(pieces map[string]float64) []Piece {
	out := make([]Piece, 0, len(pieces))
	for tok, score := range pieces {
		out = append(out, Piece{Token: tok, Score: score})
	}
	slices.SortFunc(out, func(a, b Piece) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Token, b.Token)
	})
	return out
}

func logProbabilities(freq map[string]float64) map[string]float64 {
	var total float64
	for _, f := range freq {
		total += f
	}
	out := make(map[string]float64, len(freq))
	if total == 0 {
		return out
	}
	logTotal := math.Log(total)
	for s, f := range freq {
		if f > 0 {
			out[s] = math.Log(f) - logTotal
		}
	}
	return out
}

// runeStarts returns the byte offset of every character in s.
func runeStarts(s string) []int {
	starts := make([]int, 0, len(s))
	for i := range s {
		starts = append(starts, i)
	}
	return starts
}
