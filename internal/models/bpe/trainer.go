package bpe

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// ErrInvalidVocabSize reports a trainer asked for an empty vocabulary.
var ErrInvalidVocabSize = fmt.Errorf("%w: vocab size must be positive", tokenizer.ErrArgument)

// DefaultTrainerVocabSize is the vocabulary size targeted by default.
const DefaultTrainerVocabSize = 30000

// Trainer learns a vocabulary and merge table from word counts.
//
// Exported fields may be edited between Feed and Train.
type Trainer struct {
	VocabSize    int
	MinFrequency uint64

	// SpecialTokens are added first, in order.
	SpecialTokens []string

	// LimitAlphabet caps the number of initial characters; 0 keeps all.
	LimitAlphabet int

	// InitialAlphabet characters are always kept.
	InitialAlphabet []rune

	ContinuingSubwordPrefix string
	EndOfWordSuffix         string

	// MaxTokenLength caps the length in characters of merged tokens; 0 is
	// unlimited.
	MaxTokenLength int

	// Model holds the options given to the trained model. Its Vocab and
	// Merges are ignored.
	Model Config

	words tokenizer.WordCounts
}

// NewTrainer returns a trainer with default settings.
func NewTrainer() *Trainer {
	return &Trainer{
		VocabSize: DefaultTrainerVocabSize,
		Model:     DefaultConfig(),
		words:     tokenizer.WordCounts{},
	}
}

// Trainer returns a trainer whose output keeps this model's options.
func (m *BPE) Trainer() *Trainer {
	t := NewTrainer()
	t.Model = m.Config()
	t.Model.Vocab, t.Model.Merges = nil, nil
	t.ContinuingSubwordPrefix = m.continuingSubwordPrefix
	t.EndOfWordSuffix = m.endOfWordSuffix
	if m.unkToken != "" {
		t.SpecialTokens = []string{m.unkToken}
	}
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

// trainingWord is a fed word as a sequence of symbol ids.
type trainingWord struct {
	ids   []uint32
	count uint64
}

// Learn runs the merge loop and returns the vocabulary and merge table
// without building a model.
func (t *Trainer) Learn() (map[string]uint32, vocab.Merges, error) {
	if t.VocabSize <= 0 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrInvalidVocabSize, t.VocabSize)
	}

	tokens := make(map[string]uint32)
	var byID []string
	add := func(s string) uint32 {
		if id, ok := tokens[s]; ok {
			return id
		}
		id := uint32(len(byID))
		tokens[s] = id
		byID = append(byID, s)
		return id
	}

	for _, s := range t.SpecialTokens {
		add(s)
	}

	alphabet := t.alphabet()
	for _, r := range alphabet {
		add(string(r))
	}
	kept := make(map[rune]bool, len(alphabet))
	for _, r := range alphabet {
		kept[r] = true
	}

	words := make([]trainingWord, 0, len(t.words))
	for _, w := range t.words.Sorted() {
		var ids []uint32
		for i, r := range w {
			if !kept[r] {
				continue
			}
			s := string(r)
			if i > 0 && t.ContinuingSubwordPrefix != "" {
				s = t.ContinuingSubwordPrefix + s
			}
			if i+utf8.RuneLen(r) == len(w) && t.EndOfWordSuffix != "" {
				s += t.EndOfWordSuffix
			}
			ids = append(ids, add(s))
		}
		if len(ids) > 0 {
			words = append(words, trainingWord{ids: ids, count: t.words[w]})
		}
	}

	merges := vocab.Merges{}
	banned := make(map[pairKey]bool)
	for len(byID) < t.VocabSize {
		best, count := bestPair(words, banned)
		if count == 0 || count < t.MinFrequency {
			break
		}

		left, right := byID[best.left], byID[best.right]
		merged := left + strings.TrimPrefix(right, t.ContinuingSubwordPrefix)
		if t.MaxTokenLength > 0 && utf8.RuneCountInString(merged) > t.MaxTokenLength {
			banned[best] = true
			continue
		}

		newID := add(merged)
		merges = append(merges, vocab.Merge{Left: left, Right: right})
		for i := range words {
			words[i].ids = applyMerge(words[i].ids, best, newID)
		}
	}

	return tokens, merges, nil
}

// Train learns from the fed words and builds a brand-new model.
func (t *Trainer) Train() (*BPE, error) {
	tokens, merges, err := t.Learn()
	if err != nil {
		return nil, err
	}

	cfg := t.Model
	cfg.Vocab = tokens
	cfg.Merges = merges
	cfg.ContinuingSubwordPrefix = t.ContinuingSubwordPrefix
	cfg.EndOfWordSuffix = t.EndOfWordSuffix
	return cfg.Build()
}

// alphabet returns the kept initial characters in code point order.
func (t *Trainer) alphabet() []rune {
	counts := make(map[rune]uint64)
	for w, n := range t.words {
		for _, r := range w {
			counts[r] += n
		}
	}
	for _, r := range t.InitialAlphabet {
		counts[r] = math.MaxUint64
	}

	runes := make([]rune, 0, len(counts))
	for r := range counts {
		runes = append(runes, r)
	}

	if t.LimitAlphabet > 0 && len(runes) > t.LimitAlphabet {
		slices.SortFunc(runes, func(a, b rune) int {
			if c := cmp.Compare(counts[b], counts[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		runes = runes[:max(t.LimitAlphabet, len(t.InitialAlphabet))]
	}

	slices.Sort(runes)
	return runes
}

// bestPair returns the most frequent adjacent pair, the lowest ids winning ties.
func bestPair(words []trainingWord, banned map[pairKey]bool) (pairKey, uint64) {
	counts := make(map[pairKey]uint64)
	for _, w := range words {
		for i := 0; i+1 < len(w.ids); i++ {
			counts[pairKey{w.ids[i], w.ids[i+1]}] += w.count
		}
	}

	var best pairKey
	var bestCount uint64
	for p, n := range counts {
		if banned[p] {
			continue
		}
		if n > bestCount || (n == bestCount && lessPair(p, best)) {
			best, bestCount = p, n
		}
	}
	return best, bestCount
}

func lessPair(a, b pairKey) bool {
	if a.left != b.left {
		return a.left < b.left
	}
	return a.right < b.right
}

// applyMerge replaces every non-overlapping occurrence of p, left to right.
func applyMerge(ids []uint32, p pairKey, newID uint32) []uint32 {
	out := ids[:0]
	for i := 0; i < len(ids); i++ {
		if i+1 < len(ids) && ids[i] == p.left && ids[i+1] == p.right {
			out = append(out, newID)
			i++
			continue
		}
		out = append(out, ids[i])
	}
	return out
}
