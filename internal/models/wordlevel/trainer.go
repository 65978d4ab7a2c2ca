package wordlevel

import (
	"fmt"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// DefaultTrainerVocabSize is the vocabulary size targeted by default.
const DefaultTrainerVocabSize = 30000

// ErrInvalidVocabSize reports a trainer asked for an empty vocabulary.
var ErrInvalidVocabSize = fmt.Errorf("%w: vocab size must be positive", tokenizer.ErrArgument)

// Trainer keeps the most frequent words.
type Trainer struct {
	VocabSize     int
	MinFrequency  uint64
	SpecialTokens []string

	// UnkToken is the unknown token of the trained model.
	UnkToken string

	words tokenizer.WordCounts
}

// NewTrainer returns a trainer with default settings.
func NewTrainer() *Trainer {
	return &Trainer{
		VocabSize: DefaultTrainerVocabSize,
		UnkToken:  DefaultUnkToken,
		words:     tokenizer.WordCounts{},
	}
}

// Trainer returns a trainer that keeps this model's unknown token.
func (m *WordLevel) Trainer() *Trainer {
	t := NewTrainer()
	t.UnkToken = m.unkToken
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

// Train builds a brand-new model from the special tokens followed by the fed
// words, most frequent first.
func (t *Trainer) Train() (*WordLevel, error) {
	if t.VocabSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVocabSize, t.VocabSize)
	}

	tokens := make(map[string]uint32)
	add := func(s string) {
		if _, ok := tokens[s]; !ok && len(tokens) < t.VocabSize {
			tokens[s] = uint32(len(tokens))
		}
	}

	for _, s := range t.SpecialTokens {
		add(s)
	}
	for _, w := range t.words.Sorted() {
		if t.words[w] < t.MinFrequency {
			break
		}
		add(w)
	}

	return Config{Vocab: tokens, UnkToken: t.UnkToken}.Build()
}
