package wordpiece

import (
	"fmt"
	"slices"

	"github.com/born-ml/tokenmodels/internal/models/bpe"
	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// Trainer learns a WordPiece vocabulary with the BPE merge learner, then
// converts the result.
type Trainer struct {
	// BPE learns the vocabulary. Its ContinuingSubwordPrefix becomes the
	// model's prefix.
	BPE *bpe.Trainer

	UnkToken             string
	MaxInputCharsPerWord int
}

// NewTrainer returns a trainer with default settings.
func NewTrainer() *Trainer {
	b := bpe.NewTrainer()
	b.ContinuingSubwordPrefix = DefaultContinuingSubwordPrefix
	return &Trainer{
		BPE:                  b,
		UnkToken:             DefaultUnkToken,
		MaxInputCharsPerWord: DefaultMaxInputCharsPerWord,
	}
}

// Trainer returns a trainer that keeps this model's options.
func (m *WordPiece) Trainer() *Trainer {
	t := NewTrainer()
	t.BPE.ContinuingSubwordPrefix = m.continuingSubwordPrefix
	t.UnkToken = m.unkToken
	t.MaxInputCharsPerWord = m.maxInputCharsPerWord
	return t
}

// Feed adds words to the training counts.
func (t *Trainer) Feed(words ...string) {
	t.BPE.Feed(words...)
}

// WordCounts returns the accumulated counts.
func (t *Trainer) WordCounts() tokenizer.WordCounts {
	return t.BPE.WordCounts()
}

// Train learns from the fed words and builds a brand-new model. The unknown
// token is added to the special tokens when missing.
func (t *Trainer) Train() (*WordPiece, error) {
	if t.MaxInputCharsPerWord < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxInputChars, t.MaxInputCharsPerWord)
	}

	learner := *t.BPE
	learner.Model.UnkToken = t.UnkToken
	if t.UnkToken != "" && !slices.Contains(learner.SpecialTokens, t.UnkToken) {
		learner.SpecialTokens = append([]string{t.UnkToken}, learner.SpecialTokens...)
	}

	learned, err := learner.Train()
	if err != nil {
		return nil, err
	}
	m, err := FromBPE(learned)
	if err != nil {
		return nil, err
	}
	m.unkToken = t.UnkToken
	m.maxInputCharsPerWord = t.MaxInputCharsPerWord
	m.continuingSubwordPrefix = learner.ContinuingSubwordPrefix
	return m, nil
}
