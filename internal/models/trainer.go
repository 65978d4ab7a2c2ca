package models

import (
	"fmt"

	"github.com/born-ml/tokenmodels/internal/models/bpe"
	"github.com/born-ml/tokenmodels/internal/models/unigram"
	"github.com/born-ml/tokenmodels/internal/models/wordlevel"
	"github.com/born-ml/tokenmodels/internal/models/wordpiece"
	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// Trainer holds exactly one per-algorithm trainer. Obtain one from
// Model.Trainer or the New*Trainer functions; tweak it through the typed
// accessors before calling Train.
type Trainer struct {
	kind      Kind
	bpe       *bpe.Trainer
	unigram   *unigram.Trainer
	wordLevel *wordlevel.Trainer
	wordPiece *wordpiece.Trainer
}

// NewBPETrainer wraps a BPE trainer.
func NewBPETrainer(t *bpe.Trainer) Trainer { return Trainer{kind: KindBPE, bpe: t} }

// NewUnigramTrainer wraps a Unigram trainer.
func NewUnigramTrainer(t *unigram.Trainer) Trainer { return Trainer{kind: KindUnigram, unigram: t} }

// NewWordLevelTrainer wraps a WordLevel trainer.
func NewWordLevelTrainer(t *wordlevel.Trainer) Trainer {
	return Trainer{kind: KindWordLevel, wordLevel: t}
}

// NewWordPieceTrainer wraps a WordPiece trainer.
func NewWordPieceTrainer(t *wordpiece.Trainer) Trainer {
	return Trainer{kind: KindWordPiece, wordPiece: t}
}

// NewTrainer returns a trainer with default settings for kind.
func NewTrainer(kind Kind) (Trainer, error) {
	switch kind {
	case KindBPE:
		return NewBPETrainer(bpe.NewTrainer()), nil
	case KindUnigram:
		return NewUnigramTrainer(unigram.NewTrainer()), nil
	case KindWordLevel:
		return NewWordLevelTrainer(wordlevel.NewTrainer()), nil
	case KindWordPiece:
		return NewWordPieceTrainer(wordpiece.NewTrainer()), nil
	}
	return Trainer{}, fmt.Errorf("%w: unknown model kind %s", tokenizer.ErrArgument, kind)
}

// Kind returns the algorithm the trainer produces.
func (t Trainer) Kind() Kind { return t.kind }

// BPE returns the wrapped trainer when it trains BPE models.
func (t Trainer) BPE() (*bpe.Trainer, bool) { return t.bpe, t.kind == KindBPE }

// Unigram returns the wrapped trainer when it trains Unigram models.
func (t Trainer) Unigram() (*unigram.Trainer, bool) { return t.unigram, t.kind == KindUnigram }

// WordLevel returns the wrapped trainer when it trains WordLevel models.
func (t Trainer) WordLevel() (*wordlevel.Trainer, bool) {
	return t.wordLevel, t.kind == KindWordLevel
}

// WordPiece returns the wrapped trainer when it trains WordPiece models.
func (t Trainer) WordPiece() (*wordpiece.Trainer, bool) {
	return t.wordPiece, t.kind == KindWordPiece
}

// Feed adds pre-segmented words to the training counts.
func (t Trainer) Feed(words ...string) {
	switch t.kind {
	case KindBPE:
		t.bpe.Feed(words...)
	case KindUnigram:
		t.unigram.Feed(words...)
	case KindWordLevel:
		t.wordLevel.Feed(words...)
	case KindWordPiece:
		t.wordPiece.Feed(words...)
	}
}

// WordCounts returns the accumulated counts.
func (t Trainer) WordCounts() tokenizer.WordCounts {
	switch t.kind {
	case KindBPE:
		return t.bpe.WordCounts()
	case KindUnigram:
		return t.unigram.WordCounts()
	case KindWordLevel:
		return t.wordLevel.WordCounts()
	case KindWordPiece:
		return t.wordPiece.WordCounts()
	}
	return nil
}

// Train learns from the fed words and returns a brand-new model.
func (t Trainer) Train() (Model, error) {
	switch t.kind {
	case KindBPE:
		m, err := t.bpe.Train()
		if err != nil {
			return Model{}, err
		}
		return FromBPE(m), nil
	case KindUnigram:
		m, err := t.unigram.Train()
		if err != nil {
			return Model{}, err
		}
		return FromUnigram(m), nil
	case KindWordLevel:
		m, err := t.wordLevel.Train()
		if err != nil {
			return Model{}, err
		}
		return FromWordLevel(m), nil
	case KindWordPiece:
		m, err := t.wordPiece.Train()
		if err != nil {
			return Model{}, err
		}
		return FromWordPiece(m), nil
	}
	return Model{}, fmt.Errorf("%w: uninitialized trainer", tokenizer.ErrArgument)
}
