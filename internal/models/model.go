package models

import (
	"fmt"

	"github.com/born-ml/tokenmodels/internal/models/bpe"
	"github.com/born-ml/tokenmodels/internal/models/unigram"
	"github.com/born-ml/tokenmodels/internal/models/wordlevel"
	"github.com/born-ml/tokenmodels/internal/models/wordpiece"
	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// Kind identifies the algorithm held by a Model.
type Kind int

// Model kinds. The set is closed: adding one means updating every switch
// in this package.
const (
	KindBPE Kind = iota + 1
	KindUnigram
	KindWordLevel
	KindWordPiece
)

// String returns the name used in model files and on the command line.
func (k Kind) String() string {
	switch k {
	case KindBPE:
		return "BPE"
	case KindUnigram:
		return "Unigram"
	case KindWordLevel:
		return "WordLevel"
	case KindWordPiece:
		return "WordPiece"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a model type name ("BPE", "Unigram", ...) to its Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range []Kind{KindBPE, KindUnigram, KindWordLevel, KindWordPiece} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown model type %q", tokenizer.ErrArgument, name)
}

// Model holds exactly one tokenization algorithm and dispatches the uniform
// operations to it. The zero value is not usable; obtain a Model from
// FromBPE, FromUnigram, FromWordLevel or FromWordPiece.
type Model struct {
	kind      Kind
	bpe       *bpe.BPE
	unigram   *unigram.Unigram
	wordLevel *wordlevel.WordLevel
	wordPiece *wordpiece.WordPiece
}

// FromBPE wraps a built BPE model.
func FromBPE(m *bpe.BPE) Model { return Model{kind: KindBPE, bpe: m} }

// FromUnigram wraps a built Unigram model.
func FromUnigram(m *unigram.Unigram) Model { return Model{kind: KindUnigram, unigram: m} }

// FromWordLevel wraps a built WordLevel model.
func FromWordLevel(m *wordlevel.WordLevel) Model { return Model{kind: KindWordLevel, wordLevel: m} }

// FromWordPiece wraps a built WordPiece model.
func FromWordPiece(m *wordpiece.WordPiece) Model { return Model{kind: KindWordPiece, wordPiece: m} }

// Kind returns the active algorithm.
func (m Model) Kind() Kind { return m.kind }

// BPE returns the active variant when it is a BPE model.
func (m Model) BPE() (*bpe.BPE, bool) { return m.bpe, m.kind == KindBPE }

// Unigram returns the active variant when it is a Unigram model.
func (m Model) Unigram() (*unigram.Unigram, bool) { return m.unigram, m.kind == KindUnigram }

// WordLevel returns the active variant when it is a WordLevel model.
func (m Model) WordLevel() (*wordlevel.WordLevel, bool) { return m.wordLevel, m.kind == KindWordLevel }

// WordPiece returns the active variant when it is a WordPiece model.
func (m Model) WordPiece() (*wordpiece.WordPiece, bool) { return m.wordPiece, m.kind == KindWordPiece }

// variant returns the active algorithm behind the common interface.
// valid reports whether m holds the algorithm its kind names.
func (m Model) valid() bool {
	switch m.kind {
	case KindBPE:
		return m.bpe != nil
	case KindUnigram:
		return m.unigram != nil
	case KindWordLevel:
		return m.wordLevel != nil
	case KindWordPiece:
		return m.wordPiece != nil
	}
	return false
}

func (m Model) variant() tokenizer.Model {
	switch m.kind {
	case KindBPE:
		return m.bpe
	case KindUnigram:
		return m.unigram
	case KindWordLevel:
		return m.wordLevel
	case KindWordPiece:
		return m.wordPiece
	}
	panic(fmt.Sprintf("models: uninitialized model (%s)", m.kind))
}

// Tokenize splits a pre-segmented word into tokens.
func (m Model) Tokenize(sequence string) ([]tokenizer.Token, error) {
	return m.variant().Tokenize(sequence)
}

// tokenize is Tokenize with the BPE cache write split out. commit is nil
// unless there is something to store, and must run under exclusive access.
func (m Model) tokenize(sequence string) ([]tokenizer.Token, func(), error) {
	switch m.kind {
	case KindBPE:
		return m.bpe.TokenizeDeferred(sequence)
	case KindUnigram:
		tokens, err := m.unigram.Tokenize(sequence)
		return tokens, nil, err
	case KindWordLevel:
		tokens, err := m.wordLevel.Tokenize(sequence)
		return tokens, nil, err
	case KindWordPiece:
		tokens, err := m.wordPiece.Tokenize(sequence)
		return tokens, nil, err
	}
	panic(fmt.Sprintf("models: uninitialized model (%s)", m.kind))
}

// TokenToID returns the id of an exact vocabulary entry.
func (m Model) TokenToID(token string) (uint32, bool) { return m.variant().TokenToID(token) }

// IDToToken returns the vocabulary entry with the given id.
func (m Model) IDToToken(id uint32) (string, bool) { return m.variant().IDToToken(id) }

// Vocab returns a copy of the vocabulary.
func (m Model) Vocab() map[string]uint32 { return m.variant().Vocab() }

// VocabSize returns the number of vocabulary entries.
func (m Model) VocabSize() int { return m.variant().VocabSize() }

// Save writes the files from which the model can be rebuilt and returns
// their paths.
func (m Model) Save(dir, prefix string) ([]string, error) {
	return m.variant().Save(dir, prefix)
}

// Trainer returns a trainer preconfigured from the model's options.
func (m Model) Trainer() Trainer {
	switch m.kind {
	case KindBPE:
		return NewBPETrainer(m.bpe.Trainer())
	case KindUnigram:
		return NewUnigramTrainer(m.unigram.Trainer())
	case KindWordLevel:
		return NewWordLevelTrainer(m.wordLevel.Trainer())
	case KindWordPiece:
		return NewWordPieceTrainer(m.wordPiece.Trainer())
	}
	panic(fmt.Sprintf("models: uninitialized model (%s)", m.kind))
}

// same reports whether both wrappers hold the same variant instance.
func (m Model) same(other Model) bool {
	if m.kind != other.kind {
		return false
	}
	switch m.kind {
	case KindBPE:
		return m.bpe == other.bpe
	case KindUnigram:
		return m.unigram == other.unigram
	case KindWordLevel:
		return m.wordLevel == other.wordLevel
	case KindWordPiece:
		return m.wordPiece == other.wordPiece
	}
	return false
}
