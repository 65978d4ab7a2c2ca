// Package wordlevel implements the whole-word lookup model: a word is either
// in the vocabulary or replaced by the unknown token.
package wordlevel

import (
	"fmt"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// DefaultUnkToken is the unknown token used when none is given.
const DefaultUnkToken = "<unk>"

// ErrMissingUnkToken reports a word absent from the vocabulary while the unk
// token is absent too.
var ErrMissingUnkToken = fmt.Errorf("%w: word not in vocabulary and unk token missing", tokenizer.ErrAlgorithm)

// Config holds the WordLevel options. Start from DefaultConfig.
type Config struct {
	// Vocab may be nil for an empty model.
	Vocab    map[string]uint32
	UnkToken string
}

// DefaultConfig returns an empty vocabulary with the default unknown token.
func DefaultConfig() Config {
	return Config{UnkToken: DefaultUnkToken}
}

// WordLevel is a whole-word model. Build one with Config.Build.
type WordLevel struct {
	vocab    *vocab.Table
	unkToken string
}

var _ tokenizer.Model = (*WordLevel)(nil)

// Build validates the configuration and returns a ready model.
func (c Config) Build() (*WordLevel, error) {
	table := vocab.Empty()
	if c.Vocab != nil {
		var err error
		if table, err = vocab.New(c.Vocab); err != nil {
			return nil, err
		}
	}
	return &WordLevel{vocab: table, unkToken: c.UnkToken}, nil
}

// Config returns the options the model was built with.
func (m *WordLevel) Config() Config {
	return Config{Vocab: m.vocab.Map(), UnkToken: m.unkToken}
}

// UnkToken returns the unknown token.
func (m *WordLevel) UnkToken() string { return m.unkToken }

// TokenToID implements tokenizer.Model.
func (m *WordLevel) TokenToID(token string) (uint32, bool) { return m.vocab.ID(token) }

// IDToToken implements tokenizer.Model.
func (m *WordLevel) IDToToken(id uint32) (string, bool) { return m.vocab.Token(id) }

// Vocab implements tokenizer.Model.
func (m *WordLevel) Vocab() map[string]uint32 { return m.vocab.Map() }

// VocabSize implements tokenizer.Model.
func (m *WordLevel) VocabSize() int { return m.vocab.Len() }

// Tokenize implements tokenizer.Model. The whole sequence is one token.
func (m *WordLevel) Tokenize(sequence string) ([]tokenizer.Token, error) {
	if sequence == "" {
		return []tokenizer.Token{}, nil
	}
	span := tokenizer.Offsets{Start: 0, End: len(sequence)}

	if id, ok := m.vocab.ID(sequence); ok {
		return []tokenizer.Token{{ID: id, Value: sequence, Offsets: span}}, nil
	}
	if id, ok := m.vocab.ID(m.unkToken); ok {
		return []tokenizer.Token{{ID: id, Value: m.unkToken, Offsets: span}}, nil
	}
	return nil, fmt.Errorf("%w: %q (unk token %q)", ErrMissingUnkToken, sequence, m.unkToken)
}

// Save implements tokenizer.Model. Dense vocabularies are written as a line
// list (vocab.txt), others as a JSON object (vocab.json).
func (m *WordLevel) Save(dir, prefix string) ([]string, error) {
	path, err := vocab.Save(dir, prefix, m.vocab)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// ReadFile parses a vocabulary file, either a line list or a JSON object.
func ReadFile(path string) (map[string]uint32, error) {
	return vocab.ReadFile(path)
}

// FromFile reads a vocabulary file into cfg and builds the model.
func FromFile(path string, cfg Config) (*WordLevel, error) {
	tokens, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Vocab = tokens
	return cfg.Build()
}
