// Package wordpiece implements greedy longest-match subword segmentation.
//
// Starting at the beginning of a word, the longest vocabulary entry matching
// the rest of the word is taken, with the continuing-subword prefix added to
// every piece but the first. A word with any unmatched position, or longer
// than MaxInputCharsPerWord characters, becomes one unknown token.
package wordpiece

import (
	"fmt"
	"unicode/utf8"

	"github.com/born-ml/tokenmodels/internal/models/bpe"
	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// Defaults.
const (
	DefaultUnkToken                = "[UNK]"
	DefaultMaxInputCharsPerWord    = 100
	DefaultContinuingSubwordPrefix = "##"
)

// Construction and tokenization errors.
var (
	ErrInvalidMaxInputChars = fmt.Errorf("%w: max input chars per word must not be negative", tokenizer.ErrArgument)
	ErrMissingUnkToken      = fmt.Errorf("%w: unk token out of vocabulary", tokenizer.ErrAlgorithm)
)

// Config holds every WordPiece option. Start from DefaultConfig.
type Config struct {
	// Vocab may be nil for an empty model.
	Vocab                   map[string]uint32
	UnkToken                string
	MaxInputCharsPerWord    int
	ContinuingSubwordPrefix string
}

// DefaultConfig returns the default options with no vocabulary.
func DefaultConfig() Config {
	return Config{
		UnkToken:                DefaultUnkToken,
		MaxInputCharsPerWord:    DefaultMaxInputCharsPerWord,
		ContinuingSubwordPrefix: DefaultContinuingSubwordPrefix,
	}
}

// WordPiece is a greedy subword model. Build one with Config.Build.
type WordPiece struct {
	vocab                   *vocab.Table
	unkToken                string
	maxInputCharsPerWord    int
	continuingSubwordPrefix string
}

var _ tokenizer.Model = (*WordPiece)(nil)

// Build validates the configuration and returns a ready model.
func (c Config) Build() (*WordPiece, error) {
	if c.MaxInputCharsPerWord < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxInputChars, c.MaxInputCharsPerWord)
	}

	table := vocab.Empty()
	if c.Vocab != nil {
		var err error
		if table, err = vocab.New(c.Vocab); err != nil {
			return nil, err
		}
	}

	return &WordPiece{
		vocab:                   table,
		unkToken:                c.UnkToken,
		maxInputCharsPerWord:    c.MaxInputCharsPerWord,
		continuingSubwordPrefix: c.ContinuingSubwordPrefix,
	}, nil
}

// FromBPE converts a BPE model: same vocabulary, its unknown token and
// continuing-subword prefix when set, defaults otherwise.
func FromBPE(b *bpe.BPE) (*WordPiece, error) {
	cfg := DefaultConfig()
	cfg.Vocab = b.Vocab()
	if unk := b.UnkToken(); unk != "" {
		cfg.UnkToken = unk
	}
	if prefix := b.ContinuingSubwordPrefix(); prefix != "" {
		cfg.ContinuingSubwordPrefix = prefix
	}
	return cfg.Build()
}

// Config returns the options the model was built with.
func (m *WordPiece) Config() Config {
	return Config{
		Vocab:                   m.vocab.Map(),
		UnkToken:                m.unkToken,
		MaxInputCharsPerWord:    m.maxInputCharsPerWord,
		ContinuingSubwordPrefix: m.continuingSubwordPrefix,
	}
}

// UnkToken returns the unknown token.
func (m *WordPiece) UnkToken() string { return m.unkToken }

// MaxInputCharsPerWord returns the word length limit in characters.
func (m *WordPiece) MaxInputCharsPerWord() int { return m.maxInputCharsPerWord }

// ContinuingSubwordPrefix returns the marker for non-initial pieces.
func (m *WordPiece) ContinuingSubwordPrefix() string { return m.continuingSubwordPrefix }

// TokenToID implements tokenizer.Model.
func (m *WordPiece) TokenToID(token string) (uint32, bool) { return m.vocab.ID(token) }

// IDToToken implements tokenizer.Model.
func (m *WordPiece) IDToToken(id uint32) (string, bool) { return m.vocab.Token(id) }

// Vocab implements tokenizer.Model.
func (m *WordPiece) Vocab() map[string]uint32 { return m.vocab.Map() }

// VocabSize implements tokenizer.Model.
func (m *WordPiece) VocabSize() int { return m.vocab.Len() }

// Tokenize implements tokenizer.Model.
func (m *WordPiece) Tokenize(sequence string) ([]tokenizer.Token, error) {
	if sequence == "" {
		return []tokenizer.Token{}, nil
	}
	if utf8.RuneCountInString(sequence) > m.maxInputCharsPerWord {
		return m.unknownWord(sequence)
	}

	var tokens []tokenizer.Token
	for start := 0; start < len(sequence); {
		tok, ok := m.longestMatch(sequence, start)
		if !ok {
			return m.unknownWord(sequence)
		}
		tokens = append(tokens, tok)
		start = tok.Offsets.End
	}
	return tokens, nil
}

// longestMatch finds the longest vocabulary entry starting at byte start.
func (m *WordPiece) longestMatch(sequence string, start int) (tokenizer.Token, bool) {
	for end := len(sequence); end > start; {
		piece := sequence[start:end]
		if start > 0 {
			piece = m.continuingSubwordPrefix + piece
		}
		if id, ok := m.vocab.ID(piece); ok {
			return tokenizer.Token{ID: id, Value: piece, Offsets: tokenizer.Offsets{Start: start, End: end}}, true
		}
		_, size := utf8.DecodeLastRuneInString(sequence[start:end])
		end -= size
	}
	return tokenizer.Token{}, false
}

// unknownWord maps the whole sequence to the unknown token.
func (m *WordPiece) unknownWord(sequence string) ([]tokenizer.Token, error) {
	id, ok := m.vocab.ID(m.unkToken)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingUnkToken, m.unkToken)
	}
	return []tokenizer.Token{{
		ID:      id,
		Value:   m.unkToken,
		Offsets: tokenizer.Offsets{Start: 0, End: len(sequence)},
	}}, nil
}

// Save implements tokenizer.Model. The vocabulary is written as a line list
// (vocab.txt), or as a JSON object (vocab.json) when its ids have gaps.
func (m *WordPiece) Save(dir, prefix string) ([]string, error) {
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
func FromFile(path string, cfg Config) (*WordPiece, error) {
	tokens, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Vocab = tokens
	return cfg.Build()
}
