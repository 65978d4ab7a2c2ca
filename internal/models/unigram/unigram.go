// Package unigram implements the unigram language-model segmentation.
//
// Every piece carries a log probability; a word is split into the sequence of
// pieces with the highest total score. Characters that no piece covers are
// emitted as the unknown piece, with consecutive unknowns fused.
package unigram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// unkPenalty is subtracted from the lowest piece score to score unknowns.
const unkPenalty = 10.0

// DefaultUnkToken is the single piece of the default model.
const DefaultUnkToken = "<unk>"

// Construction and tokenization errors.
var (
	ErrVocabWithoutUnkID    = fmt.Errorf("%w: `vocab` and `unk_id` must be both specified", tokenizer.ErrArgument)
	ErrEmptyVocabulary      = fmt.Errorf("%w: vocabulary is empty", tokenizer.ErrArgument)
	ErrUnkIDNotInVocabulary = fmt.Errorf("%w: unk id is not in the vocabulary", tokenizer.ErrArgument)
	ErrDuplicatePiece       = fmt.Errorf("%w: duplicate piece", tokenizer.ErrArgument)
	ErrInvalidScore         = fmt.Errorf("%w: score must be a finite number", tokenizer.ErrArgument)
	ErrMissingUnkID         = fmt.Errorf("%w: unknown character and no unk id", tokenizer.ErrAlgorithm)
)

// Piece is a vocabulary entry and its log probability. It encodes to JSON as
// a [token, score] pair.
type Piece struct {
	Token string
	Score float64
}

// MarshalJSON implements json.Marshaler.
func (p Piece) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([2]any{p.Token, p.Score}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Piece) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("piece must be a [token, score] pair, got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Token); err != nil {
		return fmt.Errorf("piece token: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Score); err != nil {
		return fmt.Errorf("piece score: %w", err)
	}
	return nil
}

// Config holds the pieces and the index of the unknown piece.
//
// Vocab nil and UnkID nil builds the default model. UnkID without Vocab is an
// error; Vocab without UnkID builds a model that fails on unknown characters.
type Config struct {
	Vocab []Piece
	UnkID *int
}

// DefaultConfig returns the configuration of the default model.
func DefaultConfig() Config {
	return Config{}
}

// Unigram is a unigram model. Build one with Config.Build.
type Unigram struct {
	pieces    []Piece
	ids       map[string]uint32
	unkID     int
	minScore  float64
	maxPieces int // longest piece in characters
}

var _ tokenizer.Model = (*Unigram)(nil)

// Build validates the configuration and returns a ready model.
func (c Config) Build() (*Unigram, error) {
	pieces, unkID := c.Vocab, c.UnkID
	switch {
	case pieces == nil && unkID != nil:
		return nil, ErrVocabWithoutUnkID
	case pieces == nil:
		zero := 0
		pieces, unkID = []Piece{{Token: DefaultUnkToken}}, &zero
	}

	if unkID != nil {
		if len(pieces) == 0 {
			return nil, ErrEmptyVocabulary
		}
		if *unkID < 0 || *unkID >= len(pieces) {
			return nil, fmt.Errorf("%w: %d (vocabulary size %d)", ErrUnkIDNotInVocabulary, *unkID, len(pieces))
		}
	}
	if len(pieces) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d pieces", tokenizer.ErrArgument, len(pieces))
	}

	m := &Unigram{
		pieces:   append([]Piece(nil), pieces...),
		ids:      make(map[string]uint32, len(pieces)),
		unkID:    -1,
		minScore: math.Inf(1),
	}
	if unkID != nil {
		m.unkID = *unkID
	}

	for i, p := range m.pieces {
		if math.IsNaN(p.Score) || math.IsInf(p.Score, 0) {
			return nil, fmt.Errorf("%w: %q has score %v", ErrInvalidScore, p.Token, p.Score)
		}
		if _, dup := m.ids[p.Token]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePiece, p.Token)
		}
		m.ids[p.Token] = uint32(i)
		m.minScore = min(m.minScore, p.Score)
		m.maxPieces = max(m.maxPieces, utf8.RuneCountInString(p.Token))
	}
	if len(m.pieces) == 0 {
		m.minScore = 0
	}

	return m, nil
}

// Config returns the pieces and unk id the model was built with.
func (m *Unigram) Config() Config {
	cfg := Config{Vocab: m.Pieces()}
	if m.unkID >= 0 {
		id := m.unkID
		cfg.UnkID = &id
	}
	return cfg
}

// Pieces returns a copy of the pieces in id order.
func (m *Unigram) Pieces() []Piece {
	return append([]Piece(nil), m.pieces...)
}

// UnkID returns the index of the unknown piece.
func (m *Unigram) UnkID() (int, bool) {
	return m.unkID, m.unkID >= 0
}

// UnkToken returns the unknown piece, or "" when the model has none.
func (m *Unigram) UnkToken() string {
	if m.unkID < 0 {
		return ""
	}
	return m.pieces[m.unkID].Token
}

// Score returns the log probability of token.
func (m *Unigram) Score(token string) (float64, bool) {
	id, ok := m.ids[token]
	if !ok {
		return 0, false
	}
	return m.pieces[id].Score, true
}

// TokenToID implements tokenizer.Model.
func (m *Unigram) TokenToID(token string) (uint32, bool) {
	id, ok := m.ids[token]
	return id, ok
}

// IDToToken implements tokenizer.Model.
func (m *Unigram) IDToToken(id uint32) (string, bool) {
	if uint64(id) >= uint64(len(m.pieces)) {
		return "", false
	}
	return m.pieces[id].Token, true
}

// Vocab implements tokenizer.Model.
func (m *Unigram) Vocab() map[string]uint32 {
	out := make(map[string]uint32, len(m.ids))
	for tok, id := range m.ids {
		out[tok] = id
	}
	return out
}

// VocabSize implements tokenizer.Model.
func (m *Unigram) VocabSize() int { return len(m.pieces) }

// node is the best path ending at a byte position.
type node struct {
	reached bool
	score   float64
	start   int
	id      int
}

// Tokenize implements tokenizer.Model.
func (m *Unigram) Tokenize(sequence string) ([]tokenizer.Token, error) {
	if sequence == "" {
		return []tokenizer.Token{}, nil
	}

	unkScore := m.minScore - unkPenalty
	best := make([]node, len(sequence)+1)
	best[0].reached = true

	for start := 0; start < len(sequence); {
		_, size := utf8.DecodeRuneInString(sequence[start:])
		if !best[start].reached {
			start += size
			continue
		}
		base := best[start].score

		singleChar := false
		end := start
		for n := 0; n < m.maxPieces && end < len(sequence); n++ {
			_, sz := utf8.DecodeRuneInString(sequence[end:])
			end += sz
			id, ok := m.ids[sequence[start:end]]
			if !ok {
				continue
			}
			if n == 0 {
				singleChar = true
			}
			score := base + m.pieces[id].Score
			if !best[end].reached || score > best[end].score {
				best[end] = node{reached: true, score: score, start: start, id: int(id)}
			}
		}

		if !singleChar {
			end := start + size
			score := base + unkScore
			if !best[end].reached || score > best[end].score {
				if m.unkID < 0 {
					return nil, fmt.Errorf("%w: %q at byte %d", ErrMissingUnkID, sequence[start:end], start)
				}
				best[end] = node{reached: true, score: score, start: start, id: m.unkID}
			}
		}
		start += size
	}

	var reversed []tokenizer.Token
	for end := len(sequence); end > 0; {
		n := best[end]
		reversed = append(reversed, tokenizer.Token{
			ID:      uint32(n.id),
			Value:   sequence[n.start:end],
			Offsets: tokenizer.Offsets{Start: n.start, End: end},
		})
		end = n.start
	}

	tokens := make([]tokenizer.Token, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		tok := reversed[i]
		if last := len(tokens) - 1; last >= 0 && m.isUnk(tok) && m.isUnk(tokens[last]) {
			tokens[last].Value += tok.Value
			tokens[last].Offsets.End = tok.Offsets.End
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// isUnk reports whether tok carries the unknown id.
func (m *Unigram) isUnk(tok tokenizer.Token) bool {
	return m.unkID >= 0 && tok.ID == uint32(m.unkID)
}
