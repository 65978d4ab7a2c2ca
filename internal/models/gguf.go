package models

import (
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/born-ml/tokenmodels/internal/gguf"
	"github.com/born-ml/tokenmodels/internal/models/bpe"
	"github.com/born-ml/tokenmodels/internal/models/unigram"
	"github.com/born-ml/tokenmodels/internal/models/wordpiece"
	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// GGUF tokenizer families.
const (
	ggufGPT2  = "gpt2"
	ggufLlama = "llama"
	ggufBert  = "bert"
)

// LoadFromGGUF builds a shared model from the tokenizer metadata of a GGUF
// file: "gpt2" vocabularies become byte-level BPE, "llama" ones Unigram
// and "bert" ones WordPiece. Token ids are the positions in the token list.
func LoadFromGGUF(path string) (*Shared, error) {
	f, err := gguf.ParseFile(path)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, tokenizer.WrapIO(err)
		}
		return nil, &tokenizer.FormatError{Path: path, Details: err.Error()}
	}

	m, err := modelFromGGUF(f, path)
	if err != nil {
		return nil, err
	}
	return NewShared(m), nil
}

func modelFromGGUF(f *gguf.File, path string) (Model, error) {
	tokens := f.Tokens()
	if len(tokens) == 0 {
		return Model{}, &tokenizer.FormatError{Path: path, Details: "missing " + gguf.KeyTokens}
	}
	if uint64(len(tokens)) > math.MaxUint32 {
		return Model{}, &tokenizer.FormatError{Path: path, Details: "too many tokens"}
	}

	switch family := f.TokenizerModel(); family {
	case ggufGPT2:
		merges := make(vocab.Merges, 0, len(f.Merges()))
		for i, line := range f.Merges() {
			merge, err := vocab.ParseMerge(line)
			if err != nil {
				return Model{}, &tokenizer.FormatError{Path: path, Details: fmt.Sprintf("merge %d: %v", i, err)}
			}
			merges = append(merges, merge)
		}
		cfg := bpe.DefaultConfig()
		cfg.Vocab = ggufVocab(tokens)
		cfg.Merges = merges
		if id, ok := f.Uint(gguf.KeyUnknownTokenID); ok && id < uint64(len(tokens)) {
			cfg.UnkToken = tokens[id]
		}
		m, err := cfg.Build()
		if err != nil {
			return Model{}, err
		}
		return FromBPE(m), nil

	case ggufLlama:
		scores := f.Scores()
		if len(scores) != len(tokens) {
			return Model{}, &tokenizer.FormatError{
				Path:    path,
				Details: fmt.Sprintf("%d scores for %d tokens", len(scores), len(tokens)),
			}
		}
		pieces := make([]unigram.Piece, len(tokens))
		for i, tok := range tokens {
			pieces[i] = unigram.Piece{Token: tok, Score: float64(scores[i])}
		}
		cfg := unigram.Config{Vocab: pieces}
		if id, ok := f.Uint(gguf.KeyUnknownTokenID); ok {
			unkID := int(min(id, math.MaxInt32))
			cfg.UnkID = &unkID
		}
		m, err := cfg.Build()
		if err != nil {
			return Model{}, err
		}
		return FromUnigram(m), nil

	case ggufBert:
		cfg := wordpiece.DefaultConfig()
		cfg.Vocab = ggufVocab(tokens)
		if id, ok := f.Uint(gguf.KeyUnknownTokenID); ok && id < uint64(len(tokens)) {
			cfg.UnkToken = tokens[id]
		}
		m, err := cfg.Build()
		if err != nil {
			return Model{}, err
		}
		return FromWordPiece(m), nil

	default:
		return Model{}, &tokenizer.FormatError{Path: path, Details: fmt.Sprintf("unsupported tokenizer model %q", family)}
	}
}

// ggufVocab maps each token to its position. A repeated token keeps its
// first id.
func ggufVocab(tokens []string) map[string]uint32 {
	v := make(map[string]uint32, len(tokens))
	for i, tok := range tokens {
		if _, ok := v[tok]; !ok {
			v[tok] = uint32(i)
		}
	}
	return v
}
