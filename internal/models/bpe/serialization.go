package bpe

import (
	"path/filepath"

	"github.com/born-ml/tokenmodels/internal/vocab"
)

// File names written by Save.
const (
	VocabFile  = "vocab.json"
	MergesFile = "merges.txt"
)

// ReadFile parses a vocab.json and a merges.txt file.
func ReadFile(vocabPath, mergesPath string) (map[string]uint32, vocab.Merges, error) {
	tokens, err := vocab.ReadJSON(vocabPath)
	if err != nil {
		return nil, nil, err
	}
	merges, err := vocab.ReadMerges(mergesPath)
	if err != nil {
		return nil, nil, err
	}
	return tokens, merges, nil
}

// FromFile reads both files into cfg and builds the model.
func FromFile(vocabPath, mergesPath string, cfg Config) (*BPE, error) {
	tokens, merges, err := ReadFile(vocabPath, mergesPath)
	if err != nil {
		return nil, err
	}
	cfg.Vocab = tokens
	cfg.Merges = merges
	return cfg.Build()
}

// Save implements tokenizer.Model. It writes the vocabulary and the merges,
// in that order.
func (m *BPE) Save(dir, prefix string) ([]string, error) {
	vocabPath := filepath.Join(dir, vocab.FileName(prefix, VocabFile))
	if err := vocab.WriteJSON(vocabPath, m.vocab); err != nil {
		return nil, err
	}

	mergesPath := filepath.Join(dir, vocab.FileName(prefix, MergesFile))
	if err := vocab.WriteMerges(mergesPath, m.mergeOrder); err != nil {
		return nil, err
	}

	return []string{vocabPath, mergesPath}, nil
}
