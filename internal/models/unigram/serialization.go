package unigram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// ModelFile is the file name written by Save.
const ModelFile = "unigram.json"

// modelType tags the JSON document.
const modelType = "Unigram"

// document is the on-disk form of a model.
type document struct {
	Type  string  `json:"type"`
	UnkID *int    `json:"unk_id"`
	Vocab []Piece `json:"vocab"`
}

// ReadFile parses a unigram.json file into a Config.
func ReadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, tokenizer.WrapIO(err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Config{}, &tokenizer.FormatError{Path: path, Details: err.Error()}
	}
	if doc.Type != "" && doc.Type != modelType {
		return Config{}, &tokenizer.FormatError{Path: path, Details: fmt.Sprintf("model type %q, want %q", doc.Type, modelType)}
	}
	if doc.Vocab == nil {
		return Config{}, &tokenizer.FormatError{Path: path, Details: "missing vocab"}
	}

	return Config{Vocab: doc.Vocab, UnkID: doc.UnkID}, nil
}

// FromFile reads a unigram.json file and builds the model.
func FromFile(path string) (*Unigram, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return cfg.Build()
}

// Save implements tokenizer.Model.
func (m *Unigram) Save(dir, prefix string) ([]string, error) {
	path := filepath.Join(dir, vocab.FileName(prefix, ModelFile))

	doc := document{Type: modelType, Vocab: m.pieces}
	if doc.Vocab == nil {
		doc.Vocab = []Piece{}
	}
	if m.unkID >= 0 {
		id := m.unkID
		doc.UnkID = &id
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, tokenizer.WrapIO(err)
	}

	return []string{path}, nil
}
