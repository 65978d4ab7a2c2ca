package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/born-ml/tokenmodels/internal/models/bpe"
	"github.com/born-ml/tokenmodels/internal/models/unigram"
	"github.com/born-ml/tokenmodels/internal/models/wordpiece"
	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// HFTokenizerFile is the file name looked up in a Hugging Face model directory.
const HFTokenizerFile = "tokenizer.json"

// HFMetadata summarizes a tokenizer.json.
type HFMetadata struct {
	Kind      Kind
	TypeName  string // model.type as written in the file
	VocabSize int
	HasBOS    bool
	HasEOS    bool
	HasPAD    bool
	HasUNK    bool
}

type hfFile struct {
	Model       hfModel `json:"model"`
	AddedTokens []struct {
		ID      uint32 `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// hfModel is the union of the model sections written by the four types.
type hfModel struct {
	Type                    string          `json:"type"`
	Vocab                   json.RawMessage `json:"vocab"`
	Merges                  []hfMerge       `json:"merges"`
	UnkToken                *string         `json:"unk_token"`
	UnkID                   *int            `json:"unk_id"`
	Dropout                 *float64        `json:"dropout"`
	ContinuingSubwordPrefix *string         `json:"continuing_subword_prefix"`
	EndOfWordSuffix         *string         `json:"end_of_word_suffix"`
	FuseUnk                 *bool           `json:"fuse_unk"`
	MaxInputCharsPerWord    *int            `json:"max_input_chars_per_word"`
}

// hfMerge accepts both merge encodings: "left right" and ["left", "right"].
type hfMerge vocab.Merge

func (m *hfMerge) UnmarshalJSON(data []byte) error {
	var line string
	if err := json.Unmarshal(data, &line); err == nil {
		merge, err := vocab.ParseMerge(line)
		if err != nil {
			return err
		}
		*m = hfMerge(merge)
		return nil
	}

	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("merge must be a string or a pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("merge must have 2 parts, got %d", len(pair))
	}
	*m = hfMerge{Left: pair[0], Right: pair[1]}
	return nil
}

func hfPath(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, HFTokenizerFile)
	}
	return path
}

func readHFFile(path string) (*hfFile, error) {
	//nolint:gosec // Loading tokenizer from user-specified path is intentional.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer.json: %w", tokenizer.WrapIO(err))
	}

	var f hfFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &tokenizer.FormatError{Path: path, Details: err.Error()}
	}
	return &f, nil
}

// DetectHuggingFace reads the model type and special tokens of a
// tokenizer.json, or of the one inside a model directory.
func DetectHuggingFace(path string) (*HFMetadata, error) {
	path = hfPath(path)
	f, err := readHFFile(path)
	if err != nil {
		return nil, err
	}

	md := &HFMetadata{TypeName: f.Model.Type}
	kind, err := ParseKind(f.Model.Type)
	if err != nil {
		return nil, &tokenizer.FormatError{Path: path, Details: fmt.Sprintf("unsupported model type %q", f.Model.Type)}
	}
	md.Kind = kind

	if kind == KindUnigram {
		var pieces []json.RawMessage
		if err := json.Unmarshal(f.Model.Vocab, &pieces); err == nil {
			md.VocabSize = len(pieces)
		}
	} else {
		var tokens map[string]json.RawMessage
		if err := json.Unmarshal(f.Model.Vocab, &tokens); err == nil {
			md.VocabSize = len(tokens)
		}
	}

	for _, tok := range f.AddedTokens {
		switch tok.Content {
		case "<s>", "<bos>", "[CLS]":
			md.HasBOS = true
		case "</s>", "<eos>", "[SEP]":
			md.HasEOS = true
		case "<pad>", "[PAD]":
			md.HasPAD = true
		case "<unk>", "[UNK]":
			md.HasUNK = true
		}
	}

	return md, nil
}

// LoadFromHuggingFace builds a shared model from the model section of a
// tokenizer.json. path may be the file or a directory containing it.
// Normalizers, pre-tokenizers and added tokens are ignored.
func LoadFromHuggingFace(path string) (*Shared, error) {
	path = hfPath(path)
	f, err := readHFFile(path)
	if err != nil {
		return nil, err
	}

	m, err := f.Model.build(path)
	if err != nil {
		return nil, err
	}
	return NewShared(m), nil
}

func (h *hfModel) build(path string) (Model, error) {
	kind, err := ParseKind(h.Type)
	if err != nil {
		return Model{}, &tokenizer.FormatError{Path: path, Details: fmt.Sprintf("unsupported model type %q", h.Type)}
	}
	if len(h.Vocab) == 0 {
		return Model{}, &tokenizer.FormatError{Path: path, Details: "model has no vocab"}
	}

	switch kind {
	case KindBPE:
		tokens, err := h.tokens(path)
		if err != nil {
			return Model{}, err
		}
		merges := make(vocab.Merges, len(h.Merges))
		for i, merge := range h.Merges {
			merges[i] = vocab.Merge(merge)
		}

		cfg := bpe.DefaultConfig()
		BPEOptions{
			Dropout:                 h.Dropout,
			UnkToken:                h.UnkToken,
			ContinuingSubwordPrefix: h.ContinuingSubwordPrefix,
			EndOfWordSuffix:         h.EndOfWordSuffix,
			FuseUnk:                 h.FuseUnk,
		}.apply(&cfg)
		cfg.Vocab = tokens
		cfg.Merges = merges
		m, err := cfg.Build()
		if err != nil {
			return Model{}, err
		}
		return FromBPE(m), nil

	case KindUnigram:
		var pieces []unigram.Piece
		if err := json.Unmarshal(h.Vocab, &pieces); err != nil {
			return Model{}, &tokenizer.FormatError{Path: path, Details: "vocab: " + err.Error()}
		}
		m, err := unigram.Config{Vocab: pieces, UnkID: h.UnkID}.Build()
		if err != nil {
			return Model{}, err
		}
		return FromUnigram(m), nil

	case KindWordLevel:
		tokens, err := h.tokens(path)
		if err != nil {
			return Model{}, err
		}
		m, err := wordLevelConfig(tokens, h.UnkToken).Build()
		if err != nil {
			return Model{}, err
		}
		return FromWordLevel(m), nil

	case KindWordPiece:
		tokens, err := h.tokens(path)
		if err != nil {
			return Model{}, err
		}
		cfg := wordpiece.DefaultConfig()
		WordPieceOptions{
			UnkToken:                h.UnkToken,
			MaxInputCharsPerWord:    h.MaxInputCharsPerWord,
			ContinuingSubwordPrefix: h.ContinuingSubwordPrefix,
		}.apply(&cfg)
		cfg.Vocab = tokens
		m, err := cfg.Build()
		if err != nil {
			return Model{}, err
		}
		return FromWordPiece(m), nil
	}
	return Model{}, fmt.Errorf("%w: model type %s", tokenizer.ErrArgument, kind)
}

func (h *hfModel) tokens(path string) (map[string]uint32, error) {
	var tokens map[string]uint32
	if err := json.Unmarshal(h.Vocab, &tokens); err != nil {
		return nil, &tokenizer.FormatError{Path: path, Details: "vocab: " + err.Error()}
	}
	if _, err := vocab.New(tokens); err != nil {
		return nil, &tokenizer.FormatError{Path: path, Details: "vocab: " + err.Error()}
	}
	return tokens, nil
}
