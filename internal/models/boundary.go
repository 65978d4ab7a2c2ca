package models

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/born-ml/tokenmodels/internal/models/bpe"
	"github.com/born-ml/tokenmodels/internal/models/unigram"
	"github.com/born-ml/tokenmodels/internal/models/wordlevel"
	"github.com/born-ml/tokenmodels/internal/models/wordpiece"
	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// ErrUnknownOption reports an option name no builder recognizes.
var ErrUnknownOption = fmt.Errorf("%w: unknown option", tokenizer.ErrArgument)

// BPEOptions are the optional BPE settings accepted by NewBPE, BPEFromFile
// and BPEFromTiktoken. Absent (nil) fields keep the defaults.
type BPEOptions struct {
	CacheCapacity           *int     `mapstructure:"cache_capacity"`
	Dropout                 *float64 `mapstructure:"dropout"`
	UnkToken                *string  `mapstructure:"unk_token"`
	ContinuingSubwordPrefix *string  `mapstructure:"continuing_subword_prefix"`
	EndOfWordSuffix         *string  `mapstructure:"end_of_word_suffix"`
	FuseUnk                 *bool    `mapstructure:"fuse_unk"`
}

func (o BPEOptions) apply(cfg *bpe.Config) {
	if o.CacheCapacity != nil {
		cfg.CacheCapacity = *o.CacheCapacity
	}
	if o.Dropout != nil {
		cfg.Dropout = *o.Dropout
	}
	if o.UnkToken != nil {
		cfg.UnkToken = *o.UnkToken
	}
	if o.ContinuingSubwordPrefix != nil {
		cfg.ContinuingSubwordPrefix = *o.ContinuingSubwordPrefix
	}
	if o.EndOfWordSuffix != nil {
		cfg.EndOfWordSuffix = *o.EndOfWordSuffix
	}
	if o.FuseUnk != nil {
		cfg.FuseUnk = *o.FuseUnk
	}
}

// WordPieceOptions are the optional WordPiece settings accepted by
// NewWordPiece and WordPieceFromFile.
type WordPieceOptions struct {
	UnkToken                *string `mapstructure:"unk_token"`
	MaxInputCharsPerWord    *int    `mapstructure:"max_input_chars_per_word"`
	ContinuingSubwordPrefix *string `mapstructure:"continuing_subword_prefix"`
}

func (o WordPieceOptions) apply(cfg *wordpiece.Config) {
	if o.UnkToken != nil {
		cfg.UnkToken = *o.UnkToken
	}
	if o.MaxInputCharsPerWord != nil {
		cfg.MaxInputCharsPerWord = *o.MaxInputCharsPerWord
	}
	if o.ContinuingSubwordPrefix != nil {
		cfg.ContinuingSubwordPrefix = *o.ContinuingSubwordPrefix
	}
}

// decodeOptions fills out from a keyword map. Every key must name a field
// of out; values of the wrong type are rejected.
func decodeOptions(opts map[string]any, out any) error {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: &md,
		Result:   out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(opts); err != nil {
		return fmt.Errorf("%w: %s", tokenizer.ErrArgument, err)
	}
	if len(md.Unused) > 0 {
		slices.Sort(md.Unused)
		return fmt.Errorf("%w: %s", ErrUnknownOption, strings.Join(md.Unused, ", "))
	}
	return nil
}

func bpeConfig(opts map[string]any) (bpe.Config, error) {
	var o BPEOptions
	if err := decodeOptions(opts, &o); err != nil {
		return bpe.Config{}, err
	}
	cfg := bpe.DefaultConfig()
	o.apply(&cfg)
	return cfg, nil
}

func wordPieceConfig(opts map[string]any) (wordpiece.Config, error) {
	var o WordPieceOptions
	if err := decodeOptions(opts, &o); err != nil {
		return wordpiece.Config{}, err
	}
	cfg := wordpiece.DefaultConfig()
	o.apply(&cfg)
	return cfg, nil
}

// NewBPE builds a shared BPE model. vocab and merges must be both nil or
// both non-nil.
func NewBPE(tokens map[string]uint32, merges vocab.Merges, opts map[string]any) (*Shared, error) {
	cfg, err := bpeConfig(opts)
	if err != nil {
		return nil, err
	}
	cfg.Vocab = tokens
	cfg.Merges = merges
	m, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewShared(FromBPE(m)), nil
}

// BPEFromFile builds a shared BPE model from a vocab.json and a merges.txt.
func BPEFromFile(vocabPath, mergesPath string, opts map[string]any) (*Shared, error) {
	cfg, err := bpeConfig(opts)
	if err != nil {
		return nil, err
	}
	m, err := bpe.FromFile(vocabPath, mergesPath, cfg)
	if err != nil {
		return nil, err
	}
	return NewShared(FromBPE(m)), nil
}

// BPEReadFile parses a vocab.json and a merges.txt without building a model.
func BPEReadFile(vocabPath, mergesPath string) (map[string]uint32, vocab.Merges, error) {
	return bpe.ReadFile(vocabPath, mergesPath)
}

// BPEFromTiktoken builds a shared byte-level BPE model from a .tiktoken
// rank file.
func BPEFromTiktoken(path string, opts map[string]any) (*Shared, error) {
	cfg, err := bpeConfig(opts)
	if err != nil {
		return nil, err
	}
	m, err := bpe.FromTiktoken(path, cfg)
	if err != nil {
		return nil, err
	}
	return NewShared(FromBPE(m)), nil
}

// NewUnigram builds a shared Unigram model. With both arguments nil the
// model holds the single piece "<unk>".
func NewUnigram(pieces []unigram.Piece, unkID *int) (*Shared, error) {
	m, err := unigram.Config{Vocab: pieces, UnkID: unkID}.Build()
	if err != nil {
		return nil, err
	}
	return NewShared(FromUnigram(m)), nil
}

// UnigramFromFile builds a shared Unigram model from a unigram.json.
func UnigramFromFile(path string) (*Shared, error) {
	m, err := unigram.FromFile(path)
	if err != nil {
		return nil, err
	}
	return NewShared(FromUnigram(m)), nil
}

func wordLevelConfig(tokens map[string]uint32, unkToken *string) wordlevel.Config {
	cfg := wordlevel.DefaultConfig()
	cfg.Vocab = tokens
	if unkToken != nil {
		cfg.UnkToken = *unkToken
	}
	return cfg
}

// NewWordLevel builds a shared WordLevel model. A nil unkToken keeps the
// default "<unk>".
func NewWordLevel(tokens map[string]uint32, unkToken *string) (*Shared, error) {
	m, err := wordLevelConfig(tokens, unkToken).Build()
	if err != nil {
		return nil, err
	}
	return NewShared(FromWordLevel(m)), nil
}

// WordLevelFromFile builds a shared WordLevel model from a vocabulary file.
func WordLevelFromFile(path string, unkToken *string) (*Shared, error) {
	m, err := wordlevel.FromFile(path, wordLevelConfig(nil, unkToken))
	if err != nil {
		return nil, err
	}
	return NewShared(FromWordLevel(m)), nil
}

// WordLevelReadFile parses a vocabulary file without building a model.
func WordLevelReadFile(path string) (map[string]uint32, error) {
	return wordlevel.ReadFile(path)
}

// NewWordPiece builds a shared WordPiece model.
func NewWordPiece(tokens map[string]uint32, opts map[string]any) (*Shared, error) {
	cfg, err := wordPieceConfig(opts)
	if err != nil {
		return nil, err
	}
	cfg.Vocab = tokens
	m, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewShared(FromWordPiece(m)), nil
}

// WordPieceFromFile builds a shared WordPiece model from a vocab.txt.
func WordPieceFromFile(path string, opts map[string]any) (*Shared, error) {
	cfg, err := wordPieceConfig(opts)
	if err != nil {
		return nil, err
	}
	m, err := wordpiece.FromFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return NewShared(FromWordPiece(m)), nil
}
