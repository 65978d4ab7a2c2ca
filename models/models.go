// Package models provides pluggable tokenization models: BPE, Unigram,
// WordLevel and WordPiece behind one uniform operation set.
//
// This package wraps the internal implementations and provides a clean
// public API. Every constructor returns a *Shared handle that is safe for
// concurrent use.
//
// Example usage:
//
//	import "github.com/born-ml/tokenmodels/models"
//
//	// Build a BPE model in memory
//	m, err := models.NewBPE(
//	    map[string]uint32{"a": 0, "b": 1, "ab": 2},
//	    models.Merges{{Left: "a", Right: "b"}},
//	    map[string]any{"cache_capacity": 1000},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Tokenize a pre-segmented word
//	tokens, err := m.Tokenize("abab")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Save vocab.json and merges.txt
//	paths, err := m.Save("out", "")
package models

import (
	"github.com/born-ml/tokenmodels/internal/models"
	"github.com/born-ml/tokenmodels/internal/models/unigram"
	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// Shared is a model handle safe for concurrent use.
type Shared = models.Shared

// Model holds exactly one tokenization algorithm.
type Model = models.Model

// Trainer holds exactly one per-algorithm trainer.
type Trainer = models.Trainer

// Kind identifies the algorithm held by a Model.
type Kind = models.Kind

// Model kinds.
const (
	KindBPE       = models.KindBPE
	KindUnigram   = models.KindUnigram
	KindWordLevel = models.KindWordLevel
	KindWordPiece = models.KindWordPiece
)

// Token is one unit produced by tokenization.
type Token = tokenizer.Token

// Offsets is a half-open byte range in the tokenized word.
type Offsets = tokenizer.Offsets

// Merge is one BPE merge rule.
type Merge = vocab.Merge

// Merges is a priority-ordered merge table.
type Merges = vocab.Merges

// Piece is a Unigram vocabulary entry with its log-probability.
type Piece = unigram.Piece

// HFMetadata summarizes a tokenizer.json.
type HFMetadata = models.HFMetadata

// FormatError describes a malformed model file.
type FormatError = tokenizer.FormatError

// Error categories. Use errors.Is to classify a returned error.
var (
	ErrArgument       = tokenizer.ErrArgument
	ErrFileFormat     = tokenizer.ErrFileFormat
	ErrIO             = tokenizer.ErrIO
	ErrAlgorithm      = tokenizer.ErrAlgorithm
	ErrLockCorruption = tokenizer.ErrLockCorruption
	ErrUnknownOption  = models.ErrUnknownOption

	ErrNotBPE          = models.ErrNotBPE
	ErrTrainerMismatch = models.ErrTrainerMismatch
	ErrInvalidModel    = models.ErrInvalidModel
)

// ParseKind maps a model type name ("BPE", "Unigram", ...) to its Kind.
func ParseKind(name string) (Kind, error) {
	return models.ParseKind(name)
}

// NewTrainer returns a trainer with default settings for kind.
func NewTrainer(kind Kind) (Trainer, error) {
	return models.NewTrainer(kind)
}

// NewBPE builds a BPE model.
//
// Options: cache_capacity, dropout, unk_token, continuing_subword_prefix,
// end_of_word_suffix, fuse_unk.
func NewBPE(vocab map[string]uint32, merges Merges, opts map[string]any) (*Shared, error) {
	return models.NewBPE(vocab, merges, opts)
}

// BPEFromFile builds a BPE model from a vocab.json and a merges.txt.
func BPEFromFile(vocabPath, mergesPath string, opts map[string]any) (*Shared, error) {
	return models.BPEFromFile(vocabPath, mergesPath, opts)
}

// BPEReadFile parses a vocab.json and a merges.txt.
func BPEReadFile(vocabPath, mergesPath string) (map[string]uint32, Merges, error) {
	return models.BPEReadFile(vocabPath, mergesPath)
}

// BPEFromTiktoken builds a byte-level BPE model from an OpenAI .tiktoken file.
func BPEFromTiktoken(path string, opts map[string]any) (*Shared, error) {
	return models.BPEFromTiktoken(path, opts)
}

// NewUnigram builds a Unigram model.
func NewUnigram(vocab []Piece, unkID *int) (*Shared, error) {
	return models.NewUnigram(vocab, unkID)
}

// UnigramFromFile builds a Unigram model from a unigram.json.
func UnigramFromFile(path string) (*Shared, error) {
	return models.UnigramFromFile(path)
}

// NewWordLevel builds a WordLevel model. A nil unkToken means "<unk>".
func NewWordLevel(vocab map[string]uint32, unkToken *string) (*Shared, error) {
	return models.NewWordLevel(vocab, unkToken)
}

// WordLevelFromFile builds a WordLevel model from a vocabulary file.
func WordLevelFromFile(path string, unkToken *string) (*Shared, error) {
	return models.WordLevelFromFile(path, unkToken)
}

// WordLevelReadFile parses a vocabulary file.
func WordLevelReadFile(path string) (map[string]uint32, error) {
	return models.WordLevelReadFile(path)
}

// NewWordPiece builds a WordPiece model.
//
// Options: unk_token, max_input_chars_per_word, continuing_subword_prefix.
func NewWordPiece(vocab map[string]uint32, opts map[string]any) (*Shared, error) {
	return models.NewWordPiece(vocab, opts)
}

// WordPieceFromFile builds a WordPiece model from a vocab.txt.
func WordPieceFromFile(path string, opts map[string]any) (*Shared, error) {
	return models.WordPieceFromFile(path, opts)
}

// LoadFromHuggingFace builds a model from a tokenizer.json or a directory
// containing one.
func LoadFromHuggingFace(path string) (*Shared, error) {
	return models.LoadFromHuggingFace(path)
}

// DetectHuggingFace reads the model type of a tokenizer.json.
func DetectHuggingFace(path string) (*HFMetadata, error) {
	return models.DetectHuggingFace(path)
}

// LoadFromGGUF builds a model from the tokenizer metadata of a GGUF file.
func LoadFromGGUF(path string) (*Shared, error) {
	return models.LoadFromGGUF(path)
}
