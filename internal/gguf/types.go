// Package gguf reads the metadata section of GGUF files, the format used by
// llama.cpp, to recover the tokenizer vocabulary a model was shipped with.
//
// Only the header and the key-value metadata are decoded; tensor infos and
// tensor data are never read.
//
// Specification: https://github.com/ggerganov/ggml/blob/master/docs/gguf.md
package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic bytes for GGUF format.
const (
	MagicGGUFLE uint32 = 0x46554747 // "GGUF" little-endian.
	MagicGGUFBE uint32 = 0x47475546 // "GGUF" big-endian (reversed).
)

// Version constants.
const (
	Version1 uint32 = 1
	Version2 uint32 = 2
	Version3 uint32 = 3 // Current version.
)

// Sanity limits.
const (
	maxStringLen   = 1 << 20
	maxArrayLen    = 100_000_000
	maxArrayAlloc  = 1 << 16 // elements preallocated before any is read
	maxMetadataKVs = 1 << 20
)

// ValueType represents the type of a metadata value.
type ValueType uint32

// Metadata value types of the GGUF format.
const (
	ValueTypeUint8   ValueType = 0
	ValueTypeInt8    ValueType = 1
	ValueTypeUint16  ValueType = 2
	ValueTypeInt16   ValueType = 3
	ValueTypeUint32  ValueType = 4
	ValueTypeInt32   ValueType = 5
	ValueTypeFloat32 ValueType = 6
	ValueTypeBool    ValueType = 7
	ValueTypeString  ValueType = 8
	ValueTypeArray   ValueType = 9
	ValueTypeUint64  ValueType = 10
	ValueTypeInt64   ValueType = 11
	ValueTypeFloat64 ValueType = 12
)

var valueTypeNames = map[ValueType]string{
	ValueTypeUint8:   "uint8",
	ValueTypeInt8:    "int8",
	ValueTypeUint16:  "uint16",
	ValueTypeInt16:   "int16",
	ValueTypeUint32:  "uint32",
	ValueTypeInt32:   "int32",
	ValueTypeFloat32: "float32",
	ValueTypeBool:    "bool",
	ValueTypeString:  "string",
	ValueTypeArray:   "array",
	ValueTypeUint64:  "uint64",
	ValueTypeInt64:   "int64",
	ValueTypeFloat64: "float64",
}

// String returns the string representation of the value type.
func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", t)
}

// Metadata keys describing the tokenizer.
const (
	KeyArchitecture   = "general.architecture"
	KeyName           = "general.name"
	KeyTokenizerModel = "tokenizer.ggml.model"
	KeyTokens         = "tokenizer.ggml.tokens"
	KeyScores         = "tokenizer.ggml.scores"
	KeyTokenTypes     = "tokenizer.ggml.token_type"
	KeyMerges         = "tokenizer.ggml.merges"
	KeyUnknownTokenID = "tokenizer.ggml.unknown_token_id"
	KeyBOSTokenID     = "tokenizer.ggml.bos_token_id"
	KeyEOSTokenID     = "tokenizer.ggml.eos_token_id"
	KeyPaddingTokenID = "tokenizer.ggml.padding_token_id"
)

// Header represents the GGUF file header.
type Header struct {
	Magic           uint32
	Version         uint32
	TensorCount     uint64
	MetadataKVCount uint64
}

// File is the decoded metadata of a GGUF file.
type File struct {
	Header   Header
	Metadata map[string]any

	// Source path, empty when parsed from a reader.
	FilePath string
}

// Architecture returns the model architecture (e.g., "llama", "gpt2").
func (f *File) Architecture() string { return f.String(KeyArchitecture) }

// Name returns the model name.
func (f *File) Name() string { return f.String(KeyName) }

// TokenizerModel returns the tokenizer family ("gpt2", "llama", "bert", ...).
func (f *File) TokenizerModel() string { return f.String(KeyTokenizerModel) }

// Tokens returns the vocabulary in id order.
func (f *File) Tokens() []string {
	tokens, _ := f.Metadata[KeyTokens].([]string)
	return tokens
}

// Scores returns the per-token scores, if present.
func (f *File) Scores() []float32 {
	scores, _ := f.Metadata[KeyScores].([]float32)
	return scores
}

// TokenTypes returns the per-token types, if present.
func (f *File) TokenTypes() []int32 {
	types, _ := f.Metadata[KeyTokenTypes].([]int32)
	return types
}

// Merges returns the BPE merges as "left right" strings, if present.
func (f *File) Merges() []string {
	merges, _ := f.Metadata[KeyMerges].([]string)
	return merges
}

// VocabSize returns the vocabulary size.
func (f *File) VocabSize() int { return len(f.Tokens()) }

// String returns a string metadata value, or "" when absent.
func (f *File) String(key string) string {
	s, _ := f.Metadata[key].(string)
	return s
}

// Uint returns an unsigned integer metadata value of any width. Negative
// signed values are reported as absent.
func (f *File) Uint(key string) (uint64, bool) {
	switch v := f.Metadata[key].(type) {
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case int8:
		return uint64(v), v >= 0
	case int16:
		return uint64(v), v >= 0
	case int32:
		return uint64(v), v >= 0
	case int64:
		return uint64(v), v >= 0
	}
	return 0, false
}

// readString reads a GGUF string (length-prefixed, NOT null-terminated).
func readString(r io.Reader, order binary.ByteOrder) (string, error) {
	var length uint64
	if err := binary.Read(r, order, &length); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}

	if length > maxStringLen {
		return "", fmt.Errorf("string too long: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", fmt.Errorf("read string data: %w", err)
	}

	return string(data), nil
}
