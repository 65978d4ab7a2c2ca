// Package models ties the four tokenization algorithms together.
//
// Model is a closed tagged union over bpe.BPE, unigram.Unigram,
// wordlevel.WordLevel and wordpiece.WordPiece with one dispatch per uniform
// operation. Shared wraps a Model for concurrent use: lookups and
// tokenization run under a read lock, while BPE cache writes, replacement
// and retraining take the write lock.
//
// The constructors in boundary.go accept options as keyword maps, the way a
// scripting host passes them, and reject unknown names. LoadFromHuggingFace
// and LoadFromGGUF import the model section of tokenizer.json files and the
// vocabulary of GGUF files.
package models
