// Package vocab holds the vocabulary and merge tables shared by the models
// and the codecs for their on-disk forms.
//
// Three file formats are supported:
//
//	JSON object   {"token": id, ...}  written in id order (BPE, sparse vocabularies)
//	line list     one token per line, line number = id (WordLevel, WordPiece)
//	merges        "#version: 0.2" header, then "left right" per line in priority order
//
// Reading the in-memory and the on-disk form of the same logical content
// yields identical tables.
package vocab
