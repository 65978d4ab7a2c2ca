// Package tokenizer defines the contract shared by every tokenization model.
//
// A model turns a single pre-segmented word into an ordered list of Tokens.
// Four algorithms implement the contract:
//   - BPE: byte-pair encoding driven by an ordered merge table
//   - Unigram: best segmentation under a per-piece log-probability table
//   - WordLevel: whole-word lookup
//   - WordPiece: greedy longest-prefix match with a continuing-subword marker
//
// Errors returned by models are classified with the category sentinels
// ErrArgument, ErrFileFormat, ErrIO, ErrAlgorithm and ErrLockCorruption and
// can be tested with errors.Is.
//
// Example usage:
//
//	cfg := wordpiece.DefaultConfig()
//	cfg.Vocab = map[string]uint32{"un": 0, "##able": 1, "[UNK]": 2}
//	m, err := cfg.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tokens, err := m.Tokenize("unable")
//	if err != nil {
//	    log.Fatal(err)
//	}
package tokenizer
