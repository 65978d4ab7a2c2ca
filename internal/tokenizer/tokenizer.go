package tokenizer

// Offsets is a half-open byte range [Start, End) in the tokenized word.
type Offsets struct {
	Start int
	End   int
}

// Token is one unit produced by Model.Tokenize.
//
// Value is the vocabulary entry for ID. It may differ from the covered input
// bytes when the model inserts positional markers (continuing-subword prefix,
// end-of-word suffix) or substitutes the unknown token; Offsets always point
// at the input bytes the token covers.
type Token struct {
	ID      uint32
	Value   string
	Offsets Offsets
}

// Model is the uniform operation set of every tokenization algorithm.
//
// Implementations are safe for concurrent use as long as callers only invoke
// these methods: none of them mutate model state.
type Model interface {
	// Tokenize splits a single word into tokens.
	Tokenize(sequence string) ([]Token, error)

	// TokenToID returns the id of an exact vocabulary entry.
	TokenToID(token string) (uint32, bool)

	// IDToToken returns the vocabulary entry with the given id.
	IDToToken(id uint32) (string, bool)

	// Vocab returns a copy of the vocabulary.
	Vocab() map[string]uint32

	// VocabSize returns the number of vocabulary entries.
	VocabSize() int

	// Save writes the model files into dir and returns their paths.
	// An empty prefix produces the bare file names.
	Save(dir, prefix string) ([]string, error)
}
