// Package bpe implements the byte-pair-encoding model.
//
// A word is first split into characters (with the continuing-subword prefix
// on every character but the first and the end-of-word suffix on the last),
// then adjacent symbols are merged following the priority-ordered merge
// table until no rule applies.
package bpe

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// Construction and tokenization errors.
var (
	ErrVocabWithoutMerges      = fmt.Errorf("%w: vocab and merges must be both specified", tokenizer.ErrArgument)
	ErrInvalidDropout          = fmt.Errorf("%w: dropout must be in [0, 1)", tokenizer.ErrArgument)
	ErrInvalidCacheCapacity    = fmt.Errorf("%w: cache capacity must not be negative", tokenizer.ErrArgument)
	ErrMergeTokenOutOfVocab    = fmt.Errorf("%w: merge token out of vocabulary", tokenizer.ErrArgument)
	ErrUnkTokenOutOfVocabulary = fmt.Errorf("%w: unk token out of vocabulary", tokenizer.ErrAlgorithm)
)

// Config holds every BPE option. Start from DefaultConfig.
type Config struct {
	// Vocab and Merges must be both nil (empty model) or both non-nil.
	Vocab  map[string]uint32
	Merges vocab.Merges

	// CacheCapacity is the number of merged words kept; 0 disables the cache.
	CacheCapacity int

	// Dropout is the probability in [0, 1) of skipping a merge. 0 disables it.
	Dropout float64

	// UnkToken replaces characters missing from the vocabulary. When empty,
	// such characters are dropped.
	UnkToken string

	// ContinuingSubwordPrefix is prepended to every non-initial character.
	ContinuingSubwordPrefix string

	// EndOfWordSuffix is appended to the last character of a word.
	EndOfWordSuffix string

	// FuseUnk collapses consecutive unknown characters into one unk token.
	FuseUnk bool
}

// DefaultConfig returns the default BPE options with no vocabulary.
func DefaultConfig() Config {
	return Config{
		CacheCapacity: DefaultCacheCapacity,
	}
}

// BPE is a byte-pair-encoding model. Build one with Config.Build.
type BPE struct {
	vocab      *vocab.Table
	merges     map[pairKey]rule
	mergeOrder vocab.Merges

	cache         *cache
	cacheCapacity int

	dropout                 float64
	unkToken                string
	continuingSubwordPrefix string
	endOfWordSuffix         string
	fuseUnk                 bool
}

var _ tokenizer.Model = (*BPE)(nil)

// Build validates the configuration and returns a ready model.
func (c Config) Build() (*BPE, error) {
	if (c.Vocab == nil) != (c.Merges == nil) {
		return nil, ErrVocabWithoutMerges
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDropout, c.Dropout)
	}
	if c.CacheCapacity < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCacheCapacity, c.CacheCapacity)
	}

	table := vocab.Empty()
	if c.Vocab != nil {
		var err error
		if table, err = vocab.New(c.Vocab); err != nil {
			return nil, err
		}
	}

	merges := make(map[pairKey]rule, len(c.Merges))
	prefixLen := len(c.ContinuingSubwordPrefix)
	for rank, m := range c.Merges {
		left, ok := table.ID(m.Left)
		if !ok {
			return nil, fmt.Errorf("%w: %q (merge %d)", ErrMergeTokenOutOfVocab, m.Left, rank+1)
		}
		right, ok := table.ID(m.Right)
		if !ok {
			return nil, fmt.Errorf("%w: %q (merge %d)", ErrMergeTokenOutOfVocab, m.Right, rank+1)
		}

		rightPart := m.Right
		if prefixLen > 0 && strings.HasPrefix(rightPart, c.ContinuingSubwordPrefix) {
			rightPart = rightPart[prefixLen:]
		}
		merged := m.Left + rightPart
		newID, ok := table.ID(merged)
		if !ok {
			return nil, fmt.Errorf("%w: %q (merge %d)", ErrMergeTokenOutOfVocab, merged, rank+1)
		}

		// A repeated pair takes the rank of its last occurrence.
		merges[pairKey{left, right}] = rule{rank: rank, newID: newID}
	}

	return &BPE{
		vocab:                   table,
		merges:                  merges,
		mergeOrder:              append(vocab.Merges{}, c.Merges...),
		cache:                   newCache(c.CacheCapacity),
		cacheCapacity:           c.CacheCapacity,
		dropout:                 c.Dropout,
		unkToken:                c.UnkToken,
		continuingSubwordPrefix: c.ContinuingSubwordPrefix,
		endOfWordSuffix:         c.EndOfWordSuffix,
		fuseUnk:                 c.FuseUnk,
	}, nil
}

// Config returns the options the model was built with, vocabulary included.
func (m *BPE) Config() Config {
	return Config{
		Vocab:                   m.vocab.Map(),
		Merges:                  m.Merges(),
		CacheCapacity:           m.cacheCapacity,
		Dropout:                 m.dropout,
		UnkToken:                m.unkToken,
		ContinuingSubwordPrefix: m.continuingSubwordPrefix,
		EndOfWordSuffix:         m.endOfWordSuffix,
		FuseUnk:                 m.fuseUnk,
	}
}

// UnkToken returns the unknown token, or "" when none is configured.
func (m *BPE) UnkToken() string { return m.unkToken }

// ContinuingSubwordPrefix returns the marker for non-initial pieces.
func (m *BPE) ContinuingSubwordPrefix() string { return m.continuingSubwordPrefix }

// EndOfWordSuffix returns the marker for the final piece.
func (m *BPE) EndOfWordSuffix() string { return m.endOfWordSuffix }

// Dropout returns the merge dropout probability.
func (m *BPE) Dropout() float64 { return m.dropout }

// FuseUnk reports whether consecutive unknowns are fused.
func (m *BPE) FuseUnk() bool { return m.fuseUnk }

// CacheCapacity returns the configured cache capacity.
func (m *BPE) CacheCapacity() int { return m.cacheCapacity }

// Merges returns a copy of the merge table in priority order.
func (m *BPE) Merges() vocab.Merges {
	return append(vocab.Merges{}, m.mergeOrder...)
}

// TokenToID implements tokenizer.Model.
func (m *BPE) TokenToID(token string) (uint32, bool) { return m.vocab.ID(token) }

// IDToToken implements tokenizer.Model.
func (m *BPE) IDToToken(id uint32) (string, bool) { return m.vocab.Token(id) }

// Vocab implements tokenizer.Model.
func (m *BPE) Vocab() map[string]uint32 { return m.vocab.Map() }

// VocabSize implements tokenizer.Model.
func (m *BPE) VocabSize() int { return m.vocab.Len() }

// Tokenize implements tokenizer.Model. It reads the merge cache but never
// fills it, so it is safe for concurrent use.
func (m *BPE) Tokenize(sequence string) ([]tokenizer.Token, error) {
	tokens, _, err := m.TokenizeDeferred(sequence)
	return tokens, err
}

// TokenizeDeferred tokenizes like Tokenize and additionally returns a commit
// function that stores the merged word in the cache. commit is nil when there
// is nothing to store. The caller must hold exclusive access to the model
// while running commit.
func (m *BPE) TokenizeDeferred(sequence string) ([]tokenizer.Token, func(), error) {
	if sequence == "" {
		return []tokenizer.Token{}, nil, nil
	}

	useCache := m.dropout == 0 && m.cache != nil
	if useCache {
		if w, ok := m.cache.peek(sequence); ok {
			return w.tokens(m.vocab.Token), nil, nil
		}
	}

	w, err := m.mergeWord(sequence)
	if err != nil {
		return nil, nil, err
	}
	tokens := w.tokens(m.vocab.Token)

	if !useCache {
		return tokens, nil, nil
	}
	commit := func() {
		m.cache.add(sequence, w)
	}
	return tokens, commit, nil
}

// ClearCache drops every cached word. Requires exclusive access.
func (m *BPE) ClearCache() {
	m.cache.purge()
}

// ResizeCache changes the cache capacity, 0 disabling it. Requires exclusive
// access.
func (m *BPE) ResizeCache(capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCacheCapacity, capacity)
	}
	m.cacheCapacity = capacity
	switch {
	case capacity == 0:
		m.cache = nil
	case m.cache == nil:
		m.cache = newCache(capacity)
	default:
		m.cache.lru.Resize(capacity)
	}
	return nil
}

// CachedWords returns the number of words currently cached.
func (m *BPE) CachedWords() int {
	return m.cache.len()
}

// mergeWord splits sequence into initial symbols and applies the merges.
func (m *BPE) mergeWord(sequence string) (word, error) {
	w := word{symbols: make([]symbol, 0, len(sequence))}

	type pendingUnk struct {
		id         uint32
		start, end int
	}
	var unk *pendingUnk
	flushUnk := func() {
		if unk != nil {
			w.add(unk.id, unk.start, unk.end)
			unk = nil
		}
	}

	for start := 0; start < len(sequence); {
		_, size := utf8.DecodeRuneInString(sequence[start:])
		end := start + size

		s := sequence[start:end]
		if start > 0 && m.continuingSubwordPrefix != "" {
			s = m.continuingSubwordPrefix + s
		}
		if end == len(sequence) && m.endOfWordSuffix != "" {
			s += m.endOfWordSuffix
		}

		switch id, ok := m.vocab.ID(s); {
		case ok:
			flushUnk()
			w.add(id, start, end)
		case m.unkToken != "":
			if m.fuseUnk && unk != nil {
				unk.end = end
				break
			}
			flushUnk()
			unkID, ok := m.vocab.ID(m.unkToken)
			if !ok {
				return word{}, fmt.Errorf("%w: %q", ErrUnkTokenOutOfVocabulary, m.unkToken)
			}
			unk = &pendingUnk{id: unkID, start: start, end: end}
		}

		start = end
	}
	flushUnk()

	w.mergeAll(m.merges, m.dropout)
	return w, nil
}
