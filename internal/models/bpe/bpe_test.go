package bpe

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Vocab = map[string]uint32{"a": 0, "b": 1, "c": 2, "ab": 3, "abc": 4, "<unk>": 5}
	cfg.Merges = vocab.Merges{{Left: "a", Right: "b"}, {Left: "ab", Right: "c"}}
	return cfg
}

func values(tokens []tokenizer.Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Value
	}
	return out
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "vocab without merges",
			mutate:  func(c *Config) { c.Merges = nil },
			wantErr: ErrVocabWithoutMerges,
		},
		{
			name:    "merges without vocab",
			mutate:  func(c *Config) { c.Vocab = nil },
			wantErr: ErrVocabWithoutMerges,
		},
		{
			name:    "dropout of one",
			mutate:  func(c *Config) { c.Dropout = 1 },
			wantErr: ErrInvalidDropout,
		},
		{
			name:    "negative dropout",
			mutate:  func(c *Config) { c.Dropout = -0.1 },
			wantErr: ErrInvalidDropout,
		},
		{
			name:    "negative cache",
			mutate:  func(c *Config) { c.CacheCapacity = -1 },
			wantErr: ErrInvalidCacheCapacity,
		},
		{
			name: "merge token missing",
			mutate: func(c *Config) {
				c.Merges = append(c.Merges, vocab.Merge{Left: "c", Right: "a"})
			},
			wantErr: ErrMergeTokenOutOfVocab,
		},
		{
			name:    "duplicate id",
			mutate:  func(c *Config) { c.Vocab["d"] = 0 },
			wantErr: vocab.ErrDuplicateID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := cfg.Build()
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, tokenizer.ErrArgument)
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	m, err := DefaultConfig().Build()
	require.NoError(t, err)
	assert.Equal(t, 0, m.VocabSize())
	assert.Empty(t, m.Merges())
	assert.Equal(t, DefaultCacheCapacity, m.CacheCapacity())
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		input   string
		want    []string
		offsets []tokenizer.Offsets
	}{
		{
			name:    "full merge",
			input:   "abc",
			want:    []string{"abc"},
			offsets: []tokenizer.Offsets{{Start: 0, End: 3}},
		},
		{
			name:    "partial merge",
			input:   "abca",
			want:    []string{"abc", "a"},
			offsets: []tokenizer.Offsets{{Start: 0, End: 3}, {Start: 3, End: 4}},
		},
		{
			name:    "unknown dropped without unk token",
			input:   "xab",
			want:    []string{"ab"},
			offsets: []tokenizer.Offsets{{Start: 1, End: 3}},
		},
		{
			name:    "unknown mapped to unk",
			mutate:  func(c *Config) { c.UnkToken = "<unk>" },
			input:   "xxab",
			want:    []string{"<unk>", "<unk>", "ab"},
			offsets: []tokenizer.Offsets{{Start: 0, End: 1}, {Start: 1, End: 2}, {Start: 2, End: 4}},
		},
		{
			name: "unknowns fused",
			mutate: func(c *Config) {
				c.UnkToken = "<unk>"
				c.FuseUnk = true
			},
			input:   "xxabé",
			want:    []string{"<unk>", "ab", "<unk>"},
			offsets: []tokenizer.Offsets{{Start: 0, End: 2}, {Start: 2, End: 4}, {Start: 4, End: 6}},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			m, err := cfg.Build()
			require.NoError(t, err)

			tokens, err := m.Tokenize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, values(tokens))
			if tt.offsets != nil {
				got := make([]tokenizer.Offsets, len(tokens))
				for i, tok := range tokens {
					got[i] = tok.Offsets
				}
				assert.Equal(t, tt.offsets, got)
			}
		})
	}
}

func TestTokenize_MergePriority(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vocab = map[string]uint32{"a": 0, "b": 1, "c": 2, "ab": 3, "bc": 4}
	cfg.Merges = vocab.Merges{{Left: "b", Right: "c"}, {Left: "a", Right: "b"}}
	m, err := cfg.Build()
	require.NoError(t, err)

	tokens, err := m.Tokenize("abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bc"}, values(tokens))
	assert.Equal(t, uint32(4), tokens[1].ID)
}

func TestTokenize_RepeatedMergeTakesLastRank(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vocab = map[string]uint32{"a": 0, "b": 1, "c": 2, "ab": 3, "bc": 4}
	cfg.Merges = vocab.Merges{{Left: "b", Right: "c"}, {Left: "a", Right: "b"}, {Left: "b", Right: "c"}}
	m, err := cfg.Build()
	require.NoError(t, err)

	tokens, err := m.Tokenize("abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "c"}, values(tokens))
	assert.Equal(t, cfg.Merges, m.Merges(), "the merge table keeps every entry")
}

func TestTokenize_PrefixAndSuffix(t *testing.T) {
	t.Run("continuing subword prefix", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Vocab = map[string]uint32{"a": 0, "##b": 1, "ab": 2}
		cfg.Merges = vocab.Merges{{Left: "a", Right: "##b"}}
		cfg.ContinuingSubwordPrefix = "##"
		m, err := cfg.Build()
		require.NoError(t, err)

		tokens, err := m.Tokenize("ab")
		require.NoError(t, err)
		assert.Equal(t, []string{"ab"}, values(tokens))
	})

	t.Run("end of word suffix", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Vocab = map[string]uint32{"a": 0, "b</w>": 1, "ab</w>": 2}
		cfg.Merges = vocab.Merges{{Left: "a", Right: "b</w>"}}
		cfg.EndOfWordSuffix = "</w>"
		m, err := cfg.Build()
		require.NoError(t, err)

		tokens, err := m.Tokenize("ab")
		require.NoError(t, err)
		assert.Equal(t, []string{"ab</w>"}, values(tokens))
	})
}

func TestTokenize_UnkTokenOutOfVocabulary(t *testing.T) {
	cfg := testConfig()
	cfg.UnkToken = "[UNK]"
	m, err := cfg.Build()
	require.NoError(t, err)

	_, err = m.Tokenize("z")
	require.ErrorIs(t, err, ErrUnkTokenOutOfVocabulary)
	assert.ErrorIs(t, err, tokenizer.ErrAlgorithm)
}

func TestTokenize_Dropout(t *testing.T) {
	cfg := testConfig()
	cfg.Dropout = 0.5
	m, err := cfg.Build()
	require.NoError(t, err)

	for range 50 {
		tokens, commit, err := m.TokenizeDeferred("abcab")
		require.NoError(t, err)
		assert.Nil(t, commit)
		assert.Equal(t, "abcab", strings.Join(values(tokens), ""))
	}
	assert.Equal(t, 0, m.CachedWords())
}

func TestCache(t *testing.T) {
	m, err := testConfig().Build()
	require.NoError(t, err)

	_, err = m.Tokenize("abc")
	require.NoError(t, err)
	assert.Equal(t, 0, m.CachedWords(), "plain Tokenize must not fill the cache")

	first, commit, err := m.TokenizeDeferred("abc")
	require.NoError(t, err)
	require.NotNil(t, commit)
	commit()
	assert.Equal(t, 1, m.CachedWords())

	second, commit, err := m.TokenizeDeferred("abc")
	require.NoError(t, err)
	assert.Nil(t, commit, "cache hit has nothing to commit")
	assert.Equal(t, first, second)

	m.ClearCache()
	assert.Equal(t, 0, m.CachedWords())

	require.NoError(t, m.ResizeCache(0))
	_, commit, err = m.TokenizeDeferred("abc")
	require.NoError(t, err)
	assert.Nil(t, commit)
	assert.Equal(t, 0, m.CacheCapacity())

	require.NoError(t, m.ResizeCache(1))
	for _, w := range []string{"ab", "abc"} {
		_, commit, err = m.TokenizeDeferred(w)
		require.NoError(t, err)
		commit()
	}
	assert.Equal(t, 1, m.CachedWords())

	assert.ErrorIs(t, m.ResizeCache(-1), ErrInvalidCacheCapacity)
}

func TestSaveAndFromFile(t *testing.T) {
	cfg := testConfig()
	cfg.UnkToken = "<unk>"
	m, err := cfg.Build()
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := m.Save(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "vocab.json"), filepath.Join(dir, "merges.txt")}, paths)

	prefixed, err := m.Save(dir, "tiny")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "tiny-vocab.json"), filepath.Join(dir, "tiny-merges.txt")}, prefixed)

	opts := DefaultConfig()
	opts.UnkToken = "<unk>"
	loaded, err := FromFile(paths[0], paths[1], opts)
	require.NoError(t, err)
	assert.Equal(t, m.Vocab(), loaded.Vocab())
	assert.Equal(t, m.Merges(), loaded.Merges())
	assert.Equal(t, "<unk>", loaded.UnkToken())

	tokens, err := loaded.Tokenize("abcz")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "<unk>"}, values(tokens))
}

func TestFromFile_Missing(t *testing.T) {
	dir := t.TempDir()
	_, err := FromFile(filepath.Join(dir, "vocab.json"), filepath.Join(dir, "merges.txt"), DefaultConfig())
	assert.ErrorIs(t, err, tokenizer.ErrIO)
}

func TestConfig_RoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.Dropout = 0.25
	cfg.FuseUnk = true
	cfg.UnkToken = "<unk>"
	m, err := cfg.Build()
	require.NoError(t, err)

	again, err := m.Config().Build()
	require.NoError(t, err)
	assert.Equal(t, m.Config(), again.Config())
}
