package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

func cachedWords(t *testing.T, s *Shared) int {
	t.Helper()
	var n int
	require.NoError(t, s.View(func(m Model) error {
		b, ok := m.BPE()
		require.True(t, ok)
		n = b.CachedWords()
		return nil
	}))
	return n
}

func TestShared_ConcurrentReaders(t *testing.T) {
	for _, build := range []func(*testing.T) Model{testBPE, testUnigram, testWordLevel, testWordPiece} {
		m := build(t)
		t.Run(m.Kind().String(), func(t *testing.T) {
			s := NewShared(m)
			want, err := m.Tokenize("abc")
			require.NoError(t, err)
			size := m.VocabSize()

			var g errgroup.Group
			for range 16 {
				g.Go(func() error {
					for range 50 {
						got, err := s.Tokenize("abc")
						if err != nil {
							return err
						}
						if len(got) != len(want) || got[0] != want[0] {
							return fmt.Errorf("got %v, want %v", got, want)
						}
						n, err := s.VocabSize()
						if err != nil {
							return err
						}
						if n != size {
							return fmt.Errorf("vocab size %d, want %d", n, size)
						}
						if _, _, err := s.TokenToID("ab"); err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())
		})
	}
}

func TestShared_TokenizeFillsCache(t *testing.T) {
	s := NewShared(testBPE(t))
	assert.Equal(t, 0, cachedWords(t, s))

	tokens, err := s.Tokenize("abcab")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "ab"}, values(tokens))
	assert.Equal(t, 1, cachedWords(t, s))

	again, err := s.Tokenize("abcab")
	require.NoError(t, err)
	assert.Equal(t, tokens, again)
	assert.Equal(t, 1, cachedWords(t, s))

	require.NoError(t, s.ClearCache())
	assert.Equal(t, 0, cachedWords(t, s))

	require.NoError(t, s.ResizeCache(0))
	_, err = s.Tokenize("abcab")
	require.NoError(t, err)
	assert.Equal(t, 0, cachedWords(t, s))
}

func TestShared_NonBPECacheOperations(t *testing.T) {
	s := NewShared(testWordLevel(t))
	assert.NoError(t, s.ClearCache())
	assert.ErrorIs(t, s.ResizeCache(10), ErrNotBPE)

	_, err := s.BPEUnkToken()
	assert.ErrorIs(t, err, ErrNotBPE)

	unk, err := NewShared(testBPE(t)).BPEUnkToken()
	require.NoError(t, err)
	assert.Equal(t, "<unk>", unk)
}

func TestShared_Lookups(t *testing.T) {
	s := NewShared(testWordPiece(t))

	kind, err := s.Kind()
	require.NoError(t, err)
	assert.Equal(t, KindWordPiece, kind)

	id, ok, err := s.TokenToID("##c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(3), id)

	tok, ok, err := s.IDToToken(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "##c", tok)

	_, ok, err = s.IDToToken(99)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := s.Vocab()
	require.NoError(t, err)
	n, err := s.VocabSize()
	require.NoError(t, err)
	assert.Len(t, v, n)

	v["mutated"] = 100
	again, err := s.VocabSize()
	require.NoError(t, err)
	assert.Equal(t, n, again)

	paths, err := s.Save(t.TempDir(), "bert")
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	tr, err := s.Trainer()
	require.NoError(t, err)
	assert.Equal(t, KindWordPiece, tr.Kind())
}

func TestShared_Replace(t *testing.T) {
	s := NewShared(testBPE(t))
	require.NoError(t, s.Replace(testWordLevel(t)))

	kind, err := s.Kind()
	require.NoError(t, err)
	assert.Equal(t, KindWordLevel, kind)

	tokens, err := s.Tokenize("abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, values(tokens))
}

func TestModel_Same(t *testing.T) {
	first := testBPE(t)
	second := testBPE(t)

	assert.True(t, first.same(first))
	assert.False(t, first.same(second))
	assert.False(t, first.same(testWordLevel(t)))
}

func TestShared_CommitSkippedAfterReplace(t *testing.T) {
	first := testBPE(t)
	s := NewShared(first)

	_, commit, err := first.tokenize("abc")
	require.NoError(t, err)
	require.NotNil(t, commit)

	require.NoError(t, s.Replace(testBPE(t)))
	require.NoError(t, s.write(func(m *Model) error {
		if m.same(first) {
			commit()
		}
		return nil
	}))

	b, _ := first.BPE()
	assert.Equal(t, 0, b.CachedWords())
	assert.Equal(t, 0, cachedWords(t, s))
}

func TestShared_Train(t *testing.T) {
	s := NewShared(testWordLevel(t))

	tr, err := s.Trainer()
	require.NoError(t, err)
	tr.Feed("hello", "hello", "world")
	require.NoError(t, s.Train(tr))

	v, err := s.Vocab()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"hello": 0, "world": 1}, v)

	bpeTrainer, err := NewTrainer(KindBPE)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Train(bpeTrainer), ErrTrainerMismatch)

	wl, ok := tr.WordLevel()
	require.True(t, ok)
	wl.VocabSize = 0
	assert.ErrorIs(t, s.Train(tr), tokenizer.ErrArgument)

	after, err := s.Vocab()
	require.NoError(t, err)
	assert.Equal(t, v, after, "failed training must keep the model")
}

func TestShared_Poisoning(t *testing.T) {
	s := NewShared(testBPE(t))

	err := s.Update(func(*Model) error {
		panic("boom")
	})
	require.ErrorIs(t, err, tokenizer.ErrLockCorruption)
	assert.Contains(t, err.Error(), "boom")

	_, err = s.Tokenize("abc")
	assert.ErrorIs(t, err, tokenizer.ErrLockCorruption)
	_, _, err = s.TokenToID("a")
	assert.ErrorIs(t, err, tokenizer.ErrLockCorruption)
	_, err = s.Vocab()
	assert.ErrorIs(t, err, tokenizer.ErrLockCorruption)
	_, err = s.Save(t.TempDir(), "")
	assert.ErrorIs(t, err, tokenizer.ErrLockCorruption)
	assert.ErrorIs(t, s.ClearCache(), tokenizer.ErrLockCorruption)
	assert.ErrorIs(t, s.Replace(testWordLevel(t)), tokenizer.ErrLockCorruption)
}

func TestShared_UpdateError(t *testing.T) {
	s := NewShared(testBPE(t))
	sentinel := fmt.Errorf("%w: rejected", tokenizer.ErrArgument)

	assert.ErrorIs(t, s.Update(func(*Model) error { return sentinel }), sentinel)

	_, err := s.Tokenize("abc")
	assert.NoError(t, err, "an error return must not poison the handle")
}

func TestShared_UpdateKeepsModelOnError(t *testing.T) {
	s := NewShared(testBPE(t))
	err := s.Update(func(m *Model) error {
		*m = testWordLevel(t)
		return errors.New("halfway")
	})
	require.Error(t, err)

	kind, err := s.Kind()
	require.NoError(t, err)
	assert.Equal(t, KindBPE, kind)
}

func TestShared_UpdateRejectsInvalidModel(t *testing.T) {
	tests := []struct {
		name string
		next Model
	}{
		{name: "zero value", next: Model{}},
		{name: "kind without algorithm", next: Model{kind: KindWordPiece}},
		{name: "unknown kind", next: Model{kind: Kind(42)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewShared(testWordLevel(t))
			err := s.Update(func(m *Model) error {
				*m = tt.next
				return nil
			})
			assert.ErrorIs(t, err, ErrInvalidModel)
			assert.ErrorIs(t, err, tokenizer.ErrArgument)

			tokens, err := s.Tokenize("abc")
			require.NoError(t, err)
			assert.Equal(t, []string{"abc"}, values(tokens))

			assert.ErrorIs(t, s.Replace(tt.next), ErrInvalidModel)
			kind, err := s.Kind()
			require.NoError(t, err)
			assert.Equal(t, KindWordLevel, kind)
		})
	}
}
