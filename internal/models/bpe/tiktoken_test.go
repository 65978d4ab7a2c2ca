package bpe

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

func writeTiktoken(t *testing.T, ranked ...string) string {
	t.Helper()
	t.Setenv("TIKTOKEN_CACHE_DIR", t.TempDir())

	var sb strings.Builder
	for rank, raw := range ranked {
		fmt.Fprintf(&sb, "%s %d\n", base64.StdEncoding.EncodeToString([]byte(raw)), rank)
	}
	path := filepath.Join(t.TempDir(), "tiny.tiktoken")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func TestByteLevel(t *testing.T) {
	assert.Equal(t, "hello", ByteLevel("hello"))
	assert.Equal(t, "Ġworld", ByteLevel(" world"))
	assert.Equal(t, "Ċ", ByteLevel("\n"))
	assert.Equal(t, "Ã©", ByteLevel("é"))
}

func TestReadTiktokenFile(t *testing.T) {
	path := writeTiktoken(t, "a", "b", " ", "ab", " ab")

	tokens, merges, err := ReadTiktokenFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"a": 0, "b": 1, "Ġ": 2, "ab": 3, "Ġab": 4}, tokens)
	assert.Equal(t, vocab.Merges{{Left: "a", Right: "b"}, {Left: "Ġ", Right: "ab"}}, merges)
}

func TestFromTiktoken(t *testing.T) {
	path := writeTiktoken(t, "a", "b", " ", "ab", " ab")

	m, err := FromTiktoken(path, DefaultConfig())
	require.NoError(t, err)

	tokens, err := m.Tokenize(ByteLevel(" abab"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ġab", "ab"}, values(tokens))
	assert.Equal(t, uint32(4), tokens[0].ID)
}

func TestReadTiktokenFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("TIKTOKEN_CACHE_DIR", t.TempDir())
		_, _, err := ReadTiktokenFile(filepath.Join(t.TempDir(), "none.tiktoken"))
		assert.ErrorIs(t, err, tokenizer.ErrIO)
	})

	t.Run("unreachable token", func(t *testing.T) {
		// "abc" needs "ab" or "bc" at a lower rank.
		path := writeTiktoken(t, "a", "b", "c", "abc")
		_, _, err := ReadTiktokenFile(path)
		assert.ErrorIs(t, err, tokenizer.ErrFileFormat)
	})

	t.Run("bad rank", func(t *testing.T) {
		t.Setenv("TIKTOKEN_CACHE_DIR", t.TempDir())
		path := filepath.Join(t.TempDir(), "bad.tiktoken")
		require.NoError(t, os.WriteFile(path, []byte("YQ== one\n"), 0o644))
		_, _, err := ReadTiktokenFile(path)
		assert.ErrorIs(t, err, tokenizer.ErrFileFormat)
	})

	t.Run("line without rank", func(t *testing.T) {
		t.Setenv("TIKTOKEN_CACHE_DIR", t.TempDir())
		path := filepath.Join(t.TempDir(), "short.tiktoken")
		require.NoError(t, os.WriteFile(path, []byte("YQ==\n"), 0o644))
		_, _, err := ReadTiktokenFile(path)
		assert.ErrorIs(t, err, tokenizer.ErrFileFormat)
	})
}
