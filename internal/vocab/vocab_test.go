package vocab

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Bijective(t *testing.T) {
	table, err := New(map[string]uint32{"a": 0, "b": 1, "ab": 2})
	require.NoError(t, err)

	for _, e := range table.Ordered() {
		tok, ok := table.Token(e.ID)
		require.True(t, ok)
		assert.Equal(t, e.Token, tok)

		id, ok := table.ID(tok)
		require.True(t, ok)
		assert.Equal(t, e.ID, id)
	}

	_, ok := table.Token(99)
	assert.False(t, ok)
	_, ok = table.ID("zz")
	assert.False(t, ok)
	assert.Equal(t, 3, table.Len())
}

func TestTable_DuplicateID(t *testing.T) {
	_, err := New(map[string]uint32{"a": 0, "b": 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.ErrorIs(t, err, tokenizer.ErrArgument)
}

func TestTable_MapIsCopy(t *testing.T) {
	src := map[string]uint32{"a": 0}
	table, err := New(src)
	require.NoError(t, err)

	src["b"] = 1
	assert.Equal(t, 1, table.Len())

	snapshot := table.Map()
	snapshot["c"] = 2
	assert.False(t, table.Contains("c"))
}

func TestTable_Dense(t *testing.T) {
	tests := []struct {
		name   string
		tokens map[string]uint32
		want   bool
	}{
		{name: "empty", tokens: map[string]uint32{}, want: true},
		{name: "contiguous", tokens: map[string]uint32{"a": 0, "b": 1}, want: true},
		{name: "hole", tokens: map[string]uint32{"a": 0, "b": 2}, want: false},
		{name: "not from zero", tokens: map[string]uint32{"a": 1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := New(tt.tokens)
			require.NoError(t, err)
			assert.Equal(t, tt.want, table.Dense())
		})
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.json")

	table, err := New(map[string]uint32{"b": 1, "a": 0, "\"q\"": 5, "é": 3})
	require.NoError(t, err)
	require.NoError(t, WriteJSON(path, table))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":0,"b":1,"é":3,"\"q\"":5}`, string(data))

	got, err := ReadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, table.Map(), got)
}

func TestReadJSON_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadJSON(filepath.Join(dir, "nope.json"))
		assert.ErrorIs(t, err, tokenizer.ErrIO)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("negative id", func(t *testing.T) {
		path := filepath.Join(dir, "neg.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"a":-1}`), 0o600))
		_, err := ReadJSON(path)
		assert.ErrorIs(t, err, tokenizer.ErrFileFormat)
	})

	t.Run("not an object", func(t *testing.T) {
		path := filepath.Join(dir, "null.json")
		require.NoError(t, os.WriteFile(path, []byte(`null`), 0o600))
		_, err := ReadJSON(path)
		assert.ErrorIs(t, err, tokenizer.ErrFileFormat)
	})
}

func TestLines_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.txt")

	table, err := New(map[string]uint32{"[UNK]": 0, "un": 1, "##able": 2})
	require.NoError(t, err)
	require.NoError(t, WriteLines(path, table))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[UNK]\nun\n##able\n", string(data))

	got, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, table.Map(), got)
}

func TestWriteLines_NotDense(t *testing.T) {
	table, err := New(map[string]uint32{"a": 0, "b": 4})
	require.NoError(t, err)

	err = WriteLines(filepath.Join(t.TempDir(), "vocab.txt"), table)
	assert.ErrorIs(t, err, ErrNotDense)
}

func TestReadLines_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{name: "empty line", content: "a\n\nb\n", line: 2},
		{name: "duplicate", content: "a\nb\na\n", line: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vocab.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := ReadLines(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tokenizer.ErrFileFormat)

			var fe *tokenizer.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.line, fe.Line)
		})
	}
}

func TestReadFile_DetectsFormat(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "vocab.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("  {\"a\": 0, \"b\": 7}"), 0o600))
	got, err := ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"a": 0, "b": 7}, got)

	linesPath := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(linesPath, []byte("a\r\nb\n"), 0o600))
	got, err = ReadFile(linesPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"a": 0, "b": 1}, got)
}

func TestMerges_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merges.txt")
	merges := Merges{{Left: "a", Right: "b"}, {Left: "ab", Right: "c"}, {Left: "x", Right: "y"}}

	require.NoError(t, WriteMerges(path, merges))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#version: 0.2\na b\nab c\nx y\n", string(data))

	got, err := ReadMerges(path)
	require.NoError(t, err)
	assert.Equal(t, merges, got)
}

func TestReadMerges_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{name: "one fragment", content: "#version: 0.2\na b\nc\n", line: 3},
		{name: "three fragments", content: "a b c\n", line: 1},
		{name: "blank line", content: "a b\n\nc d\n", line: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "merges.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := ReadMerges(path)
			var fe *tokenizer.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.line, fe.Line)
			assert.ErrorIs(t, err, tokenizer.ErrFileFormat)
		})
	}
}

func TestReadMerges_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merges.txt")
	require.NoError(t, os.WriteFile(path, []byte("#version: 0.2\n"), 0o600))

	got, err := ReadMerges(path)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "vocab.json", FileName("", "vocab.json"))
	assert.Equal(t, "bert-vocab.txt", FileName("bert", "vocab.txt"))
}

func TestParseMerge(t *testing.T) {
	m, err := ParseMerge("Ġ ab")
	require.NoError(t, err)
	assert.Equal(t, Merge{Left: "Ġ", Right: "ab"}, m)
	assert.Equal(t, "Ġ ab", m.String())

	for _, bad := range []string{"", "a", "a b c", " b", "a "} {
		_, err := ParseMerge(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestSave_PicksFormat(t *testing.T) {
	tests := []struct {
		name     string
		tokens   map[string]uint32
		prefix   string
		wantFile string
	}{
		{name: "dense", tokens: map[string]uint32{"a": 0, "b": 1}, prefix: "x", wantFile: "x-" + LinesFile},
		{name: "sparse", tokens: map[string]uint32{"a": 0, "b": 7}, wantFile: JSONFile},
		{name: "first token opens a brace", tokens: map[string]uint32{"{": 0, "}": 1, "a": 2}, wantFile: JSONFile},
		{name: "first token opens a brace after spaces", tokens: map[string]uint32{" {x": 0, "a": 1}, wantFile: JSONFile},
		{name: "brace later is fine", tokens: map[string]uint32{"a": 0, "{": 1}, wantFile: LinesFile},
		{name: "trailing space", tokens: map[string]uint32{"a ": 0, "b": 1}, wantFile: JSONFile},
		{name: "trailing tab", tokens: map[string]uint32{"a": 0, "b\t": 1}, wantFile: JSONFile},
		{name: "empty token", tokens: map[string]uint32{"": 0, "b": 1}, wantFile: JSONFile},
		{name: "newline", tokens: map[string]uint32{"a\nb": 0, "c": 1}, wantFile: JSONFile},
		{name: "carriage return", tokens: map[string]uint32{"a\r": 0, "c": 1}, wantFile: JSONFile},
		{name: "leading space", tokens: map[string]uint32{" a": 0, "c": 1}, wantFile: LinesFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			table, err := New(tt.tokens)
			require.NoError(t, err)

			path, err := Save(dir, tt.prefix, table)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.wantFile), path)

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.tokens, got)
		})
	}
}

func TestReadFile_ExtensionWins(t *testing.T) {
	dir := t.TempDir()

	// A line list whose first token is "{" stays a line list.
	linesPath := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(linesPath, []byte("{\n}\na\n"), 0o600))
	got, err := ReadFile(linesPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"{": 0, "}": 1, "a": 2}, got)

	// Without a known extension only a complete JSON object is read as JSON.
	bare := filepath.Join(dir, "vocab")
	require.NoError(t, os.WriteFile(bare, []byte("{\n}\na\n"), 0o600))
	got, err = ReadFile(bare)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"{": 0, "}": 1, "a": 2}, got)

	require.NoError(t, os.WriteFile(bare, []byte(`{"a": 3}`), 0o600))
	got, err = ReadFile(bare)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"a": 3}, got)

	jsonPath := filepath.Join(dir, "vocab.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("a\nb\n"), 0o600))
	_, err = ReadFile(jsonPath)
	assert.ErrorIs(t, err, tokenizer.ErrFileFormat)
}

func TestReadJSON_DuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 0, "b": 0}`), 0o600))

	for _, read := range []func(string) (map[string]uint32, error){ReadJSON, ReadFile} {
		_, err := read(path)
		assert.ErrorIs(t, err, tokenizer.ErrFileFormat)
		assert.NotErrorIs(t, err, tokenizer.ErrArgument)

		var fe *tokenizer.FormatError
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, fe.Details, `"a" and "b" both map to 0`)
	}
}
