package gguf

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// builder writes a GGUF header and metadata section in memory.
type builder struct {
	order binary.ByteOrder
	kvs   int
	body  bytes.Buffer
}

func newBuilder(order binary.ByteOrder) *builder {
	return &builder{order: order}
}

func (b *builder) put(v any) {
	_ = binary.Write(&b.body, b.order, v)
}

func (b *builder) putString(s string) {
	b.put(uint64(len(s)))
	b.body.WriteString(s)
}

func (b *builder) str(key, value string) *builder {
	b.kvs++
	b.putString(key)
	b.put(uint32(ValueTypeString))
	b.putString(value)
	return b
}

func (b *builder) u32(key string, value uint32) *builder {
	b.kvs++
	b.putString(key)
	b.put(uint32(ValueTypeUint32))
	b.put(value)
	return b
}

func (b *builder) strings(key string, values ...string) *builder {
	b.kvs++
	b.putString(key)
	b.put(uint32(ValueTypeArray))
	b.put(uint32(ValueTypeString))
	b.put(uint64(len(values)))
	for _, v := range values {
		b.putString(v)
	}
	return b
}

func (b *builder) floats(key string, values ...float32) *builder {
	b.kvs++
	b.putString(key)
	b.put(uint32(ValueTypeArray))
	b.put(uint32(ValueTypeFloat32))
	b.put(uint64(len(values)))
	for _, v := range values {
		b.put(v)
	}
	return b
}

func (b *builder) bools(key string, values ...bool) *builder {
	b.kvs++
	b.putString(key)
	b.put(uint32(ValueTypeArray))
	b.put(uint32(ValueTypeBool))
	b.put(uint64(len(values)))
	for _, v := range values {
		var x uint8
		if v {
			x = 1
		}
		b.put(x)
	}
	return b
}

func (b *builder) bytes() []byte {
	var out bytes.Buffer
	// A big-endian writer stores the magic reversed.
	_ = binary.Write(&out, b.order, MagicGGUFLE)
	_ = binary.Write(&out, b.order, Version3)
	_ = binary.Write(&out, b.order, uint64(7)) // tensor count, never read
	_ = binary.Write(&out, b.order, uint64(b.kvs))
	out.Write(b.body.Bytes())
	return out.Bytes()
}

func llamaVocab(order binary.ByteOrder) *builder {
	return newBuilder(order).
		str(KeyArchitecture, "llama").
		str(KeyName, "tiny").
		str(KeyTokenizerModel, "llama").
		strings(KeyTokens, "<unk>", "▁a", "b").
		floats(KeyScores, 0, -1.5, -2).
		u32(KeyUnknownTokenID, 0).
		bools("general.flags", true, false)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
	}{
		{name: "little endian", order: binary.LittleEndian},
		{name: "big endian", order: binary.BigEndian},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(bytes.NewReader(llamaVocab(tt.order).bytes()))
			require.NoError(t, err)

			assert.Equal(t, Version3, f.Header.Version)
			assert.Equal(t, uint64(7), f.Header.MetadataKVCount)
			assert.Equal(t, "llama", f.Architecture())
			assert.Equal(t, "tiny", f.Name())
			assert.Equal(t, "llama", f.TokenizerModel())
			assert.Equal(t, []string{"<unk>", "▁a", "b"}, f.Tokens())
			assert.Equal(t, []float32{0, -1.5, -2}, f.Scores())
			assert.Equal(t, 3, f.VocabSize())
			assert.Nil(t, f.Merges())
			assert.Equal(t, []bool{true, false}, f.Metadata["general.flags"])

			unk, ok := f.Uint(KeyUnknownTokenID)
			require.True(t, ok)
			assert.Equal(t, uint64(0), unk)

			_, ok = f.Uint(KeyBOSTokenID)
			assert.False(t, ok)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.gguf")
	require.NoError(t, os.WriteFile(path, llamaVocab(binary.LittleEndian).bytes(), 0o644))

	f, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.FilePath)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.gguf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_Errors(t *testing.T) {
	valid := llamaVocab(binary.LittleEndian).bytes()

	badVersion := bytes.Clone(valid)
	binary.LittleEndian.PutUint32(badVersion[4:], 9)

	badType := newBuilder(binary.LittleEndian)
	badType.kvs++
	badType.putString("general.odd")
	badType.put(uint32(42))

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "bad magic", data: []byte("NOPE\x03\x00\x00\x00")},
		{name: "unsupported version", data: badVersion},
		{name: "truncated metadata", data: valid[:len(valid)-5]},
		{name: "unknown value type", data: badType.bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(bytes.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestValueTypeString(t *testing.T) {
	assert.Equal(t, "float32", ValueTypeFloat32.String())
	assert.Equal(t, "unknown(99)", ValueType(99).String())
}
