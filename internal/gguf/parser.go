package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Parse reads the header and metadata of a GGUF stream.
func Parse(r io.Reader) (*File, error) {
	p := &parser{
		r:     bufio.NewReader(r),
		order: binary.LittleEndian, // Default to little-endian
	}
	return p.parse()
}

// ParseFile parses the metadata of a GGUF file on disk.
//
//nolint:gosec // G304: path comes from trusted caller, not user input.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() {
		_ = f.Close() // Ignore close error on read-only file.
	}()

	gguf, err := Parse(f)
	if err != nil {
		return nil, err
	}
	gguf.FilePath = path

	return gguf, nil
}

type parser struct {
	r     io.Reader
	order binary.ByteOrder
}

func (p *parser) parse() (*File, error) {
	file := &File{
		Metadata: make(map[string]any),
	}

	if err := p.parseHeader(&file.Header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	for i := uint64(0); i < file.Header.MetadataKVCount; i++ {
		key, value, err := p.parseMetadataKV()
		if err != nil {
			return nil, fmt.Errorf("parse metadata kv %d: %w", i, err)
		}
		file.Metadata[key] = value
	}

	return file, nil
}

func (p *parser) parseHeader(h *Header) error {
	if err := binary.Read(p.r, p.order, &h.Magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}

	// The magic is written in the file's byte order.
	switch h.Magic {
	case MagicGGUFLE:
		p.order = binary.LittleEndian
	case MagicGGUFBE:
		p.order = binary.BigEndian
	default:
		return fmt.Errorf("invalid magic: 0x%08X (expected GGUF)", h.Magic)
	}

	if err := binary.Read(p.r, p.order, &h.Version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if h.Version < Version1 || h.Version > Version3 {
		return fmt.Errorf("unsupported version: %d (supported: 1-3)", h.Version)
	}

	if err := binary.Read(p.r, p.order, &h.TensorCount); err != nil {
		return fmt.Errorf("read tensor count: %w", err)
	}
	if err := binary.Read(p.r, p.order, &h.MetadataKVCount); err != nil {
		return fmt.Errorf("read metadata kv count: %w", err)
	}
	if h.MetadataKVCount > maxMetadataKVs {
		return fmt.Errorf("too many metadata entries: %d", h.MetadataKVCount)
	}

	return nil
}

func (p *parser) parseMetadataKV() (string, any, error) {
	key, err := readString(p.r, p.order)
	if err != nil {
		return "", nil, fmt.Errorf("read key: %w", err)
	}

	var valueType uint32
	if err := binary.Read(p.r, p.order, &valueType); err != nil {
		return "", nil, fmt.Errorf("read value type for %q: %w", key, err)
	}

	value, err := p.parseValue(ValueType(valueType))
	if err != nil {
		return "", nil, fmt.Errorf("read value for %q: %w", key, err)
	}

	return key, value, nil
}

// parseValue reads a metadata value of the given type.
func (p *parser) parseValue(t ValueType) (any, error) {
	switch t {
	case ValueTypeUint8:
		return read[uint8](p)
	case ValueTypeInt8:
		return read[int8](p)
	case ValueTypeUint16:
		return read[uint16](p)
	case ValueTypeInt16:
		return read[int16](p)
	case ValueTypeUint32:
		return read[uint32](p)
	case ValueTypeInt32:
		return read[int32](p)
	case ValueTypeFloat32:
		return read[float32](p)
	case ValueTypeUint64:
		return read[uint64](p)
	case ValueTypeInt64:
		return read[int64](p)
	case ValueTypeFloat64:
		return read[float64](p)
	case ValueTypeBool:
		v, err := read[uint8](p)
		return v != 0, err
	case ValueTypeString:
		return readString(p.r, p.order)
	case ValueTypeArray:
		return p.parseArray()
	default:
		return nil, fmt.Errorf("unknown value type: %d", t)
	}
}

func (p *parser) parseArray() (any, error) {
	var elemType uint32
	if err := binary.Read(p.r, p.order, &elemType); err != nil {
		return nil, fmt.Errorf("read array element type: %w", err)
	}

	var length uint64
	if err := binary.Read(p.r, p.order, &length); err != nil {
		return nil, fmt.Errorf("read array length: %w", err)
	}
	if length > maxArrayLen {
		return nil, fmt.Errorf("array too large: %d elements", length)
	}

	switch vt := ValueType(elemType); vt {
	case ValueTypeUint8:
		return readArray[uint8](p, length)
	case ValueTypeInt8:
		return readArray[int8](p, length)
	case ValueTypeUint16:
		return readArray[uint16](p, length)
	case ValueTypeInt16:
		return readArray[int16](p, length)
	case ValueTypeUint32:
		return readArray[uint32](p, length)
	case ValueTypeInt32:
		return readArray[int32](p, length)
	case ValueTypeFloat32:
		return readArray[float32](p, length)
	case ValueTypeUint64:
		return readArray[uint64](p, length)
	case ValueTypeInt64:
		return readArray[int64](p, length)
	case ValueTypeFloat64:
		return readArray[float64](p, length)
	case ValueTypeBool:
		raw, err := readArray[uint8](p, length)
		if err != nil {
			return nil, err
		}
		arr := make([]bool, len(raw))
		for i, v := range raw {
			arr[i] = v != 0
		}
		return arr, nil
	case ValueTypeString:
		return p.readStringArray(length)
	default:
		return nil, fmt.Errorf("unsupported array element type: %s", vt)
	}
}

type fixedSize interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 | ~float32 | ~float64
}

func read[T fixedSize](p *parser) (T, error) {
	var v T
	err := binary.Read(p.r, p.order, &v)
	return v, err
}

func readArray[T fixedSize](p *parser, length uint64) ([]T, error) {
	arr := make([]T, 0, min(length, maxArrayAlloc))
	for i := uint64(0); i < length; i++ {
		v, err := read[T](p)
		if err != nil {
			return nil, fmt.Errorf("read element %d: %w", i, err)
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func (p *parser) readStringArray(length uint64) ([]string, error) {
	arr := make([]string, 0, min(length, maxArrayAlloc))
	for i := uint64(0); i < length; i++ {
		s, err := readString(p.r, p.order)
		if err != nil {
			return nil, fmt.Errorf("read element %d: %w", i, err)
		}
		arr = append(arr, s)
	}
	return arr, nil
}
