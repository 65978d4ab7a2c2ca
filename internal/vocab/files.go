package vocab

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// MergesVersionHeader is the first line written to merges files.
const MergesVersionHeader = "#version: 0.2"

// ErrNotDense reports a table that cannot be written as a line list.
var ErrNotDense = fmt.Errorf("%w: vocabulary ids are not contiguous from 0", tokenizer.ErrArgument)

// maxLineSize bounds a single line of a vocabulary or merges file.
const maxLineSize = 1 << 20

// FileName returns name, prefixed with "<prefix>-" when prefix is set.
func FileName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "-" + name
}

// ReadJSON reads a JSON object mapping tokens to ids.
//
//nolint:gosec // G304: path comes from the caller.
func ReadJSON(path string) (map[string]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tokenizer.WrapIO(err)
	}
	return decodeJSON(path, data)
}

func decodeJSON(path string, data []byte) (map[string]uint32, error) {
	var tokens map[string]uint32
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, &tokenizer.FormatError{Path: path, Details: err.Error()}
	}
	if tokens == nil {
		return nil, &tokenizer.FormatError{Path: path, Details: "expected a JSON object"}
	}
	if _, dup := reverse(tokens); dup != "" {
		return nil, &tokenizer.FormatError{Path: path, Details: "duplicate vocabulary id: " + dup}
	}
	return tokens, nil
}

// WriteJSON writes t as a JSON object whose keys appear in id order.
func WriteJSON(path string, t *Table) error {
	return writeFile(path, func(w *bufio.Writer) error {
		var key bytes.Buffer
		enc := json.NewEncoder(&key)
		enc.SetEscapeHTML(false)

		if err := w.WriteByte('{'); err != nil {
			return err
		}
		for i, e := range t.Ordered() {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			key.Reset()
			if err := enc.Encode(e.Token); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s:%d", bytes.TrimSuffix(key.Bytes(), []byte("\n")), e.ID); err != nil {
				return err
			}
		}
		return w.WriteByte('}')
	})
}

// ReadLines reads a line list: one token per line, the line number is the id.
// Trailing whitespace is stripped. Empty and duplicate lines are rejected.
//
//nolint:gosec // G304: path comes from the caller.
func ReadLines(path string) (map[string]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tokenizer.WrapIO(err)
	}
	defer func() {
		_ = f.Close() // Read-only.
	}()

	return decodeLines(path, f)
}

func decodeLines(path string, r io.Reader) (map[string]uint32, error) {
	tokens := make(map[string]uint32)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var id uint32
	for scanner.Scan() {
		line := int(id) + 1
		tok := strings.TrimRightFunc(scanner.Text(), unicode.IsSpace)
		if tok == "" {
			return nil, &tokenizer.FormatError{Path: path, Line: line, Details: "empty token"}
		}
		if prev, dup := tokens[tok]; dup {
			return nil, &tokenizer.FormatError{
				Path:    path,
				Line:    line,
				Details: fmt.Sprintf("token %q already defined on line %d", tok, prev+1),
			}
		}
		tokens[tok] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &tokenizer.FormatError{Path: path, Line: int(id) + 1, Details: "line too long"}
		}
		return nil, tokenizer.WrapIO(err)
	}
	return tokens, nil
}

// WriteLines writes t as a line list. The table must be dense.
func WriteLines(path string, t *Table) error {
	if !t.Dense() {
		return ErrNotDense
	}
	return writeFile(path, func(w *bufio.Writer) error {
		for _, e := range t.Ordered() {
			if _, err := w.WriteString(e.Token); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	})
}

// File names used by Save.
const (
	LinesFile = "vocab.txt"
	JSONFile  = "vocab.json"
)

// Save writes t into dir as a line list when its ids are dense and every
// token reads back unchanged from one line, and as a JSON object otherwise.
// It returns the written path.
func Save(dir, prefix string, t *Table) (string, error) {
	name, write := JSONFile, WriteJSON
	if t.Dense() && linesSafe(t) {
		name, write = LinesFile, WriteLines
	}
	path := filepath.Join(dir, FileName(prefix, name))
	if err := write(path, t); err != nil {
		return "", err
	}
	return path, nil
}

// linesSafe reports whether every token of t survives a line-list round trip.
func linesSafe(t *Table) bool {
	for i, e := range t.Ordered() {
		tok := e.Token
		switch {
		case tok == "", len(tok) >= maxLineSize, strings.ContainsAny(tok, "\r\n"):
			return false
		case strings.TrimRightFunc(tok, unicode.IsSpace) != tok:
			return false
		case i == 0 && strings.HasPrefix(strings.TrimLeftFunc(tok, unicode.IsSpace), "{"):
			return false
		}
	}
	return true
}

// ReadFile reads a vocabulary in either the JSON or the line-list form.
// A .json file is JSON and a .txt file is a line list. Any other name is
// read as JSON only when the whole file is a valid JSON object.
//
//nolint:gosec // G304: path comes from the caller.
func ReadFile(path string) (map[string]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tokenizer.WrapIO(err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return decodeJSON(path, data)
	case ".txt":
		return decodeLines(path, bytes.NewReader(data))
	}
	if trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace); len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(data) {
		return decodeJSON(path, data)
	}
	return decodeLines(path, bytes.NewReader(data))
}

// ReadMerges reads a merges file. A leading "#version" line is skipped;
// every other line must hold exactly two space-separated fragments.
//
//nolint:gosec // G304: path comes from the caller.
func ReadMerges(path string) (Merges, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tokenizer.WrapIO(err)
	}
	defer func() {
		_ = f.Close() // Read-only.
	}()

	var merges Merges
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if line == 1 && strings.HasPrefix(text, "#version") {
			continue
		}
		merge, err := ParseMerge(text)
		if err != nil {
			return nil, &tokenizer.FormatError{Path: path, Line: line, Details: err.Error()}
		}
		merges = append(merges, merge)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &tokenizer.FormatError{Path: path, Line: line + 1, Details: "line too long"}
		}
		return nil, tokenizer.WrapIO(err)
	}
	if merges == nil {
		merges = Merges{}
	}
	return merges, nil
}

// WriteMerges writes merges in priority order after the version header.
func WriteMerges(path string, merges Merges) error {
	return writeFile(path, func(w *bufio.Writer) error {
		if _, err := w.WriteString(MergesVersionHeader + "\n"); err != nil {
			return err
		}
		for _, m := range merges {
			if _, err := w.WriteString(m.String() + "\n"); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeFile creates path and hands a buffered writer to fill. Any failure is
// reported as ErrIO.
//
//nolint:gosec // G304: path comes from the caller.
func writeFile(path string, fill func(w *bufio.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return tokenizer.WrapIO(err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = tokenizer.WrapIO(cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		return tokenizer.WrapIO(err)
	}
	if err := w.Flush(); err != nil {
		return tokenizer.WrapIO(err)
	}
	return nil
}
