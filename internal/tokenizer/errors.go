package tokenizer

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by a model or a builder wraps
// exactly one of these.
var (
	// ErrArgument reports construction parameters that are jointly inconsistent.
	ErrArgument = errors.New("invalid argument")

	// ErrFileFormat reports a vocabulary or merges file that cannot be parsed.
	ErrFileFormat = errors.New("malformed file")

	// ErrIO reports a filesystem failure while loading or saving.
	ErrIO = errors.New("i/o failure")

	// ErrAlgorithm reports a tokenize-time failure of the algorithm itself.
	ErrAlgorithm = errors.New("tokenization failed")

	// ErrLockCorruption reports a shared model whose exclusive access was
	// abandoned mid-mutation. The model must not be used afterwards.
	ErrLockCorruption = errors.New("model state corrupted")
)

// FormatError describes a malformed line or document in a model file.
type FormatError struct {
	Path    string // File being parsed
	Line    int    // 1-based line number, 0 when not line oriented
	Details string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %s", ErrFileFormat, e.Path, e.Line, e.Details)
	}
	return fmt.Sprintf("%s: %s: %s", ErrFileFormat, e.Path, e.Details)
}

// Unwrap classifies every FormatError as ErrFileFormat.
func (e *FormatError) Unwrap() error {
	return ErrFileFormat
}

// WrapIO classifies a filesystem error as ErrIO while keeping the original
// error (usually an *fs.PathError) reachable through errors.Is and errors.As.
func WrapIO(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}
