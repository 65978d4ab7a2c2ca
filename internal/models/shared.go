package models

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
)

// Handle errors.
var (
	ErrNotBPE          = fmt.Errorf("%w: model is not BPE", tokenizer.ErrArgument)
	ErrTrainerMismatch = fmt.Errorf("%w: trainer does not match the model type", tokenizer.ErrArgument)
	ErrInvalidModel    = fmt.Errorf("%w: model holds no algorithm", tokenizer.ErrArgument)
)

// Shared is a model handle safe for concurrent use. Lookups and tokenization
// share a read lock; cache writes, replacement and retraining take the write
// lock. Nothing ever holds both.
//
// A panic while the write lock is held poisons the handle: the panicking call
// and every later call return an error wrapping tokenizer.ErrLockCorruption.
type Shared struct {
	mu       sync.RWMutex
	model    Model
	poisoned atomic.Bool
}

// NewShared wraps m in a new handle.
func NewShared(m Model) *Shared {
	if !m.valid() {
		panic(fmt.Sprintf("models: uninitialized model (%s)", m.kind))
	}
	return &Shared{model: m}
}

func (s *Shared) corrupted() error {
	return fmt.Errorf("%w: a previous exclusive operation panicked", tokenizer.ErrLockCorruption)
}

// read runs fn under the read lock.
func (s *Shared) read(fn func(Model) error) error {
	if s.poisoned.Load() {
		return s.corrupted()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.poisoned.Load() {
		return s.corrupted()
	}
	return fn(s.model)
}

// write runs fn under the write lock and poisons the handle if fn panics.
func (s *Shared) write(fn func(*Model) error) (err error) {
	if s.poisoned.Load() {
		return s.corrupted()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned.Load() {
		return s.corrupted()
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned.Store(true)
			err = fmt.Errorf("%w: panic during exclusive access: %v", tokenizer.ErrLockCorruption, r)
		}
	}()
	return fn(&s.model)
}

// Kind returns the algorithm currently held.
func (s *Shared) Kind() (Kind, error) {
	var kind Kind
	err := s.read(func(m Model) error {
		kind = m.Kind()
		return nil
	})
	return kind, err
}

// Tokenize splits a pre-segmented word into tokens. A BPE cache miss is
// merged under the read lock and stored afterwards under the write lock,
// unless the model was replaced in between.
func (s *Shared) Tokenize(sequence string) ([]tokenizer.Token, error) {
	var (
		tokens []tokenizer.Token
		commit func()
		used   Model
	)
	err := s.read(func(m Model) error {
		var err error
		tokens, commit, err = m.tokenize(sequence)
		used = m
		return err
	})
	if err != nil {
		return nil, err
	}
	if commit == nil {
		return tokens, nil
	}

	err = s.write(func(m *Model) error {
		if m.same(used) {
			commit()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// TokenToID returns the id of an exact vocabulary entry.
func (s *Shared) TokenToID(token string) (uint32, bool, error) {
	var (
		id uint32
		ok bool
	)
	err := s.read(func(m Model) error {
		id, ok = m.TokenToID(token)
		return nil
	})
	return id, ok, err
}

// IDToToken returns the vocabulary entry with the given id.
func (s *Shared) IDToToken(id uint32) (string, bool, error) {
	var (
		token string
		ok    bool
	)
	err := s.read(func(m Model) error {
		token, ok = m.IDToToken(id)
		return nil
	})
	return token, ok, err
}

// Vocab returns a copy of the vocabulary.
func (s *Shared) Vocab() (map[string]uint32, error) {
	var v map[string]uint32
	err := s.read(func(m Model) error {
		v = m.Vocab()
		return nil
	})
	return v, err
}

// VocabSize returns the number of vocabulary entries.
func (s *Shared) VocabSize() (int, error) {
	var n int
	err := s.read(func(m Model) error {
		n = m.VocabSize()
		return nil
	})
	return n, err
}

// Save writes the model files into dir and returns their paths.
func (s *Shared) Save(dir, prefix string) ([]string, error) {
	var paths []string
	err := s.read(func(m Model) error {
		var err error
		paths, err = m.Save(dir, prefix)
		return err
	})
	return paths, err
}

// Trainer returns a trainer preconfigured from the current model.
func (s *Shared) Trainer() (Trainer, error) {
	var t Trainer
	err := s.read(func(m Model) error {
		t = m.Trainer()
		return nil
	})
	return t, err
}

// View runs fn with read access to the current model. fn must not retain
// the model nor call back into s. It must not call mutating variant methods
// such as ClearCache or ResizeCache either; use Update for those.
func (s *Shared) View(fn func(Model) error) error {
	return s.read(fn)
}

// Update runs fn with exclusive access to the current model. fn may replace
// *m; it must not call back into s. The replacement is kept only when fn
// succeeds and leaves a valid model, otherwise the previous model stays.
func (s *Shared) Update(fn func(m *Model) error) error {
	return s.write(func(cur *Model) error {
		next := *cur
		if err := fn(&next); err != nil {
			return err
		}
		if !next.valid() {
			return fmt.Errorf("%w: update left %s", ErrInvalidModel, next.kind)
		}
		*cur = next
		return nil
	})
}

// Replace swaps in a new model. The zero Model is rejected.
func (s *Shared) Replace(m Model) error {
	if !m.valid() {
		return fmt.Errorf("%w: cannot replace with %s", ErrInvalidModel, m.kind)
	}
	return s.write(func(cur *Model) error {
		*cur = m
		return nil
	})
}

// Train trains t without holding any lock and swaps the result in. t must
// produce the same kind of model as the one currently held.
func (s *Shared) Train(t Trainer) error {
	kind, err := s.Kind()
	if err != nil {
		return err
	}
	if t.Kind() != kind {
		return fmt.Errorf("%w: %s trainer for a %s model", ErrTrainerMismatch, t.Kind(), kind)
	}

	trained, err := t.Train()
	if err != nil {
		return err
	}
	return s.Replace(trained)
}

// BPEUnkToken returns the unknown token of a BPE model.
func (s *Shared) BPEUnkToken() (string, error) {
	var unk string
	err := s.read(func(m Model) error {
		b, ok := m.BPE()
		if !ok {
			return fmt.Errorf("%w: got %s", ErrNotBPE, m.Kind())
		}
		unk = b.UnkToken()
		return nil
	})
	return unk, err
}

// ClearCache empties the BPE merge cache. It does nothing for other models.
func (s *Shared) ClearCache() error {
	return s.write(func(m *Model) error {
		if b, ok := m.BPE(); ok {
			b.ClearCache()
		}
		return nil
	})
}

// ResizeCache changes the BPE merge cache capacity, 0 disabling it.
func (s *Shared) ResizeCache(capacity int) error {
	return s.write(func(m *Model) error {
		b, ok := m.BPE()
		if !ok {
			return fmt.Errorf("%w: got %s", ErrNotBPE, m.Kind())
		}
		return b.ResizeCache(capacity)
	})
}
