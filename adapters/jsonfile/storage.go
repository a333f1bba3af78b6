package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"ratekit/core"
)

// document is the on-disk layout.
type document struct {
	Ints  map[string]int64 `json:"ints"`
	Bools map[string]bool  `json:"bools"`
}

// Store persists all keys to a single JSON file, rewriting it on every commit.
// Suitable for CLI hosts and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	doc document
}

func New(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Ints: map[string]int64{}, Bools: map[string]bool{}}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	for k, v := range doc.Ints {
		s.doc.Ints[k] = v
	}
	for k, v := range doc.Bools {
		s.doc.Bools[k] = v
	}
	return nil
}

func (s *Store) persist(doc document) error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) GetInt64(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.doc.Ints[key]
	return v, ok, nil
}

func (s *Store) GetBool(_ context.Context, key string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.doc.Bools[key]
	return v, ok, nil
}

// Commit applies the batch to a copy and swaps it in only after the file is
// written, so a failed write leaves both disk and cache unchanged.
func (s *Store) Commit(_ context.Context, batch *core.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := document{
		Ints:  make(map[string]int64, len(s.doc.Ints)),
		Bools: make(map[string]bool, len(s.doc.Bools)),
	}
	for k, v := range s.doc.Ints {
		next.Ints[k] = v
	}
	for k, v := range s.doc.Bools {
		next.Bools[k] = v
	}
	for _, m := range batch.Mutations() {
		if m.Remove {
			delete(next.Ints, m.Key)
			delete(next.Bools, m.Key)
			continue
		}
		switch v := m.Value.(type) {
		case int64:
			delete(next.Bools, m.Key)
			next.Ints[m.Key] = v
		case bool:
			delete(next.Ints, m.Key)
			next.Bools[m.Key] = v
		default:
			return fmt.Errorf("unsupported value type %T for key %q", m.Value, m.Key)
		}
	}
	if err := s.persist(next); err != nil {
		return fmt.Errorf("persist %s: %w", s.path, err)
	}
	s.doc = next
	return nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }
