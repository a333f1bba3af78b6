package memory

import (
	"context"
	"fmt"
	"sync"

	"ratekit/core"
)

// Store is a concurrent in-memory key-value Store implementation.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

func New() *Store { return &Store{values: map[string]any{}} }

func (s *Store) GetInt64(_ context.Context, key string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return 0, false, nil
	}
	n, ok := v.(int64)
	if !ok {
		return 0, false, fmt.Errorf("key %q holds %T, not int64", key, v)
	}
	return n, true, nil
}

func (s *Store) GetBool(_ context.Context, key string) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, fmt.Errorf("key %q holds %T, not bool", key, v)
	}
	return b, true, nil
}

// Commit validates the whole batch before applying any of it.
func (s *Store) Commit(_ context.Context, batch *core.Batch) error {
	muts := batch.Mutations()
	for _, m := range muts {
		if m.Remove {
			continue
		}
		switch m.Value.(type) {
		case int64, bool:
		default:
			return fmt.Errorf("unsupported value type %T for key %q", m.Value, m.Key)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range muts {
		if m.Remove {
			delete(s.values, m.Key)
			continue
		}
		s.values[m.Key] = m.Value
	}
	return nil
}

// Len reports the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Wipe removes every key, like clearing the app's data.
func (s *Store) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[string]any{}
}

var _ interface {
	GetInt64(context.Context, string) (int64, bool, error)
	GetBool(context.Context, string) (bool, bool, error)
	Commit(context.Context, *core.Batch) error
} = (*Store)(nil)
