package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"budgetbuddy/internal/kv"
)

// Store keeps every key in process memory.
type Store struct {
	mu    sync.Mutex
	items map[string]string
}

var _ kv.Store = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[string]string)}
}

// NewFromFile seeds the store from a JSON object of string values.
// A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed map[string]json.RawMessage
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for k, raw := range seed {
		// String values are stored as-is, anything else as its JSON text.
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			s.items[k] = str
			continue
		}
		s.items[k] = string(raw)
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *Store) MultiGet(_ context.Context, keys []string) ([]kv.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]kv.Pair, 0, len(keys))
	for _, k := range keys {
		v, ok := s.items[k]
		out = append(out, kv.Pair{Key: k, Value: v, Found: ok})
	}
	return out, nil
}

func (s *Store) MultiSet(_ context.Context, pairs []kv.Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pairs {
		s.items[p.Key] = p.Value
	}
	return nil
}

func (s *Store) MultiRemove(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

func (s *Store) GetAllKeys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]string)
	return nil
}
