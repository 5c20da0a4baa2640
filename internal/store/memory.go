package store

import (
	"strconv"
	"sync"

	"github.com/lucrumlabs/lucrum/internal/models"
)

// MemStore is the volatile key-value store: it survives only the process,
// standing in for per-tab session storage. Also used as a test double for the
// durable store.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ models.KeyValueStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemStore) GetFloat(key string) float64 {
	v, ok := s.Get(key)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func (s *MemStore) Set(key, value string) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

func (s *MemStore) SetFloat(key string, value float64) {
	s.Set(key, strconv.FormatFloat(value, 'f', -1, 64))
}

func (s *MemStore) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

func (s *MemStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
