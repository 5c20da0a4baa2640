package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

const flushDelay = 200 * time.Millisecond

// FileStore is the durable key-value store: a single JSON document on disk,
// loaded on open and rewritten atomically (temp file + rename). Writes are
// debounced behind a short delay timer so bursts of mutations produce one
// disk write. Persistence failures are logged and swallowed; the in-memory
// map stays authoritative for the lifetime of the process.
type FileStore struct {
	logger *logger.Logger
	path   string

	mu    sync.RWMutex
	data  map[string]string
	timer *time.Timer
}

var _ models.KeyValueStore = (*FileStore)(nil)

// OpenFileStore loads (or creates) the store file under dir.
func OpenFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &FileStore{
		logger: log,
		path:   filepath.Join(dir, "state.json"),
		data:   make(map[string]string),
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		return s, nil
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			// A corrupted file must not take the engine down; start fresh
			// and let reconciliation repopulate from the remote row.
			log.Error("Durable store corrupted, starting empty ", "path ", s.path, " error ", err)
			s.data = make(map[string]string)
		}
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *FileStore) GetFloat(key string) float64 {
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

func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	s.data[key] = value
	s.scheduleFlushLocked()
	s.mu.Unlock()
}

func (s *FileStore) SetFloat(key string, value float64) {
	s.Set(key, strconv.FormatFloat(value, 'f', -1, 64))
}

func (s *FileStore) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.scheduleFlushLocked()
	s.mu.Unlock()
}

func (s *FileStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// scheduleFlushLocked arms the debounce timer. Caller holds s.mu.
func (s *FileStore) scheduleFlushLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(flushDelay, func() {
		s.Flush()
	})
}

// Flush writes the store to disk immediately. Called by the debounce timer
// and once more on shutdown.
func (s *FileStore) Flush() {
	s.mu.RLock()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		s.logger.Error("Failed to marshal durable store ", "error ", err)
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		s.logger.Error("Failed to write durable store ", "error ", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Error("Failed to replace durable store ", "error ", err)
	}
}
