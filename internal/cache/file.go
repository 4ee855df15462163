package cache

import (
	"errors"
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/dnhngynops/muindb/internal/filesystem"
)

// FileStore keeps every entry in memory and writes the whole map as one JSON
// document on Flush.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	entries map[string]json.RawMessage
	pending int
}

// OpenFile loads the JSON cache at path. A missing file starts empty; a
// corrupt one is an error so it is not silently overwritten.
func OpenFile(path string) (*FileStore, error) {
	fs := &FileStore{path: path, entries: make(map[string]json.RawMessage)}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from config
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache %s: %w", path, err)
	}
	if len(data) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(data, &fs.entries); err != nil {
		return nil, fmt.Errorf("parsing cache %s: %w", path, err)
	}
	return fs, nil
}

func (f *FileStore) Get(key string) ([]byte, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.entries[key]
	return v, ok
}

// Put stores value, which must be valid JSON.
func (f *FileStore) Put(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("cache value for %q is not JSON", key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = append(json.RawMessage(nil), value...)
	f.pending++
	return nil
}

func (f *FileStore) Pending() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pending
}

// Flush writes the cache atomically. Nothing is written when there are no
// pending entries.
func (f *FileStore) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == 0 {
		return nil
	}
	data, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := filesystem.WriteFileAtomic(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing cache %s: %w", f.path, err)
	}
	f.pending = 0
	return nil
}

// Close flushes pending entries.
func (f *FileStore) Close() error { return f.Flush() }

// Len returns the number of entries.
func (f *FileStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
