package cache

import "sync"

// Memory is a process-local Store. Flush only resets the pending count.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
	pending int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), value...)
	m.pending++
	return nil
}

func (m *Memory) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	m.pending = 0
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
