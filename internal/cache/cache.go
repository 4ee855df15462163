// Package cache stores raw source responses between runs so repeated
// lookups do not spend API quota.
package cache

import (
	"fmt"
	"strings"
)

// Store is a shared key/value cache of raw responses. Writes become durable
// on Flush.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	// Pending returns the number of writes since the last Flush.
	Pending() int
	Flush() error
	Close() error
}

// Backends.
const (
	BackendJSON   = "json"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Open creates the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendJSON:
		return OpenFile(path)
	case BackendBadger:
		return OpenBadger(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
