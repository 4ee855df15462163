package cache

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is a durable Store backed by badger. Writes are committed
// immediately; Flush syncs them to disk.
type BadgerStore struct {
	db       *badger.DB
	inMemory bool
	pending  atomic.Int64
}

// OpenBadger opens (or creates) a badger directory at path. An empty path
// opens an in-memory instance.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger cache %s: %w", path, err)
	}
	return &BadgerStore{db: db, inMemory: path == ""}, nil
}

func (b *BadgerStore) Get(key string) ([]byte, bool) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

func (b *BadgerStore) Put(key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	b.pending.Add(1)
	return nil
}

func (b *BadgerStore) Pending() int { return int(b.pending.Load()) }

func (b *BadgerStore) Flush() error {
	if b.inMemory {
		b.pending.Store(0)
		return nil
	}
	if err := b.db.Sync(); err != nil && !errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("syncing badger cache: %w", err)
	}
	b.pending.Store(0)
	return nil
}

func (b *BadgerStore) Close() error {
	if err := b.Flush(); err != nil {
		return err
	}
	return b.db.Close()
}
