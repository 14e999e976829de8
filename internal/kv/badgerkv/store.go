// Package badgerkv implements kv.Store on Badger.
//
// Scans run inside a read-only Badger transaction, which is always a
// consistent snapshot, so the isolation level in ScanProperties has no effect.
package badgerkv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/query"
)

// Config selects where the database lives.
type Config struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	Logger     *slog.Logger
	Clock      kv.Clock
}

// Store is a kv.Store backed by Badger.
type Store struct {
	db    *badger.DB
	clock kv.Clock

	mu     sync.RWMutex
	closed bool
}

var _ kv.Store = (*Store)(nil)

// Open opens or creates a Badger database.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("badger: data directory required")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithLogger(newSlogLogger(cfg.Logger))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = kv.SystemClock{}
	}
	return &Store{db: db, clock: clock}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kv.ErrClosed
	}
	return nil
}

// Put sets key to value.
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Scan opens a cursor over r inside a read-only transaction.
func (s *Store) Scan(ctx context.Context, r query.KeyRange, continuation []byte, props kv.ScanProperties) (kv.Cursor, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	resumed, err := kv.ResumeRange(r, continuation, props.Reverse)
	if err != nil {
		return nil, err
	}

	txn := s.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = props.Reverse
	it := &iterator{
		txn:     txn,
		it:      txn.NewIterator(opts),
		r:       resumed,
		reverse: props.Reverse,
	}
	return kv.NewCursor(it, continuation, props, s.clock), nil
}

type iterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	r       query.KeyRange
	reverse bool
	started bool
	entry   kv.Entry
	err     error
}

// seek positions at the first candidate. In reverse mode Badger's Seek finds
// the largest key <= target.
func (i *iterator) seek() {
	switch {
	case !i.reverse && i.r.Low != nil:
		i.it.Seek(i.r.Low)
	case i.reverse && i.r.High != nil:
		i.it.Seek(i.r.High)
	default:
		i.it.Rewind()
	}
}

func (i *iterator) Next() bool {
	if !i.started {
		i.started = true
		i.seek()
	} else {
		i.it.Next()
	}

	for ; i.it.Valid(); i.it.Next() {
		item := i.it.Item()
		key := item.Key()
		if kv.PastEnd(i.r, key, i.reverse) {
			return false
		}
		if !i.r.Contains(key) {
			// Exclusive near bound.
			continue
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			i.err = fmt.Errorf("read value: %w", err)
			return false
		}
		i.entry = kv.Entry{Key: item.KeyCopy(nil), Value: value}
		return true
	}
	return false
}

func (i *iterator) Entry() kv.Entry { return i.entry }

func (i *iterator) Err() error { return i.err }

func (i *iterator) Close() error {
	if i.it != nil {
		i.it.Close()
		i.it = nil
		i.txn.Discard()
	}
	return nil
}
