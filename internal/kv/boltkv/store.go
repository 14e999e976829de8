// Package boltkv implements kv.Store on a bbolt file with a single bucket.
package boltkv

import (
	"context"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/query"
)

var bucketName = []byte("entries")

// Store is a kv.Store backed by bbolt.
type Store struct {
	db    *bolt.DB
	clock kv.Clock

	mu     sync.RWMutex
	closed bool
}

var _ kv.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for scan time limits.
func WithClock(c kv.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Open opens or creates the database file and its bucket. It waits at most
// one second for the file lock held by another process.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	s := &Store{db: db, clock: kv.SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database file. Closing twice is a no-op.
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
	if value == nil {
		value = []byte{}
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, value)
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
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	}); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Scan opens a cursor over r inside a read-only transaction. The transaction
// is released when the cursor closes.
func (s *Store) Scan(ctx context.Context, r query.KeyRange, continuation []byte, props kv.ScanProperties) (kv.Cursor, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	resumed, err := kv.ResumeRange(r, continuation, props.Reverse)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("begin read transaction: %w", err)
	}
	it := &iterator{
		tx:      tx,
		c:       tx.Bucket(bucketName).Cursor(),
		r:       resumed,
		reverse: props.Reverse,
	}
	return kv.NewCursor(it, continuation, props, s.clock), nil
}

type iterator struct {
	tx      *bolt.Tx
	c       *bolt.Cursor
	r       query.KeyRange
	reverse bool
	started bool
	entry   kv.Entry
}

func (i *iterator) first() ([]byte, []byte) {
	if !i.reverse {
		if i.r.Low == nil {
			return i.c.First()
		}
		return i.c.Seek(i.r.Low)
	}
	if i.r.High == nil {
		return i.c.Last()
	}
	// Seek lands on the first key >= High; the loop in Next steps back over it.
	k, v := i.c.Seek(i.r.High)
	if k == nil {
		return i.c.Last()
	}
	return k, v
}

func (i *iterator) step() ([]byte, []byte) {
	if i.reverse {
		return i.c.Prev()
	}
	return i.c.Next()
}

func (i *iterator) Next() bool {
	if i.tx == nil {
		return false
	}
	var k, v []byte
	if !i.started {
		i.started = true
		k, v = i.first()
	} else {
		k, v = i.step()
	}

	for ; k != nil; k, v = i.step() {
		if kv.PastEnd(i.r, k, i.reverse) {
			return false
		}
		if !i.r.Contains(k) {
			continue
		}
		// bbolt memory is only valid for the life of the transaction.
		i.entry = kv.Entry{Key: append([]byte(nil), k...), Value: append([]byte{}, v...)}
		return true
	}
	return false
}

func (i *iterator) Entry() kv.Entry { return i.entry }

func (i *iterator) Err() error { return nil }

func (i *iterator) Close() error {
	if i.tx == nil {
		return nil
	}
	err := i.tx.Rollback()
	i.tx = nil
	return err
}
