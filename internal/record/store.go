package record

import (
	"context"
	"fmt"

	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/query"
	"github.com/roach88/rangeplan/internal/tuple"
)

// Store reads and writes records on top of a kv.Store.
type Store struct {
	kv        kv.Store
	projector Projector
}

// NewStore wraps s. A nil projector means JSONProjector.
func NewStore(s kv.Store, p Projector) *Store {
	if p == nil {
		p = JSONProjector{}
	}
	return &Store{kv: s, projector: p}
}

// KV returns the underlying store.
func (s *Store) KV() kv.Store { return s.kv }

// SaveRecord writes r, replacing any record with the same primary key.
func (s *Store) SaveRecord(ctx context.Context, r Record) error {
	e, err := Encode(r)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, e.Key, e.Value)
}

// DeleteRecord removes the record with primary key pk.
func (s *Store) DeleteRecord(ctx context.Context, pk tuple.Tuple) error {
	key, err := pk.Pack()
	if err != nil {
		return fmt.Errorf("encode primary key: %w", err)
	}
	return s.kv.Delete(ctx, key)
}

// ScanRecords opens a record cursor over r. Store errors are returned unchanged.
func (s *Store) ScanRecords(ctx context.Context, r query.KeyRange, continuation []byte, props kv.ScanProperties) (*Cursor, error) {
	cur, err := s.kv.Scan(ctx, r, continuation, props)
	if err != nil {
		return nil, err
	}
	return &Cursor{cur: cur, projector: s.projector}, nil
}

// Cursor projects entries lazily as they are pulled.
type Cursor struct {
	cur       kv.Cursor
	projector Projector
	record    Record
	err       error
	// resume is the continuation from before the entry that failed to
	// project, so resuming retries that entry.
	resume []byte
}

// NewCursor wraps an entry cursor.
func NewCursor(cur kv.Cursor, p Projector) *Cursor {
	if p == nil {
		p = JSONProjector{}
	}
	return &Cursor{cur: cur, projector: p}
}

// Next advances to the next record. A projection failure stops the cursor
// and is reported by Err.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	before := c.cur.Continuation()
	if !c.cur.Next(ctx) {
		return false
	}
	rec, err := c.projector.Project(c.cur.Entry())
	if err != nil {
		c.err = err
		c.resume = before
		c.record = Record{}
		return false
	}
	c.record = rec
	return true
}

// Record returns the current record.
func (c *Cursor) Record() Record { return c.record }

// Err returns the first store or projection error.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.cur.Err()
}

// Continuation resumes after the last record returned. Nil when exhausted.
// After a projection failure it resumes at the entry that failed.
func (c *Cursor) Continuation() []byte {
	if c.err != nil {
		return c.resume
	}
	return c.cur.Continuation()
}

// NoNextReason explains why Next returned false.
func (c *Cursor) NoNextReason() kv.NoNextReason { return c.cur.NoNextReason() }

// Close releases the underlying cursor.
func (c *Cursor) Close() error { return c.cur.Close() }

// Collect drains the cursor. The cursor is not closed.
func (c *Cursor) Collect(ctx context.Context) ([]Record, error) {
	var out []Record
	for c.Next(ctx) {
		out = append(out, c.Record())
	}
	if err := c.Err(); err != nil {
		return out, err
	}
	return out, nil
}
