package kv

import (
	"context"
	"time"
)

// NewCursor wraps a backend iterator. It tracks the last returned key for
// continuations and stops early when a limit in props is reached. start is
// the continuation the scan resumed from; it is reported again when a limit
// stops the cursor before any entry is returned.
//
// A nil clock means SystemClock. The time limit is measured from this call.
func NewCursor(it Iterator, start []byte, props ScanProperties, clock Clock) Cursor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &limitCursor{
		it:       it,
		props:    props,
		clock:    clock,
		deadline: deadline(clock, props.TimeLimit),
		start:    start,
	}
}

func deadline(clock Clock, limit time.Duration) time.Time {
	if limit <= 0 {
		return time.Time{}
	}
	return clock.Now().Add(limit)
}

type limitCursor struct {
	it       Iterator
	props    ScanProperties
	clock    Clock
	deadline time.Time
	start    []byte

	entry     Entry
	lastKey   []byte
	returned  int
	scanned   int64
	done      bool
	exhausted bool
	reason    NoNextReason
	err       error
}

func (c *limitCursor) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		return c.fail(err)
	}
	if reason, hit := c.limitHit(); hit {
		return c.stop(reason)
	}
	if !c.it.Next() {
		if err := c.it.Err(); err != nil {
			return c.fail(err)
		}
		return c.stop(SourceExhausted)
	}
	c.entry = c.it.Entry()
	c.lastKey = c.entry.Key
	c.returned++
	c.scanned += c.entry.Size()
	return true
}

// limitHit is checked before every pull, so at least one entry is returned
// per scan unless a limit was already exhausted on entry.
func (c *limitCursor) limitHit() (NoNextReason, bool) {
	p := c.props
	switch {
	case p.ReturnedRowLimit > 0 && c.returned >= p.ReturnedRowLimit:
		return ReturnLimitReached, true
	case p.ScannedBytesLimit > 0 && c.scanned >= p.ScannedBytesLimit:
		return ByteLimitReached, true
	case !c.deadline.IsZero() && !c.clock.Now().Before(c.deadline):
		return TimeLimitReached, true
	}
	return 0, false
}

func (c *limitCursor) stop(reason NoNextReason) bool {
	c.done = true
	c.exhausted = reason == SourceExhausted
	c.reason = reason
	c.entry = Entry{}
	return false
}

func (c *limitCursor) fail(err error) bool {
	c.done = true
	c.err = err
	c.entry = Entry{}
	return false
}

func (c *limitCursor) Entry() Entry { return c.entry }

func (c *limitCursor) Err() error { return c.err }

func (c *limitCursor) Continuation() []byte {
	if c.exhausted {
		return nil
	}
	if c.lastKey == nil {
		return c.start
	}
	return EncodeContinuation(c.lastKey)
}

func (c *limitCursor) NoNextReason() NoNextReason { return c.reason }

func (c *limitCursor) Close() error {
	c.done = true
	return c.it.Close()
}
