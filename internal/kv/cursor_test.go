package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceIterator struct {
	entries []Entry
	pos     int
	err     error
	closed  bool
}

func (s *sliceIterator) Next() bool {
	if s.pos >= len(s.entries) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceIterator) Entry() Entry { return s.entries[s.pos-1] }
func (s *sliceIterator) Err() error   { return s.err }

func (s *sliceIterator) Close() error {
	s.closed = true
	return nil
}

type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func entries(keys ...string) []Entry {
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Key: []byte(k), Value: []byte("v")}
	}
	return out
}

func drain(t *testing.T, c Cursor) []string {
	t.Helper()
	var keys []string
	for c.Next(context.Background()) {
		keys = append(keys, string(c.Entry().Key))
	}
	require.NoError(t, c.Err())
	return keys
}

func TestCursor_Exhausts(t *testing.T) {
	it := &sliceIterator{entries: entries("a", "b", "c")}
	c := NewCursor(it, nil, ScanProperties{}, nil)

	assert.Equal(t, []string{"a", "b", "c"}, drain(t, c))
	assert.Equal(t, SourceExhausted, c.NoNextReason())
	assert.False(t, c.NoNextReason().IsLimitReached())
	assert.Nil(t, c.Continuation())

	require.NoError(t, c.Close())
	assert.True(t, it.closed)
}

func TestCursor_RowLimit(t *testing.T) {
	it := &sliceIterator{entries: entries("a", "b", "c")}
	props := ExecuteProperties{ReturnedRowLimit: 2}.AsScanProperties(false)
	c := NewCursor(it, nil, props, nil)

	assert.Equal(t, []string{"a", "b"}, drain(t, c))
	assert.Equal(t, ReturnLimitReached, c.NoNextReason())
	assert.Equal(t, EncodeContinuation([]byte("b")), c.Continuation())
	assert.Equal(t, 2, it.pos, "cursor must not pull past the limit")
}

func TestCursor_ByteLimit(t *testing.T) {
	// Each entry is two bytes; the entry that crosses the limit is still returned.
	it := &sliceIterator{entries: entries("a", "b", "c", "d")}
	c := NewCursor(it, nil, ScanProperties{ExecuteProperties: ExecuteProperties{ScannedBytesLimit: 3}}, nil)

	assert.Equal(t, []string{"a", "b"}, drain(t, c))
	assert.Equal(t, ByteLimitReached, c.NoNextReason())
	assert.Equal(t, EncodeContinuation([]byte("b")), c.Continuation())
}

func TestCursor_TimeLimit(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0), step: time.Second}
	it := &sliceIterator{entries: entries("a", "b", "c", "d")}
	props := ScanProperties{ExecuteProperties: ExecuteProperties{TimeLimit: 3 * time.Second}}
	// Deadline is t=3s; checks happen at t=1s, 2s, 3s.
	c := NewCursor(it, nil, props, clock)

	assert.Equal(t, []string{"a", "b"}, drain(t, c))
	assert.Equal(t, TimeLimitReached, c.NoNextReason())
	assert.Equal(t, EncodeContinuation([]byte("b")), c.Continuation())
}

func TestCursor_LimitBeforeFirstEntryKeepsStart(t *testing.T) {
	start := EncodeContinuation([]byte("x"))
	clock := &stepClock{now: time.Unix(0, 0), step: time.Hour}
	props := ScanProperties{ExecuteProperties: ExecuteProperties{TimeLimit: time.Minute}}
	c := NewCursor(&sliceIterator{entries: entries("y")}, start, props, clock)

	assert.Empty(t, drain(t, c))
	assert.Equal(t, TimeLimitReached, c.NoNextReason())
	assert.Equal(t, start, c.Continuation())
}

func TestCursor_ContinuationBeforeExhaustion(t *testing.T) {
	c := NewCursor(&sliceIterator{entries: entries("a", "b")}, nil, ScanProperties{}, nil)
	require.True(t, c.Next(context.Background()))
	require.NoError(t, c.Close())

	assert.Equal(t, EncodeContinuation([]byte("a")), c.Continuation())
	assert.False(t, c.Next(context.Background()))
}

func TestCursor_IteratorError(t *testing.T) {
	boom := errors.New("disk on fire")
	c := NewCursor(&sliceIterator{err: boom}, nil, ScanProperties{}, nil)

	assert.False(t, c.Next(context.Background()))
	assert.ErrorIs(t, c.Err(), boom)
}

func TestCursor_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCursor(&sliceIterator{entries: entries("a")}, nil, ScanProperties{}, nil)

	assert.False(t, c.Next(ctx))
	assert.ErrorIs(t, c.Err(), context.Canceled)
}

func TestAsScanProperties(t *testing.T) {
	p := ExecuteProperties{ReturnedRowLimit: 5, Isolation: Snapshot}
	sp := p.AsScanProperties(true)
	assert.True(t, sp.Reverse)
	assert.Equal(t, 5, sp.ReturnedRowLimit)
	assert.Equal(t, Snapshot, sp.Isolation)
	assert.False(t, p.AsScanProperties(false).Reverse)
}

func TestNoNextReasonString(t *testing.T) {
	assert.Equal(t, "SOURCE_EXHAUSTED", SourceExhausted.String())
	assert.Equal(t, "RETURN_LIMIT_REACHED", ReturnLimitReached.String())
	assert.Equal(t, "BYTE_LIMIT_REACHED", ByteLimitReached.String())
	assert.Equal(t, "TIME_LIMIT_REACHED", TimeLimitReached.String())
}

func TestParseIsolationLevel(t *testing.T) {
	l, err := ParseIsolationLevel("")
	require.NoError(t, err)
	assert.Equal(t, Serializable, l)

	l, err = ParseIsolationLevel("SNAPSHOT")
	require.NoError(t, err)
	assert.Equal(t, Snapshot, l)

	_, err = ParseIsolationLevel("dirty")
	assert.Error(t, err)
}
