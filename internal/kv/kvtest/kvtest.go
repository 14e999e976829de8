// Package kvtest is the behavior suite every kv.Store backend must pass.
package kvtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/query"
	"github.com/roach88/rangeplan/internal/tuple"
)

// OpenFunc opens an empty store using clock for time limits. The suite closes
// the store it gets unless a test closes it first.
type OpenFunc func(t *testing.T, clock kv.Clock) kv.Store

// RunConformance runs the shared store behavior tests.
func RunConformance(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, open OpenFunc)
	}{
		{"EmptyStore", testEmptyStore},
		{"OrderedScan", testOrderedScan},
		{"PutOverwritesDeleteRemoves", testPutOverwritesDeleteRemoves},
		{"RangeBounds", testRangeBounds},
		{"ReverseScan", testReverseScan},
		{"EqualsFiveScenario", testEqualsFive},
		{"PagingForward", func(t *testing.T, open OpenFunc) { testPaging(t, open, false) }},
		{"PagingReverse", func(t *testing.T, open OpenFunc) { testPaging(t, open, true) }},
		{"ByteLimit", testByteLimit},
		{"TimeLimit", testTimeLimit},
		{"InvalidContinuation", testInvalidContinuation},
		{"CanceledContext", testCanceledContext},
		{"ClosedStore", testClosedStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open)
		})
	}
}

// Key packs a single int as a tuple key.
func Key(i int64) []byte {
	return tuple.Tuple{ir.Int(i)}.MustPack()
}

// Load writes each key with the value "v<key>".
func Load(t *testing.T, s kv.Store, keys ...int64) {
	t.Helper()
	ctx := context.Background()
	for _, k := range keys {
		require.NoError(t, s.Put(ctx, Key(k), []byte(fmt.Sprintf("v%d", k))))
	}
}

// Collect drains a scan and returns the decoded int keys.
func Collect(t *testing.T, s kv.Store, r query.KeyRange, continuation []byte, props kv.ScanProperties) ([]int64, kv.Cursor) {
	t.Helper()
	ctx := context.Background()
	cur, err := s.Scan(ctx, r, continuation, props)
	require.NoError(t, err)
	defer cur.Close()

	var keys []int64
	for cur.Next(ctx) {
		tup, err := tuple.Unpack(cur.Entry().Key)
		require.NoError(t, err)
		require.Len(t, tup, 1)
		keys = append(keys, int64(tup[0].(ir.Int)))
	}
	require.NoError(t, cur.Err())
	return keys, cur
}

func openStore(t *testing.T, open OpenFunc, clock kv.Clock) kv.Store {
	t.Helper()
	s := open(t, clock)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEmptyStore(t *testing.T, open OpenFunc) {
	s := openStore(t, open, nil)
	keys, cur := Collect(t, s, query.AllKeys, nil, kv.ScanProperties{})
	assert.Empty(t, keys)
	assert.Equal(t, kv.SourceExhausted, cur.NoNextReason())
	assert.Nil(t, cur.Continuation())
}

func testOrderedScan(t *testing.T, open OpenFunc) {
	s := openStore(t, open, nil)
	Load(t, s, 50, -3, 6, 4, 5, 0)

	keys, _ := Collect(t, s, query.AllKeys, nil, kv.ScanProperties{})
	assert.Equal(t, []int64{-3, 0, 4, 5, 6, 50}, keys)
}

func testPutOverwritesDeleteRemoves(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	s := openStore(t, open, nil)
	Load(t, s, 1, 2, 3)

	require.NoError(t, s.Put(ctx, Key(2), []byte("updated")))
	require.NoError(t, s.Delete(ctx, Key(3)))
	require.NoError(t, s.Delete(ctx, Key(99)), "deleting a missing key is not an error")

	cur, err := s.Scan(ctx, query.AllKeys, nil, kv.ScanProperties{})
	require.NoError(t, err)
	defer cur.Close()

	var got []kv.Entry
	for cur.Next(ctx) {
		got = append(got, cur.Entry())
	}
	require.NoError(t, cur.Err())
	require.Len(t, got, 2)
	assert.Equal(t, Key(1), got[0].Key)
	assert.Equal(t, []byte("v1"), got[0].Value)
	assert.Equal(t, []byte("updated"), got[1].Value)
}

func testRangeBounds(t *testing.T, open OpenFunc) {
	s := openStore(t, open, nil)
	Load(t, s, 1, 2, 3, 4, 5)

	tests := []struct {
		name string
		r    query.KeyRange
		want []int64
	}{
		{"half open", query.KeyRange{Low: Key(2), LowInclusive: true, High: Key(4)}, []int64{2, 3}},
		{"closed", query.KeyRange{Low: Key(2), LowInclusive: true, High: Key(4), HighInclusive: true}, []int64{2, 3, 4}},
		{"open", query.KeyRange{Low: Key(2), High: Key(4)}, []int64{3}},
		{"low only", query.KeyRange{Low: Key(4), LowInclusive: true}, []int64{4, 5}},
		{"high only", query.KeyRange{High: Key(2), HighInclusive: true}, []int64{1, 2}},
		{"empty", query.KeyRange{Low: Key(4), LowInclusive: true, High: Key(2)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, _ := Collect(t, s, tt.r, nil, kv.ScanProperties{})
			assert.Equal(t, tt.want, keys)
		})
	}
}

func testReverseScan(t *testing.T, open OpenFunc) {
	s := openStore(t, open, nil)
	Load(t, s, 1, 2, 3, 4, 5)

	keys, _ := Collect(t, s, query.KeyRange{Low: Key(2), High: Key(5), HighInclusive: true}, nil, kv.ScanProperties{Reverse: true})
	assert.Equal(t, []int64{5, 4, 3}, keys)

	keys, _ = Collect(t, s, query.AllKeys, nil, kv.ScanProperties{Reverse: true})
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, keys)
}

func testEqualsFive(t *testing.T, open OpenFunc) {
	s := openStore(t, open, nil)
	Load(t, s, 4, 5, 6, 50)

	c := query.MustScanComparisons([]query.Comparison{query.Equals{Operand: query.Lit(ir.Int(5))}}, nil)
	r, err := c.ToRange(nil)
	require.NoError(t, err)

	keys, _ := Collect(t, s, r, nil, kv.ScanProperties{})
	assert.Equal(t, []int64{5}, keys)
}

func testPaging(t *testing.T, open OpenFunc, reverse bool) {
	s := openStore(t, open, nil)
	all := []int64{1, 2, 3, 4, 5, 6, 7}
	Load(t, s, all...)

	props := kv.ExecuteProperties{ReturnedRowLimit: 3}.AsScanProperties(reverse)
	var seen []int64
	var continuation []byte
	for page := 0; ; page++ {
		require.Less(t, page, 10, "paging did not terminate")
		keys, cur := Collect(t, s, query.AllKeys, continuation, props)
		seen = append(seen, keys...)
		continuation = cur.Continuation()
		if continuation == nil {
			assert.Equal(t, kv.SourceExhausted, cur.NoNextReason())
			break
		}
		assert.Equal(t, kv.ReturnLimitReached, cur.NoNextReason())
	}

	want := all
	if reverse {
		want = []int64{7, 6, 5, 4, 3, 2, 1}
	}
	assert.Equal(t, want, seen)
}

func testByteLimit(t *testing.T, open OpenFunc) {
	s := openStore(t, open, nil)
	Load(t, s, 1, 2, 3)

	// Each entry is 9 key bytes plus 2 value bytes.
	props := kv.ScanProperties{ExecuteProperties: kv.ExecuteProperties{ScannedBytesLimit: 12}}
	keys, cur := Collect(t, s, query.AllKeys, nil, props)
	assert.Equal(t, []int64{1, 2}, keys)
	assert.Equal(t, kv.ByteLimitReached, cur.NoNextReason())

	rest, _ := Collect(t, s, query.AllKeys, cur.Continuation(), kv.ScanProperties{})
	assert.Equal(t, []int64{3}, rest)
}

// tickingClock advances by step on every reading.
type tickingClock struct {
	now  time.Time
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func testTimeLimit(t *testing.T, open OpenFunc) {
	clock := &tickingClock{now: time.Unix(1_700_000_000, 0), step: time.Second}
	s := openStore(t, open, clock)
	Load(t, s, 1, 2, 3, 4)

	props := kv.ScanProperties{ExecuteProperties: kv.ExecuteProperties{TimeLimit: 2500 * time.Millisecond}}
	keys, cur := Collect(t, s, query.AllKeys, nil, props)
	assert.Equal(t, []int64{1, 2}, keys)
	assert.Equal(t, kv.TimeLimitReached, cur.NoNextReason())
	assert.NotNil(t, cur.Continuation())
}

func testInvalidContinuation(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	s := openStore(t, open, nil)
	Load(t, s, 1, 2, 3)

	_, err := s.Scan(ctx, query.AllKeys, []byte{0x7f}, kv.ScanProperties{})
	assert.ErrorIs(t, err, kv.ErrInvalidContinuation)

	r := query.KeyRange{Low: Key(1), LowInclusive: true, High: Key(2)}
	_, err = s.Scan(ctx, r, kv.EncodeContinuation(Key(3)), kv.ScanProperties{})
	assert.ErrorIs(t, err, kv.ErrInvalidContinuation)
}

func testCanceledContext(t *testing.T, open OpenFunc) {
	s := openStore(t, open, nil)
	Load(t, s, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cur, err := s.Scan(context.Background(), query.AllKeys, nil, kv.ScanProperties{})
	require.NoError(t, err)
	defer cur.Close()

	cancel()
	assert.False(t, cur.Next(ctx))
	assert.ErrorIs(t, cur.Err(), context.Canceled)
}

func testClosedStore(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	s := open(t, nil)
	require.NoError(t, s.Close())

	_, err := s.Scan(ctx, query.AllKeys, nil, kv.ScanProperties{})
	assert.ErrorIs(t, err, kv.ErrClosed)
	assert.ErrorIs(t, s.Put(ctx, Key(1), nil), kv.ErrClosed)
	assert.ErrorIs(t, s.Delete(ctx, Key(1)), kv.ErrClosed)
	assert.NoError(t, s.Close(), "second close is a no-op")
}
