package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rangeplan/internal/query"
)

var (
	// ErrInvalidContinuation is returned for malformed continuation tokens and
	// for tokens that fall outside the scanned range.
	ErrInvalidContinuation = errors.New("invalid continuation")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Entry is one key-value pair.
type Entry struct {
	Key   []byte
	Value []byte
}

// Size is the number of bytes counted against a scanned-bytes limit.
func (e Entry) Size() int64 {
	return int64(len(e.Key) + len(e.Value))
}

// Store is an ordered key-value store. Keys order bytewise.
type Store interface {
	// Scan opens a cursor over r, resuming after continuation when it is non-nil.
	Scan(ctx context.Context, r query.KeyRange, continuation []byte, props ScanProperties) (Cursor, error)
	Put(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Close() error
}

// Cursor is a single-consumer pull iterator over scanned entries.
//
// Typical use:
//
//	for cur.Next(ctx) {
//	    e := cur.Entry()
//	}
//	if err := cur.Err(); err != nil { ... }
//	token := cur.Continuation()
type Cursor interface {
	Next(ctx context.Context) bool
	Entry() Entry
	Err() error
	// Continuation resumes after the last entry returned. Nil once the range is exhausted.
	Continuation() []byte
	// NoNextReason explains why Next returned false. Valid only after it did.
	NoNextReason() NoNextReason
	Close() error
}

// Iterator is what a backend provides: a forward or reverse walk over an
// already-narrowed range. Entries must not alias backend-owned memory.
type Iterator interface {
	Next() bool
	Entry() Entry
	Err() error
	Close() error
}

// IsolationLevel is passed through to backends that distinguish read modes.
type IsolationLevel int

const (
	Serializable IsolationLevel = iota
	Snapshot
)

func (l IsolationLevel) String() string {
	switch l {
	case Serializable:
		return "SERIALIZABLE"
	case Snapshot:
		return "SNAPSHOT"
	default:
		return fmt.Sprintf("IsolationLevel(%d)", int(l))
	}
}

// ParseIsolationLevel accepts the String form, case-sensitive. Empty means Serializable.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	switch s {
	case "", "SERIALIZABLE":
		return Serializable, nil
	case "SNAPSHOT":
		return Snapshot, nil
	default:
		return 0, fmt.Errorf("unknown isolation level %q", s)
	}
}

// ExecuteProperties bound a plan execution. Zero limits are unlimited.
type ExecuteProperties struct {
	ReturnedRowLimit  int
	ScannedBytesLimit int64
	TimeLimit         time.Duration
	Isolation         IsolationLevel
}

// AsScanProperties folds the plan's direction into the execution limits.
func (p ExecuteProperties) AsScanProperties(reverse bool) ScanProperties {
	return ScanProperties{ExecuteProperties: p, Reverse: reverse}
}

// ScanProperties is what a store scan receives.
type ScanProperties struct {
	ExecuteProperties
	Reverse bool
}

// NoNextReason says why a cursor stopped.
type NoNextReason int

const (
	// SourceExhausted: the range has no more entries.
	SourceExhausted NoNextReason = iota
	// ReturnLimitReached: ReturnedRowLimit entries were returned.
	ReturnLimitReached
	// ByteLimitReached: ScannedBytesLimit was reached.
	ByteLimitReached
	// TimeLimitReached: TimeLimit elapsed.
	TimeLimitReached
)

func (r NoNextReason) String() string {
	switch r {
	case SourceExhausted:
		return "SOURCE_EXHAUSTED"
	case ReturnLimitReached:
		return "RETURN_LIMIT_REACHED"
	case ByteLimitReached:
		return "BYTE_LIMIT_REACHED"
	case TimeLimitReached:
		return "TIME_LIMIT_REACHED"
	default:
		return fmt.Sprintf("NoNextReason(%d)", int(r))
	}
}

// IsLimitReached reports whether the cursor stopped early and its
// continuation can resume the scan.
func (r NoNextReason) IsLimitReached() bool {
	return r != SourceExhausted
}

// Clock supplies the time used by time limits.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
