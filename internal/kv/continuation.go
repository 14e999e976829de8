package kv

import (
	"bytes"
	"fmt"

	"github.com/roach88/rangeplan/internal/query"
)

const continuationVersion = 0x01

// EncodeContinuation builds the token that resumes after lastKey.
func EncodeContinuation(lastKey []byte) []byte {
	out := make([]byte, 0, len(lastKey)+1)
	out = append(out, continuationVersion)
	return append(out, lastKey...)
}

// DecodeContinuation extracts the last returned key from a token.
func DecodeContinuation(token []byte) ([]byte, error) {
	if len(token) == 0 {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidContinuation)
	}
	if token[0] != continuationVersion {
		return nil, fmt.Errorf("%w: unknown version 0x%02x", ErrInvalidContinuation, token[0])
	}
	return bytes.Clone(token[1:]), nil
}

// ResumeRange narrows r to the keys strictly after the continuation's last key
// in scan direction. A nil continuation returns r unchanged.
func ResumeRange(r query.KeyRange, continuation []byte, reverse bool) (query.KeyRange, error) {
	if continuation == nil {
		return r, nil
	}
	last, err := DecodeContinuation(continuation)
	if err != nil {
		return query.KeyRange{}, err
	}
	if !r.Contains(last) {
		return query.KeyRange{}, fmt.Errorf("%w: key %x outside range %s", ErrInvalidContinuation, last, r)
	}
	if reverse {
		r.High = last
		r.HighInclusive = false
	} else {
		r.Low = last
		r.LowInclusive = false
	}
	return r, nil
}

// PastEnd reports whether key lies beyond the far end of r in scan direction.
// Backends stop iterating at the first such key.
func PastEnd(r query.KeyRange, key []byte, reverse bool) bool {
	if reverse {
		return !r.AboveLow(key)
	}
	return !r.BelowHigh(key)
}
