package sqlitekv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rangeplan/internal/query"
)

func TestCompileRange(t *testing.T) {
	low := []byte{0x15, 0x01}
	high := []byte{0x15, 0x02}

	testCases := []struct {
		name    string
		r       query.KeyRange
		reverse bool
		sql     string
		params  []any
	}{
		{
			name: "unbounded",
			r:    query.AllKeys,
			sql:  "SELECT key, value FROM entries ORDER BY key COLLATE BINARY ASC",
		},
		{
			name:   "half open",
			r:      query.KeyRange{Low: low, LowInclusive: true, High: high},
			sql:    "SELECT key, value FROM entries WHERE key >= ? AND key < ? ORDER BY key COLLATE BINARY ASC",
			params: []any{low, high},
		},
		{
			name:    "exclusive low inclusive high reverse",
			r:       query.KeyRange{Low: low, High: high, HighInclusive: true},
			reverse: true,
			sql:     "SELECT key, value FROM entries WHERE key > ? AND key <= ? ORDER BY key COLLATE BINARY DESC",
			params:  []any{low, high},
		},
		{
			name:   "high only",
			r:      query.KeyRange{High: high},
			sql:    "SELECT key, value FROM entries WHERE key < ? ORDER BY key COLLATE BINARY ASC",
			params: []any{high},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, params := CompileRange(tc.r, tc.reverse)
			assert.Equal(t, tc.sql, sql)
			assert.Equal(t, tc.params, params)
		})
	}
}

func TestCompileRange_NeverInterpolates(t *testing.T) {
	r := query.KeyRange{Low: []byte("'; DROP TABLE entries; --"), LowInclusive: true}
	sql, params := CompileRange(r, false)
	assert.NotContains(t, sql, "DROP")
	assert.Len(t, params, 1)
}
