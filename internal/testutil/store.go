package testutil

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/kv/sqlitekv"
	"github.com/roach88/rangeplan/internal/record"
	"github.com/roach88/rangeplan/internal/tuple"
)

// OpenStore opens a SQLite store in a per-test temp dir, closed on cleanup.
func OpenStore(t *testing.T, opts ...sqlitekv.Option) *sqlitekv.Store {
	t.Helper()
	s, err := sqlitekv.Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// IntRecord builds a record keyed by a single int with a "name" field.
func IntRecord(key int64, name string) record.Record {
	return record.Record{
		PrimaryKey: tuple.Tuple{ir.Int(key)},
		Fields:     ir.NewObject(ir.O("name", ir.String(name))),
	}
}

// SeedInts saves one IntRecord per key, named "r<key>".
func SeedInts(t *testing.T, s kv.Store, keys ...int64) *record.Store {
	t.Helper()
	rs := record.NewStore(s, nil)
	for _, k := range keys {
		require.NoError(t, rs.SaveRecord(context.Background(), IntRecord(k, "r"+strconv.FormatInt(k, 10))))
	}
	return rs
}
