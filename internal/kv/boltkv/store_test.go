package boltkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/kv/kvtest"
	"github.com/roach88/rangeplan/internal/query"
)

func TestConformance(t *testing.T) {
	kvtest.RunConformance(t, func(t *testing.T, clock kv.Clock) kv.Store {
		s, err := Open(filepath.Join(t.TempDir(), "test.bolt"), WithClock(clock))
		require.NoError(t, err)
		return s
	})
}

func TestReverseSeekBetweenKeys(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.bolt"))
	require.NoError(t, err)
	defer s.Close()
	kvtest.Load(t, s, 10, 20, 30)

	// High bound falls between stored keys.
	r := query.KeyRange{High: kvtest.Key(25)}
	keys, _ := kvtest.Collect(t, s, r, nil, kv.ScanProperties{Reverse: true})
	assert.Equal(t, []int64{20, 10}, keys)

	// High bound above every key.
	r = query.KeyRange{High: kvtest.Key(99), HighInclusive: true}
	keys, _ = kvtest.Collect(t, s, r, nil, kv.ScanProperties{Reverse: true})
	assert.Equal(t, []int64{30, 20, 10}, keys)
}
