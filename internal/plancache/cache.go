// Package plancache caches canonical plan instances keyed by structure.
//
// Entries are keyed by plan.Plan.Hash and confirmed with Equal, so a hash
// collision is a miss rather than a wrong plan.
package plancache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/roach88/rangeplan/internal/plan"
)

// DefaultMaxEntries is used when New is given a non-positive size.
const DefaultMaxEntries = 1024

// Stats are cumulative lookup counters.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Cache is safe for concurrent use, including Close racing lookups. Puts are
// applied asynchronously; call Wait to make them visible.
type Cache struct {
	// mu is held shared by every ristretto call and exclusively by Close,
	// since ristretto must not be used while it is closing.
	mu     sync.RWMutex
	closed bool
	c      *ristretto.Cache[uint64, plan.Plan]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding at most maxEntries plans.
func New(maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c, err := ristretto.NewCache(&ristretto.Config[uint64, plan.Plan]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create plan cache: %w", err)
	}
	return &Cache{c: c}, nil
}

// Get returns the cached plan structurally equal to p.
func (c *Cache) Get(p plan.Plan) (plan.Plan, bool) {
	if p == nil {
		return nil, false
	}
	c.mu.RLock()
	cached, ok := c.c.Get(p.Hash())
	c.mu.RUnlock()
	if !ok || !cached.Equal(p) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return cached, true
}

// Put offers p to the cache. It reports false if the entry was dropped.
func (c *Cache) Put(p plan.Plan) bool {
	if p == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	return c.c.Set(p.Hash(), p, 1)
}

// Intern returns the cached equal plan if there is one, otherwise caches p
// and returns it.
func (c *Cache) Intern(p plan.Plan) plan.Plan {
	if cached, ok := c.Get(p); ok {
		return cached
	}
	c.Put(p)
	return p
}

// Remove drops any entry stored under p's hash.
func (c *Cache) Remove(p plan.Plan) {
	if p == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.closed {
		c.c.Del(p.Hash())
	}
}

// Wait blocks until pending Puts are applied.
func (c *Cache) Wait() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.closed {
		c.c.Wait()
	}
}

// Stats returns the hit and miss counts so far.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// ErrClosed is returned by Close on a second call.
var ErrClosed = errors.New("plan cache closed")

// Close releases the cache's goroutines. Afterwards every lookup misses and
// every Put is dropped.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.c.Close()
	return nil
}
