package testutil

import "sync"

// DefaultExecutionID is used when a FixedIDGenerator is given no IDs.
const DefaultExecutionID = "test-execution"

// FixedIDGenerator returns predetermined execution IDs in order and keeps
// returning the last one once they run out.
//
// This enables golden comparison of execution logs and traces: the same
// scenario with the same FixedIDGenerator produces byte-identical output.
//
// Thread-safety: FixedIDGenerator is safe for concurrent use.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDGenerator creates a generator for ids. Empty IDs are replaced
// by DefaultExecutionID.
//
//	gen := NewFixedIDGenerator("exec-1", "exec-2")
//	gen.Generate() // "exec-1"
//	gen.Generate() // "exec-2"
//	gen.Generate() // "exec-2"
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	if len(ids) == 0 {
		ids = []string{""}
	}
	own := make([]string, len(ids))
	for i, id := range ids {
		if id == "" {
			id = DefaultExecutionID
		}
		own[i] = id
	}
	return &FixedIDGenerator{ids: own}
}

// Generate returns the next ID.
//
// Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
