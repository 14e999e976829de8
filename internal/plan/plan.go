// Package plan defines executable plan nodes.
//
// Plan is a closed set: ScanPlan is the leaf that reads a key range,
// UnionPlan concatenates its children. Every node supports structural
// identity in two forms. Hash is a fast in-memory hash for maps and caches
// and may change between releases. PlanHash is version-stable and safe to
// persist.
package plan

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/rangeplan/internal/explain"
	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/query"
	"github.com/roach88/rangeplan/internal/record"
)

// Kind names a concrete plan type.
type Kind string

const (
	KindScan  Kind = "Scan"
	KindUnion Kind = "Union"
)

// Plan is an executable plan node. Sealed: only types in this package
// implement it.
type Plan interface {
	planNode()

	Kind() Kind
	Children() []Plan

	// Execute opens a lazy record cursor. ec may be nil when the plan has
	// no parameters.
	Execute(ctx context.Context, store *record.Store, ec *query.EvaluationContext, continuation []byte, props kv.ExecuteProperties) (Cursor, error)

	// Equal is full structural equality, children included.
	Equal(other Plan) bool
	// EqualWithoutChildren compares only the node's own fields.
	EqualWithoutChildren(other Plan) bool
	Hash() uint64
	PlanHash() uint64

	Complexity() int
	HasRecordScan() bool
	HasFullRecordScan() bool
	HasIndexScan(name string) bool
	UsedIndexes() []string
	HasLoadByKeys() bool
	IsReverse() bool

	// LogPlanStructure reports one event per node to t. A nil t is a no-op.
	LogPlanStructure(t StructureTimer)

	// Graph builds this node's explain graph from its children's graphs,
	// in Children() order. A count mismatch is a programming error and panics.
	Graph(children []*explain.Graph) *explain.Graph

	String() string
}

// Cursor is the record cursor returned by Execute.
type Cursor interface {
	Next(ctx context.Context) bool
	Record() record.Record
	Err() error
	Continuation() []byte
	NoNextReason() kv.NoNextReason
	Close() error
}

var _ Cursor = (*record.Cursor)(nil)

// BuildGraph builds the explain graph for p bottom-up.
func BuildGraph(p Plan) *explain.Graph {
	children := p.Children()
	graphs := make([]*explain.Graph, len(children))
	for i, c := range children {
		graphs[i] = BuildGraph(c)
	}
	return p.Graph(graphs)
}

// kindHash is the stable per-kind discriminant mixed into PlanHash.
func kindHash(k Kind) uint64 {
	return ir.MustStableHash64(ir.DomainPlan, string(k))
}

// hasher folds fields into an xxhash digest in order.
type hasher struct {
	d *xxhash.Digest
}

func newHasher(k Kind) hasher {
	h := hasher{d: xxhash.New()}
	_, _ = h.d.WriteString(string(k))
	_, _ = h.d.Write([]byte{0x00})
	return h
}

func (h hasher) uint64(v uint64) hasher {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = h.d.Write(buf[:])
	return h
}

func (h hasher) bool(b bool) hasher {
	if b {
		_, _ = h.d.Write([]byte{1})
	} else {
		_, _ = h.d.Write([]byte{0})
	}
	return h
}

func (h hasher) sum() uint64 { return h.d.Sum64() }

func leafGraphPanic(k Kind, n int) string {
	return fmt.Sprintf("plan: %s is a leaf and takes no child graphs, got %d", k, n)
}
