package plan

import (
	"context"
	"strconv"

	"github.com/roach88/rangeplan/internal/explain"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/query"
	"github.com/roach88/rangeplan/internal/record"
)

// ScanPlan reads the key range its comparisons describe. It is immutable;
// WithReverse returns a new node.
type ScanPlan struct {
	comparisons query.ScanComparisons
	reverse     bool
}

var _ Plan = (*ScanPlan)(nil)

// NewScanPlan creates a scan over comparisons. Empty comparisons scan every record.
func NewScanPlan(comparisons query.ScanComparisons, reverse bool) *ScanPlan {
	return &ScanPlan{comparisons: comparisons, reverse: reverse}
}

func (*ScanPlan) planNode() {}

// Comparisons returns the scan's comparisons.
func (p *ScanPlan) Comparisons() query.ScanComparisons { return p.comparisons }

// WithReverse returns a copy scanning in the given direction.
func (p *ScanPlan) WithReverse(reverse bool) *ScanPlan {
	return &ScanPlan{comparisons: p.comparisons, reverse: reverse}
}

func (*ScanPlan) Kind() Kind          { return KindScan }
func (*ScanPlan) Children() []Plan    { return nil }
func (p *ScanPlan) IsReverse() bool   { return p.reverse }
func (*ScanPlan) Complexity() int     { return 1 }
func (*ScanPlan) HasRecordScan() bool { return true }

// HasFullRecordScan is true only when there is no comparison at all.
func (p *ScanPlan) HasFullRecordScan() bool { return p.comparisons.IsEmpty() }

func (*ScanPlan) HasIndexScan(string) bool { return false }
func (*ScanPlan) UsedIndexes() []string    { return nil }
func (*ScanPlan) HasLoadByKeys() bool      { return false }

// Execute translates the comparisons against ec and scans the range.
// Translation and store errors are returned unchanged.
func (p *ScanPlan) Execute(ctx context.Context, store *record.Store, ec *query.EvaluationContext, continuation []byte, props kv.ExecuteProperties) (Cursor, error) {
	r, err := p.comparisons.ToRange(ec)
	if err != nil {
		return nil, err
	}
	return store.ScanRecords(ctx, r, continuation, props.AsScanProperties(p.reverse))
}

func (p *ScanPlan) Equal(other Plan) bool {
	o, ok := other.(*ScanPlan)
	if !ok || o == nil {
		return false
	}
	return p.reverse == o.reverse && p.comparisons.Equal(o.comparisons)
}

// EqualWithoutChildren is Equal: a scan has no children.
func (p *ScanPlan) EqualWithoutChildren(other Plan) bool { return p.Equal(other) }

func (p *ScanPlan) Hash() uint64 {
	return newHasher(KindScan).uint64(p.comparisons.Hash()).bool(p.reverse).sum()
}

// PlanHash is kind discriminant + comparisons plan hash + 1 when reversed.
// Overflow wraps.
func (p *ScanPlan) PlanHash() uint64 {
	h := kindHash(KindScan) + p.comparisons.PlanHash()
	if p.reverse {
		h++
	}
	return h
}

func (p *ScanPlan) LogPlanStructure(t StructureTimer) {
	if t != nil {
		t.Increment(PlanScan)
	}
}

// RangeDescription is the context-free range, or the raw comparisons when
// they reference parameters.
func (p *ScanPlan) RangeDescription() string {
	return p.comparisons.Description()
}

func (p *ScanPlan) String() string {
	return "Scan(" + p.RangeDescription() + ")"
}

// Graph builds a root node for the scan fed by a source node for its range.
func (p *ScanPlan) Graph(children []*explain.Graph) *explain.Graph {
	if len(children) != 0 {
		panic(leafGraphPanic(KindScan, len(children)))
	}
	b := explain.NewBuilder()
	root := b.AddNode(explain.Operator, string(KindScan), map[string]string{
		"reverse": strconv.FormatBool(p.reverse),
	})
	src := b.AddNode(explain.Source, p.RangeDescription(), nil)
	b.AddEdge(src, root)
	return b.Build(root)
}
