package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rangeplan/internal/explain"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/query"
	"github.com/roach88/rangeplan/internal/record"
)

// UnionPlan returns the records of each child in turn, without
// deduplication. All children share one direction.
type UnionPlan struct {
	children []Plan
	reverse  bool
}

var _ Plan = (*UnionPlan)(nil)

// NewUnionPlan requires at least one child and a common direction.
func NewUnionPlan(children ...Plan) (*UnionPlan, error) {
	if len(children) == 0 {
		return nil, errors.New("union requires at least one child")
	}
	reverse := children[0].IsReverse()
	for i, c := range children {
		if c == nil {
			return nil, fmt.Errorf("union child %d is nil", i)
		}
		if c.IsReverse() != reverse {
			return nil, fmt.Errorf("union child %d scans in the opposite direction", i)
		}
	}
	return &UnionPlan{children: slices.Clone(children), reverse: reverse}, nil
}

// MustUnionPlan is like NewUnionPlan but panics on error.
func MustUnionPlan(children ...Plan) *UnionPlan {
	p, err := NewUnionPlan(children...)
	if err != nil {
		panic(err)
	}
	return p
}

func (*UnionPlan) planNode() {}

func (*UnionPlan) Kind() Kind          { return KindUnion }
func (p *UnionPlan) Children() []Plan  { return slices.Clone(p.children) }
func (p *UnionPlan) IsReverse() bool   { return p.reverse }
func (*UnionPlan) HasRecordScan() bool { return true }

func (p *UnionPlan) Complexity() int {
	n := 1
	for _, c := range p.children {
		n += c.Complexity()
	}
	return n
}

func (p *UnionPlan) HasFullRecordScan() bool {
	return slices.ContainsFunc(p.children, Plan.HasFullRecordScan)
}

func (p *UnionPlan) HasIndexScan(name string) bool {
	return slices.ContainsFunc(p.children, func(c Plan) bool { return c.HasIndexScan(name) })
}

func (p *UnionPlan) UsedIndexes() []string {
	var out []string
	for _, c := range p.children {
		out = append(out, c.UsedIndexes()...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (p *UnionPlan) HasLoadByKeys() bool {
	return slices.ContainsFunc(p.children, Plan.HasLoadByKeys)
}

func (p *UnionPlan) Equal(other Plan) bool {
	if !p.EqualWithoutChildren(other) {
		return false
	}
	o := other.(*UnionPlan)
	for i := range p.children {
		if !p.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

// EqualWithoutChildren compares direction and child count only.
func (p *UnionPlan) EqualWithoutChildren(other Plan) bool {
	o, ok := other.(*UnionPlan)
	if !ok || o == nil {
		return false
	}
	return p.reverse == o.reverse && len(p.children) == len(o.children)
}

func (p *UnionPlan) Hash() uint64 {
	h := newHasher(KindUnion).bool(p.reverse).uint64(uint64(len(p.children)))
	for _, c := range p.children {
		h = h.uint64(c.Hash())
	}
	return h.sum()
}

// PlanHash folds child plan hashes in order: h = h*31 + child.
func (p *UnionPlan) PlanHash() uint64 {
	h := kindHash(KindUnion)
	for _, c := range p.children {
		h = h*31 + c.PlanHash()
	}
	if p.reverse {
		h++
	}
	return h
}

func (p *UnionPlan) LogPlanStructure(t StructureTimer) {
	if t == nil {
		return
	}
	t.Increment(PlanUnion)
	for _, c := range p.children {
		c.LogPlanStructure(t)
	}
}

func (p *UnionPlan) String() string {
	parts := make([]string, len(p.children))
	for i, c := range p.children {
		parts[i] = c.String()
	}
	return "Union(" + strings.Join(parts, ", ") + ")"
}

func (p *UnionPlan) Graph(children []*explain.Graph) *explain.Graph {
	if len(children) != len(p.children) {
		panic(fmt.Sprintf("plan: Union has %d children, got %d child graphs", len(p.children), len(children)))
	}
	b := explain.NewBuilder()
	root := b.AddNode(explain.Operator, string(KindUnion), nil)
	for _, g := range children {
		b.AddEdge(b.AddGraph(g), root)
	}
	return b.Build(root)
}

// unionContinuation is the position inside a union: which child, and that
// child's own continuation.
type unionContinuation struct {
	Child        int    `json:"child"`
	Continuation []byte `json:"continuation,omitempty"`
}

func decodeUnionContinuation(token []byte, children int) (unionContinuation, error) {
	var uc unionContinuation
	if err := json.Unmarshal(token, &uc); err != nil {
		return uc, fmt.Errorf("%w: %v", kv.ErrInvalidContinuation, err)
	}
	if uc.Child < 0 || uc.Child >= children {
		return uc, fmt.Errorf("%w: child %d of %d", kv.ErrInvalidContinuation, uc.Child, children)
	}
	return uc, nil
}

// Execute runs the children in order. The row limit applies to the union as
// a whole; byte and time limits apply to each child scan.
func (p *UnionPlan) Execute(ctx context.Context, store *record.Store, ec *query.EvaluationContext, continuation []byte, props kv.ExecuteProperties) (Cursor, error) {
	c := &unionCursor{plan: p, store: store, ec: ec, props: props}
	if continuation != nil {
		uc, err := decodeUnionContinuation(continuation, len(p.children))
		if err != nil {
			return nil, err
		}
		c.idx = uc.Child
		c.childCont = uc.Continuation
	}
	// Open the first child eagerly so translation errors surface here.
	if err := c.open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

type unionCursor struct {
	plan  *UnionPlan
	store *record.Store
	ec    *query.EvaluationContext
	props kv.ExecuteProperties

	idx       int
	childCont []byte
	cur       Cursor
	record    record.Record
	returned  int
	done      bool
	exhausted bool
	reason    kv.NoNextReason
	err       error
}

func (c *unionCursor) open(ctx context.Context) error {
	childProps := c.props
	if c.props.ReturnedRowLimit > 0 {
		childProps.ReturnedRowLimit = c.props.ReturnedRowLimit - c.returned
	}
	cur, err := c.plan.children[c.idx].Execute(ctx, c.store, c.ec, c.childCont, childProps)
	if err != nil {
		return err
	}
	c.cur = cur
	return nil
}

func (c *unionCursor) Next(ctx context.Context) bool {
	for !c.done {
		if c.cur == nil {
			if c.idx >= len(c.plan.children) {
				c.finish(kv.SourceExhausted)
				return false
			}
			if c.props.ReturnedRowLimit > 0 && c.returned >= c.props.ReturnedRowLimit {
				c.finish(kv.ReturnLimitReached)
				return false
			}
			if err := c.open(ctx); err != nil {
				c.err = err
				c.done = true
				return false
			}
		}

		if c.cur.Next(ctx) {
			c.record = c.cur.Record()
			c.returned++
			return true
		}
		if err := c.cur.Err(); err != nil {
			c.err = err
			c.done = true
			return false
		}
		reason := c.cur.NoNextReason()
		if reason.IsLimitReached() {
			c.childCont = c.cur.Continuation()
			c.closeChild()
			c.finish(reason)
			return false
		}
		c.closeChild()
		c.idx++
		c.childCont = nil
	}
	return false
}

func (c *unionCursor) finish(reason kv.NoNextReason) {
	c.done = true
	c.reason = reason
	c.exhausted = reason == kv.SourceExhausted
	c.record = record.Record{}
}

func (c *unionCursor) closeChild() {
	if c.cur != nil {
		_ = c.cur.Close()
		c.cur = nil
	}
}

func (c *unionCursor) Record() record.Record { return c.record }

func (c *unionCursor) Err() error { return c.err }

func (c *unionCursor) NoNextReason() kv.NoNextReason { return c.reason }

func (c *unionCursor) Continuation() []byte {
	if c.exhausted {
		return nil
	}
	uc := unionContinuation{Child: c.idx, Continuation: c.childCont}
	// An open child is never exhausted: exhausted children are closed as
	// soon as they report it. A nil token means it has not been pulled yet.
	if c.cur != nil {
		uc.Continuation = c.cur.Continuation()
	}
	if uc.Child >= len(c.plan.children) {
		return nil
	}
	data, err := json.Marshal(uc)
	if err != nil {
		return nil
	}
	return data
}

// Close releases the open child. The position is kept so Continuation
// still resumes after the last record returned.
func (c *unionCursor) Close() error {
	c.done = true
	if c.cur == nil {
		return nil
	}
	c.childCont = c.cur.Continuation()
	err := c.cur.Close()
	c.cur = nil
	return err
}
