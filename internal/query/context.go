package query

import (
	"maps"
	"slices"

	"github.com/roach88/rangeplan/internal/ir"
)

// EvaluationContext binds parameter names to values. It is immutable; a nil
// *EvaluationContext means no context was supplied.
type EvaluationContext struct {
	bindings map[string]ir.Value
}

// NewEvaluationContext copies bindings into a new context.
func NewEvaluationContext(bindings map[string]ir.Value) *EvaluationContext {
	return &EvaluationContext{bindings: maps.Clone(bindings)}
}

// EmptyContext returns a context with no bindings.
func EmptyContext() *EvaluationContext {
	return &EvaluationContext{}
}

// WithBinding returns a copy of ec with name bound to v.
func (ec *EvaluationContext) WithBinding(name string, v ir.Value) *EvaluationContext {
	next := make(map[string]ir.Value, ec.Len()+1)
	if ec != nil {
		maps.Copy(next, ec.bindings)
	}
	next[name] = v
	return &EvaluationContext{bindings: next}
}

// Binding looks up a parameter.
func (ec *EvaluationContext) Binding(name string) (ir.Value, bool) {
	if ec == nil {
		return nil, false
	}
	v, ok := ec.bindings[name]
	return v, ok
}

// Len returns the number of bindings.
func (ec *EvaluationContext) Len() int {
	if ec == nil {
		return 0
	}
	return len(ec.bindings)
}

// Names returns the bound parameter names, sorted.
func (ec *EvaluationContext) Names() []string {
	if ec == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(ec.bindings))
}
