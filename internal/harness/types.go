package harness

import (
	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/tuple"
)

// PageEvent is one execution in a paged run.
type PageEvent struct {
	Page      int           `json:"page"`
	Seq       int64         `json:"seq"`
	Keys      []tuple.Tuple `json:"keys"`
	Reason    string        `json:"reason"`
	Resumable bool          `json:"resumable"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation held.
	Pass bool `json:"pass"`

	// Plan is the compiled plan's String form.
	Plan string `json:"plan"`

	// PlanHash is the plan's version-stable hash, in hex.
	PlanHash string `json:"plan_hash"`

	// ExecutionID is the ID every page ran under.
	ExecutionID string `json:"execution_id"`

	// Trace has one event per execution, in order.
	Trace []PageEvent `json:"trace"`

	// ErrorCode is set when the first execution failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []PageEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Keys returns every key in the trace, in order.
func (r *Result) Keys() []tuple.Tuple {
	var keys []tuple.Tuple
	for _, p := range r.Trace {
		keys = append(keys, p.Keys...)
	}
	return keys
}

// canonical is the form golden files store. Plan hashes are left out so a
// hash scheme change is reviewed separately from behavior changes.
func (r *Result) canonical(name string) ir.Object {
	pages := make(ir.Array, len(r.Trace))
	for i, p := range r.Trace {
		keys := make(ir.Array, len(p.Keys))
		for j, k := range p.Keys {
			keys[j] = ir.Array(k)
		}
		pages[i] = ir.NewObject(
			ir.O("page", ir.Int(p.Page)),
			ir.O("seq", ir.Int(p.Seq)),
			ir.O("keys", keys),
			ir.O("reason", ir.String(p.Reason)),
			ir.O("resumable", ir.Bool(p.Resumable)),
		)
	}
	obj := ir.NewObject(
		ir.O("scenario_name", ir.String(name)),
		ir.O("execution_id", ir.String(r.ExecutionID)),
		ir.O("plan", ir.String(r.Plan)),
		ir.O("pages", pages),
	)
	if r.ErrorCode != "" {
		obj["error_code"] = ir.String(r.ErrorCode)
	}
	return obj
}
