// Package compiler turns CUE plan descriptions into executable plans.
//
// A description file has a required plan tree and optional planner and
// params sections:
//
//	planner: attempt_failed_in_join_as_or: true
//	params: lo: 10
//	plan: union: [
//		{scan: equality: [{op: "EQUALS", value: 5}]},
//		{scan: inequality: [{op: "GREATER_THAN_OR_EQUALS", param: "lo"}]},
//		{in: values: [1, 2, {param: "other"}]},
//	]
//
// Each plan node has exactly one of scan, union or in. An in node goes
// through the planner, so its result depends on the planner section.
package compiler

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/plan"
	"github.com/roach88/rangeplan/internal/planner"
	"github.com/roach88/rangeplan/internal/query"
)

//go:embed schema.cue
var schemaSource string

// Compiled is the result of compiling one description.
type Compiled struct {
	Plan    plan.Plan
	Planner planner.Configuration
	// Params is nil when the file has no params section.
	Params *query.EvaluationContext
}

// Option configures compilation.
type Option func(*compilation)

// WithPlannerDefaults sets the configuration a file's planner section is
// applied over. Default: planner.DefaultConfiguration().
func WithPlannerDefaults(cfg planner.Configuration) Option {
	return func(c *compilation) { c.base = cfg }
}

// WithLogger passes l to the planner that plans in nodes.
func WithLogger(l *slog.Logger) Option {
	return func(c *compilation) { c.logger = l }
}

// CompileFile reads and compiles the description at path.
func CompileFile(path string, opts ...Option) (*Compiled, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan description: %w", err)
	}
	return CompileString(path, string(src), opts...)
}

// CompileString compiles src. name is used in error positions.
func CompileString(name, src string, opts ...Option) (*Compiled, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		panic(fmt.Sprintf("compiler: embedded schema: %v", err))
	}

	v := ctx.CompileString(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError("cue", err)
	}

	c := &compilation{schema: schema, base: planner.DefaultConfiguration()}
	for _, opt := range opts {
		opt(c)
	}
	return c.compileFile(v)
}

type compilation struct {
	schema  cue.Value
	base    planner.Configuration
	logger  *slog.Logger
	planner *planner.Planner
}

func (c *compilation) def(name string) cue.Value {
	return c.schema.LookupPath(cue.MakePath(cue.Def(name)))
}

// conform unifies v with the named definition and requires a concrete result.
func (c *compilation) conform(field, def string, v cue.Value) (cue.Value, error) {
	u := c.def(def).Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return u, formatCUEError(field, err)
	}
	return u, nil
}

func (c *compilation) compileFile(v cue.Value) (*Compiled, error) {
	file, err := c.conform("file", "#File", v)
	if err != nil {
		return nil, err
	}

	cfg, err := compilePlanner(c.base, file.LookupPath(cue.ParsePath("planner")))
	if err != nil {
		return nil, err
	}
	var popts []planner.Option
	if c.logger != nil {
		popts = append(popts, planner.WithLogger(c.logger))
	}
	c.planner = planner.New(cfg, popts...)

	params, err := compileParams(file.LookupPath(cue.ParsePath("params")))
	if err != nil {
		return nil, err
	}

	p, err := c.compilePlan("plan", file.LookupPath(cue.ParsePath("plan")))
	if err != nil {
		return nil, err
	}

	return &Compiled{Plan: p, Planner: cfg, Params: params}, nil
}

// compilePlanner applies the file's planner section over base.
func compilePlanner(base planner.Configuration, v cue.Value) (planner.Configuration, error) {
	b := base.ToBuilder()
	if !v.Exists() {
		return b.Build(), nil
	}
	if pv := v.LookupPath(cue.ParsePath("index_scan_preference")); pv.Exists() {
		s, err := pv.String()
		if err != nil {
			return planner.Configuration{}, formatCUEError("planner.index_scan_preference", err)
		}
		pref, err := planner.ParseIndexScanPreference(s)
		if err != nil {
			return planner.Configuration{}, &CompileError{Field: "planner.index_scan_preference", Message: err.Error(), Pos: pv.Pos()}
		}
		b.SetIndexScanPreference(pref)
	}
	if av := v.LookupPath(cue.ParsePath("attempt_failed_in_join_as_or")); av.Exists() {
		on, err := av.Bool()
		if err != nil {
			return planner.Configuration{}, formatCUEError("planner.attempt_failed_in_join_as_or", err)
		}
		b.SetAttemptFailedInJoinAsOr(on)
	}
	return b.Build(), nil
}

func compileParams(v cue.Value) (*query.EvaluationContext, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError("params", err)
	}
	bindings := make(map[string]ir.Value)
	for iter.Next() {
		val, err := toValue("params."+iter.Selector().String(), iter.Value())
		if err != nil {
			return nil, err
		}
		bindings[iter.Selector().Unquoted()] = val
	}
	return query.NewEvaluationContext(bindings), nil
}

func (c *compilation) compilePlan(field string, v cue.Value) (plan.Plan, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(field, err)
	}
	var kinds []string
	var body cue.Value
	for iter.Next() {
		kinds = append(kinds, iter.Selector().String())
		body = iter.Value()
	}
	if len(kinds) != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("plan node needs exactly one of scan, union or in, got %v", kinds),
			Pos:     v.Pos(),
		}
	}

	field = field + "." + kinds[0]
	switch kinds[0] {
	case "scan":
		return c.compileScan(field, body)
	case "union":
		return c.compileUnion(field, body)
	case "in":
		return c.compileIn(field, body)
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown plan node %q (want scan, union or in)", kinds[0]),
			Pos:     body.Pos(),
		}
	}
}

func (c *compilation) compileScan(field string, v cue.Value) (plan.Plan, error) {
	v, err := c.conform(field, "#Scan", v)
	if err != nil {
		return nil, err
	}
	equality, err := compileComparisons(field+".equality", v.LookupPath(cue.ParsePath("equality")))
	if err != nil {
		return nil, err
	}
	inequality, err := compileComparisons(field+".inequality", v.LookupPath(cue.ParsePath("inequality")))
	if err != nil {
		return nil, err
	}
	reverse, err := optionalBool(field+".reverse", v.LookupPath(cue.ParsePath("reverse")))
	if err != nil {
		return nil, err
	}

	comparisons, err := query.NewScanComparisons(equality, inequality)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return plan.NewScanPlan(comparisons, reverse), nil
}

func (c *compilation) compileUnion(field string, v cue.Value) (plan.Plan, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(field, err)
	}
	var children []plan.Plan
	for i := 0; iter.Next(); i++ {
		child, err := c.compilePlan(fmt.Sprintf("%s[%d]", field, i), iter.Value())
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	u, err := plan.NewUnionPlan(children...)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return u, nil
}

func (c *compilation) compileIn(field string, v cue.Value) (plan.Plan, error) {
	v, err := c.conform(field, "#In", v)
	if err != nil {
		return nil, err
	}
	equality, err := compileComparisons(field+".equality", v.LookupPath(cue.ParsePath("equality")))
	if err != nil {
		return nil, err
	}
	inequality, err := compileComparisons(field+".inequality", v.LookupPath(cue.ParsePath("inequality")))
	if err != nil {
		return nil, err
	}
	reverse, err := optionalBool(field+".reverse", v.LookupPath(cue.ParsePath("reverse")))
	if err != nil {
		return nil, err
	}

	iter, err := v.LookupPath(cue.ParsePath("values")).List()
	if err != nil {
		return nil, formatCUEError(field+".values", err)
	}
	var in []query.Operand
	for i := 0; iter.Next(); i++ {
		op, err := toOperand(fmt.Sprintf("%s.values[%d]", field, i), iter.Value())
		if err != nil {
			return nil, err
		}
		in = append(in, op)
	}

	p, err := c.planner.PlanScan(planner.ScanRequest{
		Equality:   equality,
		In:         in,
		Inequality: inequality,
		Reverse:    reverse,
	})
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return p, nil
}

func compileComparisons(field string, v cue.Value) ([]query.Comparison, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(field, err)
	}
	var out []query.Comparison
	for i := 0; iter.Next(); i++ {
		cmp, err := compileComparison(fmt.Sprintf("%s[%d]", field, i), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, cmp)
	}
	return out, nil
}

func compileComparison(field string, v cue.Value) (query.Comparison, error) {
	op, err := v.LookupPath(cue.ParsePath("op")).String()
	if err != nil {
		return nil, formatCUEError(field+".op", err)
	}
	operand, err := toOperand(field, v)
	if err != nil {
		return nil, err
	}
	cmp, err := query.NewComparison(op, operand)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return cmp, nil
}

// toOperand reads {value: x}, {param: name}, or, for IN values, a bare
// literal. A struct with neither yields a nil operand.
func toOperand(field string, v cue.Value) (query.Operand, error) {
	if v.IncompleteKind() != cue.StructKind {
		lit, err := toValue(field, v)
		if err != nil {
			return nil, err
		}
		return query.Lit(lit), nil
	}

	value := v.LookupPath(cue.ParsePath("value"))
	param := v.LookupPath(cue.ParsePath("param"))
	switch {
	case value.Exists() && param.Exists():
		return nil, &CompileError{Field: field, Message: "value and param are mutually exclusive", Pos: v.Pos()}
	case value.Exists():
		lit, err := toValue(field+".value", value)
		if err != nil {
			return nil, err
		}
		return query.Lit(lit), nil
	case param.Exists():
		name, err := param.String()
		if err != nil {
			return nil, formatCUEError(field+".param", err)
		}
		return query.Param(name), nil
	default:
		return nil, nil
	}
}

// toValue converts a concrete CUE scalar. Floats are rejected: keys are
// encoded from ints, strings, bytes, bools and null only.
func toValue(field string, v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		return ir.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		return ir.String(s), nil
	case cue.BytesKind:
		b, err := v.Bytes()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		return ir.Bytes(b), nil
	case cue.FloatKind:
		return nil, &CompileError{Field: field, Message: "float values are not supported, use int", Pos: v.Pos()}
	default:
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unsupported value kind %v", v.Kind()), Pos: v.Pos()}
	}
}

func optionalBool(field string, v cue.Value) (bool, error) {
	if !v.Exists() {
		return false, nil
	}
	b, err := v.Bool()
	if err != nil {
		return false, formatCUEError(field, err)
	}
	return b, nil
}
