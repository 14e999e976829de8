package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/plan"
	"github.com/roach88/rangeplan/internal/planner"
	"github.com/roach88/rangeplan/internal/query"
)

func TestCompileString_Scan(t *testing.T) {
	c, err := CompileString("scan.cue", `
		plan: scan: {
			reverse: true
			equality: [{op: "EQUALS", value: "a"}, {op: "IS_NULL"}]
			inequality: [{op: "LESS_THAN", value: 10}]
		}
	`)
	require.NoError(t, err)

	scan, ok := c.Plan.(*plan.ScanPlan)
	require.True(t, ok)
	assert.True(t, scan.IsReverse())

	want := query.MustScanComparisons(
		[]query.Comparison{query.Equals{Operand: query.Lit(ir.String("a"))}, query.IsNull{}},
		[]query.Comparison{query.LessThan{Operand: query.Lit(ir.Int(10))}},
	)
	assert.True(t, want.Equal(scan.Comparisons()))
	assert.Equal(t, planner.DefaultConfiguration(), c.Planner)
	assert.Nil(t, c.Params)
}

func TestCompileString_EmptyScan(t *testing.T) {
	c, err := CompileString("full.cue", `plan: scan: {}`)
	require.NoError(t, err)
	assert.True(t, c.Plan.HasFullRecordScan())
	assert.Equal(t, "Scan([<min>, <max>])", c.Plan.String())
}

func TestCompileString_ValueKinds(t *testing.T) {
	c, err := CompileString("kinds.cue", `
		plan: scan: equality: [
			{op: "EQUALS", value: null},
			{op: "EQUALS", value: true},
			{op: "EQUALS", value: 'raw'},
			{op: "EQUALS", value: -3},
		]
	`)
	require.NoError(t, err)

	eq := c.Plan.(*plan.ScanPlan).Comparisons().Equality()
	require.Len(t, eq, 4)
	assert.Equal(t, query.Lit(ir.Null{}), query.OperandOf(eq[0]))
	assert.Equal(t, query.Lit(ir.Bool(true)), query.OperandOf(eq[1]))
	assert.Equal(t, query.Lit(ir.Bytes("raw")), query.OperandOf(eq[2]))
	assert.Equal(t, query.Lit(ir.Int(-3)), query.OperandOf(eq[3]))
}

func TestCompileFile_Union(t *testing.T) {
	c, err := CompileFile(filepath.Join("testdata", "union.cue"))
	require.NoError(t, err)

	assert.True(t, c.Planner.ShouldAttemptFailedInJoinAsOr())
	v, ok := c.Params.Binding("lo")
	require.True(t, ok)
	assert.Equal(t, ir.Int(50), v)

	u, ok := c.Plan.(*plan.UnionPlan)
	require.True(t, ok)
	children := u.Children()
	require.Len(t, children, 3)
	assert.Equal(t, plan.KindScan, children[0].Kind())
	assert.Equal(t, []string{"lo"}, children[1].(*plan.ScanPlan).Comparisons().Parameters())
	assert.Equal(t, "Union(Scan([(1), (2))), Scan([(2), (3))))", children[2].String())
}

func TestCompileString_InWithoutRewrite(t *testing.T) {
	_, err := CompileString("in.cue", `plan: in: values: [1, 2]`)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "plan.in", ce.Field)
	assert.Contains(t, ce.Message, "IN predicate")
}

func TestCompileString_InParam(t *testing.T) {
	c, err := CompileString("in.cue", `
		planner: attempt_failed_in_join_as_or: true
		plan: in: {
			reverse: true
			values: [{param: "a"}, 7]
		}
	`)
	require.NoError(t, err)
	assert.True(t, c.Plan.IsReverse())
	assert.Len(t, c.Plan.Children(), 2)
}

func TestCompileString_PlannerSection(t *testing.T) {
	c, err := CompileString("planner.cue", `
		planner: index_scan_preference: "PREFER_INDEX"
		plan: scan: {}
	`)
	require.NoError(t, err)
	assert.Equal(t, planner.PreferIndex, c.Planner.IndexScanPreference())
}

func TestCompileString_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"syntax", `plan: scan: {`, "cue"},
		{"missing plan", `planner: {}`, "plan"},
		{"two node kinds", `plan: {scan: {}, in: values: [1]}`, "exactly one of scan, union or in"},
		{"unknown node", `plan: join: {}`, "unknown plan node"},
		{"unknown op", `plan: scan: equality: [{op: "LIKE", value: 1}]`, "plan.scan"},
		{"unknown scan field", `plan: scan: limit: 3`, "plan.scan"},
		{"float literal", `plan: scan: equality: [{op: "EQUALS", value: 1.5}]`, "plan.scan"},
		{"missing operand", `plan: scan: equality: [{op: "EQUALS"}]`, "requires an operand"},
		{"value and param", `plan: scan: equality: [{op: "EQUALS", value: 1, param: "x"}]`, "mutually exclusive"},
		{"starts with int", `plan: scan: inequality: [{op: "STARTS_WITH", value: 1}]`, "STARTS_WITH"},
		{"empty union", `plan: union: []`, "at least one child"},
		{"mixed direction union", `plan: union: [{scan: reverse: true}, {scan: {}}]`, "opposite direction"},
		{"bad preference", `planner: index_scan_preference: "SOMETIMES"
plan: scan: {}`, "file"},
		{"empty in", `plan: in: values: []`, "plan.in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString("bad.cue", tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileString_ErrorPosition(t *testing.T) {
	_, err := CompileString("positioned.cue", "plan: scan: {\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positioned.cue")
}

func TestCompileFile_Missing(t *testing.T) {
	_, err := CompileFile(filepath.Join(t.TempDir(), "absent.cue"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompileError_Format(t *testing.T) {
	assert.Equal(t, "plan: broken", (&CompileError{Field: "plan", Message: "broken"}).Error())
}

func TestCompileString_PlannerDefaults(t *testing.T) {
	base := planner.NewBuilder().SetAttemptFailedInJoinAsOr(true).Build()

	c, err := CompileString("in.cue", `plan: in: values: [1, 2]`, WithPlannerDefaults(base))
	require.NoError(t, err)
	assert.Equal(t, plan.KindUnion, c.Plan.Kind())
	assert.True(t, c.Planner.ShouldAttemptFailedInJoinAsOr())

	// The file's planner section wins over the defaults.
	_, err = CompileString("in.cue", `
		planner: attempt_failed_in_join_as_or: false
		plan: in: values: [1, 2]
	`, WithPlannerDefaults(base))
	require.Error(t, err)
}
