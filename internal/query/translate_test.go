package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/tuple"
)

func pack(vals ...ir.Value) []byte {
	return tuple.Tuple(vals).MustPack()
}

func succ(t *testing.T, b []byte) []byte {
	t.Helper()
	out, err := tuple.Strinc(b)
	require.NoError(t, err)
	return out
}

func TestToRange_EqualsFive(t *testing.T) {
	c := MustScanComparisons([]Comparison{Equals{Operand: Lit(ir.Int(5))}}, nil)

	r, err := c.ToRange(nil)
	require.NoError(t, err)

	assert.Equal(t, pack(ir.Int(5)), r.Low)
	assert.True(t, r.LowInclusive)
	assert.Equal(t, succ(t, pack(ir.Int(5))), r.High)
	assert.False(t, r.HighInclusive)
	assert.Equal(t, "[(5), (6))", r.String())

	assert.False(t, r.Contains(pack(ir.Int(4))))
	assert.True(t, r.Contains(pack(ir.Int(5))))
	assert.True(t, r.Contains(pack(ir.Int(5), ir.String("child"))))
	assert.False(t, r.Contains(pack(ir.Int(6))))
	assert.False(t, r.Contains(pack(ir.Int(50))))
}

func TestToRange_Empty(t *testing.T) {
	var c ScanComparisons
	r, err := c.ToRange(nil)
	require.NoError(t, err)
	assert.True(t, r.IsUnbounded())
	assert.Equal(t, "[<min>, <max>]", r.String())
}

func TestToRange_Inequalities(t *testing.T) {
	p := pack(ir.String("acme"))
	pEnc := func(v ir.Value) []byte { return pack(ir.String("acme"), v) }

	tests := []struct {
		name       string
		inequality []Comparison
		want       KeyRange
	}{
		{
			name:       "greater than or equals",
			inequality: []Comparison{GreaterThanOrEquals{Operand: Lit(ir.Int(10))}},
			want:       KeyRange{Low: pEnc(ir.Int(10)), LowInclusive: true, High: succ(t, p)},
		},
		{
			name:       "greater than",
			inequality: []Comparison{GreaterThan{Operand: Lit(ir.Int(10))}},
			want:       KeyRange{Low: succ(t, pEnc(ir.Int(10))), LowInclusive: true, High: succ(t, p)},
		},
		{
			name:       "less than",
			inequality: []Comparison{LessThan{Operand: Lit(ir.Int(10))}},
			want:       KeyRange{Low: p, LowInclusive: true, High: pEnc(ir.Int(10))},
		},
		{
			name:       "less than or equals",
			inequality: []Comparison{LessThanOrEquals{Operand: Lit(ir.Int(10))}},
			want:       KeyRange{Low: p, LowInclusive: true, High: succ(t, pEnc(ir.Int(10)))},
		},
		{
			name:       "starts with",
			inequality: []Comparison{StartsWith{Operand: Lit(ir.String("ab"))}},
			want: KeyRange{
				Low:          append(append([]byte{}, p...), tuple.EncodePrefixString("ab")...),
				LowInclusive: true,
				High:         succ(t, append(append([]byte{}, p...), tuple.EncodePrefixString("ab")...)),
			},
		},
		{
			name:       "not null",
			inequality: []Comparison{NotNull{}},
			want:       KeyRange{Low: succ(t, pEnc(ir.Null{})), LowInclusive: true, High: succ(t, p)},
		},
		{
			name: "between keeps tightest bounds",
			inequality: []Comparison{
				GreaterThan{Operand: Lit(ir.Int(1))},
				GreaterThanOrEquals{Operand: Lit(ir.Int(3))},
				LessThan{Operand: Lit(ir.Int(20))},
				LessThanOrEquals{Operand: Lit(ir.Int(9))},
			},
			want: KeyRange{Low: pEnc(ir.Int(3)), LowInclusive: true, High: succ(t, pEnc(ir.Int(9)))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := MustScanComparisons([]Comparison{Equals{Operand: Lit(ir.String("acme"))}}, tt.inequality)
			got, err := c.ToRange(nil)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestToRange_InequalityWithoutPrefix(t *testing.T) {
	c := MustScanComparisons(nil, []Comparison{LessThan{Operand: Lit(ir.Int(10))}})
	r, err := c.ToRange(nil)
	require.NoError(t, err)

	assert.Nil(t, r.Low)
	assert.Equal(t, pack(ir.Int(10)), r.High)
	assert.Equal(t, "[<min>, (10))", r.String())

	c = MustScanComparisons(nil, []Comparison{GreaterThan{Operand: Lit(ir.Int(10))}})
	r, err = c.ToRange(nil)
	require.NoError(t, err)
	assert.Equal(t, pack(ir.Int(11)), r.Low)
	assert.Nil(t, r.High)
	assert.Equal(t, "[(11), <max>]", r.String())
}

func TestToRange_IsNullPrefix(t *testing.T) {
	c := MustScanComparisons([]Comparison{IsNull{}}, nil)
	r, err := c.ToRange(nil)
	require.NoError(t, err)

	assert.True(t, r.Contains(pack(ir.Null{})))
	assert.True(t, r.Contains(pack(ir.Null{}, ir.Int(1))))
	assert.False(t, r.Contains(pack(ir.Int(0))))
}

func TestToRange_IntBoundsOverIntKeys(t *testing.T) {
	keys := [][]byte{pack(ir.Int(4)), pack(ir.Int(5)), pack(ir.Int(6)), pack(ir.Int(50))}

	tests := []struct {
		name  string
		ineq  Comparison
		match []bool
	}{
		{"gt 5", GreaterThan{Operand: Lit(ir.Int(5))}, []bool{false, false, true, true}},
		{"gte 5", GreaterThanOrEquals{Operand: Lit(ir.Int(5))}, []bool{false, true, true, true}},
		{"lt 6", LessThan{Operand: Lit(ir.Int(6))}, []bool{true, true, false, false}},
		{"lte 6", LessThanOrEquals{Operand: Lit(ir.Int(6))}, []bool{true, true, true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := MustScanComparisons(nil, []Comparison{tt.ineq}).ToRange(nil)
			require.NoError(t, err)
			for i, k := range keys {
				assert.Equal(t, tt.match[i], r.Contains(k), "key %s", tuple.Printable(k))
			}
		})
	}
}

// A single inequality bounds one side only. The open side runs to the end
// of the prefix, so keys of other types sorting there are in range: the range
// is a key interval, not a typed filter.
func TestToRange_OpenSideSpansOtherTypes(t *testing.T) {
	null := pack(ir.Null{})
	bytesKey := pack(ir.Bytes("b"))
	str := pack(ir.String("zz"))
	boolKey := pack(ir.Bool(true))

	lt, err := MustScanComparisons(nil, []Comparison{LessThan{Operand: Lit(ir.Int(6))}}).ToRange(nil)
	require.NoError(t, err)
	assert.Nil(t, lt.Low)
	for _, k := range [][]byte{null, bytesKey, str} {
		assert.True(t, lt.Contains(k), "key %s", tuple.Printable(k))
	}
	assert.False(t, lt.Contains(boolKey))

	gt, err := MustScanComparisons(nil, []Comparison{GreaterThan{Operand: Lit(ir.Int(5))}}).ToRange(nil)
	require.NoError(t, err)
	assert.Nil(t, gt.High)
	assert.True(t, gt.Contains(boolKey))
	assert.False(t, gt.Contains(str))

	prefixed, err := MustScanComparisons(
		[]Comparison{Equals{Operand: Lit(ir.Int(1))}},
		[]Comparison{LessThan{Operand: Lit(ir.Int(6))}},
	).ToRange(nil)
	require.NoError(t, err)
	assert.True(t, prefixed.Contains(pack(ir.Int(1), ir.Null{})))
	assert.True(t, prefixed.Contains(pack(ir.Int(1), ir.String("zz"))))
	assert.False(t, prefixed.Contains(pack(ir.Int(1), ir.Int(6))))
	assert.False(t, prefixed.Contains(pack(ir.Int(0), ir.String("zz"))), "outside the prefix")
}

func TestToRange_ContextIrrelevantWithoutParameters(t *testing.T) {
	cases := []ScanComparisons{
		{},
		MustScanComparisons([]Comparison{Equals{Operand: Lit(ir.Int(5))}}, nil),
		MustScanComparisons([]Comparison{Equals{Operand: Lit(ir.String("a"))}}, []Comparison{NotNull{}}),
		MustScanComparisons(nil, []Comparison{StartsWith{Operand: Lit(ir.String("x"))}}),
	}
	ec := NewEvaluationContext(map[string]ir.Value{"unused": ir.Int(1)})

	for _, c := range cases {
		without, err := c.ToRange(nil)
		require.NoError(t, err)
		with, err := c.ToRange(ec)
		require.NoError(t, err)
		assert.Equal(t, without, with, c.String())

		again, err := c.ToRange(nil)
		require.NoError(t, err)
		assert.Equal(t, without, again, "translation must be deterministic")
	}
}

func TestToRange_Parameters(t *testing.T) {
	c := MustScanComparisons(
		[]Comparison{Equals{Operand: Param("tenant")}},
		[]Comparison{LessThan{Operand: Param("hi")}},
	)

	_, err := c.ToRange(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEvaluationContextRequired)
	assert.True(t, IsContextRequired(err))

	_, err = c.ToRange(NewEvaluationContext(map[string]ir.Value{"tenant": ir.String("acme")}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnboundParameter)
	assert.Contains(t, err.Error(), "$hi")

	ec := NewEvaluationContext(map[string]ir.Value{"tenant": ir.String("acme")}).WithBinding("hi", ir.Int(10))
	r, err := c.ToRange(ec)
	require.NoError(t, err)
	assert.Equal(t, pack(ir.String("acme")), r.Low)
	assert.Equal(t, pack(ir.String("acme"), ir.Int(10)), r.High)
}

func TestToRange_BadBoundValue(t *testing.T) {
	c := MustScanComparisons(nil, []Comparison{StartsWith{Operand: Param("p")}})
	_, err := c.ToRange(EmptyContext().WithBinding("p", ir.Int(1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a string")

	c = MustScanComparisons([]Comparison{Equals{Operand: Param("p")}}, nil)
	_, err = c.ToRange(EmptyContext().WithBinding("p", ir.Array{ir.Int(1)}))
	assert.ErrorIs(t, err, tuple.ErrNotEncodable)
}

func TestDescription(t *testing.T) {
	c := MustScanComparisons([]Comparison{Equals{Operand: Lit(ir.Int(5))}}, nil)
	assert.Equal(t, "[(5), (6))", c.Description())

	withParam := MustScanComparisons([]Comparison{Equals{Operand: Param("id")}}, nil)
	assert.Equal(t, "[EQUALS $id]", withParam.Description())

	var empty ScanComparisons
	assert.Equal(t, "[<min>, <max>]", empty.Description())
}
