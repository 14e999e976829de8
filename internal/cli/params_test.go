package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/query"
)

func TestParseParamValue(t *testing.T) {
	tests := []struct {
		raw  string
		want ir.Value
	}{
		{"5", ir.Int(5)},
		{"-12", ir.Int(-12)},
		{"true", ir.Bool(true)},
		{"false", ir.Bool(false)},
		{"null", ir.Null{}},
		{"abc", ir.String("abc")},
		{`"5"`, ir.String("5")},
		{"T", ir.String("T")},
		{"", ir.String("")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseParamValue(tt.raw))
		})
	}
}

func TestParseParams(t *testing.T) {
	base := query.NewEvaluationContext(map[string]ir.Value{"lo": ir.Int(1), "hi": ir.Int(9)})

	ec, err := parseParams(base, []string{"lo=5", "name=x"})
	require.NoError(t, err)

	lo, _ := ec.Binding("lo")
	assert.Equal(t, ir.Int(5), lo)
	hi, _ := ec.Binding("hi")
	assert.Equal(t, ir.Int(9), hi)
	name, _ := ec.Binding("name")
	assert.Equal(t, ir.String("x"), name)

	// base is untouched
	lo, _ = base.Binding("lo")
	assert.Equal(t, ir.Int(1), lo)
}

func TestParseParams_NilBase(t *testing.T) {
	ec, err := parseParams(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, ec)

	ec, err = parseParams(nil, []string{"a=1"})
	require.NoError(t, err)
	assert.Equal(t, 1, ec.Len())
}

func TestParseParams_Malformed(t *testing.T) {
	for _, f := range []string{"noequals", "=5"} {
		_, err := parseParams(nil, []string{f})
		require.Error(t, err, f)
	}
}

func TestParseContinuation(t *testing.T) {
	b, err := parseContinuation("")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = parseContinuation("01ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xff}, b)

	_, err = parseContinuation("zz")
	require.Error(t, err)
}
