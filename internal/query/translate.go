package query

import (
	"bytes"
	"fmt"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/tuple"
)

// ToRange translates the comparisons into a key range.
//
// The equality prefix P is encoded once. Each trailing comparison yields one
// bound relative to P:
//
//	>= v         low  P+enc(v)            inclusive
//	>  v         low  strinc(P+enc(v))    inclusive
//	<  v         high P+enc(v)            exclusive
//	<= v         high strinc(P+enc(v))    exclusive
//	STARTS_WITH  [P+prefix(s), strinc(P+prefix(s)))
//	NOT_NULL     low  strinc(P+enc(null)) inclusive
//
// Several trailing comparisons intersect. A side left open defaults to P
// inclusive or strinc(P) exclusive, and is unbounded when P is empty.
//
// ec may be nil when no comparison references a parameter; otherwise
// ErrEvaluationContextRequired is returned.
func (c ScanComparisons) ToRange(ec *EvaluationContext) (KeyRange, error) {
	if ec == nil && c.HasParameters() {
		return KeyRange{}, fmt.Errorf("%w: comparisons %s reference parameters", ErrEvaluationContextRequired, c)
	}

	var prefix []byte
	for i, cmp := range c.equality {
		var err error
		prefix, err = appendEquality(prefix, cmp, ec)
		if err != nil {
			return KeyRange{}, fmt.Errorf("equality[%d] %s: %w", i, cmp, err)
		}
	}

	if len(c.inequality) == 0 {
		return PrefixRange(prefix)
	}

	var low, high []byte
	for i, cmp := range c.inequality {
		l, h, err := inequalityBounds(prefix, cmp, ec)
		if err != nil {
			return KeyRange{}, fmt.Errorf("inequality[%d] %s: %w", i, cmp, err)
		}
		if l != nil && (low == nil || bytes.Compare(l, low) > 0) {
			low = l
		}
		if h != nil && (high == nil || bytes.Compare(h, high) < 0) {
			high = h
		}
	}

	if low == nil && len(prefix) > 0 {
		low = bytes.Clone(prefix)
	}
	if high == nil && len(prefix) > 0 {
		var err error
		if high, err = tuple.Strinc(prefix); err != nil {
			return KeyRange{}, err
		}
	}
	return KeyRange{Low: low, LowInclusive: low != nil, High: high}, nil
}

// ToRangeWithoutContext translates comparisons that reference no parameters.
// It exists for descriptions; execution always goes through ToRange.
func (c ScanComparisons) ToRangeWithoutContext() (KeyRange, error) {
	return c.ToRange(nil)
}

// Description renders the context-free range, falling back to the raw
// comparisons when they reference parameters.
func (c ScanComparisons) Description() string {
	r, err := c.ToRangeWithoutContext()
	if err != nil {
		return c.String()
	}
	return r.String()
}

func appendEquality(prefix []byte, cmp Comparison, ec *EvaluationContext) ([]byte, error) {
	if _, ok := cmp.(IsNull); ok {
		return tuple.AppendValue(prefix, ir.Null{})
	}
	v, err := resolve(OperandOf(cmp), ec)
	if err != nil {
		return nil, err
	}
	return tuple.AppendValue(prefix, v)
}

// inequalityBounds returns the low (inclusive) and high (exclusive) bound
// contributed by cmp. Either may be nil.
func inequalityBounds(prefix []byte, cmp Comparison, ec *EvaluationContext) (low, high []byte, err error) {
	if _, ok := cmp.(NotNull); ok {
		k, err := tuple.AppendValue(bytes.Clone(prefix), ir.Null{})
		if err != nil {
			return nil, nil, err
		}
		low, err = tuple.Strinc(k)
		return low, nil, err
	}

	v, err := resolve(OperandOf(cmp), ec)
	if err != nil {
		return nil, nil, err
	}

	if _, ok := cmp.(StartsWith); ok {
		s, isString := v.(ir.String)
		if !isString {
			return nil, nil, fmt.Errorf("STARTS_WITH operand must be a string, got %s", ir.TypeName(v))
		}
		low = tuple.AppendStringPrefix(bytes.Clone(prefix), string(s))
		high, err = tuple.Strinc(low)
		return low, high, err
	}

	k, err := tuple.AppendValue(bytes.Clone(prefix), v)
	if err != nil {
		return nil, nil, err
	}
	switch cmp.(type) {
	case GreaterThanOrEquals:
		return k, nil, nil
	case GreaterThan:
		low, err = tuple.Strinc(k)
		return low, nil, err
	case LessThan:
		return nil, k, nil
	case LessThanOrEquals:
		high, err = tuple.Strinc(k)
		return nil, high, err
	default:
		return nil, nil, fmt.Errorf("unsupported inequality %s", cmp.Op())
	}
}

func resolve(op Operand, ec *EvaluationContext) (ir.Value, error) {
	switch o := op.(type) {
	case Literal:
		return o.Value, nil
	case Parameter:
		if ec == nil {
			return nil, ErrEvaluationContextRequired
		}
		v, ok := ec.Binding(o.Name)
		if !ok {
			return nil, fmt.Errorf("%w: $%s", ErrUnboundParameter, o.Name)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("missing operand")
	}
}
