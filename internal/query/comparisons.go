package query

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/rangeplan/internal/ir"
)

// ScanComparisons is an immutable equality prefix plus the comparisons on
// the trailing key field. The zero value is the empty set: a full scan.
type ScanComparisons struct {
	equality   []Comparison
	inequality []Comparison
}

// NewScanComparisons validates and copies the two lists. Every comparison in
// equality must be of type Equality and every comparison in inequality of
// type Inequality.
func NewScanComparisons(equality, inequality []Comparison) (ScanComparisons, error) {
	for i, c := range equality {
		if err := validateComparison(c); err != nil {
			return ScanComparisons{}, fmt.Errorf("equality[%d]: %w", i, err)
		}
		if c.ComparisonType() != Equality {
			return ScanComparisons{}, fmt.Errorf("equality[%d]: %s is not an equality comparison", i, c.Op())
		}
	}
	for i, c := range inequality {
		if err := validateComparison(c); err != nil {
			return ScanComparisons{}, fmt.Errorf("inequality[%d]: %w", i, err)
		}
		if c.ComparisonType() != Inequality {
			return ScanComparisons{}, fmt.Errorf("inequality[%d]: %s is not an inequality comparison", i, c.Op())
		}
	}
	return ScanComparisons{
		equality:   cloneComparisons(equality),
		inequality: cloneComparisons(inequality),
	}, nil
}

// MustScanComparisons is like NewScanComparisons but panics on error.
// Use only in tests and fixtures.
func MustScanComparisons(equality, inequality []Comparison) ScanComparisons {
	c, err := NewScanComparisons(equality, inequality)
	if err != nil {
		panic(err)
	}
	return c
}

// FromComparisons splits a positional comparison list: the leading equality
// comparisons form the prefix and everything after must bound one field.
func FromComparisons(cs ...Comparison) (ScanComparisons, error) {
	split := 0
	for split < len(cs) && cs[split] != nil && cs[split].ComparisonType() == Equality {
		split++
	}
	return NewScanComparisons(cs[:split], cs[split:])
}

func cloneComparisons(cs []Comparison) []Comparison {
	if len(cs) == 0 {
		return nil
	}
	out := make([]Comparison, len(cs))
	copy(out, cs)
	return out
}

// IsEmpty reports whether there are no comparisons at all.
func (c ScanComparisons) IsEmpty() bool {
	return len(c.equality) == 0 && len(c.inequality) == 0
}

// Size is the total number of comparisons.
func (c ScanComparisons) Size() int {
	return len(c.equality) + len(c.inequality)
}

// Equality returns a copy of the equality prefix.
func (c ScanComparisons) Equality() []Comparison { return cloneComparisons(c.equality) }

// Inequality returns a copy of the trailing field comparisons.
func (c ScanComparisons) Inequality() []Comparison { return cloneComparisons(c.inequality) }

// HasParameters reports whether any operand is a Parameter.
func (c ScanComparisons) HasParameters() bool {
	return len(c.Parameters()) > 0
}

// Parameters lists referenced parameter names in comparison order, without duplicates.
func (c ScanComparisons) Parameters() []string {
	var names []string
	seen := make(map[string]bool)
	for _, cmp := range c.all() {
		if p, ok := OperandOf(cmp).(Parameter); ok && !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return names
}

// Append extends the equality prefix with other. It fails if c already has
// trailing comparisons, since no field may follow the bounded one.
func (c ScanComparisons) Append(other ScanComparisons) (ScanComparisons, error) {
	if len(c.inequality) > 0 && !other.IsEmpty() {
		return ScanComparisons{}, fmt.Errorf("cannot append %s after inequality comparisons %s", other, c)
	}
	eq := append(c.Equality(), other.equality...)
	ineq := c.inequality
	if len(other.inequality) > 0 {
		ineq = other.inequality
	}
	return ScanComparisons{equality: cloneComparisons(eq), inequality: cloneComparisons(ineq)}, nil
}

func (c ScanComparisons) all() []Comparison {
	out := make([]Comparison, 0, c.Size())
	out = append(out, c.equality...)
	return append(out, c.inequality...)
}

// Equal reports structural equality: same comparisons, same order, equal operands.
func (c ScanComparisons) Equal(other ScanComparisons) bool {
	return equalComparisonLists(c.equality, other.equality) &&
		equalComparisonLists(c.inequality, other.inequality)
}

func equalComparisonLists(a, b []Comparison) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualComparisons(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Hash is the in-memory hash. It is consistent with Equal but may change
// between releases; use PlanHash for anything persisted.
func (c ScanComparisons) Hash() uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(c.equality)))
	_, _ = d.Write(buf[:])
	for _, cmp := range c.all() {
		_, _ = d.WriteString(cmp.Op())
		_, _ = d.Write([]byte{0x00})
		if op := OperandOf(cmp); op != nil {
			_, _ = d.WriteString(operandKey(op))
		}
		_, _ = d.Write([]byte{0x00})
	}
	return d.Sum64()
}

// operandKey distinguishes literals of different types that format alike.
func operandKey(op Operand) string {
	switch o := op.(type) {
	case Literal:
		return "lit:" + ir.TypeName(o.Value) + ":" + ir.Format(o.Value)
	case Parameter:
		return "param:" + o.Name
	default:
		return fmt.Sprintf("%T", op)
	}
}

// PlanHash is stable across processes and releases. It hashes the canonical
// JSON form under ir.DomainComparisons.
func (c ScanComparisons) PlanHash() uint64 {
	return ir.MustStableHash64(ir.DomainComparisons, c.Canonical())
}

// Canonical returns the structure hashed by PlanHash. Strings that reach the
// key encoding (string literals and parameter names) are carried as their
// exact bytes, since canonical JSON normalizes text.
func (c ScanComparisons) Canonical() ir.Object {
	return ir.NewObject(
		ir.O("equality", canonicalList(c.equality)),
		ir.O("inequality", canonicalList(c.inequality)),
	)
}

func canonicalList(cs []Comparison) ir.Array {
	arr := make(ir.Array, len(cs))
	for i, cmp := range cs {
		obj := ir.NewObject(ir.O("op", ir.String(cmp.Op())))
		switch op := OperandOf(cmp).(type) {
		case Literal:
			obj["type"] = ir.String(ir.TypeName(op.Value))
			obj["literal"] = exactLiteral(op.Value)
		case Parameter:
			obj["param"] = ir.Bytes(op.Name)
		}
		arr[i] = obj
	}
	return arr
}

func exactLiteral(v ir.Value) ir.Value {
	if s, ok := v.(ir.String); ok {
		return ir.Bytes(s)
	}
	return v
}

// String renders all comparisons in order, e.g. [EQUALS 5, LESS_THAN $hi].
func (c ScanComparisons) String() string {
	all := c.all()
	parts := make([]string, len(all))
	for i, cmp := range all {
		parts[i] = cmp.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
