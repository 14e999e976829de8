package query

import (
	"fmt"
	"strings"

	"github.com/roach88/rangeplan/internal/ir"
)

// ComparisonType classifies a comparison for range translation.
type ComparisonType int

const (
	// Equality comparisons pin a key field to one value.
	Equality ComparisonType = iota
	// Inequality comparisons bound the trailing key field.
	Inequality
)

func (t ComparisonType) String() string {
	if t == Equality {
		return "EQUALITY"
	}
	return "INEQUALITY"
}

// Operand is the right-hand side of a comparison: a Literal or a Parameter.
// Sealed.
type Operand interface {
	operand()
	String() string
}

// Literal is a constant operand.
type Literal struct {
	Value ir.Value
}

func (Literal) operand() {}

func (l Literal) String() string { return ir.Format(l.Value) }

// Parameter is resolved against an EvaluationContext at execution time.
type Parameter struct {
	Name string
}

func (Parameter) operand() {}

func (p Parameter) String() string { return "$" + p.Name }

// Lit is shorthand for Literal{Value: v}.
func Lit(v ir.Value) Literal { return Literal{Value: v} }

// Param is shorthand for Parameter{Name: name}.
func Param(name string) Parameter { return Parameter{Name: name} }

// Comparison is one predicate on a key field.
//
// This is a sealed interface. Implementations:
//   - Equals, IsNull (equality)
//   - GreaterThan, GreaterThanOrEquals, LessThan, LessThanOrEquals,
//     StartsWith, NotNull (inequality)
type Comparison interface {
	comparison()

	// Op is the upper-case operator name, e.g. EQUALS.
	Op() string

	// ComparisonType reports whether the comparison pins or bounds its field.
	ComparisonType() ComparisonType

	String() string
}

// Equals matches a field equal to the operand.
type Equals struct{ Operand Operand }

// IsNull matches a null field.
type IsNull struct{}

// NotNull matches any non-null field.
type NotNull struct{}

// GreaterThan matches a field strictly greater than the operand.
type GreaterThan struct{ Operand Operand }

// GreaterThanOrEquals matches a field greater than or equal to the operand.
type GreaterThanOrEquals struct{ Operand Operand }

// LessThan matches a field strictly less than the operand.
type LessThan struct{ Operand Operand }

// LessThanOrEquals matches a field less than or equal to the operand.
type LessThanOrEquals struct{ Operand Operand }

// StartsWith matches a string field with the operand as prefix.
type StartsWith struct{ Operand Operand }

func (Equals) comparison()              {}
func (IsNull) comparison()              {}
func (NotNull) comparison()             {}
func (GreaterThan) comparison()         {}
func (GreaterThanOrEquals) comparison() {}
func (LessThan) comparison()            {}
func (LessThanOrEquals) comparison()    {}
func (StartsWith) comparison()          {}

func (Equals) Op() string              { return "EQUALS" }
func (IsNull) Op() string              { return "IS_NULL" }
func (NotNull) Op() string             { return "NOT_NULL" }
func (GreaterThan) Op() string         { return "GREATER_THAN" }
func (GreaterThanOrEquals) Op() string { return "GREATER_THAN_OR_EQUALS" }
func (LessThan) Op() string            { return "LESS_THAN" }
func (LessThanOrEquals) Op() string    { return "LESS_THAN_OR_EQUALS" }
func (StartsWith) Op() string          { return "STARTS_WITH" }

func (Equals) ComparisonType() ComparisonType              { return Equality }
func (IsNull) ComparisonType() ComparisonType              { return Equality }
func (NotNull) ComparisonType() ComparisonType             { return Inequality }
func (GreaterThan) ComparisonType() ComparisonType         { return Inequality }
func (GreaterThanOrEquals) ComparisonType() ComparisonType { return Inequality }
func (LessThan) ComparisonType() ComparisonType            { return Inequality }
func (LessThanOrEquals) ComparisonType() ComparisonType    { return Inequality }
func (StartsWith) ComparisonType() ComparisonType          { return Inequality }

func (c Equals) String() string              { return formatComparison(c) }
func (c IsNull) String() string              { return formatComparison(c) }
func (c NotNull) String() string             { return formatComparison(c) }
func (c GreaterThan) String() string         { return formatComparison(c) }
func (c GreaterThanOrEquals) String() string { return formatComparison(c) }
func (c LessThan) String() string            { return formatComparison(c) }
func (c LessThanOrEquals) String() string    { return formatComparison(c) }
func (c StartsWith) String() string          { return formatComparison(c) }

func formatComparison(c Comparison) string {
	op := OperandOf(c)
	if op == nil {
		return c.Op()
	}
	return c.Op() + " " + op.String()
}

// OperandOf returns the operand of c, or nil for IsNull and NotNull.
func OperandOf(c Comparison) Operand {
	switch cmp := c.(type) {
	case Equals:
		return cmp.Operand
	case GreaterThan:
		return cmp.Operand
	case GreaterThanOrEquals:
		return cmp.Operand
	case LessThan:
		return cmp.Operand
	case LessThanOrEquals:
		return cmp.Operand
	case StartsWith:
		return cmp.Operand
	default:
		return nil
	}
}

// NewComparison builds a comparison from an operator name. Names are matched
// case-insensitively against Op() values. operand is ignored for IS_NULL and
// NOT_NULL and required for the rest.
func NewComparison(op string, operand Operand) (Comparison, error) {
	name := strings.ToUpper(strings.TrimSpace(op))
	var c Comparison
	switch name {
	case "IS_NULL":
		return IsNull{}, nil
	case "NOT_NULL":
		return NotNull{}, nil
	case "EQUALS":
		c = Equals{Operand: operand}
	case "GREATER_THAN":
		c = GreaterThan{Operand: operand}
	case "GREATER_THAN_OR_EQUALS":
		c = GreaterThanOrEquals{Operand: operand}
	case "LESS_THAN":
		c = LessThan{Operand: operand}
	case "LESS_THAN_OR_EQUALS":
		c = LessThanOrEquals{Operand: operand}
	case "STARTS_WITH":
		c = StartsWith{Operand: operand}
	default:
		return nil, fmt.Errorf("unknown comparison operator %q", op)
	}
	if operand == nil {
		return nil, fmt.Errorf("comparison %s requires an operand", name)
	}
	return c, nil
}

// EqualComparisons reports whether a and b are the same kind of comparison
// with equal operands.
func EqualComparisons(a, b Comparison) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Op() != b.Op() {
		return false
	}
	return equalOperands(OperandOf(a), OperandOf(b))
}

func equalOperands(a, b Operand) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Literal:
		bv, ok := b.(Literal)
		return ok && ir.Equal(av.Value, bv.Value)
	case Parameter:
		bv, ok := b.(Parameter)
		return ok && av.Name == bv.Name
	default:
		return false
	}
}

// validateComparison checks operand presence and literal kinds.
func validateComparison(c Comparison) error {
	if c == nil {
		return fmt.Errorf("nil comparison")
	}
	switch c.(type) {
	case IsNull, NotNull:
		return nil
	}
	switch op := OperandOf(c).(type) {
	case nil:
		return fmt.Errorf("%s: missing operand", c.Op())
	case Literal:
		return validateLiteral(c, op.Value)
	case Parameter:
		if op.Name == "" {
			return fmt.Errorf("%s: empty parameter name", c.Op())
		}
	}
	return nil
}

func validateLiteral(c Comparison, v ir.Value) error {
	switch v.(type) {
	case nil:
		return fmt.Errorf("%s: nil literal", c.Op())
	case ir.Array, ir.Object:
		return fmt.Errorf("%s: %s literal cannot be compared against a key field", c.Op(), ir.TypeName(v))
	}
	if _, ok := c.(StartsWith); ok {
		if _, isString := v.(ir.String); !isString {
			return fmt.Errorf("STARTS_WITH: operand must be a string, got %s", ir.TypeName(v))
		}
	}
	return nil
}
