// Package query defines value comparisons over the fields of a composite
// primary key and translates them into byte ranges of the ordered store.
//
// A ScanComparisons value holds a contiguous prefix of equality comparisons
// followed by comparisons on one trailing field:
//
//	[EQUALS "acme", EQUALS 2024] + [GREATER_THAN_OR_EQUALS 10, LESS_THAN 20]
//
// ToRange encodes the equality prefix with the tuple package and turns the
// trailing comparisons into a low and high bound. Fields after the trailing
// field cannot be expressed: the two-list shape makes that invalid state
// unrepresentable.
//
// Comparison operands are either literals or named parameters. Parameters are
// resolved against an EvaluationContext at translation time; translating a
// parameterized set without a context fails with ErrEvaluationContextRequired.
package query
