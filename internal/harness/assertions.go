package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/rangeplan/internal/tuple"
)

// AssertionError is one failed expectation, with the trace for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []PageEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, p := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", p.Page, formatKeys(p.Keys), p.Reason)
		}
	}
	return buf.String()
}

// CheckExpectation compares a run against exp and returns one message per
// failed check. An empty slice means the run matched.
func CheckExpectation(result *Result, exp Expectation) []string {
	var failures []string
	for _, check := range []func(*Result, Expectation) error{
		assertErrorCode,
		assertKeys,
		assertPages,
	} {
		if err := check(result, exp); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func assertErrorCode(result *Result, exp Expectation) error {
	if result.ErrorCode == exp.Error {
		return nil
	}
	expected, actual := exp.Error, result.ErrorCode
	if expected == "" {
		expected = "no error"
	}
	if actual == "" {
		actual = "no error"
	}
	return &AssertionError{Type: "error", Expected: expected, Actual: actual, Trace: result.Trace}
}

// assertKeys compares returned keys in order. Skipped when an error is
// expected.
func assertKeys(result *Result, exp Expectation) error {
	if exp.Error != "" {
		return nil
	}
	want := make([]tuple.Tuple, len(exp.Keys))
	for i, k := range exp.Keys {
		t, err := toTuple(k)
		if err != nil {
			return fmt.Errorf("expect.keys[%d]: %w", i, err)
		}
		want[i] = t
	}
	got := result.Keys()
	if keysEqual(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     "keys",
		Expected: formatKeys(want),
		Actual:   formatKeys(got),
		Trace:    result.Trace,
	}
}

func assertPages(result *Result, exp Expectation) error {
	if exp.Pages == 0 || len(result.Trace) == exp.Pages {
		return nil
	}
	return &AssertionError{
		Type:     "pages",
		Expected: fmt.Sprintf("%d pages", exp.Pages),
		Actual:   fmt.Sprintf("%d pages", len(result.Trace)),
		Trace:    result.Trace,
	}
}

func keysEqual(a, b []tuple.Tuple) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func formatKeys(keys []tuple.Tuple) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
