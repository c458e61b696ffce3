package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] @%dms %s -> %v (%s)\n", ev.Seq, ev.AtMS, ev.Input, ev.Output, ev.State)
	}

	return buf.String()
}

// assertOutputContains checks that an output was emitted at least once.
func assertOutputContains(result *Result, assertion Assertion) error {
	if slices.Contains(result.Outputs(), assertion.Output) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("output %q", assertion.Output),
		Actual:   fmt.Sprintf("outputs %q", result.Outputs()),
		Trace:    result.Trace,
	}
}

// assertOutputOrder checks if outputs appear in the specified order.
// Outputs don't need to be consecutive (intervening outputs are allowed).
func assertOutputOrder(result *Result, assertion Assertion) error {
	outputs := result.Outputs()
	pos := 0
	for _, want := range assertion.Outputs {
		i := slices.Index(outputs[pos:], want)
		if i < 0 {
			return &AssertionError{
				Type:     AssertOutputOrder,
				Expected: fmt.Sprintf("outputs in order: %q", assertion.Outputs),
				Actual:   fmt.Sprintf("%q missing after position %d in %q", want, pos, outputs),
				Trace:    result.Trace,
			}
		}
		pos += i + 1
	}
	return nil
}

// assertOutputCount checks if the output appears exactly the specified number of times.
func assertOutputCount(result *Result, assertion Assertion) error {
	count := 0
	for _, out := range result.Outputs() {
		if out == assertion.Output {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertOutputCount,
			Expected: fmt.Sprintf("%d occurrences of %q", assertion.Count, assertion.Output),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}

	return nil
}

// assertOutputExact checks the complete output sequence.
func assertOutputExact(result *Result, assertion Assertion) error {
	outputs := result.Outputs()
	want := assertion.Outputs
	if want == nil {
		want = []string{}
	}
	if slices.Equal(outputs, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputExact,
		Expected: fmt.Sprintf("outputs %q", want),
		Actual:   fmt.Sprintf("outputs %q", outputs),
		Trace:    result.Trace,
	}
}

// assertFinalState checks the model state after the last step.
func assertFinalState(result *Result, assertion Assertion) error {
	if result.FinalState == assertion.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("state %s", assertion.State),
		Actual:   fmt.Sprintf("state %s", result.FinalState),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutputContains:
			err = assertOutputContains(result, assertion)
		case AssertOutputOrder:
			err = assertOutputOrder(result, assertion)
		case AssertOutputCount:
			err = assertOutputCount(result, assertion)
		case AssertOutputExact:
			err = assertOutputExact(result, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
