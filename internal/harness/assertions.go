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
	Trace    []TraceEntry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", entry.Seq, describe(entry))
		}
	}

	return buf.String()
}

func describe(e TraceEntry) string {
	switch e.Kind {
	case TraceCommand:
		return fmt.Sprintf("%s %s", e.Key, e.Command)
	case TraceResponse:
		return fmt.Sprintf("%s -> %d %s", e.Key, e.Status, e.Outcome)
	default:
		return fmt.Sprintf("event %s %s (%d handlers)", e.Type, e.Resource, e.Handlers)
	}
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, empty when all hold.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCommands:
			err = assertTraceCommands(result, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result, a)
		case AssertTraceCount:
			err = assertTraceCount(result, a)
		case AssertHandleState:
			err = assertHandleState(result, a)
		case AssertStepResult:
			err = assertStepResult(result, a)
		case AssertUnanswered:
			err = assertUnanswered(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// assertTraceCommands checks the exact command sequence.
func assertTraceCommands(result *Result, a Assertion) error {
	got := result.Commands()
	if slices.Equal(got, a.Commands) || (len(got) == 0 && len(a.Commands) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCommands,
		Expected: fmt.Sprintf("%q", a.Commands),
		Actual:   fmt.Sprintf("%q", got),
		Trace:    result.Trace,
	}
}

// assertTraceOrder checks that commands appear in the given order.
// Commands don't need to be consecutive (intervening commands are allowed).
func assertTraceOrder(result *Result, a Assertion) error {
	got := result.Commands()
	pos := 0
	for _, want := range a.Commands {
		i := slices.Index(got[pos:], want)
		if i < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("commands in order: %q", a.Commands),
				Actual:   fmt.Sprintf("%q not found after position %d", want, pos),
				Trace:    result.Trace,
			}
		}
		pos += i + 1
	}
	return nil
}

// assertTraceCount checks the command was sent exactly Count times.
func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for _, cmd := range result.Commands() {
		if cmd == a.Command {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Command),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}

	return nil
}

func assertHandleState(result *Result, a Assertion) error {
	hs, ok := result.Handles[a.Handle]
	if !ok {
		return &AssertionError{
			Type:     AssertHandleState,
			Expected: fmt.Sprintf("handle %s in state %s", a.Handle, a.State),
			Actual:   "no such handle",
		}
	}
	if !strings.EqualFold(hs.State, a.State) {
		return &AssertionError{
			Type:     AssertHandleState,
			Expected: fmt.Sprintf("handle %s in state %s", a.Handle, a.State),
			Actual:   fmt.Sprintf("state %s", hs.State),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertStepResult(result *Result, a Assertion) error {
	for _, sr := range result.Steps {
		if sr.Step != a.Step {
			continue
		}
		if strings.EqualFold(sr.State, a.State) {
			return nil
		}
		actual := sr.State
		if sr.Error != "" {
			actual += " (" + sr.Error + ")"
		}
		return &AssertionError{
			Type:     AssertStepResult,
			Expected: fmt.Sprintf("step %d %s", a.Step, a.State),
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	return &AssertionError{
		Type:     AssertStepResult,
		Expected: fmt.Sprintf("step %d %s", a.Step, a.State),
		Actual:   "step returned no result",
	}
}

func assertUnanswered(result *Result, a Assertion) error {
	if result.Unanswered == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertUnanswered,
		Expected: fmt.Sprintf("%d unanswered commands", a.Count),
		Actual:   fmt.Sprintf("%d unanswered commands", result.Unanswered),
		Trace:    result.Trace,
	}
}
