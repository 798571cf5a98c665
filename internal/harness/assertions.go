package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/workshopdl/internal/store"
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

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Call)
		}
	}

	return buf.String()
}

// assertTraceContains checks that some call starts with the prefix.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if strings.HasPrefix(event.Call, assertion.Call) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %q", assertion.Call),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that calls matching the prefixes appear in order.
// Each prefix is searched after the previous match, so intervening calls
// are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for i, prefix := range assertion.Calls {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if strings.HasPrefix(event.Call, prefix) {
				found = true
				break
			}
		}
		if !found {
			actual := fmt.Sprintf("missing call %q", prefix)
			if i > 0 {
				actual = fmt.Sprintf("no call %q after %q", prefix, assertion.Calls[i-1])
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %q", assertion.Calls),
				Actual:   actual,
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count calls start with the prefix.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if strings.HasPrefix(event.Call, assertion.Call) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %q", assertion.Count, assertion.Call),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the journaled run against the expected fields
// (subset match, values compared in text form).
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	run, err := actx.Store.ReadRun(actx.Ctx, actx.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("journaled run %s", actx.RunID),
			Actual:   "run not found",
		}
	}
	if err != nil {
		return fmt.Errorf("read run: %w", err)
	}

	actual := runFields(run)

	// Sort keys so the first reported mismatch is stable.
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := assertion.Expect[key]
		got, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q is not a run field", key),
			}
		}
		if got != want {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %q", key, want),
				Actual:   fmt.Sprintf("field %q = %q", key, got),
			}
		}
	}
	return nil
}

// assertTransitions checks the journaled phase sequence.
func assertTransitions(actx *AssertionContext, assertion Assertion) error {
	transitions, err := actx.Store.ReadTransitions(actx.Ctx, actx.RunID)
	if err != nil {
		return fmt.Errorf("read transitions: %w", err)
	}

	phases := make([]string, 0, len(transitions))
	for _, tr := range transitions {
		phases = append(phases, tr.Phase)
	}
	if !slices.Equal(phases, assertion.Phases) {
		return &AssertionError{
			Type:     AssertTransitions,
			Expected: fmt.Sprintf("%v", assertion.Phases),
			Actual:   fmt.Sprintf("%v", phases),
		}
	}
	return nil
}

// runFields flattens a run by its JSON field names.
func runFields(r store.RunSummary) map[string]string {
	return map[string]string{
		"run_id":     r.ID,
		"item_id":    strconv.FormatUint(r.ItemID, 10),
		"app_id":     strconv.FormatUint(r.AppID, 10),
		"title":      r.Title,
		"phase":      r.Phase,
		"via":        r.Via,
		"path":       r.Path,
		"error_code": r.ErrorCode,
		"message":    r.Message,
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string

	// Journaled is false when the run ended before the item was resolved,
	// leaving nothing in the journal.
	Journaled bool
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for final_state and
// transitions assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertTransitions:
			switch {
			case actx == nil || actx.Store == nil:
				err = fmt.Errorf("assertion[%d]: %s requires journal context", i, assertion.Type)
			case !actx.Journaled:
				err = fmt.Errorf("assertion[%d]: %s: run %s was never journaled", i, assertion.Type, actx.RunID)
			case assertion.Type == AssertFinalState:
				err = assertFinalState(actx, assertion)
			default:
				err = assertTransitions(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
