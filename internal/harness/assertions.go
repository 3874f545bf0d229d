package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/store"
	"github.com/roach88/deferplan/internal/testutil"
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
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event.Label())
		}
	}

	return buf.String()
}

// assertTraceContains checks if some event carries the label.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Label() == assertion.Event {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %q", assertion.Event),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if the labels appear in the specified order.
// Events don't need to be consecutive (intervening events are allowed),
// and a label may repeat in the expected order.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Events {
		found := false
		for pos < len(trace) {
			label := trace[pos].Label()
			pos++
			if label == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   fmt.Sprintf("%q not found after the preceding events", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the label appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Label() == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %q", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the value currently held under a bound name.
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	b, ok := actx.Bindings[assertion.Value]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("value %q to be bound", assertion.Value),
			Actual:   "no call bound it",
		}
	}
	w, ok := actx.Peers.Worker(b.Peer)
	if !ok {
		return fmt.Errorf("final_state: unknown peer %q", b.Peer)
	}

	want, err := ir.FromGo(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: invalid expect: %w", err)
	}
	got, err := w.Value(b.ID)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", assertion.Value, ir.ToGo(want)),
			Actual:   err.Error(),
		}
	}
	if !cmp.Equal(want, got) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", assertion.Value, ir.ToGo(want)),
			Actual:   fmt.Sprintf("%s = %v", assertion.Value, ir.ToGo(got)),
		}
	}
	return nil
}

// assertJournalCount counts the messages a peer journaled, optionally of
// one kind only.
func assertJournalCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	records, err := st.ReadDispatches(ctx, ir.PeerID(assertion.Peer))
	if err != nil {
		return fmt.Errorf("journal_count: %w", err)
	}
	count := 0
	for _, rec := range records {
		if assertion.Kind == "" || rec.Kind.String() == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		what := "messages"
		if assertion.Kind != "" {
			what = assertion.Kind + " messages"
		}
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d %s journaled by %s", assertion.Count, what, assertion.Peer),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Peers    *testutil.Peers
	Bindings map[string]binding
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides peer and database access for final_state
// and journal_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Peers == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires peer context", i)
			} else {
				err = assertFinalState(actx, assertion)
			}
		case AssertJournalCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal_count requires database context", i)
			} else {
				err = assertJournalCount(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
