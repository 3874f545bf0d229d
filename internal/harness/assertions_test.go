package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
	"github.com/roach88/deferplan/internal/store"
	"github.com/roach88/deferplan/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: EventTrace, Peer: "alice", Seq: 0},
		{Type: EventTransmit, Peer: "bob", Seq: 0},
		{Type: EventDispatch, Peer: "bob", Kind: "obj", Op: "plan", Seq: 1},
		{Type: EventDispatch, Peer: "bob", Kind: "cmd", Op: "execute_plan", Seq: 2},
		{Type: EventDispatch, Peer: "bob", Kind: "cmd", Op: "add", Seq: 3},
		{Type: EventCall, Seq: 3},
		{Type: EventDispatch, Peer: "bob", Kind: "cmd", Op: "execute_plan", Seq: 4},
		{Type: EventDispatch, Peer: "bob", Kind: "cmd", Op: "add", Seq: 5},
		{Type: EventCall, Seq: 5},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Event: "transmit bob"}))

	err := assertTraceContains(trace, Assertion{Event: "transmit carol"})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceContains, aerr.Type)
	assert.Equal(t, "not found in trace", aerr.Actual)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name   string
		events []string
		ok     bool
	}{
		{"correct", []string{"trace alice", "transmit bob", "call"}, true},
		{"intervening events allowed", []string{"trace alice", "dispatch bob cmd add"}, true},
		{"repeated label", []string{"dispatch bob cmd add", "call", "dispatch bob cmd add", "call"}, true},
		{"wrong order", []string{"transmit bob", "trace alice"}, false},
		{"too many repeats", []string{"call", "call", "call"}, false},
		{"missing event", []string{"reclaim bob"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(trace, Assertion{Events: tt.events})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "dispatch bob cmd execute_plan", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "reclaim bob", Count: 0}))

	err := assertTraceCount(trace, Assertion{Event: "dispatch bob obj plan", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	peers := testutil.NewPeers([]string{"alice"}, peer.WithLogger(testutil.QuietLogger()))
	id := peers.MustWorker("alice").Register(peer.NewValue(ir.IRArray{ir.IRInt(1), ir.IRInt(2)}))
	actx := &AssertionContext{
		Ctx:      context.Background(),
		Peers:    peers,
		Bindings: map[string]binding{"v": {Peer: "alice", ID: id}, "gone": {Peer: "alice", ID: 1}},
	}

	assert.NoError(t, assertFinalState(actx, Assertion{Value: "v", Expect: []any{1, 2}}))

	err := assertFinalState(actx, Assertion{Value: "v", Expect: []any{1, 3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "v = [1 2]")

	err = assertFinalState(actx, Assertion{Value: "gone", Expect: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNKNOWN_ID")

	err = assertFinalState(actx, Assertion{Value: "never", Expect: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no call bound it")
}

func TestAssertJournalCount(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	peers := testutil.NewPeers([]string{"alice", "bob"},
		peer.WithJournal(st.Journal()),
		peer.WithLogger(testutil.QuietLogger()),
	)
	ptr, err := peers.MustWorker("alice").SendObject(ctx, peer.NewValue(ir.IRInt(1)), "bob")
	require.NoError(t, err)
	_, err = ptr.Get(ctx)
	require.NoError(t, err)

	assert.NoError(t, assertJournalCount(ctx, st, Assertion{Peer: "bob", Count: 2}))
	assert.NoError(t, assertJournalCount(ctx, st, Assertion{Peer: "bob", Kind: "obj", Count: 1}))
	assert.NoError(t, assertJournalCount(ctx, st, Assertion{Peer: "alice", Count: 0}))

	err = assertJournalCount(ctx, st, Assertion{Peer: "bob", Kind: "obj_req", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 obj_req messages journaled by bob")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: "call"},
		{Type: AssertTraceCount, Event: "call", Count: 5},
		{Type: AssertFinalState, Value: "v", Expect: 1},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Assertion failed: trace_count")
	assert.Contains(t, errs[1], "final_state requires peer context")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 occurrences",
		Actual:   "0 occurrences",
		Trace:    []TraceEvent{{Type: EventCall}},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 1 occurrences")
	assert.Contains(t, msg, "Actual: 0 occurrences")
	assert.Contains(t, msg, "[1] call")
}
