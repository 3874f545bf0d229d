package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/deferplan/internal/compiler"
	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
	"github.com/roach88/deferplan/internal/plan"
	"github.com/roach88/deferplan/internal/store"
	"github.com/roach88/deferplan/internal/testutil"
)

// binding locates a named value: the peer holding it and its identifier
// there.
type binding struct {
	Peer ir.PeerID
	ID   ir.ID
}

// Harness is the scenario execution engine.
// It runs scenarios on a deterministic network journaled to a fresh store.
type Harness struct {
	store    *store.Store
	peers    *testutil.Peers
	owner    *peer.Worker
	plan     *plan.Plan
	bindings map[string]binding
	lastSeq  int64
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Peers
// draw identifiers from fixed ranges and the plan draws its own identifier
// and result identifiers from 1, so traces are reproducible.
//
// Execution flow:
// 1. Load the blueprint directory and build the named blueprint
// 2. Create the peers and register the values
// 3. Trace with trace_with and place the plan at send_to, if given
// 4. Execute the calls, reclaiming after get_after
// 5. Store the plan and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	specs, err := compiler.LoadBlueprints(scenario.Blueprints)
	if err != nil {
		return nil, fmt.Errorf("failed to load blueprints: %w", err)
	}
	spec, ok := specs[scenario.Plan]
	if !ok {
		return nil, fmt.Errorf("blueprint %q not found in %s", scenario.Plan, scenario.Blueprints)
	}
	bp, err := plan.FromSpec(spec)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := testutil.QuietLogger()
	peers := testutil.NewPeers(scenario.Peers,
		peer.WithJournal(st.Journal()),
		peer.WithLogger(logger),
		plan.WithPlans(plan.WithLogger(logger)),
	)
	owner := peers.MustWorker(ir.PeerID(scenario.Owner))

	h := &Harness{
		store:    st,
		peers:    peers,
		owner:    owner,
		bindings: make(map[string]binding),
		logger:   logger,
	}
	h.plan = plan.New(owner, bp,
		plan.WithName(spec.Name),
		plan.WithIDSource(peer.NewSequentialIDs(1)),
		plan.WithLogger(logger),
	)

	ctx := context.Background()
	result := NewResult()

	if err := h.registerValues(scenario.Values); err != nil {
		return nil, err
	}
	// Registration is not journaled; the clock starts with the first message.
	h.lastSeq = peers.Net.Clock().Current()

	if len(scenario.TraceWith) > 0 {
		if err := h.build(ctx, scenario.TraceWith, result); err != nil {
			return nil, err
		}
	}
	if scenario.SendTo != "" {
		if _, err := h.plan.Send(ir.PeerID(scenario.SendTo)); err != nil {
			return nil, fmt.Errorf("failed to place plan: %w", err)
		}
	}

	for i, step := range scenario.Calls {
		if err := h.executeCall(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("call %d: %w", i, err)
		}
		if scenario.GetAfter != nil && *scenario.GetAfter == i {
			from := h.plan.Location()
			if _, err := h.plan.Get(); err != nil {
				return nil, fmt.Errorf("failed to reclaim plan: %w", err)
			}
			result.AddEvent(TraceEvent{Type: EventReclaim, Peer: string(from), Seq: h.lastSeq})
		}
	}

	if h.plan.Traced() {
		digest, err := st.SavePlan(ctx, h.plan.Record())
		if err != nil {
			return nil, fmt.Errorf("failed to store plan: %w", err)
		}
		result.Digest = digest
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    st,
		Peers:    peers,
		Bindings: h.bindings,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) registerValues(values []ValueDef) error {
	for _, v := range values {
		data, err := ir.FromGo(v.Data)
		if err != nil {
			return fmt.Errorf("value %q: %w", v.Name, err)
		}
		w := h.peers.MustWorker(ir.PeerID(v.Peer))
		id := w.Register(peer.NewValue(data))
		h.bindings[v.Name] = binding{Peer: w.ID(), ID: id}
	}
	return nil
}

// build traces the plan with owner-side sample values.
func (h *Harness) build(ctx context.Context, names []string, result *Result) error {
	if err := h.plan.Build(ctx, h.resolve(names)); err != nil {
		return fmt.Errorf("failed to trace plan: %w", err)
	}
	result.AddEvent(TraceEvent{Type: EventTrace, Peer: string(h.owner.ID()), Seq: h.lastSeq})
	events, err := h.dispatchesSince(ctx)
	if err != nil {
		return err
	}
	for _, e := range events {
		result.AddEvent(e)
	}
	return nil
}

// executeCall invokes the plan once, fetches the result and records a
// snapshot of the plan and of everything the peers applied meanwhile.
func (h *Harness) executeCall(ctx context.Context, i int, step CallStep, result *Result) error {
	args := plan.Args{Positional: h.resolve(step.Args)}
	if len(step.Named) > 0 {
		args.Named = make(map[string]ir.ID, len(step.Named))
		for k, name := range step.Named {
			args.Named[k] = h.bindings[name].ID
		}
	}

	seqBefore := h.lastSeq
	wasTraced := h.plan.Traced()
	wasPending := h.plan.Placement() == plan.PlacementPending

	var value ir.IRValue
	inv, callErr := h.plan.Call(ctx, args)
	if callErr == nil {
		if inv.Remote != nil {
			value, callErr = inv.Remote.Get(ctx)
			if step.As != "" {
				h.bindings[step.As] = binding{Peer: inv.Remote.Location, ID: inv.Remote.IDAtLocation}
			}
		} else {
			value, callErr = h.owner.Value(inv.ResultID)
			if step.As != "" {
				h.bindings[step.As] = binding{Peer: h.owner.ID(), ID: inv.ResultID}
			}
		}
	}

	if !wasTraced && h.plan.Traced() {
		result.AddEvent(TraceEvent{Type: EventTrace, Peer: string(h.owner.ID()), Seq: seqBefore})
	}
	if wasPending && h.plan.Placement() == plan.PlacementBound {
		result.AddEvent(TraceEvent{Type: EventTransmit, Peer: string(h.plan.Location()), Seq: seqBefore})
	}

	dispatches, err := h.dispatchesSince(ctx)
	if err != nil {
		return err
	}
	for _, e := range dispatches {
		result.AddEvent(e)
	}

	snapshot := CallSnapshot{
		Index:      i,
		Plan:       h.plan.String(),
		Placement:  h.plan.Placement().String(),
		Readable:   readable(h.plan),
		Dispatches: dispatches,
	}
	call := TraceEvent{Type: EventCall, Seq: h.lastSeq}
	if callErr != nil {
		snapshot.Error = callErr.Error()
		call.Error = callErr.Error()
	} else {
		snapshot.Result = ir.ToGo(value)
		call.Result = ir.ToGo(value)
	}
	result.Calls = append(result.Calls, snapshot)
	result.AddEvent(call)

	if msg := checkExpect(step.Expect, value, callErr); msg != "" {
		result.AddError(fmt.Sprintf("call %d: %s", i, msg))
	}

	h.logger.Info("scenario call completed",
		"call", i,
		"plan", h.plan.Name(),
		"placement", h.plan.Placement().String(),
		"dispatches", len(dispatches),
	)
	return nil
}

func (h *Harness) resolve(names []string) []ir.ID {
	ids := make([]ir.ID, len(names))
	for i, name := range names {
		ids[i] = h.bindings[name].ID
	}
	return ids
}

// dispatchesSince reads the journal entries written since the last read.
func (h *Harness) dispatchesSince(ctx context.Context) ([]TraceEvent, error) {
	records, err := h.store.ReadDispatches(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	events := []TraceEvent{}
	for _, rec := range records {
		if rec.Seq <= h.lastSeq {
			continue
		}
		events = append(events, dispatchEvent(rec))
		h.lastSeq = rec.Seq
	}
	return events, nil
}

func dispatchEvent(rec ir.DispatchRecord) TraceEvent {
	e := TraceEvent{
		Type:    EventDispatch,
		Peer:    string(rec.Peer),
		Kind:    rec.Kind.String(),
		Message: ir.ToGo(rec.Message.Value()),
		Seq:     rec.Seq,
	}
	switch rec.Kind {
	case ir.MsgCmd:
		if cmd, err := ir.CommandFromMessage(rec.Message); err == nil {
			e.Op = cmd.Op
		}
	case ir.MsgObj:
		if _, typ, _, err := ir.AnnounceFields(rec.Message); err == nil {
			e.Op = typ
		}
	}
	return e
}

func readable(p *plan.Plan) []any {
	msgs := p.Readable()
	out := make([]any, len(msgs))
	for i, m := range msgs {
		out[i] = ir.ToGo(m.Value())
	}
	return out
}

// checkExpect compares a call outcome with its expect clause and returns a
// failure message, or "" if the outcome matches.
func checkExpect(expect *ExpectClause, got ir.IRValue, err error) string {
	if expect == nil {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
		return ""
	}

	if expect.Error != "" {
		if err == nil {
			return fmt.Sprintf("expected error %q, got result %v", expect.Error, ir.ToGo(got))
		}
		if !errorMatches(err, expect.Error) {
			return fmt.Sprintf("expected error %q, got %v", expect.Error, err)
		}
		return ""
	}

	if err != nil {
		return fmt.Sprintf("unexpected error: %v", err)
	}
	want, convErr := ir.FromGo(expect.Result)
	if convErr != nil {
		return fmt.Sprintf("invalid expected result: %v", convErr)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		return fmt.Sprintf("result mismatch (-want +got):\n%s", diff)
	}
	return ""
}

// errorMatches reports whether err carries the code want or mentions it.
func errorMatches(err error, want string) bool {
	var planErr *plan.Error
	if errors.As(err, &planErr) && string(planErr.Code) == want {
		return true
	}
	var peerErr *peer.Error
	if errors.As(err, &peerErr) && string(peerErr.Code) == want {
		return true
	}
	return strings.Contains(err.Error(), want)
}
