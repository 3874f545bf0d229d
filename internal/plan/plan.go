package plan

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
	"github.com/roach88/deferplan/internal/wire"
)

// ObjectType is the object type name plans travel under.
const ObjectType = "plan"

// Owner is the peer a plan records on behalf of and replays against.
// peer.Worker implements it.
type Owner interface {
	ID() ir.PeerID
	Register(obj peer.Object) ir.ID
	Get(id ir.ID) (peer.Object, error)
	RecvMsg(ctx context.Context, data []byte) ([]byte, error)
	SendObject(ctx context.Context, obj peer.Object, to ir.PeerID) (*peer.Pointer, error)
	SendCommand(ctx context.Context, to ir.PeerID, cmd ir.Command) (*peer.Pointer, error)
	Connect(p peer.Peer)
	Disconnect(id ir.PeerID)
	Codec() *wire.Codec
}

// Blueprint is the function a plan traces. It receives one placeholder
// pointer per input and must return exactly one result pointer.
type Blueprint func(ctx context.Context, args ...*peer.Pointer) ([]*peer.Pointer, error)

// State is the observable lifecycle state of a plan.
type State int

const (
	StateUntraced State = iota
	StateTracedLocal
	StateTracedRemotePending
	StateTracedRemoteBound
)

func (s State) String() string {
	switch s {
	case StateUntraced:
		return "untraced"
	case StateTracedLocal:
		return "traced-local"
	case StateTracedRemotePending:
		return "traced-remote-pending"
	case StateTracedRemoteBound:
		return "traced-remote-bound"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Plan records the messages its blueprint sends and replays them.
//
// INVARIANTS:
//   - recorded and readable have the same length and are index aligned
//   - the blueprint is traced at most once
//   - with a location set, the recording is transmitted at most once
//   - argIDs and resultIDs keep the arity fixed by the first trace
type Plan struct {
	id        ir.ID
	name      string
	owner     Owner
	blueprint Blueprint

	traced   bool
	recorded [][]byte
	readable []ir.Message

	argIDs    []ir.ID
	resultIDs []ir.ID

	// Trace-time bookkeeping for eager queries: the owner-side inputs the
	// placeholders stand for, how much of the recording already ran, and
	// the owner-side intermediates that run produced.
	traceInputs []ir.ID
	eagerCursor int
	eagerIDs    []ir.ID

	location  ir.PeerID
	placement Placement
	remote    *Pointer

	ids    peer.IDSource
	logger *slog.Logger
}

// Option configures a Plan.
type Option func(*Plan)

// WithName sets the plan's display name.
func WithName(name string) Option {
	return func(p *Plan) {
		p.name = name
	}
}

// WithIDSource sets where the plan draws its own identifier and the result
// identifiers of Call from. Default: peer.RandomIDs.
func WithIDSource(src peer.IDSource) Option {
	return func(p *Plan) {
		p.ids = src
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Plan) {
		p.logger = l
	}
}

// New creates an untraced, local plan.
func New(owner Owner, blueprint Blueprint, opts ...Option) *Plan {
	p := &Plan{
		owner:     owner,
		blueprint: blueprint,
		ids:       peer.RandomIDs{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.id = p.ids.Next()
	return p
}

// FromRecord rebuilds a traced, local plan owned by owner.
func FromRecord(rec ir.PlanRecord, owner Owner, opts ...Option) (*Plan, error) {
	p := &Plan{
		owner:  owner,
		ids:    peer.RandomIDs{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	recorded, err := encodeAll(owner.Codec(), rec.Messages)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", rec.Name, err)
	}
	p.id = rec.ID
	p.name = rec.Name
	p.traced = true
	p.recorded = recorded
	p.readable = slices.Clone(rec.Messages)
	p.argIDs = slices.Clone(rec.ArgIDs)
	p.resultIDs = slices.Clone(rec.ResultIDs)
	return p, nil
}

// WithPlans lets a worker rebuild plans announced to it. Received plans are
// owned by the receiving worker.
func WithPlans(opts ...Option) peer.WorkerOption {
	return peer.WithObjectType(ObjectType, func(w *peer.Worker, payload ir.IRValue) (peer.Object, error) {
		rec, err := ir.PlanRecordFromValue(payload)
		if err != nil {
			return nil, err
		}
		return FromRecord(rec, w, opts...)
	})
}

// ObjectID returns the plan's identifier.
func (p *Plan) ObjectID() ir.ID { return p.id }

// ID implements peer.Peer: the plan's identity while it is reachable.
func (p *Plan) ID() ir.PeerID {
	return ir.PeerID(strconv.FormatInt(int64(p.id), 10))
}

// Name returns the display name.
func (p *Plan) Name() string { return p.name }

// Owner returns the owning peer's identity.
func (p *Plan) Owner() ir.PeerID { return p.owner.ID() }

// Location returns where the plan is placed, or "" when it is local.
func (p *Plan) Location() ir.PeerID { return p.location }

// Placement returns the transmission state.
func (p *Plan) Placement() Placement { return p.placement }

// Remote returns the pointer to the transmitted plan, or nil.
func (p *Plan) Remote() *Pointer { return p.remote }

// ArgIDs returns the current argument bindings.
func (p *Plan) ArgIDs() []ir.ID { return slices.Clone(p.argIDs) }

// ResultIDs returns the current result bindings.
func (p *Plan) ResultIDs() []ir.ID { return slices.Clone(p.resultIDs) }

// Readable returns the decoded recording.
func (p *Plan) Readable() []ir.Message { return slices.Clone(p.readable) }

// Recorded returns the encoded recording.
func (p *Plan) Recorded() [][]byte { return slices.Clone(p.recorded) }

// Traced reports whether the blueprint has been traced.
func (p *Plan) Traced() bool { return p.traced }

// State returns the lifecycle state.
func (p *Plan) State() State {
	if !p.traced {
		return StateUntraced
	}
	switch p.placement {
	case PlacementPending:
		return StateTracedRemotePending
	case PlacementBound:
		return StateTracedRemoteBound
	}
	return StateTracedLocal
}

// Record returns the transferable form of the plan.
func (p *Plan) Record() ir.PlanRecord {
	return ir.PlanRecord{
		ID:        p.id,
		Name:      p.name,
		Owner:     p.owner.ID(),
		ArgIDs:    slices.Clone(p.argIDs),
		ResultIDs: slices.Clone(p.resultIDs),
		Messages:  slices.Clone(p.readable),
	}
}

// TypeName implements peer.Object.
func (p *Plan) TypeName() string { return ObjectType }

// Payload implements peer.Object.
func (p *Plan) Payload() (ir.IRValue, error) {
	return p.Record().Value(), nil
}

// String renders <Plan name id:N owner:O [location:L] [built]>.
func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<Plan %s id:%d owner:%s", p.name, p.id, p.owner.ID())
	if p.location != "" {
		fmt.Fprintf(&b, " location:%s", p.location)
	}
	if len(p.readable) > 0 {
		b.WriteString(" built")
	}
	b.WriteString(">")
	return b.String()
}

// RecvMsg implements peer.Peer. Messages are recorded according to their
// kind's policy; queries force everything recorded so far to run at the
// owner and are answered with the owner's response.
func (p *Plan) RecvMsg(ctx context.Context, data []byte) ([]byte, error) {
	m, err := p.owner.Codec().Decode(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", p.name, err)
	}
	policy, err := ir.PolicyFor(m.Kind)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", p.name, err)
	}
	if policy.Record {
		p.recorded = append(p.recorded, slices.Clone(data))
		p.readable = append(p.readable, m)
	}
	if policy.Eager {
		return p.runEager(ctx)
	}
	return wire.None(), nil
}

// runEager dispatches the part of the recording that has not run yet to the
// owner, with placeholders standing in for the trace inputs. The recording
// itself is left untouched.
func (p *Plan) runEager(ctx context.Context) ([]byte, error) {
	ids := make(map[ir.ID]ir.ID, len(p.argIDs))
	for i, argID := range p.argIDs {
		if i < len(p.traceInputs) {
			ids[argID] = p.traceInputs[i]
		}
	}

	resp := wire.None()
	for p.eagerCursor < len(p.readable) {
		m := p.readable[p.eagerCursor].ReplaceIDMap(ids, p.ID(), p.owner.ID())
		data, err := p.owner.Codec().Encode(m)
		if err != nil {
			return nil, err
		}
		resp, err = p.owner.RecvMsg(ctx, data)
		if err != nil {
			return nil, err
		}
		if m.Kind == ir.MsgCmd {
			if cmd, err := ir.CommandFromMessage(m); err == nil {
				p.eagerIDs = append(p.eagerIDs, cmd.ReturnIDs...)
			}
		}
		p.eagerCursor++
	}
	return resp, nil
}

// releaseEager deletes the intermediates an eager run left at the owner.
func (p *Plan) releaseEager(ctx context.Context) error {
	ids := p.eagerIDs
	p.eagerIDs = nil
	for _, id := range ids {
		data, err := p.owner.Codec().Encode(ir.Query(ir.MsgObjDel, ir.Ref{ID: id, Peer: p.owner.ID()}))
		if err != nil {
			return fmt.Errorf("plan %s: %w", p.name, err)
		}
		if _, err := p.owner.RecvMsg(ctx, data); err != nil {
			return fmt.Errorf("plan %s: release %d: %w", p.name, id, err)
		}
	}
	if len(ids) > 0 {
		p.logger.Debug("eager intermediates released", "plan", p.name, "count", len(ids))
	}
	return nil
}

// rewrite applies fn to every recorded message and swaps in the new
// recording once every message has been re-encoded.
func (p *Plan) rewrite(fn func(ir.Message) ir.Message) error {
	readable := make([]ir.Message, len(p.readable))
	for i, m := range p.readable {
		readable[i] = fn(m)
	}
	recorded, err := encodeAll(p.owner.Codec(), readable)
	if err != nil {
		return fmt.Errorf("plan %s: %w", p.name, err)
	}
	p.readable = readable
	p.recorded = recorded
	return nil
}

func encodeAll(c *wire.Codec, msgs []ir.Message) ([][]byte, error) {
	out := make([][]byte, len(msgs))
	for i, m := range msgs {
		data, err := c.Encode(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}
