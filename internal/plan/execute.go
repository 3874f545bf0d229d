package plan

import (
	"context"
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
)

// Args are the arguments of a direct call. Named arguments are rejected.
type Args struct {
	Positional []ir.ID
	Named      map[string]ir.ID
}

// Invocation is the outcome of Call. ResultID is where the result is stored:
// at the owner for a local plan, at the plan's location otherwise, in which
// case Remote points to it.
type Invocation struct {
	ResultID ir.ID
	Remote   *peer.Pointer
}

// Call invokes the plan with a freshly drawn result identifier.
//
// Result identifiers are random and not checked against the owner's
// registry.
func (p *Plan) Call(ctx context.Context, args Args) (Invocation, error) {
	if len(args.Named) > 0 {
		return Invocation{}, &Error{
			Code:    ErrCodeUnsupportedInvocation,
			Message: "named arguments are not supported",
			Plan:    p.name,
		}
	}
	resultID := p.ids.Next()
	ptr, err := p.Execute(ctx, args.Positional, []ir.ID{resultID})
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{ResultID: resultID, Remote: ptr}, nil
}

// Execute runs the plan, tracing it first if needed.
//
// A local plan replays its recording against the owner with args and
// resultIDs bound in place of the previous bindings and returns nil; the
// result is then held by the owner under resultIDs. A placed plan is
// transmitted on its first execution and afterwards only receives an
// execute_plan request; the returned pointer refers to the result at the
// plan's location. When that first execution also traces, args name objects
// at the owner, so they are sent to the location and the request carries
// their identifiers there.
func (p *Plan) Execute(ctx context.Context, args, resultIDs []ir.ID) (*peer.Pointer, error) {
	traced := p.traced
	if !traced {
		if err := p.build(ctx, args); err != nil {
			return nil, err
		}
	}
	if err := p.checkArity(args, resultIDs); err != nil {
		return nil, err
	}

	switch p.placement {
	case PlacementPending:
		if !traced {
			shipped, err := p.shipArgs(ctx, args)
			if err != nil {
				return nil, err
			}
			args = shipped
		}
		if err := p.transmit(ctx); err != nil {
			return nil, err
		}
		return p.requestExecute(ctx, args, resultIDs)
	case PlacementBound:
		return p.requestExecute(ctx, args, resultIDs)
	default:
		return nil, p.executeLocal(ctx, args, resultIDs)
	}
}

// shipArgs sends the owner's argument objects to the plan's location and
// returns their identifiers there.
func (p *Plan) shipArgs(ctx context.Context, args []ir.ID) ([]ir.ID, error) {
	out := make([]ir.ID, len(args))
	for i, id := range args {
		obj, err := p.owner.Get(id)
		if err != nil {
			return nil, fmt.Errorf("plan %s: argument %d: %w", p.name, i, err)
		}
		ptr, err := p.owner.SendObject(ctx, obj, p.location)
		if err != nil {
			return nil, fmt.Errorf("plan %s: send argument %d to %s: %w", p.name, i, p.location, err)
		}
		out[i] = ptr.IDAtLocation
	}
	return out, nil
}

func (p *Plan) checkArity(args, resultIDs []ir.ID) error {
	if len(args) != len(p.argIDs) {
		return &Error{
			Code:    ErrCodeArgumentCount,
			Message: fmt.Sprintf("expected %d arguments, got %d", len(p.argIDs), len(args)),
			Plan:    p.name,
		}
	}
	if len(resultIDs) != len(p.resultIDs) {
		return &Error{
			Code:    ErrCodeArgumentCount,
			Message: fmt.Sprintf("expected %d result ids, got %d", len(p.resultIDs), len(resultIDs)),
			Plan:    p.name,
		}
	}
	return nil
}

// executeLocal rebinds the recording and dispatches it to the owner in
// recorded order.
func (p *Plan) executeLocal(ctx context.Context, args, resultIDs []ir.ID) error {
	self, owner := p.ID(), p.owner.ID()
	ids := make(map[ir.ID]ir.ID, len(args)+len(resultIDs))
	for i := range resultIDs {
		ids[p.resultIDs[i]] = resultIDs[i]
	}
	for i := range args {
		ids[p.argIDs[i]] = args[i]
	}

	err := p.rewrite(func(m ir.Message) ir.Message {
		return m.ReplaceIDMap(ids, self, owner)
	})
	if err != nil {
		return err
	}
	p.argIDs = append(p.argIDs[:0:0], args...)
	p.resultIDs = append(p.resultIDs[:0:0], resultIDs...)

	for i, data := range p.recorded {
		if _, err := p.owner.RecvMsg(ctx, data); err != nil {
			return fmt.Errorf("plan %s: message %d (%s): %w", p.name, i, p.readable[i].Kind, err)
		}
	}
	return nil
}

// requestExecute asks the transmitted plan to run.
func (p *Plan) requestExecute(ctx context.Context, args, resultIDs []ir.ID) (*peer.Pointer, error) {
	cmd := ir.Command{
		Op:        peer.OpExecutePlan,
		Self:      ir.Ref{ID: p.remote.IDAtLocation, Peer: p.remote.Location},
		Args:      ir.IRArray{ir.IDs(args...), ir.IDs(resultIDs...)},
		Kwargs:    ir.IRObject{},
		ReturnIDs: resultIDs,
	}
	return p.owner.SendCommand(ctx, p.location, cmd)
}
