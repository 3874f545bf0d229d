package plan

import (
	"context"
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// Placement is where a plan runs and whether its recording has been
// transmitted there.
type Placement int

const (
	// PlacementLocal runs against the owner. Nothing is transmitted.
	PlacementLocal Placement = iota
	// PlacementPending has a location; the recording goes out on the next
	// execution.
	PlacementPending
	// PlacementBound has transmitted the recording and holds a pointer to it.
	PlacementBound
)

func (pl Placement) String() string {
	switch pl {
	case PlacementLocal:
		return "local"
	case PlacementPending:
		return "pending"
	case PlacementBound:
		return "bound"
	}
	return fmt.Sprintf("placement(%d)", int(pl))
}

// Send places the plan at location. Nothing is transmitted until the next
// execution. A plan that already has a location must be reclaimed with Get
// first.
func (p *Plan) Send(location ir.PeerID) (*Plan, error) {
	if p.placement != PlacementLocal {
		return nil, &Error{
			Code:    ErrCodeInvalidPlacement,
			Message: fmt.Sprintf("plan is already placed at %s; call Get first", p.location),
			Plan:    p.name,
		}
	}
	p.location = location
	p.placement = PlacementPending
	return p, nil
}

// Get reclaims a placed plan: peer references to the location are rewritten
// back to the owner and the remote pointer is dropped. A local plan is
// returned unchanged.
func (p *Plan) Get() (*Plan, error) {
	if p.placement == PlacementLocal {
		return p, nil
	}
	from, to := p.location, p.owner.ID()
	if err := p.rewrite(func(m ir.Message) ir.Message {
		return m.ReplaceIDs(ir.NoID, ir.NoID, from, to)
	}); err != nil {
		return nil, err
	}
	p.location = ""
	p.remote = nil
	p.placement = PlacementLocal
	p.logger.Info("plan reclaimed", "plan", p.name, "id", p.id, "from", from)
	return p, nil
}

// transmit sends the recording to the plan's location, once. References to
// the owner, and to the plan itself in a recording that never ran locally,
// are rewritten to the location for the send; a failed send leaves the
// recording as it was.
func (p *Plan) transmit(ctx context.Context) error {
	from, to := p.owner.ID(), p.location
	self := p.ID()
	prevReadable, prevRecorded := p.readable, p.recorded
	if err := p.rewrite(func(m ir.Message) ir.Message {
		m = m.ReplaceIDs(ir.NoID, ir.NoID, from, to)
		return m.ReplaceIDs(ir.NoID, ir.NoID, self, to)
	}); err != nil {
		return err
	}
	ptr, err := p.owner.SendObject(ctx, p, to)
	if err != nil {
		p.readable, p.recorded = prevReadable, prevRecorded
		return fmt.Errorf("plan %s: transmit to %s: %w", p.name, to, err)
	}
	p.remote = &Pointer{
		ID:           ptr.ID,
		Location:     ptr.Location,
		IDAtLocation: ptr.IDAtLocation,
		Owner:        from,
	}
	p.placement = PlacementBound
	p.logger.Info("plan transmitted", "plan", p.name, "id", p.id, "to", to, "messages", len(p.readable))
	return nil
}
