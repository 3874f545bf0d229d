package plan

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
)

// Build traces the plan with sample inputs held by the owner without
// running it. Tracing happens once: Build on a traced plan does nothing.
// A plan that will run remotely is traced this way before Send, since its
// invocations name objects at the location rather than at the owner.
func (p *Plan) Build(ctx context.Context, inputs []ir.ID) error {
	if p.traced {
		return nil
	}
	return p.build(ctx, inputs)
}

// build traces the blueprint with the owner-side objects named by inputs.
//
// Each input is announced to the plan through the owner, which yields a
// placeholder pointer located at the plan. The plan is reachable on the
// owner's network only while the blueprint runs.
func (p *Plan) build(ctx context.Context, inputs []ir.ID) error {
	p.owner.Connect(p)
	defer p.owner.Disconnect(p.ID())

	placeholders := make([]*peer.Pointer, len(inputs))
	argIDs := make([]ir.ID, len(inputs))
	for i, in := range inputs {
		obj, err := p.owner.Get(in)
		if err != nil {
			return fmt.Errorf("plan %s: input %d: %w", p.name, i, err)
		}
		ptr, err := p.owner.SendObject(ctx, obj, p.ID())
		if err != nil {
			return fmt.Errorf("plan %s: input %d: %w", p.name, i, err)
		}
		ptr.GarbageCollect = false
		placeholders[i] = ptr
		argIDs[i] = ptr.IDAtLocation
	}
	p.argIDs = argIDs
	p.traceInputs = slices.Clone(inputs)

	results, err := p.blueprint(ctx, placeholders...)
	if relErr := p.releaseEager(ctx); relErr != nil && err == nil {
		err = relErr
	}
	if err != nil {
		p.reset()
		return fmt.Errorf("plan %s: blueprint: %w", p.name, err)
	}
	if len(results) != 1 || results[0] == nil {
		p.reset()
		return &Error{
			Code:    ErrCodeBlueprintArity,
			Message: fmt.Sprintf("blueprint must return exactly one result, got %d", len(results)),
			Plan:    p.name,
		}
	}
	res := results[0]
	res.GarbageCollect = false
	p.resultIDs = []ir.ID{res.IDAtLocation}
	p.traced = true

	p.logger.Info("plan built",
		"plan", p.name,
		"id", p.id,
		"messages", len(p.readable),
		"args", len(p.argIDs),
	)
	return nil
}

// reset discards a failed trace so the plan can be traced again.
func (p *Plan) reset() {
	p.recorded = nil
	p.readable = nil
	p.argIDs = nil
	p.resultIDs = nil
	p.traceInputs = nil
	p.eagerCursor = 0
	p.eagerIDs = nil
}
