package plan

import (
	"context"
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
)

// FromSpec turns a declarative blueprint into a Blueprint. Steps run in
// order against the pointers bound to their names; query steps (get, shape,
// is_none) ask the traced value a question and so force the recording made
// so far to run.
func FromSpec(spec *ir.BlueprintSpec) (Blueprint, error) {
	if errs := spec.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("blueprint %s: %w", spec.Name, errs[0])
	}
	return func(ctx context.Context, args ...*peer.Pointer) ([]*peer.Pointer, error) {
		if len(args) != len(spec.Inputs) {
			return nil, &Error{
				Code:    ErrCodeArgumentCount,
				Message: fmt.Sprintf("blueprint takes %d inputs, got %d", len(spec.Inputs), len(args)),
				Plan:    spec.Name,
			}
		}
		env := make(map[string]*peer.Pointer, len(spec.Inputs)+len(spec.Steps))
		for i, name := range spec.Inputs {
			env[name] = args[i]
		}

		for i, step := range spec.Steps {
			if err := runStep(ctx, env, step); err != nil {
				return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
			}
		}

		out := make([]*peer.Pointer, len(spec.Outputs))
		for i, name := range spec.Outputs {
			out[i] = env[name]
		}
		return out, nil
	}, nil
}

func runStep(ctx context.Context, env map[string]*peer.Pointer, step ir.StepSpec) error {
	self := env[step.Self]
	if kind, ok := ir.QueryKind(step.Op); ok {
		var err error
		switch kind {
		case ir.MsgObjReq:
			_, err = self.Get(ctx)
		case ir.MsgGetShape:
			_, err = self.Shape(ctx)
		case ir.MsgIsNone:
			_, err = self.IsNone(ctx)
		}
		return err
	}

	operands := make([]any, len(step.Args))
	for i, arg := range step.Args {
		if arg.Ref != "" {
			operands[i] = env[arg.Ref]
			continue
		}
		operands[i] = arg.Literal
	}
	res, err := self.Op(ctx, step.Op, operands...)
	if err != nil {
		return err
	}
	env[step.Out] = res
	return nil
}
