package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/deferplan/internal/ir"
)

// CompileBlueprint parses a CUE value into a BlueprintSpec.
//
// The value should be the blueprint struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`plan: double: { inputs: ["x"], ... }`)
//	spec, err := CompileBlueprint(v.LookupPath(cue.ParsePath("plan.double")))
//
// The compiled spec is validated before it is returned; the first
// validation error is reported as a CompileError at the struct position.
func CompileBlueprint(v cue.Value) (*ir.BlueprintSpec, error) {
	spec, err := ParseBlueprint(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(spec); len(errs) > 0 {
		return nil, &CompileError{
			Field:   errs[0].Field,
			Message: fmt.Sprintf("[%s] %s", errs[0].Code, errs[0].Message),
			Pos:     v.Pos(),
		}
	}
	return spec, nil
}

// ParseBlueprint reads the structure of a blueprint without validating it.
// Callers that want every problem at once run Validate on the result.
func ParseBlueprint(v cue.Value) (*ir.BlueprintSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.BlueprintSpec{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	spec.Inputs, err = parseNames(v, "inputs")
	if err != nil {
		return nil, err
	}
	spec.Outputs, err = parseNames(v, "outputs")
	if err != nil {
		return nil, err
	}
	spec.Steps, err = parseSteps(v)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// parseNames reads a required list of strings.
func parseNames(v cue.Value, field string) ([]string, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return nil, &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	names := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, len(names)),
				Message: "must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		names = append(names, s)
	}
	return names, nil
}

func parseSteps(v cue.Value) ([]ir.StepSpec, error) {
	val := v.LookupPath(cue.ParsePath("steps"))
	if !val.Exists() {
		return []ir.StepSpec{}, nil
	}

	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	steps := []ir.StepSpec{}
	for iter.Next() {
		step, err := parseStep(iter.Value(), len(steps))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseStep(v cue.Value, index int) (ir.StepSpec, error) {
	var step ir.StepSpec
	field := fmt.Sprintf("steps[%d]", index)

	for _, req := range []struct {
		name string
		dst  *string
	}{{"op", &step.Op}, {"self", &step.Self}} {
		val := v.LookupPath(cue.ParsePath(req.name))
		if !val.Exists() {
			return step, &CompileError{
				Field:   field + "." + req.name,
				Message: req.name + " is required",
				Pos:     v.Pos(),
			}
		}
		s, err := val.String()
		if err != nil {
			return step, formatCUEError(err)
		}
		*req.dst = s
	}

	if outVal := v.LookupPath(cue.ParsePath("out")); outVal.Exists() {
		out, err := outVal.String()
		if err != nil {
			return step, formatCUEError(err)
		}
		step.Out = out
	}

	argsVal := v.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		return step, nil
	}
	iter, err := argsVal.List()
	if err != nil {
		return step, formatCUEError(err)
	}
	for iter.Next() {
		operand, err := parseOperand(iter.Value(), fmt.Sprintf("%s.args[%d]", field, len(step.Args)))
		if err != nil {
			return step, err
		}
		step.Args = append(step.Args, operand)
	}
	return step, nil
}

// parseOperand treats a string as a reference to a named value and anything
// else as a literal.
func parseOperand(v cue.Value, field string) (ir.Operand, error) {
	if v.IncompleteKind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return ir.Operand{}, formatCUEError(err)
		}
		return ir.Operand{Ref: s}, nil
	}
	lit, err := compileLiteral(v, field)
	if err != nil {
		return ir.Operand{}, err
	}
	return ir.Operand{Literal: lit}, nil
}

// compileLiteral converts a concrete CUE value into an IR literal. Strings
// nested inside lists are data, not references.
func compileLiteral(v cue.Value, field string) (ir.IRValue, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := compileLiteral(iter.Value(), fmt.Sprintf("%s[%d]", field, len(arr)))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("[%s] float literals are forbidden, use int instead", ErrFloatLiteral),
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported literal kind %s", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}
