package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deferplan/internal/ir"
)

func validSpec() *ir.BlueprintSpec {
	return &ir.BlueprintSpec{
		Name:   "affine",
		Inputs: []string{"x", "b"},
		Steps: []ir.StepSpec{
			{Op: "mul", Self: "x", Args: []ir.Operand{{Literal: ir.IRInt(2)}}, Out: "y"},
			{Op: "is_none", Self: "y"},
			{Op: "add", Self: "y", Args: []ir.Operand{{Ref: "b"}}, Out: "z"},
			{Op: "sum", Self: "z", Out: "total"},
		},
		Outputs: []string{"total"},
	}
}

func TestValidateValid(t *testing.T) {
	assert.Empty(t, Validate(validSpec()))
}

func TestValidateCodes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.BlueprintSpec)
		field  string
		code   string
	}{
		{
			name:   "undefined self",
			mutate: func(s *ir.BlueprintSpec) { s.Steps[0].Self = "nope" },
			field:  "steps[0].self",
			code:   ErrBlueprintStructure,
		},
		{
			name:   "bad input name",
			mutate: func(s *ir.BlueprintSpec) { s.Inputs[1] = "b-1"; s.Steps[2].Args[0].Ref = "b-1" },
			field:  "inputs[1]",
			code:   ErrInvalidValueName,
		},
		{
			name:   "bad out name",
			mutate: func(s *ir.BlueprintSpec) { s.Steps[3].Out = "9total"; s.Outputs[0] = "9total" },
			field:  "steps[3].out",
			code:   ErrInvalidValueName,
		},
		{
			name:   "unknown op",
			mutate: func(s *ir.BlueprintSpec) { s.Steps[0].Op = "div" },
			field:  "steps[0].op",
			code:   ErrUnknownOp,
		},
		{
			name:   "binary op without operand",
			mutate: func(s *ir.BlueprintSpec) { s.Steps[0].Args = nil },
			field:  "steps[0].args",
			code:   ErrOpArity,
		},
		{
			name:   "query with operand",
			mutate: func(s *ir.BlueprintSpec) { s.Steps[1].Args = []ir.Operand{{Ref: "x"}} },
			field:  "steps[1].args",
			code:   ErrOpArity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(spec)

			errs := Validate(spec)
			require.Len(t, errs, 1, "%v", errs)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestValidateCollectsAll(t *testing.T) {
	spec := validSpec()
	spec.Steps[0].Op = "div"
	spec.Outputs = []string{"missing"}

	errs := Validate(spec)
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.ElementsMatch(t, []string{ErrBlueprintStructure, ErrUnknownOp}, codes)
}

func TestValidationErrorString(t *testing.T) {
	err := ValidationError{Field: "steps[0].op", Message: "unknown op", Code: ErrUnknownOp}
	assert.Equal(t, "[E122] steps[0].op: unknown op", err.Error())

	err.Line = 7
	assert.Equal(t, "[E122] line 7: steps[0].op: unknown op", err.Error())
}
