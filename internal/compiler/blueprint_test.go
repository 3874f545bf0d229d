package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deferplan/internal/ir"
)

func compileNamed(t *testing.T, src, name string) (*ir.BlueprintSpec, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileBlueprint(v.LookupPath(cue.ParsePath("plan." + name)))
}

func TestCompileBlueprintBasic(t *testing.T) {
	spec, err := compileNamed(t, `
		plan: affine: {
			inputs: ["x", "b"]
			steps: [
				{op: "mul", self: "x", args: [2], out: "y"},
				{op: "shape", self: "y"},
				{op: "add", self: "y", args: ["b"], out: "z"},
			]
			outputs: ["z"]
		}
	`, "affine")
	require.NoError(t, err)

	assert.Equal(t, "affine", spec.Name)
	assert.Equal(t, []string{"x", "b"}, spec.Inputs)
	assert.Equal(t, []string{"z"}, spec.Outputs)
	require.Len(t, spec.Steps, 3)

	assert.Equal(t, ir.StepSpec{Op: "mul", Self: "x", Args: []ir.Operand{{Literal: ir.IRInt(2)}}, Out: "y"}, spec.Steps[0])
	assert.Equal(t, ir.StepSpec{Op: "shape", Self: "y"}, spec.Steps[1])
	assert.Equal(t, []ir.Operand{{Ref: "b"}}, spec.Steps[2].Args)
}

func TestCompileBlueprintListLiteral(t *testing.T) {
	spec, err := compileNamed(t, `
		plan: shift: {
			inputs: ["v"]
			steps: [{op: "add", self: "v", args: [[1, 2, 3]], out: "w"}]
			outputs: ["w"]
		}
	`, "shift")
	require.NoError(t, err)

	assert.Equal(t, ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)}, spec.Steps[0].Args[0].Literal)
}

func TestCompileBlueprintNoSteps(t *testing.T) {
	spec, err := compileNamed(t, `
		plan: identity: {
			inputs: ["x"]
			outputs: ["x"]
		}
	`, "identity")
	require.NoError(t, err)
	assert.Empty(t, spec.Steps)
}

func TestCompileBlueprintErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		msg   string
	}{
		{
			name:  "missing inputs",
			body:  `outputs: ["x"]`,
			field: "inputs",
			msg:   "inputs is required",
		},
		{
			name:  "missing outputs",
			body:  `inputs: ["x"]`,
			field: "outputs",
			msg:   "outputs is required",
		},
		{
			name:  "missing op",
			body:  `inputs: ["x"], steps: [{self: "x", out: "y"}], outputs: ["y"]`,
			field: "steps[0].op",
			msg:   "op is required",
		},
		{
			name:  "float literal",
			body:  `inputs: ["x"], steps: [{op: "mul", self: "x", args: [1.5], out: "y"}], outputs: ["y"]`,
			field: "steps[0].args[0]",
			msg:   ErrFloatLiteral,
		},
		{
			name:  "undefined ref",
			body:  `inputs: ["x"], steps: [{op: "add", self: "x", args: ["q"], out: "y"}], outputs: ["y"]`,
			field: "steps[0].args[0]",
			msg:   ErrBlueprintStructure,
		},
		{
			name:  "unknown op",
			body:  `inputs: ["x"], steps: [{op: "pow", self: "x", args: [2], out: "y"}], outputs: ["y"]`,
			field: "steps[0].op",
			msg:   ErrUnknownOp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileNamed(t, "plan: bad: {"+tt.body+"}", "bad")
			require.Error(t, err)

			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr), "expected CompileError, got %T", err)
			assert.Equal(t, tt.field, compileErr.Field)
			assert.Contains(t, compileErr.Message, tt.msg)
		})
	}
}

func TestCompileBlueprintCUEError(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		plan: bad: {
			inputs: ["x"]
			inputs: ["y"]
			outputs: ["x"]
		}
	`)

	_, err := CompileBlueprint(v.LookupPath(cue.ParsePath("plan.bad")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting values")
}

func TestParseBlueprintSkipsValidation(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		plan: broken: {
			inputs: ["x", "x"]
			steps: [{op: "frobnicate", self: "x", out: "y"}]
			outputs: ["missing"]
		}
	`)
	require.NoError(t, v.Err())
	bp := v.LookupPath(cue.ParsePath("plan.broken"))

	spec, err := ParseBlueprint(bp)
	require.NoError(t, err)
	assert.Equal(t, "broken", spec.Name)
	assert.GreaterOrEqual(t, len(Validate(spec)), 3)

	_, err = CompileBlueprint(bp)
	require.Error(t, err)
	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Message, "[E120]")
}
