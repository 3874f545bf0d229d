package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
)

func affineSpec() *ir.BlueprintSpec {
	return &ir.BlueprintSpec{
		Name:   "affine",
		Inputs: []string{"x", "b"},
		Steps: []ir.StepSpec{
			{Op: peer.OpMul, Self: "x", Args: []ir.Operand{{Literal: ir.IRInt(2)}}, Out: "y"},
			{Op: ir.OpShape, Self: "y"},
			{Op: peer.OpAdd, Self: "y", Args: []ir.Operand{{Ref: "b"}}, Out: "z"},
		},
		Outputs: []string{"z"},
	}
}

func TestFromSpec(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bp, err := FromSpec(affineSpec())
	require.NoError(t, err)
	p := New(f.alice, bp, WithName("affine"), WithLogger(quiet))

	x := f.alice.Register(peer.NewValue(ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)}))
	b := f.alice.Register(peer.NewValue(ir.IRInt(10)))
	inv, err := p.Call(ctx, Args{Positional: []ir.ID{x, b}})
	require.NoError(t, err)

	got, err := f.alice.Value(inv.ResultID)
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRInt(12), ir.IRInt(14), ir.IRInt(16)}, got)

	kinds := make([]ir.MsgKind, 0, 3)
	for _, m := range p.Readable() {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []ir.MsgKind{ir.MsgCmd, ir.MsgGetShape, ir.MsgCmd}, kinds)
}

func TestFromSpecRejectsInvalid(t *testing.T) {
	spec := affineSpec()
	spec.Outputs = []string{"missing"}
	_, err := FromSpec(spec)
	require.Error(t, err)
}

func TestFromSpecOutputArity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	spec := affineSpec()
	spec.Outputs = []string{"y", "z"}
	bp, err := FromSpec(spec)
	require.NoError(t, err)

	p := New(f.alice, bp, WithLogger(quiet))
	x := f.alice.Register(peer.NewValue(ir.IRInt(1)))
	b := f.alice.Register(peer.NewValue(ir.IRInt(1)))
	_, err = p.Call(ctx, Args{Positional: []ir.ID{x, b}})
	assert.True(t, IsBlueprintArity(err))
}

func TestFromSpecInputCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bp, err := FromSpec(affineSpec())
	require.NoError(t, err)
	p := New(f.alice, bp, WithLogger(quiet))
	x := f.alice.Register(peer.NewValue(ir.IRInt(1)))
	_, err = p.Call(ctx, Args{Positional: []ir.ID{x}})
	assert.True(t, IsArgumentCount(err))
}
