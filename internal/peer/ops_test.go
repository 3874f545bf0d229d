package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deferplan/internal/ir"
)

func vec(ns ...int64) ir.IRArray {
	arr := make(ir.IRArray, len(ns))
	for i, n := range ns {
		arr[i] = ir.IRInt(n)
	}
	return arr
}

func TestApplyValueOp(t *testing.T) {
	tests := []struct {
		name string
		op   string
		self ir.IRValue
		args []ir.IRValue
		want ir.IRValue
	}{
		{"scalar add", OpAdd, ir.IRInt(2), []ir.IRValue{ir.IRInt(3)}, ir.IRInt(5)},
		{"vector add", OpAdd, vec(1, 2), []ir.IRValue{vec(10, 20)}, vec(11, 22)},
		{"broadcast right", OpMul, vec(1, 2, 3), []ir.IRValue{ir.IRInt(2)}, vec(2, 4, 6)},
		{"broadcast left", OpSub, ir.IRInt(10), []ir.IRValue{vec(1, 2)}, vec(9, 8)},
		{"neg", OpNeg, vec(1, -2), nil, vec(-1, 2)},
		{"sum", OpSum, ir.IRArray{vec(1, 2), vec(3, 4)}, nil, ir.IRInt(10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyValueOp(tt.op, tt.self, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyValueOpErrors(t *testing.T) {
	_, err := applyValueOp(OpAdd, vec(1, 2), []ir.IRValue{vec(1)})
	require.Error(t, err)

	_, err = applyValueOp(OpAdd, ir.IRInt(1), nil)
	require.Error(t, err)

	_, err = applyValueOp(OpNeg, ir.IRString("x"), nil)
	require.Error(t, err)

	_, err = applyValueOp("pow", ir.IRInt(1), nil)
	require.Error(t, err)
}

func TestShape(t *testing.T) {
	assert.Equal(t, ir.IRArray{}, Shape(ir.IRInt(3)))
	assert.Equal(t, ir.IRArray{}, Shape(ir.IRNull{}))
	assert.Equal(t, vec(3), Shape(vec(1, 2, 3)))
	assert.Equal(t, vec(2, 2), Shape(ir.IRArray{vec(1, 2), vec(3, 4)}))
	assert.Equal(t, vec(0), Shape(ir.IRArray{}))
}
