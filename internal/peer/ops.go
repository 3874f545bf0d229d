package peer

import (
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// Operations understood by Value objects. Binary operations broadcast a
// scalar across a vector; two vectors must have equal length.
const (
	OpAdd = "add"
	OpSub = "sub"
	OpMul = "mul"
	OpNeg = "neg"
	OpSum = "sum"

	// OpExecutePlan runs an Executor with (argument ids, result ids).
	OpExecutePlan = "execute_plan"
)

type binaryFn func(a, b int64) int64

var binaryOps = map[string]binaryFn{
	OpAdd: func(a, b int64) int64 { return a + b },
	OpSub: func(a, b int64) int64 { return a - b },
	OpMul: func(a, b int64) int64 { return a * b },
}

// IsValueOp reports whether op is applied by Value objects.
func IsValueOp(op string) bool {
	_, ok := binaryOps[op]
	return ok || op == OpNeg || op == OpSum
}

// applyValueOp computes op over self and resolved arguments.
func applyValueOp(op string, self ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
	if fn, ok := binaryOps[op]; ok {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes 1 argument, got %d", op, len(args))
		}
		return broadcast(self, args[0], fn)
	}
	switch op {
	case OpNeg:
		if len(args) != 0 {
			return nil, fmt.Errorf("%s takes no arguments, got %d", op, len(args))
		}
		return broadcast(self, ir.IRInt(-1), binaryOps[OpMul])
	case OpSum:
		if len(args) != 0 {
			return nil, fmt.Errorf("%s takes no arguments, got %d", op, len(args))
		}
		total, err := sum(self)
		if err != nil {
			return nil, err
		}
		return ir.IRInt(total), nil
	}
	return nil, fmt.Errorf("unsupported operation %q", op)
}

func broadcast(a, b ir.IRValue, fn binaryFn) (ir.IRValue, error) {
	switch x := a.(type) {
	case ir.IRInt:
		switch y := b.(type) {
		case ir.IRInt:
			return ir.IRInt(fn(int64(x), int64(y))), nil
		case ir.IRArray:
			return mapArray(y, func(elem ir.IRValue) (ir.IRValue, error) { return broadcast(x, elem, fn) })
		}
	case ir.IRArray:
		switch y := b.(type) {
		case ir.IRInt:
			return mapArray(x, func(elem ir.IRValue) (ir.IRValue, error) { return broadcast(elem, y, fn) })
		case ir.IRArray:
			if len(x) != len(y) {
				return nil, fmt.Errorf("length mismatch: %d vs %d", len(x), len(y))
			}
			out := make(ir.IRArray, len(x))
			for i := range x {
				v, err := broadcast(x[i], y[i], fn)
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", i, err)
				}
				out[i] = v
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot combine %T and %T", a, b)
}

func mapArray(arr ir.IRArray, fn func(ir.IRValue) (ir.IRValue, error)) (ir.IRValue, error) {
	out := make(ir.IRArray, len(arr))
	for i, elem := range arr {
		v, err := fn(elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func sum(v ir.IRValue) (int64, error) {
	switch x := v.(type) {
	case ir.IRInt:
		return int64(x), nil
	case ir.IRArray:
		var total int64
		for i, elem := range x {
			n, err := sum(elem)
			if err != nil {
				return 0, fmt.Errorf("[%d]: %w", i, err)
			}
			total += n
		}
		return total, nil
	}
	return 0, fmt.Errorf("cannot sum %T", v)
}

// Shape returns the dimensions of v: none for scalars and null, the length of
// each nesting level for arrays (following the first element).
func Shape(v ir.IRValue) ir.IRArray {
	dims := ir.IRArray{}
	for {
		arr, ok := v.(ir.IRArray)
		if !ok {
			return dims
		}
		dims = append(dims, ir.IRInt(len(arr)))
		if len(arr) == 0 {
			return dims
		}
		v = arr[0]
	}
}
