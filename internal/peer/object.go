package peer

import (
	"context"
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// ValueType is the object type name of Value.
const ValueType = "value"

// Object is anything a worker can hold in its registry and ship to another
// peer. Payload is the transferable form, rebuilt at the receiver by the
// decoder registered for TypeName.
type Object interface {
	TypeName() string
	Payload() (ir.IRValue, error)
}

// Executor is an object that runs when it receives an execute_plan command.
type Executor interface {
	Object
	Execute(ctx context.Context, args, resultIDs []ir.ID) (*Pointer, error)
}

// ObjectDecoder rebuilds an object announced to w.
type ObjectDecoder func(w *Worker, payload ir.IRValue) (Object, error)

// Value is plain IR data held by a worker.
type Value struct {
	Data ir.IRValue
}

// NewValue wraps data as an object.
func NewValue(data ir.IRValue) *Value {
	if data == nil {
		data = ir.IRNull{}
	}
	return &Value{Data: data}
}

// TypeName implements Object.
func (v *Value) TypeName() string { return ValueType }

// Payload implements Object.
func (v *Value) Payload() (ir.IRValue, error) { return v.Data, nil }

func (v *Value) String() string {
	data, err := ir.MarshalCanonical(v.Data)
	if err != nil {
		return fmt.Sprintf("<Value %T>", v.Data)
	}
	return fmt.Sprintf("<Value %s>", data)
}

func decodeValue(_ *Worker, payload ir.IRValue) (Object, error) {
	return NewValue(payload), nil
}
