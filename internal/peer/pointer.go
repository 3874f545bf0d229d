package peer

import (
	"context"
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// Pointer is a handle, owned by a worker, to an object held at Location
// under IDAtLocation.
type Pointer struct {
	ID           ir.ID
	Location     ir.PeerID
	IDAtLocation ir.ID
	Owner        *Worker

	// GarbageCollect allows Release to delete the pointed-to object.
	GarbageCollect bool
}

// NewPointer creates a collectable pointer owned by w.
func NewPointer(w *Worker, location ir.PeerID, idAtLocation ir.ID) *Pointer {
	return &Pointer{
		ID:             w.NewObjectID(),
		Location:       location,
		IDAtLocation:   idAtLocation,
		Owner:          w,
		GarbageCollect: true,
	}
}

// Ref is the operand form of the pointer used in messages.
func (p *Pointer) Ref() ir.Ref {
	return ir.Ref{ID: p.IDAtLocation, Peer: p.Location}
}

// Op applies op to the pointed-to object and returns a pointer to the
// result. Arguments are pointers at the same location or literals
// (ir.IRValue, int, int64).
func (p *Pointer) Op(ctx context.Context, op string, args ...any) (*Pointer, error) {
	operands := make(ir.IRArray, len(args))
	for i, arg := range args {
		v, err := p.operand(arg)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", op, i, err)
		}
		operands[i] = v
	}
	cmd := ir.Command{
		Op:        op,
		Self:      p.Ref(),
		Args:      operands,
		Kwargs:    ir.IRObject{},
		ReturnIDs: []ir.ID{p.Owner.NewObjectID()},
	}
	return p.Owner.SendCommand(ctx, p.Location, cmd)
}

func (p *Pointer) operand(arg any) (ir.IRValue, error) {
	switch a := arg.(type) {
	case *Pointer:
		if a.Location != p.Location {
			return nil, fmt.Errorf("operand lives at %s, not %s", a.Location, p.Location)
		}
		return a.Ref().Value(), nil
	case ir.IRValue:
		return a, nil
	case int:
		return ir.IRInt(a), nil
	case int64:
		return ir.IRInt(a), nil
	}
	return nil, fmt.Errorf("unsupported operand %T", arg)
}

// Add returns a pointer to p + other.
func (p *Pointer) Add(ctx context.Context, other any) (*Pointer, error) {
	return p.Op(ctx, OpAdd, other)
}

// Sub returns a pointer to p - other.
func (p *Pointer) Sub(ctx context.Context, other any) (*Pointer, error) {
	return p.Op(ctx, OpSub, other)
}

// Mul returns a pointer to p * other.
func (p *Pointer) Mul(ctx context.Context, other any) (*Pointer, error) {
	return p.Op(ctx, OpMul, other)
}

// Neg returns a pointer to -p.
func (p *Pointer) Neg(ctx context.Context) (*Pointer, error) {
	return p.Op(ctx, OpNeg)
}

// Sum returns a pointer to the sum of all elements of p.
func (p *Pointer) Sum(ctx context.Context) (*Pointer, error) {
	return p.Op(ctx, OpSum)
}

// Get fetches the pointed-to value. The remote object is kept.
func (p *Pointer) Get(ctx context.Context) (ir.IRValue, error) {
	return p.Owner.Request(ctx, p.Location, ir.Query(ir.MsgObjReq, p.Ref()))
}

// Shape asks for the dimensions of the pointed-to value.
func (p *Pointer) Shape(ctx context.Context) (ir.IRArray, error) {
	v, err := p.Owner.Request(ctx, p.Location, ir.Query(ir.MsgGetShape, p.Ref()))
	if err != nil {
		return nil, err
	}
	dims, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("shape of %d: unexpected response %T", p.IDAtLocation, v)
	}
	return dims, nil
}

// IsNone asks whether the pointed-to value is empty.
func (p *Pointer) IsNone(ctx context.Context) (bool, error) {
	v, err := p.Owner.Request(ctx, p.Location, ir.Query(ir.MsgIsNone, p.Ref()))
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, fmt.Errorf("is_none of %d: unexpected response %T", p.IDAtLocation, v)
	}
	return bool(b), nil
}

// Release deletes the pointed-to object unless garbage collection was
// disabled on the pointer.
func (p *Pointer) Release(ctx context.Context) error {
	if !p.GarbageCollect {
		return nil
	}
	_, err := p.Owner.Send(ctx, p.Location, ir.Query(ir.MsgObjDel, p.Ref()))
	return err
}

func (p *Pointer) String() string {
	return fmt.Sprintf("[Pointer | %s:%d -> %s:%d]", p.Owner.ID(), p.ID, p.Location, p.IDAtLocation)
}
