package peer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deferplan/internal/ir"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(t *testing.T, n *Network, id ir.PeerID, opts ...WorkerOption) *Worker {
	t.Helper()
	base := []WorkerOption{WithID(id), WithIDSource(NewSequentialIDs(100)), WithLogger(quietLogger())}
	return NewWorker(n, append(base, opts...)...)
}

func TestWorkerLocalOps(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork()
	alice := newTestWorker(t, n, "alice")

	x := NewPointer(alice, alice.ID(), alice.Register(NewValue(vec(1, 2, 3))))
	y, err := x.Mul(ctx, 2)
	require.NoError(t, err)
	z, err := y.Add(ctx, x)
	require.NoError(t, err)

	got, err := z.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, vec(3, 6, 9), got)

	total, err := z.Sum(ctx)
	require.NoError(t, err)
	v, err := alice.Value(total.IDAtLocation)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(18), v)
}

func TestWorkerRemoteObjects(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork()
	alice := newTestWorker(t, n, "alice")
	bob := newTestWorker(t, n, "bob", WithIDSource(NewSequentialIDs(500)))

	ptr, err := alice.SendObject(ctx, NewValue(vec(4, 5)), bob.ID())
	require.NoError(t, err)
	assert.Equal(t, bob.ID(), ptr.Location)
	assert.Equal(t, 1, bob.Len())

	shape, err := ptr.Shape(ctx)
	require.NoError(t, err)
	assert.Equal(t, vec(2), shape)

	none, err := ptr.IsNone(ctx)
	require.NoError(t, err)
	assert.False(t, none)

	neg, err := ptr.Neg(ctx)
	require.NoError(t, err)
	got, err := neg.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, vec(-4, -5), got)

	// get does not consume the object
	_, err = neg.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, neg.Release(ctx))
	_, err = bob.Get(neg.IDAtLocation)
	assert.True(t, IsUnknownIDError(err))
}

func TestPointerReleaseHonoursGarbageCollect(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork()
	alice := newTestWorker(t, n, "alice")
	id := alice.Register(NewValue(ir.IRInt(1)))

	p := NewPointer(alice, alice.ID(), id)
	p.GarbageCollect = false
	require.NoError(t, p.Release(ctx))
	_, err := alice.Get(id)
	require.NoError(t, err)

	p.GarbageCollect = true
	require.NoError(t, p.Release(ctx))
	_, err = alice.Get(id)
	require.Error(t, err)
}

func TestWorkerErrors(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork()
	alice := newTestWorker(t, n, "alice")

	t.Run("unknown peer", func(t *testing.T) {
		_, err := alice.SendObject(ctx, NewValue(ir.IRInt(1)), "nobody")
		require.Error(t, err)
		assert.True(t, IsDispatchError(err))
	})

	t.Run("unknown id", func(t *testing.T) {
		p := NewPointer(alice, alice.ID(), 999_999)
		_, err := p.Get(ctx)
		assert.True(t, IsUnknownIDError(err))
	})

	t.Run("unknown op", func(t *testing.T) {
		p := NewPointer(alice, alice.ID(), alice.Register(NewValue(ir.IRInt(1))))
		_, err := p.Op(ctx, "pow", 2)
		assert.True(t, IsUnknownOpError(err))
	})

	t.Run("operand at another peer", func(t *testing.T) {
		a := NewPointer(alice, alice.ID(), alice.Register(NewValue(ir.IRInt(1))))
		b := NewPointer(alice, "bob", 1)
		_, err := a.Add(ctx, b)
		require.Error(t, err)
	})

	t.Run("garbage bytes", func(t *testing.T) {
		_, err := alice.RecvMsg(ctx, []byte{0xff})
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		n.Add(newTestWorker(t, n, "carol"))
		_, err := alice.SendObject(cctx, NewValue(ir.IRInt(1)), "carol")
		assert.True(t, IsDispatchError(err))
	})
}

func TestWorkerJournalOrder(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork()
	j := &MemoryJournal{}
	alice := newTestWorker(t, n, "alice", WithJournal(j))

	x := NewPointer(alice, alice.ID(), alice.Register(NewValue(ir.IRInt(2))))
	y, err := x.Add(ctx, 1)
	require.NoError(t, err)
	_, err = y.Get(ctx)
	require.NoError(t, err)

	recs := j.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, ir.MsgCmd, recs[0].Kind)
	assert.Equal(t, ir.MsgObjReq, recs[1].Kind)
	assert.Less(t, recs[0].Seq, recs[1].Seq)
	assert.Equal(t, ir.MustMessageDigest(recs[0].Message), recs[0].Digest)
	assert.Len(t, j.Since(recs[0].Seq), 1)
}

type stubExecutor struct {
	args, results []ir.ID
}

func (s *stubExecutor) TypeName() string { return "stub" }
func (s *stubExecutor) Payload() (ir.IRValue, error) { return ir.IRNull{}, nil }
func (s *stubExecutor) Execute(_ context.Context, args, resultIDs []ir.ID) (*Pointer, error) {
	s.args, s.results = args, resultIDs
	return nil, nil
}

func TestWorkerExecutePlanCommand(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork()
	alice := newTestWorker(t, n, "alice")
	bob := newTestWorker(t, n, "bob", WithObjectType("stub", func(*Worker, ir.IRValue) (Object, error) {
		return &stubExecutor{}, nil
	}))

	ptr, err := alice.SendObject(ctx, &stubExecutor{}, bob.ID())
	require.NoError(t, err)

	res, err := alice.SendCommand(ctx, bob.ID(), ir.Command{
		Op:        OpExecutePlan,
		Self:      ptr.Ref(),
		Args:      ir.IRArray{ir.IDs(7), ir.IDs(8)},
		ReturnIDs: []ir.ID{8},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.ID(8), res.IDAtLocation)

	obj, err := bob.Get(ptr.IDAtLocation)
	require.NoError(t, err)
	stub := obj.(*stubExecutor)
	assert.Equal(t, []ir.ID{7}, stub.args)
	assert.Equal(t, []ir.ID{8}, stub.results)
}
