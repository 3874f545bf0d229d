package peer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/wire"
)

// Worker is a peer holding objects and applying messages to them.
//
// The registry is guarded by a mutex that is never held while a message is
// dispatched, so an Executor may send messages back to the worker that is
// running it.
type Worker struct {
	id       ir.PeerID
	network  *Network
	codec    *wire.Codec
	ids      IDSource
	journal  Journal
	logger   *slog.Logger
	decoders map[string]ObjectDecoder

	mu      sync.Mutex
	objects map[ir.ID]Object
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithID sets the worker's peer identity. Default: a UUIDv7 string.
func WithID(id ir.PeerID) WorkerOption {
	return func(w *Worker) {
		w.id = id
	}
}

// WithIDSource sets where the worker draws object identifiers from.
// Default: RandomIDs.
func WithIDSource(src IDSource) WorkerOption {
	return func(w *Worker) {
		w.ids = src
	}
}

// WithCodec sets the wire codec.
func WithCodec(c *wire.Codec) WorkerOption {
	return func(w *Worker) {
		w.codec = c
	}
}

// WithJournal records every dispatched message.
func WithJournal(j Journal) WorkerOption {
	return func(w *Worker) {
		w.journal = j
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// WithObjectType registers a decoder for objects of the given type announced
// to the worker.
func WithObjectType(name string, dec ObjectDecoder) WorkerOption {
	return func(w *Worker) {
		w.decoders[name] = dec
	}
}

// NewWorker creates a worker and makes it reachable on network.
func NewWorker(network *Network, opts ...WorkerOption) *Worker {
	w := &Worker{
		network:  network,
		ids:      RandomIDs{},
		logger:   slog.Default(),
		decoders: map[string]ObjectDecoder{ValueType: decodeValue},
		objects:  make(map[ir.ID]Object),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.id == "" {
		w.id = NewPeerID()
	}
	if w.codec == nil {
		w.codec = wire.MustNew()
	}
	network.Add(w)
	return w
}

// ID implements Peer.
func (w *Worker) ID() ir.PeerID { return w.id }

// Codec returns the worker's wire codec.
func (w *Worker) Codec() *wire.Codec { return w.codec }

// Network returns the network the worker is reachable on.
func (w *Worker) Network() *Network { return w.network }

// NewObjectID draws a fresh object identifier.
func (w *Worker) NewObjectID() ir.ID { return w.ids.Next() }

// Register stores obj under a fresh identifier and returns it.
func (w *Worker) Register(obj Object) ir.ID {
	id := w.ids.Next()
	w.RegisterAs(id, obj)
	return id
}

// RegisterAs stores obj under id, replacing any previous object.
func (w *Worker) RegisterAs(id ir.ID, obj Object) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.objects[id] = obj
}

// Get returns the object registered under id.
func (w *Worker) Get(id ir.ID) (Object, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.objects[id]
	if !ok {
		return nil, unknownID(w.id, id)
	}
	return obj, nil
}

// Value returns the data of the Value registered under id.
func (w *Worker) Value(id ir.ID) (ir.IRValue, error) {
	obj, err := w.Get(id)
	if err != nil {
		return nil, err
	}
	v, ok := obj.(*Value)
	if !ok {
		return nil, &Error{Code: ErrCodeBadMessage, Message: fmt.Sprintf("object %d is a %s, not a value", id, obj.TypeName()), Peer: w.id, ID: id}
	}
	return v.Data, nil
}

// Remove drops the object registered under id. Removing an unknown id is a
// no-op.
func (w *Worker) Remove(id ir.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.objects, id)
}

// Len returns the number of registered objects.
func (w *Worker) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.objects)
}

// Connect makes p reachable from this worker.
func (w *Worker) Connect(p Peer) {
	w.network.Add(p)
}

// Disconnect makes the peer with the given identity unreachable.
func (w *Worker) Disconnect(id ir.PeerID) {
	w.network.Remove(id)
}

// SendRaw delivers already encoded bytes to a peer. Messages addressed to
// the worker itself skip the network.
func (w *Worker) SendRaw(ctx context.Context, to ir.PeerID, data []byte) ([]byte, error) {
	if to == w.id {
		return w.RecvMsg(ctx, data)
	}
	return w.network.Send(ctx, to, data)
}

// Send encodes m and delivers it to a peer, returning the encoded response.
func (w *Worker) Send(ctx context.Context, to ir.PeerID, m ir.Message) ([]byte, error) {
	data, err := w.codec.Encode(m)
	if err != nil {
		return nil, err
	}
	return w.SendRaw(ctx, to, data)
}

// Request sends m and decodes the response value.
func (w *Worker) Request(ctx context.Context, to ir.PeerID, m ir.Message) (ir.IRValue, error) {
	resp, err := w.Send(ctx, to, m)
	if err != nil {
		return nil, err
	}
	return w.codec.DecodeValue(resp)
}

// SendObject announces obj to a peer under a fresh identifier and returns a
// pointer to it.
func (w *Worker) SendObject(ctx context.Context, obj Object, to ir.PeerID) (*Pointer, error) {
	payload, err := obj.Payload()
	if err != nil {
		return nil, fmt.Errorf("send %s to %s: %w", obj.TypeName(), to, err)
	}
	idAtLocation := w.ids.Next()
	if _, err := w.Send(ctx, to, ir.Announce(idAtLocation, obj.TypeName(), payload)); err != nil {
		return nil, err
	}
	w.logger.Debug("object sent", "peer", w.id, "to", to, "type", obj.TypeName(), "id", idAtLocation)
	return NewPointer(w, to, idAtLocation), nil
}

// SendCommand delivers cmd to a peer and returns a pointer to its first
// result, or nil if the command has no result identifiers.
func (w *Worker) SendCommand(ctx context.Context, to ir.PeerID, cmd ir.Command) (*Pointer, error) {
	if _, err := w.Send(ctx, to, cmd.Message()); err != nil {
		return nil, err
	}
	if len(cmd.ReturnIDs) == 0 {
		return nil, nil
	}
	return NewPointer(w, to, cmd.ReturnIDs[0]), nil
}

// RecvMsg implements Peer: decode, journal, apply, and encode the response.
func (w *Worker) RecvMsg(ctx context.Context, data []byte) ([]byte, error) {
	m, err := w.codec.Decode(data)
	if err != nil {
		return nil, badMessage(w.id, err)
	}
	if w.journal != nil {
		if err := w.record(ctx, m); err != nil {
			return nil, err
		}
	}
	w.logger.Debug("dispatch", "peer", w.id, "kind", m.Kind.String())

	resp, err := w.dispatch(ctx, m)
	if err != nil {
		return nil, err
	}
	if ir.IsNull(resp) {
		return wire.None(), nil
	}
	return w.codec.EncodeValue(resp)
}

func (w *Worker) record(ctx context.Context, m ir.Message) error {
	digest, err := ir.MessageDigest(m)
	if err != nil {
		return badMessage(w.id, err)
	}
	rec := ir.DispatchRecord{
		Seq:     w.network.Clock().Next(),
		Peer:    w.id,
		Kind:    m.Kind,
		Digest:  digest,
		Message: m,
	}
	if err := w.journal.Append(ctx, rec); err != nil {
		return fmt.Errorf("journal dispatch %d: %w", rec.Seq, err)
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, m ir.Message) (ir.IRValue, error) {
	switch m.Kind {
	case ir.MsgObj:
		return ir.IRNull{}, w.recvObject(m)
	case ir.MsgCmd:
		cmd, err := ir.CommandFromMessage(m)
		if err != nil {
			return nil, badMessage(w.id, err)
		}
		return ir.IRNull{}, w.execCommand(ctx, cmd)
	case ir.MsgObjReq, ir.MsgObjDel, ir.MsgIsNone, ir.MsgGetShape:
		ref, err := ir.QueryRef(m)
		if err != nil {
			return nil, badMessage(w.id, err)
		}
		return w.query(m.Kind, ref)
	default:
		return nil, badMessage(w.id, fmt.Errorf("unhandled message kind %s", m.Kind))
	}
}

func (w *Worker) recvObject(m ir.Message) error {
	id, typ, payload, err := ir.AnnounceFields(m)
	if err != nil {
		return badMessage(w.id, err)
	}
	dec, ok := w.decoders[typ]
	if !ok {
		return badMessage(w.id, fmt.Errorf("unknown object type %q", typ))
	}
	obj, err := dec(w, payload)
	if err != nil {
		return badMessage(w.id, fmt.Errorf("decode %s: %w", typ, err))
	}
	w.RegisterAs(id, obj)
	return nil
}

func (w *Worker) query(kind ir.MsgKind, ref ir.Ref) (ir.IRValue, error) {
	if err := w.local(ref); err != nil {
		return nil, err
	}
	if kind == ir.MsgObjDel {
		w.Remove(ref.ID)
		return ir.IRNull{}, nil
	}
	obj, err := w.Get(ref.ID)
	if err != nil {
		return nil, err
	}
	switch kind {
	case ir.MsgObjReq:
		return obj.Payload()
	case ir.MsgIsNone:
		v, ok := obj.(*Value)
		return ir.IRBool(ok && ir.IsNull(v.Data)), nil
	case ir.MsgGetShape:
		v, ok := obj.(*Value)
		if !ok {
			return ir.IRArray{}, nil
		}
		return Shape(v.Data), nil
	}
	return nil, badMessage(w.id, fmt.Errorf("%s is not a query", kind))
}

func (w *Worker) execCommand(ctx context.Context, cmd ir.Command) error {
	if err := w.local(cmd.Self); err != nil {
		return err
	}
	self, err := w.Get(cmd.Self.ID)
	if err != nil {
		return err
	}

	if cmd.Op == OpExecutePlan {
		return w.executePlan(ctx, self, cmd)
	}
	if !IsValueOp(cmd.Op) {
		return &Error{Code: ErrCodeUnknownOp, Message: fmt.Sprintf("unknown operation %q", cmd.Op), Peer: w.id, ID: cmd.Self.ID}
	}
	if len(cmd.Kwargs) > 0 {
		return badMessage(w.id, fmt.Errorf("%s: keyword arguments are not supported", cmd.Op))
	}
	if len(cmd.ReturnIDs) != 1 {
		return badMessage(w.id, fmt.Errorf("%s: expected 1 return id, got %d", cmd.Op, len(cmd.ReturnIDs)))
	}
	v, ok := self.(*Value)
	if !ok {
		return &Error{Code: ErrCodeUnknownOp, Message: fmt.Sprintf("%s does not support %q", self.TypeName(), cmd.Op), Peer: w.id, ID: cmd.Self.ID}
	}

	args := make([]ir.IRValue, len(cmd.Args))
	for i, arg := range cmd.Args {
		ref, isRef := ir.RefFromValue(arg)
		if !isRef {
			args[i] = arg
			continue
		}
		if err := w.local(ref); err != nil {
			return err
		}
		data, err := w.Value(ref.ID)
		if err != nil {
			return err
		}
		args[i] = data
	}

	result, err := applyValueOp(cmd.Op, v.Data, args)
	if err != nil {
		return badMessage(w.id, err)
	}
	w.RegisterAs(cmd.ReturnIDs[0], NewValue(result))
	return nil
}

func (w *Worker) executePlan(ctx context.Context, self Object, cmd ir.Command) error {
	exec, ok := self.(Executor)
	if !ok {
		return &Error{Code: ErrCodeUnknownOp, Message: fmt.Sprintf("%s is not executable", self.TypeName()), Peer: w.id, ID: cmd.Self.ID}
	}
	if len(cmd.Args) != 2 {
		return badMessage(w.id, fmt.Errorf("%s: expected (args, result ids), got %d arguments", OpExecutePlan, len(cmd.Args)))
	}
	args, err := ir.ToIDs(cmd.Args[0])
	if err != nil {
		return badMessage(w.id, fmt.Errorf("%s args: %w", OpExecutePlan, err))
	}
	resultIDs, err := ir.ToIDs(cmd.Args[1])
	if err != nil {
		return badMessage(w.id, fmt.Errorf("%s result ids: %w", OpExecutePlan, err))
	}
	_, err = exec.Execute(ctx, args, resultIDs)
	return err
}

// local checks that ref names an object held by this worker.
func (w *Worker) local(ref ir.Ref) error {
	if ref.Peer != w.id {
		return &Error{
			Code:    ErrCodeUnknownID,
			Message: fmt.Sprintf("id %d lives at %s", ref.ID, ref.Peer),
			Peer:    w.id,
			ID:      ref.ID,
		}
	}
	return nil
}
