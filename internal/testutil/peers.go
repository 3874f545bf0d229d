package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
)

// IDStride separates the identifier ranges of the peers built by NewPeers.
// The i-th peer (0-based) hands out identifiers from (i+1)*IDStride.
const IDStride = 1000

// QuietLogger returns a logger that discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Peers is an in-process network of named workers with deterministic
// identifiers, so the same calls produce byte-identical journals.
//
// Thread-safety: Peers is built once and read afterwards; the workers
// themselves are safe for concurrent use.
type Peers struct {
	Net     *peer.Network
	order   []ir.PeerID
	workers map[ir.PeerID]*peer.Worker
}

// NewPeers creates one worker per name on a fresh network. opts apply to
// every worker after the identity and identifier options, so a caller can
// add a journal, a logger or object types.
func NewPeers(names []string, opts ...peer.WorkerOption) *Peers {
	p := &Peers{
		Net:     peer.NewNetwork(),
		workers: make(map[ir.PeerID]*peer.Worker, len(names)),
	}
	for i, name := range names {
		id := ir.PeerID(name)
		all := append([]peer.WorkerOption{
			peer.WithID(id),
			peer.WithIDSource(peer.NewSequentialIDs(ir.ID((i + 1) * IDStride))),
		}, opts...)
		p.workers[id] = peer.NewWorker(p.Net, all...)
		p.order = append(p.order, id)
	}
	return p
}

// Worker returns the worker named id.
func (p *Peers) Worker(id ir.PeerID) (*peer.Worker, bool) {
	w, ok := p.workers[id]
	return w, ok
}

// MustWorker is like Worker but panics on an unknown name.
// Use only in tests.
func (p *Peers) MustWorker(id ir.PeerID) *peer.Worker {
	w, ok := p.workers[id]
	if !ok {
		panic("testutil: unknown peer " + string(id))
	}
	return w
}

// Names returns the peer names in creation order.
func (p *Peers) Names() []ir.PeerID {
	return append([]ir.PeerID(nil), p.order...)
}
