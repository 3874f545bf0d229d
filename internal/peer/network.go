package peer

import (
	"context"
	"sync"

	"github.com/roach88/deferplan/internal/ir"
)

// Peer is anything that can be addressed on a network and receive encoded
// messages. RecvMsg returns the encoded response.
type Peer interface {
	ID() ir.PeerID
	RecvMsg(ctx context.Context, data []byte) ([]byte, error)
}

// Network is an in-process directory of peers. Delivery is a synchronous
// call into the destination's RecvMsg.
//
// Thread-safety: the directory is guarded by a mutex; delivery itself runs
// on the caller's goroutine without holding it.
type Network struct {
	mu    sync.RWMutex
	peers map[ir.PeerID]Peer
	clock *Clock
}

// NewNetwork creates an empty network with a fresh logical clock.
func NewNetwork() *Network {
	return &Network{
		peers: make(map[ir.PeerID]Peer),
		clock: NewClock(),
	}
}

// NewNetworkWithClock creates an empty network whose workers draw journal
// sequence numbers from c.
func NewNetworkWithClock(c *Clock) *Network {
	return &Network{
		peers: make(map[ir.PeerID]Peer),
		clock: c,
	}
}

// Clock returns the logical clock shared by the network's workers.
func (n *Network) Clock() *Clock {
	return n.clock
}

// Add makes p reachable under its identity, replacing any previous peer with
// the same identity.
func (n *Network) Add(p Peer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[p.ID()] = p
}

// Remove makes the peer with the given identity unreachable.
func (n *Network) Remove(id ir.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, id)
}

// Lookup returns the peer registered under id.
func (n *Network) Lookup(id ir.PeerID) (Peer, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.peers[id]
	return p, ok
}

// Peers returns the identities of all reachable peers.
func (n *Network) Peers() []ir.PeerID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]ir.PeerID, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	return ids
}

// Send delivers data to the peer registered under to and returns its
// response. Unknown destinations fail with ErrCodeDispatch; errors from the
// destination are returned unchanged.
func (n *Network) Send(ctx context.Context, to ir.PeerID, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Code: ErrCodeDispatch, Message: "send cancelled", Peer: to, Err: err}
	}
	p, ok := n.Lookup(to)
	if !ok {
		return nil, unknownPeer(to)
	}
	return p.RecvMsg(ctx, data)
}
