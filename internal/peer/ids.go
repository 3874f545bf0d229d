package peer

import (
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/deferplan/internal/ir"
)

// MaxRandomID bounds randomly drawn identifiers.
const MaxRandomID = 10_000_000_000

// IDSource hands out object identifiers.
type IDSource interface {
	Next() ir.ID
}

// RandomIDs draws identifiers uniformly from [0, MaxRandomID).
// Collisions are not checked.
type RandomIDs struct{}

// Next implements IDSource.
func (RandomIDs) Next() ir.ID {
	return ir.ID(rand.Int64N(MaxRandomID))
}

// SequentialIDs hands out increasing identifiers. Tests and golden traces
// use it for reproducible output.
type SequentialIDs struct {
	mu   sync.Mutex
	next ir.ID
}

// NewSequentialIDs creates a source whose first identifier is start.
func NewSequentialIDs(start ir.ID) *SequentialIDs {
	return &SequentialIDs{next: start}
}

// Next implements IDSource.
func (s *SequentialIDs) Next() ir.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}

// NewPeerID returns a time-sortable UUIDv7 peer identity.
//
// Panics if UUID generation fails (should never happen in practice).
func NewPeerID() ir.PeerID {
	return ir.PeerID(uuid.Must(uuid.NewV7()).String())
}
