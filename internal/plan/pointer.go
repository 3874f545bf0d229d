package plan

import (
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// Pointer records where a transmitted plan lives.
type Pointer struct {
	ID           ir.ID
	Location     ir.PeerID
	IDAtLocation ir.ID
	Owner        ir.PeerID
}

func (p *Pointer) String() string {
	return fmt.Sprintf("[PlanPointer | %s:%d -> %s:%d]", p.Owner, p.ID, p.Location, p.IDAtLocation)
}
