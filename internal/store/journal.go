package store

import (
	"context"

	"github.com/roach88/deferplan/internal/ir"
)

// Journal persists worker dispatch records. It satisfies peer.Journal.
type Journal struct {
	store *Store
}

// Journal returns a dispatch journal backed by s.
func (s *Store) Journal() *Journal {
	return &Journal{store: s}
}

// Append writes rec to the dispatches table.
func (j *Journal) Append(ctx context.Context, rec ir.DispatchRecord) error {
	return j.store.WriteDispatch(ctx, rec)
}
