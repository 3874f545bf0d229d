package peer

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/deferplan/internal/ir"
)

// Journal records every message a worker dispatches, in dispatch order.
type Journal interface {
	Append(ctx context.Context, rec ir.DispatchRecord) error
}

// MemoryJournal keeps dispatch records in memory.
type MemoryJournal struct {
	mu      sync.Mutex
	records []ir.DispatchRecord
}

// Append implements Journal.
func (j *MemoryJournal) Append(_ context.Context, rec ir.DispatchRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

// Records returns a copy of everything appended so far.
func (j *MemoryJournal) Records() []ir.DispatchRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.records)
}

// Since returns the records with a sequence number greater than seq.
func (j *MemoryJournal) Since(seq int64) []ir.DispatchRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []ir.DispatchRecord
	for _, r := range j.records {
		if r.Seq > seq {
			out = append(out, r)
		}
	}
	return out
}
