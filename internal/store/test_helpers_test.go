package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/deferplan/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a one-message plan record.
func createTestRecord(name string, argID ir.ID) ir.PlanRecord {
	return ir.PlanRecord{
		ID:        7,
		Name:      name,
		Owner:     "alice",
		ArgIDs:    []ir.ID{argID},
		ResultIDs: []ir.ID{argID + 1},
		Messages: []ir.Message{
			ir.Command{
				Op:        "add",
				Self:      ir.Ref{ID: argID, Peer: "alice"},
				Args:      ir.IRArray{ir.IRInt(1)},
				ReturnIDs: []ir.ID{argID + 1},
			}.Message(),
		},
	}
}
