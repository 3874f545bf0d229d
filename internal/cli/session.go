package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
	"github.com/roach88/deferplan/internal/plan"
	"github.com/roach88/deferplan/internal/store"
)

// DefaultOwner is the peer name commands trace and replay on.
const DefaultOwner = "local"

// ownerIDBase is where the command-line owner starts handing out
// identifiers; plans draw theirs from 1, so the two never meet.
const ownerIDBase = 1000

// MessageView is the printable form of one recorded message.
type MessageView struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Op    string `json:"op,omitempty"`
	Body  any    `json:"body"`
}

// newOwner creates a worker on its own network, with deterministic
// identifiers so the same command traces the same plan digest. The journal
// is optional; clock continues its sequence numbers.
func newOwner(name string, logger *slog.Logger, journal peer.Journal, clock *peer.Clock) *peer.Worker {
	opts := []peer.WorkerOption{
		peer.WithID(ir.PeerID(name)),
		peer.WithIDSource(peer.NewSequentialIDs(ownerIDBase)),
		peer.WithLogger(logger),
		plan.WithPlans(plan.WithLogger(logger)),
	}
	if journal != nil {
		opts = append(opts, peer.WithJournal(journal))
	}
	return peer.NewWorker(peer.NewNetworkWithClock(clock), opts...)
}

// registerArgs parses each JSON argument and registers it at w.
func registerArgs(w *peer.Worker, raw []string) ([]ir.ID, error) {
	ids := make([]ir.ID, len(raw))
	for i, s := range raw {
		v, err := ir.UnmarshalIRValue([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("--arg %d (%q): %w", i, s, err)
		}
		ids[i] = w.Register(peer.NewValue(v))
	}
	return ids, nil
}

// describeMessages renders a recording for output.
func describeMessages(msgs []ir.Message) []MessageView {
	views := make([]MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = MessageView{
			Index: i,
			Kind:  m.Kind.String(),
			Op:    messageOp(m),
			Body:  ir.ToGo(m.Value()),
		}
	}
	return views
}

// messageOp returns the operation of a command or the object type of an
// announcement, and "" for queries.
func messageOp(m ir.Message) string {
	switch m.Kind {
	case ir.MsgCmd:
		if cmd, err := ir.CommandFromMessage(m); err == nil {
			return cmd.Op
		}
	case ir.MsgObj:
		if _, typ, _, err := ir.AnnounceFields(m); err == nil {
			return typ
		}
	}
	return ""
}

// label renders a message view as "kind op".
func (v MessageView) label() string {
	if v.Op == "" {
		return v.Kind
	}
	return v.Kind + " " + v.Op
}

// openJournal opens the database at path, if any, and returns its journal
// with a clock resuming after the last stored dispatch. With no path it
// returns a fresh clock and nil store and journal.
func openJournal(ctx context.Context, path string) (*store.Store, peer.Journal, *peer.Clock, error) {
	if path == "" {
		return nil, nil, peer.NewClock(), nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	last, err := st.LastDispatchSeq(ctx)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return st, st.Journal(), peer.NewClockAt(last), nil
}
