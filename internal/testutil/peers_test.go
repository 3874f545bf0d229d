package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
)

func TestNewPeers_DisjointIDRanges(t *testing.T) {
	p := NewPeers([]string{"alice", "bob"}, peer.WithLogger(QuietLogger()))

	alice := p.MustWorker("alice")
	bob := p.MustWorker("bob")

	assert.Equal(t, ir.ID(1000), alice.NewObjectID())
	assert.Equal(t, ir.ID(2000), bob.NewObjectID())
	assert.Equal(t, []ir.PeerID{"alice", "bob"}, p.Names())
}

func TestNewPeers_Deterministic(t *testing.T) {
	run := func() []ir.DispatchRecord {
		journal := &peer.MemoryJournal{}
		p := NewPeers([]string{"alice", "bob"},
			peer.WithJournal(journal),
			peer.WithLogger(QuietLogger()),
		)
		ctx := context.Background()
		ptr, err := p.MustWorker("alice").SendObject(ctx, peer.NewValue(ir.IRInt(2)), "bob")
		require.NoError(t, err)
		_, err = ptr.Mul(ctx, 21)
		require.NoError(t, err)
		return journal.Records()
	}

	first, second := run(), run()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestPeers_UnknownWorker(t *testing.T) {
	p := NewPeers([]string{"alice"})

	_, ok := p.Worker("carol")
	assert.False(t, ok)
	assert.Panics(t, func() { p.MustWorker("carol") })
}
