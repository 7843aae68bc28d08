package quorumconn

import (
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestDispatcherAppliesInOrder checks that queued updates reach the wrapped
// manager in the order they were made.
func TestDispatcherAppliesInOrder(t *testing.T) {
	t.Parallel()

	target := NewMemManager()
	d := NewDispatcher(target, 2)
	require.NoError(t, d.Start())
	t.Cleanup(func() {
		require.NoError(t, d.Stop())
	})

	ids := testHashes("a", "b", "c", "d")
	quorum := chainhash.HashH([]byte("quorum"))

	// More updates than the buffer holds.
	for _, id := range ids {
		d.SetMasternodeQuorumNodes(7, quorum, fn.NewSet(id))
	}
	d.SetMasternodeQuorumRelayMembers(7, quorum, fn.NewSet(ids[0]))
	d.AddPendingProbeConnections(fn.NewSet(ids[1], ids[2]))

	require.NoError(t, d.Flush())

	require.True(t, d.HasMasternodeQuorumNodes(7, quorum))
	require.Equal(
		t, fn.Some(fn.NewSet(ids[3])), target.QuorumNodes(7, quorum),
	)
	require.Equal(
		t, fn.Some(fn.NewSet(ids[0])), target.RelayMembers(7, quorum),
	)
	require.Equal(t, fn.NewSet(ids[1], ids[2]), target.PendingProbes())
}

// TestDispatcherConcurrentCallers checks that updates from many goroutines
// are all applied.
func TestDispatcherConcurrentCallers(t *testing.T) {
	t.Parallel()

	target := NewMemManager()
	d := NewDispatcher(target, 0)
	require.NoError(t, d.Start())
	t.Cleanup(func() {
		require.NoError(t, d.Stop())
	})

	const numCallers = 20

	var wg sync.WaitGroup
	for i := 0; i < numCallers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			quorum := chainhash.HashH([]byte{byte(i)})
			d.SetMasternodeQuorumNodes(
				1, quorum, fn.NewSet(quorum),
			)
		}(i)
	}
	wg.Wait()

	require.NoError(t, d.Flush())
	require.Equal(t, numCallers, target.QuorumCount())
}

// TestDispatcherStop checks that a stopped dispatcher refuses work and that
// stopping twice is harmless.
func TestDispatcherStop(t *testing.T) {
	t.Parallel()

	target := NewMemManager()
	d := NewDispatcher(target, 0)
	require.NoError(t, d.Start())
	require.NoError(t, d.Start())

	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())

	require.ErrorIs(t, d.Flush(), ErrDispatcherShuttingDown)

	// Updates after shutdown are dropped.
	quorum := chainhash.HashH([]byte("quorum"))
	d.SetMasternodeQuorumNodes(1, quorum, fn.NewSet(quorum))
	require.Zero(t, target.QuorumCount())
}
