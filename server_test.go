package llmqd

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/piratecash/llmqd/llmq"
	"github.com/piratecash/llmqd/simnet"
	"github.com/piratecash/llmqd/snapshot"
	"github.com/stretchr/testify/require"
)

// newTestServer creates a server over a small regtest simnet with every
// deployment active from genesis.
func newTestServer(t *testing.T, modify func(*Config)) (*server,
	*clock.TestClock) {

	t.Helper()

	cfg := DefaultConfig()
	cfg.NetParams = &llmq.RegTestParams
	cfg.Simnet.Masternodes = 50
	cfg.Simnet.ChurnInterval = 10
	cfg.Simnet.ActivateAtGenesis = true
	cfg.Simnet.Prefill = 100
	cfg.Simnet.BlockInterval = time.Hour
	if modify != nil {
		modify(&cfg)
	}
	require.NoError(t, cfg.LLMQ.Parse(cfg.NetParams))

	testClock := clock.NewTestClock(simnet.DefaultStartTime)
	s, err := newServer(&cfg, snapshot.NewMemStore(), nil, testClock)
	require.NoError(t, err)

	return s, testClock
}

// TestServerWatchesQuorums checks that a watching node gets connections to
// every active quorum once it catches up with the prefilled chain.
func TestServerWatchesQuorums(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, func(cfg *Config) {
		cfg.LLMQ.WatchQuorums = true
	})
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		require.NoError(t, s.Stop())
	})

	tip := s.network.Tip()
	require.Equal(t, int32(100), tip.Height())
	require.Equal(t, chainhash.Hash{}, s.myProTxHash)

	params, err := s.engine.GetEnabledQuorumParams(tip)
	require.NoError(t, err)
	require.NotEmpty(t, params)

	for _, p := range params {
		quorums := s.network.ScanQuorums(
			uint8(p.Type), tip, p.KeepOldConnections,
		)
		require.NotEmpty(t, quorums, "%v", p.Type)

		for _, hash := range quorums {
			require.True(t, s.connMan.HasMasternodeQuorumNodes(
				uint8(p.Type), hash,
			), "%v quorum %v", p.Type, hash)
		}
	}

	// A regular node never probes.
	require.Empty(t, s.connMan.PendingProbes())
}

// TestServerRegularNode checks that a node that neither runs a masternode
// nor watches quorums asks for no connections.
func TestServerRegularNode(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		require.NoError(t, s.Stop())
	})

	require.Zero(t, s.connMan.QuorumCount())
}

// TestServerProbes checks that a quorum member probes the other members and
// that answered probes are recorded.
func TestServerProbes(t *testing.T) {
	t.Parallel()

	s, testClock := newTestServer(t, func(cfg *Config) {
		cfg.LLMQ.Sporks = []string{"SPORK_23_QUORUM_POSE=0"}
	})
	require.NoError(t, s.dispatcher.Start())
	t.Cleanup(func() {
		require.NoError(t, s.Stop())
	})

	tip, err := s.network.ExtendTo(100)
	require.NoError(t, err)

	quorums := s.network.ScanQuorums(uint8(llmq.TypeTest), tip, 1)
	require.Len(t, quorums, 1)
	base := s.network.Chain().LookupNode(quorums[0])

	members, err := s.engine.GetAllQuorumMembers(llmq.TypeTest, base, false)
	require.NoError(t, err)
	require.NotEmpty(t, members)
	s.myProTxHash = members[0].ProTxHash

	require.NoError(t, s.handleBlock(tip))

	probes := s.connMan.PendingProbes()
	require.NotEmpty(t, probes)
	require.False(t, probes.Contains(s.myProTxHash))
	for _, mn := range members[1:] {
		require.True(t, probes.Contains(mn.ProTxHash))
	}

	for id := range probes {
		require.Equal(
			t, testClock.Now(), s.meta.LastOutboundSuccess(id),
		)
	}
}

// TestWantsQuorumVector checks the verification vector sync modes.
func TestWantsQuorumVector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode     llmq.QvvecSyncMode
		isMember bool
		want     bool
	}{
		{llmq.QvvecSyncAlways, false, true},
		{llmq.QvvecSyncAlways, true, true},
		{llmq.QvvecSyncOnlyIfTypeMember, false, false},
		{llmq.QvvecSyncOnlyIfTypeMember, true, true},
		{llmq.QvvecSyncInvalid, true, false},
	}
	for _, tc := range tests {
		require.Equal(
			t, tc.want, wantsQuorumVector(tc.mode, tc.isMember),
			"%v member=%v", tc.mode, tc.isMember,
		)
	}
}
