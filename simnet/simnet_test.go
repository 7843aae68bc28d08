package simnet

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/piratecash/llmqd/llmq"
	"github.com/piratecash/llmqd/mnlist"
	"github.com/piratecash/llmqd/snapshot"
	"github.com/piratecash/llmqd/spork"
	"github.com/piratecash/llmqd/versionbits"
	"github.com/stretchr/testify/require"
)

func newTestNetwork(t *testing.T, modify func(*Config)) *Network {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Masternodes = 50
	cfg.ChurnInterval = 10
	cfg.BanRate = 0.1
	cfg.Registrations = 2
	if modify != nil {
		modify(&cfg)
	}

	n, err := New(cfg, &llmq.RegTestParams)
	require.NoError(t, err)

	return n
}

// TestNetworkDeterministic checks that the same config builds the same chain
// and population.
func TestNetworkDeterministic(t *testing.T) {
	t.Parallel()

	a := newTestNetwork(t, nil)
	b := newTestNetwork(t, nil)
	other := newTestNetwork(t, func(cfg *Config) {
		cfg.Seed = "other"
	})

	tipA, err := a.ExtendTo(35)
	require.NoError(t, err)
	tipB, err := b.ExtendTo(35)
	require.NoError(t, err)
	tipOther, err := other.ExtendTo(35)
	require.NoError(t, err)

	require.Equal(t, tipA.Hash(), tipB.Hash())
	require.NotEqual(t, tipA.Hash(), tipOther.Hash())
	require.Equal(t, int32(35), a.Tip().Height())

	listA, err := a.Lists().ListForBlock(tipA)
	require.NoError(t, err)
	listB, err := b.Lists().ListForBlock(tipB)
	require.NoError(t, err)

	nodesA := mnlist.ProTxHashes(listA.Nodes())
	require.Equal(t, nodesA, mnlist.ProTxHashes(listB.Nodes()))
	require.Contains(t, nodesA, a.ProTxHash(0))

	// Extending to a lower height is a lookup.
	node, err := a.ExtendTo(12)
	require.NoError(t, err)
	require.Equal(t, int32(12), node.Height())
	require.Equal(t, int32(35), a.Tip().Height())
}

// TestChurn checks bans, revivals and registrations at churn blocks.
func TestChurn(t *testing.T) {
	t.Parallel()

	n := newTestNetwork(t, nil)

	genesis, err := n.Lists().ListForBlock(n.Tip())
	require.NoError(t, err)
	require.Equal(t, 50, genesis.AllCount())
	require.Equal(t, 50, genesis.ValidCount())

	first, err := n.ExtendTo(10)
	require.NoError(t, err)
	list, err := n.Lists().ListForBlock(first)
	require.NoError(t, err)
	require.Equal(t, 52, list.AllCount())
	require.Equal(t, 52-5, list.ValidCount())

	var banned []chainhash.Hash
	list.ForEach(false, func(mn *mnlist.Masternode) {
		if mn.PoSeBanned {
			banned = append(banned, mn.ProTxHash)
		}
	})
	require.Len(t, banned, 5)

	// Blocks between churns see the same population.
	mid, err := n.ExtendTo(15)
	require.NoError(t, err)
	midList, err := n.Lists().ListForBlock(mid)
	require.NoError(t, err)
	require.Equal(t, list.ValidCount(), midList.ValidCount())
	require.Equal(t, mid.Hash(), midList.BlockHash())

	second, err := n.ExtendTo(20)
	require.NoError(t, err)
	list, err = n.Lists().ListForBlock(second)
	require.NoError(t, err)
	require.Equal(t, 54, list.AllCount())

	// The masternodes banned at the first churn are back.
	for _, id := range banned {
		require.False(t, list.IsBanned(id))
	}
	require.Equal(t, 54-4, list.ValidCount())
}

// TestScanQuorums checks which quorums count as mined.
func TestScanQuorums(t *testing.T) {
	t.Parallel()

	n := newTestNetwork(t, func(cfg *Config) {
		cfg.ActivateAtGenesis = true
	})
	tip, err := n.ExtendTo(60)
	require.NoError(t, err)

	height := func(hashes []chainhash.Hash) []int32 {
		heights := make([]int32, len(hashes))
		for i, h := range hashes {
			heights[i] = n.Chain().LookupNode(h).Height()
		}

		return heights
	}

	// llmq_test forms every 24 blocks and is mined 18 blocks later.
	testType := uint8(llmq.TypeTest)
	require.Equal(t, []int32{24, 0},
		height(n.ScanQuorums(testType, tip, 10)))
	require.Equal(t, []int32{24}, height(n.ScanQuorums(testType, tip, 1)))
	require.Empty(t, n.ScanQuorums(testType, tip, 0))
	require.Empty(t, n.ScanQuorums(testType, n.Chain().NodeByHeight(17), 5))

	// llmq_test_dip0024 forms two quorums per cycle.
	rotated := uint8(llmq.TypeTestDIP0024)
	require.Equal(t, []int32{25, 24, 1, 0},
		height(n.ScanQuorums(rotated, tip, 10)))

	require.Empty(t, n.ScanQuorums(uint8(llmq.Type400_60), tip, 10))
	require.Empty(t, n.ScanQuorums(rotated, nil, 10))
}

// TestScanQuorumsBeforeActivation checks that deployment gated quorums only
// form once their deployment is active.
func TestScanQuorumsBeforeActivation(t *testing.T) {
	t.Parallel()

	n := newTestNetwork(t, func(cfg *Config) {
		cfg.ChurnInterval = 0
	})
	tip, err := n.ExtendTo(60)
	require.NoError(t, err)

	active, err := n.Deployments().IsActive(
		versionbits.DeploymentDIP0024, tip,
	)
	require.NoError(t, err)
	require.False(t, active)

	require.Empty(t, n.ScanQuorums(uint8(llmq.TypeTestDIP0024), tip, 10))
	require.Len(t, n.ScanQuorums(uint8(llmq.TypeTest), tip, 10), 2)

	// Every block signals, so the deployment activates eventually.
	tip, err = n.ExtendTo(1500)
	require.NoError(t, err)

	active, err = n.Deployments().IsActive(
		versionbits.DeploymentDIP0024, tip,
	)
	require.NoError(t, err)
	require.True(t, active)
	require.NotEmpty(t, n.ScanQuorums(uint8(llmq.TypeTestDIP0024), tip, 10))
}

// TestEngineOnSimnet runs the quorum engine on a synthetic network.
func TestEngineOnSimnet(t *testing.T) {
	t.Parallel()

	n := newTestNetwork(t, func(cfg *Config) {
		cfg.ActivateAtGenesis = true
	})
	_, err := n.ExtendTo(100)
	require.NoError(t, err)

	testClock := clock.NewTestClock(DefaultStartTime)
	engine, err := llmq.New(llmq.Config{
		NetParams:   n.NetParams(),
		Lists:       n.Lists(),
		Snapshots:   snapshot.NewMemStore(),
		Deployments: n.Deployments(),
		Sporks:      spork.NewManager(testClock),
		Quorums:     n,
		Clock:       testClock,
	})
	require.NoError(t, err)

	for _, h := range []int32{24, 25, 48, 49, 72, 73, 96, 97} {
		members, err := engine.GetAllQuorumMembers(
			llmq.TypeTestDIP0024, n.Chain().NodeByHeight(h), false,
		)
		require.NoError(t, err)
		require.NotEmpty(t, members, "height %d", h)
		require.LessOrEqual(t, len(members), 4)
	}

	members, err := engine.GetAllQuorumMembers(
		llmq.TypeTest, n.Chain().NodeByHeight(48), false,
	)
	require.NoError(t, err)
	require.Len(t, members, 3)

	isType, err := engine.GetInstantSendLLMQType(n.Tip())
	require.NoError(t, err)
	require.Equal(t, llmq.TypeTestDIP0024, isType)
}

// TestConfigValidate checks the config checks.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []func(*Config){
		func(c *Config) { c.Masternodes = -1 },
		func(c *Config) { c.ChurnInterval = -1 },
		func(c *Config) { c.BanRate = 1.5 },
		func(c *Config) { c.Registrations = -1 },
		func(c *Config) { c.BlockInterval = 0 },
	}
	for i, modify := range tests {
		cfg := DefaultConfig()
		modify(&cfg)

		_, err := New(cfg, &llmq.RegTestParams)
		require.ErrorIs(t, err, ErrInvalidConfig, "case %d", i)
	}

	_, err := New(DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
