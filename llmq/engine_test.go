package llmq

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/mnlist"
	"github.com/piratecash/llmqd/quorumconn"
	"github.com/piratecash/llmqd/snapshot"
	"github.com/piratecash/llmqd/spork"
	"github.com/piratecash/llmqd/versionbits"
	"github.com/stretchr/testify/require"
)

const (
	// testInterval is the cycle length of the rotating test quorum.
	testInterval = 100

	// testActive is the number of quorum indices per cycle.
	testActive = 4

	// testQuarter is the quarter size of the rotating test quorum.
	testQuarter = 10
)

var testTime = time.Unix(1_700_000_000, 0)

// stubDeployments activates each deployment from a fixed height on. A height
// of zero covers the genesis block, math.MaxInt32 never activates.
type stubDeployments struct {
	mu       sync.Mutex
	activeAt [versionbits.DefinedDeployments]int32
}

func (s *stubDeployments) IsActive(id versionbits.DeploymentID,
	prev *blockindex.Node) (bool, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	height := int32(0)
	if prev != nil {
		height = prev.Height() + 1
	}

	return height >= s.activeAt[id], nil
}

func (s *stubDeployments) set(id versionbits.DeploymentID, height int32) {
	s.mu.Lock()
	s.activeAt[id] = height
	s.mu.Unlock()
}

// stubScanner returns a fixed list of quorum hashes per type.
type stubScanner struct {
	mu      sync.Mutex
	quorums map[uint8][]chainhash.Hash
}

func (s *stubScanner) ScanQuorums(llmqType uint8, _ *blockindex.Node,
	maxCount int) []chainhash.Hash {

	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.quorums[llmqType]
	if len(q) > maxCount {
		q = q[:maxCount]
	}

	return q
}

func (s *stubScanner) set(t Type, hashes ...chainhash.Hash) {
	s.mu.Lock()
	s.quorums[uint8(t)] = hashes
	s.mu.Unlock()
}

// countingMetrics counts engine events.
type countingMetrics struct {
	mu       sync.Mutex
	hits     map[string]int
	misses   map[string]int
	cycles   int
	replays  int
	failures int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		hits:   make(map[string]int),
		misses: make(map[string]int),
	}
}

func (c *countingMetrics) CacheHit(_ Type, kind string) {
	c.mu.Lock()
	c.hits[kind]++
	c.mu.Unlock()
}

func (c *countingMetrics) CacheMiss(_ Type, kind string) {
	c.mu.Lock()
	c.misses[kind]++
	c.mu.Unlock()
}

func (c *countingMetrics) CycleComputed(Type, time.Duration) {
	c.mu.Lock()
	c.cycles++
	c.mu.Unlock()
}

func (c *countingMetrics) SnapshotReplayed(Type) {
	c.mu.Lock()
	c.replays++
	c.mu.Unlock()
}

func (c *countingMetrics) ComputeFailed(Type) {
	c.mu.Lock()
	c.failures++
	c.mu.Unlock()
}

// testNetParams returns a network with a ten member quorum and a rotating
// forty member quorum of four indices per hundred block cycle.
func testNetParams() *NetParams {
	small, err := LookupParams(TypeTest)
	if err != nil {
		panic(err)
	}
	small.Size, small.MinSize, small.Threshold = 10, 7, 6

	rotated, err := LookupParams(TypeTestDIP0024)
	if err != nil {
		panic(err)
	}
	rotated.Size, rotated.MinSize, rotated.Threshold = 40, 30, 24
	rotated.DKGInterval = testInterval
	rotated.SigningActiveQuorumCount = testActive
	rotated.KeepOldConnections = 8

	return &NetParams{
		Name:               "unittest",
		LLMQs:              []Params{small, rotated},
		ChainLocks:         TypeTest,
		InstantSend:        TypeTest,
		DIP0024InstantSend: TypeTestDIP0024,
		Platform:           TypeTest,
		Mnhf:               TypeTest,
	}
}

// testMasternodes returns n confirmed masternodes.
func testMasternodes(n int) []mnlist.Masternode {
	nodes := make([]mnlist.Masternode, n)
	for i := range nodes {
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], uint32(i))

		nodes[i] = mnlist.Masternode{
			ProTxHash: chainhash.HashH(
				append([]byte("protx"), idx[:]...),
			),
			ConfirmedHash: chainhash.HashH(
				append([]byte("confirmed"), idx[:]...),
			),
			Addr: fmt.Sprintf("10.0.%d.%d:19999", i/256, i%256),
		}
	}

	return nodes
}

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

// testHarness wires an engine to in-memory chain state.
type testHarness struct {
	t testingT

	netParams   *NetParams
	chain       *blockindex.Chain
	lists       *mnlist.Manager
	snapshots   *snapshot.MemStore
	deployments *stubDeployments
	scanner     *stubScanner
	sporks      *spork.Manager
	connMan     *quorumconn.MemManager
	meta        *quorumconn.MetaStore
	clock       *clock.TestClock
	metrics     *countingMetrics

	engine *Engine
}

type harnessOption func(*Config)

func withWatchQuorums() harnessOption {
	return func(cfg *Config) {
		cfg.WatchQuorums = true
	}
}

func withNetParams(n *NetParams) harnessOption {
	return func(cfg *Config) {
		cfg.NetParams = n
	}
}

// newTestHarness builds a chain of numBlocks blocks on top of genesis with the
// given masternodes registered at genesis. Both deployments are active from
// genesis.
func newTestHarness(t testingT, numBlocks int, nodes []mnlist.Masternode,
	opts ...harnessOption) *testHarness {

	t.Helper()

	genesisHash := chainhash.HashH([]byte("genesis"))
	chain := blockindex.NewChain(
		genesisHash, 1, testTime.Unix(),
	)

	parent := genesisHash
	for h := 1; h <= numBlocks; h++ {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(h))
		hash := chainhash.HashH(b[:])

		_, err := chain.AddBlock(
			parent, hash, 1, testTime.Unix()+int64(h)*150,
		)
		require.NoError(t, err)
		parent = hash
	}

	lists := mnlist.NewManager()
	list, err := mnlist.NewList(genesisHash, 0, nodes)
	require.NoError(t, err)
	lists.AddList(list)

	testClock := clock.NewTestClock(testTime)
	h := &testHarness{
		t:           t,
		chain:       chain,
		lists:       lists,
		snapshots:   snapshot.NewMemStore(),
		deployments: &stubDeployments{},
		scanner: &stubScanner{
			quorums: make(map[uint8][]chainhash.Hash),
		},
		sporks:  spork.NewManager(testClock),
		connMan: quorumconn.NewMemManager(),
		meta:    quorumconn.NewMetaStore(testClock),
		clock:   testClock,
		metrics: newCountingMetrics(),
	}

	cfg := Config{
		NetParams:   testNetParams(),
		Lists:       h.lists,
		Snapshots:   h.snapshots,
		Deployments: h.deployments,
		Sporks:      h.sporks,
		Quorums:     h.scanner,
		ConnMan:     h.connMan,
		Meta:        h.meta,
		Clock:       testClock,
		WatchSeed:   fn.Some(chainhash.HashH([]byte("watch"))),
		Metrics:     h.metrics,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.netParams = cfg.NetParams

	h.engine, err = New(cfg)
	require.NoError(t, err)

	return h
}

// node returns the block at the given height.
func (h *testHarness) node(height int32) *blockindex.Node {
	h.t.Helper()

	n := h.chain.NodeByHeight(height)
	require.NotNil(h.t, n, "no block at height %d", height)

	return n
}

// members returns the identifiers of the quorum at the given height.
func (h *testHarness) members(t Type, height int32) []chainhash.Hash {
	h.t.Helper()

	members, err := h.engine.GetAllQuorumMembers(t, h.node(height), false)
	require.NoError(h.t, err)

	return mnlist.ProTxHashes(members)
}

// params returns the network parameters of a quorum type.
func (h *testHarness) params(t Type) Params {
	h.t.Helper()

	p, err := h.netParams.Params(t)
	require.NoError(h.t, err)

	return p
}

// requireUnique asserts that no identifier appears twice.
func requireUnique(t require.TestingT, ids []chainhash.Hash) {
	seen := make(map[chainhash.Hash]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate member %v", id)
		seen[id] = struct{}{}
	}
}

// TestNewValidatesConfig checks that missing dependencies and invalid network
// parameters are rejected.
func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.ErrorIs(t, err, errMissingDependency)

	h := newTestHarness(t, 0, nil)

	bad := testNetParams()
	bad.Platform = Type400_60
	_, err = New(Config{
		NetParams:   bad,
		Lists:       h.lists,
		Snapshots:   h.snapshots,
		Deployments: h.deployments,
		Sporks:      h.sporks,
		Quorums:     h.scanner,
	})
	require.ErrorIs(t, err, ErrInvalidParams)

	// Without a fixed seed every engine draws its own.
	e1, err := New(Config{
		NetParams:   &RegTestParams,
		Lists:       h.lists,
		Snapshots:   h.snapshots,
		Deployments: h.deployments,
		Sporks:      h.sporks,
		Quorums:     h.scanner,
	})
	require.NoError(t, err)
	require.NotEqual(t, chainhash.Hash{}, e1.watchSeed)
	require.False(t, e1.IsWatchQuorumsEnabled())
}

// TestDisabledTypeYieldsNoMembers checks that a quorum type that is not
// enabled at the parent of the base block has no members.
func TestDisabledTypeYieldsNoMembers(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, 10, testMasternodes(50))
	h.deployments.set(versionbits.DeploymentDIP0024, math.MaxInt32)

	members, err := h.engine.GetAllQuorumMembers(
		TypeTestDIP0024, h.node(0), false,
	)
	require.NoError(t, err)
	require.Empty(t, members)
	require.Zero(t, h.snapshots.Len())

	_, err = h.engine.GetAllQuorumMembers(Type400_60, h.node(0), false)
	require.ErrorIs(t, err, ErrUnknownQuorumType)
}
