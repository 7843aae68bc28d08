package llmq

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/piratecash/llmqd/quorumconn"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoConnectionManager is returned by the connection methods when
	// the engine was created without a connection manager.
	ErrNoConnectionManager = errors.New("no connection manager " +
		"configured")

	// errMissingDependency is returned by New for a nil dependency.
	errMissingDependency = errors.New("missing engine dependency")
)

// Config holds everything the engine reads the chain state from.
type Config struct {
	// NetParams are the quorum parameters of the network.
	NetParams *NetParams

	// Lists returns the masternode list valid at a block.
	Lists MasternodeListProvider

	// Snapshots persists rotation snapshots.
	Snapshots SnapshotStore

	// Deployments evaluates the DIP0020 and DIP0024 deployments.
	Deployments DeploymentChecker

	// Sporks returns the current spork values.
	Sporks SporkSource

	// Quorums lists the quorums mined on the chain.
	Quorums QuorumScanner

	// ConnMan receives the connection sets of quorum members. It is only
	// needed by EnsureQuorumConnections and AddQuorumProbeConnections.
	ConnMan quorumconn.ConnectionManager

	// Meta returns masternode connection metadata for probing.
	Meta quorumconn.MetaSource

	// Clock is the time source of the probe window.
	Clock clock.Clock

	// WatchQuorums makes a node that is not a member of a quorum keep
	// one connection to it.
	WatchQuorums bool

	// DataRecovery enables recovery of quorum data from other members.
	DataRecovery bool

	// WatchSeed overrides the random seed of the watch connections.
	WatchSeed fn.Option[chainhash.Hash]

	// Metrics receives engine events. May be nil.
	Metrics Metrics
}

// Engine computes quorum memberships, rotation snapshots and the connection
// graph of quorum members. All methods are safe for concurrent use.
type Engine struct {
	cfg Config

	metrics Metrics

	// caches holds one membership cache per quorum type of the network.
	// The map itself is never written after New.
	caches map[Type]*memberCache

	// cycles coalesces concurrent builds of the same rotation cycle.
	cycles singleflight.Group

	// watchSeed is drawn once per engine so that observers spread their
	// watch connections differently.
	watchSeed chainhash.Hash
}

// New creates a quorum engine.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.NetParams == nil:
		return nil, fmt.Errorf("%w: net params", errMissingDependency)
	case cfg.Lists == nil:
		return nil, fmt.Errorf("%w: masternode lists",
			errMissingDependency)
	case cfg.Snapshots == nil:
		return nil, fmt.Errorf("%w: snapshot store",
			errMissingDependency)
	case cfg.Deployments == nil:
		return nil, fmt.Errorf("%w: deployment checker",
			errMissingDependency)
	case cfg.Sporks == nil:
		return nil, fmt.Errorf("%w: spork source",
			errMissingDependency)
	case cfg.Quorums == nil:
		return nil, fmt.Errorf("%w: quorum scanner",
			errMissingDependency)
	}

	if err := cfg.NetParams.Validate(); err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	e := &Engine{
		cfg:     cfg,
		metrics: cfg.Metrics,
		caches:  make(map[Type]*memberCache, len(cfg.NetParams.LLMQs)),
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}

	for _, p := range cfg.NetParams.LLMQs {
		e.caches[p.Type] = newMemberCache(p.KeepOldConnections)
	}

	seed, err := cfg.WatchSeed.UnwrapOrFuncErr(randomSeed)
	if err != nil {
		return nil, err
	}
	e.watchSeed = seed

	return e, nil
}

// randomSeed draws a 256-bit value from the system randomness source.
func randomSeed() (chainhash.Hash, error) {
	var seed chainhash.Hash
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("unable to generate watch seed: %w",
			err)
	}

	return seed, nil
}

// NetParams returns the network parameters of the engine.
func (e *Engine) NetParams() *NetParams {
	return e.cfg.NetParams
}

// IsWatchQuorumsEnabled reports whether the node watches quorums it is not a
// member of.
func (e *Engine) IsWatchQuorumsEnabled() bool {
	return e.cfg.WatchQuorums
}

// IsQuorumDataRecoveryEnabled reports whether quorum data recovery is
// enabled.
func (e *Engine) IsQuorumDataRecoveryEnabled() bool {
	return e.cfg.DataRecovery
}

// params returns the parameters and the membership cache of a quorum type.
func (e *Engine) params(t Type) (Params, *memberCache, error) {
	p, err := e.cfg.NetParams.Params(t)
	if err != nil {
		return Params{}, nil, err
	}

	return p, e.caches[t], nil
}
