package llmq

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/mnlist"
	"github.com/piratecash/llmqd/snapshot"
	"github.com/piratecash/llmqd/spork"
	"github.com/piratecash/llmqd/versionbits"
)

// MasternodeListProvider returns the masternode list valid at a block. The
// returned list must not change afterwards.
type MasternodeListProvider interface {
	ListForBlock(node *blockindex.Node) (*mnlist.List, error)
}

// SnapshotStore persists one rotation snapshot per quorum type and cycle
// base block.
type SnapshotStore interface {
	// FetchSnapshot returns the snapshot stored for the quorum type at
	// the block, or None.
	FetchSnapshot(llmqType uint8,
		blockHash chainhash.Hash) (fn.Option[*snapshot.Snapshot], error)

	// StoreSnapshot stores the snapshot for the quorum type at the block.
	StoreSnapshot(llmqType uint8, blockHash chainhash.Hash,
		snap *snapshot.Snapshot) error
}

// DeploymentChecker evaluates version bits deployments. The state is the one
// of the block following prev.
type DeploymentChecker interface {
	IsActive(id versionbits.DeploymentID,
		prev *blockindex.Node) (bool, error)
}

// SporkSource reads network-voted feature toggles.
type SporkSource interface {
	SporkValue(id spork.ID) int64
}

// QuorumScanner returns the base block hashes of the most recent quorums of a
// type that were mined up to tip, newest first.
type QuorumScanner interface {
	ScanQuorums(llmqType uint8, tip *blockindex.Node,
		maxCount int) []chainhash.Hash
}

// Metrics receives engine events. All methods must be safe for concurrent
// use.
type Metrics interface {
	// CacheHit records a membership served from the cache of the given
	// kind ("block" or "index").
	CacheHit(t Type, kind string)

	// CacheMiss records a membership that had to be computed.
	CacheMiss(t Type, kind string)

	// CycleComputed records a rotation cycle build.
	CycleComputed(t Type, took time.Duration)

	// SnapshotReplayed records one snapshot replay.
	SnapshotReplayed(t Type)

	// ComputeFailed records a membership computation that returned an
	// error.
	ComputeFailed(t Type)
}

// noopMetrics drops every event.
type noopMetrics struct{}

func (noopMetrics) CacheHit(Type, string) {}
func (noopMetrics) CacheMiss(Type, string) {}
func (noopMetrics) CycleComputed(Type, time.Duration) {}
func (noopMetrics) SnapshotReplayed(Type) {}
func (noopMetrics) ComputeFailed(Type) {}
