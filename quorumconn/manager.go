package quorumconn

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ConnectionManager is the part of the peer connection manager that quorum
// members talk to. Quorum types are passed as their wire value.
type ConnectionManager interface {
	// SetMasternodeQuorumNodes replaces the set of masternodes to keep
	// connections to for the given quorum.
	SetMasternodeQuorumNodes(llmqType uint8, quorumHash chainhash.Hash,
		nodes fn.Set[chainhash.Hash])

	// SetMasternodeQuorumRelayMembers replaces the set of masternodes to
	// relay quorum messages to for the given quorum.
	SetMasternodeQuorumRelayMembers(llmqType uint8,
		quorumHash chainhash.Hash, members fn.Set[chainhash.Hash])

	// AddPendingProbeConnections schedules short lived connections that
	// only check whether the masternodes are reachable.
	AddPendingProbeConnections(nodes fn.Set[chainhash.Hash])

	// HasMasternodeQuorumNodes reports whether connections for the given
	// quorum were set before.
	HasMasternodeQuorumNodes(llmqType uint8,
		quorumHash chainhash.Hash) bool
}

// quorumKey identifies one quorum.
type quorumKey struct {
	llmqType   uint8
	quorumHash chainhash.Hash
}

// MemManager is a ConnectionManager that only records what it was asked to
// do. It stands in for the peer layer in simulations and tests.
type MemManager struct {
	mu sync.RWMutex

	nodes  map[quorumKey]fn.Set[chainhash.Hash]
	relays map[quorumKey]fn.Set[chainhash.Hash]
	probes fn.Set[chainhash.Hash]
}

// NewMemManager returns an empty MemManager.
func NewMemManager() *MemManager {
	return &MemManager{
		nodes:  make(map[quorumKey]fn.Set[chainhash.Hash]),
		relays: make(map[quorumKey]fn.Set[chainhash.Hash]),
		probes: fn.NewSet[chainhash.Hash](),
	}
}

// SetMasternodeQuorumNodes is part of the ConnectionManager interface.
func (m *MemManager) SetMasternodeQuorumNodes(llmqType uint8,
	quorumHash chainhash.Hash, nodes fn.Set[chainhash.Hash]) {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nodes[quorumKey{llmqType, quorumHash}] = copySet(nodes)
}

// SetMasternodeQuorumRelayMembers is part of the ConnectionManager interface.
func (m *MemManager) SetMasternodeQuorumRelayMembers(llmqType uint8,
	quorumHash chainhash.Hash, members fn.Set[chainhash.Hash]) {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.relays[quorumKey{llmqType, quorumHash}] = copySet(members)
}

// AddPendingProbeConnections is part of the ConnectionManager interface.
func (m *MemManager) AddPendingProbeConnections(nodes fn.Set[chainhash.Hash]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range nodes {
		m.probes.Add(id)
	}
}

// HasMasternodeQuorumNodes is part of the ConnectionManager interface.
func (m *MemManager) HasMasternodeQuorumNodes(llmqType uint8,
	quorumHash chainhash.Hash) bool {

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.nodes[quorumKey{llmqType, quorumHash}]
	return ok
}

// QuorumNodes returns the connection set recorded for a quorum.
func (m *MemManager) QuorumNodes(llmqType uint8,
	quorumHash chainhash.Hash) fn.Option[fn.Set[chainhash.Hash]] {

	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes, ok := m.nodes[quorumKey{llmqType, quorumHash}]
	if !ok {
		return fn.None[fn.Set[chainhash.Hash]]()
	}

	return fn.Some(copySet(nodes))
}

// RelayMembers returns the relay set recorded for a quorum.
func (m *MemManager) RelayMembers(llmqType uint8,
	quorumHash chainhash.Hash) fn.Option[fn.Set[chainhash.Hash]] {

	m.mu.RLock()
	defer m.mu.RUnlock()

	relays, ok := m.relays[quorumKey{llmqType, quorumHash}]
	if !ok {
		return fn.None[fn.Set[chainhash.Hash]]()
	}

	return fn.Some(copySet(relays))
}

// PendingProbes returns every masternode a probe was requested for.
func (m *MemManager) PendingProbes() fn.Set[chainhash.Hash] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copySet(m.probes)
}

// QuorumCount returns the number of quorums connections were set for.
func (m *MemManager) QuorumCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.nodes)
}

func copySet(s fn.Set[chainhash.Hash]) fn.Set[chainhash.Hash] {
	c := fn.NewSet[chainhash.Hash]()
	for id := range s {
		c.Add(id)
	}

	return c
}
