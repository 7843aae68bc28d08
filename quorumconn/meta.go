package quorumconn

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
)

// ProbeInterval is the minimum time between two probes of the same
// masternode.
const ProbeInterval = 10 * time.Minute

// MetaSource returns per masternode connection metadata.
type MetaSource interface {
	// LastOutboundSuccess returns the time of the last successful
	// outbound connection to the masternode, or the zero time.
	LastOutboundSuccess(proTxHash chainhash.Hash) time.Time
}

// MetaStore tracks successful outbound connections per masternode.
type MetaStore struct {
	clock clock.Clock

	mu          sync.RWMutex
	lastSuccess map[chainhash.Hash]time.Time
}

// NewMetaStore returns an empty metadata store reading time from clk.
func NewMetaStore(clk clock.Clock) *MetaStore {
	return &MetaStore{
		clock:       clk,
		lastSuccess: make(map[chainhash.Hash]time.Time),
	}
}

// RecordOutboundSuccess marks a successful outbound connection to the
// masternode at the current time.
func (m *MetaStore) RecordOutboundSuccess(proTxHash chainhash.Hash) {
	now := m.clock.Now()

	m.mu.Lock()
	m.lastSuccess[proTxHash] = now
	m.mu.Unlock()
}

// LastOutboundSuccess is part of the MetaSource interface.
func (m *MetaStore) LastOutboundSuccess(proTxHash chainhash.Hash) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lastSuccess[proTxHash]
}

// NeedsProbe reports whether the masternode was not reached within the probe
// interval as seen from now.
func NeedsProbe(meta MetaSource, proTxHash chainhash.Hash,
	now time.Time) bool {

	return now.Sub(meta.LastOutboundSuccess(proTxHash)) >= ProbeInterval
}
