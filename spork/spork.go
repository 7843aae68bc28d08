package spork

import (
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/clock"
)

// ID identifies a network-voted feature toggle.
type ID int32

const (
	// SporkQuorumAllConnected makes every quorum member connect to every
	// other member instead of using the relay mesh.
	SporkQuorumAllConnected ID = 10020

	// SporkQuorumPoSe enables proof-of-service probing of quorum members.
	SporkQuorumPoSe ID = 10022
)

const (
	// ValueOff is the default value of most sporks. It is a timestamp far
	// in the future (2099-01-01), so "value <= now" checks stay false.
	ValueOff int64 = 4070908800
)

var names = map[ID]string{
	SporkQuorumAllConnected: "SPORK_21_QUORUM_ALL_CONNECTED",
	SporkQuorumPoSe:         "SPORK_23_QUORUM_POSE",
}

// String returns the network name of the spork.
func (id ID) String() string {
	if name, ok := names[id]; ok {
		return name
	}

	return fmt.Sprintf("SPORK_%d", int32(id))
}

// IDFromName looks up a spork by its network name.
func IDFromName(name string) (ID, bool) {
	for id, n := range names {
		if n == name {
			return id, true
		}
	}

	return 0, false
}

// Manager holds the current spork values. Sporks without an explicit value
// report their default.
type Manager struct {
	mu     sync.RWMutex
	values map[ID]int64

	clock clock.Clock
}

// NewManager creates a manager with all sporks at their defaults.
func NewManager(clk clock.Clock) *Manager {
	return &Manager{
		values: make(map[ID]int64),
		clock:  clk,
	}
}

// SetSporkValue updates the value of a spork.
func (m *Manager) SetSporkValue(id ID, value int64) {
	m.mu.Lock()
	m.values[id] = value
	m.mu.Unlock()

	log.Infof("Spork %v set to %d", id, value)
}

// SporkValue returns the current value of a spork.
func (m *Manager) SporkValue(id ID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.values[id]; ok {
		return v
	}

	return ValueOff
}

// IsSporkActive reports whether the spork value, read as a unix timestamp,
// has passed.
func (m *Manager) IsSporkActive(id ID) bool {
	return m.SporkValue(id) < m.clock.Now().Unix()
}
