package mnlist

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/piratecash/llmqd/blockindex"
)

// Manager keeps the masternode lists of the blocks where the population
// changed. A lookup for any other block resolves to the closest ancestor that
// has a list, relabelled for the requested block.
type Manager struct {
	mu    sync.RWMutex
	lists map[chainhash.Hash]*List
}

// NewManager creates an empty list manager.
func NewManager() *Manager {
	return &Manager{
		lists: make(map[chainhash.Hash]*List),
	}
}

// AddList records the list valid at its block.
func (m *Manager) AddList(l *List) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lists[l.BlockHash()] = l

	log.Debugf("Stored masternode list at height %d: all=%d valid=%d",
		l.Height(), l.AllCount(), l.ValidCount())
}

// RemoveList drops the list recorded at the given block, e.g. when the block
// is disconnected.
func (m *Manager) RemoveList(blockHash chainhash.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.lists, blockHash)
}

// ListForBlock returns the masternode list valid at the given block. Blocks
// before the first recorded list get an empty list.
func (m *Manager) ListForBlock(node *blockindex.Node) (*List, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for walk := node; walk != nil; walk = walk.Parent() {
		l, ok := m.lists[walk.Hash()]
		if !ok {
			continue
		}

		if walk == node {
			return l, nil
		}

		return l.relabel(node.Hash(), node.Height()), nil
	}

	return EmptyList(node.Hash(), node.Height()), nil
}
