package mnlist

import (
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ErrDuplicateMasternode is returned when a list is built with the same
// identifier twice.
var ErrDuplicateMasternode = errors.New("duplicate masternode")

// List is an immutable view of the masternode population valid at one block.
// Descriptors live in a single arena slice sorted by identifier and are
// referenced by index, so a List can be shared between goroutines without
// locking.
type List struct {
	blockHash chainhash.Hash
	height    int32

	nodes []Masternode
	index map[chainhash.Hash]int
	valid int
}

// NewList builds a list for the given block from the passed descriptors. The
// descriptors are copied.
func NewList(blockHash chainhash.Hash, height int32,
	nodes []Masternode) (*List, error) {

	l := &List{
		blockHash: blockHash,
		height:    height,
		nodes:     make([]Masternode, len(nodes)),
		index:     make(map[chainhash.Hash]int, len(nodes)),
	}
	copy(l.nodes, nodes)

	sort.Slice(l.nodes, func(i, j int) bool {
		return LessIdentifier(
			&l.nodes[i].ProTxHash, &l.nodes[j].ProTxHash,
		)
	})

	for i := range l.nodes {
		id := l.nodes[i].ProTxHash
		if _, ok := l.index[id]; ok {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateMasternode,
				id)
		}
		l.index[id] = i

		if l.nodes[i].IsValid() {
			l.valid++
		}
	}

	return l, nil
}

// EmptyList returns a list without masternodes for the given block.
func EmptyList(blockHash chainhash.Hash, height int32) *List {
	return &List{
		blockHash: blockHash,
		height:    height,
		index:     make(map[chainhash.Hash]int),
	}
}

// BlockHash returns the hash of the block the list is valid at.
func (l *List) BlockHash() chainhash.Hash {
	return l.blockHash
}

// Height returns the height of the block the list is valid at.
func (l *List) Height() int32 {
	return l.height
}

// AllCount returns the number of masternodes, banned ones included.
func (l *List) AllCount() int {
	return len(l.nodes)
}

// ValidCount returns the number of masternodes that are not banned.
func (l *List) ValidCount() int {
	return l.valid
}

// Get returns the masternode with the given identifier.
func (l *List) Get(id chainhash.Hash) (*Masternode, bool) {
	i, ok := l.index[id]
	if !ok {
		return nil, false
	}

	return &l.nodes[i], true
}

// Has reports whether the list contains the given identifier.
func (l *List) Has(id chainhash.Hash) bool {
	_, ok := l.index[id]
	return ok
}

// IsBanned reports whether the masternode is in the list and banned.
func (l *List) IsBanned(id chainhash.Hash) bool {
	mn, ok := l.Get(id)
	return ok && mn.PoSeBanned
}

// ForEach calls f for every masternode in identifier order. When onlyValid is
// set, banned masternodes are skipped.
func (l *List) ForEach(onlyValid bool, f func(mn *Masternode)) {
	for i := range l.nodes {
		if onlyValid && !l.nodes[i].IsValid() {
			continue
		}

		f(&l.nodes[i])
	}
}

// Nodes returns references to all masternodes in identifier order.
func (l *List) Nodes() []*Masternode {
	nodes := make([]*Masternode, len(l.nodes))
	for i := range l.nodes {
		nodes[i] = &l.nodes[i]
	}

	return nodes
}

// CalculateQuorum ranks the valid masternodes of the list under the modifier
// and returns the best maxSize of them.
func (l *List) CalculateQuorum(maxSize int,
	modifier chainhash.Hash) []*Masternode {

	return CalculateQuorum(l.Nodes(), maxSize, modifier)
}

// CalculateScores scores the valid masternodes of the list.
func (l *List) CalculateScores(modifier chainhash.Hash) []Score {
	return CalculateScores(l.Nodes(), modifier)
}

// With returns a copy of the list valid at another block, with the passed
// descriptors added or replaced and the removed identifiers dropped.
func (l *List) With(blockHash chainhash.Hash, height int32,
	upserts []Masternode, removed []chainhash.Hash) (*List, error) {

	drop := make(map[chainhash.Hash]struct{}, len(removed))
	for _, id := range removed {
		drop[id] = struct{}{}
	}

	merged := make(map[chainhash.Hash]Masternode, len(l.nodes))
	for _, mn := range l.nodes {
		merged[mn.ProTxHash] = mn
	}
	for _, mn := range upserts {
		merged[mn.ProTxHash] = mn
	}

	nodes := make([]Masternode, 0, len(merged))
	for id, mn := range merged {
		if _, ok := drop[id]; ok {
			continue
		}
		nodes = append(nodes, mn)
	}

	return NewList(blockHash, height, nodes)
}

// relabel returns a list sharing the same arena but valid at another block.
func (l *List) relabel(blockHash chainhash.Hash, height int32) *List {
	return &List{
		blockHash: blockHash,
		height:    height,
		nodes:     l.nodes,
		index:     l.index,
		valid:     l.valid,
	}
}
