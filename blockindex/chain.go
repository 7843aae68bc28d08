package blockindex

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	// ErrUnknownParent is returned when a block is added whose parent is
	// not part of the index.
	ErrUnknownParent = errors.New("unknown parent block")

	// ErrDuplicateBlock is returned when a block is added twice.
	ErrDuplicateBlock = errors.New("block already indexed")
)

// Chain is an in-memory block index. It tracks every known node by hash and
// the best tip, which is the highest node seen (first seen wins on ties).
type Chain struct {
	mu sync.RWMutex

	genesis *Node
	tip     *Node
	index   map[chainhash.Hash]*Node
}

// NewChain creates a block index rooted at the given genesis block.
func NewChain(genesisHash chainhash.Hash, version int32,
	timestamp int64) *Chain {

	genesis := NewNode(nil, genesisHash, version, timestamp)

	return &Chain{
		genesis: genesis,
		tip:     genesis,
		index: map[chainhash.Hash]*Node{
			genesisHash: genesis,
		},
	}
}

// AddBlock connects a new block on top of the parent with the given hash and
// returns its node.
func (c *Chain) AddBlock(parentHash, hash chainhash.Hash, version int32,
	timestamp int64) (*Node, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[hash]; ok {
		return nil, fmt.Errorf("%w: %v", ErrDuplicateBlock, hash)
	}

	parent, ok := c.index[parentHash]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownParent, parentHash)
	}

	node := NewNode(parent, hash, version, timestamp)
	c.index[hash] = node

	if node.height > c.tip.height {
		log.Tracef("New best tip %v at height %d", hash, node.height)
		c.tip = node
	}

	return node, nil
}

// Genesis returns the genesis node.
func (c *Chain) Genesis() *Node {
	return c.genesis
}

// Tip returns the current best node.
func (c *Chain) Tip() *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.tip
}

// LookupNode returns the node with the given hash, or nil if it is unknown.
func (c *Chain) LookupNode(hash chainhash.Hash) *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.index[hash]
}

// NodeByHeight returns the node at the given height on the best chain, or nil
// if the height is out of range.
func (c *Chain) NodeByHeight(height int32) *Node {
	return c.Tip().Ancestor(height)
}
