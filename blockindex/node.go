package blockindex

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// medianTimeBlocks is the number of previous blocks which should be used to
// calculate the median time used to evaluate deployment timeouts.
const medianTimeBlocks = 11

// Node represents a block within the block chain. Nodes are immutable once
// created and may be shared freely between goroutines.
type Node struct {
	// parent is the parent block for this node.
	parent *Node

	// skip points to an ancestor further back in the chain, which lets
	// Ancestor run in logarithmic time.
	skip *Node

	// hash is the double sha 256 of the block.
	hash chainhash.Hash

	// height is the position in the block chain.
	height int32

	// version is the block header version. Deployments signal through
	// its bits.
	version int32

	// timestamp is the block header timestamp in unix seconds.
	timestamp int64
}

// NewNode returns a new block node for a block with the given hash, version
// and timestamp, connected to the passed parent. A nil parent creates a
// genesis node.
func NewNode(parent *Node, hash chainhash.Hash, version int32,
	timestamp int64) *Node {

	node := &Node{
		parent:    parent,
		hash:      hash,
		version:   version,
		timestamp: timestamp,
	}
	if parent != nil {
		node.height = parent.height + 1
		node.skip = parent.Ancestor(skipHeight(node.height))
	}

	return node
}

// Hash returns the block hash of the node.
func (n *Node) Hash() chainhash.Hash {
	return n.hash
}

// Height returns the height of the node.
func (n *Node) Height() int32 {
	return n.height
}

// Parent returns the parent node or nil for the genesis block.
func (n *Node) Parent() *Node {
	return n.parent
}

// Version returns the block header version.
func (n *Node) Version() int32 {
	return n.version
}

// Timestamp returns the block header timestamp in unix seconds.
func (n *Node) Timestamp() int64 {
	return n.timestamp
}

// Ancestor returns the ancestor block node at the provided height by
// following the chain backwards from this node. The returned block will be
// nil when a height is requested that is after the height of the passed node
// or is less than zero.
func (n *Node) Ancestor(height int32) *Node {
	if height < 0 || height > n.height {
		return nil
	}

	walk := n
	heightWalk := n.height
	for heightWalk > height {
		heightSkip := skipHeight(heightWalk)
		heightSkipPrev := skipHeight(heightWalk - 1)

		// Only follow the skip pointer if it does not overshoot, and
		// if following the parent's skip pointer would not be better.
		useSkip := walk.skip != nil && (heightSkip == height ||
			(heightSkip > height && !(heightSkipPrev < heightSkip-2 &&
				heightSkipPrev >= height)))

		if useSkip {
			walk = walk.skip
			heightWalk = heightSkip
		} else {
			walk = walk.parent
			heightWalk--
		}
	}

	return walk
}

// RelativeAncestor returns the ancestor block node a relative 'distance'
// blocks before this node.
func (n *Node) RelativeAncestor(distance int32) *Node {
	return n.Ancestor(n.height - distance)
}

// MedianTimePast calculates the median time of the previous few blocks prior
// to, and including, the block node.
func (n *Node) MedianTimePast() int64 {
	timestamps := make([]int64, 0, medianTimeBlocks)
	iterNode := n
	for i := 0; i < medianTimeBlocks && iterNode != nil; i++ {
		timestamps = append(timestamps, iterNode.timestamp)
		iterNode = iterNode.parent
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})

	return timestamps[len(timestamps)/2]
}

// invertLowestOne turns the lowest 1 bit in the binary representation of a
// number into a 0.
func invertLowestOne(n int32) int32 {
	return n & (n - 1)
}

// skipHeight returns the height the skip pointer of a node at the given
// height points to. Any height strictly lower than the input works, this
// choice keeps Ancestor at O(log n) steps.
func skipHeight(height int32) int32 {
	if height < 2 {
		return 0
	}

	// Determine which height to jump back to. Any number strictly lower
	// than height is acceptable, but the following expression seems to
	// perform well in simulations (max 110 steps to go back up to 2**18
	// blocks).
	if height&1 == 0 {
		return invertLowestOne(height)
	}

	return invertLowestOne(invertLowestOne(height-1)) + 1
}
