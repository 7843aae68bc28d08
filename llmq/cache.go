package llmq

import (
	"errors"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/piratecash/llmqd/mnlist"
)

// cachedMembers wraps a membership so it can live in an LRU cache. Every
// entry counts as one unit of capacity.
type cachedMembers struct {
	members []*mnlist.Masternode
}

// Size returns the cache cost of the entry.
func (c *cachedMembers) Size() (uint64, error) {
	return 1, nil
}

// indexKey identifies one quorum of a rotation cycle.
type indexKey struct {
	cycleHash chainhash.Hash
	quorumIdx int
}

// memberCache holds the memberships of one quorum type, both by quorum base
// block and by (cycle base block, quorum index).
type memberCache struct {
	capacity uint64

	// mu guards the cache pointers. The caches themselves are safe for
	// concurrent use, a reset swaps both of them under the write lock.
	mu      sync.RWMutex
	byBlock *lru.Cache[chainhash.Hash, *cachedMembers]
	byIndex *lru.Cache[indexKey, *cachedMembers]
}

func newMemberCache(capacity int) *memberCache {
	if capacity < 1 {
		capacity = 1
	}

	c := &memberCache{capacity: uint64(capacity)}
	c.byBlock = lru.NewCache[chainhash.Hash, *cachedMembers](c.capacity)
	c.byIndex = lru.NewCache[indexKey, *cachedMembers](c.capacity)

	return c
}

// reset drops every cached membership.
func (c *memberCache) reset() {
	byBlock := lru.NewCache[chainhash.Hash, *cachedMembers](c.capacity)
	byIndex := lru.NewCache[indexKey, *cachedMembers](c.capacity)

	c.mu.Lock()
	c.byBlock, c.byIndex = byBlock, byIndex
	c.mu.Unlock()
}

func (c *memberCache) caches() (*lru.Cache[chainhash.Hash, *cachedMembers],
	*lru.Cache[indexKey, *cachedMembers]) {

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.byBlock, c.byIndex
}

// lookupBlock returns the membership cached for a quorum base block.
func (c *memberCache) lookupBlock(
	hash chainhash.Hash) ([]*mnlist.Masternode, bool) {

	byBlock, _ := c.caches()

	return lookup(byBlock, hash)
}

// lookupIndex returns the membership cached for a quorum index of a cycle.
func (c *memberCache) lookupIndex(cycleHash chainhash.Hash,
	quorumIdx int) ([]*mnlist.Masternode, bool) {

	_, byIndex := c.caches()

	return lookup(byIndex, indexKey{cycleHash, quorumIdx})
}

// storeBlock caches the membership of a quorum base block.
func (c *memberCache) storeBlock(hash chainhash.Hash,
	members []*mnlist.Masternode) {

	byBlock, _ := c.caches()
	put(byBlock, hash, members)
}

// storeIndex caches the membership of a quorum index of a cycle.
func (c *memberCache) storeIndex(cycleHash chainhash.Hash, quorumIdx int,
	members []*mnlist.Masternode) {

	_, byIndex := c.caches()
	put(byIndex, indexKey{cycleHash, quorumIdx}, members)
}

func lookup[K comparable](c *lru.Cache[K, *cachedMembers],
	key K) ([]*mnlist.Masternode, bool) {

	entry, err := c.Get(key)
	switch {
	case errors.Is(err, cache.ErrElementNotFound):
		return nil, false

	case err != nil:
		log.Errorf("Unable to read membership cache: %v", err)
		return nil, false
	}

	return entry.members, true
}

func put[K comparable](c *lru.Cache[K, *cachedMembers], key K,
	members []*mnlist.Masternode) {

	if _, err := c.Put(key, &cachedMembers{members: members}); err != nil {
		log.Errorf("Unable to update membership cache: %v", err)
	}
}
