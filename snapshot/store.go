package snapshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/kvdb"
)

const (
	// DefaultCacheSize is the number of snapshots kept in the front cache
	// of a Store.
	DefaultCacheSize = 32
)

var (
	// snapshotBucket is the top level bucket holding every snapshot keyed
	// by Key(type, blockHash).
	snapshotBucket = []byte("llmq-quorum-snapshots")
)

// Key returns the database key of the snapshot of the given quorum type at
// the given cycle base block: the double sha256 of the type byte followed by
// the block hash.
func Key(llmqType uint8, blockHash chainhash.Hash) chainhash.Hash {
	var b [1 + chainhash.HashSize]byte
	b[0] = llmqType
	copy(b[1:], blockHash[:])

	return chainhash.DoubleHashH(b[:])
}

// Store persists snapshots in a kvdb backend with an LRU cache in front of
// it. It is safe for concurrent use.
type Store struct {
	db kvdb.Backend

	// mu serializes writes so the cache never holds a snapshot that lost
	// a race against a concurrent store of the same key.
	mu    sync.Mutex
	cache *lru.Cache[chainhash.Hash, *Snapshot]
}

// NewStore creates a snapshot store on top of db, creating its bucket if
// needed.
func NewStore(db kvdb.Backend, cacheSize uint64) (*Store, error) {
	err := kvdb.Update(db, func(tx kvdb.RwTx) error {
		_, err := tx.CreateTopLevelBucket(snapshotBucket)
		return err
	}, func() {})
	if err != nil {
		return nil, newError(ErrDatabase, "unable to create snapshot "+
			"bucket", err)
	}

	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}

	return &Store{
		db:    db,
		cache: lru.NewCache[chainhash.Hash, *Snapshot](cacheSize),
	}, nil
}

// FetchSnapshot returns the snapshot of the given quorum type at the given
// cycle base block, or None if none was stored.
func (s *Store) FetchSnapshot(llmqType uint8,
	blockHash chainhash.Hash) (fn.Option[*Snapshot], error) {

	key := Key(llmqType, blockHash)

	snap, err := s.cache.Get(key)
	switch {
	case err == nil:
		return fn.Some(snap), nil

	case !errors.Is(err, cache.ErrElementNotFound):
		return fn.None[*Snapshot](), err
	}

	var raw []byte
	err = kvdb.View(s.db, func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(snapshotBucket)
		if bucket == nil {
			return kvdb.ErrBucketNotFound
		}

		if v := bucket.Get(key[:]); v != nil {
			raw = append([]byte(nil), v...)
		}

		return nil
	}, func() {
		raw = nil
	})
	if err != nil {
		return fn.None[*Snapshot](), newError(ErrDatabase,
			"unable to read snapshot", err)
	}
	if raw == nil {
		return fn.None[*Snapshot](), nil
	}

	snap, err = Deserialize(raw)
	if err != nil {
		return fn.None[*Snapshot](), fmt.Errorf("snapshot %v of "+
			"type %d: %w", blockHash, llmqType, err)
	}

	if _, err := s.cache.Put(key, snap); err != nil {
		return fn.None[*Snapshot](), err
	}

	return fn.Some(snap), nil
}

// StoreSnapshot persists the snapshot of the given quorum type at the given
// cycle base block, replacing any previous one.
func (s *Store) StoreSnapshot(llmqType uint8, blockHash chainhash.Hash,
	snap *Snapshot) error {

	raw, err := snap.Serialize()
	if err != nil {
		return err
	}

	key := Key(llmqType, blockHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	err = kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(snapshotBucket)
		if bucket == nil {
			return kvdb.ErrBucketNotFound
		}

		return bucket.Put(key[:], raw)
	}, func() {})
	if err != nil {
		return newError(ErrDatabase, "unable to write snapshot", err)
	}

	if _, err := s.cache.Put(key, snap); err != nil {
		return err
	}

	log.Debugf("Stored snapshot of type %d at %v: %v", llmqType,
		blockHash, snap)

	return nil
}

// MemStore keeps encoded snapshots in memory. It is used where no database
// is wanted, e.g. by offline tools working on a simulated chain.
type MemStore struct {
	mu        sync.RWMutex
	snapshots map[chainhash.Hash][]byte
}

// NewMemStore returns an empty in-memory snapshot store.
func NewMemStore() *MemStore {
	return &MemStore{
		snapshots: make(map[chainhash.Hash][]byte),
	}
}

// FetchSnapshot returns the snapshot of the given quorum type at the given
// cycle base block, or None if none was stored.
func (m *MemStore) FetchSnapshot(llmqType uint8,
	blockHash chainhash.Hash) (fn.Option[*Snapshot], error) {

	m.mu.RLock()
	raw, ok := m.snapshots[Key(llmqType, blockHash)]
	m.mu.RUnlock()

	if !ok {
		return fn.None[*Snapshot](), nil
	}

	snap, err := Deserialize(raw)
	if err != nil {
		return fn.None[*Snapshot](), err
	}

	return fn.Some(snap), nil
}

// StoreSnapshot stores the snapshot of the given quorum type at the given
// cycle base block.
func (m *MemStore) StoreSnapshot(llmqType uint8, blockHash chainhash.Hash,
	snap *Snapshot) error {

	raw, err := snap.Serialize()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.snapshots[Key(llmqType, blockHash)] = raw
	m.mu.Unlock()

	return nil
}

// Len returns the number of stored snapshots.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.snapshots)
}
