package lncfg

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/kvdb"
)

const (
	// SnapshotDBName is the file name of the snapshot database.
	SnapshotDBName = "llmq.db"

	// DefaultSnapshotCacheSize is the default number of snapshots kept in
	// memory in front of the database.
	DefaultSnapshotCacheSize = 32
)

// DB holds the snapshot database configuration.
type DB struct {
	Timeout time.Duration `long:"timeout" description:"The time to wait for the database lock before giving up."`

	NoFreelistSync bool `long:"nofreelistsync" description:"Do not sync the freelist to disk. This speeds up opening the database but makes it slower to recover after a crash."`

	AutoCompact bool `long:"autocompact" description:"Compact the database on startup."`

	AutoCompactMinAge time.Duration `long:"autocompactminage" description:"How long ago the last compaction must be before compacting again."`

	CacheSize uint64 `long:"cachesize" description:"The number of snapshots kept in memory in front of the database."`
}

// DefaultDB returns the default database config.
func DefaultDB() *DB {
	return &DB{
		Timeout:           kvdb.DefaultDBTimeout,
		NoFreelistSync:    true,
		AutoCompactMinAge: kvdb.DefaultBoltAutoCompactMinAge,
		CacheSize:         DefaultSnapshotCacheSize,
	}
}

// Validate validates the DB config.
func (db *DB) Validate() error {
	if db.Timeout <= 0 {
		return fmt.Errorf("db.timeout must be positive")
	}
	if db.CacheSize == 0 {
		return fmt.Errorf("db.cachesize must be positive")
	}

	return nil
}

// GetBackend opens the bolt snapshot database in the given directory.
func (db *DB) GetBackend(dbPath string) (kvdb.Backend, error) {
	return kvdb.GetBoltBackend(&kvdb.BoltBackendConfig{
		DBPath:            dbPath,
		DBFileName:        SnapshotDBName,
		NoFreelistSync:    db.NoFreelistSync,
		AutoCompact:       db.AutoCompact,
		AutoCompactMinAge: db.AutoCompactMinAge,
		DBTimeout:         db.Timeout,
	})
}

// Compile-time constraint to ensure DB implements the Validator interface.
var _ Validator = (*DB)(nil)
