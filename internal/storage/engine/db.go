// Package engine opens a byte-keyed obtree database from configuration.
package engine

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obtree/internal/config"
	"github.com/KilimcininKorOglu/obtree/internal/logging"
	"github.com/KilimcininKorOglu/obtree/internal/storage/btree"
	"github.com/KilimcininKorOglu/obtree/internal/storage/filestore"
	"github.com/KilimcininKorOglu/obtree/internal/storage/pebblestore"
)

// Engine errors.
var (
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrNilKey         = errors.New("key must not be nil")
)

// DB is an ordered byte-keyed store.
type DB struct {
	tree    *btree.Tree[[]byte, []byte]
	backend string
	dir     string
	logger  logging.Logger
}

// Stats describes a DB.
type Stats struct {
	btree.Stats
	Backend string
	Dir     string
}

// Open opens the database described by cfg, creating it if needed.
func Open(cfg *config.Config, logger logging.Logger) (*DB, error) {
	return open(cfg, logger, false)
}

// OpenReadOnly opens an existing database for reads. It never creates or
// modifies storage: writes fail with btree.ErrReadOnly and Close does not
// flush. A missing database fails with btree.ErrTreeNotFound.
func OpenReadOnly(cfg *config.Config, logger logging.Logger) (*DB, error) {
	return open(cfg, logger, true)
}

func open(cfg *config.Config, logger logging.Logger, readOnly bool) (*DB, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return nil, errors.Wrapf(errs[0], "invalid config (%d errors)", len(errs))
	}

	if readOnly && cfg.Storage.Backend != config.BackendMemory {
		if _, err := os.Stat(cfg.Storage.Dir); os.IsNotExist(err) {
			return nil, errors.Wrapf(btree.ErrTreeNotFound, "%s", cfg.Storage.Dir)
		}
	}

	provider, err := openProvider(cfg.Storage, logger, readOnly)
	if err != nil {
		return nil, err
	}

	tree, err := btree.Open[[]byte, []byte](provider, btree.Options{
		Degree:   cfg.Tree.Degree,
		Logger:   logger,
		ReadOnly: readOnly,
	})
	if err != nil {
		provider.Close()
		return nil, errors.Wrap(err, "open tree")
	}

	return &DB{
		tree:    tree,
		backend: cfg.Storage.Backend,
		dir:     cfg.Storage.Dir,
		logger:  logger.WithComponent("engine"),
	}, nil
}

func openProvider(cfg config.StorageConfig, logger logging.Logger, readOnly bool) (*btree.Provider[[]byte, []byte], error) {
	var backend btree.Backend[[]byte, []byte]
	switch cfg.Backend {
	case config.BackendMemory:
		return btree.NewMemoryProvider[[]byte, []byte](btree.Bytes()), nil
	case config.BackendFile:
		s, err := filestore.Open[[]byte, []byte](cfg.Dir, filestore.Options{
			CacheSize:   cfg.CacheSize,
			SyncOnWrite: cfg.SyncOnWrite,
			Logger:      logger,
			ReadOnly:    readOnly,
		})
		if err != nil {
			return nil, err
		}
		backend = s
	case config.BackendPebble:
		s, err := pebblestore.Open[[]byte, []byte](cfg.Dir, pebblestore.Options{
			CacheSize: cfg.PebbleCacheBytes(),
			Logger:    logger,
			ReadOnly:  readOnly,
		})
		if err != nil {
			return nil, err
		}
		backend = s
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
	}

	p, err := btree.NewProvider[[]byte, []byte](backend, btree.Bytes())
	if err != nil {
		backend.Close()
		return nil, err
	}
	return p, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return bytes.Clone(b)
}

// Put stores value under key and returns the previous value, if any.
func (db *DB) Put(key, value []byte) ([]byte, bool, error) {
	if key == nil {
		return nil, false, ErrNilKey
	}
	old, replaced, err := db.tree.Put(clone(key), clone(value))
	return clone(old), replaced, err
}

// Get returns the value stored under key.
func (db *DB) Get(key []byte) ([]byte, bool, error) {
	v, found, err := db.tree.Get(key)
	return clone(v), found, err
}

// Delete removes key and returns the value it held, if any.
func (db *DB) Delete(key []byte) ([]byte, bool, error) {
	old, found, err := db.tree.Remove(key)
	return clone(old), found, err
}

// Len returns the number of keys.
func (db *DB) Len() int {
	return db.tree.Len()
}

// Scan calls fn for up to limit keys in ascending order, starting at from
// (all keys when from is nil). A limit of zero or less means no limit.
// Returning false from fn stops the scan.
func (db *DB) Scan(from []byte, inclusive bool, limit int, fn func(key, value []byte) bool) error {
	var it *btree.Iterator[[]byte, []byte]
	var err error
	if from == nil {
		it, err = db.tree.Iterator()
	} else {
		it, err = db.tree.IteratorFrom(from, inclusive)
	}
	if err != nil {
		return err
	}
	defer it.Close()

	seen := 0
	for k, v := range it.All() {
		if limit > 0 && seen >= limit {
			break
		}
		seen++
		if !fn(clone(k), clone(v)) {
			break
		}
	}
	return it.Err()
}

// Stats reports the tree's shape.
func (db *DB) Stats() (Stats, error) {
	s, err := db.tree.Stats()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Stats: s, Backend: db.backend, Dir: db.dir}, nil
}

// Verify checks every structural invariant of the tree.
func (db *DB) Verify() error {
	return db.tree.Verify()
}

// Flush makes all writes durable.
func (db *DB) Flush() error {
	return db.tree.Flush()
}

// Close flushes and closes the database.
func (db *DB) Close() error {
	db.logger.Debug("closing", "backend", db.backend)
	return db.tree.Close()
}
