// Package pebblestore provides a btree.Backend on top of a pebble database.
//
// Nodes are stored under "n/" followed by the big-endian node id, the meta
// record under "m". Like the file store, flushed nodes are never rewritten:
// a flush commits new nodes, the meta record and the deletes of freed nodes
// in a single synced batch.
package pebblestore

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/KilimcininKorOglu/obtree/internal/logging"
	"github.com/KilimcininKorOglu/obtree/internal/storage/btree"
)

var (
	nodePrefix = []byte("n/")
	metaKey    = []byte("m")
)

// Errors for Store operations.
var (
	ErrStoreClosed   = errors.New("pebblestore is closed")
	ErrStoreReadOnly = errors.New("pebblestore is read-only")
)

// Options configures a Store.
type Options struct {
	// CacheSize is the pebble block cache size in bytes. Zero keeps
	// pebble's default.
	CacheSize int64

	// Logger receives open, flush and close events.
	Logger logging.Logger

	// ReadOnly opens an existing database without writing to it.
	ReadOnly bool
}

// Store is a btree.Backend keeping nodes in pebble.
type Store[K, V any] struct {
	db     *pebble.DB
	logger logging.Logger

	mu          sync.Mutex
	dirty       map[btree.NodeID]*btree.Node[K, V]
	freed       map[btree.NodeID]struct{}
	flushedNext uint64
	readOnly    bool
	closed      bool
}

var _ btree.Backend[string, string] = (*Store[string, string])(nil)

// Open opens or creates a pebble database in dir.
func Open[K, V any](dir string, opts Options) (*Store[K, V], error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	popts := &pebble.Options{ReadOnly: opts.ReadOnly}
	if opts.CacheSize > 0 {
		cache := pebble.NewCache(opts.CacheSize)
		defer cache.Unref()
		popts.Cache = cache
	}

	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", dir)
	}

	s := &Store[K, V]{
		db:     db,
		logger: opts.Logger.WithComponent("pebblestore").WithFields("dir", dir),
		dirty:  make(map[btree.NodeID]*btree.Node[K, V]),
		freed:  make(map[btree.NodeID]struct{}),
	}

	meta, ok, err := s.LoadMeta()
	if err != nil {
		db.Close()
		return nil, err
	}
	if opts.ReadOnly && !ok {
		db.Close()
		return nil, errors.Wrapf(btree.ErrTreeNotFound, "%s", dir)
	}
	s.flushedNext = meta.NextID
	s.readOnly = opts.ReadOnly
	s.logger.Info("pebblestore opened", "existing", ok, "read_only", opts.ReadOnly)
	return s, nil
}

func nodeKey(id btree.NodeID) []byte {
	k := make([]byte, len(nodePrefix)+8)
	copy(k, nodePrefix)
	binary.BigEndian.PutUint64(k[len(nodePrefix):], uint64(id))
	return k
}

// get copies the value stored under key.
func (s *Store[K, V]) get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), true, nil
}

// Load implements btree.Backend.
func (s *Store[K, V]) Load(id btree.NodeID) (*btree.Node[K, V], error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	if n, ok := s.dirty[id]; ok {
		s.mu.Unlock()
		return n, nil
	}
	if _, ok := s.freed[id]; ok {
		s.mu.Unlock()
		return nil, btree.ErrNodeNotFound
	}
	s.mu.Unlock()

	data, ok, err := s.get(nodeKey(id))
	if err != nil {
		return nil, errors.Wrapf(err, "read node %s", id)
	}
	if !ok {
		return nil, btree.ErrNodeNotFound
	}
	return btree.DecodeNode[K, V](id, data)
}

// Store implements btree.Backend.
func (s *Store[K, V]) Store(n *btree.Node[K, V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.dirty[n.ID()] = n
	return nil
}

// Delete implements btree.Backend.
func (s *Store[K, V]) Delete(id btree.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.dirty, id)
	if uint64(id) < s.flushedNext {
		s.freed[id] = struct{}{}
	}
	return nil
}

// Flush implements btree.Backend.
func (s *Store[K, V]) Flush(meta btree.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.readOnly {
		return ErrStoreReadOnly
	}

	b := s.db.NewBatch()
	defer b.Close()

	for id, n := range s.dirty {
		data, err := btree.EncodeNode(n)
		if err != nil {
			return err
		}
		if err := b.Set(nodeKey(id), data, nil); err != nil {
			return errors.Wrapf(err, "batch node %s", id)
		}
	}
	for id := range s.freed {
		if err := b.Delete(nodeKey(id), nil); err != nil {
			return errors.Wrapf(err, "batch delete %s", id)
		}
	}
	if err := b.Set(metaKey, meta.Serialize(), nil); err != nil {
		return errors.Wrap(err, "batch meta")
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "commit flush")
	}

	s.logger.Info("pebblestore flushed",
		"root", meta.Root,
		"count", meta.Count,
		"nodes_written", len(s.dirty),
		"nodes_removed", len(s.freed),
	)
	clear(s.dirty)
	clear(s.freed)
	s.flushedNext = meta.NextID
	return nil
}

// LoadMeta implements btree.Backend.
func (s *Store[K, V]) LoadMeta() (btree.Meta, bool, error) {
	data, ok, err := s.get(metaKey)
	if err != nil {
		return btree.Meta{}, false, errors.Wrap(err, "read meta")
	}
	if !ok {
		return btree.Meta{}, false, nil
	}
	meta, err := btree.DeserializeMeta(data)
	if err != nil {
		return btree.Meta{}, false, err
	}
	return meta, true, nil
}

// NodeCount returns the number of nodes stored in the database.
func (s *Store[K, V]) NodeCount() (int, error) {
	upper := append([]byte(nil), nodePrefix...)
	upper[len(upper)-1]++

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: nodePrefix, UpperBound: upper})
	if err != nil {
		return 0, errors.Wrap(err, "open iterator")
	}
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	if err := iter.Close(); err != nil {
		return 0, errors.Wrap(err, "close iterator")
	}
	return n, nil
}

// Close implements btree.Backend. Nodes not flushed are discarded.
func (s *Store[K, V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("pebblestore closed", "unflushed", len(s.dirty))
	return errors.Wrap(s.db.Close(), "close pebble")
}
