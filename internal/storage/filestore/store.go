// Package filestore provides a file-per-node btree.Backend.
//
// Every node lives in its own file under <dir>/nodes and the tree's meta
// record in <dir>/META. Node files are written once and never modified: the
// provider shadows any node a published version can see, so a flushed node
// is immutable until it is removed.
//
// Flush writes the nodes created since the previous flush, then atomically
// replaces META, and only then removes the files of nodes freed in between.
// A crash at any point leaves the last flushed tree intact on disk.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/KilimcininKorOglu/obtree/internal/logging"
	"github.com/KilimcininKorOglu/obtree/internal/storage/btree"
)

// Layout names.
const (
	NodesDir    = "nodes"
	MetaFile    = "META"
	nodeSuffix  = ".node"
	tempPattern = ".tmp-*"
)

// Errors for Store operations.
var (
	ErrStoreClosed   = errors.New("filestore is closed")
	ErrStoreReadOnly = errors.New("filestore is read-only")
)

// Store is a btree.Backend keeping one file per node.
type Store[K, V any] struct {
	dir    string
	opts   Options
	logger logging.Logger

	mu sync.Mutex
	// dirty holds nodes stored since the last flush, by instance.
	dirty map[btree.NodeID]*btree.Node[K, V]
	// flushedNext is the id counter of the last flushed meta record. Nodes
	// at or above it have never been written to disk.
	flushedNext uint64
	// freed holds persisted nodes deleted since the last flush. Their files
	// stay until the next meta record no longer needs them.
	freed map[btree.NodeID]struct{}

	cache  *lru.Cache[btree.NodeID, *btree.Node[K, V]]
	loads  singleflight.Group
	closed bool
}

var _ btree.Backend[string, string] = (*Store[string, string])(nil)

// Open opens or creates a store in dir.
func Open[K, V any](dir string, opts Options) (*Store[K, V], error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	if opts.ReadOnly {
		if _, err := os.Stat(filepath.Join(dir, MetaFile)); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrapf(btree.ErrTreeNotFound, "%s", dir)
			}
			return nil, errors.Wrapf(err, "stat %s", dir)
		}
	} else if err := os.MkdirAll(filepath.Join(dir, NodesDir), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}

	cache, err := lru.New[btree.NodeID, *btree.Node[K, V]](opts.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create node cache")
	}

	s := &Store[K, V]{
		dir:    dir,
		opts:   opts,
		logger: opts.Logger.WithComponent("filestore").WithFields("dir", dir),
		dirty:  make(map[btree.NodeID]*btree.Node[K, V]),
		freed:  make(map[btree.NodeID]struct{}),
		cache:  cache,
	}
	if !opts.ReadOnly {
		if err := s.removeTempFiles(); err != nil {
			return nil, err
		}
	}

	meta, hasMeta, err := s.LoadMeta()
	if err != nil {
		return nil, err
	}
	s.flushedNext = meta.NextID
	s.logger.Info("filestore opened", "existing", hasMeta, "cache_size", opts.CacheSize, "read_only", opts.ReadOnly)
	return s, nil
}

// removeTempFiles drops half-written files left by an interrupted flush.
func (s *Store[K, V]) removeTempFiles() error {
	for _, dir := range []string{s.dir, filepath.Join(s.dir, NodesDir)} {
		matches, err := filepath.Glob(filepath.Join(dir, tempPattern))
		if err != nil {
			return errors.Wrap(err, "scan temp files")
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "remove %s", m)
			}
		}
	}
	return nil
}

func (s *Store[K, V]) nodePath(id btree.NodeID) string {
	return filepath.Join(s.dir, NodesDir, fmt.Sprintf("%016x%s", uint64(id), nodeSuffix))
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

	if n, ok := s.cache.Get(id); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return n, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := s.loads.Do(strconv.FormatUint(uint64(id), 16), func() (interface{}, error) {
		n, err := s.readNode(id)
		if err != nil {
			return nil, err
		}
		s.cache.Add(id, n)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*btree.Node[K, V]), nil
}

func (s *Store[K, V]) readNode(id btree.NodeID) (*btree.Node[K, V], error) {
	data, err := os.ReadFile(s.nodePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, btree.ErrNodeNotFound
		}
		return nil, errors.Wrapf(err, "read node %s", id)
	}
	nodeReads.Inc()
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
	s.cache.Remove(id)
	if uint64(id) < s.flushedNext {
		s.freed[id] = struct{}{}
	}
	return nil
}

// Flush implements btree.Backend.
func (s *Store[K, V]) Flush(meta btree.Meta) error {
	start := time.Now()
	defer func() { flushDuration.Observe(time.Since(start).Seconds()) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.opts.ReadOnly {
		return ErrStoreReadOnly
	}

	var written uint64
	for id, n := range s.dirty {
		data, err := btree.EncodeNode(n)
		if err != nil {
			return err
		}
		if err := s.writeFile(s.nodePath(id), data, s.opts.SyncOnWrite); err != nil {
			return errors.Wrapf(err, "write node %s", id)
		}
		nodeWrites.Inc()
		written += uint64(len(data))
	}
	if s.opts.SyncOnWrite && len(s.dirty) > 0 {
		if err := syncDir(filepath.Join(s.dir, NodesDir)); err != nil {
			return err
		}
	}

	if err := s.writeFile(filepath.Join(s.dir, MetaFile), meta.Serialize(), true); err != nil {
		return errors.Wrap(err, "write meta")
	}
	if err := syncDir(s.dir); err != nil {
		return err
	}

	// The new meta is durable; nothing reachable from it is in freed.
	for id := range s.freed {
		if err := os.Remove(s.nodePath(id)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove node %s", id)
		}
		nodeRemovals.Inc()
	}

	s.logger.Info("filestore flushed",
		"root", meta.Root,
		"count", meta.Count,
		"nodes_written", len(s.dirty),
		"nodes_removed", len(s.freed),
		"bytes", humanize.Bytes(written),
	)

	for id, n := range s.dirty {
		s.cache.Add(id, n)
	}
	clear(s.dirty)
	clear(s.freed)
	s.flushedNext = meta.NextID
	return nil
}

// writeFile writes data to path through a temp file and a rename, so path
// holds either the old or the new contents.
func (s *Store[K, V]) writeFile(path string, data []byte, sync bool) error {
	f, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if sync {
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrapf(err, "open %s", dir)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", dir)
	}
	return nil
}

// LoadMeta implements btree.Backend.
func (s *Store[K, V]) LoadMeta() (btree.Meta, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, MetaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return btree.Meta{}, false, nil
		}
		return btree.Meta{}, false, errors.Wrap(err, "read meta")
	}
	meta, err := btree.DeserializeMeta(data)
	if err != nil {
		return btree.Meta{}, false, err
	}
	return meta, true, nil
}

// Close implements btree.Backend. Nodes not flushed are discarded.
func (s *Store[K, V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Purge()
	s.logger.Info("filestore closed", "unflushed", len(s.dirty))
	return nil
}

// NodeFiles returns the ids of every node file on disk.
func (s *Store[K, V]) NodeFiles() ([]btree.NodeID, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, NodesDir))
	if err != nil {
		return nil, errors.Wrap(err, "list nodes")
	}
	ids := make([]btree.NodeID, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), nodeSuffix)
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(name, 16, 64)
		if err != nil {
			continue
		}
		ids = append(ids, btree.NodeID(id))
	}
	return ids, nil
}
