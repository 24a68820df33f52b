// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obtree/internal/logging"
)

// Tree is the root holder of a B-tree. It owns the published root id, the
// tuple count and the mutation lock.
//
// Put, Remove and Clear are serialized by the mutation lock for their whole
// top-down pass. Reads never take it: they pin the published root and walk a
// version no writer will modify.
type Tree[K, V any] struct {
	provider NodeProvider[K, V]
	cmp      Comparator[K]
	degree   int
	readOnly bool
	logger   logging.Logger

	// mu serializes writers.
	mu sync.Mutex

	// snapMu guards the published version and closed.
	snapMu sync.RWMutex
	root   NodeID
	count  int
	height int
	closed bool
}

// Open opens the tree stored in provider, or creates an empty one if the
// provider holds no meta record.
func Open[K, V any](provider NodeProvider[K, V], opts Options) (*Tree[K, V], error) {
	opts = opts.withDefaults()
	if opts.Degree != 0 && opts.Degree < MinDegree {
		return nil, errors.Wrapf(ErrInvalidDegree, "degree %d", opts.Degree)
	}

	t := &Tree[K, V]{
		provider: provider,
		cmp:      provider.Comparator(),
		degree:   opts.Degree,
		readOnly: opts.ReadOnly,
		logger:   opts.Logger.WithComponent("btree"),
	}

	meta, ok, err := provider.Meta()
	if err != nil {
		return nil, errors.Wrap(err, "read meta")
	}

	if ok {
		if t.degree == 0 {
			t.degree = int(meta.Degree)
		} else if t.degree != int(meta.Degree) {
			return nil, errors.Wrapf(ErrDegreeMismatch, "configured %d, stored %d", t.degree, meta.Degree)
		}
		if t.degree < MinDegree {
			return nil, errors.Wrapf(ErrCorruptMeta, "stored degree %d", meta.Degree)
		}
		t.root = meta.Root
		t.count = int(meta.Count)
		if t.height, err = t.measureHeight(t.root); err != nil {
			return nil, errors.Wrap(err, "measure height")
		}
		t.logger.Info("tree opened", "root", t.root, "count", t.count, "height", t.height, "degree", t.degree)
	} else if opts.ReadOnly {
		return nil, ErrTreeNotFound
	} else {
		if t.degree == 0 {
			t.degree = DefaultDegree
		}
		root, err := provider.Allocate(true)
		if err != nil {
			return nil, errors.Wrap(err, "allocate root")
		}
		t.root = root.ID()
		t.logger.Debug("tree created", "root", t.root, "degree", t.degree)
	}

	t.publishGauges()
	return t, nil
}

// New creates an empty in-memory tree ordered by cmp.
func New[K, V any](cmp Comparator[K], opts Options) (*Tree[K, V], error) {
	return Open[K, V](NewMemoryProvider[K, V](cmp), opts)
}

func (t *Tree[K, V]) measureHeight(id NodeID) (int, error) {
	height := 0
	for {
		n, err := t.provider.Get(id, Read)
		if err != nil {
			return 0, err
		}
		if n.IsLeaf() {
			return height, nil
		}
		id = n.children[0]
		height++
	}
}

// Degree returns the tree's minimum degree.
func (t *Tree[K, V]) Degree() int {
	return t.degree
}

// ----------------------------------------------------------------------------
// Writes
// ----------------------------------------------------------------------------

// txn is one writer's private fork of the published version.
type txn[K, V any] struct {
	w      writer[K, V]
	root   NodeID
	count  int
	height int
}

// begin forks the published version. Must be called with mu held.
func (t *Tree[K, V]) begin() (*txn[K, V], error) {
	t.snapMu.RLock()
	closed, root, count, height := t.closed, t.root, t.count, t.height
	t.snapMu.RUnlock()
	if closed {
		return nil, ErrTreeClosed
	}
	if t.readOnly {
		return nil, ErrReadOnly
	}

	if err := t.provider.Retain(root); err != nil {
		return nil, err
	}
	return &txn[K, V]{
		w:      writer[K, V]{p: t.provider, cmp: t.cmp, degree: t.degree},
		root:   root,
		count:  count,
		height: height,
	}, nil
}

// commit publishes tx and drops the tree's reference on the previous root.
func (t *Tree[K, V]) commit(tx *txn[K, V]) error {
	t.snapMu.Lock()
	old := t.root
	t.root, t.count, t.height = tx.root, tx.count, tx.height
	t.snapMu.Unlock()

	t.publishGauges()
	return t.provider.Release(old)
}

// abort discards tx. Nothing it did was ever visible.
func (t *Tree[K, V]) abort(tx *txn[K, V], cause error) error {
	if err := t.provider.Release(tx.root); err != nil && cause != nil {
		return errors.WithSecondaryError(cause, err)
	} else if err != nil {
		return err
	}
	return cause
}

func (t *Tree[K, V]) publishGauges() {
	treeSize.Set(float64(t.count))
	treeHeight.Set(float64(t.height))
}

// Put stores value under key and returns the value it replaced, if any.
func (t *Tree[K, V]) Put(key K, value V) (V, bool, error) {
	var zero V
	t.mu.Lock()
	defer t.mu.Unlock()
	treeOperations.WithLabelValues("put").Inc()

	tx, err := t.begin()
	if err != nil {
		return zero, false, err
	}

	root, err := tx.w.fetch(tx.root)
	if err != nil {
		return zero, false, t.abort(tx, err)
	}
	tx.root = root.ID()

	if root.isOverflow(t.degree) {
		if root, err = tx.w.splitRoot(root); err != nil {
			return zero, false, t.abort(tx, err)
		}
		tx.root = root.ID()
		tx.height++
		rootSplits.Inc()
		t.logger.Debug("root split", "root", tx.root, "height", tx.height)
	}

	old, replaced, err := tx.w.put(root, NewTuple(key, value))
	if err != nil {
		return zero, false, t.abort(tx, err)
	}
	if !replaced {
		tx.count++
	}
	if err := t.commit(tx); err != nil {
		return zero, false, err
	}
	return old.value, replaced, nil
}

// Remove deletes key and returns the value it held, if any. Removing an
// absent key leaves the tree untouched.
func (t *Tree[K, V]) Remove(key K) (V, bool, error) {
	var zero V
	t.mu.Lock()
	defer t.mu.Unlock()
	treeOperations.WithLabelValues("remove").Inc()

	tx, err := t.begin()
	if err != nil {
		return zero, false, err
	}
	if tx.count == 0 {
		return zero, false, t.abort(tx, nil)
	}

	root, err := tx.w.fetch(tx.root)
	if err != nil {
		return zero, false, t.abort(tx, err)
	}
	tx.root = root.ID()

	old, found, err := tx.w.remove(root, key)
	if err != nil || !found {
		return zero, false, t.abort(tx, err)
	}
	tx.count--

	if !root.IsLeaf() && root.Len() == 0 {
		tx.root = root.children[0]
		if err := t.provider.Free(root.ID()); err != nil {
			return zero, false, t.abort(tx, err)
		}
		tx.height--
		rootCollapses.Inc()
		t.logger.Debug("root collapsed", "root", tx.root, "height", tx.height)
	}

	if err := t.commit(tx); err != nil {
		return zero, false, err
	}
	return old.value, true, nil
}

// Clear removes every tuple. The previous version's nodes are freed once
// no snapshot can see them.
func (t *Tree[K, V]) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	treeOperations.WithLabelValues("clear").Inc()

	t.snapMu.RLock()
	closed := t.closed
	t.snapMu.RUnlock()
	if closed {
		return ErrTreeClosed
	}
	if t.readOnly {
		return ErrReadOnly
	}

	root, err := t.provider.Allocate(true)
	if err != nil {
		return errors.Wrap(err, "allocate root")
	}
	return t.commit(&txn[K, V]{root: root.ID()})
}

// Flush persists the published version through the provider.
func (t *Tree[K, V]) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

func (t *Tree[K, V]) flushLocked() error {
	t.snapMu.RLock()
	closed := t.closed
	meta := Meta{Degree: uint32(t.degree), Root: t.root, Count: uint64(t.count)}
	t.snapMu.RUnlock()
	if closed {
		return ErrTreeClosed
	}
	if t.readOnly {
		return ErrReadOnly
	}

	if err := t.provider.Flush(meta); err != nil {
		return errors.Wrap(err, "flush")
	}
	return nil
}

// Close flushes the tree and closes its provider. A read-only tree is
// closed without flushing. Snapshots and iterators still open fail with
// ErrProviderClosed on their next node access.
func (t *Tree[K, V]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.flushLocked(); err != nil {
		switch {
		case errors.Is(err, ErrTreeClosed):
			return nil
		case errors.Is(err, ErrReadOnly):
		default:
			return err
		}
	}

	t.snapMu.Lock()
	t.closed = true
	t.snapMu.Unlock()

	t.logger.Debug("tree closed", "root", t.root, "count", t.count)
	return t.provider.Close()
}

// ----------------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------------

// acquire pins the published version.
func (t *Tree[K, V]) acquire() (*view[K, V], error) {
	t.snapMu.RLock()
	defer t.snapMu.RUnlock()
	if t.closed {
		return nil, ErrTreeClosed
	}
	if err := t.provider.Retain(t.root); err != nil {
		return nil, err
	}
	return &view[K, V]{
		p:      t.provider,
		cmp:    t.cmp,
		degree: t.degree,
		root:   t.root,
		count:  t.count,
		height: t.height,
	}, nil
}

// read runs fn against a pinned version and unpins it afterwards.
func (t *Tree[K, V]) read(op string, fn func(v *view[K, V]) error) error {
	treeOperations.WithLabelValues(op).Inc()
	v, err := t.acquire()
	if err != nil {
		return err
	}
	err = fn(v)
	if rerr := v.release(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Get returns the value stored under key.
func (t *Tree[K, V]) Get(key K) (value V, found bool, err error) {
	err = t.read("get", func(v *view[K, V]) error {
		var tuple Tuple[K, V]
		tuple, found, err = v.get(key)
		value = tuple.value
		return err
	})
	return value, found, err
}

// Contains reports whether key is present.
func (t *Tree[K, V]) Contains(key K) (bool, error) {
	_, found, err := t.Get(key)
	return found, err
}

// FirstEntry returns the tuple with the smallest key.
func (t *Tree[K, V]) FirstEntry() (tuple Tuple[K, V], found bool, err error) {
	err = t.read("first", func(v *view[K, V]) error {
		tuple, found, err = v.first()
		return err
	})
	return tuple, found, err
}

// LastEntry returns the tuple with the largest key.
func (t *Tree[K, V]) LastEntry() (tuple Tuple[K, V], found bool, err error) {
	err = t.read("last", func(v *view[K, V]) error {
		tuple, found, err = v.last()
		return err
	})
	return tuple, found, err
}

// CeilingEntry returns the tuple with the smallest key greater than or equal
// to key.
func (t *Tree[K, V]) CeilingEntry(key K) (tuple Tuple[K, V], found bool, err error) {
	err = t.read("ceiling", func(v *view[K, V]) error {
		tuple, found, err = v.ceiling(key)
		return err
	})
	return tuple, found, err
}

// Len returns the number of tuples in the published version.
func (t *Tree[K, V]) Len() int {
	t.snapMu.RLock()
	defer t.snapMu.RUnlock()
	return t.count
}

// IsEmpty reports whether the tree holds no tuples.
func (t *Tree[K, V]) IsEmpty() bool {
	return t.Len() == 0
}

// Height returns the number of edges between the root and any leaf. A tree
// whose root is a leaf has height 0.
func (t *Tree[K, V]) Height() int {
	t.snapMu.RLock()
	defer t.snapMu.RUnlock()
	return t.height
}

// Iterator returns an iterator over every tuple in ascending key order.
func (t *Tree[K, V]) Iterator() (*Iterator[K, V], error) {
	treeOperations.WithLabelValues("scan").Inc()
	v, err := t.acquire()
	if err != nil {
		return nil, err
	}
	return newIterator(v, nil, true), nil
}

// IteratorFrom returns an iterator starting at the first key at or after key
// (inclusive) or strictly after key (exclusive).
func (t *Tree[K, V]) IteratorFrom(key K, inclusive bool) (*Iterator[K, V], error) {
	treeOperations.WithLabelValues("scan").Inc()
	v, err := t.acquire()
	if err != nil {
		return nil, err
	}
	return newIterator(v, &key, inclusive), nil
}

// Snapshot pins the published version. The snapshot must be closed to let
// the provider free nodes the tree has since replaced.
func (t *Tree[K, V]) Snapshot() (*Snapshot[K, V], error) {
	treeOperations.WithLabelValues("snapshot").Inc()
	v, err := t.acquire()
	if err != nil {
		return nil, err
	}
	return &Snapshot[K, V]{view: v}, nil
}

// Verify walks the published version and checks every structural invariant.
func (t *Tree[K, V]) Verify() error {
	return t.read("verify", func(v *view[K, V]) error {
		_, err := v.verify()
		return err
	})
}

// Stats walks the published version and reports its shape.
func (t *Tree[K, V]) Stats() (stats Stats, err error) {
	err = t.read("stats", func(v *view[K, V]) error {
		stats, err = v.verify()
		return err
	})
	return stats, err
}
