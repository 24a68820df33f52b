// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// NodeProvider owns node lifecycle for a tree: allocation, lookup, freeing
// and copy-on-write shadowing. The tree refers to nodes only by NodeID and
// resolves them through the provider on every access.
//
// Every node carries an observer count: the number of parents and pinned
// versions that can reach it. A Get with Write intent on a node with more
// than one observer returns a shadow copy under a fresh NodeID; the caller
// must store the returned node's ID in the parent slot it came from.
type NodeProvider[K, V any] interface {
	// Allocate creates and registers an empty node with one observer.
	Allocate(leaf bool) (*Node[K, V], error)

	// Get resolves id. Unknown ids fail with an error wrapping
	// ErrNodeNotFound.
	Get(id NodeID, intent Intent) (*Node[K, V], error)

	// Free drops a node whose contents have been moved elsewhere. It does
	// not touch the node's children. Freeing a node that is still shared is
	// an assertion failure.
	Free(id NodeID) error

	// Retain adds an observer to id.
	Retain(id NodeID) error

	// Release removes an observer from id. When the last observer goes
	// away the node is freed and its children are released in turn.
	Release(id NodeID) error

	// Observers returns the observer count of id.
	Observers(id NodeID) int

	// Comparator returns the key order of the provider's trees.
	Comparator() Comparator[K]

	// Flush makes every node reachable from meta.Root and the meta record
	// itself durable. Volatile providers may treat it as a no-op.
	Flush(meta Meta) error

	// Meta returns the last flushed meta record, if any.
	Meta() (Meta, bool, error)

	// Close releases the provider's resources.
	Close() error
}

// Backend stores node images for a Provider. Backends never decide
// visibility or sharing; they only hold what the provider tells them to.
//
// Store hands over the node instance itself: the provider keeps mutating
// nodes with a single observer in place, so a backend must keep the instance
// (not a copy) until the next Flush.
type Backend[K, V any] interface {
	Load(id NodeID) (*Node[K, V], error)
	Store(n *Node[K, V]) error
	Delete(id NodeID) error
	Flush(meta Meta) error
	LoadMeta() (Meta, bool, error)
	Close() error
}

// Provider is the NodeProvider implementation shared by every backend. It
// mints ids, tracks observer counts and performs copy-on-write shadowing.
type Provider[K, V any] struct {
	backend Backend[K, V]
	cmp     Comparator[K]

	// lastID is the most recently minted NodeID.
	lastID atomic.Uint64

	// refs holds observer counts above one. A live node missing from the
	// table has exactly one observer.
	refs *xsync.MapOf[NodeID, int32]

	closed atomic.Bool
}

var _ NodeProvider[int, int] = (*Provider[int, int])(nil)

// NewProvider creates a provider over backend. If the backend holds a meta
// record the id counter resumes where it left off.
func NewProvider[K, V any](backend Backend[K, V], cmp Comparator[K]) (*Provider[K, V], error) {
	if cmp == nil {
		return nil, errors.New("btree: nil comparator")
	}

	p := &Provider[K, V]{
		backend: backend,
		cmp:     cmp,
		refs:    xsync.NewMapOf[NodeID, int32](),
	}

	meta, ok, err := backend.LoadMeta()
	if err != nil {
		return nil, errors.Wrap(err, "load meta")
	}
	if ok {
		p.lastID.Store(meta.NextID - 1)
	}
	return p, nil
}

// NewMemoryProvider creates a provider whose nodes live only in memory.
func NewMemoryProvider[K, V any](cmp Comparator[K]) *Provider[K, V] {
	p, err := NewProvider[K, V](NewMemoryBackend[K, V](), cmp)
	if err != nil {
		// The memory backend has no meta until its first Flush.
		panic(err)
	}
	return p
}

func (p *Provider[K, V]) mint() NodeID {
	return NodeID(p.lastID.Add(1))
}

// Allocate implements NodeProvider.
func (p *Provider[K, V]) Allocate(leaf bool) (*Node[K, V], error) {
	if p.closed.Load() {
		return nil, ErrProviderClosed
	}

	n := newNode[K, V](p.mint(), leaf)
	if err := p.backend.Store(n); err != nil {
		return nil, errors.Wrapf(err, "store new node %s", n.id)
	}
	nodeAllocations.Inc()
	return n, nil
}

// Get implements NodeProvider.
func (p *Provider[K, V]) Get(id NodeID, intent Intent) (*Node[K, V], error) {
	if p.closed.Load() {
		return nil, ErrProviderClosed
	}
	nodeFetches.WithLabelValues(intent.String()).Inc()

	n, err := p.load(id)
	if err != nil {
		return nil, err
	}
	if intent == Read {
		return n, nil
	}

	if p.Observers(id) <= 1 {
		// Only the caller's version can see it; mutate in place.
		if err := p.backend.Store(n); err != nil {
			return nil, errors.Wrapf(err, "store node %s", id)
		}
		return n, nil
	}
	return p.shadow(n)
}

// shadow clones a shared node. The clone takes over the caller's observer
// reference on n and adds one on each child it now shares with n.
func (p *Provider[K, V]) shadow(n *Node[K, V]) (*Node[K, V], error) {
	c := n.clone(p.mint())
	for _, child := range c.children {
		if err := p.Retain(child); err != nil {
			return nil, err
		}
	}
	if err := p.backend.Store(c); err != nil {
		return nil, errors.Wrapf(err, "store shadow %s of %s", c.id, n.id)
	}
	if err := p.Release(n.id); err != nil {
		return nil, err
	}
	nodeClones.Inc()
	return c, nil
}

func (p *Provider[K, V]) load(id NodeID) (*Node[K, V], error) {
	if id == InvalidNodeID {
		return nil, errors.AssertionFailedf("lookup of invalid node id")
	}
	n, err := p.backend.Load(id)
	if err != nil {
		if errors.Is(err, ErrNodeNotFound) {
			return nil, errors.Wrapf(err, "node %s", id)
		}
		return nil, errors.Wrapf(err, "load node %s", id)
	}
	return n, nil
}

// Free implements NodeProvider.
func (p *Provider[K, V]) Free(id NodeID) error {
	if obs := p.Observers(id); obs > 1 {
		return errors.AssertionFailedf("free of node %s with %d observers", id, obs)
	}
	if err := p.backend.Delete(id); err != nil {
		return errors.Wrapf(err, "free node %s", id)
	}
	nodeFrees.Inc()
	return nil
}

// Retain implements NodeProvider.
func (p *Provider[K, V]) Retain(id NodeID) error {
	if id == InvalidNodeID {
		return errors.AssertionFailedf("retain of invalid node id")
	}
	p.refs.Compute(id, func(old int32, loaded bool) (int32, bool) {
		if !loaded {
			old = 1
		}
		return old + 1, false
	})
	return nil
}

// Release implements NodeProvider.
func (p *Provider[K, V]) Release(id NodeID) error {
	// Dead nodes release their children; walk the cascade with a stack.
	pending := []NodeID{id}
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		var dead bool
		p.refs.Compute(id, func(old int32, loaded bool) (int32, bool) {
			if !loaded {
				dead = true
				return 0, true
			}
			old--
			return old, old <= 1
		})
		if !dead {
			continue
		}

		n, err := p.load(id)
		if err != nil {
			return err
		}
		pending = append(pending, n.children...)
		if err := p.backend.Delete(id); err != nil {
			return errors.Wrapf(err, "free node %s", id)
		}
		nodeFrees.Inc()
	}
	return nil
}

// Observers implements NodeProvider.
func (p *Provider[K, V]) Observers(id NodeID) int {
	if n, ok := p.refs.Load(id); ok {
		return int(n)
	}
	return 1
}

// Comparator implements NodeProvider.
func (p *Provider[K, V]) Comparator() Comparator[K] {
	return p.cmp
}

// Flush implements NodeProvider. It fills in the id counter before handing
// the record to the backend.
func (p *Provider[K, V]) Flush(meta Meta) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}
	meta.NextID = p.lastID.Load() + 1
	return p.backend.Flush(meta)
}

// Meta implements NodeProvider.
func (p *Provider[K, V]) Meta() (Meta, bool, error) {
	return p.backend.LoadMeta()
}

// Close implements NodeProvider.
func (p *Provider[K, V]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.backend.Close()
}
