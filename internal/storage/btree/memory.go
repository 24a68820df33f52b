package btree

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryBackend keeps nodes in a concurrent map. Flush records the meta so
// a provider reopened over the same backend resumes the flushed tree.
type MemoryBackend[K, V any] struct {
	nodes *xsync.MapOf[NodeID, *Node[K, V]]

	mu      sync.Mutex
	meta    Meta
	hasMeta bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend[K, V any]() *MemoryBackend[K, V] {
	return &MemoryBackend[K, V]{
		nodes: xsync.NewMapOf[NodeID, *Node[K, V]](),
	}
}

func (b *MemoryBackend[K, V]) Load(id NodeID) (*Node[K, V], error) {
	n, ok := b.nodes.Load(id)
	if !ok {
		return nil, ErrNodeNotFound
	}
	return n, nil
}

func (b *MemoryBackend[K, V]) Store(n *Node[K, V]) error {
	b.nodes.Store(n.id, n)
	return nil
}

func (b *MemoryBackend[K, V]) Delete(id NodeID) error {
	if _, ok := b.nodes.LoadAndDelete(id); !ok {
		return ErrNodeNotFound
	}
	return nil
}

func (b *MemoryBackend[K, V]) Flush(meta Meta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta, b.hasMeta = meta, true
	return nil
}

func (b *MemoryBackend[K, V]) LoadMeta() (Meta, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta, b.hasMeta, nil
}

// Len returns the number of live nodes.
func (b *MemoryBackend[K, V]) Len() int {
	return b.nodes.Size()
}

func (b *MemoryBackend[K, V]) Close() error {
	return nil
}
