// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import "sync/atomic"

// view is a pinned, immutable tree version: a root the holder keeps one
// observer reference on, with the count and height it was published with.
type view[K, V any] struct {
	p      NodeProvider[K, V]
	cmp    Comparator[K]
	degree int
	root   NodeID
	count  int
	height int

	released atomic.Bool
}

// fork pins the same version again for an independent holder.
func (v *view[K, V]) fork() (*view[K, V], error) {
	if err := v.p.Retain(v.root); err != nil {
		return nil, err
	}
	return &view[K, V]{
		p:      v.p,
		cmp:    v.cmp,
		degree: v.degree,
		root:   v.root,
		count:  v.count,
		height: v.height,
	}, nil
}

// release drops the pin. Only the first call has an effect.
func (v *view[K, V]) release() error {
	if !v.released.CompareAndSwap(false, true) {
		return nil
	}
	return v.p.Release(v.root)
}

func (v *view[K, V]) get(key K) (Tuple[K, V], bool, error) {
	id := v.root
	for {
		n, err := v.p.Get(id, Read)
		if err != nil {
			return Tuple[K, V]{}, false, err
		}
		i, found := n.search(v.cmp, key)
		if found {
			return n.tuples[i], true, nil
		}
		if n.IsLeaf() {
			return Tuple[K, V]{}, false, nil
		}
		id = n.children[i]
	}
}

// ceiling returns the smallest tuple whose key is >= key. The best candidate
// seen on the way down is the separator right of the path taken.
func (v *view[K, V]) ceiling(key K) (Tuple[K, V], bool, error) {
	var best Tuple[K, V]
	var ok bool

	id := v.root
	for {
		n, err := v.p.Get(id, Read)
		if err != nil {
			return Tuple[K, V]{}, false, err
		}
		i, found := n.search(v.cmp, key)
		if found {
			return n.tuples[i], true, nil
		}
		if i < n.Len() {
			best, ok = n.tuples[i], true
		}
		if n.IsLeaf() {
			return best, ok, nil
		}
		id = n.children[i]
	}
}

func (v *view[K, V]) first() (Tuple[K, V], bool, error) {
	if v.count == 0 {
		return Tuple[K, V]{}, false, nil
	}
	id := v.root
	for {
		n, err := v.p.Get(id, Read)
		if err != nil {
			return Tuple[K, V]{}, false, err
		}
		if n.IsLeaf() {
			return n.tuples[0], true, nil
		}
		id = n.children[0]
	}
}

func (v *view[K, V]) last() (Tuple[K, V], bool, error) {
	if v.count == 0 {
		return Tuple[K, V]{}, false, nil
	}
	id := v.root
	for {
		n, err := v.p.Get(id, Read)
		if err != nil {
			return Tuple[K, V]{}, false, err
		}
		if n.IsLeaf() {
			return n.tuples[n.Len()-1], true, nil
		}
		id = n.children[n.NumChildren()-1]
	}
}
