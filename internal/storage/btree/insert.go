// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import (
	"github.com/cockroachdb/errors"
)

// writer carries the state shared by the top-down mutation routines of one
// write.
type writer[K, V any] struct {
	p      NodeProvider[K, V]
	cmp    Comparator[K]
	degree int
}

// fetch resolves id for mutation.
func (w *writer[K, V]) fetch(id NodeID) (*Node[K, V], error) {
	return w.p.Get(id, Write)
}

// child resolves n's i-th child for mutation and stores the id it resolved
// to back into the slot, since a shared child comes back as a shadow.
func (w *writer[K, V]) child(n *Node[K, V], i int) (*Node[K, V], error) {
	c, err := w.p.Get(n.children[i], Write)
	if err != nil {
		return nil, err
	}
	n.children[i] = c.id
	return c, nil
}

// peek resolves n's i-th child read-only, for decisions that may not need to
// modify it.
func (w *writer[K, V]) peek(n *Node[K, V], i int) (*Node[K, V], error) {
	return w.p.Get(n.children[i], Read)
}

// split moves the upper half of n into a freshly allocated sibling and
// returns the median to promote together with the sibling.
func (w *writer[K, V]) split(n *Node[K, V]) (Tuple[K, V], *Node[K, V], error) {
	right, err := w.p.Allocate(n.IsLeaf())
	if err != nil {
		return Tuple[K, V]{}, nil, errors.Wrap(err, "allocate split sibling")
	}
	median := n.splitInto(right)
	return median, right, nil
}

// splitRoot grows the tree by one level: a new root receives the median of
// the old root, which becomes its left child.
func (w *writer[K, V]) splitRoot(root *Node[K, V]) (*Node[K, V], error) {
	top, err := w.p.Allocate(false)
	if err != nil {
		return nil, errors.Wrap(err, "allocate root")
	}
	top.children = append(top.children, root.id)

	median, right, err := w.split(root)
	if err != nil {
		if ferr := w.p.Free(top.id); ferr != nil {
			return nil, errors.WithSecondaryError(err, ferr)
		}
		return nil, err
	}
	top.insertAt(0, median, right.id)
	return top, nil
}

// put inserts t below n, which must not be full, splitting any full child
// before descending into it. It returns the replaced tuple when the key was
// already present.
func (w *writer[K, V]) put(n *Node[K, V], t Tuple[K, V]) (Tuple[K, V], bool, error) {
	for {
		i, found := n.search(w.cmp, t.key)
		if found {
			return n.replace(i, t.value), true, nil
		}

		if n.IsLeaf() {
			if n.isOverflow(w.degree) {
				return Tuple[K, V]{}, false, errors.AssertionFailedf(
					"insert into full leaf %s (%d tuples, degree %d)", n.id, n.Len(), w.degree)
			}
			n.insertAt(i, t, InvalidNodeID)
			return Tuple[K, V]{}, false, nil
		}

		child, err := w.child(n, i)
		if err != nil {
			return Tuple[K, V]{}, false, err
		}

		if child.isOverflow(w.degree) {
			median, right, err := w.split(child)
			if err != nil {
				return Tuple[K, V]{}, false, err
			}
			n.insertAt(i, median, right.id)

			switch c := w.cmp(t.key, median.key); {
			case c == 0:
				return n.replace(i, t.value), true, nil
			case c > 0:
				child = right
			}
		}
		n = child
	}
}
