// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import (
	"github.com/cockroachdb/errors"
)

// remove deletes key from the subtree rooted at n. Before descending into a
// child it makes sure the child can afford to lose a tuple, so the walk never
// has to come back up. n itself may end up empty only if it is the root.
func (w *writer[K, V]) remove(n *Node[K, V], key K) (Tuple[K, V], bool, error) {
	for {
		i, found := n.search(w.cmp, key)

		if n.IsLeaf() {
			if !found {
				return Tuple[K, V]{}, false, nil
			}
			t, _ := n.removeAt(i)
			return t, true, nil
		}

		if !found {
			child, err := w.fix(n, i)
			if err != nil {
				return Tuple[K, V]{}, false, err
			}
			n = child
			continue
		}

		// key is the separator at i.
		left, err := w.peek(n, i)
		if err != nil {
			return Tuple[K, V]{}, false, err
		}
		if !left.isUnderflow(w.degree) {
			if left, err = w.child(n, i); err != nil {
				return Tuple[K, V]{}, false, err
			}
			pred, err := w.removeMax(left)
			if err != nil {
				return Tuple[K, V]{}, false, err
			}
			out := n.tuples[i]
			n.tuples[i] = pred
			return out, true, nil
		}

		right, err := w.peek(n, i+1)
		if err != nil {
			return Tuple[K, V]{}, false, err
		}
		if !right.isUnderflow(w.degree) {
			if right, err = w.child(n, i+1); err != nil {
				return Tuple[K, V]{}, false, err
			}
			succ, err := w.removeMin(right)
			if err != nil {
				return Tuple[K, V]{}, false, err
			}
			out := n.tuples[i]
			n.tuples[i] = succ
			return out, true, nil
		}

		// Both neighbours are minimal: pull the separator down into their
		// merge and delete it from there.
		if n, err = w.merge(n, i); err != nil {
			return Tuple[K, V]{}, false, err
		}
	}
}

// removeMax deletes and returns the largest tuple below n.
func (w *writer[K, V]) removeMax(n *Node[K, V]) (Tuple[K, V], error) {
	for !n.IsLeaf() {
		child, err := w.fix(n, len(n.children)-1)
		if err != nil {
			return Tuple[K, V]{}, err
		}
		n = child
	}
	if n.Len() == 0 {
		return Tuple[K, V]{}, errors.AssertionFailedf("removeMax reached empty leaf %s", n.id)
	}
	t, _ := n.popBack()
	return t, nil
}

// removeMin deletes and returns the smallest tuple below n.
func (w *writer[K, V]) removeMin(n *Node[K, V]) (Tuple[K, V], error) {
	for !n.IsLeaf() {
		child, err := w.fix(n, 0)
		if err != nil {
			return Tuple[K, V]{}, err
		}
		n = child
	}
	if n.Len() == 0 {
		return Tuple[K, V]{}, errors.AssertionFailedf("removeMin reached empty leaf %s", n.id)
	}
	t, _ := n.popFront()
	return t, nil
}

// fix returns n's j-th child ready to be descended into by a delete. A child
// at its minimum size first borrows a tuple from a sibling that can spare
// one, left sibling first. When neither can, it is merged with a sibling,
// again preferring the left one, and the merged node is returned.
func (w *writer[K, V]) fix(n *Node[K, V], j int) (*Node[K, V], error) {
	child, err := w.child(n, j)
	if err != nil {
		return nil, err
	}
	if !child.isUnderflow(w.degree) {
		return child, nil
	}

	if j > 0 {
		left, err := w.peek(n, j-1)
		if err != nil {
			return nil, err
		}
		if !left.isUnderflow(w.degree) {
			if left, err = w.child(n, j-1); err != nil {
				return nil, err
			}
			// Rotate right through the separator.
			t, c := left.popBack()
			child.pushFront(n.tuples[j-1], c)
			n.tuples[j-1] = t
			return child, nil
		}
	}

	if j < len(n.children)-1 {
		right, err := w.peek(n, j+1)
		if err != nil {
			return nil, err
		}
		if !right.isUnderflow(w.degree) {
			if right, err = w.child(n, j+1); err != nil {
				return nil, err
			}
			// Rotate left through the separator.
			t, c := right.popFront()
			child.pushBack(n.tuples[j], c)
			n.tuples[j] = t
			return child, nil
		}
	}

	if j > 0 {
		return w.merge(n, j-1)
	}
	return w.merge(n, j)
}

// merge folds n's (i+1)-th child and the separator at i into the i-th child,
// frees the absorbed node and returns the merged one.
func (w *writer[K, V]) merge(n *Node[K, V], i int) (*Node[K, V], error) {
	left, err := w.child(n, i)
	if err != nil {
		return nil, err
	}
	right, err := w.child(n, i+1)
	if err != nil {
		return nil, err
	}
	if left.Len()+right.Len()+1 > 2*w.degree-1 {
		return nil, errors.AssertionFailedf("merge of %s and %s overflows (%d + %d tuples)",
			left.id, right.id, left.Len(), right.Len())
	}

	sep, _ := n.removeAt(i)
	left.absorb(sep, right)
	if err := w.p.Free(right.id); err != nil {
		return nil, err
	}
	return left, nil
}
