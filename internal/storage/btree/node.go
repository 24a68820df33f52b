// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

// Node is a B-tree page: an ordered run of tuples and, for internal nodes,
// one more child reference than it has tuples.
//
// For an internal node every key in the subtree at children[i] sorts before
// tuples[i].Key(), and every key in the subtree at children[i+1] sorts at or
// after it.
type Node[K, V any] struct {
	id       NodeID
	tuples   []Tuple[K, V]
	children []NodeID // nil for leaves
}

func newNode[K, V any](id NodeID, leaf bool) *Node[K, V] {
	n := &Node[K, V]{id: id}
	if !leaf {
		n.children = make([]NodeID, 0, 2)
	}
	return n
}

// ID returns the node's identifier.
func (n *Node[K, V]) ID() NodeID {
	return n.id
}

// IsLeaf reports whether the node has no children.
func (n *Node[K, V]) IsLeaf() bool {
	return n.children == nil
}

// Len returns the number of tuples in the node.
func (n *Node[K, V]) Len() int {
	return len(n.tuples)
}

// Tuple returns the tuple at index i.
func (n *Node[K, V]) Tuple(i int) Tuple[K, V] {
	return n.tuples[i]
}

// Child returns the child reference at index i.
func (n *Node[K, V]) Child(i int) NodeID {
	return n.children[i]
}

// NumChildren returns the number of child references.
func (n *Node[K, V]) NumChildren() int {
	return len(n.children)
}

// isOverflow reports whether the node is full and must be split before
// another tuple can be inserted into it.
func (n *Node[K, V]) isOverflow(degree int) bool {
	return len(n.tuples) >= 2*degree-1
}

// isUnderflow reports whether the node is at its minimum size. Such a node
// cannot lend a tuple to a sibling and has to be grown before a delete
// descends into it.
func (n *Node[K, V]) isUnderflow(degree int) bool {
	return len(n.tuples) < degree
}

// search returns the index where key is or would be inserted, and whether an
// equal key exists at that index.
func (n *Node[K, V]) search(cmp Comparator[K], key K) (int, bool) {
	i, j := 0, len(n.tuples)
	for i < j {
		h := int(uint(i+j) >> 1)
		c := cmp(key, n.tuples[h].key)
		if c == 0 {
			return h, true
		} else if c > 0 {
			i = h + 1
		} else {
			j = h
		}
	}
	return i, false
}

// insertAt inserts t at index i. For internal nodes child becomes the
// reference to the right of t.
func (n *Node[K, V]) insertAt(i int, t Tuple[K, V], child NodeID) {
	n.tuples = append(n.tuples, Tuple[K, V]{})
	copy(n.tuples[i+1:], n.tuples[i:])
	n.tuples[i] = t
	if !n.IsLeaf() {
		n.children = append(n.children, InvalidNodeID)
		copy(n.children[i+2:], n.children[i+1:])
		n.children[i+1] = child
	}
}

// removeAt removes the tuple at index i and, for internal nodes, the child
// reference to its right.
func (n *Node[K, V]) removeAt(i int) (Tuple[K, V], NodeID) {
	out := n.tuples[i]
	copy(n.tuples[i:], n.tuples[i+1:])
	n.tuples[len(n.tuples)-1] = Tuple[K, V]{}
	n.tuples = n.tuples[:len(n.tuples)-1]

	child := InvalidNodeID
	if !n.IsLeaf() {
		child = n.children[i+1]
		copy(n.children[i+1:], n.children[i+2:])
		n.children = n.children[:len(n.children)-1]
	}
	return out, child
}

// pushFront prepends t and, for internal nodes, child as the new leftmost
// reference.
func (n *Node[K, V]) pushFront(t Tuple[K, V], child NodeID) {
	n.tuples = append(n.tuples, Tuple[K, V]{})
	copy(n.tuples[1:], n.tuples)
	n.tuples[0] = t
	if !n.IsLeaf() {
		n.children = append(n.children, InvalidNodeID)
		copy(n.children[1:], n.children)
		n.children[0] = child
	}
}

// pushBack appends t and, for internal nodes, child as the new rightmost
// reference.
func (n *Node[K, V]) pushBack(t Tuple[K, V], child NodeID) {
	n.tuples = append(n.tuples, t)
	if !n.IsLeaf() {
		n.children = append(n.children, child)
	}
}

// popFront removes the first tuple and, for internal nodes, the leftmost
// reference.
func (n *Node[K, V]) popFront() (Tuple[K, V], NodeID) {
	out := n.tuples[0]
	copy(n.tuples, n.tuples[1:])
	n.tuples[len(n.tuples)-1] = Tuple[K, V]{}
	n.tuples = n.tuples[:len(n.tuples)-1]

	child := InvalidNodeID
	if !n.IsLeaf() {
		child = n.children[0]
		copy(n.children, n.children[1:])
		n.children = n.children[:len(n.children)-1]
	}
	return out, child
}

// popBack removes the last tuple and, for internal nodes, the rightmost
// reference.
func (n *Node[K, V]) popBack() (Tuple[K, V], NodeID) {
	last := len(n.tuples) - 1
	out := n.tuples[last]
	n.tuples[last] = Tuple[K, V]{}
	n.tuples = n.tuples[:last]

	child := InvalidNodeID
	if !n.IsLeaf() {
		child = n.children[len(n.children)-1]
		n.children = n.children[:len(n.children)-1]
	}
	return out, child
}

// splitInto moves the upper half of n into right, which must be an empty node
// of the same kind, and returns the median tuple to promote.
//
//	Before:
//	              +-----------+
//	          n   |   x y z   |
//	              +--/-/-\-\--+
//
//	After:
//	              +-----------+
//	              |     y     |   (promoted by the caller)
//	              +----/-\----+
//	                  /   \
//	      +-----------+   +-----------+
//	    n |         x |   | z         | right
//	      +-----------+   +-----------+
//
// With m = Len()/2 the tuple at m is promoted, right receives tuples
// [m+1, Len()) and, for internal nodes, the Len()-m trailing children.
func (n *Node[K, V]) splitInto(right *Node[K, V]) Tuple[K, V] {
	m := len(n.tuples) / 2
	median := n.tuples[m]

	right.tuples = append(make([]Tuple[K, V], 0, cap(n.tuples)), n.tuples[m+1:]...)
	clear(n.tuples[m:])
	n.tuples = n.tuples[:m]

	if !n.IsLeaf() {
		right.children = append(make([]NodeID, 0, cap(n.children)), n.children[m+1:]...)
		n.children = n.children[:m+1]
	}
	return median
}

// absorb merges separator and every tuple and child of right onto the end of
// n. The caller is responsible for freeing right.
//
//	Before:
//	              +-----------+
//	              |   u y v   |
//	              +----/-\----+
//	                  /   \
//	      +-----------+   +-----------+
//	    n |         x |   | z         | right
//	      +-----------+   +-----------+
//
//	After:
//	              +-----------+
//	              |    u v    |
//	              +-----|-----+
//	                    |
//	              +-----------+
//	            n |   x y z   |
//	              +-----------+
func (n *Node[K, V]) absorb(separator Tuple[K, V], right *Node[K, V]) {
	n.tuples = append(n.tuples, separator)
	n.tuples = append(n.tuples, right.tuples...)
	if !n.IsLeaf() {
		n.children = append(n.children, right.children...)
	}
}

// clone returns a copy of n under a new identity. Tuples are immutable so a
// shallow copy of the slices is enough to keep the two nodes independent.
func (n *Node[K, V]) clone(id NodeID) *Node[K, V] {
	c := &Node[K, V]{id: id}
	c.tuples = append(make([]Tuple[K, V], 0, cap(n.tuples)), n.tuples...)
	if !n.IsLeaf() {
		c.children = append(make([]NodeID, 0, cap(n.children)), n.children...)
	}
	return c
}

// replace swaps the value at index i, keeping the stored key, and returns
// the tuple it displaced.
func (n *Node[K, V]) replace(i int, value V) Tuple[K, V] {
	old := n.tuples[i]
	n.tuples[i] = Tuple[K, V]{key: old.key, value: value}
	return old
}
