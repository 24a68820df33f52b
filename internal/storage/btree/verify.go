// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import (
	"github.com/cockroachdb/errors"
)

// Stats describes the shape of a tree version.
type Stats struct {
	Degree        int
	Len           int
	Height        int
	Nodes         int
	Leaves        int
	InternalNodes int
	// Fill is the average number of tuples per node divided by the
	// maximum, 2t-1.
	Fill float64
}

// verify walks the whole version checking key order, node sizes, child
// counts, leaf depth and the tuple count. It returns an assertion failure
// describing the first violation found.
func (v *view[K, V]) verify() (Stats, error) {
	s := Stats{Degree: v.degree, Height: v.height}
	tuples := 0

	type item struct {
		id     NodeID
		depth  int
		lo, hi *K
	}
	stack := []item{{id: v.root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := v.p.Get(it.id, Read)
		if err != nil {
			return s, err
		}
		s.Nodes++
		tuples += n.Len()

		isRoot := it.id == v.root
		if n.Len() > 2*v.degree-1 {
			return s, errors.AssertionFailedf("node %s holds %d tuples, max %d", n.id, n.Len(), 2*v.degree-1)
		}
		if !isRoot && n.Len() < v.degree-1 {
			return s, errors.AssertionFailedf("node %s holds %d tuples, min %d", n.id, n.Len(), v.degree-1)
		}

		for i, t := range n.tuples {
			if i > 0 && v.cmp(n.tuples[i-1].key, t.key) >= 0 {
				return s, errors.AssertionFailedf("node %s keys out of order at %d", n.id, i)
			}
			if it.lo != nil && v.cmp(t.key, *it.lo) < 0 {
				return s, errors.AssertionFailedf("node %s key at %d below separator", n.id, i)
			}
			if it.hi != nil && v.cmp(t.key, *it.hi) >= 0 {
				return s, errors.AssertionFailedf("node %s key at %d at or above separator", n.id, i)
			}
		}

		if n.IsLeaf() {
			s.Leaves++
			if it.depth != v.height {
				return s, errors.AssertionFailedf("leaf %s at depth %d, height %d", n.id, it.depth, v.height)
			}
			continue
		}

		s.InternalNodes++
		if len(n.children) != n.Len()+1 {
			return s, errors.AssertionFailedf("node %s has %d tuples and %d children", n.id, n.Len(), len(n.children))
		}
		if n.Len() == 0 {
			return s, errors.AssertionFailedf("internal node %s is empty", n.id)
		}
		for i, child := range n.children {
			lo, hi := it.lo, it.hi
			if i > 0 {
				lo = &n.tuples[i-1].key
			}
			if i < n.Len() {
				hi = &n.tuples[i].key
			}
			stack = append(stack, item{id: child, depth: it.depth + 1, lo: lo, hi: hi})
		}
	}

	if tuples != v.count {
		return s, errors.AssertionFailedf("tree holds %d tuples, count says %d", tuples, v.count)
	}
	s.Len = tuples
	if s.Nodes > 0 {
		s.Fill = float64(tuples) / float64(s.Nodes*(2*v.degree-1))
	}
	return s, nil
}
