// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import (
	"iter"
)

// frame is a position on the iterator's descent stack: the next tuple to
// emit from node is tuples[pos], and everything left of it is done.
type frame[K, V any] struct {
	node *Node[K, V]
	pos  int
}

// Iterator walks a pinned tree version in ascending key order. It is lazy,
// forward-only and not restartable. The pin is released when the iterator is
// exhausted, fails or is closed.
//
// An Iterator is not safe for concurrent use.
type Iterator[K, V any] struct {
	view      *view[K, V]
	from      *K
	inclusive bool

	stack   []frame[K, V]
	started bool
	done    bool
	err     error

	peeked bool
	next   Tuple[K, V]
}

func newIterator[K, V any](v *view[K, V], from *K, inclusive bool) *Iterator[K, V] {
	return &Iterator[K, V]{
		view:      v,
		from:      from,
		inclusive: inclusive,
		stack:     make([]frame[K, V], 0, v.height+1),
	}
}

// Next returns the next tuple. It returns false once the iterator is
// exhausted, closed or failed; Err distinguishes the last case.
func (it *Iterator[K, V]) Next() (Tuple[K, V], bool) {
	if it.peeked {
		it.peeked = false
		return it.next, true
	}
	return it.advance()
}

// Peek returns the tuple the next call to Next will return, without
// consuming it.
func (it *Iterator[K, V]) Peek() (Tuple[K, V], bool) {
	if it.peeked {
		return it.next, true
	}
	t, ok := it.advance()
	if ok {
		it.next, it.peeked = t, true
	}
	return t, ok
}

func (it *Iterator[K, V]) advance() (Tuple[K, V], bool) {
	if it.done {
		return Tuple[K, V]{}, false
	}
	if !it.started {
		it.started = true
		var err error
		if it.from == nil {
			err = it.pushLeft(it.view.root)
		} else {
			err = it.seek(*it.from)
		}
		if err != nil {
			it.finish(err)
			return Tuple[K, V]{}, false
		}
	}

	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.pos >= top.node.Len() {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}

		n := top.node
		t := n.tuples[top.pos]
		top.pos++
		if !n.IsLeaf() {
			if err := it.pushLeft(n.children[top.pos]); err != nil {
				it.finish(err)
				return Tuple[K, V]{}, false
			}
		}
		return t, true
	}

	it.finish(nil)
	return Tuple[K, V]{}, false
}

// pushLeft stacks the leftmost path of the subtree rooted at id.
func (it *Iterator[K, V]) pushLeft(id NodeID) error {
	for {
		n, err := it.view.p.Get(id, Read)
		if err != nil {
			return err
		}
		it.stack = append(it.stack, frame[K, V]{node: n})
		if n.IsLeaf() {
			return nil
		}
		id = n.children[0]
	}
}

// seek stacks the path to the first key at or after key (inclusive) or
// strictly after it.
func (it *Iterator[K, V]) seek(key K) error {
	id := it.view.root
	for {
		n, err := it.view.p.Get(id, Read)
		if err != nil {
			return err
		}
		i, found := n.search(it.view.cmp, key)
		if found {
			if it.inclusive {
				it.stack = append(it.stack, frame[K, V]{node: n, pos: i})
				return nil
			}
			it.stack = append(it.stack, frame[K, V]{node: n, pos: i + 1})
			if n.IsLeaf() {
				return nil
			}
			return it.pushLeft(n.children[i+1])
		}

		it.stack = append(it.stack, frame[K, V]{node: n, pos: i})
		if n.IsLeaf() {
			return nil
		}
		id = n.children[i]
	}
}

func (it *Iterator[K, V]) finish(err error) {
	it.done = true
	it.stack = nil
	if rerr := it.view.release(); err == nil {
		err = rerr
	}
	it.err = err
}

// Err returns the error that stopped the iterator, if any.
func (it *Iterator[K, V]) Err() error {
	return it.err
}

// Close releases the iterator. It is safe to call more than once and after
// exhaustion.
func (it *Iterator[K, V]) Close() error {
	if it.done {
		return nil
	}
	it.peeked = false
	it.finish(nil)
	return it.err
}

// Collect drains the iterator into a slice.
func (it *Iterator[K, V]) Collect() ([]Tuple[K, V], error) {
	var out []Tuple[K, V]
	for t, ok := it.Next(); ok; t, ok = it.Next() {
		out = append(out, t)
	}
	return out, it.err
}

// Take returns up to n tuples. The iterator stays open if more remain.
func (it *Iterator[K, V]) Take(n int) ([]Tuple[K, V], error) {
	n = max(n, 0)
	out := make([]Tuple[K, V], 0, n)
	for len(out) < n {
		t, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out, it.err
}

// Skip discards up to n tuples and returns how many were skipped.
func (it *Iterator[K, V]) Skip(n int) int {
	skipped := 0
	for skipped < n {
		if _, ok := it.Next(); !ok {
			break
		}
		skipped++
	}
	return skipped
}

// All adapts the iterator to a range-over-func sequence. Breaking out of the
// loop closes the iterator; check Err afterwards.
func (it *Iterator[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for t, ok := it.Next(); ok; t, ok = it.Next() {
			if !yield(t.key, t.value) {
				it.Close()
				return
			}
		}
	}
}
