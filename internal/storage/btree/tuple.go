// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import "fmt"

// Tuple is an immutable key-value pair stored in a node slot. Updating a key
// replaces the tuple; the old one is handed back to the caller untouched.
type Tuple[K, V any] struct {
	key   K
	value V
}

// NewTuple creates a tuple.
func NewTuple[K, V any](key K, value V) Tuple[K, V] {
	return Tuple[K, V]{key: key, value: value}
}

// Key returns the tuple's key.
func (t Tuple[K, V]) Key() K {
	return t.key
}

// Value returns the tuple's value.
func (t Tuple[K, V]) Value() V {
	return t.value
}

// String implements fmt.Stringer.
func (t Tuple[K, V]) String() string {
	return fmt.Sprintf("%v=%v", t.key, t.value)
}
