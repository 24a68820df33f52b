// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import (
	"bytes"
	"cmp"
)

// Comparator defines a total order over keys. It returns a negative number
// when a < b, zero when a == b and a positive number when a > b.
type Comparator[K any] func(a, b K) int

// Natural returns the natural ordering of an ordered type.
func Natural[K cmp.Ordered]() Comparator[K] {
	return cmp.Compare[K]
}

// Bytes orders byte slices lexicographically. A nil slice sorts before every
// non-nil slice, including an empty one.
func Bytes() Comparator[[]byte] {
	return func(a, b []byte) int {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		case b == nil:
			return 1
		}
		return bytes.Compare(a, b)
	}
}

// NullsFirst lifts c to pointers. A nil pointer sorts before any non-nil one.
func NullsFirst[T any](c Comparator[T]) Comparator[*T] {
	return func(a, b *T) int {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		case b == nil:
			return 1
		}
		return c(*a, *b)
	}
}
