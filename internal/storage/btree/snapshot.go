// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

// Snapshot is a read-only, point-in-time view of a tree. Writes published
// after the snapshot was taken are not visible through it, and the nodes it
// can reach stay alive until it is closed.
//
// Reads on a Snapshot may run concurrently. Close must not race with them.
type Snapshot[K, V any] struct {
	view *view[K, V]
}

func (s *Snapshot[K, V]) check() error {
	if s.view.released.Load() {
		return ErrSnapshotReleased
	}
	return nil
}

// Get returns the value stored under key in the snapshot.
func (s *Snapshot[K, V]) Get(key K) (V, bool, error) {
	var zero V
	if err := s.check(); err != nil {
		return zero, false, err
	}
	t, found, err := s.view.get(key)
	return t.value, found, err
}

// Contains reports whether key is present in the snapshot.
func (s *Snapshot[K, V]) Contains(key K) (bool, error) {
	_, found, err := s.Get(key)
	return found, err
}

// FirstEntry returns the snapshot's smallest tuple.
func (s *Snapshot[K, V]) FirstEntry() (Tuple[K, V], bool, error) {
	if err := s.check(); err != nil {
		return Tuple[K, V]{}, false, err
	}
	return s.view.first()
}

// LastEntry returns the snapshot's largest tuple.
func (s *Snapshot[K, V]) LastEntry() (Tuple[K, V], bool, error) {
	if err := s.check(); err != nil {
		return Tuple[K, V]{}, false, err
	}
	return s.view.last()
}

// CeilingEntry returns the snapshot's smallest tuple with a key >= key.
func (s *Snapshot[K, V]) CeilingEntry(key K) (Tuple[K, V], bool, error) {
	if err := s.check(); err != nil {
		return Tuple[K, V]{}, false, err
	}
	return s.view.ceiling(key)
}

// Len returns the number of tuples in the snapshot.
func (s *Snapshot[K, V]) Len() int {
	return s.view.count
}

// IsEmpty reports whether the snapshot holds no tuples.
func (s *Snapshot[K, V]) IsEmpty() bool {
	return s.view.count == 0
}

// Height returns the snapshot's tree height.
func (s *Snapshot[K, V]) Height() int {
	return s.view.height
}

// Iterator returns an iterator over the snapshot. The iterator holds its
// own pin and stays valid after the snapshot is closed.
func (s *Snapshot[K, V]) Iterator() (*Iterator[K, V], error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	v, err := s.view.fork()
	if err != nil {
		return nil, err
	}
	return newIterator(v, nil, true), nil
}

// IteratorFrom returns an iterator over the snapshot starting at key.
func (s *Snapshot[K, V]) IteratorFrom(key K, inclusive bool) (*Iterator[K, V], error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	v, err := s.view.fork()
	if err != nil {
		return nil, err
	}
	return newIterator(v, &key, inclusive), nil
}

// Verify checks the snapshot's structural invariants.
func (s *Snapshot[K, V]) Verify() error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.view.verify()
	return err
}

// Close releases the snapshot. Closing twice is a no-op.
func (s *Snapshot[K, V]) Close() error {
	return s.view.release()
}
