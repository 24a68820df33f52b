// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import "github.com/cockroachdb/errors"

// Tree errors.
var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrTreeClosed       = errors.New("tree is closed")
	ErrSnapshotReleased = errors.New("snapshot has been released")
	ErrIteratorClosed   = errors.New("iterator is closed")
	ErrInvalidDegree    = errors.New("degree must be at least 2")
	ErrDegreeMismatch   = errors.New("degree does not match stored tree")
	ErrProviderClosed   = errors.New("provider is closed")
	ErrReadOnly         = errors.New("tree is read-only")
	ErrTreeNotFound     = errors.New("no stored tree")
)

// Serialization errors.
var (
	ErrCorruptedNode      = errors.New("corrupted node data")
	ErrCorruptMeta        = errors.New("corrupted tree meta")
	ErrInvalidMagic       = errors.New("invalid magic number: not an obtree meta record")
	ErrUnsupportedVersion = errors.New("unsupported meta format version")
	ErrMetaChecksum       = errors.New("meta checksum mismatch")
)
