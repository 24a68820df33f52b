// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import "fmt"

// NodeID identifies a node within a provider. IDs are minted by the provider
// from a monotonic counter and are never reused.
type NodeID uint64

// InvalidNodeID is the zero NodeID. No node is ever assigned it.
const InvalidNodeID NodeID = 0

// String implements fmt.Stringer.
func (id NodeID) String() string {
	return fmt.Sprintf("n%d", uint64(id))
}

// Intent tells a provider whether the caller may mutate the returned node.
type Intent int

const (
	// Read resolves the node as-is. The caller must not modify it.
	Read Intent = iota
	// Write resolves a node the caller may modify in place. If the node is
	// visible from more than one version, the provider returns a shadow copy
	// under a fresh NodeID instead.
	Write
)

// String returns the string representation of the intent.
func (i Intent) String() string {
	switch i {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}
