// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
//
// # Overview
//
// The tree is a classic B-tree with minimum degree t: every node holds at
// most 2t-1 tuples and every non-root node holds at least t-1. Internal nodes
// carry one more child reference than they have tuples. Mutations run top-down
// in a single pass:
//
//   - Insert splits any full node before descending into it
//   - Delete borrows from or merges with a sibling before descending into a
//     node that could not afford to lose a tuple
//   - The root grows by one level on a root split and shrinks by one level
//     when a delete leaves it with no tuples and a single child
//
// # Node Providers
//
// Nodes are never referenced by pointer across operations. The tree stores
// NodeIDs and resolves them through a NodeProvider, which owns allocation,
// lookup, freeing and copy-on-write shadowing:
//
//	provider := btree.NewMemoryProvider[string, int](btree.Natural[string]())
//	tree, err := btree.Open[string, int](provider, btree.Options{Degree: 64})
//
// Persistent backends (see the filestore and pebblestore packages) plug into
// the same Provider through the Backend interface.
//
// # Snapshots
//
// Writers are serialized by a single mutation lock. Readers never wait for
// the writer: every read pins the published root, and a writer only mutates
// nodes that no published version can see. Nodes shared with a pinned version
// are shadowed under a fresh NodeID before they are modified.
//
//	snap, err := tree.Snapshot()
//	defer snap.Close()
//
//	it, err := snap.IteratorFrom("b", true)
//	for k, v := range it.All() {
//	    fmt.Println(k, v)
//	}
package btree
