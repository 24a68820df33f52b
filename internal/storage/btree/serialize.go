package btree

import (
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// nodeRecord is the persisted form of a node. Keys and values are encoded
// by msgpack reflection, so any K and V msgpack can round-trip are storable.
type nodeRecord[K, V any] struct {
	ID       NodeID   `msgpack:"i"`
	Leaf     bool     `msgpack:"l"`
	Keys     []K      `msgpack:"k"`
	Values   []V      `msgpack:"v"`
	Children []NodeID `msgpack:"c,omitempty"`
}

// EncodeNode serializes a node for a persistent backend.
func EncodeNode[K, V any](n *Node[K, V]) ([]byte, error) {
	rec := nodeRecord[K, V]{
		ID:       n.id,
		Leaf:     n.IsLeaf(),
		Keys:     make([]K, len(n.tuples)),
		Values:   make([]V, len(n.tuples)),
		Children: n.children,
	}
	for i, t := range n.tuples {
		rec.Keys[i] = t.key
		rec.Values[i] = t.value
	}

	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, errors.Wrapf(err, "encode node %s", n.id)
	}
	return data, nil
}

// DecodeNode deserializes a node previously written by EncodeNode and checks
// that it is the node stored under id.
func DecodeNode[K, V any](id NodeID, data []byte) (*Node[K, V], error) {
	var rec nodeRecord[K, V]
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode node %s", id), ErrCorruptedNode)
	}

	switch {
	case rec.ID != id:
		return nil, errors.Wrapf(ErrCorruptedNode, "node %s stored under %s", rec.ID, id)
	case len(rec.Keys) != len(rec.Values):
		return nil, errors.Wrapf(ErrCorruptedNode, "node %s has %d keys and %d values", id, len(rec.Keys), len(rec.Values))
	case rec.Leaf && len(rec.Children) != 0:
		return nil, errors.Wrapf(ErrCorruptedNode, "leaf %s has children", id)
	case !rec.Leaf && len(rec.Children) != len(rec.Keys)+1:
		return nil, errors.Wrapf(ErrCorruptedNode, "node %s has %d keys and %d children", id, len(rec.Keys), len(rec.Children))
	}

	n := newNode[K, V](id, rec.Leaf)
	n.tuples = make([]Tuple[K, V], len(rec.Keys))
	for i := range rec.Keys {
		n.tuples[i] = Tuple[K, V]{key: rec.Keys[i], value: rec.Values[i]}
	}
	if !rec.Leaf {
		n.children = rec.Children
	}
	return n, nil
}
