package btree

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaSerialize(t *testing.T) {
	m := Meta{Degree: 64, Root: 17, Count: 12345, NextID: 99}
	buf := m.Serialize()
	require.Len(t, buf, MetaSize)
	assert.Equal(t, MetaMagic[:], buf[0:4])

	got, err := DeserializeMeta(buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestMetaDeserializeRejects(t *testing.T) {
	valid := Meta{Degree: 2, Root: 3, Count: 1, NextID: 4}.Serialize()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"short", func(b []byte) []byte { return b[:10] }, ErrCorruptMeta},
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrInvalidMagic},
		{"version", func(b []byte) []byte { b[4] = 9; return b }, ErrUnsupportedVersion},
		{"checksum", func(b []byte) []byte { b[22] ^= 0xff; return b }, ErrMetaChecksum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.mutate(append([]byte(nil), valid...))
			_, err := DeserializeMeta(buf)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := DeserializeMeta(Meta{Degree: 2, Root: 9, NextID: 4}.Serialize())
	assert.True(t, errors.Is(err, ErrCorruptMeta))
}

func TestDecodeNodeValidates(t *testing.T) {
	n := newNode[string, int](5, false)
	n.children = []NodeID{6, 7}
	n.tuples = []Tuple[string, int]{NewTuple("m", 1)}

	data, err := EncodeNode(n)
	require.NoError(t, err)

	got, err := DecodeNode[string, int](5, data)
	require.NoError(t, err)
	assert.False(t, got.IsLeaf())
	assert.Equal(t, []NodeID{6, 7}, got.children)
	assert.Equal(t, "m", got.Tuple(0).Key())

	_, err = DecodeNode[string, int](6, data)
	assert.True(t, errors.Is(err, ErrCorruptedNode))

	_, err = DecodeNode[string, int](5, []byte{0xc1})
	assert.True(t, errors.Is(err, ErrCorruptedNode))

	leaf := newNode[string, int](8, true)
	data, err = EncodeNode(leaf)
	require.NoError(t, err)
	got, err = DecodeNode[string, int](8, data)
	require.NoError(t, err)
	assert.True(t, got.IsLeaf())
	assert.Equal(t, 0, got.Len())
}

func TestComparators(t *testing.T) {
	b := Bytes()
	assert.Equal(t, 0, b(nil, nil))
	assert.Negative(t, b(nil, []byte{}))
	assert.Positive(t, b([]byte{}, nil))
	assert.Negative(t, b([]byte("a"), []byte("b")))

	one, two := 1, 2
	p := NullsFirst(Natural[int]())
	assert.Negative(t, p(nil, &one))
	assert.Positive(t, p(&two, &one))
	assert.Equal(t, 0, p(nil, nil))
}
