package btree

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoLevel builds a root with two leaf children directly through the
// provider.
func twoLevel(t *testing.T, p *Provider[int, int]) (root, left, right *Node[int, int]) {
	t.Helper()
	var err error
	left, err = p.Allocate(true)
	require.NoError(t, err)
	right, err = p.Allocate(true)
	require.NoError(t, err)
	root, err = p.Allocate(false)
	require.NoError(t, err)

	left.pushBack(NewTuple(1, 1), InvalidNodeID)
	right.pushBack(NewTuple(3, 3), InvalidNodeID)
	root.children = append(root.children, left.ID())
	root.insertAt(0, NewTuple(2, 2), right.ID())
	return root, left, right
}

func TestProviderAllocateMintsFreshIDs(t *testing.T) {
	p := NewMemoryProvider[int, int](Natural[int]())
	seen := make(map[NodeID]bool)
	for i := 0; i < 100; i++ {
		n, err := p.Allocate(i%2 == 0)
		require.NoError(t, err)
		require.NotEqual(t, InvalidNodeID, n.ID())
		require.False(t, seen[n.ID()])
		seen[n.ID()] = true
		assert.Equal(t, 1, p.Observers(n.ID()))
	}
}

func TestProviderWriteUnsharedInPlace(t *testing.T) {
	p := NewMemoryProvider[int, int](Natural[int]())
	n, err := p.Allocate(true)
	require.NoError(t, err)

	got, err := p.Get(n.ID(), Write)
	require.NoError(t, err)
	assert.Same(t, n, got)
}

func TestProviderWriteSharedShadows(t *testing.T) {
	p := NewMemoryProvider[int, int](Natural[int]())
	root, left, right := twoLevel(t, p)
	clonesBefore := testutil.ToFloat64(nodeClones)

	require.NoError(t, p.Retain(root.ID()))
	assert.Equal(t, 2, p.Observers(root.ID()))

	shadow, err := p.Get(root.ID(), Write)
	require.NoError(t, err)
	require.NotEqual(t, root.ID(), shadow.ID())
	assert.Equal(t, 1.0, testutil.ToFloat64(nodeClones)-clonesBefore)

	// The shadow took over the second observer and shares both children.
	assert.Equal(t, 1, p.Observers(root.ID()))
	assert.Equal(t, 1, p.Observers(shadow.ID()))
	assert.Equal(t, 2, p.Observers(left.ID()))
	assert.Equal(t, 2, p.Observers(right.ID()))

	// Mutating the shadow leaves the original alone.
	shadow.replace(0, 20)
	orig, err := p.Get(root.ID(), Read)
	require.NoError(t, err)
	assert.Equal(t, 2, orig.Tuple(0).Value())
	assert.Equal(t, 20, shadow.Tuple(0).Value())
}

func TestProviderReleaseCascades(t *testing.T) {
	backend := NewMemoryBackend[int, int]()
	p, err := NewProvider[int, int](backend, Natural[int]())
	require.NoError(t, err)
	root, left, right := twoLevel(t, p)
	require.Equal(t, 3, backend.Len())

	require.NoError(t, p.Retain(root.ID()))
	shadow, err := p.Get(root.ID(), Write)
	require.NoError(t, err)
	require.Equal(t, 4, backend.Len())

	// Dropping the original keeps the children alive through the shadow.
	require.NoError(t, p.Release(root.ID()))
	assert.Equal(t, 3, backend.Len())
	assert.Equal(t, 1, p.Observers(left.ID()))

	_, err = p.Get(root.ID(), Read)
	assert.True(t, errors.Is(err, ErrNodeNotFound))

	require.NoError(t, p.Release(shadow.ID()))
	assert.Equal(t, 0, backend.Len())
	_, err = p.Get(right.ID(), Read)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestProviderFreeShared(t *testing.T) {
	p := NewMemoryProvider[int, int](Natural[int]())
	n, err := p.Allocate(true)
	require.NoError(t, err)
	require.NoError(t, p.Retain(n.ID()))

	err = p.Free(n.ID())
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))

	require.NoError(t, p.Release(n.ID()))
	require.NoError(t, p.Free(n.ID()))
	_, err = p.Get(n.ID(), Read)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestProviderUnknownID(t *testing.T) {
	p := NewMemoryProvider[int, int](Natural[int]())

	_, err := p.Get(12345, Read)
	assert.True(t, errors.Is(err, ErrNodeNotFound))

	_, err = p.Get(InvalidNodeID, Read)
	assert.True(t, errors.IsAssertionFailure(err))
}

func TestProviderResumesIDCounter(t *testing.T) {
	backend := NewMemoryBackend[int, int]()
	p, err := NewProvider[int, int](backend, Natural[int]())
	require.NoError(t, err)

	var last NodeID
	for i := 0; i < 5; i++ {
		n, err := p.Allocate(true)
		require.NoError(t, err)
		last = n.ID()
	}
	require.NoError(t, p.Flush(Meta{Degree: 2, Root: last}))

	meta, ok, err := p.Meta()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(last)+1, meta.NextID)

	p2, err := NewProvider[int, int](backend, Natural[int]())
	require.NoError(t, err)
	n, err := p2.Allocate(true)
	require.NoError(t, err)
	assert.Greater(t, n.ID(), last)
}

func TestProviderClosed(t *testing.T) {
	p := NewMemoryProvider[int, int](Natural[int]())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Allocate(true)
	assert.True(t, errors.Is(err, ErrProviderClosed))
	_, err = p.Get(1, Read)
	assert.True(t, errors.Is(err, ErrProviderClosed))
}

func TestTreeMetrics(t *testing.T) {
	splits := testutil.ToFloat64(rootSplits)
	collapses := testutil.ToFloat64(rootCollapses)
	puts := testutil.ToFloat64(treeOperations.WithLabelValues("put"))

	tree, _ := newIntTree(t, 2)
	for i := 0; i < 4; i++ {
		_, _, err := tree.Put(i, i)
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(rootSplits)-splits)
	assert.Equal(t, 4.0, testutil.ToFloat64(treeOperations.WithLabelValues("put"))-puts)
	assert.Equal(t, 4.0, testutil.ToFloat64(treeSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(treeHeight))

	for i := 0; i < 4; i++ {
		_, _, err := tree.Remove(i)
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(rootCollapses)-collapses)
	assert.Equal(t, 0.0, testutil.ToFloat64(treeHeight))
}
