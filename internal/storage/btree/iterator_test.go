package btree

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evenTree(t *testing.T, degree, n int) *Tree[int, int] {
	t.Helper()
	tree, _ := newIntTree(t, degree)
	for i := 0; i < n; i++ {
		_, _, err := tree.Put(2*i, i)
		require.NoError(t, err)
	}
	return tree
}

func TestIteratorEmpty(t *testing.T) {
	tree, _ := newIntTree(t, 2)
	it, err := tree.Iterator()
	require.NoError(t, err)

	_, ok := it.Next()
	assert.False(t, ok)
	assert.NoError(t, it.Err())
}

func TestIteratorFrom(t *testing.T) {
	for _, degree := range []int{2, 3, 8} {
		tree := evenTree(t, degree, 100) // keys 0, 2, ..., 198

		tests := []struct {
			name      string
			from      int
			inclusive bool
			first     int
			count     int
		}{
			{"before all", -5, true, 0, 100},
			{"present inclusive", 50, true, 50, 75},
			{"present exclusive", 50, false, 52, 74},
			{"absent inclusive", 51, true, 52, 74},
			{"absent exclusive", 51, false, 52, 74},
			{"last inclusive", 198, true, 198, 1},
			{"last exclusive", 198, false, 0, 0},
			{"past end", 500, true, 0, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				it, err := tree.IteratorFrom(tt.from, tt.inclusive)
				require.NoError(t, err)
				keys := collectKeys(t, it)
				require.Len(t, keys, tt.count, "degree %d", degree)
				if tt.count > 0 {
					assert.Equal(t, tt.first, keys[0])
					assert.IsIncreasing(t, keys)
				}
			})
		}
	}
}

func TestIteratorEveryStartingPoint(t *testing.T) {
	tree := evenTree(t, 2, 64)
	for from := -1; from <= 128; from++ {
		for _, inclusive := range []bool{true, false} {
			it, err := tree.IteratorFrom(from, inclusive)
			require.NoError(t, err)
			keys := collectKeys(t, it)

			want := []int{}
			for k := 0; k < 128; k += 2 {
				if k > from || (inclusive && k == from) {
					want = append(want, k)
				}
			}
			require.Equal(t, want, keys, "from %d inclusive %v", from, inclusive)
		}
	}
}

func TestIteratorPeekTakeSkip(t *testing.T) {
	tree := evenTree(t, 2, 10)
	it, err := tree.Iterator()
	require.NoError(t, err)
	defer it.Close()

	p, ok := it.Peek()
	require.True(t, ok)
	assert.Equal(t, 0, p.Key())
	p, _ = it.Peek()
	assert.Equal(t, 0, p.Key())

	n, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, 0, n.Key())

	assert.Equal(t, 3, it.Skip(3))

	taken, err := it.Take(2)
	require.NoError(t, err)
	require.Len(t, taken, 2)
	assert.Equal(t, 8, taken[0].Key())
	assert.Equal(t, 10, taken[1].Key())

	assert.Equal(t, 4, it.Skip(100))
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestIteratorAll(t *testing.T) {
	tree := evenTree(t, 3, 20)
	it, err := tree.Iterator()
	require.NoError(t, err)

	var keys []int
	for k, v := range it.All() {
		assert.Equal(t, k/2, v)
		keys = append(keys, k)
		if len(keys) == 5 {
			break
		}
	}
	assert.Equal(t, []int{0, 2, 4, 6, 8}, keys)

	_, ok := it.Next()
	assert.False(t, ok, "breaking out of All closes the iterator")
}

func TestIteratorReleasesPin(t *testing.T) {
	tree, backend := newIntTree(t, 2)
	for i := 0; i < 50; i++ {
		_, _, err := tree.Put(i, i)
		require.NoError(t, err)
	}

	it, err := tree.Iterator()
	require.NoError(t, err)
	_, ok := it.Next()
	require.True(t, ok)

	for i := 0; i < 50; i++ {
		_, _, err := tree.Put(i, -i)
		require.NoError(t, err)
	}
	stats, err := tree.Stats()
	require.NoError(t, err)
	assert.Greater(t, backend.Len(), stats.Nodes, "pinned version is still alive")

	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
	requireNoLeaks(t, tree, backend)
}

func TestIteratorAfterProviderClosed(t *testing.T) {
	tree := evenTree(t, 2, 50)
	it, err := tree.Iterator()
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	_, ok := it.Next()
	assert.False(t, ok)
	assert.True(t, errors.Is(it.Err(), ErrProviderClosed))
}
