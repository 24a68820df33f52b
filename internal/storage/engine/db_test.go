package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obtree/internal/config"
	"github.com/KilimcininKorOglu/obtree/internal/storage/btree"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Tree.Degree = 3
	cfg.Storage.Backend = backend
	cfg.Storage.Dir = t.TempDir()
	cfg.Storage.PebbleCache = "1MB"
	return cfg
}

func openDB(t *testing.T, cfg *config.Config) *DB {
	t.Helper()
	db, err := Open(cfg, nil)
	require.NoError(t, err)
	return db
}

func fill(t *testing.T, db *DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		k := []byte(fmt.Sprintf("key-%04d", i))
		_, _, err := db.Put(k, []byte(fmt.Sprintf("val-%d", i)))
		require.NoError(t, err)
	}
}

func TestBackends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendFile, config.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			db := openDB(t, testConfig(t, backend))
			defer db.Close()

			fill(t, db, 200)
			require.Equal(t, 200, db.Len())
			require.NoError(t, db.Verify())

			v, found, err := db.Get([]byte("key-0042"))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("val-42"), v)

			old, found, err := db.Delete([]byte("key-0042"))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("val-42"), old)

			_, found, err = db.Get([]byte("key-0042"))
			require.NoError(t, err)
			assert.False(t, found)

			stats, err := db.Stats()
			require.NoError(t, err)
			assert.Equal(t, backend, stats.Backend)
			assert.Equal(t, 199, stats.Len)
			assert.Equal(t, 3, stats.Degree)
		})
	}
}

func TestReopenPersists(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			db := openDB(t, cfg)
			fill(t, db, 100)
			require.NoError(t, db.Close())

			cfg.Tree.Degree = 0
			db = openDB(t, cfg)
			defer db.Close()

			require.Equal(t, 100, db.Len())
			require.NoError(t, db.Verify())
			stats, err := db.Stats()
			require.NoError(t, err)
			assert.Equal(t, 3, stats.Degree)
		})
	}
}

func TestReopenDegreeMismatch(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	db := openDB(t, cfg)
	fill(t, db, 10)
	require.NoError(t, db.Close())

	cfg.Tree.Degree = 8
	_, err := Open(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, btree.ErrDegreeMismatch))
}

func TestPutCopiesBuffers(t *testing.T) {
	db := openDB(t, testConfig(t, config.BackendMemory))
	defer db.Close()

	key := []byte("k")
	value := []byte("v1")
	_, _, err := db.Put(key, value)
	require.NoError(t, err)

	key[0] = 'x'
	value[1] = '9'

	v, found, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), v)

	v[0] = 'z'
	v, _, err = db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestPutNilKey(t *testing.T) {
	db := openDB(t, testConfig(t, config.BackendMemory))
	defer db.Close()

	_, _, err := db.Put(nil, []byte("v"))
	assert.ErrorIs(t, err, ErrNilKey)
}

func TestPutReplaces(t *testing.T) {
	db := openDB(t, testConfig(t, config.BackendMemory))
	defer db.Close()

	_, replaced, err := db.Put([]byte("a"), []byte("1"))
	require.NoError(t, err)
	assert.False(t, replaced)

	old, replaced, err := db.Put([]byte("a"), []byte("2"))
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, []byte("1"), old)
	assert.Equal(t, 1, db.Len())
}

func TestScan(t *testing.T) {
	db := openDB(t, testConfig(t, config.BackendMemory))
	defer db.Close()
	fill(t, db, 50)

	scan := func(from []byte, inclusive bool, limit int) []string {
		var keys []string
		err := db.Scan(from, inclusive, limit, func(k, _ []byte) bool {
			keys = append(keys, string(k))
			return true
		})
		require.NoError(t, err)
		return keys
	}

	assert.Len(t, scan(nil, true, 0), 50)
	assert.Equal(t, []string{"key-0010", "key-0011", "key-0012"}, scan([]byte("key-0010"), true, 3))
	assert.Equal(t, []string{"key-0011", "key-0012"}, scan([]byte("key-0010"), false, 2))
	assert.Equal(t, []string{"key-0049"}, scan([]byte("key-0048~"), true, 0))
	assert.Empty(t, scan([]byte("zzz"), true, 0))

	var stopped []string
	err := db.Scan(nil, true, 0, func(k, _ []byte) bool {
		stopped = append(stopped, string(k))
		return len(stopped) < 4
	})
	require.NoError(t, err)
	assert.Len(t, stopped, 4)
}

func TestUnknownBackend(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.Storage.Backend = "tape"
	_, err := Open(cfg, nil)
	require.Error(t, err)
}

func TestClosedDB(t *testing.T) {
	db := openDB(t, testConfig(t, config.BackendMemory))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, _, err := db.Put([]byte("a"), []byte("b"))
	assert.ErrorIs(t, err, btree.ErrTreeClosed)
	_, _, err = db.Get([]byte("a"))
	assert.ErrorIs(t, err, btree.ErrTreeClosed)
}

func TestOpenReadOnly(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			cfg.Storage.Dir = filepath.Join(cfg.Storage.Dir, "db")

			_, err := OpenReadOnly(cfg, nil)
			require.True(t, errors.Is(err, btree.ErrTreeNotFound))
			_, err = os.Stat(cfg.Storage.Dir)
			require.True(t, os.IsNotExist(err), "read-only open created the database")

			db := openDB(t, cfg)
			fill(t, db, 30)
			require.NoError(t, db.Close())

			ro, err := OpenReadOnly(cfg, nil)
			require.NoError(t, err)
			v, found, err := ro.Get([]byte("key-0007"))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("val-7"), v)

			_, _, err = ro.Put([]byte("new"), []byte("v"))
			assert.True(t, errors.Is(err, btree.ErrReadOnly))
			require.NoError(t, ro.Verify())
			require.NoError(t, ro.Close())
		})
	}
}
