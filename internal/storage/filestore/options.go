// Package filestore provides a file-per-node btree.Backend.
package filestore

import (
	"github.com/KilimcininKorOglu/obtree/internal/logging"
)

// Default options for Store.
const (
	DefaultCacheSize = 4096
)

// Options configures a Store.
type Options struct {
	CacheSize   int            // Clean nodes kept decoded in memory (default: 4096)
	SyncOnWrite bool           // fsync every node file, not only the meta record
	Logger      logging.Logger // Nil discards log output
	ReadOnly    bool           // Open an existing store without creating or changing files
}

// DefaultOptions returns the default Store options.
func DefaultOptions() Options {
	return Options{
		CacheSize:   DefaultCacheSize,
		SyncOnWrite: false,
	}
}
