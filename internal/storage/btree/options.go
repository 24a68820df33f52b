// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import (
	"github.com/KilimcininKorOglu/obtree/internal/logging"
)

// Degree limits.
const (
	// DefaultDegree is the minimum degree used when none is configured and
	// the provider holds no tree.
	DefaultDegree = 64

	// MinDegree is the smallest supported minimum degree (a 2-3-4 tree).
	MinDegree = 2
)

// Options configures a Tree.
type Options struct {
	// Degree is the minimum degree t. Zero means DefaultDegree for a new
	// tree and the stored degree for a reopened one.
	Degree int

	// Logger receives structural events. Nil discards them.
	Logger logging.Logger

	// ReadOnly opens an existing tree for reads only. Writes fail with
	// ErrReadOnly and Close does not flush. A provider without a stored
	// tree fails with ErrTreeNotFound.
	ReadOnly bool
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}
