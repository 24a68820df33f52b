package filestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var nodeReads = promauto.NewCounter(prometheus.CounterOpts{
	Name: "obtree_filestore_node_reads_total",
	Help: "Number of node files read from disk",
})

var nodeWrites = promauto.NewCounter(prometheus.CounterOpts{
	Name: "obtree_filestore_node_writes_total",
	Help: "Number of node files written to disk",
})

var nodeRemovals = promauto.NewCounter(prometheus.CounterOpts{
	Name: "obtree_filestore_node_removals_total",
	Help: "Number of node files removed after a flush",
})

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "obtree_filestore_cache_lookups_total",
	Help: "Number of node cache lookups by result",
}, []string{"result"})

var flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "obtree_filestore_flush_duration_seconds",
	Help:    "Time spent writing dirty nodes and the meta record",
	Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
})
