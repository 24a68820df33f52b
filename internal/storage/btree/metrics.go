package btree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var nodeAllocations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "obtree_node_allocations_total",
	Help: "Number of nodes allocated by providers",
})

var nodeFrees = promauto.NewCounter(prometheus.CounterOpts{
	Name: "obtree_node_frees_total",
	Help: "Number of nodes freed, explicitly or by releasing their last observer",
})

var nodeClones = promauto.NewCounter(prometheus.CounterOpts{
	Name: "obtree_node_clones_total",
	Help: "Number of shared nodes shadowed on write",
})

var nodeFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "obtree_node_fetches_total",
	Help: "Number of node lookups by intent",
}, []string{"intent"})

var treeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "obtree_tree_operations_total",
	Help: "Number of tree operations by kind",
}, []string{"op"})

var rootSplits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "obtree_root_splits_total",
	Help: "Number of times a tree grew by one level",
})

var rootCollapses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "obtree_root_collapses_total",
	Help: "Number of times a tree shrank by one level",
})

var treeSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "obtree_tree_size",
	Help: "Number of tuples in the most recently published tree version",
})

var treeHeight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "obtree_tree_height",
	Help: "Height of the most recently published tree version",
})
