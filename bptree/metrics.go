package bptree

import "github.com/prometheus/client_golang/prometheus"

// metrics counts the structural events a B+ tree goes through over its
// lifetime, the way gojodb's storage engine registers per-component
// prometheus counters around its own indexing layer.
type metrics struct {
	splits        prometheus.Counter
	merges        prometheus.Counter
	redistributes prometheus.Counter
	rootCollapses prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, treeID string) *metrics {
	labels := prometheus.Labels{"tree": treeID}
	m := &metrics{
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bptree_node_splits_total",
			Help:        "Number of leaf or internal node splits performed.",
			ConstLabels: labels,
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bptree_node_merges_total",
			Help:        "Number of sibling merges performed during delete.",
			ConstLabels: labels,
		}),
		redistributes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bptree_node_redistributes_total",
			Help:        "Number of sibling key steals performed during delete.",
			ConstLabels: labels,
		}),
		rootCollapses: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bptree_root_collapses_total",
			Help:        "Number of times the root shrank to a single child and was replaced.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.splits, m.merges, m.redistributes, m.rootCollapses)
	}
	return m
}
