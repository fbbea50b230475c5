package collection

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Saves       *prometheus.CounterVec
	Imports     *prometheus.CounterVec
	MergedDupes prometheus.Counter
}

// NewMetrics creates the collection metrics and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verse_collections",
			Name:      "order_saves_total",
			Help:      "Reorder saves by outcome.",
		}, []string{"outcome"}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verse_collections",
			Name:      "imports_total",
			Help:      "Collection imports by outcome.",
		}, []string{"outcome"}),
		MergedDupes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "verse_collections",
			Name:      "merged_duplicate_groups_total",
			Help:      "Verse groups folded into an existing group with the same reference.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Saves, m.Imports, m.MergedDupes)
	}
	return m
}
