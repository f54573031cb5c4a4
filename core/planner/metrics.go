package planner

import "github.com/prometheus/client_golang/prometheus"

var (
	searchesTotal      *prometheus.CounterVec
	candidatesReturned prometheus.Histogram
	catalogItems       prometheus.Gauge
)

func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Gauge) {
	searches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewplan_searches_total",
			Help: "Slot searches per worker by result",
		},
		[]string{"result", "incomplete"},
	)
	cands := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crewplan_search_candidates",
			Help:    "Candidates returned per worker search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)
	items := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crewplan_catalog_items",
			Help: "Work items in the last built catalog",
		},
	)
	return searches, cands, items
}

func init() {
	searchesTotal, candidatesReturned, catalogItems = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers planner metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(searchesTotal, candidatesReturned, catalogItems)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	searchesTotal, candidatesReturned, catalogItems = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
