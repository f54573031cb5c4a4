package estimate

import "github.com/prometheus/client_golang/prometheus"

var (
	estimationsTotal  *prometheus.CounterVec
	estimationLatency prometheus.Histogram
)

func newCollectors() (*prometheus.CounterVec, prometheus.Histogram) {
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewplan_estimations_total",
			Help: "Duration resolutions by outcome (adjusted or degraded)",
		},
		[]string{"outcome"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crewplan_estimation_latency_seconds",
			Help:    "Latency of Task-Time estimation calls",
			Buckets: prometheus.DefBuckets,
		},
	)
	return total, lat
}

func init() {
	estimationsTotal, estimationLatency = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers estimation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(estimationsTotal, estimationLatency)
}

// ResetMetrics reinitializes the collectors for tests and registers them on
// reg when it is not nil.
func ResetMetrics(reg prometheus.Registerer) {
	estimationsTotal, estimationLatency = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
