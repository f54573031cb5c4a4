package booking

import "github.com/prometheus/client_golang/prometheus"

var (
	commitsTotal  *prometheus.CounterVec
	commitLatency prometheus.Histogram
	orphanTasks   prometheus.Counter
)

func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Counter) {
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewplan_commits_total",
			Help: "Scheduling transactions by outcome",
		},
		[]string{"outcome"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crewplan_commit_latency_seconds",
			Help:    "Latency of scheduling transactions",
			Buckets: prometheus.DefBuckets,
		},
	)
	orphans := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crewplan_orphan_tasks_total",
			Help: "Tasks created without their calendar event",
		},
	)
	return total, lat, orphans
}

func init() {
	commitsTotal, commitLatency, orphanTasks = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers booking metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commitsTotal, commitLatency, orphanTasks)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	commitsTotal, commitLatency, orphanTasks = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
