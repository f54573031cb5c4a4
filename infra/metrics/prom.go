package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/crewplan/core/metrics"
)

// PromSink records scheduling activity in Prometheus metrics.
type PromSink struct {
	commits    *prometheus.CounterVec
	commitLat  *prometheus.HistogramVec
	hours      prometheus.Histogram
	searches   *prometheus.CounterVec
	candidates prometheus.Histogram
	estimates  *prometheus.CounterVec
	catalog    prometheus.Gauge
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately by StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	s, err := NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_commits_total",
			Help: "Scheduling commit attempts by outcome and work item source",
		}, []string{"outcome", "source", "task_created"}),
		commitLat: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schedule_commit_latency_seconds",
			Help:    "Time spent committing a scheduling transaction",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		hours: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schedule_committed_hours",
			Help:    "Adjusted hours of committed work items",
			Buckets: []float64{1, 2, 4, 8, 16, 24, 40},
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_searches_total",
			Help: "Slot searches by conflict data completeness",
		}, []string{"incomplete", "unadjusted"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schedule_search_candidates",
			Help:    "Candidates returned per worker search",
			Buckets: []float64{0, 1, 5, 10, 15, 20},
		}),
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_estimations_total",
			Help: "Duration resolutions recorded by the sink",
		}, []string{"degraded"}),
		catalog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schedule_catalog_items",
			Help: "Number of schedulable work items in the last catalog",
		}),
	}
	var err error
	if s.commits, err = register(reg, s.commits); err != nil {
		return nil, err
	}
	if s.commitLat, err = register(reg, s.commitLat); err != nil {
		return nil, err
	}
	if s.hours, err = register(reg, s.hours); err != nil {
		return nil, err
	}
	if s.searches, err = register(reg, s.searches); err != nil {
		return nil, err
	}
	if s.candidates, err = register(reg, s.candidates); err != nil {
		return nil, err
	}
	if s.estimates, err = register(reg, s.estimates); err != nil {
		return nil, err
	}
	if s.catalog, err = register(reg, s.catalog); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCommit counts the attempt and observes its latency.
func (s *PromSink) RecordCommit(r coremetrics.CommitRecord) error {
	s.commits.WithLabelValues(r.Outcome, r.Source, strconv.FormatBool(r.TaskCreated)).Inc()
	s.commitLat.WithLabelValues(r.Outcome).Observe(r.Latency.Seconds())
	if r.Outcome == "committed" {
		s.hours.Observe(r.Hours)
	}
	return nil
}

// RecordSearch counts the search and observes the number of candidates.
func (s *PromSink) RecordSearch(r coremetrics.SearchRecord) error {
	s.searches.WithLabelValues(strconv.FormatBool(r.ConflictDataIncomplete), strconv.FormatBool(r.Unadjusted)).Inc()
	s.candidates.Observe(float64(r.Candidates))
	return nil
}

// RecordEstimation counts duration resolutions.
func (s *PromSink) RecordEstimation(r coremetrics.EstimationRecord) error {
	s.estimates.WithLabelValues(strconv.FormatBool(r.Degraded)).Inc()
	return nil
}

// RecordCatalogSize sets the catalog gauge.
func (s *PromSink) RecordCatalogSize(size int) error {
	s.catalog.Set(float64(size))
	return nil
}
