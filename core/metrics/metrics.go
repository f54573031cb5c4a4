package metrics

import "time"

// CommitRecord represents one scheduling commit attempt to be recorded.
type CommitRecord struct {
	WorkItemID  string
	WorkerID    string
	Source      string
	Outcome     string
	Hours       float64
	Start       time.Time
	TaskCreated bool
	Latency     time.Duration
	Time        time.Time
}

// MetricsSink records scheduling activity for observability purposes.
type MetricsSink interface {
	RecordCommit(rec CommitRecord) error
}

// SearchRecord captures a slot search for one worker.
type SearchRecord struct {
	WorkItemID             string
	WorkerID               string
	Candidates             int
	ConflictDataIncomplete bool
	Unadjusted             bool
	Latency                time.Duration
	Time                   time.Time
}

// SearchRecorder records slot searches.
type SearchRecorder interface {
	RecordSearch(rec SearchRecord) error
}

// EstimationRecord captures a duration resolution.
type EstimationRecord struct {
	WorkItemID string
	Workers    int
	BaseHours  float64
	FinalHours float64
	Degraded   bool
	Time       time.Time
}

// EstimationRecorder records duration resolutions.
type EstimationRecorder interface {
	RecordEstimation(rec EstimationRecord) error
}

// CatalogSizeRecorder records the number of schedulable work items.
type CatalogSizeRecorder interface {
	RecordCatalogSize(size int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCommit(CommitRecord) error         { return nil }
func (NopSink) RecordSearch(SearchRecord) error         { return nil }
func (NopSink) RecordEstimation(EstimationRecord) error { return nil }
func (NopSink) RecordCatalogSize(int) error             { return nil }
