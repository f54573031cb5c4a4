package events

import "time"

// SearchEvent is published after a slot search for a single worker.
type SearchEvent struct {
	WorkItemID             string
	WorkerID               string
	Candidates             int
	ConflictDataIncomplete bool
	Unadjusted             bool
	Latency                time.Duration
	Time                   time.Time
}
