package events

import (
	"time"

	"github.com/kilianp07/crewplan/core/model"
)

// CommitEvent is published for each scheduling transaction. Result is only
// meaningful when Err is nil. OrphanTaskID is set when a task was created but
// its calendar event could not be stored.
type CommitEvent struct {
	WorkItemID   string
	Source       string
	WorkerID     string
	Outcome      string
	Hours        float64
	Result       model.SchedulingResult
	Err          error
	OrphanTaskID string
	Latency      time.Duration
	Time         time.Time
}
