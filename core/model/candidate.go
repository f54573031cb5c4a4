package model

import "time"

// Candidate is a conflict-free, business-hours window proposed to a worker.
type Candidate struct {
	WorkerID           string    `json:"worker_id"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	TotalHoursRequired float64   `json:"total_hours_required"`
}

// Same reports whether both candidates describe the same window for the same worker.
func (c Candidate) Same(o Candidate) bool {
	return c.WorkerID == o.WorkerID && c.Start.Equal(o.Start) && c.End.Equal(o.End)
}

// SchedulingResult is the outcome of a committed scheduling transaction.
// Task is nil when the event was attached to an already existing task.
type SchedulingResult struct {
	Task        *Task          `json:"task,omitempty"`
	Event       CommittedEvent `json:"event"`
	TaskCreated bool           `json:"task_created"`
}
