package model

import (
	"errors"
	"time"
)

// CommittedEvent is a persisted calendar interval [Start, End) for a worker.
// TaskID is a back-reference; the calendar owns the event.
type CommittedEvent struct {
	ID       string    `json:"id"`
	WorkerID string    `json:"worker_id"`
	TaskID   string    `json:"task_id,omitempty"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Validate checks that the event describes a usable interval.
func (e CommittedEvent) Validate() error {
	if e.WorkerID == "" {
		return errors.New("event worker is required")
	}
	if !e.Start.Before(e.End) {
		return errors.New("event start must be before end")
	}
	return nil
}

// Duration returns the length of the event.
func (e CommittedEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}
