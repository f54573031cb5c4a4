// Package interval decides whether a proposed calendar window collides with
// already committed events.
//
// Intervals are half-open [start, end). Two windows that merely share a start
// instant are also treated as colliding, so a candidate starting exactly when
// an existing event starts is always rejected.
package interval

import (
	"time"

	"github.com/kilianp07/crewplan/core/model"
)

// Valid reports whether [start, end) has a positive length.
func Valid(start, end time.Time) bool {
	return start.Before(end)
}

// Overlaps reports whether [start, end) collides with ev.
func Overlaps(start, end time.Time, ev model.CommittedEvent) bool {
	if start.Equal(ev.Start) {
		return true
	}
	return start.Before(ev.End) && ev.Start.Before(end)
}

// Conflicts reports whether [start, end) collides with any of events.
func Conflicts(start, end time.Time, events []model.CommittedEvent) bool {
	_, ok := FirstConflict(start, end, events)
	return ok
}

// FirstConflict returns the first event colliding with [start, end).
func FirstConflict(start, end time.Time, events []model.CommittedEvent) (model.CommittedEvent, bool) {
	for _, ev := range events {
		if Overlaps(start, end, ev) {
			return ev, true
		}
	}
	return model.CommittedEvent{}, false
}

// ForWorker returns the events belonging to workerID.
func ForWorker(workerID string, events []model.CommittedEvent) []model.CommittedEvent {
	var out []model.CommittedEvent
	for _, ev := range events {
		if ev.WorkerID == workerID {
			out = append(out, ev)
		}
	}
	return out
}
