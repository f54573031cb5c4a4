package events

import "time"

// EstimationEvent is published whenever a duration is resolved. Degraded is
// true when the estimation service was unavailable and the base estimate was
// used instead.
type EstimationEvent struct {
	WorkItemID string
	Workers    []string
	BaseHours  float64
	FinalHours float64
	Degraded   bool
	Err        error
	Time       time.Time
}
