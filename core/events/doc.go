// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - SearchEvent: a slot search finished for one worker
//   - EstimationEvent: a duration was resolved, possibly degraded
//   - CommitEvent: a scheduling transaction succeeded or failed
package events
