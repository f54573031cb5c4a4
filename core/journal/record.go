// Package journal keeps an append-only record of scheduling commit attempts.
package journal

import (
	"context"
	"strings"
	"time"
)

// Outcome classifies a commit attempt.
type Outcome string

const (
	OutcomeCommitted        Outcome = "committed"
	OutcomeConflict         Outcome = "conflict"
	OutcomeInvalidCandidate Outcome = "invalid_candidate"
	OutcomeNotAuthorized    Outcome = "not_authorized"
	OutcomePersistence      Outcome = "persistence_failure"
	OutcomePartialFailure   Outcome = "partial_failure"
)

// Record captures one commit attempt and its result.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	WorkItemID   string    `json:"work_item_id"`
	Source       string    `json:"source"`
	WorkerID     string    `json:"worker_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	FinalHours   float64   `json:"final_hours"`
	Unadjusted   bool      `json:"unadjusted,omitempty"`
	Outcome      Outcome   `json:"outcome"`
	TaskID       string    `json:"task_id,omitempty"`
	EventID      string    `json:"event_id,omitempty"`
	TaskCreated  bool      `json:"task_created,omitempty"`
	OrphanTaskID string    `json:"orphan_task_id,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	WorkerID string
	Outcome  Outcome
}

// Match reports whether r satisfies q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.WorkerID != "" && !strings.EqualFold(q.WorkerID, r.WorkerID) {
		return false
	}
	if q.Outcome != "" && q.Outcome != r.Outcome {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
