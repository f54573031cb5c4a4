package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority ranks work items for the scheduling UI.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	default:
		return "unknown"
	}
}

// ParsePriority converts a priority name into a Priority.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, true
	case "medium", "":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	case "urgent":
		return PriorityUrgent, true
	default:
		return 0, false
	}
}

// MarshalJSON encodes the priority by name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a priority name.
func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, ok := ParsePriority(s)
	if !ok {
		return fmt.Errorf("unknown priority %q", s)
	}
	*p = v
	return nil
}

// TaskStatus is the progress state of a task.
type TaskStatus int

const (
	TaskNotStarted TaskStatus = iota
	TaskInProgress
	TaskDone
)

// String returns the task status name.
func (s TaskStatus) String() string {
	switch s {
	case TaskNotStarted:
		return "NotStarted"
	case TaskInProgress:
		return "InProgress"
	case TaskDone:
		return "Done"
	default:
		return "unknown"
	}
}

// Task is a unit of project work assigned to one or more workers.
type Task struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"project_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	EstimatedHours   float64    `json:"estimated_hours"`
	Assignees        []string   `json:"assignees"` // worker emails
	Status           TaskStatus `json:"status"`
	Priority         Priority   `json:"priority"`
	SourceLineItemID string     `json:"source_line_item_id,omitempty"` // set when the task was materialized from a line item
}

// HasAssignee reports whether the worker is recorded on the task.
func (t Task) HasAssignee(workerID string) bool {
	for _, a := range t.Assignees {
		if strings.EqualFold(a, workerID) {
			return true
		}
	}
	return false
}
