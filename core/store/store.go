// Package store defines the entity persistence boundary used by the
// scheduling engine: projects, tasks, workers and committed calendar events.
//
// Get operations return ErrNotFound for unknown ids. List operations never
// report not-found; an empty result is an empty slice.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kilianp07/crewplan/core/model"
)

var (
	// ErrNotFound is returned by Get operations for unknown ids.
	ErrNotFound = errors.New("entity not found")
	// ErrOverlap is returned by CommitEvent when the new event collides with
	// an event already stored for the same worker.
	ErrOverlap = errors.New("event overlaps a committed event")
)

// ProjectFilter selects projects. Empty fields match everything.
type ProjectFilter struct {
	IDs      []string
	Statuses []model.ProjectStatus
}

// TaskFilter selects tasks. Empty fields match everything.
type TaskFilter struct {
	ProjectID string
	IDs       []string
	Statuses  []model.TaskStatus
}

// EventFilter selects committed events. A zero From or To leaves the range
// open on that side; an event matches when it intersects [From, To).
type EventFilter struct {
	WorkerIDs []string
	TaskIDs   []string
	From      time.Time
	To        time.Time
}

// ProjectStore persists projects and their line items.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (model.Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]model.Project, error)
	SaveProject(ctx context.Context, p model.Project) error
}

// TaskStore persists tasks.
type TaskStore interface {
	GetTask(ctx context.Context, id string) (model.Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]model.Task, error)
	// CreateTask stores t, assigning an id when t.ID is empty.
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, t model.Task) error
}

// WorkerStore persists crew members.
type WorkerStore interface {
	GetWorker(ctx context.Context, email string) (model.Worker, error)
	ListWorkers(ctx context.Context) ([]model.Worker, error)
	SaveWorker(ctx context.Context, w model.Worker) error
}

// EventStore persists committed calendar events.
type EventStore interface {
	ListEvents(ctx context.Context, f EventFilter) ([]model.CommittedEvent, error)
	// CommitEvent re-reads the worker's events and inserts ev only when it
	// does not collide with any of them; otherwise it returns ErrOverlap.
	// The check and the insert are atomic with respect to other commits.
	CommitEvent(ctx context.Context, ev model.CommittedEvent) (model.CommittedEvent, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Store groups every entity store.
type Store interface {
	ProjectStore
	TaskStore
	WorkerStore
	EventStore
	Close() error
}

func anyOf(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Match reports whether ev satisfies the filter.
func (f EventFilter) Match(ev model.CommittedEvent) bool {
	if !anyOf(f.WorkerIDs, ev.WorkerID) || !anyOf(f.TaskIDs, ev.TaskID) {
		return false
	}
	if !f.From.IsZero() && !ev.End.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !ev.Start.Before(f.To) {
		return false
	}
	return true
}

// Match reports whether t satisfies the filter.
func (f TaskFilter) Match(t model.Task) bool {
	if f.ProjectID != "" && f.ProjectID != t.ProjectID {
		return false
	}
	if !anyOf(f.IDs, t.ID) {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if s == t.Status {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Match reports whether p satisfies the filter.
func (f ProjectFilter) Match(p model.Project) bool {
	if !anyOf(f.IDs, p.ID) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == p.Status {
			return true
		}
	}
	return false
}
