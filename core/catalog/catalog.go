// Package catalog derives the list of schedulable work items from projects,
// tasks and committed events.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/crewplan/core/logger"
	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/core/store"
)

// Catalog is the result of a build. Err is set when the entity store could
// not be read; Items is then empty and must not be read as "nothing to
// schedule".
type Catalog struct {
	Items   []model.WorkItem `json:"items"`
	Err     error            `json:"-"`
	BuiltAt time.Time        `json:"built_at"`

	// scheduled holds, per task id, the lower-cased workers that already
	// have an event for the task.
	scheduled map[string]map[string]struct{}
}

// Find returns the work item with the given id.
func (c Catalog) Find(id string) (model.WorkItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return model.WorkItem{}, false
}

// RemainingAssignees lists the assignees of a task item that have no event
// for the task yet. Line items have no assignees.
func (c Catalog) RemainingAssignees(item model.WorkItem) []string {
	if item.Source != model.SourceExistingTask || item.Task == nil {
		return nil
	}
	return remaining(item.Task.Assignees, c.scheduled[item.Task.ID])
}

// Builder assembles catalogs from the entity store.
type Builder struct {
	projects store.ProjectStore
	tasks    store.TaskStore
	events   store.EventStore
	log      logger.Logger
	now      func() time.Time
}

// NewBuilder creates a Builder. A nil logger discards messages.
func NewBuilder(projects store.ProjectStore, tasks store.TaskStore, events store.EventStore, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop{}
	}
	return &Builder{projects: projects, tasks: tasks, events: events, log: log, now: time.Now}
}

// Build returns the current catalog in discovery order: labor line items of
// active projects first, then tasks not yet covered for every assignee.
func (b *Builder) Build(ctx context.Context) Catalog {
	cat, err := b.build(ctx)
	if err != nil {
		b.log.Errorf("catalog build failed: %v", err)
		return Catalog{Err: err, BuiltAt: b.now()}
	}
	b.log.Infof("catalog built with %d work items", len(cat.Items))
	return cat
}

func (b *Builder) build(ctx context.Context) (Catalog, error) {
	projects, err := b.projects.ListProjects(ctx, store.ProjectFilter{})
	if err != nil {
		return Catalog{}, fmt.Errorf("list projects: %w", err)
	}
	// every task counts for materialization, only open ones are schedulable
	all, err := b.tasks.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return Catalog{}, fmt.Errorf("list tasks: %w", err)
	}
	open := store.TaskFilter{Statuses: []model.TaskStatus{model.TaskNotStarted, model.TaskInProgress}}
	tasks := make([]model.Task, 0, len(all))
	for _, t := range all {
		if open.Match(t) {
			tasks = append(tasks, t)
		}
	}

	addresses := make(map[string]string, len(projects))
	for _, p := range projects {
		addresses[p.ID] = p.SiteAddress
	}
	// line items already turned into tasks are scheduled through the task
	materialized := make(map[string]struct{})
	for _, t := range all {
		if t.SourceLineItemID != "" {
			materialized[pairKey(t.ProjectID, t.SourceLineItemID)] = struct{}{}
		}
	}
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}

	scheduled := make(map[string]map[string]struct{}, len(tasks))
	if len(taskIDs) > 0 {
		evs, err := b.events.ListEvents(ctx, store.EventFilter{TaskIDs: taskIDs})
		if err != nil {
			return Catalog{}, fmt.Errorf("list events: %w", err)
		}
		for _, e := range evs {
			if e.TaskID == "" {
				continue
			}
			set := scheduled[e.TaskID]
			if set == nil {
				set = make(map[string]struct{})
				scheduled[e.TaskID] = set
			}
			set[strings.ToLower(e.WorkerID)] = struct{}{}
		}
	}

	cat := Catalog{BuiltAt: b.now(), scheduled: scheduled, Items: []model.WorkItem{}}
	seen := make(map[string]struct{})
	for _, p := range projects {
		if !p.IsActive() {
			continue
		}
		for _, li := range p.LineItems {
			if li.Type != model.LineItemLabor || li.LaborHours() <= 0 {
				continue
			}
			k := pairKey(p.ID, li.ID)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if _, done := materialized[k]; done {
				continue
			}
			cat.Items = append(cat.Items, model.NewLineItemWork(p, li))
		}
	}
	for _, t := range tasks {
		if t.EstimatedHours <= 0 {
			b.log.Warnf("task %s skipped: estimated hours %.2f", t.ID, t.EstimatedHours)
			continue
		}
		set := scheduled[t.ID]
		if len(t.Assignees) == 0 {
			if len(set) > 0 {
				continue
			}
		} else if len(remaining(t.Assignees, set)) == 0 {
			continue
		}
		cat.Items = append(cat.Items, model.NewTaskWork(t, addresses[t.ProjectID]))
	}
	return cat, nil
}

func remaining(assignees []string, scheduled map[string]struct{}) []string {
	out := make([]string, 0, len(assignees))
	for _, a := range assignees {
		if _, ok := scheduled[strings.ToLower(a)]; !ok {
			out = append(out, a)
		}
	}
	return out
}

func pairKey(projectID, lineItemID string) string {
	return projectID + "\x00" + lineItemID
}
