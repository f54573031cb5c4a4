package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kilianp07/crewplan/core/interval"
	"github.com/kilianp07/crewplan/core/model"
)

// MemoryStore keeps every entity in process memory. Insertion order is
// preserved for projects and tasks so catalog discovery order is stable.
type MemoryStore struct {
	mu sync.RWMutex

	projects     map[string]model.Project
	projectOrder []string
	tasks        map[string]model.Task
	taskOrder    []string
	workers      map[string]model.Worker
	events       map[string]model.CommittedEvent
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: map[string]model.Project{},
		tasks:    map[string]model.Task{},
		workers:  map[string]model.Worker{},
		events:   map[string]model.CommittedEvent{},
	}
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return copyProject(p), nil
}

func (s *MemoryStore) ListProjects(_ context.Context, f ProjectFilter) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Project, 0, len(s.projectOrder))
	for _, id := range s.projectOrder {
		p := s.projects[id]
		if f.Match(p) {
			res = append(res, copyProject(p))
		}
	}
	return res, nil
}

func (s *MemoryStore) SaveProject(_ context.Context, p model.Project) error {
	if p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	s.mu.Lock()
	if _, ok := s.projects[p.ID]; !ok {
		s.projectOrder = append(s.projectOrder, p.ID)
	}
	s.projects[p.ID] = copyProject(p)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return copyTask(t), nil
}

func (s *MemoryStore) ListTasks(_ context.Context, f TaskFilter) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Task, 0, len(s.taskOrder))
	for _, id := range s.taskOrder {
		t := s.tasks[id]
		if f.Match(t) {
			res = append(res, copyTask(t))
		}
	}
	return res, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, ok := s.tasks[t.ID]; ok {
		return model.Task{}, fmt.Errorf("task %s already exists", t.ID)
	}
	t = copyTask(t)
	s.tasks[t.ID] = t
	s.taskOrder = append(s.taskOrder, t.ID)
	return copyTask(t), nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	s.tasks[t.ID] = copyTask(t)
	return nil
}

func (s *MemoryStore) GetWorker(_ context.Context, email string) (model.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workers[strings.ToLower(email)]
	if !ok {
		return model.Worker{}, fmt.Errorf("worker %s: %w", email, ErrNotFound)
	}
	return w, nil
}

func (s *MemoryStore) ListWorkers(_ context.Context) ([]model.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		res = append(res, w)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Email < res[j].Email })
	return res, nil
}

func (s *MemoryStore) SaveWorker(_ context.Context, w model.Worker) error {
	if w.Email == "" {
		return fmt.Errorf("worker email is required")
	}
	s.mu.Lock()
	s.workers[strings.ToLower(w.Email)] = w
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, f EventFilter) ([]model.CommittedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEventsLocked(f), nil
}

func (s *MemoryStore) listEventsLocked(f EventFilter) []model.CommittedEvent {
	res := make([]model.CommittedEvent, 0)
	for _, ev := range s.events {
		if f.Match(ev) {
			res = append(res, ev)
		}
	}
	sortEvents(res)
	return res
}

func (s *MemoryStore) CommitEvent(_ context.Context, ev model.CommittedEvent) (model.CommittedEvent, error) {
	if err := ev.Validate(); err != nil {
		return model.CommittedEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.listEventsLocked(EventFilter{WorkerIDs: []string{ev.WorkerID}})
	if other, ok := interval.FirstConflict(ev.Start, ev.End, existing); ok {
		return model.CommittedEvent{}, fmt.Errorf("%w: %s", ErrOverlap, other.ID)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	s.events[ev.ID] = ev
	return ev, nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	delete(s.events, id)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func sortEvents(evs []model.CommittedEvent) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}

func copyProject(p model.Project) model.Project {
	p.LineItems = append([]model.LineItem(nil), p.LineItems...)
	return p
}

func copyTask(t model.Task) model.Task {
	t.Assignees = append([]string(nil), t.Assignees...)
	return t
}
