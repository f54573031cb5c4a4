package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/crewplan/core/model"
)

// Seed is a snapshot of entities loaded into a store at startup.
type Seed struct {
	Workers  []model.Worker         `json:"workers"`
	Projects []model.Project        `json:"projects"`
	Tasks    []model.Task           `json:"tasks"`
	Events   []model.CommittedEvent `json:"events"`
}

// Apply writes the seed into s. Existing projects, workers and tasks are
// overwritten; events colliding with stored ones are skipped so a seed can
// be applied to a store that already holds it.
func (sd Seed) Apply(ctx context.Context, s Store) error {
	for _, w := range sd.Workers {
		if err := s.SaveWorker(ctx, w); err != nil {
			return fmt.Errorf("seed worker %s: %w", w.Email, err)
		}
	}
	for _, p := range sd.Projects {
		if err := s.SaveProject(ctx, p); err != nil {
			return fmt.Errorf("seed project %s: %w", p.ID, err)
		}
	}
	for _, t := range sd.Tasks {
		err := s.UpdateTask(ctx, t)
		if errors.Is(err, ErrNotFound) {
			_, err = s.CreateTask(ctx, t)
		}
		if err != nil {
			return fmt.Errorf("seed task %s: %w", t.ID, err)
		}
	}
	for _, ev := range sd.Events {
		if _, err := s.CommitEvent(ctx, ev); err != nil && !errors.Is(err, ErrOverlap) {
			return fmt.Errorf("seed event %s: %w", ev.ID, err)
		}
	}
	return nil
}
