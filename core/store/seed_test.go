package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewplan/core/model"
)

func TestSeedApplyIsRepeatable(t *testing.T) {
	sd := Seed{
		Workers:  []model.Worker{{Email: "ann@x", PrimarySkill: "carpentry"}},
		Projects: []model.Project{{ID: "p1", Status: model.ProjectActive}},
		Tasks:    []model.Task{{ID: "t1", ProjectID: "p1", Title: "Frame", Assignees: []string{"ann@x"}}},
		Events:   []model.CommittedEvent{{ID: "e1", WorkerID: "ann@x", TaskID: "t1", Start: day(10), End: day(12)}},
	}
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, sd.Apply(ctx, s))
	require.NoError(t, sd.Apply(ctx, s))

	tasks, err := s.ListTasks(ctx, TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	evs, err := s.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Len(t, evs, 1)
	_, err = s.GetWorker(ctx, "ANN@x")
	assert.NoError(t, err)
}

func TestSeedApplyRejectsInvalidEvent(t *testing.T) {
	sd := Seed{Events: []model.CommittedEvent{{ID: "bad", WorkerID: "ann@x", Start: day(12), End: day(10)}}}
	assert.Error(t, sd.Apply(context.Background(), NewMemoryStore()))
}
