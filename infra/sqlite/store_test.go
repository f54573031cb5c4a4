package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/core/store"
)

var dbSeq atomic.Int64

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: fmt.Sprintf("file:crewplan_%d?mode=memory&cache=shared", dbSeq.Add(1))})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func hour(h int) time.Time {
	return time.Date(2025, 3, 4, h, 0, 0, 0, time.UTC)
}

func TestProjectsKeepInsertionOrder(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProject(ctx, model.Project{ID: "p2", Status: model.ProjectActive}))
	require.NoError(t, s.SaveProject(ctx, model.Project{ID: "p1", Status: model.ProjectOnHold}))
	require.NoError(t, s.SaveProject(ctx, model.Project{
		ID:        "p2",
		Name:      "Bath",
		Status:    model.ProjectActive,
		LineItems: []model.LineItem{{ID: "l1", Type: model.LineItemLabor, Hours: 1, Quantity: 2, Priority: model.PriorityHigh}},
	}))

	all, err := s.ListProjects(ctx, store.ProjectFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "p2", all[0].ID)
	assert.Equal(t, "Bath", all[0].Name)
	assert.Equal(t, model.PriorityHigh, all[0].LineItems[0].Priority)

	active, err := s.ListProjects(ctx, store.ProjectFilter{Statuses: []model.ProjectStatus{model.ProjectActive}})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = s.GetProject(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Error(t, s.SaveProject(ctx, model.Project{}))
}

func TestTasks(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	a, err := s.CreateTask(ctx, model.Task{ProjectID: "p1", Title: "A", EstimatedHours: 2, Assignees: []string{"ann@x"}, Status: model.TaskInProgress})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	_, err = s.CreateTask(ctx, model.Task{ID: "b", ProjectID: "p2", Title: "B", Status: model.TaskDone})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, model.Task{ID: "b"})
	assert.Error(t, err)

	got, err := s.GetTask(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	open, err := s.ListTasks(ctx, store.TaskFilter{Statuses: []model.TaskStatus{model.TaskNotStarted, model.TaskInProgress}})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)

	byProject, err := s.ListTasks(ctx, store.TaskFilter{ProjectID: "p2"})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, "b", byProject[0].ID)

	a.Status = model.TaskDone
	require.NoError(t, s.UpdateTask(ctx, a))
	got, err = s.GetTask(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskDone, got.Status)

	assert.ErrorIs(t, s.UpdateTask(ctx, model.Task{ID: "ghost"}), store.ErrNotFound)
	_, err = s.GetTask(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkersCaseInsensitive(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	require.NoError(t, s.SaveWorker(ctx, model.Worker{Email: "Bob@X", Name: "Bob", PrimarySkill: "tile", HourlyCost: 30}))
	require.NoError(t, s.SaveWorker(ctx, model.Worker{Email: "ann@x", Name: "Ann"}))

	w, err := s.GetWorker(ctx, "bob@x")
	require.NoError(t, err)
	assert.Equal(t, "Bob", w.Name)
	assert.Equal(t, 30.0, w.HourlyCost)

	all, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann@x", "Bob@X"}, []string{all[0].Email, all[1].Email})

	_, err = s.GetWorker(ctx, "zed@x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommitEventChecksOverlap(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	first, err := s.CommitEvent(ctx, model.CommittedEvent{WorkerID: "ann@x", TaskID: "t1", Start: hour(10), End: hour(12)})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	cases := map[string]struct {
		worker     string
		start, end int
		overlap    bool
	}{
		"inside":       {"ann@x", 10, 11, true},
		"straddling":   {"ann@x", 11, 13, true},
		"case folded":  {"ANN@x", 9, 11, true},
		"ends at":      {"ann@x", 8, 10, false},
		"starts at":    {"ann@x", 12, 13, false},
		"other worker": {"bob@x", 10, 12, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := s.CommitEvent(ctx, model.CommittedEvent{WorkerID: tc.worker, Start: hour(tc.start), End: hour(tc.end)})
			if tc.overlap {
				assert.ErrorIs(t, err, store.ErrOverlap)
				return
			}
			require.NoError(t, err)
			require.NoError(t, s.DeleteEvent(ctx, ev.ID))
		})
	}

	_, err = s.CommitEvent(ctx, model.CommittedEvent{WorkerID: "ann@x", Start: hour(12), End: hour(12)})
	assert.Error(t, err)
	assert.ErrorIs(t, s.DeleteEvent(ctx, "ghost"), store.ErrNotFound)
}

func TestListEventsFilters(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	for _, ev := range []model.CommittedEvent{
		{ID: "e1", WorkerID: "ann@x", TaskID: "t1", Start: hour(8), End: hour(9)},
		{ID: "e2", WorkerID: "bob@x", TaskID: "t1", Start: hour(9), End: hour(10)},
		{ID: "e3", WorkerID: "ann@x", TaskID: "t2", Start: hour(13), End: hour(15)},
	} {
		_, err := s.CommitEvent(ctx, ev)
		require.NoError(t, err)
	}

	ids := func(evs []model.CommittedEvent) []string {
		out := make([]string, 0, len(evs))
		for _, e := range evs {
			out = append(out, e.ID)
		}
		return out
	}

	evs, err := s.ListEvents(ctx, store.EventFilter{TaskIDs: []string{"t1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids(evs))

	evs, err = s.ListEvents(ctx, store.EventFilter{WorkerIDs: []string{"ANN@x"}, From: hour(9)})
	require.NoError(t, err)
	assert.Equal(t, []string{"e3"}, ids(evs))

	evs, err = s.ListEvents(ctx, store.EventFilter{WorkerIDs: []string{"ann@x", "bob@x"}, To: hour(10)})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids(evs))
	assert.True(t, evs[0].Start.Equal(hour(8)))

	evs, err = s.ListEvents(ctx, store.EventFilter{WorkerIDs: []string{"zed@x"}})
	require.NoError(t, err)
	assert.NotNil(t, evs)
	assert.Empty(t, evs)
}

func TestConcurrentCommitsOneWins(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	var ok, overlap atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := hour(9 + i%3)
			_, err := s.CommitEvent(ctx, model.CommittedEvent{WorkerID: "ann@x", Start: start, End: start.Add(3 * time.Hour)})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, store.ErrOverlap):
				overlap.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(9), overlap.Load())
}

func TestOpenFileReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "crew.db")
	s, err := Open(Config{Path: path, BusyTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, s.SaveWorker(context.Background(), model.Worker{Email: "ann@x"}))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: path})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	_, err = s.GetWorker(context.Background(), "ann@x")
	assert.NoError(t, err)

	_, err = Open(Config{})
	assert.Error(t, err)
}

func TestOpenAppliesPragmas(t *testing.T) {
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "crew.db"), BusyTimeout: 1500 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	var busy int
	require.NoError(t, s.db.QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 1500, busy)
	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestApplyPragmasReportsErrors(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	err = applyPragmas(db, Config{BusyTimeout: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy_timeout")
}
