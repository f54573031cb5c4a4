package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewplan/core/events"
	"github.com/kilianp07/crewplan/core/journal"
	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/core/monitoring"
	"github.com/kilianp07/crewplan/core/store"
	"github.com/kilianp07/crewplan/internal/eventbus"
)

func at(h int) time.Time {
	return time.Date(2025, 3, 4, h, 0, 0, 0, time.UTC)
}

type memJournal struct {
	mu   sync.Mutex
	recs []journal.Record
}

func (j *memJournal) Append(_ context.Context, r journal.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, r)
	return nil
}

func (j *memJournal) Query(context.Context, journal.Query) ([]journal.Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Record(nil), j.recs...), nil
}

func (j *memJournal) Close() error { return nil }

type notifierStub struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *notifierStub) NotifyScheduled(_ context.Context, workerID string, _ model.SchedulingResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, workerID)
	return n.err
}

// brokenEvents lists nothing and fails every commit with err.
type brokenEvents struct {
	store.EventStore
	err error
}

func (b brokenEvents) ListEvents(context.Context, store.EventFilter) ([]model.CommittedEvent, error) {
	return nil, nil
}

func (b brokenEvents) CommitEvent(context.Context, model.CommittedEvent) (model.CommittedEvent, error) {
	return model.CommittedEvent{}, b.err
}

type captured struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (c *captured) CaptureError(err error, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
	c.tags = append(c.tags, tags)
}

func (c *captured) Flush(time.Duration) bool { return true }

func lineItemRequest(worker string, start, end int) CommitRequest {
	item := model.NewLineItemWork(
		model.Project{ID: "p1", Name: "Kitchen", Status: model.ProjectActive, SiteAddress: "1 Main St"},
		model.LineItem{ID: "li1", Type: model.LineItemLabor, Description: "Hang drywall", Hours: 2, Quantity: 2},
	)
	return CommitRequest{
		Item:      item,
		WorkerID:  worker,
		Candidate: model.Candidate{WorkerID: worker, Start: at(start), End: at(end), TotalHoursRequired: float64(end - start)},
		Duration:  model.AdjustedDuration{BaseHours: 4, FinalAdjustedHours: 3, ParallelizationFactor: 1.8, AssignedWorkerCount: 2},
	}
}

func setup(t *testing.T, opts ...Option) (*Transaction, *store.MemoryStore) {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	s := store.NewMemoryStore()
	return NewTransaction(s, s, opts...), s
}

func TestCommit_LineItemCreatesTaskAndEvent(t *testing.T) {
	j := &memJournal{}
	n := &notifierStub{}
	bus := eventbus.NewTyped[events.CommitEvent]()
	sub := bus.Subscribe()
	tx, s := setup(t, WithJournal(j), WithNotifier(n), WithEventBus(bus))

	res, err := tx.Commit(context.Background(), lineItemRequest("ann@x", 8, 11))
	require.NoError(t, err)

	require.True(t, res.TaskCreated)
	require.NotNil(t, res.Task)
	assert.NotEmpty(t, res.Task.ID)
	assert.Equal(t, "p1", res.Task.ProjectID)
	assert.Equal(t, "Hang drywall", res.Task.Title)
	assert.Equal(t, 3.0, res.Task.EstimatedHours)
	assert.Equal(t, []string{"ann@x"}, res.Task.Assignees)
	assert.Equal(t, model.TaskNotStarted, res.Task.Status)
	assert.Equal(t, "li1", res.Task.SourceLineItemID)

	assert.Equal(t, res.Task.ID, res.Event.TaskID)
	assert.Equal(t, "ann@x", res.Event.WorkerID)
	assert.Equal(t, at(8), res.Event.Start)
	assert.Equal(t, at(11), res.Event.End)

	stored, err := s.ListEvents(context.Background(), store.EventFilter{TaskIDs: []string{res.Task.ID}})
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	require.Len(t, j.recs, 1)
	assert.Equal(t, journal.OutcomeCommitted, j.recs[0].Outcome)
	assert.Equal(t, res.Event.ID, j.recs[0].EventID)
	assert.True(t, j.recs[0].TaskCreated)
	assert.Equal(t, []string{"ann@x"}, n.calls)

	select {
	case ev := <-sub:
		assert.Equal(t, string(journal.OutcomeCommitted), ev.Outcome)
		assert.NoError(t, ev.Err)
		assert.Equal(t, res.Event.ID, ev.Result.Event.ID)
	case <-time.After(time.Second):
		t.Fatal("commit event not published")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(commitsTotal.WithLabelValues("committed")))
}

func TestCommit_ExistingTaskOnlyAddsEvent(t *testing.T) {
	tx, s := setup(t)
	ctx := context.Background()
	task, err := s.CreateTask(ctx, model.Task{ProjectID: "p1", Title: "Paint", EstimatedHours: 4, Assignees: []string{"ann@x", "bob@x"}})
	require.NoError(t, err)

	res, err := tx.Commit(ctx, CommitRequest{
		Item:      model.NewTaskWork(task, ""),
		WorkerID:  "bob@x",
		Candidate: model.Candidate{WorkerID: "bob@x", Start: at(13), End: at(17)},
		Duration:  model.AdjustedDuration{FinalAdjustedHours: 4},
	})
	require.NoError(t, err)
	assert.False(t, res.TaskCreated)
	assert.Nil(t, res.Task)
	assert.Equal(t, task.ID, res.Event.TaskID)

	after, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, after)
	tasks, err := s.ListTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestCommit_InvalidCandidate(t *testing.T) {
	tx, s := setup(t)
	ctx := context.Background()

	req := lineItemRequest("ann@x", 8, 10)
	req.Candidate.WorkerID = "bob@x"
	_, err := tx.Commit(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidCandidate)

	req = lineItemRequest("ann@x", 10, 10)
	_, err = tx.Commit(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidCandidate)

	req = lineItemRequest("ann@x", 8, 10)
	req.Item.LineItem = nil
	_, err = tx.Commit(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidCandidate)

	tasks, err := s.ListTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestCommit_ConflictNothingWritten(t *testing.T) {
	j := &memJournal{}
	tx, s := setup(t, WithJournal(j))
	ctx := context.Background()
	_, err := s.CommitEvent(ctx, model.CommittedEvent{WorkerID: "ann@x", Start: at(10), End: at(12)})
	require.NoError(t, err)

	_, err = tx.Commit(ctx, lineItemRequest("ann@x", 9, 11))
	assert.ErrorIs(t, err, ErrConflict)

	tasks, err := s.ListTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks, "no task is created for a conflicting candidate")
	require.Len(t, j.recs, 1)
	assert.Equal(t, journal.OutcomeConflict, j.recs[0].Outcome)
	assert.NotEmpty(t, j.recs[0].Error)

	// back-to-back is allowed
	_, err = tx.Commit(ctx, lineItemRequest("ann@x", 12, 14))
	assert.NoError(t, err)
}

func TestCommit_ConcurrentOverlapExactlyOneWins(t *testing.T) {
	tx, s := setup(t)
	ctx := context.Background()
	task, err := s.CreateTask(ctx, model.Task{ProjectID: "p1", Title: "Tile", EstimatedHours: 2, Assignees: []string{"ann@x"}})
	require.NoError(t, err)

	const sessions = 8
	var wg sync.WaitGroup
	errs := make([]error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := 9 + i%2
			_, errs[i] = tx.Commit(ctx, CommitRequest{
				Item:      model.NewTaskWork(task, ""),
				WorkerID:  "ann@x",
				Candidate: model.Candidate{WorkerID: "ann@x", Start: at(start), End: at(start + 2)},
				Duration:  model.AdjustedDuration{FinalAdjustedHours: 2},
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, ok)
	evs, err := s.ListEvents(ctx, store.EventFilter{WorkerIDs: []string{"ann@x"}})
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestCommit_StoreOverlapMapsToConflict(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	s := store.NewMemoryStore()
	tx := NewTransaction(s, brokenEvents{err: store.ErrOverlap})
	task, err := s.CreateTask(context.Background(), model.Task{Title: "x", EstimatedHours: 1, Assignees: []string{"ann@x"}})
	require.NoError(t, err)

	_, err = tx.Commit(context.Background(), CommitRequest{
		Item:      model.NewTaskWork(task, ""),
		WorkerID:  "ann@x",
		Candidate: model.Candidate{WorkerID: "ann@x", Start: at(8), End: at(9)},
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrPersistence)
}

func TestCommit_ExistingTaskPersistenceFailure(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	s := store.NewMemoryStore()
	tx := NewTransaction(s, brokenEvents{err: errors.New("disk full")})
	task, err := s.CreateTask(context.Background(), model.Task{Title: "x", EstimatedHours: 1, Assignees: []string{"ann@x"}})
	require.NoError(t, err)

	_, err = tx.Commit(context.Background(), CommitRequest{
		Item:      model.NewTaskWork(task, ""),
		WorkerID:  "ann@x",
		Candidate: model.Candidate{WorkerID: "ann@x", Start: at(8), End: at(9)},
	})
	assert.ErrorIs(t, err, ErrPersistence)
	var pf *PartialFailureError
	assert.False(t, errors.As(err, &pf))
}

func TestCommit_PartialFailureReportsOrphan(t *testing.T) {
	rep := &captured{}
	monitoring.SetReporter(rep)
	t.Cleanup(func() { monitoring.SetReporter(nil) })

	ResetMetrics(prometheus.NewRegistry())
	j := &memJournal{}
	n := &notifierStub{}
	s := store.NewMemoryStore()
	tx := NewTransaction(s, brokenEvents{err: errors.New("calendar offline")}, WithJournal(j), WithNotifier(n))

	_, err := tx.Commit(context.Background(), lineItemRequest("ann@x", 8, 11))
	require.Error(t, err)

	var pf *PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotEmpty(t, pf.Task.ID)

	orphan, gerr := s.GetTask(context.Background(), pf.Task.ID)
	require.NoError(t, gerr, "the orphaned task is kept")
	assert.Equal(t, "li1", orphan.SourceLineItemID)

	require.Len(t, j.recs, 1)
	assert.Equal(t, journal.OutcomePartialFailure, j.recs[0].Outcome)
	assert.Equal(t, pf.Task.ID, j.recs[0].OrphanTaskID)
	assert.Empty(t, n.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(orphanTasks))
	require.Len(t, rep.errs, 1)
	assert.Equal(t, pf.Task.ID, rep.tags[0]["orphan_task"])
}

func TestCommit_NotifierFailureKeepsCommit(t *testing.T) {
	n := &notifierStub{err: errors.New("broker down")}
	tx, _ := setup(t, WithNotifier(n))
	_, err := tx.Commit(context.Background(), lineItemRequest("ann@x", 8, 10))
	assert.NoError(t, err)
	assert.Len(t, n.calls, 1)
}

func TestCommit_CancelledContext(t *testing.T) {
	tx, s := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tx.Commit(ctx, lineItemRequest("ann@x", 8, 10))
	assert.ErrorIs(t, err, context.Canceled)
	tasks, _ := s.ListTasks(context.Background(), store.TaskFilter{})
	assert.Empty(t, tasks)
}

func TestRecordJournalsRefusal(t *testing.T) {
	j := &memJournal{}
	clock := func() time.Time { return at(7) }
	tx, _ := setup(t, WithJournal(j), WithClock(clock))
	tx.Record(context.Background(), lineItemRequest("ann@x", 8, 10), ErrWorkerNotAuthorized)
	require.Len(t, j.recs, 1)
	assert.Equal(t, journal.OutcomeNotAuthorized, j.recs[0].Outcome)
	assert.Equal(t, at(7), j.recs[0].Timestamp)
}

func TestOutcome(t *testing.T) {
	cases := map[string]struct {
		err  error
		want journal.Outcome
	}{
		"nil":       {nil, journal.OutcomeCommitted},
		"conflict":  {ErrConflict, journal.OutcomeConflict},
		"invalid":   {ErrInvalidCandidate, journal.OutcomeInvalidCandidate},
		"auth":      {ErrWorkerNotAuthorized, journal.OutcomeNotAuthorized},
		"partial":   {&PartialFailureError{Err: errors.New("x")}, journal.OutcomePartialFailure},
		"persist":   {ErrPersistence, journal.OutcomePersistence},
		"cancelled": {context.Canceled, journal.OutcomePersistence},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Outcome(tc.err))
		})
	}
}

func TestWorkerLocksReleased(t *testing.T) {
	var l workerLocks
	ctx := context.Background()
	unlock, err := l.Lock(ctx, "Ann@x")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		release, err := l.Lock(ctx, "ann@X")
		if err == nil {
			release()
		}
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("same worker must wait")
	case <-time.After(20 * time.Millisecond):
	}
	release, err := l.Lock(ctx, "bob@x")
	require.NoError(t, err)
	release()
	unlock()
	<-done
	assert.Empty(t, l.locks)
}

func TestWorkerLocksGiveUpOnContext(t *testing.T) {
	var l workerLocks
	unlock, err := l.Lock(context.Background(), "ann@x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "ann@x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Empty(t, l.locks)
}

func TestCommit_AbandonedWhileWorkerBusy(t *testing.T) {
	tx, s := setup(t)
	unlock, err := tx.locks.Lock(context.Background(), "ann@x")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tx.Commit(ctx, lineItemRequest("ann@x", 9, 12))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	tasks, err := s.ListTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
