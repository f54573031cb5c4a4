// Package booking commits chosen candidates: it materializes tasks for line
// items and stores calendar events without ever double-booking a worker.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/crewplan/core/events"
	"github.com/kilianp07/crewplan/core/interval"
	"github.com/kilianp07/crewplan/core/journal"
	"github.com/kilianp07/crewplan/core/logger"
	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/core/monitoring"
	"github.com/kilianp07/crewplan/core/store"
	"github.com/kilianp07/crewplan/internal/eventbus"
)

// Notifier tells a worker about a new booking. Failures never undo a commit.
type Notifier interface {
	NotifyScheduled(ctx context.Context, workerID string, res model.SchedulingResult) error
}

// CommitRequest describes the booking to perform.
type CommitRequest struct {
	Item      model.WorkItem
	WorkerID  string
	Candidate model.Candidate
	Duration  model.AdjustedDuration
}

// Transaction performs scheduling commits.
type Transaction struct {
	tasks    store.TaskStore
	events   store.EventStore
	journal  journal.Store
	notifier Notifier
	bus      *eventbus.TypedBus[events.CommitEvent]
	log      logger.Logger
	now      func() time.Time
	locks    workerLocks
}

// Option customizes a Transaction.
type Option func(*Transaction)

// WithJournal appends every attempt to j.
func WithJournal(j journal.Store) Option {
	return func(t *Transaction) {
		if j != nil {
			t.journal = j
		}
	}
}

// WithNotifier notifies workers of successful commits.
func WithNotifier(n Notifier) Option { return func(t *Transaction) { t.notifier = n } }

// WithEventBus publishes a CommitEvent per attempt.
func WithEventBus(b *eventbus.TypedBus[events.CommitEvent]) Option {
	return func(t *Transaction) { t.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Transaction) {
		if l != nil {
			t.log = l
		}
	}
}

// WithClock overrides the clock used to stamp journal records.
func WithClock(now func() time.Time) Option {
	return func(t *Transaction) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTransaction creates a Transaction over the task and event stores.
func NewTransaction(tasks store.TaskStore, evs store.EventStore, opts ...Option) *Transaction {
	t := &Transaction{
		tasks:   tasks,
		events:  evs,
		journal: journal.NopStore{},
		log:     logger.Nop{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Commit books req.Candidate for req.WorkerID. A line item first becomes a
// task, then the event is stored through a compare-and-commit against the
// worker's latest events. Commits for the same worker are serialized; a
// caller waiting for the worker gets ctx.Err() once ctx ends.
//
// The error is one of ErrInvalidCandidate, ErrConflict, ErrPersistence or a
// *PartialFailureError when the task exists without its event.
func (t *Transaction) Commit(ctx context.Context, req CommitRequest) (model.SchedulingResult, error) {
	start := time.Now()
	res, orphan, err := t.commit(ctx, req)
	t.finish(ctx, req, res, orphan, err, time.Since(start))
	return res, err
}

func (t *Transaction) commit(ctx context.Context, req CommitRequest) (model.SchedulingResult, string, error) {
	if err := validate(req); err != nil {
		return model.SchedulingResult{}, "", err
	}

	unlock, err := t.locks.Lock(ctx, req.WorkerID)
	if err != nil {
		return model.SchedulingResult{}, "", err
	}
	defer unlock()
	if err := ctx.Err(); err != nil {
		return model.SchedulingResult{}, "", err
	}

	c := req.Candidate
	current, err := t.events.ListEvents(ctx, store.EventFilter{WorkerIDs: []string{req.WorkerID}, From: c.Start, To: c.End})
	if err != nil {
		return model.SchedulingResult{}, "", fmt.Errorf("%w: list events: %v", ErrPersistence, err)
	}
	if ev, ok := interval.FirstConflict(c.Start, c.End, current); ok {
		return model.SchedulingResult{}, "", fmt.Errorf("%w: event %s %s-%s", ErrConflict, ev.ID, ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339))
	}

	var res model.SchedulingResult
	taskID := ""
	switch req.Item.Source {
	case model.SourceLineItem:
		task, err := t.tasks.CreateTask(ctx, newTask(req))
		if err != nil {
			return model.SchedulingResult{}, "", fmt.Errorf("%w: create task: %v", ErrPersistence, err)
		}
		res.Task = &task
		res.TaskCreated = true
		taskID = task.ID
	case model.SourceExistingTask:
		taskID = req.Item.Task.ID
	}

	ev, err := t.events.CommitEvent(ctx, model.CommittedEvent{
		WorkerID: req.WorkerID,
		TaskID:   taskID,
		Title:    req.Item.Title,
		Start:    c.Start,
		End:      c.End,
	})
	if err != nil {
		cause := fmt.Errorf("commit event: %w", err)
		if errors.Is(err, store.ErrOverlap) {
			cause = fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if res.TaskCreated {
			return model.SchedulingResult{}, taskID, &PartialFailureError{Task: *res.Task, Err: cause}
		}
		if errors.Is(cause, ErrConflict) {
			return model.SchedulingResult{}, "", cause
		}
		return model.SchedulingResult{}, "", fmt.Errorf("%w: %v", ErrPersistence, cause)
	}
	res.Event = ev
	return res, "", nil
}

func validate(req CommitRequest) error {
	if err := req.Item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}
	if strings.TrimSpace(req.WorkerID) == "" {
		return fmt.Errorf("%w: worker is required", ErrInvalidCandidate)
	}
	if !strings.EqualFold(req.Candidate.WorkerID, req.WorkerID) {
		return fmt.Errorf("%w: candidate belongs to %s", ErrInvalidCandidate, req.Candidate.WorkerID)
	}
	if !interval.Valid(req.Candidate.Start, req.Candidate.End) {
		return fmt.Errorf("%w: empty window", ErrInvalidCandidate)
	}
	return nil
}

func newTask(req CommitRequest) model.Task {
	li := req.Item.LineItem
	hours := req.Duration.FinalAdjustedHours
	if hours <= 0 {
		hours = req.Item.BaseEstimatedHours
	}
	return model.Task{
		ProjectID:        li.ProjectID,
		Title:            req.Item.Title,
		Description:      li.Item.Description,
		EstimatedHours:   hours,
		Assignees:        []string{req.WorkerID},
		Status:           model.TaskNotStarted,
		Priority:         req.Item.Priority,
		SourceLineItemID: li.Item.ID,
	}
}

// Outcome classifies a commit error for journals and metrics.
func Outcome(err error) journal.Outcome {
	var pf *PartialFailureError
	switch {
	case err == nil:
		return journal.OutcomeCommitted
	case errors.As(err, &pf):
		return journal.OutcomePartialFailure
	case errors.Is(err, ErrConflict):
		return journal.OutcomeConflict
	case errors.Is(err, ErrInvalidCandidate):
		return journal.OutcomeInvalidCandidate
	case errors.Is(err, ErrWorkerNotAuthorized):
		return journal.OutcomeNotAuthorized
	default:
		return journal.OutcomePersistence
	}
}

// Record journals, measures and publishes a commit attempt that was decided
// before reaching the stores, such as an authorization refusal.
func (t *Transaction) Record(ctx context.Context, req CommitRequest, err error) {
	t.finish(ctx, req, model.SchedulingResult{}, "", err, 0)
}

func (t *Transaction) finish(ctx context.Context, req CommitRequest, res model.SchedulingResult, orphan string, err error, latency time.Duration) {
	outcome := Outcome(err)
	commitsTotal.WithLabelValues(string(outcome)).Inc()
	commitLatency.Observe(latency.Seconds())

	rec := journal.Record{
		Timestamp:    t.now(),
		WorkItemID:   req.Item.ID,
		Source:       req.Item.Source.String(),
		WorkerID:     req.WorkerID,
		Start:        req.Candidate.Start,
		End:          req.Candidate.End,
		FinalHours:   req.Duration.FinalAdjustedHours,
		Unadjusted:   req.Duration.Unadjusted,
		Outcome:      outcome,
		OrphanTaskID: orphan,
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.EventID = res.Event.ID
		rec.TaskID = res.Event.TaskID
		rec.TaskCreated = res.TaskCreated
	}
	if jerr := t.journal.Append(context.WithoutCancel(ctx), rec); jerr != nil {
		t.log.Errorf("journal append: %v", jerr)
	}

	fields := map[string]any{
		"work_item": req.Item.ID,
		"worker":    req.WorkerID,
		"outcome":   string(outcome),
	}
	switch outcome {
	case journal.OutcomeCommitted:
		t.log.Infof("booked %s for %s at %s", req.Item.ID, req.WorkerID, req.Candidate.Start.Format(time.RFC3339))
		if t.notifier != nil {
			if nerr := t.notifier.NotifyScheduled(context.WithoutCancel(ctx), req.WorkerID, res); nerr != nil {
				t.log.Warnf("notify %s: %v", req.WorkerID, nerr)
			}
		}
	case journal.OutcomePartialFailure:
		orphanTasks.Inc()
		fields["orphan_task"] = orphan
		t.log.Warnw("task created without event", fields)
		monitoring.CaptureError(err, map[string]string{"worker": req.WorkerID, "work_item": req.Item.ID, "orphan_task": orphan})
	case journal.OutcomePersistence:
		t.log.Warnw("commit failed", fields)
		monitoring.CaptureError(err, map[string]string{"worker": req.WorkerID, "work_item": req.Item.ID})
	default:
		t.log.Debugw("commit refused", fields)
	}

	t.bus.Publish(events.CommitEvent{
		WorkItemID:   req.Item.ID,
		Source:       req.Item.Source.String(),
		WorkerID:     req.WorkerID,
		Outcome:      string(outcome),
		Hours:        req.Duration.FinalAdjustedHours,
		Result:       res,
		Err:          err,
		OrphanTaskID: orphan,
		Latency:      latency,
		Time:         rec.Timestamp,
	})
}
