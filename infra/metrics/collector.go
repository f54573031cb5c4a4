package metrics

import (
	"context"

	"github.com/kilianp07/crewplan/core/events"
	coremetrics "github.com/kilianp07/crewplan/core/metrics"
	"github.com/kilianp07/crewplan/internal/eventbus"
)

// Buses groups the event buses the collector listens to. Nil buses are skipped.
type Buses struct {
	Commits     *eventbus.TypedBus[events.CommitEvent]
	Searches    *eventbus.TypedBus[events.SearchEvent]
	Estimations *eventbus.TypedBus[events.EstimationEvent]
}

// StartEventCollector subscribes to the buses and records each event in sink.
// It stops when the context is canceled.
func StartEventCollector(ctx context.Context, b Buses, sink coremetrics.MetricsSink) {
	if sink == nil {
		return
	}
	if b.Commits != nil {
		sub := b.Commits.Subscribe()
		go consume(ctx, b.Commits, sub, func(e events.CommitEvent) {
			_ = sink.RecordCommit(coremetrics.CommitRecord{
				WorkItemID:  e.WorkItemID,
				WorkerID:    e.WorkerID,
				Source:      e.Source,
				Outcome:     e.Outcome,
				Hours:       e.Hours,
				Start:       e.Result.Event.Start,
				TaskCreated: e.Result.TaskCreated,
				Latency:     e.Latency,
				Time:        e.Time,
			})
		})
	}
	if r, ok := sink.(coremetrics.SearchRecorder); ok && b.Searches != nil {
		sub := b.Searches.Subscribe()
		go consume(ctx, b.Searches, sub, func(e events.SearchEvent) {
			_ = r.RecordSearch(coremetrics.SearchRecord{
				WorkItemID:             e.WorkItemID,
				WorkerID:               e.WorkerID,
				Candidates:             e.Candidates,
				ConflictDataIncomplete: e.ConflictDataIncomplete,
				Unadjusted:             e.Unadjusted,
				Latency:                e.Latency,
				Time:                   e.Time,
			})
		})
	}
	if r, ok := sink.(coremetrics.EstimationRecorder); ok && b.Estimations != nil {
		sub := b.Estimations.Subscribe()
		go consume(ctx, b.Estimations, sub, func(e events.EstimationEvent) {
			_ = r.RecordEstimation(coremetrics.EstimationRecord{
				WorkItemID: e.WorkItemID,
				Workers:    len(e.Workers),
				BaseHours:  e.BaseHours,
				FinalHours: e.FinalHours,
				Degraded:   e.Degraded,
				Time:       e.Time,
			})
		})
	}
}

func consume[T any](ctx context.Context, bus *eventbus.TypedBus[T], sub <-chan T, record func(T)) {
	defer bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			record(ev)
		}
	}
}
