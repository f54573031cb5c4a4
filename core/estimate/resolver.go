package estimate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/crewplan/core/events"
	"github.com/kilianp07/crewplan/core/logger"
	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/internal/eventbus"
)

// Resolver produces AdjustedDurations for work items.
type Resolver struct {
	cfg      Config
	taskTime TaskTimeEstimator
	workers  WorkerLookup
	log      logger.Logger
	bus      *eventbus.TypedBus[events.EstimationEvent]
	now      func() time.Time
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// WithEventBus publishes an EstimationEvent for every resolution.
func WithEventBus(b *eventbus.TypedBus[events.EstimationEvent]) Option {
	return func(r *Resolver) { r.bus = b }
}

// WithClock overrides the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a Resolver. taskTime may be nil, in which case every
// resolution is degraded. workers may be nil; crews are then built from
// identities only, without hourly cost.
func NewResolver(cfg Config, taskTime TaskTimeEstimator, workers WorkerLookup, opts ...Option) *Resolver {
	cfg.SetDefaults()
	r := &Resolver{
		cfg:      cfg,
		taskTime: taskTime,
		workers:  workers,
		log:      logger.Nop{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// DefaultMode returns the configured parallelization mode.
func (r *Resolver) DefaultMode() model.ParallelizationMode { return r.cfg.Mode() }

// Resolve computes the duration of item for the given crew. Estimation
// failures are recovered: the base estimate is returned with Unadjusted set
// and a nil error. Cancellation of ctx is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, item model.WorkItem, workerIDs []string, mode model.ParallelizationMode) (model.AdjustedDuration, error) {
	ids := dedupe(workerIDs)
	if len(ids) == 0 {
		return model.AdjustedDuration{}, ErrNoWorkers
	}
	if item.BaseEstimatedHours <= 0 {
		return model.AdjustedDuration{}, fmt.Errorf("%w: %s", ErrInvalidHours, item.ID)
	}
	crew, err := r.crew(ctx, ids)
	if err != nil {
		return model.AdjustedDuration{}, err
	}

	req := TaskTimeRequest{
		EstimatedHours:  item.BaseEstimatedHours,
		AssignedWorkers: crew,
		TaskType:        taskType(item),
		Mode:            mode,
	}
	if r.cfg.BusinessAddress != "" && item.ProjectAddress != "" {
		req.BusinessAddress = r.cfg.BusinessAddress
		req.ProjectAddress = item.ProjectAddress
	}

	if r.taskTime == nil {
		return r.degrade(item, ids, mode, ErrEstimationUnavailable), nil
	}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	start := time.Now()
	est, err := r.taskTime.EstimateTaskTime(cctx, req)
	estimationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return model.AdjustedDuration{}, ctx.Err()
		}
		return r.degrade(item, ids, mode, err), nil
	}
	if est.FinalAdjustedHours <= 0 {
		return r.degrade(item, ids, mode, fmt.Errorf("%w: incomplete estimate", ErrEstimationUnavailable)), nil
	}

	count := est.AssignedUsersCount
	if count <= 0 {
		count = len(ids)
	}
	factor := est.ParallelizationFactor
	if factor <= 0 {
		factor = 1
	}
	d := model.AdjustedDuration{
		BaseHours:             item.BaseEstimatedHours,
		DriveRoundTripMinutes: est.DriveTimeMinutes,
		AssignedWorkerCount:   count,
		ParallelizationFactor: factor,
		FinalAdjustedHours:    est.FinalAdjustedHours,
		Cost:                  est.CostAnalysis,
		Mode:                  mode,
		Workers:               ids,
	}
	estimationsTotal.WithLabelValues("adjusted").Inc()
	r.log.Debugw("duration resolved", map[string]any{
		"work_item":   item.ID,
		"workers":     len(ids),
		"final_hours": d.FinalAdjustedHours,
	})
	r.bus.Publish(events.EstimationEvent{
		WorkItemID: item.ID,
		Workers:    ids,
		BaseHours:  d.BaseHours,
		FinalHours: d.FinalAdjustedHours,
		Time:       r.now(),
	})
	return d, nil
}

func (r *Resolver) degrade(item model.WorkItem, ids []string, mode model.ParallelizationMode, cause error) model.AdjustedDuration {
	if !errors.Is(cause, ErrEstimationUnavailable) {
		cause = fmt.Errorf("%w: %v", ErrEstimationUnavailable, cause)
	}
	estimationsTotal.WithLabelValues("degraded").Inc()
	r.log.Warnw("task time estimation unavailable, using base estimate", map[string]any{
		"work_item": item.ID,
		"error":     cause.Error(),
	})
	d := model.UnadjustedDuration(item.BaseEstimatedHours, ids, mode)
	r.bus.Publish(events.EstimationEvent{
		WorkItemID: item.ID,
		Workers:    ids,
		BaseHours:  d.BaseHours,
		FinalHours: d.FinalAdjustedHours,
		Degraded:   true,
		Err:        cause,
		Time:       r.now(),
	})
	return d
}

func (r *Resolver) crew(ctx context.Context, ids []string) ([]model.Worker, error) {
	crew := make([]model.Worker, 0, len(ids))
	for _, id := range ids {
		if r.workers == nil {
			crew = append(crew, model.Worker{Email: id})
			continue
		}
		w, err := r.workers.GetWorker(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get worker %s: %w", id, err)
		}
		crew = append(crew, w)
	}
	return crew, nil
}

func taskType(item model.WorkItem) string {
	if item.RequiredSkill != "" {
		return item.RequiredSkill
	}
	return "general"
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		k := strings.ToLower(id)
		if id == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, id)
	}
	return out
}
