// Package planner runs a scheduling session: it builds the catalog, resolves
// durations, searches slots and commits the chosen candidate, keeping the
// state that ties those steps together.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/crewplan/core/booking"
	"github.com/kilianp07/crewplan/core/catalog"
	"github.com/kilianp07/crewplan/core/events"
	"github.com/kilianp07/crewplan/core/logger"
	coremetrics "github.com/kilianp07/crewplan/core/metrics"
	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/core/scheduler"
	"github.com/kilianp07/crewplan/core/store"
	"github.com/kilianp07/crewplan/internal/eventbus"
)

var (
	// ErrUnknownWorkItem is returned for ids absent from the session catalog.
	ErrUnknownWorkItem = errors.New("unknown work item")
	// ErrStaleDuration is returned when a duration is not the one the session
	// last resolved for the item and crew. Resolve again.
	ErrStaleDuration = errors.New("duration resolved for a different crew")
)

// DurationResolver computes adjusted durations. *estimate.Resolver implements it.
type DurationResolver interface {
	Resolve(ctx context.Context, item model.WorkItem, workerIDs []string, mode model.ParallelizationMode) (model.AdjustedDuration, error)
	DefaultMode() model.ParallelizationMode
}

// Committer books candidates. *booking.Transaction implements it.
type Committer interface {
	Commit(ctx context.Context, req booking.CommitRequest) (model.SchedulingResult, error)
	Record(ctx context.Context, req booking.CommitRequest, err error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Catalog   *catalog.Builder
	Resolver  DurationResolver
	Scheduler *scheduler.Scheduler
	Events    store.EventStore
	Workers   store.WorkerStore
	Booking   Committer
}

// WorkerSlots are the candidates found for one worker.
type WorkerSlots struct {
	WorkerID               string            `json:"worker_id"`
	Candidates             []model.Candidate `json:"candidates"`
	ConflictDataIncomplete bool              `json:"conflict_data_incomplete"`
}

// SearchResult groups the per-worker candidates of a search. Candidates of
// different workers are independent alternatives.
type SearchResult struct {
	WorkItemID             string                 `json:"work_item_id"`
	Duration               model.AdjustedDuration `json:"duration"`
	Workers                []WorkerSlots          `json:"workers"`
	ConflictDataIncomplete bool                   `json:"conflict_data_incomplete"`
}

// Total returns the number of candidates across workers.
func (r SearchResult) Total() int {
	n := 0
	for _, w := range r.Workers {
		n += len(w.Candidates)
	}
	return n
}

type slotKey struct {
	item   string
	worker string
}

func keyOf(item, worker string) slotKey {
	return slotKey{item: item, worker: strings.ToLower(worker)}
}

// slotSet is the outcome of a search for one worker together with the
// duration the windows were sized for.
type slotSet struct {
	duration   model.AdjustedDuration
	candidates []model.Candidate
}

// Planner is one scheduling session. It is safe for concurrent use, but
// candidates are only valid for the session that computed them.
type Planner struct {
	deps     Deps
	log      logger.Logger
	bus      *eventbus.TypedBus[events.SearchEvent]
	recorder coremetrics.CatalogSizeRecorder
	now      func() time.Time

	mu         sync.Mutex
	cat        *catalog.Catalog
	durations  map[string]model.AdjustedDuration
	candidates map[slotKey]slotSet
}

// Option customizes a Planner.
type Option func(*Planner)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.log = l
		}
	}
}

// WithEventBus publishes a SearchEvent per worker search.
func WithEventBus(b *eventbus.TypedBus[events.SearchEvent]) Option {
	return func(p *Planner) { p.bus = b }
}

// WithCatalogRecorder reports the catalog size after every build.
func WithCatalogRecorder(r coremetrics.CatalogSizeRecorder) Option {
	return func(p *Planner) { p.recorder = r }
}

// WithClock sets the clock that decides which windows are in the future.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a session over deps.
func New(deps Deps, opts ...Option) *Planner {
	p := &Planner{
		deps:       deps,
		log:        logger.Nop{},
		now:        time.Now,
		durations:  make(map[string]model.AdjustedDuration),
		candidates: make(map[slotKey]slotSet),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Catalog rebuilds the session catalog and forgets earlier candidates. A
// retrieval fault is reported through Catalog.Err.
func (p *Planner) Catalog(ctx context.Context) catalog.Catalog {
	cat := p.deps.Catalog.Build(ctx)
	catalogItems.Set(float64(len(cat.Items)))
	if p.recorder != nil && cat.Err == nil {
		if err := p.recorder.RecordCatalogSize(len(cat.Items)); err != nil {
			p.log.Warnf("record catalog size: %v", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cat = &cat
	p.durations = make(map[string]model.AdjustedDuration)
	p.candidates = make(map[slotKey]slotSet)
	return cat
}

func (p *Planner) item(ctx context.Context, id string) (model.WorkItem, catalog.Catalog, error) {
	p.mu.Lock()
	cat := p.cat
	p.mu.Unlock()
	if cat == nil {
		c := p.Catalog(ctx)
		cat = &c
	}
	if cat.Err != nil {
		return model.WorkItem{}, *cat, cat.Err
	}
	it, ok := cat.Find(id)
	if !ok {
		return model.WorkItem{}, *cat, fmt.Errorf("%w: %s", ErrUnknownWorkItem, id)
	}
	return it, *cat, nil
}

// DefaultMode returns the parallelization mode used when callers have no preference.
func (p *Planner) DefaultMode() model.ParallelizationMode {
	return p.deps.Resolver.DefaultMode()
}

// Resolve computes the adjusted duration of itemID for the crew. A duration
// that differs from the previous one invalidates the item's candidates.
func (p *Planner) Resolve(ctx context.Context, itemID string, workerIDs []string, mode model.ParallelizationMode) (model.AdjustedDuration, error) {
	it, _, err := p.item(ctx, itemID)
	if err != nil {
		return model.AdjustedDuration{}, err
	}
	d, err := p.deps.Resolver.Resolve(ctx, it, workerIDs, mode)
	if err != nil {
		return model.AdjustedDuration{}, err
	}
	p.mu.Lock()
	if prev, ok := p.durations[itemID]; !ok || !prev.Equal(d) {
		p.dropCandidatesLocked(itemID)
	}
	p.durations[itemID] = d
	p.mu.Unlock()
	return d, nil
}

func (p *Planner) dropCandidatesLocked(itemID string) {
	for k := range p.candidates {
		if k.item == itemID {
			delete(p.candidates, k)
		}
	}
}

// Search lists candidate windows of itemID for each worker. d must be the
// duration this session last resolved for itemID, for exactly workerIDs. A
// worker whose events cannot be loaded is searched as if free and flagged
// ConflictDataIncomplete. When no worker has a candidate the result is
// returned with scheduler.ErrNoFeasibleSlot.
func (p *Planner) Search(ctx context.Context, itemID string, workerIDs []string, d model.AdjustedDuration) (SearchResult, error) {
	if !d.SameWorkers(workerIDs) {
		return SearchResult{}, ErrStaleDuration
	}
	if _, _, err := p.item(ctx, itemID); err != nil {
		return SearchResult{}, err
	}
	p.mu.Lock()
	resolved, ok := p.durations[itemID]
	p.mu.Unlock()
	if !ok || !resolved.Equal(d) {
		return SearchResult{}, fmt.Errorf("%w: %s was not resolved with these figures", ErrStaleDuration, itemID)
	}

	now := p.now()
	horizon := time.Duration(p.deps.Scheduler.Config().HorizonDays+1) * 24 * time.Hour
	incomplete := make([]bool, len(workerIDs))
	reqs := make([]scheduler.Request, len(workerIDs))
	for i, w := range workerIDs {
		evs, err := p.deps.Events.ListEvents(ctx, store.EventFilter{
			WorkerIDs: []string{w},
			From:      now,
			To:        now.Add(horizon),
		})
		if err != nil {
			if ctx.Err() != nil {
				return SearchResult{}, ctx.Err()
			}
			p.log.Warnw("worker events unavailable, searching without conflicts", map[string]any{
				"worker": w,
				"error":  err.Error(),
			})
			evs = nil
			incomplete[i] = true
		}
		reqs[i] = scheduler.Request{WorkerID: w, Events: evs, Hours: d.FinalAdjustedHours}
	}

	start := time.Now()
	results := p.deps.Scheduler.SearchAll(ctx, now, reqs)
	latency := time.Since(start)

	res := SearchResult{WorkItemID: itemID, Duration: d, Workers: make([]WorkerSlots, 0, len(results))}
	p.mu.Lock()
	for i, r := range results {
		if r.Err != nil {
			p.mu.Unlock()
			return SearchResult{}, r.Err
		}
		p.candidates[keyOf(itemID, r.WorkerID)] = slotSet{duration: d, candidates: r.Candidates}
		res.Workers = append(res.Workers, WorkerSlots{
			WorkerID:               r.WorkerID,
			Candidates:             r.Candidates,
			ConflictDataIncomplete: incomplete[i],
		})
		res.ConflictDataIncomplete = res.ConflictDataIncomplete || incomplete[i]
	}
	p.mu.Unlock()

	for _, w := range res.Workers {
		outcome := "found"
		if len(w.Candidates) == 0 {
			outcome = "none"
		}
		searchesTotal.WithLabelValues(outcome, fmt.Sprint(w.ConflictDataIncomplete)).Inc()
		candidatesReturned.Observe(float64(len(w.Candidates)))
		p.bus.Publish(events.SearchEvent{
			WorkItemID:             itemID,
			WorkerID:               w.WorkerID,
			Candidates:             len(w.Candidates),
			ConflictDataIncomplete: w.ConflictDataIncomplete,
			Unadjusted:             d.Unadjusted,
			Latency:                latency,
			Time:                   now,
		})
	}
	p.log.Debugw("slot search done", map[string]any{
		"work_item":  itemID,
		"workers":    len(workerIDs),
		"candidates": res.Total(),
		"hours":      d.SlotHours(),
	})
	if res.Total() == 0 {
		return res, scheduler.ErrNoFeasibleSlot
	}
	return res, nil
}

// Commit books candidate for workerID. The candidate must come from the
// session's latest search for that item and worker. After a successful
// commit the catalog is rebuilt on next use; after a conflict the worker's
// candidates are dropped and the caller must search again.
func (p *Planner) Commit(ctx context.Context, itemID, workerID string, candidate model.Candidate) (model.SchedulingResult, error) {
	it, cat, err := p.item(ctx, itemID)
	if err != nil {
		return model.SchedulingResult{}, err
	}

	p.mu.Lock()
	set, searched := p.candidates[keyOf(itemID, workerID)]
	current, hasDuration := p.durations[itemID]
	p.mu.Unlock()

	d := set.duration
	if !searched {
		d = current
	}
	req := booking.CommitRequest{Item: it, WorkerID: workerID, Candidate: candidate, Duration: d}
	if !searched || !contains(set.candidates, candidate) {
		err := fmt.Errorf("%w: not in the latest search for %s", booking.ErrInvalidCandidate, workerID)
		p.deps.Booking.Record(ctx, req, err)
		return model.SchedulingResult{}, err
	}
	if !hasDuration || !current.Equal(d) {
		err := fmt.Errorf("%w: %w", booking.ErrInvalidCandidate, ErrStaleDuration)
		p.deps.Booking.Record(ctx, req, err)
		return model.SchedulingResult{}, err
	}
	if err := p.authorize(ctx, cat, it, workerID); err != nil {
		p.deps.Booking.Record(ctx, req, err)
		return model.SchedulingResult{}, err
	}

	res, err := p.deps.Booking.Commit(ctx, req)
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case err == nil:
		p.cat = nil
		p.candidates = make(map[slotKey]slotSet)
	case errors.Is(err, booking.ErrConflict):
		delete(p.candidates, keyOf(itemID, workerID))
	default:
		var pf *booking.PartialFailureError
		if errors.As(err, &pf) {
			p.cat = nil
		}
	}
	return res, err
}

func (p *Planner) authorize(ctx context.Context, cat catalog.Catalog, it model.WorkItem, workerID string) error {
	if p.deps.Workers != nil {
		w, err := p.deps.Workers.GetWorker(ctx, workerID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("%w: unknown worker %s", booking.ErrWorkerNotAuthorized, workerID)
		case err != nil:
			return fmt.Errorf("%w: get worker %s: %v", booking.ErrPersistence, workerID, err)
		case !w.CanPerform(it.RequiredSkill):
			return fmt.Errorf("%w: %s lacks skill %q", booking.ErrWorkerNotAuthorized, workerID, it.RequiredSkill)
		}
	}
	if it.Source == model.SourceExistingTask && len(it.Task.Assignees) > 0 {
		for _, a := range cat.RemainingAssignees(it) {
			if strings.EqualFold(a, workerID) {
				return nil
			}
		}
		return fmt.Errorf("%w: %s is not a remaining assignee of task %s", booking.ErrWorkerNotAuthorized, workerID, it.Task.ID)
	}
	return nil
}

func contains(cands []model.Candidate, c model.Candidate) bool {
	for _, x := range cands {
		if x.Same(c) {
			return true
		}
	}
	return false
}
