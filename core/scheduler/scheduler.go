package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/crewplan/core/interval"
	"github.com/kilianp07/crewplan/core/model"
)

// ErrNoFeasibleSlot is reported when a search exhausts the horizon without
// finding a single candidate. It is not fatal.
var ErrNoFeasibleSlot = errors.New("no feasible slot in horizon")

// Scheduler enumerates candidate windows.
type Scheduler struct {
	cfg Config
	loc *time.Location
}

// New validates cfg and returns a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg, loc: loc}, nil
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// WindowHours converts an adjusted duration into whole calendar hours.
func WindowHours(hours float64) int {
	h := int(math.Ceil(hours - 1e-9))
	if h < 1 {
		return 1
	}
	return h
}

// Search returns the conflict-free windows for workerID, in chronological
// order, starting strictly after now. events are the worker's committed
// events; events of other workers are ignored.
func (s *Scheduler) Search(now time.Time, workerID string, events []model.CommittedEvent, hours float64) []model.Candidate {
	span := WindowHours(hours)
	own := interval.ForWorker(workerID, events)
	local := now.In(s.loc)
	y, m, d := local.Date()

	out := make([]model.Candidate, 0, s.cfg.MaxCandidates)
	for offset := 0; offset < s.cfg.HorizonDays; offset++ {
		day := time.Date(y, m, d+offset, 0, 0, 0, 0, s.loc)
		if !s.cfg.IsWorkingDay(day.Weekday()) {
			continue
		}
		dy, dm, dd := day.Date()
		closing := time.Date(dy, dm, dd, s.cfg.BusinessEndHour, 0, 0, 0, s.loc)
		for h := s.cfg.BusinessStartHour; h < s.cfg.BusinessEndHour; h++ {
			start := time.Date(dy, dm, dd, h, 0, 0, 0, s.loc)
			end := time.Date(dy, dm, dd, h+span, 0, 0, 0, s.loc)
			if end.After(closing) {
				break
			}
			if !start.After(now) {
				continue
			}
			if interval.Conflicts(start, end, own) {
				continue
			}
			out = append(out, model.Candidate{
				WorkerID:           workerID,
				Start:              start,
				End:                end,
				TotalHoursRequired: hours,
			})
			if len(out) >= s.cfg.MaxCandidates {
				return out
			}
		}
	}
	return out
}

// Request is the input of one per-worker search.
type Request struct {
	WorkerID string
	Events   []model.CommittedEvent
	Hours    float64
}

// Result holds the candidates found for one worker.
type Result struct {
	WorkerID   string
	Candidates []model.Candidate
	Err        error
}

// SearchAll runs one search per request concurrently. Results are returned
// in request order; each worker's candidates keep their chronological order.
// A cancelled context marks unfinished requests with the context error.
func (s *Scheduler) SearchAll(ctx context.Context, now time.Time, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	var wg sync.WaitGroup
	for i, r := range reqs {
		wg.Add(1)
		go func(i int, r Request) {
			defer wg.Done()
			results[i].WorkerID = r.WorkerID
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}
			results[i].Candidates = s.Search(now, r.WorkerID, r.Events, r.Hours)
		}(i, r)
	}
	wg.Wait()
	return results
}
