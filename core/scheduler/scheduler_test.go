package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewplan/core/interval"
	"github.com/kilianp07/crewplan/core/model"
)

// 2025-03-03 is a Monday.
func monday(h int) time.Time {
	return time.Date(2025, 3, 3, h, 0, 0, 0, time.UTC)
}

func newUTC(t *testing.T, mut func(*Config)) *Scheduler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	if mut != nil {
		mut(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func startHours(cands []model.Candidate, day time.Time) []int {
	var hs []int
	for _, c := range cands {
		if c.Start.YearDay() == day.YearDay() {
			hs = append(hs, c.Start.Hour())
		}
	}
	return hs
}

func TestSearch_CommittedMorningEvent(t *testing.T) {
	s := newUTC(t, nil)
	events := []model.CommittedEvent{{ID: "e1", WorkerID: "a@x", Start: monday(10), End: monday(12)}}

	cands := s.Search(monday(7), "a@x", events, 2)

	assert.Equal(t, []int{8, 12, 13, 14, 15}, startHours(cands, monday(0)))
	for _, c := range cands {
		assert.Equal(t, 2*time.Hour, c.End.Sub(c.Start))
		assert.Equal(t, 2.0, c.TotalHoursRequired)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	s := newUTC(t, nil)
	events := []model.CommittedEvent{
		{WorkerID: "a@x", Start: monday(9), End: monday(11)},
		{WorkerID: "a@x", Start: monday(24 + 13), End: monday(24 + 16)},
	}
	now := monday(8).Add(30 * time.Minute)
	first := s.Search(now, "a@x", events, 3.2)
	second := s.Search(now, "a@x", events, 3.2)
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].Start.Before(first[i].Start), "candidates must be chronological")
	}
}

func TestSearch_Properties(t *testing.T) {
	s := newUTC(t, nil)
	now := time.Date(2025, 3, 5, 11, 20, 0, 0, time.UTC) // Wednesday
	thursday := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	friday := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	events := []model.CommittedEvent{
		{WorkerID: "a@x", Start: now.Add(2 * time.Hour), End: now.Add(5 * time.Hour)},
		{WorkerID: "a@x", Start: thursday.Add(8 * time.Hour), End: thursday.Add(17 * time.Hour)},
		{WorkerID: "b@x", Start: friday.Add(8 * time.Hour), End: friday.Add(17 * time.Hour)},
	}
	own := interval.ForWorker("a@x", events)

	cands := s.Search(now, "a@x", events, 2.5)

	require.NotEmpty(t, cands)
	assert.LessOrEqual(t, len(cands), 20)
	for _, c := range cands {
		assert.True(t, c.Start.After(now), "future only")
		assert.GreaterOrEqual(t, c.Start.Hour(), 8)
		assert.Less(t, c.Start.Hour(), 17)
		closing := time.Date(c.Start.Year(), c.Start.Month(), c.Start.Day(), 17, 0, 0, 0, time.UTC)
		assert.False(t, c.End.After(closing), "within business hours")
		assert.NotEqual(t, time.Saturday, c.Start.Weekday())
		assert.NotEqual(t, time.Sunday, c.Start.Weekday())
		assert.False(t, interval.Conflicts(c.Start, c.End, own))
		assert.Equal(t, 3*time.Hour, c.End.Sub(c.Start))
	}
	assert.Empty(t, startHours(cands, thursday))
	assert.NotEmpty(t, startHours(cands, friday))
}

func TestSearch_StopsAtMaxCandidates(t *testing.T) {
	s := newUTC(t, nil)
	cands := s.Search(monday(6), "a@x", nil, 1)
	assert.Len(t, cands, 20)
	// nine one-hour starts per day: Monday and Tuesday fully, two on Wednesday
	assert.Equal(t, []int{8, 9}, startHours(cands, monday(48)))
}

func TestSearch_CustomWorkingDays(t *testing.T) {
	s := newUTC(t, func(c *Config) {
		c.WorkingDays = []string{"saturday"}
		c.MaxCandidates = 100
	})
	cands := s.Search(monday(6), "a@x", nil, 4)
	require.NotEmpty(t, cands)
	for _, c := range cands {
		assert.Equal(t, time.Saturday, c.Start.Weekday())
	}
	// two Saturdays in the horizon, starts 8..13 on each
	assert.Len(t, cands, 12)
}

func TestSearch_TooLongForADay(t *testing.T) {
	s := newUTC(t, nil)
	assert.Empty(t, s.Search(monday(6), "a@x", nil, 9.5))
	assert.Len(t, s.Search(monday(6), "a@x", nil, 9), 10)
}

func TestSearch_StartEqualToNowRejected(t *testing.T) {
	s := newUTC(t, nil)
	cands := s.Search(monday(9), "a@x", nil, 1)
	require.NotEmpty(t, cands)
	assert.Equal(t, monday(10), cands[0].Start)
}

func TestSearch_BusinessLocale(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	s := newUTC(t, func(c *Config) { c.Timezone = "America/New_York" })
	now := time.Date(2025, 3, 3, 6, 0, 0, 0, loc)
	cands := s.Search(now.UTC(), "a@x", nil, 1)
	require.NotEmpty(t, cands)
	assert.Equal(t, 8, cands[0].Start.In(loc).Hour())
}

func TestWindowHours(t *testing.T) {
	assert.Equal(t, 1, WindowHours(0.2))
	assert.Equal(t, 2, WindowHours(2))
	assert.Equal(t, 3, WindowHours(2.01))
	assert.Equal(t, 1, WindowHours(0))
}

func TestSearchAll_PreservesOrder(t *testing.T) {
	s := newUTC(t, nil)
	reqs := []Request{
		{WorkerID: "a@x", Hours: 2},
		{WorkerID: "b@x", Hours: 3, Events: []model.CommittedEvent{{WorkerID: "b@x", Start: monday(8), End: monday(17)}}},
		{WorkerID: "c@x", Hours: 1},
	}
	res := s.SearchAll(context.Background(), monday(6), reqs)
	require.Len(t, res, 3)
	for i, r := range res {
		assert.Equal(t, reqs[i].WorkerID, r.WorkerID)
		assert.NoError(t, r.Err)
		assert.Equal(t, s.Search(monday(6), r.WorkerID, reqs[i].Events, reqs[i].Hours), r.Candidates)
	}
	assert.Empty(t, startHours(res[1].Candidates, monday(0)))
}

func TestSearchAll_Cancelled(t *testing.T) {
	s := newUTC(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := s.SearchAll(ctx, monday(6), []Request{{WorkerID: "a@x", Hours: 1}})
	assert.ErrorIs(t, res[0].Err, context.Canceled)
	assert.Empty(t, res[0].Candidates)
}
