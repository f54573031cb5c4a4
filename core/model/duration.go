package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ParallelizationMode controls how extra workers shorten elapsed time.
type ParallelizationMode int

const (
	// ModeStandard scales sub-linearly with diminishing returns.
	ModeStandard ParallelizationMode = iota
	// ModeSequential keeps the factor at 1 whatever the crew size.
	ModeSequential
	// ModeFullyParallel scales linearly with the crew size.
	ModeFullyParallel
)

// String returns the mode name.
func (m ParallelizationMode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeStandard:
		return "standard"
	case ModeFullyParallel:
		return "fully_parallel"
	default:
		return "unknown"
	}
}

// ParseParallelizationMode converts a mode name into a ParallelizationMode.
func ParseParallelizationMode(s string) (ParallelizationMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential":
		return ModeSequential, true
	case "standard", "":
		return ModeStandard, true
	case "fully_parallel", "fullyparallel", "parallel":
		return ModeFullyParallel, true
	default:
		return 0, false
	}
}

// MarshalJSON encodes the mode by name.
func (m ParallelizationMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode name.
func (m *ParallelizationMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, ok := ParseParallelizationMode(s)
	if !ok {
		return fmt.Errorf("unknown parallelization mode %q", s)
	}
	*m = v
	return nil
}

// CostBreakdown rolls up the cost of performing a work item.
type CostBreakdown struct {
	LaborCost float64 `json:"labor_cost"`
	DriveCost float64 `json:"drive_cost"`
	GasCost   float64 `json:"gas_cost"`
	TotalCost float64 `json:"total_cost"`
}

// AdjustedDuration is the required duration of a work item for a given crew.
// Unadjusted is set when the estimation service could not be reached and the
// figures fall back to the base estimate.
type AdjustedDuration struct {
	BaseHours             float64             `json:"base_hours"`
	DriveRoundTripMinutes float64             `json:"drive_round_trip_minutes"`
	AssignedWorkerCount   int                 `json:"assigned_worker_count"`
	ParallelizationFactor float64             `json:"parallelization_factor"`
	FinalAdjustedHours    float64             `json:"final_adjusted_hours"`
	Cost                  CostBreakdown       `json:"cost_breakdown"`
	Mode                  ParallelizationMode `json:"mode"`
	Workers               []string            `json:"workers"`
	Unadjusted            bool                `json:"unadjusted"`
}

// UnadjustedDuration returns the fallback duration used when estimation is unavailable.
func UnadjustedDuration(base float64, workers []string, mode ParallelizationMode) AdjustedDuration {
	return AdjustedDuration{
		BaseHours:             base,
		AssignedWorkerCount:   len(workers),
		ParallelizationFactor: 1,
		FinalAdjustedHours:    base,
		Mode:                  mode,
		Workers:               append([]string(nil), workers...),
		Unadjusted:            true,
	}
}

// SlotHours is the whole number of hours a calendar window must span to hold
// the duration. It is at least one.
func (d AdjustedDuration) SlotHours() int {
	h := int(math.Ceil(d.FinalAdjustedHours - 1e-9))
	if h < 1 {
		return 1
	}
	return h
}

// Equal reports whether o carries the same figures for the same crew.
func (d AdjustedDuration) Equal(o AdjustedDuration) bool {
	return d.BaseHours == o.BaseHours &&
		d.DriveRoundTripMinutes == o.DriveRoundTripMinutes &&
		d.AssignedWorkerCount == o.AssignedWorkerCount &&
		d.ParallelizationFactor == o.ParallelizationFactor &&
		d.FinalAdjustedHours == o.FinalAdjustedHours &&
		d.Cost == o.Cost &&
		d.Mode == o.Mode &&
		d.Unadjusted == o.Unadjusted &&
		d.SameWorkers(o.Workers)
}

// SameWorkers reports whether the duration was resolved for exactly the given
// worker set, ignoring order and case.
func (d AdjustedDuration) SameWorkers(workers []string) bool {
	if len(d.Workers) != len(workers) {
		return false
	}
	seen := make(map[string]int, len(workers))
	for _, w := range d.Workers {
		seen[strings.ToLower(w)]++
	}
	for _, w := range workers {
		k := strings.ToLower(w)
		if seen[k] == 0 {
			return false
		}
		seen[k]--
	}
	return true
}
