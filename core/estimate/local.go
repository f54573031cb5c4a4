package estimate

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/crewplan/core/logger"
	"github.com/kilianp07/crewplan/core/model"
)

// LocalTaskTime is an in-process TaskTimeEstimator. Travel comes from an
// optional DriveTimeEstimator; a failing drive estimate counts as no travel.
type LocalTaskTime struct {
	cfg   Config
	drive DriveTimeEstimator
	log   logger.Logger
}

// NewLocalTaskTime creates a LocalTaskTime. drive may be nil.
func NewLocalTaskTime(cfg Config, drive DriveTimeEstimator, log logger.Logger) *LocalTaskTime {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &LocalTaskTime{cfg: cfg, drive: drive, log: log}
}

// ParallelizationFactor returns how much faster n workers complete the work
// than a single worker. Standard mode has diminishing returns: the i-th extra
// worker contributes efficiency^i.
func ParallelizationFactor(n int, mode model.ParallelizationMode, efficiency float64) float64 {
	if n <= 1 {
		return 1
	}
	switch mode {
	case model.ModeSequential:
		return 1
	case model.ModeFullyParallel:
		return float64(n)
	default:
		terms := make([]float64, n)
		for i := range terms {
			terms[i] = math.Pow(efficiency, float64(i))
		}
		return floats.Sum(terms)
	}
}

// EstimateTaskTime implements TaskTimeEstimator.
func (l *LocalTaskTime) EstimateTaskTime(ctx context.Context, req TaskTimeRequest) (TaskTimeEstimate, error) {
	if err := ctx.Err(); err != nil {
		return TaskTimeEstimate{}, err
	}
	n := len(req.AssignedWorkers)
	if n == 0 {
		return TaskTimeEstimate{}, ErrNoWorkers
	}
	if req.EstimatedHours <= 0 {
		return TaskTimeEstimate{}, ErrInvalidHours
	}

	factor := ParallelizationFactor(n, req.Mode, l.cfg.Efficiency)
	elapsed := req.EstimatedHours / factor
	elapsed = math.Max(elapsed, math.Min(req.EstimatedHours, l.cfg.MinHoursPerWorker))
	elapsed = math.Max(elapsed, req.EstimatedHours/float64(n))

	drive, err := l.driveEstimate(ctx, req)
	if err != nil {
		return TaskTimeEstimate{}, err
	}
	driveHours := drive.MinutesRoundTrip / 60

	hourly := make([]float64, n)
	for i, w := range req.AssignedWorkers {
		hourly[i] = w.HourlyCost
	}
	crewRate := floats.Sum(hourly)

	cost := model.CostBreakdown{
		LaborCost: elapsed * crewRate,
		DriveCost: driveHours * crewRate,
		GasCost:   l.gasCost(drive),
	}
	cost.TotalCost = floats.Sum([]float64{cost.LaborCost, cost.DriveCost, cost.GasCost})

	return TaskTimeEstimate{
		FinalAdjustedHours:    elapsed + driveHours,
		ParallelizationFactor: factor,
		AssignedUsersCount:    n,
		CostAnalysis:          cost,
		DriveTimeMinutes:      drive.MinutesRoundTrip,
	}, nil
}

func (l *LocalTaskTime) driveEstimate(ctx context.Context, req TaskTimeRequest) (DriveEstimate, error) {
	if l.drive == nil || req.BusinessAddress == "" || req.ProjectAddress == "" {
		return DriveEstimate{}, nil
	}
	de, err := l.drive.EstimateDriveTime(ctx, req.BusinessAddress, req.ProjectAddress, req.AssignedWorkers)
	if err != nil {
		if ctx.Err() != nil {
			return DriveEstimate{}, ctx.Err()
		}
		l.log.Warnf("drive time unavailable, assuming no travel: %v", err)
		return DriveEstimate{}, nil
	}
	if de.MinutesRoundTrip <= 0 && de.MinutesOneWay > 0 {
		de.MinutesRoundTrip = 2 * de.MinutesOneWay
	}
	if de.MinutesRoundTrip < 0 {
		return DriveEstimate{}, fmt.Errorf("%w: negative drive time", ErrEstimationUnavailable)
	}
	return de, nil
}

// gasCost prefers the vehicle figure of the drive estimate and otherwise
// prices the round trip distance.
func (l *LocalTaskTime) gasCost(de DriveEstimate) float64 {
	if de.Vehicle.GasCost > 0 {
		return de.Vehicle.GasCost
	}
	mpg := de.Vehicle.MPG
	if mpg <= 0 {
		mpg = l.cfg.DefaultMPG
	}
	return 2 * de.DistanceMiles / mpg * l.cfg.GasPrice
}
