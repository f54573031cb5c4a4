package estimate

import (
	"context"
	"errors"

	"github.com/kilianp07/crewplan/core/model"
)

var (
	// ErrNoWorkers is returned when a duration is requested for an empty crew.
	ErrNoWorkers = errors.New("at least one worker is required")
	// ErrInvalidHours is returned for a work item without a positive base estimate.
	ErrInvalidHours = errors.New("base estimated hours must be positive")
	// ErrEstimationUnavailable marks a Task-Time or Drive-Time failure. The
	// resolver recovers from it by degrading to the base estimate.
	ErrEstimationUnavailable = errors.New("estimation service unavailable")
)

// Vehicle describes the vehicle used for a drive estimate.
type Vehicle struct {
	Name    string  `json:"name"`
	MPG     float64 `json:"mpg"`
	GasCost float64 `json:"gas_cost"`
}

// LaborCost is the travel labor cost of one worker.
type LaborCost struct {
	WorkerID   string  `json:"worker_id"`
	HourlyCost float64 `json:"hourly_cost"`
	Cost       float64 `json:"cost"`
}

// DriveEstimate is the answer of a DriveTimeEstimator.
type DriveEstimate struct {
	MinutesOneWay       float64     `json:"drive_minutes_one_way"`
	MinutesRoundTrip    float64     `json:"drive_minutes_round_trip"`
	DistanceMiles       float64     `json:"distance_miles"`
	Vehicle             Vehicle     `json:"vehicle"`
	LaborCostBreakdown  []LaborCost `json:"labor_cost_breakdown"`
	TotalAdditionalCost float64     `json:"total_additional_cost"`
}

// DriveTimeEstimator estimates the travel between two addresses for a crew.
type DriveTimeEstimator interface {
	EstimateDriveTime(ctx context.Context, origin, destination string, workers []model.Worker) (DriveEstimate, error)
}

// TaskTimeRequest is the input of a TaskTimeEstimator.
type TaskTimeRequest struct {
	EstimatedHours  float64                   `json:"estimated_hours"`
	AssignedWorkers []model.Worker            `json:"assigned_workers"`
	BusinessAddress string                    `json:"business_address"`
	ProjectAddress  string                    `json:"project_address"`
	TaskType        string                    `json:"task_type"`
	Mode            model.ParallelizationMode `json:"mode"`
}

// TaskTimeEstimate is the answer of a TaskTimeEstimator.
type TaskTimeEstimate struct {
	FinalAdjustedHours    float64             `json:"final_adjusted_hours"`
	ParallelizationFactor float64             `json:"parallelization_factor"`
	AssignedUsersCount    int                 `json:"assigned_users_count"`
	CostAnalysis          model.CostBreakdown `json:"cost_analysis"`
	DriveTimeMinutes      float64             `json:"drive_time_minutes"`
}

// TaskTimeEstimator adjusts a base estimate for travel and parallelization.
type TaskTimeEstimator interface {
	EstimateTaskTime(ctx context.Context, req TaskTimeRequest) (TaskTimeEstimate, error)
}

// WorkerLookup resolves worker identities into full records.
type WorkerLookup interface {
	GetWorker(ctx context.Context, email string) (model.Worker, error)
}
