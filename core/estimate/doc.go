// Package estimate turns a work item, a crew and a parallelization mode into
// an AdjustedDuration.
//
// The Resolver delegates to a TaskTimeEstimator and treats its answer as
// authoritative. When the estimator cannot answer, the base estimate is used
// unchanged and the result is flagged Unadjusted so callers can warn the user.
// LocalTaskTime is an in-process estimator built on a DriveTimeEstimator.
package estimate
