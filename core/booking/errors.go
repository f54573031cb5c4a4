package booking

import (
	"errors"
	"fmt"

	"github.com/kilianp07/crewplan/core/model"
)

var (
	// ErrInvalidCandidate is returned when the selected candidate does not
	// belong to the freshly computed candidate set. The caller must re-search.
	ErrInvalidCandidate = errors.New("invalid candidate")
	// ErrWorkerNotAuthorized is returned when the worker may not take the work item.
	ErrWorkerNotAuthorized = errors.New("worker not authorized for work item")
	// ErrConflict is returned when the candidate overlaps an event committed
	// after the search. The caller must re-search.
	ErrConflict = errors.New("candidate conflicts with a committed event")
	// ErrPersistence wraps entity store failures.
	ErrPersistence = errors.New("persistence failure")
)

// PartialFailureError reports a task that was created while its calendar
// event was not. The task is left in place for the caller to reconcile.
type PartialFailureError struct {
	Task model.Task
	Err  error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("task %s created but event not committed: %v", e.Task.ID, e.Err)
}

// Unwrap exposes both ErrPersistence and the underlying cause.
func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
