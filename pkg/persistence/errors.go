package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrTaskNotFound indicates a task was not found by the given identifier.
	ErrTaskNotFound = errors.New("task not found")

	// ErrResumeJobNotFound indicates no resume ledger row exists for the key.
	ErrResumeJobNotFound = errors.New("resume job not found")

	// ErrEntityVersionNotFound indicates no snapshot exists for the entity or version.
	ErrEntityVersionNotFound = errors.New("entity version not found")

	// ErrScheduleNotFound indicates no schedule row exists for the workflow.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrDuplicateDedupeKey indicates another execution already claimed the
	// dedupe key for this organization. Callers treat it as "already
	// handled", not as a failure.
	ErrDuplicateDedupeKey = errors.New("dedupe key already claimed")

	// ErrDuplicatePendingApproval indicates a pending approval task already
	// exists for the (execution, action index) pair.
	ErrDuplicatePendingApproval = errors.New("pending approval already exists")

	// ErrDuplicateResumeJob indicates the resume idempotency key is already
	// in the ledger.
	ErrDuplicateResumeJob = errors.New("resume job already recorded")

	// ErrVersionConflict indicates an optimistic-lock failure: the expected
	// version no longer matches the stored head, or a concurrent writer
	// claimed the same version number.
	ErrVersionConflict = errors.New("entity version conflict")
)

// StoreError wraps persistence errors with operation context.
type StoreError struct {
	Op     string // Operation being performed (e.g., "Create", "GetByID")
	Entity string // Aggregate the operation targets (e.g., "execution")
	Key    string // Identifier if applicable
	Err    error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.Key, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison through the wrapper.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a store error with context.
func NewStoreError(op, entity, key string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, Key: key, Err: err}
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrResumeJobNotFound) ||
		errors.Is(err, ErrEntityVersionNotFound) ||
		errors.Is(err, ErrScheduleNotFound)
}

// IsConflict reports whether err is a uniqueness or optimistic-lock
// violation. Engine code treats these as "someone else already did this".
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateDedupeKey) ||
		errors.Is(err, ErrDuplicatePendingApproval) ||
		errors.Is(err, ErrDuplicateResumeJob) ||
		errors.Is(err, ErrVersionConflict)
}
