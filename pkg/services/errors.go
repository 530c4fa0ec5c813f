// Package services implements the operations behind the HTTP surface:
// workflow authoring with versioned snapshots, execution reads and approval
// resolution.
package services

import (
	"errors"
	"fmt"

	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrWorkflowNil       = errors.New("workflow cannot be nil")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrActionsRequired   = errors.New("workflow must have at least one action")
	ErrNotApprovalGate   = errors.New("task is not an approval gate")

	// Business Logic Conflicts (409 Conflict).
	ErrTaskAlreadyResolved = errors.New("task already resolved")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrInvalidTaskStatus) ||
		errors.Is(err, ErrActionsRequired) ||
		errors.Is(err, ErrNotApprovalGate)
}

// IsConflictError checks if an error should return HTTP 409. Storage-level
// conflicts (version mismatch, duplicate claims) pass through the services
// unwrapped so they classify here too.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrTaskAlreadyResolved) || persistence.IsConflict(err)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
