// Package protocol defines the contracts between the workflow engine, its
// pluggable actions, and the external collaborators actions call into.
package protocol

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
)

// Action is one executable workflow step. Execute returns the result that
// lands in the execution's actions_executed log. Business-rule refusals are
// reported as skipped results, not errors; an error return means the step
// itself failed and the execution fails with it.
type Action interface {
	Execute(ctx context.Context, executionCtx models.ExecutionContext, deps Dependencies) (models.ActionResult, error)
}

// ActionFactory creates action instances and provides metadata about the
// action type.
type ActionFactory interface {
	// Create builds a new action instance from validated parameters
	Create(ctx context.Context, params models.ActionParams) (Action, error)

	// ID returns the unique identifier for this action type
	ID() string

	// Name returns the human-readable name for this action type
	Name() string

	// Description returns a description of what this action does
	Description() string

	// Schema returns the JSON schema for configuring this action
	Schema() map[string]any
}
