package services

import (
	"context"
	"log/slog"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

const (
	defaultExecutionLimit = 20
	maxExecutionLimit     = 100
)

// Executions is the read surface over execution records. Executions are
// written only by the engine; this service never mutates them.
type Executions struct {
	logger      *slog.Logger
	persistence persistence.Persistence
}

// NewExecutions creates the execution read service.
func NewExecutions(logger *slog.Logger, p persistence.Persistence) *Executions {
	return &Executions{
		logger:      logger.With("module", "executions-service"),
		persistence: p,
	}
}

// ListByWorkflow returns the workflow's executions, newest first.
func (s *Executions) ListByWorkflow(ctx context.Context, organizationID, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	if limit <= 0 {
		limit = defaultExecutionLimit
	}

	if limit > maxExecutionLimit {
		limit = maxExecutionLimit
	}

	return s.persistence.Executions().ListByWorkflow(ctx, organizationID, workflowID, limit)
}

// ListByEvent returns every execution one logical event produced, across
// workflows and cascade depths.
func (s *Executions) ListByEvent(ctx context.Context, organizationID, eventID string) ([]*models.WorkflowExecution, error) {
	return s.persistence.Executions().ListByEvent(ctx, organizationID, eventID)
}

// Get retrieves one execution by its ID.
func (s *Executions) Get(ctx context.Context, organizationID, executionID string) (*models.WorkflowExecution, error) {
	return s.persistence.Executions().GetByID(ctx, organizationID, executionID)
}
