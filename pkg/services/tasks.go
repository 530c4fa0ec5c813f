package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/pkg/audit"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

var (
	// ErrTaskNotFound is returned when a task is not found.
	ErrTaskNotFound = persistence.ErrTaskNotFound
)

const (
	defaultTaskLimit = 50
	maxTaskLimit     = 200
)

// Tasks lists tasks and resolves approval gates. Approve and deny follow the
// same protocol as the expiry sweep: the resume ledger row is the claim,
// created inside the transaction before the task is touched, so a user and
// the sweep racing for the same gate cannot both win. The paused execution
// itself resumes asynchronously when the worker picks up the enqueued
// WORKFLOW_RESUME job.
type Tasks struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	jobs        protocol.JobDispatcher
	audit       *audit.Logger
}

// NewTasks creates the task service.
func NewTasks(logger *slog.Logger, p persistence.Persistence, jobs protocol.JobDispatcher) *Tasks {
	return &Tasks{
		logger:      logger.With("module", "tasks-service"),
		persistence: p,
		jobs:        jobs,
		audit:       audit.NewLogger(p),
	}
}

// List returns the organization's tasks, optionally filtered by status.
func (s *Tasks) List(ctx context.Context, organizationID string, status models.TaskStatus, limit int) ([]*models.Task, error) {
	if status != "" && !validTaskStatus(status) {
		return nil, NewValidationError("List", "INVALID_STATUS",
			fmt.Sprintf("invalid task status %q", status), ErrInvalidTaskStatus)
	}

	if limit <= 0 {
		limit = defaultTaskLimit
	}

	if limit > maxTaskLimit {
		limit = maxTaskLimit
	}

	return s.persistence.Tasks().List(ctx, organizationID, status, limit)
}

// Get retrieves one task by its ID.
func (s *Tasks) Get(ctx context.Context, organizationID, taskID string) (*models.Task, error) {
	return s.persistence.Tasks().GetByID(ctx, organizationID, taskID)
}

// Approve resolves an approval gate in favor of the pending action.
func (s *Tasks) Approve(ctx context.Context, organizationID, taskID string, actor models.Actor, note string) (*models.Task, error) {
	return s.resolve(ctx, organizationID, taskID, actor, note, models.ResumeCompleted, models.TaskCompleted)
}

// Deny resolves an approval gate against the pending action. The note is
// recorded as the denial reason.
func (s *Tasks) Deny(ctx context.Context, organizationID, taskID string, actor models.Actor, note string) (*models.Task, error) {
	return s.resolve(ctx, organizationID, taskID, actor, note, models.ResumeDenied, models.TaskDenied)
}

func (s *Tasks) resolve(ctx context.Context, organizationID, taskID string, actor models.Actor, note string, outcome models.ResumeOutcome, status models.TaskStatus) (*models.Task, error) {
	task, err := s.persistence.Tasks().GetByID(ctx, organizationID, taskID)
	if err != nil {
		return nil, err
	}

	if !task.IsApprovalGate() || task.WorkflowExecutionID == "" {
		return nil, NewValidationError("resolve", "NOT_APPROVAL_GATE",
			fmt.Sprintf("task %s is not an approval gate", taskID), ErrNotApprovalGate)
	}

	if !task.Open() {
		return nil, fmt.Errorf("task %s is %s: %w", taskID, task.Status, ErrTaskAlreadyResolved)
	}

	now := time.Now().UTC()
	job := &models.WorkflowResumeJob{
		ID:                  uuid.New().String(),
		OrganizationID:      organizationID,
		IdempotencyKey:      models.ResumeIdempotencyKey(task.WorkflowExecutionID, task.ID),
		WorkflowExecutionID: task.WorkflowExecutionID,
		TaskID:              task.ID,
		Outcome:             outcome,
		CreatedAt:           now,
	}

	err = s.persistence.Transaction(ctx, func(txCtx context.Context) error {
		// The ledger row is the claim on this gate. Losing the race to the
		// expiry sweep or a concurrent resolver fails here, before the task
		// is touched.
		if err := s.persistence.ResumeJobs().Create(txCtx, job); err != nil {
			return err
		}

		task.Status = status
		task.ResolvedAt = &now
		task.ResolvedBy = actor.String()
		task.ResolutionNote = note
		task.UpdatedAt = now

		if err := s.persistence.Tasks().Update(txCtx, task); err != nil {
			return fmt.Errorf("failed to resolve task: %w", err)
		}

		return s.audit.Append(txCtx, &models.AuditEntry{
			OrganizationID: organizationID,
			EventType:      audit.EventTaskResolved,
			Actor:          actor.String(),
			TargetType:     "task",
			TargetID:       task.ID,
			Details: map[string]any{
				"kind":         string(models.TaskKindWorkflowApproval),
				"outcome":      string(outcome),
				"execution_id": task.WorkflowExecutionID,
			},
		})
	})
	if errors.Is(err, persistence.ErrDuplicateResumeJob) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskAlreadyResolved)
	}

	if err != nil {
		return nil, err
	}

	if err := s.jobs.Enqueue(ctx, models.QueuedJob{
		OrganizationID: organizationID,
		Type:           models.JobWorkflowResume,
		Payload: map[string]any{
			"idempotency_key": job.IdempotencyKey,
			"execution_id":    task.WorkflowExecutionID,
			"task_id":         task.ID,
			"outcome":         string(outcome),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to enqueue resume: %w", err)
	}

	s.logger.InfoContext(ctx, "Approval resolved",
		"organization_id", organizationID, "task_id", task.ID,
		"execution_id", task.WorkflowExecutionID, "outcome", outcome,
		"resolved_by", actor.String())

	return task, nil
}

func validTaskStatus(status models.TaskStatus) bool {
	switch status {
	case models.TaskPending, models.TaskInProgress, models.TaskCompleted,
		models.TaskDenied, models.TaskExpired:
		return true
	}

	return false
}
