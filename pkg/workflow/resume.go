package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/stagehandhq/stagehand/pkg/events"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// Resume applies an approval task's resolution to its paused execution. The
// worker calls it for WORKFLOW_RESUME jobs, which the queue delivers at
// least once: the ledger row is checked before any work and marked processed
// in the same transaction as the outcome it produces, so a redelivery finds
// ProcessedAt set and stops.
//
// A resume that no longer applies (execution not paused, or paused on a
// different task than the one referenced) is logged and swallowed; stale
// jobs racing a newer pause must not fail the worker.
func (e *Engine) Resume(ctx context.Context, organizationID, executionID, taskID string) error {
	logger := e.logger.With(
		"organization_id", organizationID,
		"execution_id", executionID,
		"task_id", taskID,
	)

	key := models.ResumeIdempotencyKey(executionID, taskID)

	job, err := e.persistence.ResumeJobs().GetByKey(ctx, key)
	if err != nil {
		if persistence.IsNotFound(err) {
			logger.WarnContext(ctx, "No resume ledger row for key, ignoring", "idempotency_key", key)

			return nil
		}

		return fmt.Errorf("failed to load resume ledger row: %w", err)
	}

	if job.Processed() {
		logger.InfoContext(ctx, "Resume already processed, skipping", "idempotency_key", key)

		return nil
	}

	execution, err := e.persistence.Executions().GetByID(ctx, organizationID, executionID)
	if err != nil {
		if persistence.IsNotFound(err) {
			logger.WarnContext(ctx, "Execution missing for resume, marking processed")

			return e.markResumeProcessed(ctx, key)
		}

		return fmt.Errorf("failed to load execution for resume: %w", err)
	}

	if !execution.PausedOn(taskID) {
		logger.WarnContext(ctx, "Execution not paused on this task, ignoring stale resume",
			"status", execution.Status)

		return e.markResumeProcessed(ctx, key)
	}

	task, err := e.persistence.Tasks().GetByID(ctx, organizationID, taskID)
	if err != nil {
		if persistence.IsNotFound(err) {
			logger.WarnContext(ctx, "Approval task missing for resume, marking processed")

			return e.markResumeProcessed(ctx, key)
		}

		return fmt.Errorf("failed to load approval task: %w", err)
	}

	event, err := models.EventFromSnapshot(execution.TriggerEvent)
	if err != nil {
		return fmt.Errorf("failed to rebuild trigger event for resume: %w", err)
	}

	logger.InfoContext(ctx, "Resuming execution", "outcome", job.Outcome)

	switch job.Outcome {
	case models.ResumeCompleted:
		return e.resumeApproved(ctx, key, execution, task, event)
	case models.ResumeDenied:
		execution.Status = models.ExecutionCanceled
		execution.DenialReason = task.ResolutionNote
		execution.ActionsExecuted = append(execution.ActionsExecuted, gateResult("denied"))

		return e.finishResumed(ctx, key, execution, event, taskID)
	case models.ResumeExpired:
		execution.Status = models.ExecutionExpired
		execution.ActionsExecuted = append(execution.ActionsExecuted, gateResult("expired"))

		return e.finishResumed(ctx, key, execution, event, taskID)
	}

	logger.WarnContext(ctx, "Unknown resume outcome, ignoring", "outcome", job.Outcome)

	return e.markResumeProcessed(ctx, key)
}

// resumeApproved re-enters the action loop at the paused index. The gate
// itself executes this time, recording the granted approval, and the actions
// behind it run in order. A later gate pauses the execution again.
func (e *Engine) resumeApproved(ctx context.Context, key string, execution *models.WorkflowExecution, task *models.Task, event models.TriggerEvent) error {
	wf, err := e.persistence.Workflows().GetByID(ctx, execution.OrganizationID, execution.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow for resume: %w", err)
	}

	pausedIndex := *execution.PausedAtActionIndex
	cause := models.Causation{
		EventID: execution.EventID,
		Depth:   execution.Depth,
		Source:  execution.EventSource,
	}
	executionCtx := models.NewExecutionContext(execution.ID, wf, event, cause, models.WorkflowActor(execution.ID))

	e.publishResumed(ctx, execution, task)

	results, pause, actionErr := e.runActions(ctx, wf, executionCtx, pausedIndex, pausedIndex, execution.ActionsExecuted)
	execution.ActionsExecuted = results

	if pause != nil {
		if err := e.pauseExecution(ctx, execution, pause); err != nil {
			return err
		}

		return e.markResumeProcessed(ctx, key)
	}

	if actionErr != nil {
		execution.Status = models.ExecutionFailed
		execution.ErrorMessage = actionErr.Error()

		e.logger.WarnContext(ctx, "Resumed execution failed",
			"execution_id", execution.ID, "workflow_id", execution.WorkflowID, "error", actionErr)
	} else {
		execution.Status = models.ExecutionSuccess
	}

	return e.finishResumed(ctx, key, execution, event, task.ID)
}

// finishResumed commits the terminal outcome and the ledger mark together.
func (e *Engine) finishResumed(ctx context.Context, key string, execution *models.WorkflowExecution, event models.TriggerEvent, taskID string) error {
	return e.persistence.Transaction(ctx, func(txCtx context.Context) error {
		if err := e.finishExecution(txCtx, execution, event, taskID); err != nil {
			return err
		}

		return e.persistence.ResumeJobs().MarkProcessed(txCtx, key, time.Now().UTC())
	})
}

func (e *Engine) markResumeProcessed(ctx context.Context, key string) error {
	if err := e.persistence.ResumeJobs().MarkProcessed(ctx, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark resume processed: %w", err)
	}

	return nil
}

// gateResult is the synthetic entry a denial or expiry appends to the action
// log in the gate's place. Success stays false: the gated actions never ran.
func gateResult(reason string) models.ActionResult {
	return models.ActionResult{
		ActionType: string(models.ActionRequestApproval),
		Skipped:    true,
		Reason:     reason,
	}
}

func (e *Engine) publishResumed(ctx context.Context, execution *models.WorkflowExecution, task *models.Task) {
	if e.publisher == nil {
		return
	}

	resumed := events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, execution.OrganizationID, execution.WorkflowID),
		ExecutionID: execution.ID,
		TaskID:      task.ID,
		Outcome:     string(models.ResumeCompleted),
		ResolvedBy:  task.ResolvedBy,
	}
	resumed.EventID = execution.EventID

	e.publish(ctx, execution.WorkflowID, resumed)
}
