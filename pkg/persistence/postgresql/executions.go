package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// ExecutionRepository stores workflow execution records. The dedupe key
// claim is the idx_executions_org_dedupe_key partial unique index.
type ExecutionRepository struct {
	session *session
}

const executionColumns = `
		id
	  , organization_id
	  , workflow_id
	  , event_id
	  , depth
	  , event_source
	  , entity_type
	  , entity_id
	  , trigger_event
	  , dedupe_key
	  , matched_conditions
	  , actions_executed
	  , status
	  , error_message
	  , duration_ms
	  , paused_at_action_index
	  , paused_task_id
	  , denial_reason
	  , started_at
	  , finished_at
	  , created_at
	  , updated_at
`

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	triggerEventJSON, actionsJSON, err := marshalExecutionFields(execution)
	if err != nil {
		return persistence.NewStoreError("Create", "execution", execution.ID, err)
	}

	query := `
		INSERT INTO workflow_executions (
			id, organization_id, workflow_id, event_id, depth, event_source,
			entity_type, entity_id, trigger_event, dedupe_key, matched_conditions,
			actions_executed, status, error_message, duration_ms,
			paused_at_action_index, paused_task_id, denial_reason,
			started_at, finished_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err = r.session.q(ctx).ExecContext(ctx, query,
		execution.ID,
		execution.OrganizationID,
		execution.WorkflowID,
		execution.EventID,
		execution.Depth,
		execution.EventSource,
		execution.EntityType,
		execution.EntityID,
		triggerEventJSON,
		execution.DedupeKey,
		execution.MatchedConditions,
		actionsJSON,
		execution.Status,
		execution.ErrorMessage,
		execution.DurationMs,
		execution.PausedAtActionIndex,
		execution.PausedTaskID,
		execution.DenialReason,
		execution.StartedAt,
		execution.FinishedAt,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err, constraintExecutionsDedupeKey) {
			return persistence.NewStoreError("Create", "execution", execution.ID, persistence.ErrDuplicateDedupeKey)
		}

		return persistence.NewStoreError("Create", "execution", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	triggerEventJSON, actionsJSON, err := marshalExecutionFields(execution)
	if err != nil {
		return persistence.NewStoreError("Update", "execution", execution.ID, err)
	}

	query := `
		UPDATE workflow_executions SET
			trigger_event = $3,
			matched_conditions = $4,
			actions_executed = $5,
			status = $6,
			error_message = $7,
			duration_ms = $8,
			paused_at_action_index = $9,
			paused_task_id = $10,
			denial_reason = $11,
			finished_at = $12,
			updated_at = $13
		WHERE organization_id = $1 AND id = $2
	`

	result, err := r.session.q(ctx).ExecContext(ctx, query,
		execution.OrganizationID,
		execution.ID,
		triggerEventJSON,
		execution.MatchedConditions,
		actionsJSON,
		execution.Status,
		execution.ErrorMessage,
		execution.DurationMs,
		execution.PausedAtActionIndex,
		execution.PausedTaskID,
		execution.DenialReason,
		execution.FinishedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Update", "execution", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Update", "execution", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Update", "execution", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, organizationID, id string) (*models.WorkflowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE organization_id = $1 AND id = $2
	`

	row := r.session.q(ctx).QueryRowContext(ctx, query, organizationID, id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "execution", id, err)
	}

	return execution, nil
}

// ListByWorkflow returns newest first for history views.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, organizationID, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE organization_id = $1 AND workflow_id = $2
		ORDER BY started_at DESC, id DESC
	`

	args := []any{organizationID, workflowID}

	if limit > 0 {
		query += ` LIMIT $3`

		args = append(args, limit)
	}

	return r.queryExecutions(ctx, "ListByWorkflow", query, args...)
}

func (r *ExecutionRepository) ListByEvent(ctx context.Context, organizationID, eventID string) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE organization_id = $1 AND event_id = $2
		ORDER BY started_at, id
	`

	return r.queryExecutions(ctx, "ListByEvent", query, organizationID, eventID)
}

func (r *ExecutionRepository) HasTerminalForEvent(ctx context.Context, organizationID, eventID, workflowID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM workflow_executions
			WHERE organization_id = $1
			  AND event_id = $2
			  AND workflow_id = $3
			  AND status IN ('success', 'failed', 'canceled', 'expired')
		)
	`

	var exists bool

	err := r.session.q(ctx).QueryRowContext(ctx, query, organizationID, eventID, workflowID).Scan(&exists)
	if err != nil {
		return false, persistence.NewStoreError("HasTerminalForEvent", "execution", eventID, err)
	}

	return exists, nil
}

func (r *ExecutionRepository) ExistsByDedupeKey(ctx context.Context, organizationID, dedupeKey string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM workflow_executions
			WHERE organization_id = $1 AND dedupe_key = $2
		)
	`

	var exists bool

	err := r.session.q(ctx).QueryRowContext(ctx, query, organizationID, dedupeKey).Scan(&exists)
	if err != nil {
		return false, persistence.NewStoreError("ExistsByDedupeKey", "execution", dedupeKey, err)
	}

	return exists, nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, op, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := r.session.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError(op, "execution", "", err)
	}

	defer r.session.closeRows(ctx, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewStoreError(op, "execution", "", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError(op, "execution", "", err)
	}

	return executions, nil
}

func marshalExecutionFields(execution *models.WorkflowExecution) ([]byte, []byte, error) {
	triggerEventJSON, err := json.Marshal(execution.TriggerEvent)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal trigger event: %w", err)
	}

	actions := execution.ActionsExecuted
	if actions == nil {
		actions = []models.ActionResult{}
	}

	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal actions executed: %w", err)
	}

	return triggerEventJSON, actionsJSON, nil
}

func scanExecution(scanner interface{ Scan(dest ...any) error }) (*models.WorkflowExecution, error) {
	var (
		execution        models.WorkflowExecution
		triggerEventJSON []byte
		actionsJSON      []byte
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.OrganizationID,
		&execution.WorkflowID,
		&execution.EventID,
		&execution.Depth,
		&execution.EventSource,
		&execution.EntityType,
		&execution.EntityID,
		&triggerEventJSON,
		&execution.DedupeKey,
		&execution.MatchedConditions,
		&actionsJSON,
		&execution.Status,
		&execution.ErrorMessage,
		&execution.DurationMs,
		&execution.PausedAtActionIndex,
		&execution.PausedTaskID,
		&execution.DenialReason,
		&execution.StartedAt,
		&execution.FinishedAt,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if triggerEventJSON != nil {
		if err := json.Unmarshal(triggerEventJSON, &execution.TriggerEvent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger event: %w", err)
		}
	}

	if err := json.Unmarshal(actionsJSON, &execution.ActionsExecuted); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions executed: %w", err)
	}

	return &execution, nil
}

// ResumeJobRepository is the approval-resume idempotency ledger.
type ResumeJobRepository struct {
	session *session
}

func (r *ResumeJobRepository) Create(ctx context.Context, job *models.WorkflowResumeJob) error {
	query := `
		INSERT INTO workflow_resume_jobs (
			id, organization_id, idempotency_key, workflow_execution_id,
			task_id, outcome, created_at, processed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.session.q(ctx).ExecContext(ctx, query,
		job.ID,
		job.OrganizationID,
		job.IdempotencyKey,
		job.WorkflowExecutionID,
		job.TaskID,
		job.Outcome,
		job.CreatedAt,
		job.ProcessedAt,
	)
	if err != nil {
		if uniqueViolation(err, constraintResumeJobsKey) {
			return persistence.NewStoreError("Create", "resume job", job.IdempotencyKey, persistence.ErrDuplicateResumeJob)
		}

		return persistence.NewStoreError("Create", "resume job", job.IdempotencyKey, err)
	}

	return nil
}

func (r *ResumeJobRepository) GetByKey(ctx context.Context, idempotencyKey string) (*models.WorkflowResumeJob, error) {
	query := `
		SELECT id, organization_id, idempotency_key, workflow_execution_id,
		       task_id, outcome, created_at, processed_at
		FROM workflow_resume_jobs
		WHERE idempotency_key = $1
	`

	var job models.WorkflowResumeJob

	err := r.session.q(ctx).QueryRowContext(ctx, query, idempotencyKey).Scan(
		&job.ID,
		&job.OrganizationID,
		&job.IdempotencyKey,
		&job.WorkflowExecutionID,
		&job.TaskID,
		&job.Outcome,
		&job.CreatedAt,
		&job.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByKey", "resume job", idempotencyKey, persistence.ErrResumeJobNotFound)
		}

		return nil, persistence.NewStoreError("GetByKey", "resume job", idempotencyKey, err)
	}

	return &job, nil
}

func (r *ResumeJobRepository) MarkProcessed(ctx context.Context, idempotencyKey string, processedAt time.Time) error {
	query := `
		UPDATE workflow_resume_jobs
		SET processed_at = $2
		WHERE idempotency_key = $1
	`

	result, err := r.session.q(ctx).ExecContext(ctx, query, idempotencyKey, processedAt)
	if err != nil {
		return persistence.NewStoreError("MarkProcessed", "resume job", idempotencyKey, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("MarkProcessed", "resume job", idempotencyKey, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("MarkProcessed", "resume job", idempotencyKey, persistence.ErrResumeJobNotFound)
	}

	return nil
}
