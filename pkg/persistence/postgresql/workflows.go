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

// WorkflowRepository stores automation definitions.
type WorkflowRepository struct {
	session *session
}

const workflowColumns = `
		id
	  , organization_id
	  , name
	  , description
	  , trigger_type
	  , trigger_config
	  , conditions
	  , condition_logic
	  , actions
	  , is_enabled
	  , scope
	  , owner_user_id
	  , current_version
	  , published_version
	  , created_at
	  , updated_at
	  , published_at
	  , deleted_at
`

func (r *WorkflowRepository) List(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id
	`

	return r.queryWorkflows(ctx, "List", query, organizationID)
}

// GetByID returns the workflow even when soft-deleted; executions paused
// before a delete still resolve against it.
func (r *WorkflowRepository) GetByID(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE organization_id = $1 AND id = $2
	`

	row := r.session.q(ctx).QueryRowContext(ctx, query, organizationID, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "workflow", id, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) FindCandidates(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE organization_id = $1
		  AND trigger_type = $2
		  AND deleted_at IS NULL
		  AND is_enabled = true
		  AND published_version > 0
		ORDER BY created_at, id
	`

	return r.queryWorkflows(ctx, "FindCandidates", query, organizationID, triggerType)
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	triggerConfigJSON, err := json.Marshal(workflow.TriggerConfig)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	conditionsJSON, err := json.Marshal(workflow.Conditions)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	actionsJSON, err := json.Marshal(workflow.Actions)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (
			id, organization_id, name, description, trigger_type, trigger_config,
			conditions, condition_logic, actions, is_enabled, scope, owner_user_id,
			current_version, published_version, created_at, updated_at, published_at, deleted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			conditions = EXCLUDED.conditions,
			condition_logic = EXCLUDED.condition_logic,
			actions = EXCLUDED.actions,
			is_enabled = EXCLUDED.is_enabled,
			scope = EXCLUDED.scope,
			owner_user_id = EXCLUDED.owner_user_id,
			current_version = EXCLUDED.current_version,
			published_version = EXCLUDED.published_version,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.session.q(ctx).ExecContext(ctx, query,
		workflow.ID,
		workflow.OrganizationID,
		workflow.Name,
		workflow.Description,
		workflow.TriggerType,
		triggerConfigJSON,
		conditionsJSON,
		workflow.ConditionLogic,
		actionsJSON,
		workflow.IsEnabled,
		workflow.Scope,
		nullString(workflow.OwnerUserID),
		workflow.CurrentVersion,
		workflow.PublishedVersion,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.PublishedAt,
		workflow.DeletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) SoftDelete(ctx context.Context, organizationID, id string) error {
	now := time.Now().UTC()

	query := `
		UPDATE workflows
		SET deleted_at = $3, is_enabled = false, updated_at = $3
		WHERE organization_id = $1 AND id = $2
	`

	result, err := r.session.q(ctx).ExecContext(ctx, query, organizationID, id, now)
	if err != nil {
		return persistence.NewStoreError("SoftDelete", "workflow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("SoftDelete", "workflow", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("SoftDelete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, op, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.session.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError(op, "workflow", "", err)
	}

	defer r.session.closeRows(ctx, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewStoreError(op, "workflow", "", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError(op, "workflow", "", err)
	}

	return workflows, nil
}

func scanWorkflow(scanner interface{ Scan(dest ...any) error }) (*models.Workflow, error) {
	var (
		workflow          models.Workflow
		triggerConfigJSON []byte
		conditionsJSON    []byte
		actionsJSON       []byte
		ownerUserID       sql.NullString
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.OrganizationID,
		&workflow.Name,
		&workflow.Description,
		&workflow.TriggerType,
		&triggerConfigJSON,
		&conditionsJSON,
		&workflow.ConditionLogic,
		&actionsJSON,
		&workflow.IsEnabled,
		&workflow.Scope,
		&ownerUserID,
		&workflow.CurrentVersion,
		&workflow.PublishedVersion,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.PublishedAt,
		&workflow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(triggerConfigJSON, &workflow.TriggerConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}

	if err := json.Unmarshal(conditionsJSON, &workflow.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}

	if err := json.Unmarshal(actionsJSON, &workflow.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	workflow.OwnerUserID = ownerUserID.String

	return &workflow, nil
}

// nullString maps empty strings to NULL so optional columns stay queryable
// with IS NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ScheduleRepository stores the timing rows for scheduled workflows.
type ScheduleRepository struct {
	session *session
}

func (r *ScheduleRepository) Upsert(ctx context.Context, schedule *models.Schedule) error {
	query := `
		INSERT INTO schedules (
			workflow_id, organization_id, cron_expression, timezone,
			next_due_at, active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workflow_id) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression,
			timezone = EXCLUDED.timezone,
			next_due_at = EXCLUDED.next_due_at,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.session.q(ctx).ExecContext(ctx, query,
		schedule.WorkflowID,
		schedule.OrganizationID,
		schedule.CronExpression,
		schedule.Timezone,
		schedule.NextDueAt,
		schedule.Active,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Upsert", "schedule", schedule.WorkflowID, err)
	}

	return nil
}

func (r *ScheduleRepository) Get(ctx context.Context, workflowID string) (*models.Schedule, error) {
	query := `
		SELECT workflow_id, organization_id, cron_expression, timezone,
		       next_due_at, active, created_at, updated_at
		FROM schedules
		WHERE workflow_id = $1
	`

	var schedule models.Schedule

	err := r.session.q(ctx).QueryRowContext(ctx, query, workflowID).Scan(
		&schedule.WorkflowID,
		&schedule.OrganizationID,
		&schedule.CronExpression,
		&schedule.Timezone,
		&schedule.NextDueAt,
		&schedule.Active,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("Get", "schedule", workflowID, persistence.ErrScheduleNotFound)
		}

		return nil, persistence.NewStoreError("Get", "schedule", workflowID, err)
	}

	return &schedule, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, workflowID string) error {
	_, err := r.session.q(ctx).ExecContext(ctx, "DELETE FROM schedules WHERE workflow_id = $1", workflowID)
	if err != nil {
		return persistence.NewStoreError("Delete", "schedule", workflowID, err)
	}

	return nil
}

func (r *ScheduleRepository) ListDue(ctx context.Context, organizationID string, asOf time.Time) ([]*models.Schedule, error) {
	query := `
		SELECT workflow_id, organization_id, cron_expression, timezone,
		       next_due_at, active, created_at, updated_at
		FROM schedules
		WHERE organization_id = $1 AND active = true AND next_due_at <= $2
		ORDER BY next_due_at, workflow_id
	`

	rows, err := r.session.q(ctx).QueryContext(ctx, query, organizationID, asOf)
	if err != nil {
		return nil, persistence.NewStoreError("ListDue", "schedule", organizationID, err)
	}

	defer r.session.closeRows(ctx, rows)

	due := make([]*models.Schedule, 0)

	for rows.Next() {
		var schedule models.Schedule

		err := rows.Scan(
			&schedule.WorkflowID,
			&schedule.OrganizationID,
			&schedule.CronExpression,
			&schedule.Timezone,
			&schedule.NextDueAt,
			&schedule.Active,
			&schedule.CreatedAt,
			&schedule.UpdatedAt,
		)
		if err != nil {
			return nil, persistence.NewStoreError("ListDue", "schedule", organizationID, err)
		}

		due = append(due, &schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("ListDue", "schedule", organizationID, err)
	}

	return due, nil
}
