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

// TaskRepository stores to-do tasks and approval gates. The raw action
// payload rides a dedicated column so the model's public JSON shape never
// carries it.
type TaskRepository struct {
	session *session
}

const taskColumns = `
		id
	  , organization_id
	  , kind
	  , title
	  , description
	  , entity_type
	  , entity_id
	  , assignee_user_id
	  , assignee_role
	  , status
	  , due_at
	  , workflow_execution_id
	  , workflow_action_index
	  , workflow_action_type
	  , workflow_action_preview
	  , action_payload
	  , resolved_at
	  , resolved_by
	  , resolution_note
	  , created_at
	  , updated_at
`

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	previewJSON, payloadJSON, err := marshalTaskFields(task)
	if err != nil {
		return persistence.NewStoreError("Create", "task", task.ID, err)
	}

	query := `
		INSERT INTO tasks (
			id, organization_id, kind, title, description, entity_type, entity_id,
			assignee_user_id, assignee_role, status, due_at, workflow_execution_id,
			workflow_action_index, workflow_action_type, workflow_action_preview,
			action_payload, resolved_at, resolved_by, resolution_note, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err = r.session.q(ctx).ExecContext(ctx, query,
		task.ID,
		task.OrganizationID,
		task.Kind,
		task.Title,
		task.Description,
		task.EntityType,
		task.EntityID,
		task.AssigneeUserID,
		task.AssigneeRole,
		task.Status,
		task.DueAt,
		nullString(task.WorkflowExecutionID),
		task.WorkflowActionIndex,
		task.WorkflowActionType,
		previewJSON,
		payloadJSON,
		task.ResolvedAt,
		task.ResolvedBy,
		task.ResolutionNote,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err, constraintTasksOpenApproval) {
			return persistence.NewStoreError("Create", "task", task.ID, persistence.ErrDuplicatePendingApproval)
		}

		return persistence.NewStoreError("Create", "task", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	previewJSON, payloadJSON, err := marshalTaskFields(task)
	if err != nil {
		return persistence.NewStoreError("Update", "task", task.ID, err)
	}

	query := `
		UPDATE tasks SET
			title = $3,
			description = $4,
			assignee_user_id = $5,
			assignee_role = $6,
			status = $7,
			due_at = $8,
			workflow_action_preview = $9,
			action_payload = $10,
			resolved_at = $11,
			resolved_by = $12,
			resolution_note = $13,
			updated_at = $14
		WHERE organization_id = $1 AND id = $2
	`

	result, err := r.session.q(ctx).ExecContext(ctx, query,
		task.OrganizationID,
		task.ID,
		task.Title,
		task.Description,
		task.AssigneeUserID,
		task.AssigneeRole,
		task.Status,
		task.DueAt,
		previewJSON,
		payloadJSON,
		task.ResolvedAt,
		task.ResolvedBy,
		task.ResolutionNote,
		task.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Update", "task", task.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Update", "task", task.ID, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Update", "task", task.ID, persistence.ErrTaskNotFound)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, organizationID, id string) (*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE organization_id = $1 AND id = $2
	`

	row := r.session.q(ctx).QueryRowContext(ctx, query, organizationID, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "task", id, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "task", id, err)
	}

	return task, nil
}

// List returns newest first. An empty status lists all statuses.
func (r *TaskRepository) List(ctx context.Context, organizationID string, status models.TaskStatus, limit int) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE organization_id = $1
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
	`

	args := []any{organizationID, string(status)}

	if limit > 0 {
		query += ` LIMIT $3`

		args = append(args, limit)
	}

	return r.queryTasks(ctx, "List", query, args...)
}

func (r *TaskRepository) ListOpenApprovalsDueBefore(ctx context.Context, organizationID string, cutoff time.Time) ([]*models.Task, error) {
	return r.listDue(ctx, "ListOpenApprovalsDueBefore", organizationID, models.TaskKindWorkflowApproval, cutoff)
}

func (r *TaskRepository) ListOpenTodosDueBefore(ctx context.Context, organizationID string, cutoff time.Time) ([]*models.Task, error) {
	return r.listDue(ctx, "ListOpenTodosDueBefore", organizationID, models.TaskKindTodo, cutoff)
}

func (r *TaskRepository) ListOpenTodosOverdue(ctx context.Context, organizationID string, asOf time.Time) ([]*models.Task, error) {
	return r.listDue(ctx, "ListOpenTodosOverdue", organizationID, models.TaskKindTodo, asOf)
}

func (r *TaskRepository) listDue(ctx context.Context, op, organizationID string, kind models.TaskKind, cutoff time.Time) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE organization_id = $1
		  AND kind = $2
		  AND status IN ('pending', 'in_progress')
		  AND due_at IS NOT NULL
		  AND due_at < $3
		ORDER BY due_at, id
	`

	return r.queryTasks(ctx, op, query, organizationID, kind, cutoff)
}

func (r *TaskRepository) queryTasks(ctx context.Context, op, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.session.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError(op, "task", "", err)
	}

	defer r.session.closeRows(ctx, rows)

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, persistence.NewStoreError(op, "task", "", err)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError(op, "task", "", err)
	}

	return tasks, nil
}

func marshalTaskFields(task *models.Task) ([]byte, []byte, error) {
	previewJSON, err := json.Marshal(task.WorkflowActionPreview)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal action preview: %w", err)
	}

	payloadJSON, err := json.Marshal(task.WorkflowActionPayload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal action payload: %w", err)
	}

	return previewJSON, payloadJSON, nil
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*models.Task, error) {
	var (
		task        models.Task
		executionID sql.NullString
		previewJSON []byte
		payloadJSON []byte
	)

	err := scanner.Scan(
		&task.ID,
		&task.OrganizationID,
		&task.Kind,
		&task.Title,
		&task.Description,
		&task.EntityType,
		&task.EntityID,
		&task.AssigneeUserID,
		&task.AssigneeRole,
		&task.Status,
		&task.DueAt,
		&executionID,
		&task.WorkflowActionIndex,
		&task.WorkflowActionType,
		&previewJSON,
		&payloadJSON,
		&task.ResolvedAt,
		&task.ResolvedBy,
		&task.ResolutionNote,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.WorkflowExecutionID = executionID.String

	if previewJSON != nil {
		if err := json.Unmarshal(previewJSON, &task.WorkflowActionPreview); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action preview: %w", err)
		}
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &task.WorkflowActionPayload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action payload: %w", err)
		}
	}

	return &task, nil
}
