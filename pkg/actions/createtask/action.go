package createtask

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
	"github.com/stagehandhq/stagehand/pkg/template"
)

// CreateTaskAction creates a to-do task on the triggering record.
type CreateTaskAction struct {
	params *models.CreateTaskParams
}

// NewCreateTaskAction creates a new task action from typed parameters.
func NewCreateTaskAction(params models.ActionParams) (*CreateTaskAction, error) {
	taskParams, ok := params.(*models.CreateTaskParams)
	if !ok {
		return nil, fmt.Errorf("expected create_task params, got %T", params)
	}

	if err := taskParams.Validate(); err != nil {
		return nil, err
	}

	return &CreateTaskAction{params: taskParams}, nil
}

// Execute renders the task fields and creates the task. The task goes to the
// configured role's queue, or to the record owner when no role is set.
func (a *CreateTaskAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, deps protocol.Dependencies) (models.ActionResult, error) {
	result := models.ActionResult{ActionType: string(models.ActionCreateTask)}

	title, err := template.RenderString(a.params.Title, &executionCtx)
	if err != nil {
		return result, fmt.Errorf("failed to render task title: %w", err)
	}

	description, err := template.RenderString(a.params.Description, &executionCtx)
	if err != nil {
		return result, fmt.Errorf("failed to render task description: %w", err)
	}

	event := executionCtx.Event
	now := time.Now().UTC()

	task := &models.Task{
		ID:             uuid.New().String(),
		OrganizationID: executionCtx.OrganizationID,
		Kind:           models.TaskKindTodo,
		Title:          title,
		Description:    description,
		EntityType:     event.EntityType,
		EntityID:       event.EntityID,
		Status:         models.TaskPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if a.params.AssigneeRole != "" {
		task.AssigneeRole = a.params.AssigneeRole
	} else {
		task.AssigneeUserID = event.OwnerUserID
	}

	if a.params.DueInHours > 0 {
		dueAt := now.Add(time.Duration(a.params.DueInHours) * time.Hour)
		task.DueAt = &dueAt
	}

	if err := deps.Tasks.CreateTask(ctx, task); err != nil {
		return result, fmt.Errorf("failed to create task: %w", err)
	}

	result.Success = true
	result.Description = fmt.Sprintf("created task %q", title)
	result.Output = map[string]any{"task_id": task.ID}

	return result, nil
}
