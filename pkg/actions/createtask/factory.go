// Package createtask provides the action that creates to-do tasks.
package createtask

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// CreateTaskActionFactory creates CreateTaskAction instances.
type CreateTaskActionFactory struct{}

// Create creates a new CreateTaskAction instance.
func (f *CreateTaskActionFactory) Create(ctx context.Context, params models.ActionParams) (protocol.Action, error) {
	return NewCreateTaskAction(params)
}

// ID returns the factory ID.
func (f *CreateTaskActionFactory) ID() string {
	return string(models.ActionCreateTask)
}

// Name returns the factory name.
func (f *CreateTaskActionFactory) Name() string {
	return "Create Task"
}

// Description returns the factory description.
func (f *CreateTaskActionFactory) Description() string {
	return "Creates a to-do task linked to the triggering record, assigned to its owner or to a role"
}

// Schema returns the JSON schema for create_task configuration.
func (f *CreateTaskActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Task title. Supports merge fields.",
				"examples":    []string{"Call {{.entity.name}} about their quote"},
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Task detail. Supports merge fields.",
			},
			"assignee_role": map[string]any{
				"type":        "string",
				"description": "Role whose queue receives the task. Defaults to the record owner.",
			},
			"due_in_hours": map[string]any{
				"type":        "integer",
				"description": "Hours from creation until the task is due",
				"minimum":     0,
			},
		},
		"required": []string{"title"},
	}
}

// NewCreateTaskActionFactory creates a new factory instance.
func NewCreateTaskActionFactory() protocol.ActionFactory {
	return &CreateTaskActionFactory{}
}
