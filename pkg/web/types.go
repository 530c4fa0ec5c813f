package web

import (
	"time"

	"github.com/stagehandhq/stagehand/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
// Workflows are created as unpublished drafts.
type CreateWorkflowRequest struct {
	Name           string                `json:"name"            validate:"required,min=3"`
	Description    string                `json:"description"`
	TriggerType    models.TriggerType    `json:"trigger_type"    validate:"required"`
	TriggerConfig  models.TriggerConfig  `json:"trigger_config"`
	Conditions     []models.Condition    `json:"conditions"`
	ConditionLogic models.ConditionLogic `json:"condition_logic"`
	Actions        []models.ActionSpec   `json:"actions"`
	Scope          models.WorkflowScope  `json:"scope"`
	OwnerUserID    string                `json:"owner_user_id"`
	IsEnabled      *bool                 `json:"is_enabled"`
}

// Workflow builds the domain model the authoring service persists. Enablement
// defaults to on; the draft still does not run until published.
func (r CreateWorkflowRequest) Workflow() *models.Workflow {
	enabled := true
	if r.IsEnabled != nil {
		enabled = *r.IsEnabled
	}

	return &models.Workflow{
		Name:           r.Name,
		Description:    r.Description,
		TriggerType:    r.TriggerType,
		TriggerConfig:  r.TriggerConfig,
		Conditions:     r.Conditions,
		ConditionLogic: r.ConditionLogic,
		Actions:        r.Actions,
		Scope:          r.Scope,
		OwnerUserID:    r.OwnerUserID,
		IsEnabled:      enabled,
	}
}

// UpdateWorkflowRequest represents the request body for updating a workflow
// definition. Fields are optional to support partial updates; ExpectedVersion
// is the optimistic lock and must carry the CurrentVersion the client read.
type UpdateWorkflowRequest struct {
	Name            *string                `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description     *string                `json:"description,omitempty"`
	TriggerType     *models.TriggerType    `json:"trigger_type,omitempty"`
	TriggerConfig   *models.TriggerConfig  `json:"trigger_config,omitempty"`
	Conditions      *[]models.Condition    `json:"conditions,omitempty"`
	ConditionLogic  *models.ConditionLogic `json:"condition_logic,omitempty"`
	Actions         *[]models.ActionSpec   `json:"actions,omitempty"`
	Scope           *models.WorkflowScope  `json:"scope,omitempty"`
	OwnerUserID     *string                `json:"owner_user_id,omitempty"`
	ExpectedVersion int                    `json:"expected_version"      validate:"required,min=1"`
}

// Apply merges the provided fields onto the stored definition.
func (r UpdateWorkflowRequest) Apply(workflow *models.Workflow) {
	if r.Name != nil {
		workflow.Name = *r.Name
	}

	if r.Description != nil {
		workflow.Description = *r.Description
	}

	if r.TriggerType != nil {
		workflow.TriggerType = *r.TriggerType
	}

	if r.TriggerConfig != nil {
		workflow.TriggerConfig = *r.TriggerConfig
	}

	if r.Conditions != nil {
		workflow.Conditions = *r.Conditions
	}

	if r.ConditionLogic != nil {
		workflow.ConditionLogic = *r.ConditionLogic
	}

	if r.Actions != nil {
		workflow.Actions = *r.Actions
	}

	if r.Scope != nil {
		workflow.Scope = *r.Scope
	}

	if r.OwnerUserID != nil {
		workflow.OwnerUserID = *r.OwnerUserID
	}
}

// RollbackWorkflowRequest asks for an older definition version to become the
// new head.
type RollbackWorkflowRequest struct {
	ToVersion int `json:"to_version" validate:"required,min=1"`
}

// ResolveTaskRequest carries the optional resolution note. On deny the note
// is recorded as the denial reason.
type ResolveTaskRequest struct {
	Note string `json:"note"`
}

// TaskResponse is the external shape of a task. The raw pending-action
// parameters never leave the engine; approvers see only the pre-redacted
// preview.
type TaskResponse struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	Kind           string   `json:"kind"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	EntityType     string   `json:"entity_type,omitempty"`
	EntityID       string   `json:"entity_id,omitempty"`
	AssigneeUserID string   `json:"assignee_user_id,omitempty"`
	AssigneeRole   string   `json:"assignee_role,omitempty"`

	Status models.TaskStatus `json:"status"`
	DueAt  *time.Time        `json:"due_at,omitempty"`

	WorkflowExecutionID   string         `json:"workflow_execution_id,omitempty"`
	WorkflowActionIndex   *int           `json:"workflow_action_index,omitempty"`
	WorkflowActionType    string         `json:"workflow_action_type,omitempty"`
	WorkflowActionPreview map[string]any `json:"workflow_action_preview,omitempty"`

	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransformTaskResponse maps a task onto its external shape.
func TransformTaskResponse(task *models.Task) TaskResponse {
	return TaskResponse{
		ID:                    task.ID,
		OrganizationID:        task.OrganizationID,
		Kind:                  string(task.Kind),
		Title:                 task.Title,
		Description:           task.Description,
		EntityType:            task.EntityType,
		EntityID:              task.EntityID,
		AssigneeUserID:        task.AssigneeUserID,
		AssigneeRole:          task.AssigneeRole,
		Status:                task.Status,
		DueAt:                 task.DueAt,
		WorkflowExecutionID:   task.WorkflowExecutionID,
		WorkflowActionIndex:   task.WorkflowActionIndex,
		WorkflowActionType:    task.WorkflowActionType,
		WorkflowActionPreview: task.WorkflowActionPreview,
		ResolvedAt:            task.ResolvedAt,
		ResolvedBy:            task.ResolvedBy,
		ResolutionNote:        task.ResolutionNote,
		CreatedAt:             task.CreatedAt,
		UpdatedAt:             task.UpdatedAt,
	}
}

// TransformTaskResponses maps a task list onto its external shape.
func TransformTaskResponses(tasks []*models.Task) []TaskResponse {
	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, TransformTaskResponse(task))
	}

	return responses
}
