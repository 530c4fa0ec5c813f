package models

import "time"

// TaskKind separates ordinary to-do tasks from workflow approval gates.
type TaskKind string

const (
	TaskKindTodo             TaskKind = "todo"
	TaskKindWorkflowApproval TaskKind = "workflow_approval"
)

// TaskStatus is the task lifecycle. Approval gates move pending ->
// completed/denied by user resolution or -> expired by the expiry sweep.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDenied     TaskStatus = "denied"
	TaskExpired    TaskStatus = "expired"
)

// Task is both a CRM to-do (created by users or the create_task action) and,
// when Kind is workflow_approval, the human gate a paused execution waits on.
//
// WorkflowActionPayload holds the raw pending action parameters and is
// internal-only: the json:"-" tag keeps it out of every serialized surface.
// External readers get WorkflowActionPreview, which the engine pre-redacts.
// At most one pending approval exists per (execution, action index),
// enforced by a partial unique index.
type Task struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	Kind           TaskKind `json:"kind"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	EntityType     string   `json:"entity_type,omitempty"`
	EntityID       string   `json:"entity_id,omitempty"`
	AssigneeUserID string   `json:"assignee_user_id,omitempty"`
	AssigneeRole   string   `json:"assignee_role,omitempty"`

	Status TaskStatus `json:"status"`
	DueAt  *time.Time `json:"due_at,omitempty"`

	WorkflowExecutionID   string         `json:"workflow_execution_id,omitempty"`
	WorkflowActionIndex   *int           `json:"workflow_action_index,omitempty"`
	WorkflowActionType    string         `json:"workflow_action_type,omitempty"`
	WorkflowActionPreview map[string]any `json:"workflow_action_preview,omitempty"`
	WorkflowActionPayload map[string]any `json:"-"`

	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsApprovalGate reports whether this task blocks a paused execution.
func (t *Task) IsApprovalGate() bool {
	return t.Kind == TaskKindWorkflowApproval
}

// Open reports whether the task can still be resolved.
func (t *Task) Open() bool {
	return t.Status == TaskPending || t.Status == TaskInProgress
}

// Overdue reports whether the task has a due date in the past.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueAt != nil && t.DueAt.Before(now)
}
