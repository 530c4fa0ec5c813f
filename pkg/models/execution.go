package models

import "time"

// ExecutionStatus is the lifecycle state of one workflow execution.
type ExecutionStatus string

const (
	ExecutionRunning  ExecutionStatus = "running"
	ExecutionSuccess  ExecutionStatus = "success"
	ExecutionFailed   ExecutionStatus = "failed"
	ExecutionPaused   ExecutionStatus = "paused"
	ExecutionCanceled ExecutionStatus = "canceled"
	ExecutionExpired  ExecutionStatus = "expired"
)

// Terminal reports whether the status can never change again.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionSuccess, ExecutionFailed, ExecutionCanceled, ExecutionExpired:
		return true
	case ExecutionRunning, ExecutionPaused:
		return false
	}

	return false
}

// ActionResult is the per-action outcome recorded on the execution, in list
// order. Expected business-level failures are Skipped entries with a Reason,
// never errors; Queued marks actions whose external side effect was handed
// to the job queue rather than performed inline.
type ActionResult struct {
	Success     bool           `json:"success"`
	ActionType  string         `json:"action_type"`
	Skipped     bool           `json:"skipped"`
	Reason      string         `json:"reason,omitempty"`
	Queued      bool           `json:"queued"`
	Description string         `json:"description,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
}

// SkippedResult is the entry for a step a business rule refused. The step
// counts as handled; nothing failed.
func SkippedResult(actionType ActionType, reason string) ActionResult {
	return ActionResult{
		Success:    true,
		ActionType: string(actionType),
		Skipped:    true,
		Reason:     reason,
	}
}

// WorkflowExecution is the audit record of one workflow's attempt to run
// against one event: exactly one row per (workflow, triggering event)
// pairing, created in running state (the insert claims the dedupe key) and
// updated once to its outcome.
type WorkflowExecution struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	WorkflowID     string      `json:"workflow_id"`
	EventID        string      `json:"event_id"`
	Depth          int         `json:"depth"`
	EventSource    EventSource `json:"event_source"`
	EntityType     string      `json:"entity_type"`
	EntityID       string      `json:"entity_id"`

	// TriggerEvent snapshots the event payload the conditions evaluated
	// against, for audit replay.
	TriggerEvent map[string]any `json:"trigger_event,omitempty"`

	// DedupeKey is unique per organization when set; only the first
	// execution row of a trigger call carries it.
	DedupeKey *string `json:"dedupe_key,omitempty"`

	MatchedConditions bool           `json:"matched_conditions"`
	ActionsExecuted   []ActionResult `json:"actions_executed"`

	Status       ExecutionStatus `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	DurationMs   int64           `json:"duration_ms"`

	// Pause bookkeeping, set while Status is paused. The resume job uses
	// PausedAtActionIndex to re-enter the action loop and PausedTaskID to
	// reject stale resumes.
	PausedAtActionIndex *int    `json:"paused_at_action_index,omitempty"`
	PausedTaskID        *string `json:"paused_task_id,omitempty"`
	DenialReason        string  `json:"denial_reason,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Paused reports whether the execution is waiting on an approval task.
func (e *WorkflowExecution) Paused() bool {
	return e.Status == ExecutionPaused
}

// PausedOn reports whether the execution is paused specifically on taskID.
func (e *WorkflowExecution) PausedOn(taskID string) bool {
	return e.Paused() && e.PausedTaskID != nil && *e.PausedTaskID == taskID
}
