package models

import "time"

// ResumeOutcome is the task resolution a resume job applies to its paused
// execution.
type ResumeOutcome string

const (
	ResumeCompleted ResumeOutcome = "completed"
	ResumeDenied    ResumeOutcome = "denied"
	ResumeExpired   ResumeOutcome = "expired"
)

// WorkflowResumeJob is the idempotency ledger for approval resumes. The
// surrounding queue delivers at least once; the worker checks ProcessedAt
// before acting and the second delivery becomes a no-op. Rows are never
// deleted, they are the audit trail of who resumed what.
type WorkflowResumeJob struct {
	ID                  string        `json:"id"`
	OrganizationID      string        `json:"organization_id"`
	IdempotencyKey      string        `json:"idempotency_key"`
	WorkflowExecutionID string        `json:"workflow_execution_id"`
	TaskID              string        `json:"task_id"`
	Outcome             ResumeOutcome `json:"outcome"`
	CreatedAt           time.Time     `json:"created_at"`
	ProcessedAt         *time.Time    `json:"processed_at,omitempty"`
}

// Processed reports whether the resume has already been applied.
func (j *WorkflowResumeJob) Processed() bool {
	return j.ProcessedAt != nil
}

// ResumeIdempotencyKey derives the stable key for one (execution, task)
// resolution.
func ResumeIdempotencyKey(executionID, taskID string) string {
	return "resume:" + executionID + ":" + taskID
}
