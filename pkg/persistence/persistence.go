// Package persistence provides the storage abstraction for workflows,
// executions, approval tasks, resume ledgers, versioned snapshots and the
// audit chain.
package persistence

import (
	"context"
	"time"

	"github.com/stagehandhq/stagehand/pkg/models"
)

// Persistence exposes one repository per aggregate plus transaction control.
// Implementations: postgresql (production) and memory (tests, local dev).
type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Tasks() TaskRepository
	ResumeJobs() ResumeJobRepository
	EntityVersions() EntityVersionRepository
	Audit() AuditRepository
	Schedules() ScheduleRepository

	// Transaction runs fn with a transaction bound to the context; every
	// repository call made with that context joins it. The engine relies on
	// this so an execution record commits or rolls back together with the
	// business mutation that triggered it.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores automation definitions.
type WorkflowRepository interface {
	List(ctx context.Context, organizationID string) ([]*models.Workflow, error)
	GetByID(ctx context.Context, organizationID, id string) (*models.Workflow, error)

	// FindCandidates returns runnable workflows of the trigger type in
	// deterministic order (created_at, then id). Trigger-config sub-filters
	// are applied by the matcher, not here.
	FindCandidates(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.Workflow, error)

	Save(ctx context.Context, workflow *models.Workflow) error
	SoftDelete(ctx context.Context, organizationID, id string) error
}

// ExecutionRepository stores workflow execution records.
type ExecutionRepository interface {
	// Create inserts a running execution. When the row carries a dedupe key
	// the insert is the claim on that key: a concurrent duplicate surfaces
	// as ErrDuplicateDedupeKey, which callers treat as "already handled".
	Create(ctx context.Context, execution *models.WorkflowExecution) error

	Update(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, organizationID, id string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, organizationID, workflowID string, limit int) ([]*models.WorkflowExecution, error)
	ListByEvent(ctx context.Context, organizationID, eventID string) ([]*models.WorkflowExecution, error)

	// HasTerminalForEvent is the loop guard's best-effort re-delivery check.
	HasTerminalForEvent(ctx context.Context, organizationID, eventID, workflowID string) (bool, error)

	ExistsByDedupeKey(ctx context.Context, organizationID, dedupeKey string) (bool, error)
}

// TaskRepository stores to-do tasks and approval gates.
type TaskRepository interface {
	// Create inserts a task. A second pending approval for the same
	// (execution, action index) surfaces as ErrDuplicatePendingApproval.
	Create(ctx context.Context, task *models.Task) error

	Update(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, organizationID, id string) (*models.Task, error)
	List(ctx context.Context, organizationID string, status models.TaskStatus, limit int) ([]*models.Task, error)

	// Sweep queries. Approvals past due get expired; open to-dos feed the
	// task_due and task_overdue synthesized triggers.
	ListOpenApprovalsDueBefore(ctx context.Context, organizationID string, cutoff time.Time) ([]*models.Task, error)
	ListOpenTodosDueBefore(ctx context.Context, organizationID string, cutoff time.Time) ([]*models.Task, error)
	ListOpenTodosOverdue(ctx context.Context, organizationID string, asOf time.Time) ([]*models.Task, error)
}

// ResumeJobRepository is the approval-resume idempotency ledger.
type ResumeJobRepository interface {
	// Create inserts the ledger row; a duplicate idempotency key surfaces as
	// ErrDuplicateResumeJob so a racing resolver degrades to a no-op.
	Create(ctx context.Context, job *models.WorkflowResumeJob) error

	GetByKey(ctx context.Context, idempotencyKey string) (*models.WorkflowResumeJob, error)
	MarkProcessed(ctx context.Context, idempotencyKey string, processedAt time.Time) error
}

// EntityVersionRepository stores immutable config snapshots.
type EntityVersionRepository interface {
	// Create appends a snapshot; a duplicate (org, type, id, version)
	// surfaces as ErrVersionConflict.
	Create(ctx context.Context, version *models.EntityVersion) error

	Latest(ctx context.Context, organizationID, entityType, entityID string) (*models.EntityVersion, error)
	Get(ctx context.Context, organizationID, entityType, entityID string, version int) (*models.EntityVersion, error)
	List(ctx context.Context, organizationID, entityType, entityID string) ([]*models.EntityVersion, error)
}

// AuditRepository stores the per-organization hash chain. Appends must run
// inside Transaction: LastHashForUpdate locks the chain head so concurrent
// writers serialize per organization.
type AuditRepository interface {
	LastHashForUpdate(ctx context.Context, organizationID string) (string, error)
	Insert(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, organizationID string, limit int) ([]*models.AuditEntry, error)
}

// ScheduleRepository stores the timing rows for scheduled workflows.
type ScheduleRepository interface {
	Upsert(ctx context.Context, schedule *models.Schedule) error
	Get(ctx context.Context, workflowID string) (*models.Schedule, error)
	Delete(ctx context.Context, workflowID string) error
	ListDue(ctx context.Context, organizationID string, asOf time.Time) ([]*models.Schedule, error)
}
