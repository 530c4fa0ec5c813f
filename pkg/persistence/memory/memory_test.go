package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

func TestExecutionRepository_CreateClaimsDedupeKey(t *testing.T) {
	p := NewPersistence()
	key := "sched:wf-1:1700000000"

	first := &models.WorkflowExecution{
		ID:             "exec-1",
		OrganizationID: "org-1",
		WorkflowID:     "wf-1",
		DedupeKey:      &key,
		Status:         models.ExecutionRunning,
		StartedAt:      time.Now().UTC(),
	}
	require.NoError(t, p.Executions().Create(t.Context(), first))

	second := &models.WorkflowExecution{
		ID:             "exec-2",
		OrganizationID: "org-1",
		WorkflowID:     "wf-2",
		DedupeKey:      &key,
		Status:         models.ExecutionRunning,
		StartedAt:      time.Now().UTC(),
	}

	err := p.Executions().Create(t.Context(), second)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrDuplicateDedupeKey)
	assert.True(t, persistence.IsConflict(err))

	exists, err := p.Executions().ExistsByDedupeKey(t.Context(), "org-1", key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExecutionRepository_DedupeKeyScopedPerOrganization(t *testing.T) {
	p := NewPersistence()
	key := "task_due:task-9"

	for i, org := range []string{"org-1", "org-2"} {
		execution := &models.WorkflowExecution{
			ID:             "exec-" + org,
			OrganizationID: org,
			WorkflowID:     "wf-1",
			DedupeKey:      &key,
			Status:         models.ExecutionRunning,
			StartedAt:      time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, p.Executions().Create(t.Context(), execution))
	}
}

func TestExecutionRepository_ReturnsDeepCopies(t *testing.T) {
	p := NewPersistence()

	execution := &models.WorkflowExecution{
		ID:             "exec-1",
		OrganizationID: "org-1",
		WorkflowID:     "wf-1",
		Status:         models.ExecutionRunning,
		TriggerEvent:   map[string]any{"stage": "intake"},
		StartedAt:      time.Now().UTC(),
	}
	require.NoError(t, p.Executions().Create(t.Context(), execution))

	loaded, err := p.Executions().GetByID(t.Context(), "org-1", "exec-1")
	require.NoError(t, err)

	loaded.Status = models.ExecutionFailed
	loaded.TriggerEvent["stage"] = "mutated"

	reloaded, err := p.Executions().GetByID(t.Context(), "org-1", "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionRunning, reloaded.Status)
	assert.Equal(t, "intake", reloaded.TriggerEvent["stage"])
}

func TestTaskRepository_RejectsSecondOpenApproval(t *testing.T) {
	p := NewPersistence()
	actionIndex := 2

	gate := &models.Task{
		ID:                  "task-1",
		OrganizationID:      "org-1",
		Kind:                models.TaskKindWorkflowApproval,
		Title:               "Approval required: Discount",
		Status:              models.TaskPending,
		WorkflowExecutionID: "exec-1",
		WorkflowActionIndex: &actionIndex,
	}
	require.NoError(t, p.Tasks().Create(t.Context(), gate))

	duplicate := &models.Task{
		ID:                  "task-2",
		OrganizationID:      "org-1",
		Kind:                models.TaskKindWorkflowApproval,
		Title:               "Approval required: Discount",
		Status:              models.TaskPending,
		WorkflowExecutionID: "exec-1",
		WorkflowActionIndex: &actionIndex,
	}

	err := p.Tasks().Create(t.Context(), duplicate)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrDuplicatePendingApproval)

	// Resolving the first gate frees the slot.
	gate.Status = models.TaskDenied
	require.NoError(t, p.Tasks().Update(t.Context(), gate))
	require.NoError(t, p.Tasks().Create(t.Context(), duplicate))
}

func TestTaskRepository_PreservesActionPayload(t *testing.T) {
	p := NewPersistence()
	actionIndex := 0

	task := &models.Task{
		ID:                  "task-1",
		OrganizationID:      "org-1",
		Kind:                models.TaskKindWorkflowApproval,
		Status:              models.TaskPending,
		WorkflowExecutionID: "exec-1",
		WorkflowActionIndex: &actionIndex,
		WorkflowActionPreview: map[string]any{
			"reason": "bulk discount over threshold",
		},
		WorkflowActionPayload: map[string]any{
			"gated_actions": []any{map[string]any{"type": "send_email"}},
		},
	}
	require.NoError(t, p.Tasks().Create(t.Context(), task))

	loaded, err := p.Tasks().GetByID(t.Context(), "org-1", "task-1")
	require.NoError(t, err)
	require.NotNil(t, loaded.WorkflowActionPayload)
	assert.Contains(t, loaded.WorkflowActionPayload, "gated_actions")
	assert.Equal(t, "bulk discount over threshold", loaded.WorkflowActionPreview["reason"])
}

func TestTaskRepository_SweepQueries(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	overdue := now.Add(-2 * time.Hour)
	dueSoon := now.Add(30 * time.Minute)
	farOut := now.Add(72 * time.Hour)

	tasks := []*models.Task{
		{ID: "todo-overdue", OrganizationID: "org-1", Kind: models.TaskKindTodo, Status: models.TaskPending, DueAt: &overdue},
		{ID: "todo-due-soon", OrganizationID: "org-1", Kind: models.TaskKindTodo, Status: models.TaskPending, DueAt: &dueSoon},
		{ID: "todo-far-out", OrganizationID: "org-1", Kind: models.TaskKindTodo, Status: models.TaskPending, DueAt: &farOut},
		{ID: "todo-done", OrganizationID: "org-1", Kind: models.TaskKindTodo, Status: models.TaskCompleted, DueAt: &overdue},
		{ID: "gate-expired", OrganizationID: "org-1", Kind: models.TaskKindWorkflowApproval, Status: models.TaskPending, DueAt: &overdue},
	}
	for _, task := range tasks {
		require.NoError(t, p.Tasks().Create(t.Context(), task))
	}

	approvals, err := p.Tasks().ListOpenApprovalsDueBefore(t.Context(), "org-1", now)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "gate-expired", approvals[0].ID)

	todosDue, err := p.Tasks().ListOpenTodosDueBefore(t.Context(), "org-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, todosDue, 2)
	assert.Equal(t, "todo-overdue", todosDue[0].ID)
	assert.Equal(t, "todo-due-soon", todosDue[1].ID)

	todosOverdue, err := p.Tasks().ListOpenTodosOverdue(t.Context(), "org-1", now)
	require.NoError(t, err)
	require.Len(t, todosOverdue, 1)
	assert.Equal(t, "todo-overdue", todosOverdue[0].ID)
}

func TestResumeJobRepository_DuplicateKeyRejected(t *testing.T) {
	p := NewPersistence()

	job := &models.WorkflowResumeJob{
		ID:                  "job-1",
		OrganizationID:      "org-1",
		IdempotencyKey:      models.ResumeIdempotencyKey("exec-1", "task-1"),
		WorkflowExecutionID: "exec-1",
		TaskID:              "task-1",
		Outcome:             models.ResumeCompleted,
		CreatedAt:           time.Now().UTC(),
	}
	require.NoError(t, p.ResumeJobs().Create(t.Context(), job))

	err := p.ResumeJobs().Create(t.Context(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrDuplicateResumeJob)

	processedAt := time.Now().UTC()
	require.NoError(t, p.ResumeJobs().MarkProcessed(t.Context(), job.IdempotencyKey, processedAt))

	loaded, err := p.ResumeJobs().GetByKey(t.Context(), job.IdempotencyKey)
	require.NoError(t, err)
	assert.True(t, loaded.Processed())
}

func TestEntityVersionRepository_VersionConflict(t *testing.T) {
	p := NewPersistence()

	version := &models.EntityVersion{
		ID:             "ver-1",
		OrganizationID: "org-1",
		EntityType:     "workflow",
		EntityID:       "wf-1",
		Version:        1,
		Payload:        []byte(`{"name":"Welcome"}`),
		Checksum:       "abc",
		CreatedBy:      "user:u-1",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, p.EntityVersions().Create(t.Context(), version))

	dup := *version
	dup.ID = "ver-2"

	err := p.EntityVersions().Create(t.Context(), &dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)

	dup.Version = 2
	require.NoError(t, p.EntityVersions().Create(t.Context(), &dup))

	latest, err := p.EntityVersions().Latest(t.Context(), "org-1", "workflow", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, []byte(`{"name":"Welcome"}`), latest.Payload)
}

func TestAuditRepository_ChainOrderAndLimit(t *testing.T) {
	p := NewPersistence()

	last, err := p.Audit().LastHashForUpdate(t.Context(), "org-1")
	require.NoError(t, err)
	assert.Empty(t, last)

	for i, hash := range []string{"h1", "h2", "h3"} {
		entry := &models.AuditEntry{
			ID:             hash,
			OrganizationID: "org-1",
			EventType:      "workflow.updated",
			EntryHash:      hash,
			CreatedAt:      time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, p.Audit().Insert(t.Context(), entry))
	}

	last, err = p.Audit().LastHashForUpdate(t.Context(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "h3", last)

	full, err := p.Audit().List(t.Context(), "org-1", 0)
	require.NoError(t, err)
	require.Len(t, full, 3)
	assert.Equal(t, "h1", full[0].EntryHash)

	recent, err := p.Audit().List(t.Context(), "org-1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "h2", recent[0].EntryHash)
	assert.Equal(t, "h3", recent[1].EntryHash)
}

func TestWorkflowRepository_FindCandidatesOrderedAndFiltered(t *testing.T) {
	p := NewPersistence()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	workflows := []*models.Workflow{
		{ID: "wf-b", OrganizationID: "org-1", Name: "Second", TriggerType: models.TriggerStatusChanged, IsEnabled: true, CurrentVersion: 1, PublishedVersion: 1, CreatedAt: base.Add(time.Hour)},
		{ID: "wf-a", OrganizationID: "org-1", Name: "First", TriggerType: models.TriggerStatusChanged, IsEnabled: true, CurrentVersion: 1, PublishedVersion: 1, CreatedAt: base},
		{ID: "wf-disabled", OrganizationID: "org-1", Name: "Disabled", TriggerType: models.TriggerStatusChanged, IsEnabled: false, CurrentVersion: 1, PublishedVersion: 1, CreatedAt: base},
		{ID: "wf-draft", OrganizationID: "org-1", Name: "Draft", TriggerType: models.TriggerStatusChanged, IsEnabled: true, CurrentVersion: 1, CreatedAt: base},
		{ID: "wf-other-type", OrganizationID: "org-1", Name: "Other", TriggerType: models.TriggerFormSubmitted, IsEnabled: true, CurrentVersion: 1, PublishedVersion: 1, CreatedAt: base},
		{ID: "wf-other-org", OrganizationID: "org-2", Name: "Elsewhere", TriggerType: models.TriggerStatusChanged, IsEnabled: true, CurrentVersion: 1, PublishedVersion: 1, CreatedAt: base},
	}
	for _, workflow := range workflows {
		require.NoError(t, p.Workflows().Save(t.Context(), workflow))
	}

	candidates, err := p.Workflows().FindCandidates(t.Context(), "org-1", models.TriggerStatusChanged)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "wf-a", candidates[0].ID)
	assert.Equal(t, "wf-b", candidates[1].ID)
}

func TestWorkflowRepository_SoftDeleteHidesFromCandidates(t *testing.T) {
	p := NewPersistence()

	workflow := &models.Workflow{
		ID:               "wf-1",
		OrganizationID:   "org-1",
		Name:             "Welcome",
		TriggerType:      models.TriggerStatusChanged,
		IsEnabled:        true,
		CurrentVersion:   1,
		PublishedVersion: 1,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, p.Workflows().Save(t.Context(), workflow))
	require.NoError(t, p.Workflows().SoftDelete(t.Context(), "org-1", "wf-1"))

	candidates, err := p.Workflows().FindCandidates(t.Context(), "org-1", models.TriggerStatusChanged)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	// The record itself survives for history resolution.
	loaded, err := p.Workflows().GetByID(t.Context(), "org-1", "wf-1")
	require.NoError(t, err)
	assert.NotNil(t, loaded.DeletedAt)
}

func TestScheduleRepository_ListDue(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	schedules := []*models.Schedule{
		{WorkflowID: "wf-due", OrganizationID: "org-1", CronExpression: "0 9 * * *", NextDueAt: now.Add(-time.Minute), Active: true},
		{WorkflowID: "wf-later", OrganizationID: "org-1", CronExpression: "0 9 * * *", NextDueAt: now.Add(time.Hour), Active: true},
		{WorkflowID: "wf-inactive", OrganizationID: "org-1", CronExpression: "0 9 * * *", NextDueAt: now.Add(-time.Minute), Active: false},
		{WorkflowID: "wf-other-org", OrganizationID: "org-2", CronExpression: "0 9 * * *", NextDueAt: now.Add(-time.Minute), Active: true},
	}
	for _, schedule := range schedules {
		require.NoError(t, p.Schedules().Upsert(t.Context(), schedule))
	}

	due, err := p.Schedules().ListDue(t.Context(), "org-1", now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "wf-due", due[0].WorkflowID)
}

func TestPersistence_TransactionReentrant(t *testing.T) {
	p := NewPersistence()

	err := p.Transaction(t.Context(), func(ctx context.Context) error {
		return p.Transaction(ctx, func(context.Context) error {
			return nil
		})
	})
	require.NoError(t, err)
}

func TestPersistence_HealthCheckAfterClose(t *testing.T) {
	p := NewPersistence()
	require.NoError(t, p.HealthCheck(t.Context()))
	require.NoError(t, p.Close(t.Context()))
	assert.Error(t, p.HealthCheck(t.Context()))
}
