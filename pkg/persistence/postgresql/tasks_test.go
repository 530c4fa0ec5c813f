package postgresql_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

func testTodoTask(organizationID string) *models.Task {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &models.Task{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Kind:           models.TaskKindTodo,
		Title:          "Call the venue",
		Description:    "Confirm the load-in window",
		EntityType:     "client",
		EntityID:       "client-1",
		AssigneeRole:   "coordinator",
		Status:         models.TaskPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func testApprovalTask(organizationID, executionID string, actionIndex int) *models.Task {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &models.Task{
		ID:                  uuid.NewString(),
		OrganizationID:      organizationID,
		Kind:                models.TaskKindWorkflowApproval,
		Title:               "Approve: send contract email",
		Status:              models.TaskPending,
		WorkflowExecutionID: executionID,
		WorkflowActionIndex: &actionIndex,
		WorkflowActionType:  "send_email",
		WorkflowActionPreview: map[string]any{
			"to":      "client@example.com",
			"subject": "Your contract",
		},
		WorkflowActionPayload: map[string]any{
			"to":      "client@example.com",
			"subject": "Your contract",
			"body":    "Full unredacted body with {{entity.rate}}",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTaskRepository_CreateAndGetByID(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	task := testApprovalTask("org-task-roundtrip", uuid.NewString(), 1)
	dueAt := task.CreatedAt.Add(48 * time.Hour)
	task.DueAt = &dueAt

	require.NoError(t, p.Tasks().Create(ctx, task))

	retrieved, err := p.Tasks().GetByID(ctx, task.OrganizationID, task.ID)
	require.NoError(t, err)

	assert.Equal(t, models.TaskKindWorkflowApproval, retrieved.Kind)
	assert.Equal(t, task.WorkflowExecutionID, retrieved.WorkflowExecutionID)
	require.NotNil(t, retrieved.WorkflowActionIndex)
	assert.Equal(t, 1, *retrieved.WorkflowActionIndex)
	require.NotNil(t, retrieved.DueAt)
	assert.WithinDuration(t, dueAt, *retrieved.DueAt, time.Millisecond)

	// The redacted preview and the raw payload are stored separately; the
	// payload must survive storage even though it never serializes to JSON
	// on the model.
	assert.Equal(t, "Your contract", retrieved.WorkflowActionPreview["subject"])
	assert.Equal(t, "Full unredacted body with {{entity.rate}}", retrieved.WorkflowActionPayload["body"])
	assert.NotContains(t, retrieved.WorkflowActionPreview, "body")

	_, err = p.Tasks().GetByID(ctx, task.OrganizationID, uuid.NewString())
	assert.True(t, persistence.IsNotFound(err))
}

func TestTaskRepository_OneOpenApprovalPerGate(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := "org-task-gate"
	executionID := uuid.NewString()

	first := testApprovalTask(organizationID, executionID, 0)
	require.NoError(t, p.Tasks().Create(ctx, first))

	duplicate := testApprovalTask(organizationID, executionID, 0)
	err := p.Tasks().Create(ctx, duplicate)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrDuplicatePendingApproval)
	assert.True(t, persistence.IsConflict(err))

	// A different action index of the same execution is a different gate.
	otherIndex := testApprovalTask(organizationID, executionID, 1)
	require.NoError(t, p.Tasks().Create(ctx, otherIndex))

	// Once the first gate is resolved the slot frees up.
	resolvedAt := time.Now().UTC().Truncate(time.Microsecond)
	first.Status = models.TaskCompleted
	first.ResolvedAt = &resolvedAt
	first.ResolvedBy = "user:approver-1"
	first.UpdatedAt = resolvedAt
	require.NoError(t, p.Tasks().Update(ctx, first))

	reopened := testApprovalTask(organizationID, executionID, 0)
	require.NoError(t, p.Tasks().Create(ctx, reopened))
}

func TestTaskRepository_UpdateRecordsResolution(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	task := testTodoTask("org-task-update")
	require.NoError(t, p.Tasks().Create(ctx, task))

	resolvedAt := task.CreatedAt.Add(time.Hour)
	task.Status = models.TaskCompleted
	task.ResolvedAt = &resolvedAt
	task.ResolvedBy = "user:closer-1"
	task.ResolutionNote = "Venue confirmed"
	task.UpdatedAt = resolvedAt

	require.NoError(t, p.Tasks().Update(ctx, task))

	retrieved, err := p.Tasks().GetByID(ctx, task.OrganizationID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, retrieved.Status)
	assert.Equal(t, "user:closer-1", retrieved.ResolvedBy)
	assert.Equal(t, "Venue confirmed", retrieved.ResolutionNote)
	require.NotNil(t, retrieved.ResolvedAt)

	missing := testTodoTask(task.OrganizationID)
	err = p.Tasks().Update(ctx, missing)
	assert.True(t, persistence.IsNotFound(err))
}

func TestTaskRepository_ListFiltersByStatusNewestFirst(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := "org-task-list"

	oldest := testTodoTask(organizationID)
	completed := testTodoTask(organizationID)
	completed.Status = models.TaskCompleted
	completed.CreatedAt = oldest.CreatedAt.Add(time.Second)
	newest := testTodoTask(organizationID)
	newest.CreatedAt = oldest.CreatedAt.Add(2 * time.Second)

	for _, task := range []*models.Task{oldest, completed, newest} {
		require.NoError(t, p.Tasks().Create(ctx, task))
	}

	all, err := p.Tasks().List(ctx, organizationID, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, newest.ID, all[0].ID)
	assert.Equal(t, oldest.ID, all[2].ID)

	pending, err := p.Tasks().List(ctx, organizationID, models.TaskPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, newest.ID, pending[0].ID)

	limited, err := p.Tasks().List(ctx, organizationID, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newest.ID, limited[0].ID)
}

func TestTaskRepository_DueQueriesHonorKindStatusAndCutoff(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := "org-task-due"
	now := time.Now().UTC().Truncate(time.Microsecond)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	overdueTodo := testTodoTask(organizationID)
	overdueTodo.DueAt = &past

	futureTodo := testTodoTask(organizationID)
	futureTodo.DueAt = &future

	undatedTodo := testTodoTask(organizationID)

	resolvedTodo := testTodoTask(organizationID)
	resolvedTodo.DueAt = &past
	resolvedTodo.Status = models.TaskCompleted

	expiredApproval := testApprovalTask(organizationID, uuid.NewString(), 0)
	expiredApproval.DueAt = &past

	openApproval := testApprovalTask(organizationID, uuid.NewString(), 0)
	openApproval.DueAt = &future

	for _, task := range []*models.Task{overdueTodo, futureTodo, undatedTodo, resolvedTodo, expiredApproval, openApproval} {
		require.NoError(t, p.Tasks().Create(ctx, task))
	}

	approvalsDue, err := p.Tasks().ListOpenApprovalsDueBefore(ctx, organizationID, now)
	require.NoError(t, err)
	require.Len(t, approvalsDue, 1)
	assert.Equal(t, expiredApproval.ID, approvalsDue[0].ID)

	todosOverdue, err := p.Tasks().ListOpenTodosOverdue(ctx, organizationID, now)
	require.NoError(t, err)
	require.Len(t, todosOverdue, 1)
	assert.Equal(t, overdueTodo.ID, todosOverdue[0].ID)

	// A wider cutoff catches the future to-do as "due soon"; the cutoff
	// boundary itself is exclusive.
	todosDueSoon, err := p.Tasks().ListOpenTodosDueBefore(ctx, organizationID, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, todosDueSoon, 2)
	assert.Equal(t, overdueTodo.ID, todosDueSoon[0].ID)
	assert.Equal(t, futureTodo.ID, todosDueSoon[1].ID)

	atBoundary, err := p.Tasks().ListOpenTodosDueBefore(ctx, organizationID, past)
	require.NoError(t, err)
	assert.Empty(t, atBoundary)
}
