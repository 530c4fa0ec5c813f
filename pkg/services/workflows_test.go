package services

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/audit"
	"github.com/stagehandhq/stagehand/pkg/configstore"
	"github.com/stagehandhq/stagehand/pkg/mocks"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
	"github.com/stagehandhq/stagehand/pkg/persistence/memory"
)

func newWorkflowsService(t *testing.T) (*Workflows, *memory.Persistence) {
	t.Helper()

	p := memory.NewPersistence()

	store, err := configstore.NewStore(p, nil)
	require.NoError(t, err)

	return NewWorkflows(slog.Default(), p, store), p
}

func draftWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:          "Welcome new clients",
		Description:   "Adds a note when a client books",
		TriggerType:   models.TriggerStatusChanged,
		TriggerConfig: models.TriggerConfig{EntityType: "client", ToStage: "booked"},
		Actions: []models.ActionSpec{
			{Kind: models.ActionAddNote, Params: &models.AddNoteParams{Body: "Welcome aboard"}},
		},
		IsEnabled: true,
	}
}

func TestWorkflows_CreateSnapshotsAndAudits(t *testing.T) {
	service, p := newWorkflowsService(t)

	created, err := service.Create(t.Context(), "org-1", draftWorkflow(), models.UserActor("user-7"))
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "org-1", created.OrganizationID)
	assert.Equal(t, 1, created.CurrentVersion)
	assert.Equal(t, 0, created.PublishedVersion)
	assert.Equal(t, models.WorkflowScopeOrg, created.Scope)
	assert.False(t, created.CreatedAt.IsZero())

	history, err := service.History(t.Context(), "org-1", created.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, "user:user-7", history[0].CreatedBy)

	entries, err := p.Audit().List(t.Context(), "org-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EventWorkflowCreated, entries[0].EventType)
	assert.Equal(t, created.ID, entries[0].TargetID)
	require.NoError(t, audit.NewLogger(p).Verify(t.Context(), "org-1"))
}

func TestWorkflows_CreateRejectsInvalidDefinition(t *testing.T) {
	service, p := newWorkflowsService(t)

	invalid := draftWorkflow()
	invalid.Name = "ab"

	_, err := service.Create(t.Context(), "org-1", invalid, models.UserActor("user-7"))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	// Nothing lands when validation fails.
	workflows, err := service.List(t.Context(), "org-1")
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestWorkflows_UpdateBumpsVersionUnderOptimisticLock(t *testing.T) {
	service, _ := newWorkflowsService(t)

	created, err := service.Create(t.Context(), "org-1", draftWorkflow(), models.UserActor("user-7"))
	require.NoError(t, err)

	renamed := draftWorkflow()
	renamed.Name = "Welcome booked clients"

	updated, err := service.Update(t.Context(), "org-1", created.ID, renamed, 1, models.UserActor("user-7"))
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentVersion)
	assert.Equal(t, "Welcome booked clients", updated.Name)

	// A writer holding the stale version loses.
	_, err = service.Update(t.Context(), "org-1", created.ID, draftWorkflow(), 1, models.UserActor("user-2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, persistence.ErrVersionConflict))
	assert.True(t, IsConflictError(err))

	history, err := service.History(t.Context(), "org-1", created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestWorkflows_PublishPromotesAndSyncsSchedule(t *testing.T) {
	service, p := newWorkflowsService(t)

	daily := draftWorkflow()
	daily.Name = "Daily digest"
	daily.TriggerType = models.TriggerScheduled
	daily.TriggerConfig = models.TriggerConfig{Cron: "0 9 * * *"}

	created, err := service.Create(t.Context(), "org-1", daily, models.UserActor("user-7"))
	require.NoError(t, err)

	// Drafts carry no schedule row.
	_, err = p.Schedules().Get(t.Context(), created.ID)
	assert.True(t, persistence.IsNotFound(err))

	published, err := service.Publish(t.Context(), "org-1", created.ID, models.UserActor("user-7"))
	require.NoError(t, err)
	assert.Equal(t, published.CurrentVersion, published.PublishedVersion)
	require.NotNil(t, published.PublishedAt)

	schedule, err := p.Schedules().Get(t.Context(), created.ID)
	require.NoError(t, err)
	assert.True(t, schedule.Active)
	assert.Equal(t, "0 9 * * *", schedule.CronExpression)
	assert.False(t, schedule.NextDueAt.IsZero())

	// Disabling keeps the row but deactivates it.
	_, err = service.SetEnabled(t.Context(), "org-1", created.ID, false, models.UserActor("user-7"))
	require.NoError(t, err)

	schedule, err = p.Schedules().Get(t.Context(), created.ID)
	require.NoError(t, err)
	assert.False(t, schedule.Active)

	// Deleting drops it.
	require.NoError(t, service.Delete(t.Context(), "org-1", created.ID, models.UserActor("user-7")))

	_, err = p.Schedules().Get(t.Context(), created.ID)
	assert.True(t, persistence.IsNotFound(err))
}

func TestWorkflows_PublishRequiresActions(t *testing.T) {
	service, _ := newWorkflowsService(t)

	empty := draftWorkflow()
	empty.Actions = nil

	created, err := service.Create(t.Context(), "org-1", empty, models.UserActor("user-7"))
	require.NoError(t, err)

	_, err = service.Publish(t.Context(), "org-1", created.ID, models.UserActor("user-7"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrActionsRequired))
	assert.True(t, IsValidationError(err))
}

func TestWorkflows_UnpublishStopsMatching(t *testing.T) {
	service, p := newWorkflowsService(t)

	created, err := service.Create(t.Context(), "org-1", draftWorkflow(), models.UserActor("user-7"))
	require.NoError(t, err)

	_, err = service.Publish(t.Context(), "org-1", created.ID, models.UserActor("user-7"))
	require.NoError(t, err)

	candidates, err := p.Workflows().FindCandidates(t.Context(), "org-1", models.TriggerStatusChanged)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)

	unpublished, err := service.Unpublish(t.Context(), "org-1", created.ID, models.UserActor("user-7"))
	require.NoError(t, err)
	assert.Equal(t, 0, unpublished.PublishedVersion)
	assert.Nil(t, unpublished.PublishedAt)

	candidates, err = p.Workflows().FindCandidates(t.Context(), "org-1", models.TriggerStatusChanged)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestWorkflows_RollbackRestoresOldDefinition(t *testing.T) {
	service, p := newWorkflowsService(t)

	created, err := service.Create(t.Context(), "org-1", draftWorkflow(), models.UserActor("user-7"))
	require.NoError(t, err)

	renamed := draftWorkflow()
	renamed.Name = "Welcome booked clients"
	renamed.Actions = []models.ActionSpec{
		{Kind: models.ActionAddNote, Params: &models.AddNoteParams{Body: "Revised welcome"}},
	}

	_, err = service.Update(t.Context(), "org-1", created.ID, renamed, 1, models.UserActor("user-7"))
	require.NoError(t, err)

	restored, err := service.Rollback(t.Context(), "org-1", created.ID, 1, models.UserActor("user-7"))
	require.NoError(t, err)
	assert.Equal(t, "Welcome new clients", restored.Name)
	assert.Equal(t, 3, restored.CurrentVersion)
	require.Len(t, restored.Actions, 1)

	history, err := service.History(t.Context(), "org-1", created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	require.NoError(t, audit.NewLogger(p).Verify(t.Context(), "org-1"))
}

func TestWorkflows_HealthCheckReportsPersistenceState(t *testing.T) {
	mp := mocks.NewMockPersistence()

	store, err := configstore.NewStore(mp, nil)
	require.NoError(t, err)

	service := NewWorkflows(slog.Default(), mp, store)

	mp.On("HealthCheck", mock.Anything).Return(nil).Once()

	message, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	mp.On("HealthCheck", mock.Anything).Return(errors.New("connection refused")).Once()

	message, ok = service.HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Contains(t, message, "connection refused")
}

func TestWorkflows_ListPropagatesStorageErrors(t *testing.T) {
	mp := mocks.NewMockPersistence()

	store, err := configstore.NewStore(mp, nil)
	require.NoError(t, err)

	service := NewWorkflows(slog.Default(), mp, store)

	storageErr := errors.New("relation workflows does not exist")
	mp.MockWorkflows().On("List", mock.Anything, "org-1").Return(nil, storageErr)

	_, err = service.List(t.Context(), "org-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, storageErr))

	mp.MockWorkflows().AssertExpectations(t)
}

func TestWorkflows_DeletedWorkflowReadsAsGone(t *testing.T) {
	service, _ := newWorkflowsService(t)

	created, err := service.Create(t.Context(), "org-1", draftWorkflow(), models.UserActor("user-7"))
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), "org-1", created.ID, models.UserActor("user-7")))

	_, err = service.Get(t.Context(), "org-1", created.ID)
	assert.True(t, IsNotFoundError(err))

	_, err = service.Update(t.Context(), "org-1", created.ID, draftWorkflow(), 1, models.UserActor("user-7"))
	assert.True(t, IsNotFoundError(err))

	workflows, err := service.List(t.Context(), "org-1")
	require.NoError(t, err)
	assert.Empty(t, workflows)
}
