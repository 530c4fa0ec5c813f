package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/mocks"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
	"github.com/stagehandhq/stagehand/pkg/persistence/memory"
)

func TestExecutions_ListAndGet(t *testing.T) {
	p := memory.NewPersistence()
	service := NewExecutions(slog.Default(), p)

	first := &models.WorkflowExecution{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		WorkflowID:     "wf-1",
		EventID:        "evt-1",
		EventSource:    models.SourceUser,
		Status:         models.ExecutionSuccess,
		CreatedAt:      time.Now().UTC().Add(-time.Minute),
	}
	second := &models.WorkflowExecution{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		WorkflowID:     "wf-1",
		EventID:        "evt-2",
		EventSource:    models.SourceUser,
		Status:         models.ExecutionRunning,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, p.Executions().Create(t.Context(), first))
	require.NoError(t, p.Executions().Create(t.Context(), second))

	listed, err := service.ListByWorkflow(t.Context(), "org-1", "wf-1", 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	one, err := service.ListByWorkflow(t.Context(), "org-1", "wf-1", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	got, err := service.Get(t.Context(), "org-1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.EventID, got.EventID)

	_, err = service.Get(t.Context(), "org-1", "missing")
	assert.True(t, persistence.IsNotFound(err))

	byEvent, err := service.ListByEvent(t.Context(), "org-1", "evt-1")
	require.NoError(t, err)
	assert.Len(t, byEvent, 1)
}

func TestExecutions_ClampsListLimit(t *testing.T) {
	mp := mocks.NewMockPersistence()
	service := NewExecutions(slog.Default(), mp)

	mp.MockExecutions().On("ListByWorkflow", mock.Anything, "org-1", "wf-1", defaultExecutionLimit).
		Return([]*models.WorkflowExecution{}, nil).Once()
	mp.MockExecutions().On("ListByWorkflow", mock.Anything, "org-1", "wf-1", maxExecutionLimit).
		Return([]*models.WorkflowExecution{}, nil).Once()

	_, err := service.ListByWorkflow(t.Context(), "org-1", "wf-1", -3)
	require.NoError(t, err)

	_, err = service.ListByWorkflow(t.Context(), "org-1", "wf-1", 1000)
	require.NoError(t, err)

	mp.MockExecutions().AssertExpectations(t)
}
