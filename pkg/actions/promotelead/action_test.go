package promotelead

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/mocks"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

func leadExecutionContext(entityType string) models.ExecutionContext {
	return models.ExecutionContext{
		ExecutionID:    "exec-1",
		WorkflowID:     "wf-1",
		OrganizationID: "org-1",
		EventID:        "evt-1",
		Event: models.TriggerEvent{
			Type:       models.TriggerIntakeLeadCreated,
			EntityType: entityType,
			EntityID:   "lead-4",
		},
	}
}

func TestPromoteLeadAction_Execute_PromotesLead(t *testing.T) {
	action, err := NewPromoteLeadAction(&models.PromoteLeadParams{TargetStage: "new"})
	require.NoError(t, err)

	mockEntities := &mocks.MockEntityService{}
	mockEntities.On("PromoteIntakeLead", mock.Anything, "org-1", "lead-4", "new", models.WorkflowActor("exec-1")).
		Return(models.EntityRef{EntityType: "client", EntityID: "client-77"}, nil)

	result, err := action.Execute(context.Background(), leadExecutionContext(EntityTypeIntakeLead), protocol.Dependencies{Entities: mockEntities})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "client-77", result.Output["client_id"])
	mockEntities.AssertExpectations(t)
}

func TestPromoteLeadAction_Execute_WrongEntityTypeIsSkipped(t *testing.T) {
	action, err := NewPromoteLeadAction(&models.PromoteLeadParams{})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), leadExecutionContext("client"), protocol.Dependencies{})

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Contains(t, result.Reason, "not an intake lead")
}

func TestPromoteLeadAction_Execute_AlreadyPromotedIsSkipped(t *testing.T) {
	action, err := NewPromoteLeadAction(&models.PromoteLeadParams{})
	require.NoError(t, err)

	mockEntities := &mocks.MockEntityService{}
	mockEntities.On("PromoteIntakeLead", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.EntityRef{}, fmt.Errorf("lead already promoted: %w", protocol.ErrBusinessRule))

	result, err := action.Execute(context.Background(), leadExecutionContext(EntityTypeIntakeLead), protocol.Dependencies{Entities: mockEntities})

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Contains(t, result.Reason, "already promoted")
}
