package changeowner

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

func testExecutionContext() models.ExecutionContext {
	return models.ExecutionContext{
		ExecutionID:    "exec-1",
		WorkflowID:     "wf-1",
		OrganizationID: "org-1",
		EventID:        "evt-1",
		Event: models.TriggerEvent{
			Type:       models.TriggerInactivity,
			EntityType: "client",
			EntityID:   "client-9",
		},
	}
}

func TestChangeOwnerAction_Execute_DirectAssignment(t *testing.T) {
	action, err := NewChangeOwnerAction(&models.ChangeOwnerParams{NewOwnerUserID: "user-8"})
	require.NoError(t, err)

	mockEntities := &mocks.MockEntityService{}
	mockEntities.On("ChangeOwner", mock.Anything, "org-1", "client", "client-9", "user-8", models.WorkflowActor("exec-1")).Return(nil)

	result, err := action.Execute(context.Background(), testExecutionContext(), protocol.Dependencies{Entities: mockEntities})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "user-8", result.Output["new_owner_user_id"])
	mockEntities.AssertExpectations(t)
}

func TestChangeOwnerAction_Execute_RoleRotation(t *testing.T) {
	action, err := NewChangeOwnerAction(&models.ChangeOwnerParams{AssigneeRole: "account_manager"})
	require.NoError(t, err)

	mockEntities := &mocks.MockEntityService{}
	mockEntities.On("AssignOwnerFromRole", mock.Anything, "org-1", "client", "client-9", "account_manager", mock.Anything).Return("user-12", nil)

	result, err := action.Execute(context.Background(), testExecutionContext(), protocol.Dependencies{Entities: mockEntities})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "user-12", result.Output["new_owner_user_id"])
	mockEntities.AssertExpectations(t)
}

func TestChangeOwnerAction_Execute_RefusalIsSkipped(t *testing.T) {
	action, err := NewChangeOwnerAction(&models.ChangeOwnerParams{NewOwnerUserID: "user-8"})
	require.NoError(t, err)

	mockEntities := &mocks.MockEntityService{}
	mockEntities.On("ChangeOwner", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("user is deactivated: %w", protocol.ErrBusinessRule))

	result, err := action.Execute(context.Background(), testExecutionContext(), protocol.Dependencies{Entities: mockEntities})

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Contains(t, result.Reason, "user is deactivated")
}

func TestNewChangeOwnerAction_RequiresExactlyOneTarget(t *testing.T) {
	_, err := NewChangeOwnerAction(&models.ChangeOwnerParams{})
	require.Error(t, err)

	_, err = NewChangeOwnerAction(&models.ChangeOwnerParams{NewOwnerUserID: "user-8", AssigneeRole: "ops"})
	require.Error(t, err)
}
