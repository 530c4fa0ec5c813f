package requestapproval

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
			Type:        models.TriggerStatusChanged,
			EntityType:  "client",
			EntityID:    "client-9",
			Entity:      map[string]any{"name": "Acme Logistics"},
			OwnerUserID: "user-3",
		},
	}
}

func TestRequestApprovalAction_Execute_RecordsGrantedApproval(t *testing.T) {
	action, err := NewRequestApprovalAction(&models.RequestApprovalParams{ApproverRole: "supervisor", ExpiresInHours: 24})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), testExecutionContext(), protocol.Dependencies{})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	assert.Equal(t, "request_approval", result.ActionType)
	assert.Equal(t, "approval granted", result.Description)
	assert.Equal(t, "supervisor", result.Output["approver_role"])
}

func TestNewApprovalTask_BuildsPendingGate(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1", OrganizationID: "org-1", Name: "High value deal gate"}
	params := &models.RequestApprovalParams{
		ApproverRole:   "supervisor",
		Reason:         "{{.entity.name}} is above the discount threshold",
		ExpiresInHours: 48,
	}
	gated := []models.ActionSpec{
		{Kind: models.ActionSendEmail, Params: &models.SendEmailParams{Subject: "Discount approved", To: "dana@example.com"}},
	}

	task, err := NewApprovalTask(workflow, testExecutionContext(), 1, params, gated)
	require.NoError(t, err)

	assert.Equal(t, models.TaskKindWorkflowApproval, task.Kind)
	assert.Equal(t, models.TaskPending, task.Status)
	assert.Equal(t, "Approval required: High value deal gate", task.Title)
	assert.Equal(t, "Acme Logistics is above the discount threshold", task.Description)
	assert.Equal(t, "supervisor", task.AssigneeRole)
	assert.Empty(t, task.AssigneeUserID)
	assert.Equal(t, "exec-1", task.WorkflowExecutionID)
	require.NotNil(t, task.WorkflowActionIndex)
	assert.Equal(t, 1, *task.WorkflowActionIndex)

	require.NotNil(t, task.DueAt)
	assert.WithinDuration(t, time.Now().UTC().Add(48*time.Hour), *task.DueAt, time.Minute)

	// Assignees see action types, never raw parameters.
	assert.Equal(t, []any{"send_email"}, task.WorkflowActionPreview["gated_action_types"])

	encoded, err := json.Marshal(task)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "dana@example.com")
}

func TestNewApprovalTask_DefaultsAssigneeToOwner(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1", OrganizationID: "org-1", Name: "Gate"}
	params := &models.RequestApprovalParams{ExpiresInHours: 1}

	task, err := NewApprovalTask(workflow, testExecutionContext(), 0, params, nil)
	require.NoError(t, err)

	assert.Empty(t, task.AssigneeRole)
	assert.Equal(t, "user-3", task.AssigneeUserID)
}
