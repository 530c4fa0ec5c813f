package web_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/web"
)

func TestCreateWorkflowRequest_Validation(t *testing.T) {
	t.Parallel()

	validate := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name    string
		request web.CreateWorkflowRequest
		wantErr bool
	}{
		{
			name: "valid request",
			request: web.CreateWorkflowRequest{
				Name:        "Chase silent leads",
				TriggerType: models.TriggerInactivity,
			},
			wantErr: false,
		},
		{
			name: "name too short",
			request: web.CreateWorkflowRequest{
				Name:        "ab",
				TriggerType: models.TriggerInactivity,
			},
			wantErr: true,
		},
		{
			name: "missing trigger type",
			request: web.CreateWorkflowRequest{
				Name: "Chase silent leads",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validate.Struct(tt.request)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateWorkflowRequest_WorkflowDefaultsEnabled(t *testing.T) {
	t.Parallel()

	request := web.CreateWorkflowRequest{
		Name:        "Chase silent leads",
		TriggerType: models.TriggerInactivity,
	}
	assert.True(t, request.Workflow().IsEnabled)

	disabled := false
	request.IsEnabled = &disabled
	assert.False(t, request.Workflow().IsEnabled)
}

func TestUpdateWorkflowRequest_Validation(t *testing.T) {
	t.Parallel()

	validate := validator.New(validator.WithRequiredStructEnabled())

	name := "Chase silent leads"

	err := validate.Struct(web.UpdateWorkflowRequest{Name: &name})
	assert.Error(t, err, "expected version is the optimistic lock and cannot be omitted")

	err = validate.Struct(web.UpdateWorkflowRequest{Name: &name, ExpectedVersion: 1})
	assert.NoError(t, err)
}

func TestUpdateWorkflowRequest_ApplyMergesOnlyProvidedFields(t *testing.T) {
	t.Parallel()

	workflow := models.Workflow{
		Name:        "Original name",
		Description: "Original description",
		TriggerType: models.TriggerStatusChanged,
	}

	name := "Renamed"

	web.UpdateWorkflowRequest{Name: &name}.Apply(&workflow)

	assert.Equal(t, "Renamed", workflow.Name)
	assert.Equal(t, "Original description", workflow.Description)
	assert.Equal(t, models.TriggerStatusChanged, workflow.TriggerType)
}

func TestTransformTaskResponse_ExcludesRawPayload(t *testing.T) {
	t.Parallel()

	actionIndex := 0
	task := &models.Task{
		ID:                  "task-1",
		OrganizationID:      "org-1",
		Kind:                models.TaskKindWorkflowApproval,
		Title:               "Approve outgoing email",
		Status:              models.TaskPending,
		WorkflowExecutionID: "exec-1",
		WorkflowActionIndex: &actionIndex,
		WorkflowActionType:  string(models.ActionSendEmail),
		WorkflowActionPreview: map[string]any{
			"kind":    string(models.ActionSendEmail),
			"subject": "Your portfolio is ready",
		},
		WorkflowActionPayload: map[string]any{
			"subject": "Your portfolio is ready",
			"body":    "full draft with client details",
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	encoded, err := json.Marshal(web.TransformTaskResponse(task))
	require.NoError(t, err)

	assert.NotContains(t, string(encoded), "full draft with client details")
	assert.Contains(t, string(encoded), "Your portfolio is ready")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.NotContains(t, decoded, "workflow_action_payload")

	preview, ok := decoded["workflow_action_preview"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(models.ActionSendEmail), preview["kind"])
}
