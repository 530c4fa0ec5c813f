package sendemail

import (
	"context"
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
			Type:       models.TriggerFormSubmitted,
			EntityType: "intake_lead",
			EntityID:   "lead-4",
			Entity:     map[string]any{"name": "Dana Reyes", "email": "dana@example.com"},
		},
	}
}

func TestSendEmailAction_Execute_QueuesThroughProvider(t *testing.T) {
	action, err := NewSendEmailAction(&models.SendEmailParams{
		Subject: "Welcome {{.entity.name}}",
		Body:    "Thanks for reaching out.",
		To:      "{{.entity.email}}",
	})
	require.NoError(t, err)

	mockSettings := &mocks.MockSettingsReader{}
	mockSettings.On("IntegrationSettings", mock.Anything, "org-1").
		Return(models.IntegrationSettings{EmailProvider: "postmark", EmailFromAddress: "team@agency.example"}, nil)

	mockJobs := &mocks.MockJobDispatcher{}
	mockJobs.On("Enqueue", mock.Anything, mock.MatchedBy(func(job models.QueuedJob) bool {
		return job.Type == models.JobSendEmail &&
			job.Payload["to"] == "dana@example.com" &&
			job.Payload["subject"] == "Welcome Dana Reyes" &&
			job.Payload["provider"] == "postmark"
	})).Return(nil)

	result, err := action.Execute(context.Background(), testExecutionContext(), protocol.Dependencies{Jobs: mockJobs, Settings: mockSettings})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Queued)
	mockJobs.AssertExpectations(t)
}

func TestSendEmailAction_Execute_NoProviderIsSkipped(t *testing.T) {
	action, err := NewSendEmailAction(&models.SendEmailParams{Subject: "hi", To: "someone@example.com"})
	require.NoError(t, err)

	mockSettings := &mocks.MockSettingsReader{}
	mockSettings.On("IntegrationSettings", mock.Anything, "org-1").Return(models.IntegrationSettings{}, nil)

	result, err := action.Execute(context.Background(), testExecutionContext(), protocol.Dependencies{Settings: mockSettings})

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.False(t, result.Queued)
	assert.Equal(t, "no email provider configured", result.Reason)
}

func TestSendEmailAction_Execute_EmptyRecipientIsSkipped(t *testing.T) {
	action, err := NewSendEmailAction(&models.SendEmailParams{Subject: "hi", To: "{{.entity.missing}}"})
	require.NoError(t, err)

	mockSettings := &mocks.MockSettingsReader{}
	mockSettings.On("IntegrationSettings", mock.Anything, "org-1").
		Return(models.IntegrationSettings{EmailProvider: "postmark"}, nil)

	executionCtx := testExecutionContext()
	executionCtx.Event.Entity = map[string]any{"missing": ""}

	result, err := action.Execute(context.Background(), executionCtx, protocol.Dependencies{Settings: mockSettings})

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "recipient resolved to an empty address", result.Reason)
}

func TestSendEmailAction_Execute_TemplateIDCarriesMergeScope(t *testing.T) {
	action, err := NewSendEmailAction(&models.SendEmailParams{TemplateID: "tmpl-welcome", To: "dana@example.com"})
	require.NoError(t, err)

	mockSettings := &mocks.MockSettingsReader{}
	mockSettings.On("IntegrationSettings", mock.Anything, "org-1").
		Return(models.IntegrationSettings{EmailProvider: "postmark"}, nil)

	mockJobs := &mocks.MockJobDispatcher{}
	mockJobs.On("Enqueue", mock.Anything, mock.MatchedBy(func(job models.QueuedJob) bool {
		_, hasScope := job.Payload["merge_scope"]

		return job.Payload["template_id"] == "tmpl-welcome" && hasScope
	})).Return(nil)

	result, err := action.Execute(context.Background(), testExecutionContext(), protocol.Dependencies{Jobs: mockJobs, Settings: mockSettings})

	require.NoError(t, err)
	assert.True(t, result.Queued)
	mockJobs.AssertExpectations(t)
}
