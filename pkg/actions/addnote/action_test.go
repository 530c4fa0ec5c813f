package addnote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
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
		Source:         models.SourceUser,
		Actor:          models.UserActor("user-7"),
		Event: models.TriggerEvent{
			Type:        models.TriggerStatusChanged,
			EntityType:  "client",
			EntityID:    "client-9",
			Entity:      map[string]any{"name": "Acme Logistics", "stage": "quoted"},
			Data:        map[string]any{"from_stage": "new", "to_stage": "quoted"},
			OwnerUserID: "user-3",
		},
	}
}

func TestAddNoteAction_Execute_RendersAndWritesNote(t *testing.T) {
	action, err := NewAddNoteAction(&models.AddNoteParams{Body: "{{.entity.name}} moved to {{.event.to_stage}}", Pinned: true})
	require.NoError(t, err)

	mockEntities := &mocks.MockEntityService{}
	mockEntities.On("AddNote", mock.Anything, "org-1", "client", "client-9", "Acme Logistics moved to quoted", true, models.WorkflowActor("exec-1")).Return(nil)

	deps := protocol.Dependencies{
		Logger:   slog.New(slog.NewTextHandler(os.Stdout, nil)),
		Entities: mockEntities,
	}

	result, err := action.Execute(context.Background(), testExecutionContext(), deps)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	assert.False(t, result.Queued)
	assert.Equal(t, "add_note", result.ActionType)
	assert.Equal(t, "Acme Logistics moved to quoted", result.Output["body"])
	mockEntities.AssertExpectations(t)
}

func TestAddNoteAction_Execute_BusinessRefusalIsSkipped(t *testing.T) {
	action, err := NewAddNoteAction(&models.AddNoteParams{Body: "follow up"})
	require.NoError(t, err)

	mockEntities := &mocks.MockEntityService{}
	mockEntities.On("AddNote", mock.Anything, "org-1", "client", "client-9", "follow up", false, mock.Anything).
		Return(fmt.Errorf("record is archived: %w", protocol.ErrBusinessRule))

	deps := protocol.Dependencies{Entities: mockEntities}

	result, err := action.Execute(context.Background(), testExecutionContext(), deps)

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.True(t, result.Success)
	assert.Contains(t, result.Reason, "record is archived")
}

func TestAddNoteAction_Execute_CRMFailureIsError(t *testing.T) {
	action, err := NewAddNoteAction(&models.AddNoteParams{Body: "follow up"})
	require.NoError(t, err)

	mockEntities := &mocks.MockEntityService{}
	mockEntities.On("AddNote", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection refused"))

	deps := protocol.Dependencies{Entities: mockEntities}

	_, err = action.Execute(context.Background(), testExecutionContext(), deps)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add note")
}

func TestAddNoteAction_Execute_TemplateErrorIsError(t *testing.T) {
	action, err := NewAddNoteAction(&models.AddNoteParams{Body: "{{.entity.name"})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), testExecutionContext(), protocol.Dependencies{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render note body")
}

func TestNewAddNoteAction_RejectsWrongParams(t *testing.T) {
	_, err := NewAddNoteAction(&models.ChangeStageParams{ToStage: "won"})
	require.Error(t, err)

	_, err = NewAddNoteAction(&models.AddNoteParams{})
	require.Error(t, err)
}
