package addnote

import (
	"context"
	"errors"
	"fmt"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
	"github.com/stagehandhq/stagehand/pkg/template"
)

// AddNoteAction appends a note to the triggering record's timeline.
type AddNoteAction struct {
	params *models.AddNoteParams
}

// NewAddNoteAction creates a new note action from typed parameters.
func NewAddNoteAction(params models.ActionParams) (*AddNoteAction, error) {
	noteParams, ok := params.(*models.AddNoteParams)
	if !ok {
		return nil, fmt.Errorf("expected add_note params, got %T", params)
	}

	if err := noteParams.Validate(); err != nil {
		return nil, err
	}

	return &AddNoteAction{params: noteParams}, nil
}

// Execute renders the note body and writes it to the record's timeline. The
// note is attributed to the workflow execution, not the triggering user.
func (a *AddNoteAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, deps protocol.Dependencies) (models.ActionResult, error) {
	result := models.ActionResult{ActionType: string(models.ActionAddNote)}

	body, err := template.RenderString(a.params.Body, &executionCtx)
	if err != nil {
		return result, fmt.Errorf("failed to render note body: %w", err)
	}

	event := executionCtx.Event
	actor := models.WorkflowActor(executionCtx.ExecutionID)

	err = deps.Entities.AddNote(ctx, executionCtx.OrganizationID, event.EntityType, event.EntityID, body, a.params.Pinned, actor)
	if err != nil {
		if errors.Is(err, protocol.ErrBusinessRule) {
			return models.SkippedResult(models.ActionAddNote, err.Error()), nil
		}

		return result, fmt.Errorf("failed to add note: %w", err)
	}

	result.Success = true
	result.Description = fmt.Sprintf("added note to %s %s", event.EntityType, event.EntityID)
	result.Output = map[string]any{"body": body, "pinned": a.params.Pinned}

	return result, nil
}
