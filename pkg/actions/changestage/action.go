package changestage

import (
	"context"
	"errors"
	"fmt"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// ChangeStageAction moves the triggering record to another pipeline stage
// and feeds the resulting status_changed event back into the engine. The
// engine's causation chain carries the original event id at depth+1, so
// workflow-to-workflow cascades stay bounded.
type ChangeStageAction struct {
	params *models.ChangeStageParams
}

// NewChangeStageAction creates a new stage action from typed parameters.
func NewChangeStageAction(params models.ActionParams) (*ChangeStageAction, error) {
	stageParams, ok := params.(*models.ChangeStageParams)
	if !ok {
		return nil, fmt.Errorf("expected change_stage params, got %T", params)
	}

	if err := stageParams.Validate(); err != nil {
		return nil, err
	}

	return &ChangeStageAction{params: stageParams}, nil
}

// Execute performs the stage move and cascades the follow-up event.
func (a *ChangeStageAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, deps protocol.Dependencies) (models.ActionResult, error) {
	result := models.ActionResult{ActionType: string(models.ActionChangeStage)}

	event := executionCtx.Event
	orgID := executionCtx.OrganizationID
	actor := models.WorkflowActor(executionCtx.ExecutionID)

	before, err := deps.Entities.Get(ctx, orgID, event.EntityType, event.EntityID)
	if err != nil {
		return result, fmt.Errorf("failed to load %s %s: %w", event.EntityType, event.EntityID, err)
	}

	fromStage, _ := before.Fields["stage"].(string)
	if fromStage == a.params.ToStage {
		return models.SkippedResult(models.ActionChangeStage, fmt.Sprintf("already in stage %q", fromStage)), nil
	}

	after, err := deps.Entities.ChangeStage(ctx, orgID, event.EntityType, event.EntityID, a.params.ToStage, actor)
	if err != nil {
		if errors.Is(err, protocol.ErrBusinessRule) {
			return models.SkippedResult(models.ActionChangeStage, err.Error()), nil
		}

		return result, fmt.Errorf("failed to change stage: %w", err)
	}

	cascaded := models.TriggerEvent{
		Type:       models.TriggerStatusChanged,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Data: map[string]any{
			"from_stage": fromStage,
			"to_stage":   a.params.ToStage,
		},
		Entity:      after.Fields,
		OwnerUserID: after.OwnerUserID,
	}

	if err := deps.Cascade(ctx, cascaded); err != nil {
		return result, fmt.Errorf("failed to cascade stage change: %w", err)
	}

	result.Success = true
	result.Description = fmt.Sprintf("moved %s %s from %q to %q", event.EntityType, event.EntityID, fromStage, a.params.ToStage)
	result.Output = map[string]any{"from_stage": fromStage, "to_stage": a.params.ToStage}

	return result, nil
}
