package promotelead

import (
	"context"
	"errors"
	"fmt"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// EntityTypeIntakeLead is the only entity type this action operates on.
const EntityTypeIntakeLead = "intake_lead"

// PromoteLeadAction converts an intake lead into a client record.
type PromoteLeadAction struct {
	params *models.PromoteLeadParams
}

// NewPromoteLeadAction creates a new promotion action from typed parameters.
func NewPromoteLeadAction(params models.ActionParams) (*PromoteLeadAction, error) {
	leadParams, ok := params.(*models.PromoteLeadParams)
	if !ok {
		return nil, fmt.Errorf("expected promote_intake_lead params, got %T", params)
	}

	return &PromoteLeadAction{params: leadParams}, nil
}

// Execute promotes the lead. Running against anything that is not an intake
// lead, or a lead that was already promoted, is a skip rather than a failure.
func (a *PromoteLeadAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, deps protocol.Dependencies) (models.ActionResult, error) {
	result := models.ActionResult{ActionType: string(models.ActionPromoteLead)}

	event := executionCtx.Event
	if event.EntityType != EntityTypeIntakeLead {
		return models.SkippedResult(models.ActionPromoteLead, fmt.Sprintf("entity is a %s, not an intake lead", event.EntityType)), nil
	}

	actor := models.WorkflowActor(executionCtx.ExecutionID)

	client, err := deps.Entities.PromoteIntakeLead(ctx, executionCtx.OrganizationID, event.EntityID, a.params.TargetStage, actor)
	if err != nil {
		if errors.Is(err, protocol.ErrBusinessRule) {
			return models.SkippedResult(models.ActionPromoteLead, err.Error()), nil
		}

		return result, fmt.Errorf("failed to promote intake lead %s: %w", event.EntityID, err)
	}

	result.Success = true
	result.Description = fmt.Sprintf("promoted intake lead %s to client %s", event.EntityID, client.EntityID)
	result.Output = map[string]any{"client_id": client.EntityID}

	return result, nil
}
