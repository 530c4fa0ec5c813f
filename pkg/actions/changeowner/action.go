package changeowner

import (
	"context"
	"errors"
	"fmt"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// ChangeOwnerAction hands the triggering record to another user.
type ChangeOwnerAction struct {
	params *models.ChangeOwnerParams
}

// NewChangeOwnerAction creates a new ownership action from typed parameters.
func NewChangeOwnerAction(params models.ActionParams) (*ChangeOwnerAction, error) {
	ownerParams, ok := params.(*models.ChangeOwnerParams)
	if !ok {
		return nil, fmt.Errorf("expected change_owner params, got %T", params)
	}

	if err := ownerParams.Validate(); err != nil {
		return nil, err
	}

	return &ChangeOwnerAction{params: ownerParams}, nil
}

// Execute reassigns ownership directly or through the role rotation.
func (a *ChangeOwnerAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, deps protocol.Dependencies) (models.ActionResult, error) {
	result := models.ActionResult{ActionType: string(models.ActionChangeOwner)}

	event := executionCtx.Event
	actor := models.WorkflowActor(executionCtx.ExecutionID)

	newOwner := a.params.NewOwnerUserID
	if newOwner != "" {
		err := deps.Entities.ChangeOwner(ctx, executionCtx.OrganizationID, event.EntityType, event.EntityID, newOwner, actor)
		if err != nil {
			if errors.Is(err, protocol.ErrBusinessRule) {
				return models.SkippedResult(models.ActionChangeOwner, err.Error()), nil
			}

			return result, fmt.Errorf("failed to change owner: %w", err)
		}
	} else {
		chosen, err := deps.Entities.AssignOwnerFromRole(ctx, executionCtx.OrganizationID, event.EntityType, event.EntityID, a.params.AssigneeRole, actor)
		if err != nil {
			if errors.Is(err, protocol.ErrBusinessRule) {
				return models.SkippedResult(models.ActionChangeOwner, err.Error()), nil
			}

			return result, fmt.Errorf("failed to assign owner from role %q: %w", a.params.AssigneeRole, err)
		}

		newOwner = chosen
	}

	result.Success = true
	result.Description = fmt.Sprintf("changed owner of %s %s to %s", event.EntityType, event.EntityID, newOwner)
	result.Output = map[string]any{"new_owner_user_id": newOwner}

	return result, nil
}
