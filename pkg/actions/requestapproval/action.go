package requestapproval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
	"github.com/stagehandhq/stagehand/pkg/template"
)

// RequestApprovalAction is the post-approval half of the gate. The engine
// intercepts this action type on first encounter and pauses instead of
// executing it; Execute only runs when a granted approval resumes the
// execution, and its result is the gate's entry in the action log.
type RequestApprovalAction struct {
	params *models.RequestApprovalParams
}

// NewRequestApprovalAction creates a new approval action from typed
// parameters.
func NewRequestApprovalAction(params models.ActionParams) (*RequestApprovalAction, error) {
	approvalParams, ok := params.(*models.RequestApprovalParams)
	if !ok {
		return nil, fmt.Errorf("expected request_approval params, got %T", params)
	}

	if err := approvalParams.Validate(); err != nil {
		return nil, err
	}

	return &RequestApprovalAction{params: approvalParams}, nil
}

// Execute records the granted approval.
func (a *RequestApprovalAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, deps protocol.Dependencies) (models.ActionResult, error) {
	result := models.ActionResult{
		Success:     true,
		ActionType:  string(models.ActionRequestApproval),
		Description: "approval granted",
	}
	if a.params.ApproverRole != "" {
		result.Output = map[string]any{"approver_role": a.params.ApproverRole}
	}

	return result, nil
}

// NewApprovalTask builds the pending gate task a paused execution waits on.
// The gated action specs go into the internal-only payload; the preview that
// reaches assignees carries only the reason and the gated action types.
func NewApprovalTask(workflow *models.Workflow, executionCtx models.ExecutionContext, actionIndex int, params *models.RequestApprovalParams, gated []models.ActionSpec) (*models.Task, error) {
	reason, err := template.RenderString(params.Reason, &executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render approval reason: %w", err)
	}

	gatedTypes := make([]any, 0, len(gated))
	for _, spec := range gated {
		gatedTypes = append(gatedTypes, string(spec.Kind))
	}

	payload, err := rawSpecs(gated)
	if err != nil {
		return nil, err
	}

	event := executionCtx.Event
	now := time.Now().UTC()
	dueAt := now.Add(time.Duration(params.ExpiresInHours) * time.Hour)

	task := &models.Task{
		ID:                  uuid.New().String(),
		OrganizationID:      executionCtx.OrganizationID,
		Kind:                models.TaskKindWorkflowApproval,
		Title:               fmt.Sprintf("Approval required: %s", workflow.Name),
		Description:         reason,
		EntityType:          event.EntityType,
		EntityID:            event.EntityID,
		Status:              models.TaskPending,
		DueAt:               &dueAt,
		WorkflowExecutionID: executionCtx.ExecutionID,
		WorkflowActionIndex: &actionIndex,
		WorkflowActionType:  string(models.ActionRequestApproval),
		WorkflowActionPreview: map[string]any{
			"reason":             reason,
			"approver_role":      params.ApproverRole,
			"gated_action_types": gatedTypes,
		},
		WorkflowActionPayload: map[string]any{"gated_actions": payload},
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if params.ApproverRole != "" {
		task.AssigneeRole = params.ApproverRole
	} else {
		task.AssigneeUserID = event.OwnerUserID
	}

	return task, nil
}

// rawSpecs round-trips the gated specs through JSON so the payload stores
// plain maps, not typed params that leak into serialization.
func rawSpecs(gated []models.ActionSpec) ([]any, error) {
	encoded, err := json.Marshal(gated)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gated actions: %w", err)
	}

	var raw []any
	if err := json.Unmarshal(encoded, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode gated actions: %w", err)
	}

	return raw, nil
}
