package zapierevent

import (
	"context"
	"fmt"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// ZapierEventAction queues a conversion event for the organization's Zapier
// hook. A disabled integration is the normal case for most organizations, so
// the action skips instead of failing when no hook is configured.
type ZapierEventAction struct {
	params *models.ZapierEventParams
}

// NewZapierEventAction creates a new Zapier action from typed parameters.
func NewZapierEventAction(params models.ActionParams) (*ZapierEventAction, error) {
	zapierParams, ok := params.(*models.ZapierEventParams)
	if !ok {
		return nil, fmt.Errorf("expected send_zapier_conversion_event params, got %T", params)
	}

	return &ZapierEventAction{params: zapierParams}, nil
}

// Execute checks the integration and enqueues a ZAPIER_STAGE_EVENT job.
func (a *ZapierEventAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, deps protocol.Dependencies) (models.ActionResult, error) {
	result := models.ActionResult{ActionType: string(models.ActionZapierEvent)}

	settings, err := deps.Settings.IntegrationSettings(ctx, executionCtx.OrganizationID)
	if err != nil {
		return result, fmt.Errorf("failed to load integration settings: %w", err)
	}

	if !settings.ZapierEnabled || settings.ZapierHookURL == "" {
		return models.SkippedResult(models.ActionZapierEvent, "zapier integration disabled"), nil
	}

	event := executionCtx.Event

	eventName := a.params.EventName
	if eventName == "" {
		eventName = string(event.Type)
	}

	err = deps.Jobs.Enqueue(ctx, models.QueuedJob{
		OrganizationID: executionCtx.OrganizationID,
		Type:           models.JobZapierStageEvent,
		Payload: map[string]any{
			"hook_url":    settings.ZapierHookURL,
			"event_name":  eventName,
			"entity_type": event.EntityType,
			"entity_id":   event.EntityID,
			"data":        event.Data,
		},
	})
	if err != nil {
		return result, fmt.Errorf("failed to enqueue zapier event: %w", err)
	}

	result.Success = true
	result.Queued = true
	result.Description = fmt.Sprintf("queued zapier event %q", eventName)

	return result, nil
}
