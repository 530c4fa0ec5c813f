package sendnotification

import (
	"context"
	"fmt"
	"strings"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
	"github.com/stagehandhq/stagehand/pkg/template"
)

// SendNotificationAction queues an in-app notification. Delivery happens in
// the worker; the action only records what should be sent and to whom.
type SendNotificationAction struct {
	params *models.SendNotificationParams
}

// NewSendNotificationAction creates a new notification action from typed
// parameters.
func NewSendNotificationAction(params models.ActionParams) (*SendNotificationAction, error) {
	notifyParams, ok := params.(*models.SendNotificationParams)
	if !ok {
		return nil, fmt.Errorf("expected send_notification params, got %T", params)
	}

	if err := notifyParams.Validate(); err != nil {
		return nil, err
	}

	return &SendNotificationAction{params: notifyParams}, nil
}

// Execute resolves the recipient, renders the message and enqueues a
// SEND_NOTIFICATION job.
func (a *SendNotificationAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, deps protocol.Dependencies) (models.ActionResult, error) {
	result := models.ActionResult{ActionType: string(models.ActionSendNotification)}

	payload, description, err := a.buildPayload(&executionCtx)
	if err != nil {
		return result, err
	}

	if payload == nil {
		// Recipient resolved to nobody. A missing owner is a data condition,
		// not a failure.
		return models.SkippedResult(models.ActionSendNotification, description), nil
	}

	err = deps.Jobs.Enqueue(ctx, models.QueuedJob{
		OrganizationID: executionCtx.OrganizationID,
		Type:           models.JobSendNotification,
		Payload:        payload,
	})
	if err != nil {
		return result, fmt.Errorf("failed to enqueue notification: %w", err)
	}

	result.Success = true
	result.Queued = true
	result.Description = description
	result.Output = map[string]any{"title": payload["title"], "recipient": a.params.Recipient}

	return result, nil
}

// buildPayload renders the message and resolves the recipient spec. A nil
// payload with a reason means the step should be skipped.
func (a *SendNotificationAction) buildPayload(executionCtx *models.ExecutionContext) (map[string]any, string, error) {
	title, err := template.RenderString(a.params.Title, executionCtx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render notification title: %w", err)
	}

	body, err := template.RenderString(a.params.Body, executionCtx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render notification body: %w", err)
	}

	event := executionCtx.Event
	payload := map[string]any{
		"title":       title,
		"body":        body,
		"entity_type": event.EntityType,
		"entity_id":   event.EntityID,
	}

	switch {
	case a.params.Recipient == "owner":
		if event.OwnerUserID == "" {
			return nil, "entity has no owner to notify", nil
		}

		payload["recipient_user_id"] = event.OwnerUserID

		return payload, fmt.Sprintf("queued notification for owner %s", event.OwnerUserID), nil
	case strings.HasPrefix(a.params.Recipient, "user:"):
		userID := strings.TrimPrefix(a.params.Recipient, "user:")
		payload["recipient_user_id"] = userID

		return payload, fmt.Sprintf("queued notification for user %s", userID), nil
	case strings.HasPrefix(a.params.Recipient, "role:"):
		role := strings.TrimPrefix(a.params.Recipient, "role:")
		payload["recipient_role"] = role

		return payload, fmt.Sprintf("queued notification for role %s", role), nil
	}

	return nil, "", fmt.Errorf("unrecognized recipient %q", a.params.Recipient)
}
