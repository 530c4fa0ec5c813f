// Package sendnotification provides the action that queues in-app
// notifications for delivery.
package sendnotification

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// SendNotificationActionFactory creates SendNotificationAction instances.
type SendNotificationActionFactory struct{}

// Create creates a new SendNotificationAction instance.
func (f *SendNotificationActionFactory) Create(ctx context.Context, params models.ActionParams) (protocol.Action, error) {
	return NewSendNotificationAction(params)
}

// ID returns the factory ID.
func (f *SendNotificationActionFactory) ID() string {
	return string(models.ActionSendNotification)
}

// Name returns the factory name.
func (f *SendNotificationActionFactory) Name() string {
	return "Send Notification"
}

// Description returns the factory description.
func (f *SendNotificationActionFactory) Description() string {
	return "Queues an in-app notification for the record owner, a specific user, or everyone in a role"
}

// Schema returns the JSON schema for send_notification configuration.
func (f *SendNotificationActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Notification title. Supports merge fields.",
				"examples": []string{
					"{{.entity.name}} needs attention",
					"New intake lead from {{.event.lead_source}}",
				},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Notification body. Supports merge fields.",
			},
			"recipient": map[string]any{
				"type":        "string",
				"description": "Who receives the notification: 'owner', 'user:<id>' or 'role:<name>'",
				"examples":    []string{"owner", "user:usr_01H4", "role:care_manager"},
			},
		},
		"required": []string{"title", "recipient"},
	}
}

// NewSendNotificationActionFactory creates a new factory instance.
func NewSendNotificationActionFactory() protocol.ActionFactory {
	return &SendNotificationActionFactory{}
}
