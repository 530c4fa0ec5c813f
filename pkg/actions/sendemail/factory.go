// Package sendemail provides the action that queues outbound email.
package sendemail

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// SendEmailActionFactory creates SendEmailAction instances.
type SendEmailActionFactory struct{}

// Create creates a new SendEmailAction instance.
func (f *SendEmailActionFactory) Create(ctx context.Context, params models.ActionParams) (protocol.Action, error) {
	return NewSendEmailAction(params)
}

// ID returns the factory ID.
func (f *SendEmailActionFactory) ID() string {
	return string(models.ActionSendEmail)
}

// Name returns the factory name.
func (f *SendEmailActionFactory) Name() string {
	return "Send Email"
}

// Description returns the factory description.
func (f *SendEmailActionFactory) Description() string {
	return "Queues an email through the organization's configured provider, from a stored template or inline subject and body"
}

// Schema returns the JSON schema for send_email configuration.
func (f *SendEmailActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template_id": map[string]any{
				"type":        "string",
				"description": "Stored email template to render. Overrides subject and body when set.",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Email subject. Supports merge fields.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Email body. Supports merge fields.",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient address or merge field resolving to one",
				"examples":    []string{"{{.entity.email}}", "intake@example.com"},
			},
		},
		"required": []string{"to"},
	}
}

// NewSendEmailActionFactory creates a new factory instance.
func NewSendEmailActionFactory() protocol.ActionFactory {
	return &SendEmailActionFactory{}
}
