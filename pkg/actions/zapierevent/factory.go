// Package zapierevent provides the action that pushes conversion events to
// Zapier.
package zapierevent

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// ZapierEventActionFactory creates ZapierEventAction instances.
type ZapierEventActionFactory struct{}

// Create creates a new ZapierEventAction instance.
func (f *ZapierEventActionFactory) Create(ctx context.Context, params models.ActionParams) (protocol.Action, error) {
	return NewZapierEventAction(params)
}

// ID returns the factory ID.
func (f *ZapierEventActionFactory) ID() string {
	return string(models.ActionZapierEvent)
}

// Name returns the factory name.
func (f *ZapierEventActionFactory) Name() string {
	return "Send Zapier Conversion Event"
}

// Description returns the factory description.
func (f *ZapierEventActionFactory) Description() string {
	return "Queues a conversion event for the organization's Zapier hook. Skips silently when the integration is disabled."
}

// Schema returns the JSON schema for send_zapier_conversion_event
// configuration.
func (f *ZapierEventActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_name": map[string]any{
				"type":        "string",
				"description": "Event name sent to the hook. Defaults to the trigger type.",
				"examples":    []string{"lead_converted", "deal_won"},
			},
		},
	}
}

// NewZapierEventActionFactory creates a new factory instance.
func NewZapierEventActionFactory() protocol.ActionFactory {
	return &ZapierEventActionFactory{}
}
