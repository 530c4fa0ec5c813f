// Package promotelead provides the action that converts intake leads into
// client records.
package promotelead

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// PromoteLeadActionFactory creates PromoteLeadAction instances.
type PromoteLeadActionFactory struct{}

// Create creates a new PromoteLeadAction instance.
func (f *PromoteLeadActionFactory) Create(ctx context.Context, params models.ActionParams) (protocol.Action, error) {
	return NewPromoteLeadAction(params)
}

// ID returns the factory ID.
func (f *PromoteLeadActionFactory) ID() string {
	return string(models.ActionPromoteLead)
}

// Name returns the factory name.
func (f *PromoteLeadActionFactory) Name() string {
	return "Promote Intake Lead"
}

// Description returns the factory description.
func (f *PromoteLeadActionFactory) Description() string {
	return "Converts the triggering intake lead into a client record at the target pipeline stage"
}

// Schema returns the JSON schema for promote_intake_lead configuration.
func (f *PromoteLeadActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"target_stage": map[string]any{
				"type":        "string",
				"description": "Pipeline stage the new client starts in. Defaults to the pipeline's first stage.",
			},
		},
	}
}

// NewPromoteLeadActionFactory creates a new factory instance.
func NewPromoteLeadActionFactory() protocol.ActionFactory {
	return &PromoteLeadActionFactory{}
}
