// Package changestage provides the action that moves records between
// pipeline stages.
package changestage

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// ChangeStageActionFactory creates ChangeStageAction instances.
type ChangeStageActionFactory struct{}

// Create creates a new ChangeStageAction instance.
func (f *ChangeStageActionFactory) Create(ctx context.Context, params models.ActionParams) (protocol.Action, error) {
	return NewChangeStageAction(params)
}

// ID returns the factory ID.
func (f *ChangeStageActionFactory) ID() string {
	return string(models.ActionChangeStage)
}

// Name returns the factory name.
func (f *ChangeStageActionFactory) Name() string {
	return "Change Stage"
}

// Description returns the factory description.
func (f *ChangeStageActionFactory) Description() string {
	return "Moves the record to another pipeline stage. The move raises a status_changed event that other workflows can react to."
}

// Schema returns the JSON schema for change_stage configuration.
func (f *ChangeStageActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to_stage": map[string]any{
				"type":        "string",
				"description": "Stage the record moves to",
				"examples":    []string{"qualified", "quoted", "won"},
			},
		},
		"required": []string{"to_stage"},
	}
}

// NewChangeStageActionFactory creates a new factory instance.
func NewChangeStageActionFactory() protocol.ActionFactory {
	return &ChangeStageActionFactory{}
}
