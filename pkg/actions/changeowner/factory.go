// Package changeowner provides the action that reassigns record ownership.
package changeowner

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// ChangeOwnerActionFactory creates ChangeOwnerAction instances.
type ChangeOwnerActionFactory struct{}

// Create creates a new ChangeOwnerAction instance.
func (f *ChangeOwnerActionFactory) Create(ctx context.Context, params models.ActionParams) (protocol.Action, error) {
	return NewChangeOwnerAction(params)
}

// ID returns the factory ID.
func (f *ChangeOwnerActionFactory) ID() string {
	return string(models.ActionChangeOwner)
}

// Name returns the factory name.
func (f *ChangeOwnerActionFactory) Name() string {
	return "Change Owner"
}

// Description returns the factory description.
func (f *ChangeOwnerActionFactory) Description() string {
	return "Reassigns the record to a specific user, or to the next user in a role's rotation"
}

// Schema returns the JSON schema for change_owner configuration.
func (f *ChangeOwnerActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"new_owner_user_id": map[string]any{
				"type":        "string",
				"description": "User who becomes the owner",
			},
			"assignee_role": map[string]any{
				"type":        "string",
				"description": "Role whose rotation picks the new owner. Mutually exclusive with new_owner_user_id.",
			},
		},
	}
}

// NewChangeOwnerActionFactory creates a new factory instance.
func NewChangeOwnerActionFactory() protocol.ActionFactory {
	return &ChangeOwnerActionFactory{}
}
