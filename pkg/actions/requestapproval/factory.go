// Package requestapproval provides the human approval gate: the action that
// pauses an execution until someone resolves its task.
package requestapproval

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// RequestApprovalActionFactory creates RequestApprovalAction instances.
type RequestApprovalActionFactory struct{}

// Create creates a new RequestApprovalAction instance.
func (f *RequestApprovalActionFactory) Create(ctx context.Context, params models.ActionParams) (protocol.Action, error) {
	return NewRequestApprovalAction(params)
}

// ID returns the factory ID.
func (f *RequestApprovalActionFactory) ID() string {
	return string(models.ActionRequestApproval)
}

// Name returns the factory name.
func (f *RequestApprovalActionFactory) Name() string {
	return "Request Approval"
}

// Description returns the factory description.
func (f *RequestApprovalActionFactory) Description() string {
	return "Pauses the workflow until a human approves or denies it. The remaining actions only run after approval."
}

// Schema returns the JSON schema for request_approval configuration.
func (f *RequestApprovalActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"approver_role": map[string]any{
				"type":        "string",
				"description": "Role whose members may resolve the gate. Defaults to the record owner.",
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "Why approval is needed, shown on the task. Supports merge fields.",
			},
			"expires_in_hours": map[string]any{
				"type":        "integer",
				"description": "Hours until an unresolved gate expires and the execution is closed",
				"minimum":     1,
			},
		},
		"required": []string{"expires_in_hours"},
	}
}

// NewRequestApprovalActionFactory creates a new factory instance.
func NewRequestApprovalActionFactory() protocol.ActionFactory {
	return &RequestApprovalActionFactory{}
}
