// Package addnote provides the action that writes notes onto a record's
// timeline.
package addnote

import (
	"context"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// AddNoteActionFactory creates AddNoteAction instances.
type AddNoteActionFactory struct{}

// Create creates a new AddNoteAction instance.
func (f *AddNoteActionFactory) Create(ctx context.Context, params models.ActionParams) (protocol.Action, error) {
	return NewAddNoteAction(params)
}

// ID returns the factory ID.
func (f *AddNoteActionFactory) ID() string {
	return string(models.ActionAddNote)
}

// Name returns the factory name.
func (f *AddNoteActionFactory) Name() string {
	return "Add Note"
}

// Description returns the factory description.
func (f *AddNoteActionFactory) Description() string {
	return "Writes a note onto the triggering record's timeline, with merge field support for event and entity data"
}

// Schema returns the JSON schema for add_note configuration.
func (f *AddNoteActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"body": map[string]any{
				"type":        "string",
				"description": "Note text. Supports merge fields rendered against the trigger event.",
				"examples": []string{
					"{{.entity.name}} moved from {{.event.from_stage}} to {{.event.to_stage}}",
					"Automated follow-up created for {{.entity.name}}",
				},
			},
			"pinned": map[string]any{
				"type":        "boolean",
				"description": "Pin the note to the top of the timeline",
				"default":     false,
			},
		},
		"required": []string{"body"},
	}
}

// NewAddNoteActionFactory creates a new factory instance.
func NewAddNoteActionFactory() protocol.ActionFactory {
	return &AddNoteActionFactory{}
}
