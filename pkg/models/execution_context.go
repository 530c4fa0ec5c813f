package models

// ExecutionContext is the runtime view an action executes against: the
// identity of the execution plus the trigger event it is handling. It is
// rebuilt from persisted state on resume, so actions must treat it as the
// complete world; nothing else survives the pause.
type ExecutionContext struct {
	ExecutionID    string       `json:"execution_id"`
	WorkflowID     string       `json:"workflow_id"`
	OrganizationID string       `json:"organization_id"`
	EventID        string       `json:"event_id"`
	Depth          int          `json:"depth"`
	Source         EventSource  `json:"source"`
	Actor          Actor        `json:"actor"`
	Event          TriggerEvent `json:"event"`
}

// NewExecutionContext builds the runtime scope for one workflow execution.
func NewExecutionContext(executionID string, workflow *Workflow, event TriggerEvent, causation Causation, actor Actor) *ExecutionContext {
	return &ExecutionContext{
		ExecutionID:    executionID,
		WorkflowID:     workflow.ID,
		OrganizationID: workflow.OrganizationID,
		EventID:        causation.EventID,
		Depth:          causation.Depth,
		Source:         causation.Source,
		Actor:          actor,
		Event:          event,
	}
}

// TemplateScope is the data merge fields render against.
func (c *ExecutionContext) TemplateScope() map[string]any {
	scope := c.Event.FieldScope()
	scope["execution"] = map[string]any{
		"id":          c.ExecutionID,
		"workflow_id": c.WorkflowID,
		"event_id":    c.EventID,
	}
	scope["actor"] = c.Actor.String()

	return scope
}
