package models

// EventSource states what raised a trigger event.
type EventSource string

const (
	SourceUser     EventSource = "user"
	SourceWorkflow EventSource = "workflow"
	SourceSystem   EventSource = "system"
)

// Causation threads loop-guard state through every engine call: the
// originating event id, the cascade depth relative to that event, and what
// kind of actor raised it. It replaces any thread-local or global tracking;
// a zero Causation means a root trigger and the engine mints the event id.
//
// Cascades propagate the SAME event id with depth+1, so every execution a
// single user action fans out into shares one event id in the audit trail.
type Causation struct {
	EventID string      `json:"event_id"`
	Depth   int         `json:"depth"`
	Source  EventSource `json:"source"`
}

// IsRoot reports whether this call starts a new event chain.
func (c Causation) IsRoot() bool {
	return c.EventID == ""
}

// Child derives the causation a cascaded event must carry.
func (c Causation) Child() Causation {
	return Causation{EventID: c.EventID, Depth: c.Depth + 1, Source: SourceWorkflow}
}
