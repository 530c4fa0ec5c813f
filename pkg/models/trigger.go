package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// TriggerType is the category of domain event a workflow reacts to.
type TriggerType string

const (
	TriggerStatusChanged     TriggerType = "status_changed"
	TriggerFormSubmitted     TriggerType = "form_submitted"
	TriggerIntakeLeadCreated TriggerType = "intake_lead_created"
	TriggerScheduled         TriggerType = "scheduled"
	TriggerInactivity        TriggerType = "inactivity"
	TriggerTaskDue           TriggerType = "task_due"
	TriggerTaskOverdue       TriggerType = "task_overdue"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerStatusChanged, TriggerFormSubmitted, TriggerIntakeLeadCreated,
		TriggerScheduled, TriggerInactivity, TriggerTaskDue, TriggerTaskOverdue:
		return true
	}

	return false
}

// TriggerConfig narrows which events of the workflow's trigger type actually
// fire it. Only the fields relevant to the trigger type are consulted; the
// rest stay empty. An empty field means "no filter" for optional filters.
type TriggerConfig struct {
	// status_changed
	EntityType string `json:"entity_type,omitempty"`
	FromStage  string `json:"from_stage,omitempty"`
	ToStage    string `json:"to_stage,omitempty"`

	// form_submitted
	FormID string `json:"form_id,omitempty"`

	// intake_lead_created
	LeadSource string `json:"lead_source,omitempty"`

	// scheduled
	Cron     string `json:"cron,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	// inactivity
	InactiveDays int    `json:"inactive_days,omitempty"`
	Stage        string `json:"stage,omitempty"`

	// task_due
	WithinHours int `json:"within_hours,omitempty"`
}

// Validate checks the config against the trigger type it will serve.
func (c TriggerConfig) Validate(triggerType TriggerType) error {
	switch triggerType {
	case TriggerScheduled:
		if c.Cron == "" {
			return errors.New("scheduled workflows require a cron expression")
		}

		if err := ValidateCronExpression(c.Cron); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", c.Cron, err)
		}
	case TriggerFormSubmitted:
		if c.FormID == "" {
			return errors.New("form_submitted workflows require a form id")
		}
	case TriggerInactivity:
		if c.InactiveDays < 1 {
			return errors.New("inactivity workflows require inactive_days >= 1")
		}
	case TriggerTaskDue:
		if c.WithinHours < 1 {
			return errors.New("task_due workflows require within_hours >= 1")
		}
	case TriggerStatusChanged, TriggerIntakeLeadCreated, TriggerTaskOverdue:
		// All filters optional.
	}

	return nil
}

// TriggerEvent is the input to the execution engine: one domain event,
// carrying the payload and a snapshot of the relevant entity attributes taken
// at trigger time. Condition evaluation and templating read only this
// snapshot, never re-fetched state.
type TriggerEvent struct {
	Type       TriggerType    `json:"type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Data       map[string]any `json:"data"`
	Entity     map[string]any `json:"entity,omitempty"`
	Actor      Actor          `json:"actor"`

	// OwnerUserID is the user the affected entity belongs to; personal-scope
	// workflows only match events carrying their owner's id.
	OwnerUserID string `json:"owner_user_id,omitempty"`

	// DedupeKey, when set, caps the logical event at one handled trigger call
	// per organization. Enforced by a partial unique index on executions.
	DedupeKey string `json:"dedupe_key,omitempty"`

	// WorkflowID restricts matching to a single workflow. Sweep-synthesized
	// events set it so each due workflow fires independently.
	WorkflowID string `json:"workflow_id,omitempty"`
}

// FieldScope builds the value space condition fields and templates resolve
// against: entity snapshot keys at the top level, overlaid by the event
// payload, with "event" and "entity" also addressable as nested paths.
func (e TriggerEvent) FieldScope() map[string]any {
	scope := make(map[string]any, len(e.Entity)+len(e.Data)+2)
	maps.Copy(scope, e.Entity)
	maps.Copy(scope, e.Data)
	scope["event"] = e.Data
	scope["entity"] = e.Entity

	return scope
}

// Snapshot renders the whole event as a plain map for storage on the
// execution row. A resume rebuilds its ExecutionContext from this snapshot,
// so it must round-trip losslessly through EventFromSnapshot.
func (e TriggerEvent) Snapshot() (map[string]any, error) {
	encoded, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trigger event: %w", err)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(encoded, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode trigger event snapshot: %w", err)
	}

	return snapshot, nil
}

// EventFromSnapshot rebuilds the trigger event a paused execution stored.
func EventFromSnapshot(snapshot map[string]any) (TriggerEvent, error) {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return TriggerEvent{}, fmt.Errorf("failed to encode trigger event snapshot: %w", err)
	}

	var event TriggerEvent
	if err := json.Unmarshal(encoded, &event); err != nil {
		return TriggerEvent{}, fmt.Errorf("failed to decode trigger event snapshot: %w", err)
	}

	return event, nil
}
