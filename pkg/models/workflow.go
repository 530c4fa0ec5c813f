// Package models defines the core domain models for the Stagehand workflow
// automation engine.
package models

import (
	"errors"
	"fmt"
	"time"
)

// WorkflowScope controls which events a workflow may react to.
type WorkflowScope string

const (
	WorkflowScopeOrg      WorkflowScope = "org"      // Applies to every matching event in the organization
	WorkflowScopePersonal WorkflowScope = "personal" // Applies only to events owned by the workflow's owner
)

// Workflow is an automation definition: when an event of TriggerType occurs
// and the conditions hold, the actions run in order.
//
// Every mutation snapshots the definition through the versioned config store;
// CurrentVersion advances monotonically and PublishedVersion marks the
// snapshot the matcher executes. Workflows are soft-disabled or soft-deleted,
// never hard-deleted, so execution history stays resolvable.
type Workflow struct {
	ID               string         `json:"id"`
	OrganizationID   string         `json:"organization_id"  validate:"required"`
	Name             string         `json:"name"             validate:"required,min=3"`
	Description      string         `json:"description"`
	TriggerType      TriggerType    `json:"trigger_type"     validate:"required"`
	TriggerConfig    TriggerConfig  `json:"trigger_config"`
	Conditions       []Condition    `json:"conditions"`
	ConditionLogic   ConditionLogic `json:"condition_logic"`
	Actions          []ActionSpec   `json:"actions"`
	IsEnabled        bool           `json:"is_enabled"`
	Scope            WorkflowScope  `json:"scope"`
	OwnerUserID      string         `json:"owner_user_id,omitempty"`
	CurrentVersion   int            `json:"current_version"`
	PublishedVersion int            `json:"published_version"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	PublishedAt      *time.Time     `json:"published_at,omitempty"`
	DeletedAt        *time.Time     `json:"deleted_at,omitempty"`
}

// IsPublished reports whether any version of this workflow has been published.
func (w *Workflow) IsPublished() bool {
	return w.PublishedVersion > 0
}

// Runnable reports whether the matcher may consider this workflow at all.
func (w *Workflow) Runnable() bool {
	return w.IsEnabled && w.DeletedAt == nil && w.IsPublished()
}

// Validate checks the parts of the definition the struct validator cannot:
// the trigger config against the trigger type, each condition, and each
// action's typed parameters. Called at authoring time so malformed
// definitions are rejected at save, never at trigger evaluation.
func (w *Workflow) Validate() error {
	if !w.TriggerType.Valid() {
		return fmt.Errorf("unknown trigger type %q", w.TriggerType)
	}

	if err := w.TriggerConfig.Validate(w.TriggerType); err != nil {
		return fmt.Errorf("trigger config: %w", err)
	}

	if w.ConditionLogic != "" && !w.ConditionLogic.Valid() {
		return fmt.Errorf("unknown condition logic %q", w.ConditionLogic)
	}

	for i, condition := range w.Conditions {
		if err := condition.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}

	if w.Scope == WorkflowScopePersonal && w.OwnerUserID == "" {
		return errors.New("personal workflows require an owner user id")
	}

	for i, action := range w.Actions {
		if err := action.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}

	return nil
}
