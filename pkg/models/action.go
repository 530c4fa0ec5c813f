package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionType identifies one kind of workflow action. The set is closed:
// decoding a definition with an unknown type fails at save time with
// UnknownActionTypeError, never at trigger time.
type ActionType string

const (
	ActionAddNote          ActionType = "add_note"
	ActionSendNotification ActionType = "send_notification"
	ActionSendEmail        ActionType = "send_email"
	ActionCreateTask       ActionType = "create_task"
	ActionChangeOwner      ActionType = "change_owner"
	ActionChangeStage      ActionType = "change_stage"
	ActionPromoteLead      ActionType = "promote_intake_lead"
	ActionZapierEvent      ActionType = "send_zapier_conversion_event"
	ActionRequestApproval  ActionType = "request_approval"
)

// UnknownActionTypeError reports a definition referencing an action type the
// engine does not implement.
type UnknownActionTypeError struct {
	ActionType string
}

func (e *UnknownActionTypeError) Error() string {
	return fmt.Sprintf("unknown action type %q", e.ActionType)
}

// IsUnknownActionType reports whether err wraps an UnknownActionTypeError.
func IsUnknownActionType(err error) bool {
	var target *UnknownActionTypeError

	return errors.As(err, &target)
}

// ActionParams is the typed parameter struct of exactly one action kind.
type ActionParams interface {
	Kind() ActionType
	Validate() error
}

// ActionSpec is one entry in a workflow's ordered action list: a closed
// tagged union of Kind plus that kind's typed parameters.
type ActionSpec struct {
	ID     string       `json:"id,omitempty"`
	Kind   ActionType   `json:"type"`
	Params ActionParams `json:"params"`
}

// Validate checks the union is coherent and the params are well formed.
func (a ActionSpec) Validate() error {
	if a.Params == nil {
		return &UnknownActionTypeError{ActionType: string(a.Kind)}
	}

	if a.Params.Kind() != a.Kind {
		return fmt.Errorf("action params are for %q, spec says %q", a.Params.Kind(), a.Kind)
	}

	return a.Params.Validate()
}

// actionSpecEnvelope is the wire form: params stay raw until Kind dispatches
// the typed decode.
type actionSpecEnvelope struct {
	ID     string          `json:"id,omitempty"`
	Kind   ActionType      `json:"type"`
	Params json.RawMessage `json:"params"`
}

// UnmarshalJSON decodes the envelope and dispatches on the action kind.
func (a *ActionSpec) UnmarshalJSON(data []byte) error {
	var envelope actionSpecEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to decode action spec: %w", err)
	}

	params, err := newActionParams(envelope.Kind)
	if err != nil {
		return err
	}

	if len(envelope.Params) > 0 {
		if err := json.Unmarshal(envelope.Params, params); err != nil {
			return fmt.Errorf("failed to decode %q params: %w", envelope.Kind, err)
		}
	}

	a.ID = envelope.ID
	a.Kind = envelope.Kind
	a.Params = params

	return nil
}

// MarshalJSON writes the envelope form back out.
func (a ActionSpec) MarshalJSON() ([]byte, error) {
	params, err := json.Marshal(a.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q params: %w", a.Kind, err)
	}

	return json.Marshal(actionSpecEnvelope{ID: a.ID, Kind: a.Kind, Params: params})
}

// newActionParams returns the zero typed params for kind, or the typed
// unknown-kind error.
func newActionParams(kind ActionType) (ActionParams, error) {
	switch kind {
	case ActionAddNote:
		return &AddNoteParams{}, nil
	case ActionSendNotification:
		return &SendNotificationParams{}, nil
	case ActionSendEmail:
		return &SendEmailParams{}, nil
	case ActionCreateTask:
		return &CreateTaskParams{}, nil
	case ActionChangeOwner:
		return &ChangeOwnerParams{}, nil
	case ActionChangeStage:
		return &ChangeStageParams{}, nil
	case ActionPromoteLead:
		return &PromoteLeadParams{}, nil
	case ActionZapierEvent:
		return &ZapierEventParams{}, nil
	case ActionRequestApproval:
		return &RequestApprovalParams{}, nil
	}

	return nil, &UnknownActionTypeError{ActionType: string(kind)}
}

// AddNoteParams writes a note onto the entity's timeline. Body supports merge
// fields rendered against the trigger event.
type AddNoteParams struct {
	Body   string `json:"body"`
	Pinned bool   `json:"pinned,omitempty"`
}

func (p *AddNoteParams) Kind() ActionType { return ActionAddNote }

func (p *AddNoteParams) Validate() error {
	if p.Body == "" {
		return errors.New("add_note requires a body")
	}

	return nil
}

// SendNotificationParams delivers an in-app notification out of band.
// Recipient is "owner", "user:<id>" or "role:<name>".
type SendNotificationParams struct {
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	Recipient string `json:"recipient"`
}

func (p *SendNotificationParams) Kind() ActionType { return ActionSendNotification }

func (p *SendNotificationParams) Validate() error {
	if p.Title == "" {
		return errors.New("send_notification requires a title")
	}

	if p.Recipient == "" {
		return errors.New("send_notification requires a recipient")
	}

	return nil
}

// SendEmailParams queues an outbound email through the configured provider.
// Subject, Body and To support merge fields.
type SendEmailParams struct {
	TemplateID string `json:"template_id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body,omitempty"`
	To         string `json:"to"`
}

func (p *SendEmailParams) Kind() ActionType { return ActionSendEmail }

func (p *SendEmailParams) Validate() error {
	if p.To == "" {
		return errors.New("send_email requires a recipient")
	}

	if p.TemplateID == "" && p.Subject == "" {
		return errors.New("send_email requires a template id or a subject")
	}

	return nil
}

// CreateTaskParams creates a to-do task, optionally due a number of hours
// after the action runs.
type CreateTaskParams struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	AssigneeRole string `json:"assignee_role,omitempty"`
	DueInHours   int    `json:"due_in_hours,omitempty"`
}

func (p *CreateTaskParams) Kind() ActionType { return ActionCreateTask }

func (p *CreateTaskParams) Validate() error {
	if p.Title == "" {
		return errors.New("create_task requires a title")
	}

	if p.DueInHours < 0 {
		return errors.New("create_task due_in_hours cannot be negative")
	}

	return nil
}

// ChangeOwnerParams reassigns the entity to a user or to a role's default
// assignee. Exactly one of the two must be set.
type ChangeOwnerParams struct {
	NewOwnerUserID string `json:"new_owner_user_id,omitempty"`
	AssigneeRole   string `json:"assignee_role,omitempty"`
}

func (p *ChangeOwnerParams) Kind() ActionType { return ActionChangeOwner }

func (p *ChangeOwnerParams) Validate() error {
	if (p.NewOwnerUserID == "") == (p.AssigneeRole == "") {
		return errors.New("change_owner requires exactly one of new_owner_user_id or assignee_role")
	}

	return nil
}

// ChangeStageParams moves the entity to another pipeline stage. The stage
// change raises a cascaded status_changed event with the same event id and
// depth+1.
type ChangeStageParams struct {
	ToStage string `json:"to_stage"`
}

func (p *ChangeStageParams) Kind() ActionType { return ActionChangeStage }

func (p *ChangeStageParams) Validate() error {
	if p.ToStage == "" {
		return errors.New("change_stage requires a target stage")
	}

	return nil
}

// PromoteLeadParams converts an intake lead into a full case record.
type PromoteLeadParams struct {
	TargetStage string `json:"target_stage,omitempty"`
}

func (p *PromoteLeadParams) Kind() ActionType { return ActionPromoteLead }

func (p *PromoteLeadParams) Validate() error { return nil }

// ZapierEventParams pushes a conversion event to the organization's Zapier
// hook, when that integration is enabled.
type ZapierEventParams struct {
	EventName string `json:"event_name,omitempty"`
}

func (p *ZapierEventParams) Kind() ActionType { return ActionZapierEvent }

func (p *ZapierEventParams) Validate() error { return nil }

// RequestApprovalParams pauses the execution until a human resolves the
// approval task. ExpiresInHours bounds how long the gate may stay open.
type RequestApprovalParams struct {
	ApproverRole   string `json:"approver_role,omitempty"`
	Reason         string `json:"reason,omitempty"`
	ExpiresInHours int    `json:"expires_in_hours"`
}

func (p *RequestApprovalParams) Kind() ActionType { return ActionRequestApproval }

func (p *RequestApprovalParams) Validate() error {
	if p.ExpiresInHours < 1 {
		return errors.New("request_approval requires expires_in_hours >= 1")
	}

	return nil
}
