// Package events defines the execution lifecycle notifications published on
// the event bus. They are observational: the engine's state transitions are
// already committed when these fire, so consumers may lag or miss events
// without affecting correctness.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "stagehand.executions" // Execution lifecycle events
const JobsTopic = "stagehand.jobs"   // Queued side-effect jobs

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionCanceledEvent  EventType = "execution.canceled"
	ExecutionExpiredEvent   EventType = "execution.expired"
)

// BaseEvent carries the envelope every lifecycle event shares. EventID is the
// causation id of the trigger that produced the execution, so consumers can
// group the fan-out of a single user action.
type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	OrganizationID string         `json:"organization_id"`
	WorkflowID     string         `json:"workflow_id"`
	EventID        string         `json:"event_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, organizationID, workflowID string) BaseEvent {
	return BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		OrganizationID: organizationID,
		WorkflowID:     workflowID,
		Metadata:       make(map[string]any),
	}
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	WorkflowName string `json:"workflow_name"`
	TriggerType  string `json:"trigger_type"`
	EntityType   string `json:"entity_type,omitempty"`
	EntityID     string `json:"entity_id,omitempty"`
	Depth        int    `json:"depth"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID       string `json:"execution_id"`
	MatchedConditions bool   `json:"matched_conditions"`
	ActionsExecuted   int    `json:"actions_executed"`
	DurationMs        int64  `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionPaused struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TaskID      string `json:"task_id"`
	ActionIndex int    `json:"action_index"`
	Reason      string `json:"reason,omitempty"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TaskID      string `json:"task_id"`
	Outcome     string `json:"outcome"`
	ResolvedBy  string `json:"resolved_by,omitempty"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionCanceled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TaskID      string `json:"task_id"`
	Reason      string `json:"reason,omitempty"`
}

func (e ExecutionCanceled) GetType() EventType {
	return ExecutionCanceledEvent
}

type ExecutionExpired struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TaskID      string `json:"task_id"`
}

func (e ExecutionExpired) GetType() EventType {
	return ExecutionExpiredEvent
}
