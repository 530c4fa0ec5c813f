package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActorKind discriminates who performed a mutation.
type ActorKind string

const (
	ActorKindUser     ActorKind = "user"
	ActorKindSystem   ActorKind = "system"
	ActorKindWorkflow ActorKind = "workflow"
)

// Actor is a sum type identifying the author of a mutation: a user, the
// system itself, or a workflow execution. There is no sentinel "system user"
// row anywhere; automation authorship is carried explicitly on every call.
//
// The stable string encoding is "user:<id>", "system" or
// "workflow:<execution_id>"; that form is what persists and serializes.
type Actor struct {
	Kind        ActorKind `json:"-"`
	UserID      string    `json:"-"`
	ExecutionID string    `json:"-"`
}

// UserActor identifies a human user.
func UserActor(userID string) Actor {
	return Actor{Kind: ActorKindUser, UserID: userID}
}

// SystemActor identifies the platform itself (seeds, sweeps, migrations).
func SystemActor() Actor {
	return Actor{Kind: ActorKindSystem}
}

// WorkflowActor identifies a workflow execution acting on the user's behalf.
func WorkflowActor(executionID string) Actor {
	return Actor{Kind: ActorKindWorkflow, ExecutionID: executionID}
}

// String returns the stable encoding.
func (a Actor) String() string {
	switch a.Kind {
	case ActorKindUser:
		return "user:" + a.UserID
	case ActorKindWorkflow:
		return "workflow:" + a.ExecutionID
	case ActorKindSystem:
		return "system"
	}

	return "system"
}

// EventSource maps the actor to the causation source of events it raises.
func (a Actor) EventSource() EventSource {
	switch a.Kind {
	case ActorKindWorkflow:
		return SourceWorkflow
	case ActorKindUser:
		return SourceUser
	case ActorKindSystem:
		return SourceSystem
	}

	return SourceSystem
}

// ParseActor decodes the stable encoding.
func ParseActor(s string) (Actor, error) {
	if s == "system" || s == "" {
		return SystemActor(), nil
	}

	kind, id, found := strings.Cut(s, ":")
	if !found || id == "" {
		return Actor{}, fmt.Errorf("malformed actor %q", s)
	}

	switch ActorKind(kind) {
	case ActorKindUser:
		return UserActor(id), nil
	case ActorKindWorkflow:
		return WorkflowActor(id), nil
	}

	return Actor{}, fmt.Errorf("malformed actor %q", s)
}

// MarshalJSON encodes the actor as its stable string form.
func (a Actor) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes the stable string form.
func (a *Actor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseActor(s)
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}
