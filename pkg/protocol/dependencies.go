package protocol

import (
	"context"
	"log/slog"
	"time"

	"github.com/stagehandhq/stagehand/pkg/models"
)

// CascadeFunc re-enters the engine for an event raised by an action itself.
// The engine binds the organization, the causation chain and the acting
// execution; actions only describe what happened.
type CascadeFunc func(ctx context.Context, event models.TriggerEvent) error

// JobDispatcher enqueues side-effect jobs for asynchronous delivery.
type JobDispatcher interface {
	Enqueue(ctx context.Context, job models.QueuedJob) error
}

// SettingsReader exposes per-organization integration settings.
type SettingsReader interface {
	IntegrationSettings(ctx context.Context, organizationID string) (models.IntegrationSettings, error)
}

// TaskWriter creates tasks in the engine's own store. Actions may add todo
// tasks; approval gate tasks are created by the engine when it pauses.
type TaskWriter interface {
	CreateTask(ctx context.Context, task *models.Task) error
}

// EntityService is the CRM core as the engine sees it. Implementations live
// outside this module; the engine depends only on this surface.
type EntityService interface {
	// Get returns the current projection of one record.
	Get(ctx context.Context, organizationID, entityType, entityID string) (models.EntityRef, error)

	// AddNote appends a note to a record's timeline.
	AddNote(ctx context.Context, organizationID, entityType, entityID, body string, pinned bool, actor models.Actor) error

	// ChangeOwner hands the record to a specific user.
	ChangeOwner(ctx context.Context, organizationID, entityType, entityID, newOwnerUserID string, actor models.Actor) error

	// AssignOwnerFromRole picks the next user in the role's rotation and
	// makes them the owner. Returns the chosen user ID.
	AssignOwnerFromRole(ctx context.Context, organizationID, entityType, entityID, role string, actor models.Actor) (string, error)

	// ChangeStage moves the record to another pipeline stage and returns
	// the record as it stands after the move.
	ChangeStage(ctx context.Context, organizationID, entityType, entityID, toStage string, actor models.Actor) (models.EntityRef, error)

	// PromoteIntakeLead converts an intake lead into a client at the target
	// stage and returns the client record it became.
	PromoteIntakeLead(ctx context.Context, organizationID, leadID, targetStage string, actor models.Actor) (models.EntityRef, error)

	// ListOrganizations returns the IDs of all organizations, for sweeps.
	ListOrganizations(ctx context.Context) ([]string, error)

	// ListInactive returns records of the given type with no recorded
	// activity since the cutoff. An empty entityType spans every type.
	ListInactive(ctx context.Context, organizationID, entityType string, since time.Time) ([]models.EntityRef, error)
}

// Dependencies carries the collaborators an action may use during Execute.
// Execution state is absent on purpose: the engine owns it, actions never
// write it.
type Dependencies struct {
	Logger   *slog.Logger
	Entities EntityService
	Jobs     JobDispatcher
	Tasks    TaskWriter
	Settings SettingsReader
	Cascade  CascadeFunc
}
