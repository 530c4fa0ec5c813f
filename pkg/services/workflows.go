package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/pkg/audit"
	"github.com/stagehandhq/stagehand/pkg/configstore"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// Workflows is the authoring service. Every definition change validates,
// snapshots through the versioned config store and appends to the audit
// chain in the same transaction as the workflow row, so the row, its version
// history and the audit trail can never disagree.
type Workflows struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	store       *configstore.Store
	audit       *audit.Logger
	validate    *validator.Validate
}

// NewWorkflows creates the workflow authoring service.
func NewWorkflows(logger *slog.Logger, p persistence.Persistence, store *configstore.Store) *Workflows {
	return &Workflows{
		logger:      logger.With("module", "workflows-service"),
		persistence: p,
		store:       store,
		audit:       audit.NewLogger(p),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Workflows) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns the organization's workflows, soft-deleted ones excluded.
func (s *Workflows) List(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	return s.persistence.Workflows().List(ctx, organizationID)
}

// Get retrieves a workflow by its ID. Soft-deleted workflows read as gone.
func (s *Workflows) Get(ctx context.Context, organizationID, workflowID string) (*models.Workflow, error) {
	workflow, err := s.persistence.Workflows().GetByID(ctx, organizationID, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.DeletedAt != nil {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowNotFound)
	}

	return workflow, nil
}

// Create adds a new workflow as an unpublished draft: snapshot version 1 in
// the config store, the workflow row and the audit entry commit together.
func (s *Workflows) Create(ctx context.Context, organizationID string, workflow *models.Workflow, actor models.Actor) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.OrganizationID = organizationID
	workflow.CurrentVersion = 0
	workflow.PublishedVersion = 0
	workflow.PublishedAt = nil
	workflow.DeletedAt = nil
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if workflow.Scope == "" {
		workflow.Scope = models.WorkflowScopeOrg
	}

	if err := s.validateDefinition(workflow); err != nil {
		return nil, err
	}

	err := s.persistence.Transaction(ctx, func(txCtx context.Context) error {
		version, err := s.snapshot(txCtx, workflow, 0, actor)
		if err != nil {
			return err
		}

		workflow.CurrentVersion = version.Version

		if err := s.persistence.Workflows().Save(txCtx, workflow); err != nil {
			return fmt.Errorf("failed to save workflow: %w", err)
		}

		return s.audit.Append(txCtx, &models.AuditEntry{
			OrganizationID: organizationID,
			EventType:      audit.EventWorkflowCreated,
			Actor:          actor.String(),
			TargetType:     "workflow",
			TargetID:       workflow.ID,
			AfterVersionID: version.ID,
			Details: map[string]any{
				"name":         workflow.Name,
				"trigger_type": string(workflow.TriggerType),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Workflow created",
		"organization_id", organizationID, "workflow_id", workflow.ID)

	return workflow, nil
}

// Update replaces the authored definition under an optimistic lock.
// expectedVersion is the CurrentVersion the caller read; a mismatch surfaces
// persistence.ErrVersionConflict so the caller re-reads and retries. The
// published marker does not move: the changed definition runs immediately
// for already-published workflows, and publish only records promotion.
func (s *Workflows) Update(ctx context.Context, organizationID, workflowID string, incoming *models.Workflow, expectedVersion int, actor models.Actor) (*models.Workflow, error) {
	if incoming == nil {
		return nil, ErrWorkflowNil
	}

	workflow, err := s.Get(ctx, organizationID, workflowID)
	if err != nil {
		return nil, err
	}

	applyDefinitionFields(workflow, incoming)

	if err := s.validateDefinition(workflow); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.UpdatedAt = now

	err = s.persistence.Transaction(ctx, func(txCtx context.Context) error {
		version, err := s.snapshot(txCtx, workflow, expectedVersion, actor)
		if err != nil {
			return err
		}

		workflow.CurrentVersion = version.Version

		if err := s.persistence.Workflows().Save(txCtx, workflow); err != nil {
			return fmt.Errorf("failed to save workflow: %w", err)
		}

		if err := s.syncSchedule(txCtx, workflow, now); err != nil {
			return err
		}

		return s.audit.Append(txCtx, &models.AuditEntry{
			OrganizationID: organizationID,
			EventType:      audit.EventWorkflowUpdated,
			Actor:          actor.String(),
			TargetType:     "workflow",
			TargetID:       workflow.ID,
			AfterVersionID: version.ID,
			Details: map[string]any{
				"version": version.Version,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Workflow updated",
		"organization_id", organizationID, "workflow_id", workflow.ID,
		"version", workflow.CurrentVersion)

	return workflow, nil
}

// Publish promotes the current version to the one matching runs against and
// brings the schedule row in line for scheduled workflows.
func (s *Workflows) Publish(ctx context.Context, organizationID, workflowID string, actor models.Actor) (*models.Workflow, error) {
	workflow, err := s.Get(ctx, organizationID, workflowID)
	if err != nil {
		return nil, err
	}

	if err := s.validateForPublishing(workflow); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.PublishedVersion = workflow.CurrentVersion
	workflow.PublishedAt = &now
	workflow.UpdatedAt = now

	err = s.persistence.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.persistence.Workflows().Save(txCtx, workflow); err != nil {
			return fmt.Errorf("failed to save workflow: %w", err)
		}

		if err := s.syncSchedule(txCtx, workflow, now); err != nil {
			return err
		}

		return s.audit.Append(txCtx, &models.AuditEntry{
			OrganizationID: organizationID,
			EventType:      audit.EventWorkflowPublished,
			Actor:          actor.String(),
			TargetType:     "workflow",
			TargetID:       workflow.ID,
			Details: map[string]any{
				"version": workflow.PublishedVersion,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Workflow published",
		"organization_id", organizationID, "workflow_id", workflow.ID,
		"version", workflow.PublishedVersion)

	return workflow, nil
}

// Unpublish takes the workflow out of matching without touching its
// definition history.
func (s *Workflows) Unpublish(ctx context.Context, organizationID, workflowID string, actor models.Actor) (*models.Workflow, error) {
	workflow, err := s.Get(ctx, organizationID, workflowID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.PublishedVersion = 0
	workflow.PublishedAt = nil
	workflow.UpdatedAt = now

	err = s.persistence.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.persistence.Workflows().Save(txCtx, workflow); err != nil {
			return fmt.Errorf("failed to save workflow: %w", err)
		}

		if err := s.syncSchedule(txCtx, workflow, now); err != nil {
			return err
		}

		return s.audit.Append(txCtx, &models.AuditEntry{
			OrganizationID: organizationID,
			EventType:      audit.EventWorkflowUpdated,
			Actor:          actor.String(),
			TargetType:     "workflow",
			TargetID:       workflow.ID,
			Details: map[string]any{
				"change": "unpublished",
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// SetEnabled flips the kill switch. Enablement is operational state, not
// part of the authored definition, so no snapshot version is created.
func (s *Workflows) SetEnabled(ctx context.Context, organizationID, workflowID string, enabled bool, actor models.Actor) (*models.Workflow, error) {
	workflow, err := s.Get(ctx, organizationID, workflowID)
	if err != nil {
		return nil, err
	}

	change := "disabled"
	if enabled {
		change = "enabled"
	}

	now := time.Now().UTC()
	workflow.IsEnabled = enabled
	workflow.UpdatedAt = now

	err = s.persistence.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.persistence.Workflows().Save(txCtx, workflow); err != nil {
			return fmt.Errorf("failed to save workflow: %w", err)
		}

		if err := s.syncSchedule(txCtx, workflow, now); err != nil {
			return err
		}

		return s.audit.Append(txCtx, &models.AuditEntry{
			OrganizationID: organizationID,
			EventType:      audit.EventWorkflowUpdated,
			Actor:          actor.String(),
			TargetType:     "workflow",
			TargetID:       workflow.ID,
			Details: map[string]any{
				"change": change,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Delete soft-deletes the workflow so execution history keeps resolving.
func (s *Workflows) Delete(ctx context.Context, organizationID, workflowID string, actor models.Actor) error {
	workflow, err := s.Get(ctx, organizationID, workflowID)
	if err != nil {
		return err
	}

	err = s.persistence.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.persistence.Workflows().SoftDelete(txCtx, organizationID, workflowID); err != nil {
			return fmt.Errorf("failed to delete workflow: %w", err)
		}

		if err := s.persistence.Schedules().Delete(txCtx, workflowID); err != nil {
			return fmt.Errorf("failed to drop schedule: %w", err)
		}

		return s.audit.Append(txCtx, &models.AuditEntry{
			OrganizationID: organizationID,
			EventType:      audit.EventWorkflowDeleted,
			Actor:          actor.String(),
			TargetType:     "workflow",
			TargetID:       workflowID,
			Details: map[string]any{
				"name": workflow.Name,
			},
		})
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Workflow deleted",
		"organization_id", organizationID, "workflow_id", workflowID)

	return nil
}

// History lists the workflow's definition snapshots, oldest first.
func (s *Workflows) History(ctx context.Context, organizationID, workflowID string) ([]*models.EntityVersion, error) {
	if _, err := s.Get(ctx, organizationID, workflowID); err != nil {
		return nil, err
	}

	return s.store.History(ctx, organizationID, models.EntityTypeWorkflowDefinition, workflowID)
}

// Rollback re-applies an older definition snapshot as the new head version
// and updates the workflow row to match. History stays intact; the rollback
// is its own version and its own audit entry.
func (s *Workflows) Rollback(ctx context.Context, organizationID, workflowID string, toVersion int, actor models.Actor) (*models.Workflow, error) {
	workflow, err := s.Get(ctx, organizationID, workflowID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	err = s.persistence.Transaction(ctx, func(txCtx context.Context) error {
		version, err := s.store.Rollback(txCtx, organizationID, models.EntityTypeWorkflowDefinition, workflowID, toVersion, actor)
		if err != nil {
			return fmt.Errorf("failed to roll back workflow definition: %w", err)
		}

		payload, _, err := s.store.GetVersion(txCtx, organizationID, models.EntityTypeWorkflowDefinition, workflowID, version.Version)
		if err != nil {
			return err
		}

		if err := applyDefinitionPayload(workflow, payload); err != nil {
			return err
		}

		workflow.CurrentVersion = version.Version
		workflow.UpdatedAt = now

		if err := s.persistence.Workflows().Save(txCtx, workflow); err != nil {
			return fmt.Errorf("failed to save workflow: %w", err)
		}

		if err := s.syncSchedule(txCtx, workflow, now); err != nil {
			return err
		}

		return s.audit.Append(txCtx, &models.AuditEntry{
			OrganizationID: organizationID,
			EventType:      audit.EventWorkflowUpdated,
			Actor:          actor.String(),
			TargetType:     "workflow",
			TargetID:       workflow.ID,
			AfterVersionID: version.ID,
			Details: map[string]any{
				"change":     "rollback",
				"to_version": toVersion,
				"version":    version.Version,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Workflow rolled back",
		"organization_id", organizationID, "workflow_id", workflowID,
		"to_version", toVersion, "version", workflow.CurrentVersion)

	return workflow, nil
}

// snapshot appends the authored definition to the config store and returns
// the new version row.
func (s *Workflows) snapshot(ctx context.Context, workflow *models.Workflow, expectedVersion int, actor models.Actor) (*models.EntityVersion, error) {
	payload, err := definitionPayload(workflow)
	if err != nil {
		return nil, err
	}

	version, err := s.store.Save(ctx, workflow.OrganizationID, models.EntityTypeWorkflowDefinition, workflow.ID, payload, expectedVersion, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot workflow definition: %w", err)
	}

	return version, nil
}

// validateDefinition runs struct-tag validation and the model's own checks.
func (s *Workflows) validateDefinition(workflow *models.Workflow) error {
	if err := s.validate.Struct(workflow); err != nil {
		return NewValidationError("validateDefinition", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	if err := workflow.Validate(); err != nil {
		return NewValidationError("validateDefinition", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	return nil
}

// validateForPublishing ensures a workflow is ready to run.
func (s *Workflows) validateForPublishing(workflow *models.Workflow) error {
	if len(workflow.Actions) == 0 {
		return NewValidationError("validateForPublishing", "ACTIONS_REQUIRED",
			"workflow must have at least one action", ErrActionsRequired)
	}

	return s.validateDefinition(workflow)
}

// syncSchedule keeps the schedule row aligned with the workflow: scheduled
// workflows carry an active row while runnable and an inactive one while
// not; anything else has no row. An unchanged cron expression keeps its
// NextDueAt so republishing does not skip the next fire.
func (s *Workflows) syncSchedule(ctx context.Context, workflow *models.Workflow, now time.Time) error {
	schedules := s.persistence.Schedules()

	if workflow.TriggerType != models.TriggerScheduled || workflow.DeletedAt != nil {
		if err := schedules.Delete(ctx, workflow.ID); err != nil {
			return fmt.Errorf("failed to drop schedule: %w", err)
		}

		return nil
	}

	existing, err := schedules.Get(ctx, workflow.ID)
	if err != nil && !persistence.IsNotFound(err) {
		return err
	}

	if err == nil &&
		existing.CronExpression == workflow.TriggerConfig.Cron &&
		existing.Timezone == workflow.TriggerConfig.Timezone {
		existing.Active = workflow.Runnable()
		existing.UpdatedAt = now

		return schedules.Upsert(ctx, existing)
	}

	schedule, err := models.NewSchedule(workflow.ID, workflow.OrganizationID, workflow.TriggerConfig.Cron, workflow.TriggerConfig.Timezone)
	if err != nil {
		return fmt.Errorf("failed to build schedule: %w", err)
	}

	if existing != nil {
		schedule.CreatedAt = existing.CreatedAt
	}

	schedule.Active = workflow.Runnable()

	return schedules.Upsert(ctx, schedule)
}

// workflowDefinition is the authored part of a workflow, the content that
// gets snapshotted and rolled back. Identity, enablement and lifecycle
// bookkeeping stay on the row only.
type workflowDefinition struct {
	Name           string                `json:"name"`
	Description    string                `json:"description,omitempty"`
	TriggerType    models.TriggerType    `json:"trigger_type"`
	TriggerConfig  models.TriggerConfig  `json:"trigger_config"`
	Conditions     []models.Condition    `json:"conditions,omitempty"`
	ConditionLogic models.ConditionLogic `json:"condition_logic,omitempty"`
	Actions        []models.ActionSpec   `json:"actions,omitempty"`
	Scope          models.WorkflowScope  `json:"scope,omitempty"`
	OwnerUserID    string                `json:"owner_user_id,omitempty"`
}

// definitionPayload encodes the authored fields as the config store payload.
func definitionPayload(workflow *models.Workflow) (map[string]any, error) {
	definition := workflowDefinition{
		Name:           workflow.Name,
		Description:    workflow.Description,
		TriggerType:    workflow.TriggerType,
		TriggerConfig:  workflow.TriggerConfig,
		Conditions:     workflow.Conditions,
		ConditionLogic: workflow.ConditionLogic,
		Actions:        workflow.Actions,
		Scope:          workflow.Scope,
		OwnerUserID:    workflow.OwnerUserID,
	}

	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow definition: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to encode workflow definition: %w", err)
	}

	return payload, nil
}

// applyDefinitionPayload decodes a stored snapshot back onto the workflow.
func applyDefinitionPayload(workflow *models.Workflow, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to decode workflow definition: %w", err)
	}

	var definition workflowDefinition
	if err := json.Unmarshal(raw, &definition); err != nil {
		return fmt.Errorf("failed to decode workflow definition: %w", err)
	}

	workflow.Name = definition.Name
	workflow.Description = definition.Description
	workflow.TriggerType = definition.TriggerType
	workflow.TriggerConfig = definition.TriggerConfig
	workflow.Conditions = definition.Conditions
	workflow.ConditionLogic = definition.ConditionLogic
	workflow.Actions = definition.Actions
	workflow.Scope = definition.Scope
	workflow.OwnerUserID = definition.OwnerUserID

	return nil
}

// applyDefinitionFields copies the author-editable fields from an update
// request onto the stored row.
func applyDefinitionFields(dst, src *models.Workflow) {
	dst.Name = src.Name
	dst.Description = src.Description
	dst.TriggerType = src.TriggerType
	dst.TriggerConfig = src.TriggerConfig
	dst.Conditions = src.Conditions
	dst.ConditionLogic = src.ConditionLogic
	dst.Actions = src.Actions
	dst.Scope = src.Scope
	dst.OwnerUserID = src.OwnerUserID
}
