package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// Matcher selects the workflows a trigger event should run. Pure read: the
// repository returns runnable candidates of the event's trigger type in
// (created_at, id) order, and the matcher applies the trigger-specific
// sub-filters and scope rules without reordering, so side-effect order is
// reproducible across retries.
type Matcher struct {
	logger    *slog.Logger
	workflows persistence.WorkflowRepository
}

// NewMatcher creates a matcher over the workflow repository.
func NewMatcher(logger *slog.Logger, workflows persistence.WorkflowRepository) *Matcher {
	return &Matcher{
		logger:    logger.With("module", "workflow_matcher"),
		workflows: workflows,
	}
}

// Match returns the workflows that should run for the event, in deterministic
// order.
func (m *Matcher) Match(ctx context.Context, organizationID string, event models.TriggerEvent) ([]*models.Workflow, error) {
	candidates, err := m.workflows.FindCandidates(ctx, organizationID, event.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate workflows: %w", err)
	}

	matched := make([]*models.Workflow, 0, len(candidates))

	for _, candidate := range candidates {
		if event.WorkflowID != "" && candidate.ID != event.WorkflowID {
			continue
		}

		if !matchesScope(candidate, event) {
			continue
		}

		if !matchesTriggerConfig(candidate, event) {
			continue
		}

		matched = append(matched, candidate)
	}

	m.logger.DebugContext(ctx, "Matched workflows for trigger event",
		"trigger_type", event.Type,
		"candidates", len(candidates),
		"matched", len(matched))

	return matched, nil
}

// matchesScope applies the personal-scope restriction: a personal workflow
// only reacts to events owned by, or acted on by, its owner.
func matchesScope(w *models.Workflow, event models.TriggerEvent) bool {
	if w.Scope != models.WorkflowScopePersonal {
		return true
	}

	if w.OwnerUserID == "" {
		return false
	}

	if event.OwnerUserID == w.OwnerUserID {
		return true
	}

	return event.Actor.Kind == models.ActorKindUser && event.Actor.UserID == w.OwnerUserID
}

// matchesTriggerConfig applies the trigger-specific sub-filter. Empty config
// fields mean "no filter". The sweeper synthesizes inactivity and task events
// once per entity or task, so the measurements those filters need
// (days_inactive, hours_until_due) ride the event payload and each workflow
// is held to its own threshold here.
func matchesTriggerConfig(w *models.Workflow, event models.TriggerEvent) bool {
	config := w.TriggerConfig

	switch w.TriggerType {
	case models.TriggerStatusChanged:
		if config.EntityType != "" && config.EntityType != event.EntityType {
			return false
		}

		if config.ToStage != "" && config.ToStage != stringField(event.Data, "to_stage") {
			return false
		}

		if config.FromStage != "" && config.FromStage != stringField(event.Data, "from_stage") {
			return false
		}
	case models.TriggerFormSubmitted:
		if config.FormID != "" && config.FormID != stringField(event.Data, "form_id") {
			return false
		}
	case models.TriggerIntakeLeadCreated:
		if config.LeadSource != "" && config.LeadSource != stringField(event.Data, "lead_source") {
			return false
		}
	case models.TriggerInactivity:
		if config.EntityType != "" && config.EntityType != event.EntityType {
			return false
		}

		if config.Stage != "" && config.Stage != stringField(event.Entity, "stage") {
			return false
		}

		if config.InactiveDays > 0 {
			days, ok := numberField(event.Data, "days_inactive")
			if !ok || days < float64(config.InactiveDays) {
				return false
			}
		}
	case models.TriggerTaskDue:
		if config.WithinHours > 0 {
			hours, ok := numberField(event.Data, "hours_until_due")
			if !ok || hours > float64(config.WithinHours) {
				return false
			}
		}
	case models.TriggerScheduled, models.TriggerTaskOverdue:
		// Due-ness is evaluated by the sweeper before it synthesizes the
		// event; scheduled events address their workflow directly.
	}

	return true
}

// stringField reads one event payload field as its canonical string form.
func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}

	value, ok := data[key]
	if !ok {
		return ""
	}

	return canonicalString(value)
}

// numberField reads one event payload field as a number, accepting whatever
// numeric type a JSON round trip may have left behind.
func numberField(data map[string]any, key string) (float64, bool) {
	if data == nil {
		return 0, false
	}

	value, ok := data[key]
	if !ok {
		return 0, false
	}

	return asNumber(value)
}
