package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// WorkflowRepository stores automation definitions in memory.
type WorkflowRepository struct {
	store *store
}

func (r *WorkflowRepository) List(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.listLocked(organizationID, func(w *models.Workflow) bool {
		return w.DeletedAt == nil
	})
}

func (r *WorkflowRepository) GetByID(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	data, ok := r.store.workflows[scopedKey(organizationID, id)]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	var workflow models.Workflow
	if err := decode(data, &workflow); err != nil {
		return nil, persistence.NewStoreError("GetByID", "workflow", id, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) FindCandidates(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.listLocked(organizationID, func(w *models.Workflow) bool {
		return w.Runnable() && w.TriggerType == triggerType
	})
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	data, err := encode(workflow)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.workflows[scopedKey(workflow.OrganizationID, workflow.ID)] = data

	return nil
}

func (r *WorkflowRepository) SoftDelete(ctx context.Context, organizationID, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := scopedKey(organizationID, id)

	data, ok := r.store.workflows[key]
	if !ok {
		return persistence.NewStoreError("SoftDelete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	var workflow models.Workflow
	if err := decode(data, &workflow); err != nil {
		return persistence.NewStoreError("SoftDelete", "workflow", id, err)
	}

	now := time.Now().UTC()
	workflow.DeletedAt = &now
	workflow.IsEnabled = false
	workflow.UpdatedAt = now

	updated, err := encode(&workflow)
	if err != nil {
		return persistence.NewStoreError("SoftDelete", "workflow", id, err)
	}

	r.store.workflows[key] = updated

	return nil
}

// listLocked scans the organization's workflows and returns the ones keep
// accepts, ordered by created_at then id. Callers hold the store lock.
func (r *WorkflowRepository) listLocked(organizationID string, keep func(*models.Workflow) bool) ([]*models.Workflow, error) {
	prefix := organizationID + "/"
	matched := make([]*models.Workflow, 0)

	for key, data := range r.store.workflows {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		var workflow models.Workflow
		if err := decode(data, &workflow); err != nil {
			return nil, persistence.NewStoreError("List", "workflow", key, err)
		}

		if keep(&workflow) {
			matched = append(matched, &workflow)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}

		return matched[i].ID < matched[j].ID
	})

	return matched, nil
}

// ScheduleRepository stores scheduled-workflow timing rows in memory.
type ScheduleRepository struct {
	store *store
}

func (r *ScheduleRepository) Upsert(ctx context.Context, schedule *models.Schedule) error {
	data, err := encode(schedule)
	if err != nil {
		return persistence.NewStoreError("Upsert", "schedule", schedule.WorkflowID, err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.schedules[schedule.WorkflowID] = data

	return nil
}

func (r *ScheduleRepository) Get(ctx context.Context, workflowID string) (*models.Schedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	data, ok := r.store.schedules[workflowID]
	if !ok {
		return nil, persistence.NewStoreError("Get", "schedule", workflowID, persistence.ErrScheduleNotFound)
	}

	var schedule models.Schedule
	if err := decode(data, &schedule); err != nil {
		return nil, persistence.NewStoreError("Get", "schedule", workflowID, err)
	}

	return &schedule, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, workflowID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.schedules, workflowID)

	return nil
}

func (r *ScheduleRepository) ListDue(ctx context.Context, organizationID string, asOf time.Time) ([]*models.Schedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	due := make([]*models.Schedule, 0)

	for workflowID, data := range r.store.schedules {
		var schedule models.Schedule
		if err := decode(data, &schedule); err != nil {
			return nil, persistence.NewStoreError("ListDue", "schedule", workflowID, err)
		}

		if schedule.OrganizationID == organizationID && schedule.IsDue(asOf) {
			due = append(due, &schedule)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextDueAt.Equal(due[j].NextDueAt) {
			return due[i].NextDueAt.Before(due[j].NextDueAt)
		}

		return due[i].WorkflowID < due[j].WorkflowID
	})

	return due, nil
}
