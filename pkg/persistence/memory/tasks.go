package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// storedTask is the storage shape of a task. Task excludes the raw action
// payload from its public JSON form, so storage carries it in an adjacent
// field, the same split the postgresql backend makes with a dedicated column.
type storedTask struct {
	models.Task

	ActionPayload map[string]any `json:"stored_action_payload,omitempty"`
}

func packTask(task *models.Task) *storedTask {
	return &storedTask{Task: *task, ActionPayload: task.WorkflowActionPayload}
}

func (s *storedTask) unpack() *models.Task {
	task := s.Task
	task.WorkflowActionPayload = s.ActionPayload

	return &task
}

// TaskRepository stores to-do tasks and approval gates in memory. Create
// enforces at most one open approval per (execution, action index).
type TaskRepository struct {
	store *store
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if task.IsApprovalGate() && task.Open() && task.WorkflowActionIndex != nil {
		pending, err := r.hasOpenApprovalLocked(task.OrganizationID, task.WorkflowExecutionID, *task.WorkflowActionIndex)
		if err != nil {
			return persistence.NewStoreError("Create", "task", task.ID, err)
		}

		if pending {
			return persistence.NewStoreError("Create", "task", task.ID, persistence.ErrDuplicatePendingApproval)
		}
	}

	data, err := encode(packTask(task))
	if err != nil {
		return persistence.NewStoreError("Create", "task", task.ID, err)
	}

	r.store.tasks[scopedKey(task.OrganizationID, task.ID)] = data

	return nil
}

func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := scopedKey(task.OrganizationID, task.ID)
	if _, ok := r.store.tasks[key]; !ok {
		return persistence.NewStoreError("Update", "task", task.ID, persistence.ErrTaskNotFound)
	}

	data, err := encode(packTask(task))
	if err != nil {
		return persistence.NewStoreError("Update", "task", task.ID, err)
	}

	r.store.tasks[key] = data

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, organizationID, id string) (*models.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	data, ok := r.store.tasks[scopedKey(organizationID, id)]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "task", id, persistence.ErrTaskNotFound)
	}

	var stored storedTask
	if err := decode(data, &stored); err != nil {
		return nil, persistence.NewStoreError("GetByID", "task", id, err)
	}

	return stored.unpack(), nil
}

func (r *TaskRepository) List(ctx context.Context, organizationID string, status models.TaskStatus, limit int) ([]*models.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched, err := r.listLocked(organizationID, func(t *models.Task) bool {
		return status == "" || t.Status == status
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}

		return matched[i].ID > matched[j].ID
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (r *TaskRepository) ListOpenApprovalsDueBefore(ctx context.Context, organizationID string, cutoff time.Time) ([]*models.Task, error) {
	return r.listDue(organizationID, cutoff, func(t *models.Task) bool {
		return t.IsApprovalGate()
	})
}

func (r *TaskRepository) ListOpenTodosDueBefore(ctx context.Context, organizationID string, cutoff time.Time) ([]*models.Task, error) {
	return r.listDue(organizationID, cutoff, func(t *models.Task) bool {
		return t.Kind == models.TaskKindTodo
	})
}

func (r *TaskRepository) ListOpenTodosOverdue(ctx context.Context, organizationID string, asOf time.Time) ([]*models.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched, err := r.listLocked(organizationID, func(t *models.Task) bool {
		return t.Kind == models.TaskKindTodo && t.Open() && t.Overdue(asOf)
	})
	if err != nil {
		return nil, err
	}

	sortByDue(matched)

	return matched, nil
}

func (r *TaskRepository) listDue(organizationID string, cutoff time.Time, kind func(*models.Task) bool) ([]*models.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched, err := r.listLocked(organizationID, func(t *models.Task) bool {
		return kind(t) && t.Open() && t.DueAt != nil && t.DueAt.Before(cutoff)
	})
	if err != nil {
		return nil, err
	}

	sortByDue(matched)

	return matched, nil
}

func (r *TaskRepository) hasOpenApprovalLocked(organizationID, executionID string, actionIndex int) (bool, error) {
	prefix := organizationID + "/"

	for key, data := range r.store.tasks {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		var stored storedTask
		if err := decode(data, &stored); err != nil {
			return false, fmt.Errorf("failed to scan task %s: %w", key, err)
		}

		task := stored.unpack()
		if task.IsApprovalGate() && task.Open() &&
			task.WorkflowExecutionID == executionID &&
			task.WorkflowActionIndex != nil && *task.WorkflowActionIndex == actionIndex {
			return true, nil
		}
	}

	return false, nil
}

func (r *TaskRepository) listLocked(organizationID string, keep func(*models.Task) bool) ([]*models.Task, error) {
	prefix := organizationID + "/"
	matched := make([]*models.Task, 0)

	for key, data := range r.store.tasks {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		var stored storedTask
		if err := decode(data, &stored); err != nil {
			return nil, persistence.NewStoreError("List", "task", key, err)
		}

		task := stored.unpack()
		if keep(task) {
			matched = append(matched, task)
		}
	}

	return matched, nil
}

func sortByDue(tasks []*models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		left, right := tasks[i], tasks[j]
		if left.DueAt != nil && right.DueAt != nil && !left.DueAt.Equal(*right.DueAt) {
			return left.DueAt.Before(*right.DueAt)
		}

		return left.ID < right.ID
	})
}
