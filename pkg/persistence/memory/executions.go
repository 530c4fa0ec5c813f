package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// ExecutionRepository stores workflow execution records in memory. Create
// enforces the per-organization dedupe key claim the way the postgresql
// backend's partial unique index does.
type ExecutionRepository struct {
	store *store
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if execution.DedupeKey != nil && *execution.DedupeKey != "" {
		claimed, err := r.dedupeKeyClaimedLocked(execution.OrganizationID, *execution.DedupeKey)
		if err != nil {
			return persistence.NewStoreError("Create", "execution", execution.ID, err)
		}

		if claimed {
			return persistence.NewStoreError("Create", "execution", execution.ID, persistence.ErrDuplicateDedupeKey)
		}
	}

	data, err := encode(execution)
	if err != nil {
		return persistence.NewStoreError("Create", "execution", execution.ID, err)
	}

	r.store.executions[scopedKey(execution.OrganizationID, execution.ID)] = data

	return nil
}

func (r *ExecutionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := scopedKey(execution.OrganizationID, execution.ID)
	if _, ok := r.store.executions[key]; !ok {
		return persistence.NewStoreError("Update", "execution", execution.ID, persistence.ErrExecutionNotFound)
	}

	data, err := encode(execution)
	if err != nil {
		return persistence.NewStoreError("Update", "execution", execution.ID, err)
	}

	r.store.executions[key] = data

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, organizationID, id string) (*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	data, ok := r.store.executions[scopedKey(organizationID, id)]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
	}

	var execution models.WorkflowExecution
	if err := decode(data, &execution); err != nil {
		return nil, persistence.NewStoreError("GetByID", "execution", id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, organizationID, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched, err := r.listLocked(organizationID, func(e *models.WorkflowExecution) bool {
		return e.WorkflowID == workflowID
	})
	if err != nil {
		return nil, err
	}

	// Newest first for history views.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].StartedAt.After(matched[j].StartedAt)
		}

		return matched[i].ID > matched[j].ID
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (r *ExecutionRepository) ListByEvent(ctx context.Context, organizationID, eventID string) ([]*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched, err := r.listLocked(organizationID, func(e *models.WorkflowExecution) bool {
		return e.EventID == eventID
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].StartedAt.Before(matched[j].StartedAt)
		}

		return matched[i].ID < matched[j].ID
	})

	return matched, nil
}

func (r *ExecutionRepository) HasTerminalForEvent(ctx context.Context, organizationID, eventID, workflowID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched, err := r.listLocked(organizationID, func(e *models.WorkflowExecution) bool {
		return e.EventID == eventID && e.WorkflowID == workflowID && e.Status.Terminal()
	})
	if err != nil {
		return false, err
	}

	return len(matched) > 0, nil
}

func (r *ExecutionRepository) ExistsByDedupeKey(ctx context.Context, organizationID, dedupeKey string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.dedupeKeyClaimedLocked(organizationID, dedupeKey)
}

func (r *ExecutionRepository) dedupeKeyClaimedLocked(organizationID, dedupeKey string) (bool, error) {
	prefix := organizationID + "/"

	for key, data := range r.store.executions {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		var execution models.WorkflowExecution
		if err := decode(data, &execution); err != nil {
			return false, err
		}

		if execution.DedupeKey != nil && *execution.DedupeKey == dedupeKey {
			return true, nil
		}
	}

	return false, nil
}

func (r *ExecutionRepository) listLocked(organizationID string, keep func(*models.WorkflowExecution) bool) ([]*models.WorkflowExecution, error) {
	prefix := organizationID + "/"
	matched := make([]*models.WorkflowExecution, 0)

	for key, data := range r.store.executions {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		var execution models.WorkflowExecution
		if err := decode(data, &execution); err != nil {
			return nil, persistence.NewStoreError("List", "execution", key, err)
		}

		if keep(&execution) {
			matched = append(matched, &execution)
		}
	}

	return matched, nil
}

// ResumeJobRepository stores the approval-resume idempotency ledger in
// memory, keyed by the resume idempotency key.
type ResumeJobRepository struct {
	store *store
}

func (r *ResumeJobRepository) Create(ctx context.Context, job *models.WorkflowResumeJob) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.resumeJobs[job.IdempotencyKey]; exists {
		return persistence.NewStoreError("Create", "resume job", job.IdempotencyKey, persistence.ErrDuplicateResumeJob)
	}

	data, err := encode(job)
	if err != nil {
		return persistence.NewStoreError("Create", "resume job", job.IdempotencyKey, err)
	}

	r.store.resumeJobs[job.IdempotencyKey] = data

	return nil
}

func (r *ResumeJobRepository) GetByKey(ctx context.Context, idempotencyKey string) (*models.WorkflowResumeJob, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	data, ok := r.store.resumeJobs[idempotencyKey]
	if !ok {
		return nil, persistence.NewStoreError("GetByKey", "resume job", idempotencyKey, persistence.ErrResumeJobNotFound)
	}

	var job models.WorkflowResumeJob
	if err := decode(data, &job); err != nil {
		return nil, persistence.NewStoreError("GetByKey", "resume job", idempotencyKey, err)
	}

	return &job, nil
}

func (r *ResumeJobRepository) MarkProcessed(ctx context.Context, idempotencyKey string, processedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	data, ok := r.store.resumeJobs[idempotencyKey]
	if !ok {
		return persistence.NewStoreError("MarkProcessed", "resume job", idempotencyKey, persistence.ErrResumeJobNotFound)
	}

	var job models.WorkflowResumeJob
	if err := decode(data, &job); err != nil {
		return persistence.NewStoreError("MarkProcessed", "resume job", idempotencyKey, err)
	}

	job.ProcessedAt = &processedAt

	updated, err := encode(&job)
	if err != nil {
		return persistence.NewStoreError("MarkProcessed", "resume job", idempotencyKey, err)
	}

	r.store.resumeJobs[idempotencyKey] = updated

	return nil
}
