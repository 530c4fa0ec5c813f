// Package memory provides an in-memory persistence implementation for tests
// and local development. It keeps the same serialization discipline as the
// real backends: records are stored as JSON snapshots, so loads return deep
// copies and a caller mutating a returned model never changes the store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// Persistence implements persistence.Persistence with mutex-guarded maps.
type Persistence struct {
	store *store

	workflowRepo      *WorkflowRepository
	executionRepo     *ExecutionRepository
	taskRepo          *TaskRepository
	resumeJobRepo     *ResumeJobRepository
	entityVersionRepo *EntityVersionRepository
	auditRepo         *AuditRepository
	scheduleRepo      *ScheduleRepository
}

// store is the shared state behind every repository. One lock covers all
// aggregates so uniqueness checks that span a scan and an insert stay atomic.
type store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	workflows  map[string][]byte   // org/id
	executions map[string][]byte   // org/id
	tasks      map[string][]byte   // org/id
	resumeJobs map[string][]byte   // idempotency key
	versions   map[string][]byte   // org/type/id/version
	audit      map[string][][]byte // org, in chain order
	schedules  map[string][]byte   // workflow id

	closed bool
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	s := &store{
		workflows:  make(map[string][]byte),
		executions: make(map[string][]byte),
		tasks:      make(map[string][]byte),
		resumeJobs: make(map[string][]byte),
		versions:   make(map[string][]byte),
		audit:      make(map[string][][]byte),
		schedules:  make(map[string][]byte),
	}

	return &Persistence{
		store:             s,
		workflowRepo:      &WorkflowRepository{store: s},
		executionRepo:     &ExecutionRepository{store: s},
		taskRepo:          &TaskRepository{store: s},
		resumeJobRepo:     &ResumeJobRepository{store: s},
		entityVersionRepo: &EntityVersionRepository{store: s},
		auditRepo:         &AuditRepository{store: s},
		scheduleRepo:      &ScheduleRepository{store: s},
	}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository { return p.workflowRepo }

func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executionRepo }

func (p *Persistence) Tasks() persistence.TaskRepository { return p.taskRepo }

func (p *Persistence) ResumeJobs() persistence.ResumeJobRepository { return p.resumeJobRepo }

func (p *Persistence) EntityVersions() persistence.EntityVersionRepository {
	return p.entityVersionRepo
}

func (p *Persistence) Audit() persistence.AuditRepository { return p.auditRepo }

func (p *Persistence) Schedules() persistence.ScheduleRepository { return p.scheduleRepo }

type txMarker struct{}

// Transaction serializes fn against every other transaction, which is what
// the audit chain head relies on. The memory backend cannot roll back;
// repository writes inside fn apply immediately. Tests that need rollback
// behavior belong against the postgresql backend.
func (p *Persistence) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	p.store.txMu.Lock()
	defer p.store.txMu.Unlock()

	return fn(context.WithValue(ctx, txMarker{}, txMarker{}))
}

// HealthCheck reports whether the store is still open.
func (p *Persistence) HealthCheck(_ context.Context) error {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()

	if p.store.closed {
		return fmt.Errorf("memory persistence is closed")
	}

	return nil
}

// Close marks the store closed. Data stays readable until the process ends.
func (p *Persistence) Close(_ context.Context) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	p.store.closed = true

	return nil
}

// scopedKey builds the map key for an organization-scoped record.
func scopedKey(organizationID, id string) string {
	return organizationID + "/" + id
}

// encode snapshots a record for storage.
func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	return data, nil
}

// decode materializes a stored snapshot into out.
func decode(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}

	return nil
}
