package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) List(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	args := m.Called(ctx, organizationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) FindCandidates(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.Workflow, error) {
	args := m.Called(ctx, organizationID, triggerType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) SoftDelete(ctx context.Context, organizationID, id string) error {
	args := m.Called(ctx, organizationID, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, organizationID, id string) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, organizationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowExecution), args.Error(1)
}

func (m *MockExecutionRepository) ListByWorkflow(ctx context.Context, organizationID, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	args := m.Called(ctx, organizationID, workflowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowExecution), args.Error(1)
}

func (m *MockExecutionRepository) ListByEvent(ctx context.Context, organizationID, eventID string) ([]*models.WorkflowExecution, error) {
	args := m.Called(ctx, organizationID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowExecution), args.Error(1)
}

func (m *MockExecutionRepository) HasTerminalForEvent(ctx context.Context, organizationID, eventID, workflowID string) (bool, error) {
	args := m.Called(ctx, organizationID, eventID, workflowID)

	return args.Bool(0), args.Error(1)
}

func (m *MockExecutionRepository) ExistsByDedupeKey(ctx context.Context, organizationID, dedupeKey string) (bool, error) {
	args := m.Called(ctx, organizationID, dedupeKey)

	return args.Bool(0), args.Error(1)
}

// MockTaskRepository is a mock implementation of persistence.TaskRepository.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

func (m *MockTaskRepository) Update(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, organizationID, id string) (*models.Task, error) {
	args := m.Called(ctx, organizationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskRepository) List(ctx context.Context, organizationID string, status models.TaskStatus, limit int) ([]*models.Task, error) {
	args := m.Called(ctx, organizationID, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTaskRepository) ListOpenApprovalsDueBefore(ctx context.Context, organizationID string, cutoff time.Time) ([]*models.Task, error) {
	args := m.Called(ctx, organizationID, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTaskRepository) ListOpenTodosDueBefore(ctx context.Context, organizationID string, cutoff time.Time) ([]*models.Task, error) {
	args := m.Called(ctx, organizationID, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTaskRepository) ListOpenTodosOverdue(ctx context.Context, organizationID string, asOf time.Time) ([]*models.Task, error) {
	args := m.Called(ctx, organizationID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Task), args.Error(1)
}

// MockResumeJobRepository is a mock implementation of persistence.ResumeJobRepository.
type MockResumeJobRepository struct {
	mock.Mock
}

func (m *MockResumeJobRepository) Create(ctx context.Context, job *models.WorkflowResumeJob) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}

func (m *MockResumeJobRepository) GetByKey(ctx context.Context, idempotencyKey string) (*models.WorkflowResumeJob, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowResumeJob), args.Error(1)
}

func (m *MockResumeJobRepository) MarkProcessed(ctx context.Context, idempotencyKey string, processedAt time.Time) error {
	args := m.Called(ctx, idempotencyKey, processedAt)

	return args.Error(0)
}

// MockEntityVersionRepository is a mock implementation of persistence.EntityVersionRepository.
type MockEntityVersionRepository struct {
	mock.Mock
}

func (m *MockEntityVersionRepository) Create(ctx context.Context, version *models.EntityVersion) error {
	args := m.Called(ctx, version)

	return args.Error(0)
}

func (m *MockEntityVersionRepository) Latest(ctx context.Context, organizationID, entityType, entityID string) (*models.EntityVersion, error) {
	args := m.Called(ctx, organizationID, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.EntityVersion), args.Error(1)
}

func (m *MockEntityVersionRepository) Get(ctx context.Context, organizationID, entityType, entityID string, version int) (*models.EntityVersion, error) {
	args := m.Called(ctx, organizationID, entityType, entityID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.EntityVersion), args.Error(1)
}

func (m *MockEntityVersionRepository) List(ctx context.Context, organizationID, entityType, entityID string) ([]*models.EntityVersion, error) {
	args := m.Called(ctx, organizationID, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.EntityVersion), args.Error(1)
}

// MockAuditRepository is a mock implementation of persistence.AuditRepository.
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) LastHashForUpdate(ctx context.Context, organizationID string) (string, error) {
	args := m.Called(ctx, organizationID)

	return args.String(0), args.Error(1)
}

func (m *MockAuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, organizationID string, limit int) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, organizationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AuditEntry), args.Error(1)
}

// MockScheduleRepository is a mock implementation of persistence.ScheduleRepository.
type MockScheduleRepository struct {
	mock.Mock
}

func (m *MockScheduleRepository) Upsert(ctx context.Context, schedule *models.Schedule) error {
	args := m.Called(ctx, schedule)

	return args.Error(0)
}

func (m *MockScheduleRepository) Get(ctx context.Context, workflowID string) (*models.Schedule, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Schedule), args.Error(1)
}

func (m *MockScheduleRepository) Delete(ctx context.Context, workflowID string) error {
	args := m.Called(ctx, workflowID)

	return args.Error(0)
}

func (m *MockScheduleRepository) ListDue(ctx context.Context, organizationID string, asOf time.Time) ([]*models.Schedule, error) {
	args := m.Called(ctx, organizationID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Schedule), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence. Each
// repository accessor returns a typed mock; Transaction runs fn inline so
// expectations set on the repositories see the same calls a real transaction
// would.
type MockPersistence struct {
	mock.Mock

	workflowRepo      *MockWorkflowRepository
	executionRepo     *MockExecutionRepository
	taskRepo          *MockTaskRepository
	resumeJobRepo     *MockResumeJobRepository
	entityVersionRepo *MockEntityVersionRepository
	auditRepo         *MockAuditRepository
	scheduleRepo      *MockScheduleRepository
}

// NewMockPersistence creates a MockPersistence with all mock repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		workflowRepo:      &MockWorkflowRepository{},
		executionRepo:     &MockExecutionRepository{},
		taskRepo:          &MockTaskRepository{},
		resumeJobRepo:     &MockResumeJobRepository{},
		entityVersionRepo: &MockEntityVersionRepository{},
		auditRepo:         &MockAuditRepository{},
		scheduleRepo:      &MockScheduleRepository{},
	}
}

func (m *MockPersistence) Workflows() persistence.WorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) Executions() persistence.ExecutionRepository {
	return m.executionRepo
}

func (m *MockPersistence) Tasks() persistence.TaskRepository {
	return m.taskRepo
}

func (m *MockPersistence) ResumeJobs() persistence.ResumeJobRepository {
	return m.resumeJobRepo
}

func (m *MockPersistence) EntityVersions() persistence.EntityVersionRepository {
	return m.entityVersionRepo
}

func (m *MockPersistence) Audit() persistence.AuditRepository {
	return m.auditRepo
}

func (m *MockPersistence) Schedules() persistence.ScheduleRepository {
	return m.scheduleRepo
}

// MockWorkflows returns the typed workflow mock for setting expectations.
func (m *MockPersistence) MockWorkflows() *MockWorkflowRepository {
	return m.workflowRepo
}

// MockExecutions returns the typed execution mock for setting expectations.
func (m *MockPersistence) MockExecutions() *MockExecutionRepository {
	return m.executionRepo
}

// MockTasks returns the typed task mock for setting expectations.
func (m *MockPersistence) MockTasks() *MockTaskRepository {
	return m.taskRepo
}

func (m *MockPersistence) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
