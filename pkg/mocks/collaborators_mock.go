// Package mocks provides testify mock implementations of the engine's
// collaborator and persistence interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stagehandhq/stagehand/pkg/models"
)

// MockEntityService is a mock implementation of protocol.EntityService.
type MockEntityService struct {
	mock.Mock
}

func (m *MockEntityService) Get(ctx context.Context, organizationID, entityType, entityID string) (models.EntityRef, error) {
	args := m.Called(ctx, organizationID, entityType, entityID)
	if args.Get(0) == nil {
		return models.EntityRef{}, args.Error(1)
	}

	return args.Get(0).(models.EntityRef), args.Error(1)
}

func (m *MockEntityService) AddNote(ctx context.Context, organizationID, entityType, entityID, body string, pinned bool, actor models.Actor) error {
	args := m.Called(ctx, organizationID, entityType, entityID, body, pinned, actor)

	return args.Error(0)
}

func (m *MockEntityService) ChangeOwner(ctx context.Context, organizationID, entityType, entityID, newOwnerUserID string, actor models.Actor) error {
	args := m.Called(ctx, organizationID, entityType, entityID, newOwnerUserID, actor)

	return args.Error(0)
}

func (m *MockEntityService) AssignOwnerFromRole(ctx context.Context, organizationID, entityType, entityID, role string, actor models.Actor) (string, error) {
	args := m.Called(ctx, organizationID, entityType, entityID, role, actor)

	return args.String(0), args.Error(1)
}

func (m *MockEntityService) ChangeStage(ctx context.Context, organizationID, entityType, entityID, toStage string, actor models.Actor) (models.EntityRef, error) {
	args := m.Called(ctx, organizationID, entityType, entityID, toStage, actor)
	if args.Get(0) == nil {
		return models.EntityRef{}, args.Error(1)
	}

	return args.Get(0).(models.EntityRef), args.Error(1)
}

func (m *MockEntityService) PromoteIntakeLead(ctx context.Context, organizationID, leadID, targetStage string, actor models.Actor) (models.EntityRef, error) {
	args := m.Called(ctx, organizationID, leadID, targetStage, actor)
	if args.Get(0) == nil {
		return models.EntityRef{}, args.Error(1)
	}

	return args.Get(0).(models.EntityRef), args.Error(1)
}

func (m *MockEntityService) ListOrganizations(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

func (m *MockEntityService) ListInactive(ctx context.Context, organizationID, entityType string, since time.Time) ([]models.EntityRef, error) {
	args := m.Called(ctx, organizationID, entityType, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.EntityRef), args.Error(1)
}

// MockJobDispatcher is a mock implementation of protocol.JobDispatcher.
type MockJobDispatcher struct {
	mock.Mock
}

func (m *MockJobDispatcher) Enqueue(ctx context.Context, job models.QueuedJob) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}

// MockTaskWriter is a mock implementation of protocol.TaskWriter.
type MockTaskWriter struct {
	mock.Mock
}

func (m *MockTaskWriter) CreateTask(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

// MockSettingsReader is a mock implementation of protocol.SettingsReader.
type MockSettingsReader struct {
	mock.Mock
}

func (m *MockSettingsReader) IntegrationSettings(ctx context.Context, organizationID string) (models.IntegrationSettings, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return models.IntegrationSettings{}, args.Error(1)
	}

	return args.Get(0).(models.IntegrationSettings), args.Error(1)
}
