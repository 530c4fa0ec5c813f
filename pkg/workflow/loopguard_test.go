package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence/memory"
)

type fakeSeenStore struct {
	marked map[string]bool
	err    error
}

func newFakeSeenStore() *fakeSeenStore {
	return &fakeSeenStore{marked: make(map[string]bool)}
}

func (s *fakeSeenStore) MarkSeen(_ context.Context, eventID, workflowID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}

	key := eventID + ":" + workflowID
	if s.marked[key] {
		return false, nil
	}

	s.marked[key] = true

	return true, nil
}

func TestLoopGuard_RootEventsAlwaysAllowed(t *testing.T) {
	p := memory.NewPersistence()
	guard := NewLoopGuard(slog.Default(), p.Executions(), nil)

	allowed, reason := guard.Allow(t.Context(), models.Causation{}, "org-1", "wf-1")
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestLoopGuard_BlocksBeyondMaxDepth(t *testing.T) {
	p := memory.NewPersistence()
	guard := NewLoopGuard(slog.Default(), p.Executions(), nil)

	cause := models.Causation{EventID: "evt-1", Depth: MaxCascadeDepth, Source: models.SourceWorkflow}
	allowed, _ := guard.Allow(t.Context(), cause, "org-1", "wf-1")
	assert.True(t, allowed)

	cause = cause.Child()
	allowed, reason := guard.Allow(t.Context(), cause, "org-1", "wf-1")
	assert.False(t, allowed)
	assert.Contains(t, reason, "cascade depth")
}

func TestLoopGuard_BlocksPairWithTerminalExecution(t *testing.T) {
	p := memory.NewPersistence()
	guard := NewLoopGuard(slog.Default(), p.Executions(), nil)

	execution := &models.WorkflowExecution{
		ID:             "exec-1",
		OrganizationID: "org-1",
		WorkflowID:     "wf-1",
		EventID:        "evt-1",
		Status:         models.ExecutionSuccess,
		StartedAt:      time.Now().UTC(),
	}
	require.NoError(t, p.Executions().Create(t.Context(), execution))

	cause := models.Causation{EventID: "evt-1", Depth: 1, Source: models.SourceWorkflow}

	allowed, reason := guard.Allow(t.Context(), cause, "org-1", "wf-1")
	assert.False(t, allowed)
	assert.Contains(t, reason, "already handled")

	// A different workflow on the same event is fine.
	allowed, _ = guard.Allow(t.Context(), cause, "org-1", "wf-2")
	assert.True(t, allowed)
}

func TestLoopGuard_PausedExecutionDoesNotBlock(t *testing.T) {
	p := memory.NewPersistence()
	guard := NewLoopGuard(slog.Default(), p.Executions(), nil)

	execution := &models.WorkflowExecution{
		ID:             "exec-1",
		OrganizationID: "org-1",
		WorkflowID:     "wf-1",
		EventID:        "evt-1",
		Status:         models.ExecutionPaused,
		StartedAt:      time.Now().UTC(),
	}
	require.NoError(t, p.Executions().Create(t.Context(), execution))

	cause := models.Causation{EventID: "evt-1", Depth: 1, Source: models.SourceWorkflow}
	allowed, _ := guard.Allow(t.Context(), cause, "org-1", "wf-1")
	assert.True(t, allowed)
}

func TestLoopGuard_SeenStoreShortCircuits(t *testing.T) {
	p := memory.NewPersistence()
	seen := newFakeSeenStore()
	guard := NewLoopGuard(slog.Default(), p.Executions(), seen)

	cause := models.Causation{EventID: "evt-1", Depth: 1, Source: models.SourceWorkflow}

	allowed, _ := guard.Allow(t.Context(), cause, "org-1", "wf-1")
	assert.True(t, allowed)

	allowed, reason := guard.Allow(t.Context(), cause, "org-1", "wf-1")
	assert.False(t, allowed)
	assert.Contains(t, reason, "already handled")
}

func TestLoopGuard_SeenStoreFailureFallsBackToRepository(t *testing.T) {
	p := memory.NewPersistence()
	seen := newFakeSeenStore()
	seen.err = errors.New("connection refused")
	guard := NewLoopGuard(slog.Default(), p.Executions(), seen)

	cause := models.Causation{EventID: "evt-1", Depth: 1, Source: models.SourceWorkflow}
	allowed, _ := guard.Allow(t.Context(), cause, "org-1", "wf-1")
	assert.True(t, allowed)
}
