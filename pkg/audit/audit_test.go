package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence/memory"
)

func appendEntry(t *testing.T, logger *Logger, organizationID, eventType string) *models.AuditEntry {
	t.Helper()

	entry := &models.AuditEntry{
		OrganizationID: organizationID,
		EventType:      eventType,
		Actor:          "user:user-1",
		TargetType:     "workflow",
		TargetID:       "wf-1",
		Details:        map[string]any{"name": "Welcome sequence"},
	}
	require.NoError(t, logger.Append(t.Context(), entry))

	return entry
}

func TestLogger_AppendChainsEntries(t *testing.T) {
	p := memory.NewPersistence()
	logger := NewLogger(p)

	first := appendEntry(t, logger, "org-1", EventWorkflowCreated)
	second := appendEntry(t, logger, "org-1", EventWorkflowUpdated)
	third := appendEntry(t, logger, "org-1", EventWorkflowPublished)

	assert.Equal(t, GenesisHash, first.PrevHash)
	assert.Equal(t, first.EntryHash, second.PrevHash)
	assert.Equal(t, second.EntryHash, third.PrevHash)
	assert.NotEmpty(t, third.EntryHash)
	assert.Len(t, third.EntryHash, 64)
}

func TestLogger_ChainsArePerOrganization(t *testing.T) {
	p := memory.NewPersistence()
	logger := NewLogger(p)

	appendEntry(t, logger, "org-1", EventWorkflowCreated)
	other := appendEntry(t, logger, "org-2", EventWorkflowCreated)

	// A fresh organization chains off genesis, not another tenant's head.
	assert.Equal(t, GenesisHash, other.PrevHash)
}

func TestLogger_VerifyIntactChain(t *testing.T) {
	p := memory.NewPersistence()
	logger := NewLogger(p)

	require.NoError(t, logger.Verify(t.Context(), "org-empty"))

	for range 5 {
		appendEntry(t, logger, "org-1", EventExecutionRun)
	}

	require.NoError(t, logger.Verify(t.Context(), "org-1"))
}

func TestLogger_VerifyDetectsTampering(t *testing.T) {
	p := memory.NewPersistence()
	logger := NewLogger(p)

	appendEntry(t, logger, "org-1", EventWorkflowCreated)

	tampered := &models.AuditEntry{
		ID:             "forged",
		OrganizationID: "org-1",
		EventType:      EventTaskResolved,
		Actor:          "user:intruder",
		PrevHash:       GenesisHash,
		EntryHash:      "not-a-real-hash",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, p.Audit().Insert(t.Context(), tampered))

	err := logger.Verify(t.Context(), "org-1")
	require.Error(t, err)

	var breakErr *ChainBreakError
	require.ErrorAs(t, err, &breakErr)
	assert.Equal(t, 1, breakErr.Index)
	assert.Equal(t, "forged", breakErr.EntryID)
}

func TestComputeEntryHash_DeterministicOverDetails(t *testing.T) {
	entry := &models.AuditEntry{
		OrganizationID: "org-1",
		EventType:      EventSettingsChanged,
		Actor:          "system",
		PrevHash:       GenesisHash,
		Details:        map[string]any{"b": 2, "a": 1, "c": map[string]any{"z": true, "y": false}},
		CreatedAt:      time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
	}

	first, err := ComputeEntryHash(entry)
	require.NoError(t, err)

	second, err := ComputeEntryHash(entry)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entry.Details["a"] = 99
	changed, err := ComputeEntryHash(entry)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestLogger_AppendRequiresOrganization(t *testing.T) {
	logger := NewLogger(memory.NewPersistence())

	err := logger.Append(t.Context(), &models.AuditEntry{EventType: EventWorkflowCreated})
	assert.Error(t, err)
}
