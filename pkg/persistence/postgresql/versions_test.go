package postgresql_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

func testEntityVersion(organizationID, entityID string, version int) *models.EntityVersion {
	return &models.EntityVersion{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		EntityType:     "workflow",
		EntityID:       entityID,
		Version:        version,
		Payload:        fmt.Appendf(nil, `{"name":"definition v%d"}`, version),
		Checksum:       fmt.Sprintf("%064d", version),
		CreatedBy:      "user:author-1",
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestEntityVersionRepository_CreateEnforcesUniqueVersion(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := "org-ver-unique"
	entityID := uuid.NewString()

	require.NoError(t, p.EntityVersions().Create(ctx, testEntityVersion(organizationID, entityID, 1)))

	conflicting := testEntityVersion(organizationID, entityID, 1)
	err := p.EntityVersions().Create(ctx, conflicting)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)
	assert.True(t, persistence.IsConflict(err))

	// Same version number of a different entity is fine.
	require.NoError(t, p.EntityVersions().Create(ctx, testEntityVersion(organizationID, uuid.NewString(), 1)))
}

func TestEntityVersionRepository_LatestGetAndList(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := "org-ver-history"
	entityID := uuid.NewString()

	for version := 1; version <= 3; version++ {
		require.NoError(t, p.EntityVersions().Create(ctx, testEntityVersion(organizationID, entityID, version)))
	}

	latest, err := p.EntityVersions().Latest(ctx, organizationID, "workflow", entityID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)
	assert.JSONEq(t, `{"name":"definition v3"}`, string(latest.Payload))

	second, err := p.EntityVersions().Get(ctx, organizationID, "workflow", entityID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, "user:author-1", second.CreatedBy)

	history, err := p.EntityVersions().List(ctx, organizationID, "workflow", entityID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	for i, version := range history {
		assert.Equal(t, i+1, version.Version)
	}

	_, err = p.EntityVersions().Latest(ctx, organizationID, "workflow", uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrEntityVersionNotFound)
	assert.True(t, persistence.IsNotFound(err))

	_, err = p.EntityVersions().Get(ctx, organizationID, "workflow", entityID, 9)
	assert.True(t, persistence.IsNotFound(err))
}

func appendAuditEntry(ctx context.Context, t *testing.T, p persistence.Persistence, organizationID, eventType, entryHash string) {
	t.Helper()

	err := p.Transaction(ctx, func(txCtx context.Context) error {
		prevHash, err := p.Audit().LastHashForUpdate(txCtx, organizationID)
		if err != nil {
			return err
		}

		return p.Audit().Insert(txCtx, &models.AuditEntry{
			ID:             uuid.NewString(),
			OrganizationID: organizationID,
			EventType:      eventType,
			Actor:          "user:auditor-1",
			Details:        map[string]any{"event": eventType},
			PrevHash:       prevHash,
			EntryHash:      entryHash,
			CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		})
	})
	require.NoError(t, err)
}

func TestAuditRepository_ChainLinksThroughLastHash(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := "org-audit-chain"

	head, err := p.Audit().LastHashForUpdate(ctx, organizationID)
	require.NoError(t, err)
	assert.Empty(t, head, "a fresh chain has no head")

	appendAuditEntry(ctx, t, p, organizationID, "workflow.created", "hash-1")
	appendAuditEntry(ctx, t, p, organizationID, "workflow.published", "hash-2")
	appendAuditEntry(ctx, t, p, organizationID, "execution.run", "hash-3")

	entries, err := p.Audit().List(ctx, organizationID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "workflow.created", entries[0].EventType)
	assert.Empty(t, entries[0].PrevHash)
	assert.Equal(t, "hash-1", entries[0].EntryHash)
	assert.Equal(t, "hash-1", entries[1].PrevHash)
	assert.Equal(t, "hash-2", entries[1].EntryHash)
	assert.Equal(t, "hash-2", entries[2].PrevHash)
	assert.Equal(t, "workflow.published", entries[1].Details["event"])

	head, err = p.Audit().LastHashForUpdate(ctx, organizationID)
	require.NoError(t, err)
	assert.Equal(t, "hash-3", head)
}

func TestAuditRepository_ListLimitKeepsMostRecentInChainOrder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := "org-audit-limit"

	for i := 1; i <= 5; i++ {
		appendAuditEntry(ctx, t, p, organizationID, fmt.Sprintf("event.%d", i), fmt.Sprintf("hash-%d", i))
	}

	recent, err := p.Audit().List(ctx, organizationID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Still oldest-to-newest within the window.
	assert.Equal(t, "event.4", recent[0].EventType)
	assert.Equal(t, "event.5", recent[1].EventType)
}

func TestAuditRepository_ChainsAreIsolatedPerOrganization(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	appendAuditEntry(ctx, t, p, "org-audit-a", "workflow.created", "hash-a1")
	appendAuditEntry(ctx, t, p, "org-audit-b", "workflow.created", "hash-b1")

	headA, err := p.Audit().LastHashForUpdate(ctx, "org-audit-a")
	require.NoError(t, err)
	assert.Equal(t, "hash-a1", headA)

	headB, err := p.Audit().LastHashForUpdate(ctx, "org-audit-b")
	require.NoError(t, err)
	assert.Equal(t, "hash-b1", headB)

	entriesA, err := p.Audit().List(ctx, "org-audit-a", 0)
	require.NoError(t, err)
	assert.Len(t, entriesA, 1)
}
