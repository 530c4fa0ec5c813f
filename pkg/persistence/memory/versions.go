package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// storedVersion carries the snapshot payload bytes, which the public JSON
// form of EntityVersion excludes.
type storedVersion struct {
	models.EntityVersion

	StoredPayload []byte `json:"stored_payload,omitempty"`
}

func packVersion(version *models.EntityVersion) *storedVersion {
	return &storedVersion{EntityVersion: *version, StoredPayload: version.Payload}
}

func (s *storedVersion) unpack() *models.EntityVersion {
	version := s.EntityVersion
	version.Payload = s.StoredPayload

	return &version
}

// EntityVersionRepository stores immutable config snapshots in memory.
// Create enforces one row per (org, entity type, entity id, version).
type EntityVersionRepository struct {
	store *store
}

func versionKey(organizationID, entityType, entityID string, version int) string {
	return fmt.Sprintf("%s/%s/%s/%d", organizationID, entityType, entityID, version)
}

func (r *EntityVersionRepository) Create(ctx context.Context, version *models.EntityVersion) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := versionKey(version.OrganizationID, version.EntityType, version.EntityID, version.Version)
	if _, exists := r.store.versions[key]; exists {
		return persistence.NewStoreError("Create", "entity version", key, persistence.ErrVersionConflict)
	}

	data, err := encode(packVersion(version))
	if err != nil {
		return persistence.NewStoreError("Create", "entity version", key, err)
	}

	r.store.versions[key] = data

	return nil
}

func (r *EntityVersionRepository) Latest(ctx context.Context, organizationID, entityType, entityID string) (*models.EntityVersion, error) {
	versions, err := r.List(ctx, organizationID, entityType, entityID)
	if err != nil {
		return nil, err
	}

	if len(versions) == 0 {
		key := versionKey(organizationID, entityType, entityID, 0)

		return nil, persistence.NewStoreError("Latest", "entity version", key, persistence.ErrEntityVersionNotFound)
	}

	return versions[len(versions)-1], nil
}

func (r *EntityVersionRepository) Get(ctx context.Context, organizationID, entityType, entityID string, version int) (*models.EntityVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	key := versionKey(organizationID, entityType, entityID, version)

	data, ok := r.store.versions[key]
	if !ok {
		return nil, persistence.NewStoreError("Get", "entity version", key, persistence.ErrEntityVersionNotFound)
	}

	var stored storedVersion
	if err := decode(data, &stored); err != nil {
		return nil, persistence.NewStoreError("Get", "entity version", key, err)
	}

	return stored.unpack(), nil
}

func (r *EntityVersionRepository) List(ctx context.Context, organizationID, entityType, entityID string) ([]*models.EntityVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	prefix := fmt.Sprintf("%s/%s/%s/", organizationID, entityType, entityID)
	matched := make([]*models.EntityVersion, 0)

	for key, data := range r.store.versions {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		var stored storedVersion
		if err := decode(data, &stored); err != nil {
			return nil, persistence.NewStoreError("List", "entity version", key, err)
		}

		matched = append(matched, stored.unpack())
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Version < matched[j].Version
	})

	return matched, nil
}

// AuditRepository stores the per-organization hash chain in memory, in
// append order. Serialization of concurrent appends comes from running
// inside Transaction.
type AuditRepository struct {
	store *store
}

func (r *AuditRepository) LastHashForUpdate(ctx context.Context, organizationID string) (string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	chain := r.store.audit[organizationID]
	if len(chain) == 0 {
		return "", nil
	}

	var last models.AuditEntry
	if err := decode(chain[len(chain)-1], &last); err != nil {
		return "", persistence.NewStoreError("LastHashForUpdate", "audit entry", organizationID, err)
	}

	return last.EntryHash, nil
}

func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	data, err := encode(entry)
	if err != nil {
		return persistence.NewStoreError("Insert", "audit entry", entry.ID, err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.audit[entry.OrganizationID] = append(r.store.audit[entry.OrganizationID], data)

	return nil
}

// List returns entries in chain order. A positive limit keeps only the most
// recent entries; zero or negative returns the whole chain, which Verify
// depends on.
func (r *AuditRepository) List(ctx context.Context, organizationID string, limit int) ([]*models.AuditEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	chain := r.store.audit[organizationID]

	start := 0
	if limit > 0 && len(chain) > limit {
		start = len(chain) - limit
	}

	entries := make([]*models.AuditEntry, 0, len(chain)-start)

	for _, data := range chain[start:] {
		var entry models.AuditEntry
		if err := decode(data, &entry); err != nil {
			return nil, persistence.NewStoreError("List", "audit entry", organizationID, err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}
