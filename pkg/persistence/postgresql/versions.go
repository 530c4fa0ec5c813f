package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// EntityVersionRepository stores immutable config snapshots. The unique
// index on (org, entity type, entity id, version) turns two writers racing
// on the same expected version into ErrVersionConflict for the loser.
type EntityVersionRepository struct {
	session *session
}

const entityVersionColumns = `
		id
	  , organization_id
	  , entity_type
	  , entity_id
	  , version
	  , payload
	  , encrypted
	  , checksum
	  , created_by
	  , created_at
`

func (r *EntityVersionRepository) Create(ctx context.Context, version *models.EntityVersion) error {
	query := `
		INSERT INTO entity_versions (
			id, organization_id, entity_type, entity_id, version,
			payload, encrypted, checksum, created_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.session.q(ctx).ExecContext(ctx, query,
		version.ID,
		version.OrganizationID,
		version.EntityType,
		version.EntityID,
		version.Version,
		version.Payload,
		version.Encrypted,
		version.Checksum,
		version.CreatedBy,
		version.CreatedAt,
	)
	if err != nil {
		if uniqueViolation(err, constraintEntityVersionsUnique) {
			return persistence.NewStoreError("Create", "entity version", version.ID, persistence.ErrVersionConflict)
		}

		return persistence.NewStoreError("Create", "entity version", version.ID, err)
	}

	return nil
}

func (r *EntityVersionRepository) Latest(ctx context.Context, organizationID, entityType, entityID string) (*models.EntityVersion, error) {
	query := `
		SELECT ` + entityVersionColumns + `
		FROM entity_versions
		WHERE organization_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY version DESC
		LIMIT 1
	`

	row := r.session.q(ctx).QueryRowContext(ctx, query, organizationID, entityType, entityID)

	version, err := scanEntityVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("Latest", "entity version", entityID, persistence.ErrEntityVersionNotFound)
		}

		return nil, persistence.NewStoreError("Latest", "entity version", entityID, err)
	}

	return version, nil
}

func (r *EntityVersionRepository) Get(ctx context.Context, organizationID, entityType, entityID string, version int) (*models.EntityVersion, error) {
	query := `
		SELECT ` + entityVersionColumns + `
		FROM entity_versions
		WHERE organization_id = $1 AND entity_type = $2 AND entity_id = $3 AND version = $4
	`

	row := r.session.q(ctx).QueryRowContext(ctx, query, organizationID, entityType, entityID, version)

	found, err := scanEntityVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("Get", "entity version", entityID, persistence.ErrEntityVersionNotFound)
		}

		return nil, persistence.NewStoreError("Get", "entity version", entityID, err)
	}

	return found, nil
}

func (r *EntityVersionRepository) List(ctx context.Context, organizationID, entityType, entityID string) ([]*models.EntityVersion, error) {
	query := `
		SELECT ` + entityVersionColumns + `
		FROM entity_versions
		WHERE organization_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY version
	`

	rows, err := r.session.q(ctx).QueryContext(ctx, query, organizationID, entityType, entityID)
	if err != nil {
		return nil, persistence.NewStoreError("List", "entity version", entityID, err)
	}

	defer r.session.closeRows(ctx, rows)

	versions := make([]*models.EntityVersion, 0)

	for rows.Next() {
		version, err := scanEntityVersion(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "entity version", entityID, err)
		}

		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("List", "entity version", entityID, err)
	}

	return versions, nil
}

func scanEntityVersion(scanner interface{ Scan(dest ...any) error }) (*models.EntityVersion, error) {
	var version models.EntityVersion

	err := scanner.Scan(
		&version.ID,
		&version.OrganizationID,
		&version.EntityType,
		&version.EntityID,
		&version.Version,
		&version.Payload,
		&version.Encrypted,
		&version.Checksum,
		&version.CreatedBy,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &version, nil
}

// AuditRepository stores the per-organization hash chain. Chain order is the
// seq column, assigned on insert; appends run inside Transaction so the
// advisory lock in LastHashForUpdate holds until commit.
type AuditRepository struct {
	session *session
}

const auditEntryColumns = `
		id
	  , organization_id
	  , event_type
	  , actor
	  , target_type
	  , target_id
	  , details
	  , ip
	  , user_agent
	  , request_id
	  , before_version_id
	  , after_version_id
	  , prev_hash
	  , entry_hash
	  , created_at
`

// LastHashForUpdate locks the organization's chain for the rest of the
// current transaction, then returns the newest entry hash. Empty string
// means the chain has no entries yet.
func (r *AuditRepository) LastHashForUpdate(ctx context.Context, organizationID string) (string, error) {
	q := r.session.q(ctx)

	_, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, organizationID)
	if err != nil {
		return "", persistence.NewStoreError("LastHashForUpdate", "audit entry", organizationID, err)
	}

	query := `
		SELECT entry_hash
		FROM audit_entries
		WHERE organization_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`

	var lastHash string

	err = q.QueryRowContext(ctx, query, organizationID).Scan(&lastHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", persistence.NewStoreError("LastHashForUpdate", "audit entry", organizationID, err)
	}

	return lastHash, nil
}

func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return persistence.NewStoreError("Insert", "audit entry", entry.ID, fmt.Errorf("failed to marshal details: %w", err))
	}

	query := `
		INSERT INTO audit_entries (
			id, organization_id, event_type, actor, target_type, target_id,
			details, ip, user_agent, request_id, before_version_id,
			after_version_id, prev_hash, entry_hash, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.session.q(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.EventType,
		entry.Actor,
		entry.TargetType,
		entry.TargetID,
		detailsJSON,
		entry.IP,
		entry.UserAgent,
		entry.RequestID,
		entry.BeforeVersionID,
		entry.AfterVersionID,
		entry.PrevHash,
		entry.EntryHash,
		entry.CreatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Insert", "audit entry", entry.ID, err)
	}

	return nil
}

// List returns entries in chain order. A positive limit keeps only the most
// recent entries; zero or negative returns the whole chain, which Verify
// depends on.
func (r *AuditRepository) List(ctx context.Context, organizationID string, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT ` + auditEntryColumns + `
		FROM audit_entries
		WHERE organization_id = $1
		ORDER BY seq
	`

	args := []any{organizationID}

	if limit > 0 {
		query = `
			SELECT ` + auditEntryColumns + `
			FROM (
				SELECT ` + auditEntryColumns + `
				     , seq
				FROM audit_entries
				WHERE organization_id = $1
				ORDER BY seq DESC
				LIMIT $2
			) recent
			ORDER BY seq
		`

		args = append(args, limit)
	}

	rows, err := r.session.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("List", "audit entry", organizationID, err)
	}

	defer r.session.closeRows(ctx, rows)

	entries := make([]*models.AuditEntry, 0)

	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "audit entry", organizationID, err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("List", "audit entry", organizationID, err)
	}

	return entries, nil
}

func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (*models.AuditEntry, error) {
	var (
		entry       models.AuditEntry
		detailsJSON []byte
	)

	err := scanner.Scan(
		&entry.ID,
		&entry.OrganizationID,
		&entry.EventType,
		&entry.Actor,
		&entry.TargetType,
		&entry.TargetID,
		&detailsJSON,
		&entry.IP,
		&entry.UserAgent,
		&entry.RequestID,
		&entry.BeforeVersionID,
		&entry.AfterVersionID,
		&entry.PrevHash,
		&entry.EntryHash,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if detailsJSON != nil {
		if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
	}

	return &entry, nil
}
