package models

import "time"

// EntityTypeWorkflowDefinition is the config store entity type that holds
// workflow definition snapshots; every workflow save appends one.
const EntityTypeWorkflowDefinition = "workflow_definition"

// EntityVersion is one immutable snapshot of a versioned configuration
// entity (workflow definitions, pipelines, integration settings, email
// templates). Versions are monotonic per (org, entity_type, entity_id) and
// never rewritten; rollback appends a new version with an old payload.
//
// Payload is the stored bytes: canonical JSON, or its AES-GCM ciphertext
// when the store runs with an encryption key. Checksum is the SHA-256 hex of
// the canonical plaintext either way, so integrity checks do not need the
// key.
type EntityVersion struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	Version        int       `json:"version"`
	Payload        []byte    `json:"-"`
	Encrypted      bool      `json:"encrypted"`
	Checksum       string    `json:"checksum"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}
