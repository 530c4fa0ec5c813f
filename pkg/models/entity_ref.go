package models

import "time"

// EntityRef is the engine's view of one CRM record. The CRM owns its
// records; workflows only read this projection and mutate through the
// entity service.
type EntityRef struct {
	EntityType     string         `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	OwnerUserID    string         `json:"owner_user_id,omitempty"`
	Fields         map[string]any `json:"fields,omitempty"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}
