package models

import "time"

// AuditEntry is one immutable row of the per-organization tamper-evident
// log. EntryHash covers PrevHash plus the canonicalized entry fields, so
// entry N's hash must equal entry N+1's PrevHash within the organization;
// the first entry chains off the genesis constant.
//
// Details carries only business-meaningful, PII-redacted data; callers must
// never place secrets or raw personal data in it.
type AuditEntry struct {
	ID              string         `json:"id"`
	OrganizationID  string         `json:"organization_id"`
	EventType       string         `json:"event_type"`
	Actor           string         `json:"actor"`
	TargetType      string         `json:"target_type,omitempty"`
	TargetID        string         `json:"target_id,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	IP              string         `json:"ip,omitempty"`
	UserAgent       string         `json:"user_agent,omitempty"`
	RequestID       string         `json:"request_id,omitempty"`
	BeforeVersionID string         `json:"before_version_id,omitempty"`
	AfterVersionID  string         `json:"after_version_id,omitempty"`
	PrevHash        string         `json:"prev_hash"`
	EntryHash       string         `json:"entry_hash"`
	CreatedAt       time.Time      `json:"created_at"`
}
