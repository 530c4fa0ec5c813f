package models

// EntityTypeIntegrationSettings is the config store entity type that holds
// an organization's IntegrationSettings document.
const EntityTypeIntegrationSettings = "integration_settings"

// IntegrationSettings is the per-organization configuration for outbound
// integrations. It is versioned in the config store like any other entity,
// so changes are audited and can be rolled back.
type IntegrationSettings struct {
	ZapierEnabled    bool   `json:"zapier_enabled"`
	ZapierHookURL    string `json:"zapier_hook_url,omitempty"`
	EmailProvider    string `json:"email_provider,omitempty"`
	EmailFromAddress string `json:"email_from_address,omitempty"`
}
