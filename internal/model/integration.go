package model

import "time"

// Integration is a stored installation of a provider. It is only used to
// recover a tenant id from a site hostname when a webhook omits it.
type Integration struct {
	ID          string    `json:"id" db:"id"`
	Provider    Provider  `json:"provider" db:"provider"`
	TenantID    string    `json:"tenantId" db:"tenant_id"`
	SiteHost    string    `json:"siteHost" db:"site_host"`
	WorkspaceID string    `json:"workspaceId" db:"workspace_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
