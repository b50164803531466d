package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/tasksync/internal/model"
)

// UpsertIntegration inserts an integration or refreshes the host and
// workspace of an existing (provider, tenant) pair.
// If the integration has no ID, a new UUID is generated.
func (s *SQLStore) UpsertIntegration(ctx context.Context, in model.Integration) error {
	if in.Provider == "" || in.TenantID == "" {
		return fmt.Errorf("integration needs a provider and tenant id")
	}
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO integrations (id, provider, tenant_id, site_host, workspace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, tenant_id)
		DO UPDATE SET site_host = excluded.site_host, workspace_id = excluded.workspace_id`),
		in.ID, string(in.Provider), in.TenantID,
		strings.ToLower(in.SiteHost), in.WorkspaceID, in.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting integration %s/%s: %w", in.Provider, in.TenantID, err)
	}
	return nil
}

// FindIntegrationByHost returns the integration of provider whose site
// hostname equals host.
func (s *SQLStore) FindIntegrationByHost(
	ctx context.Context,
	provider model.Provider,
	host string,
) (*model.Integration, error) {
	var in model.Integration
	err := s.db.GetContext(ctx, &in, s.db.Rebind(`
		SELECT id, provider, tenant_id, site_host, workspace_id, created_at
		FROM integrations WHERE provider = ? AND site_host = ?
		ORDER BY created_at DESC LIMIT 1`),
		string(provider), strings.ToLower(host),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("integration for %s host %s: %w", provider, host, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding integration for host %s: %w", host, err)
	}
	return &in, nil
}

// ListIntegrations retrieves all stored integrations ordered by provider.
func (s *SQLStore) ListIntegrations(ctx context.Context) ([]model.Integration, error) {
	var out []model.Integration
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, provider, tenant_id, site_host, workspace_id, created_at
		FROM integrations ORDER BY provider, tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	return out, nil
}
