package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhle/tasksync/internal/credential"
	"github.com/nhle/tasksync/internal/crossref"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source/azure"
	"github.com/nhle/tasksync/internal/source/github"
	"github.com/nhle/tasksync/internal/source/jira"
	"github.com/nhle/tasksync/internal/store"
	"github.com/nhle/tasksync/internal/sync"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg      *model.AppConfig
	logger   *slog.Logger
	store    *store.SQLStore
	creds    *credential.KeyringStore
	trackers sync.Trackers
}

func newApp(ctx context.Context, configPath string, stderr io.Writer) (*app, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log, stderr)

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	credsCfg := cfg.Credentials
	credsCfg.FileDir = expandHome(credsCfg.FileDir)
	creds, err := credential.Open(credsCfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		creds:  creds,
	}
	a.trackers = a.newTrackers()

	if err := a.syncIntegrations(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) newTrackers() sync.Trackers {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	p := a.cfg.Providers
	return sync.NewTrackers(
		jira.NewClient(p.Jira.BaseURL, httpClient),
		github.NewClient(p.GitHub.BaseURL, httpClient),
		azure.NewClient(p.Azure.BaseURL, httpClient),
	)
}

// syncIntegrations stores the configured installations so webhooks that
// only carry a site URL can be mapped back to a tenant.
func (a *app) syncIntegrations(ctx context.Context) error {
	for _, ic := range a.cfg.Integrations {
		in := model.Integration{
			Provider:    model.Provider(ic.Provider),
			TenantID:    ic.TenantID,
			SiteHost:    crossref.HostOf(ic.SiteURL),
			WorkspaceID: ic.WorkspaceID,
		}
		if err := a.store.UpsertIntegration(ctx, in); err != nil {
			return err
		}
		a.logger.Debug("integration synced",
			slog.String("provider", ic.Provider),
			slog.String("tenant_id", ic.TenantID),
			slog.String("host", in.SiteHost),
		)
	}
	return nil
}

func newLogger(cfg model.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

func parseProviderArg(s string) (model.Provider, error) {
	p, err := model.ParseProvider(strings.ToLower(s))
	if err != nil {
		return "", fmt.Errorf("%w (want jira, github or azure)", err)
	}
	return p, nil
}
