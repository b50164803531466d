package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// IntegrationConfig declares one installation of a provider, e.g. a Jira
// cloud site. It is synced into the integrations table at startup.
type IntegrationConfig struct {
	// Provider is "jira", "github" or "azure".
	Provider string `mapstructure:"provider" yaml:"provider"`

	// TenantID is the provider's installation id (Jira cloud id, GitHub
	// repository id, Azure organization).
	TenantID string `mapstructure:"tenant_id" yaml:"tenant_id"`

	// SiteURL is the browsable root of the installation. Its hostname is
	// the fallback key when a webhook carries no tenant id.
	SiteURL string `mapstructure:"site_url" yaml:"site_url"`

	WorkspaceID string `mapstructure:"workspace_id" yaml:"workspace_id"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the SQL driver and DSN.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// WebhookConfig holds the shared secrets providers send as bearer tokens.
// An empty secret disables authentication for that provider.
type WebhookConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	JiraSecret   string        `mapstructure:"jira_secret" yaml:"jira_secret"`
	GitHubSecret string        `mapstructure:"github_secret" yaml:"github_secret"`
	AzureSecret  string        `mapstructure:"azure_secret" yaml:"azure_secret"`
}

// Secret returns the configured webhook secret for p.
func (w WebhookConfig) Secret(p Provider) string {
	switch p {
	case ProviderJira:
		return w.JiraSecret
	case ProviderGitHub:
		return w.GitHubSecret
	case ProviderAzure:
		return w.AzureSecret
	}
	return ""
}

// ProviderEndpoint is the REST root of a provider API.
type ProviderEndpoint struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// ProvidersConfig groups the outbound API endpoints.
type ProvidersConfig struct {
	Jira   ProviderEndpoint `mapstructure:"jira" yaml:"jira"`
	GitHub ProviderEndpoint `mapstructure:"github" yaml:"github"`
	Azure  ProviderEndpoint `mapstructure:"azure" yaml:"azure"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// CredentialsConfig controls the keyring that holds provider tokens.
type CredentialsConfig struct {
	Service string `mapstructure:"service" yaml:"service"`
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server       ServerConfig        `mapstructure:"server" yaml:"server"`
	Database     DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Webhooks     WebhookConfig       `mapstructure:"webhooks" yaml:"webhooks"`
	Providers    ProvidersConfig     `mapstructure:"providers" yaml:"providers"`
	Integrations []IntegrationConfig `mapstructure:"integrations" yaml:"integrations"`
	Log          LogConfig           `mapstructure:"log" yaml:"log"`
	Credentials  CredentialsConfig   `mapstructure:"credentials" yaml:"credentials"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tasksync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "tasksync", "config.yaml")
}

var configDefaults = map[string]any{
	"server.addr":               ":8080",
	"server.shutdown_timeout":   5 * time.Second,
	"database.driver":           "sqlite",
	"database.dsn":              "tasksync.db",
	"webhooks.timeout":          8 * time.Second,
	"webhooks.jira_secret":      "",
	"webhooks.github_secret":    "",
	"webhooks.azure_secret":     "",
	"providers.jira.base_url":   "https://api.atlassian.com/ex/jira",
	"providers.github.base_url": "https://api.github.com",
	"providers.azure.base_url":  "https://dev.azure.com",
	"log.level":                 "info",
	"log.format":                "text",
	"credentials.service":       "tasksync",
	"credentials.file_dir":      "~/.config/tasksync/credentials",
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKSYNC_ override file values. If
// the file does not exist, defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASKSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i, ic := range cfg.Integrations {
		if _, err := ParseProvider(ic.Provider); err != nil {
			return nil, fmt.Errorf("integration %d: %w", i, err)
		}
	}

	return cfg, nil
}
