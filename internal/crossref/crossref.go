// Package crossref recovers provider installation identifiers from the
// self-referencing URLs embedded in webhook payloads.
package crossref

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/nhle/tasksync/internal/model"
)

// TenantHint is what a URL reveals about its installation. Either field
// may be empty; both empty means "no tenant filter".
type TenantHint struct {
	// TenantID is set when the URL embeds the id directly.
	TenantID string

	// Host is the site hostname, to be looked up in stored integrations.
	Host string
}

// jiraGatewayPattern matches OAuth gateway URLs such as
// https://api.atlassian.com/ex/jira/<cloudId>/rest/api/3/issue/10001.
var jiraGatewayPattern = regexp.MustCompile(`^/ex/jira/([0-9a-fA-F-]{8,})(/|$)`)

// azureOrgPattern matches https://dev.azure.com/<org>/... paths.
var azureOrgPattern = regexp.MustCompile(`^/([^/]+)(/|$)`)

// TenantFromURL inspects a provider self link. Unknown shapes fall
// through to a host-only hint; unparseable input yields an empty hint.
func TenantFromURL(provider model.Provider, raw string) TenantHint {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return TenantHint{}
	}
	host := strings.ToLower(u.Hostname())

	switch provider {
	case model.ProviderJira:
		if host == "api.atlassian.com" {
			if m := jiraGatewayPattern.FindStringSubmatch(u.Path); m != nil {
				return TenantHint{TenantID: m[1]}
			}
			return TenantHint{}
		}
		return TenantHint{Host: host}

	case model.ProviderAzure:
		if host == "dev.azure.com" {
			if m := azureOrgPattern.FindStringSubmatch(u.Path); m != nil && !strings.HasPrefix(m[1], "_") {
				return TenantHint{TenantID: m[1]}
			}
			return TenantHint{}
		}
		if org, ok := strings.CutSuffix(host, ".visualstudio.com"); ok && org != "" {
			return TenantHint{TenantID: org}
		}
		return TenantHint{Host: host}

	default:
		return TenantHint{Host: host}
	}
}

// HostOf returns the lower-cased hostname of raw, or "".
func HostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
