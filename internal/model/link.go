package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// Provider identifies an external issue tracker.
type Provider string

const (
	ProviderJira   Provider = "jira"
	ProviderGitHub Provider = "github"
	ProviderAzure  Provider = "azure"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderJira, ProviderGitHub, ProviderAzure}

// ParseProvider converts a user supplied name into a Provider.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// ProviderLinkKey is the lookup key into the link index. An empty
// TenantID acts as a wildcard.
type ProviderLinkKey struct {
	Provider   Provider
	ExternalID string
	TenantID   string
}

// JiraLink binds a task to a Jira issue on one cloud site.
type JiraLink struct {
	IssueKey string `json:"issueKey"`
	IssueID  string `json:"issueId,omitempty"`
	CloudID  string `json:"cloudId,omitempty"`
	SiteURL  string `json:"siteUrl,omitempty"`
}

// GitHubLink binds a task to a GitHub issue.
type GitHubLink struct {
	IssueID      int64  `json:"issueId"`
	IssueNumber  int    `json:"issueNumber"`
	RepositoryID int64  `json:"repositoryId"`
	Repository   string `json:"repository,omitempty"`
}

// AzureLink binds a task to an Azure DevOps work item.
type AzureLink struct {
	WorkItemID   int    `json:"workItemId"`
	Organization string `json:"organization,omitempty"`
	Project      string `json:"project,omitempty"`
}

// ProviderLink is the provider-neutral view of one link object.
type ProviderLink struct {
	Provider   Provider
	ExternalID string
	TenantID   string
}

// TaskMetadata is the JSON blob stored on every task. Each provider has at
// most one link; keys this code does not know about are carried through
// untouched.
type TaskMetadata struct {
	Jira   *JiraLink
	GitHub *GitHubLink
	Azure  *AzureLink

	extra map[string]json.RawMessage
}

// Link returns the provider-neutral link for p, if one is set.
func (m TaskMetadata) Link(p Provider) (ProviderLink, bool) {
	switch p {
	case ProviderJira:
		if m.Jira != nil {
			return ProviderLink{Provider: p, ExternalID: m.Jira.IssueKey, TenantID: m.Jira.CloudID}, true
		}
	case ProviderGitHub:
		if m.GitHub != nil {
			link := ProviderLink{Provider: p, ExternalID: strconv.FormatInt(m.GitHub.IssueID, 10)}
			if m.GitHub.RepositoryID != 0 {
				link.TenantID = strconv.FormatInt(m.GitHub.RepositoryID, 10)
			}
			return link, true
		}
	case ProviderAzure:
		if m.Azure != nil {
			return ProviderLink{
				Provider:   p,
				ExternalID: strconv.Itoa(m.Azure.WorkItemID),
				TenantID:   m.Azure.Organization,
			}, true
		}
	}
	return ProviderLink{}, false
}

// Matches reports whether the link for key.Provider refers to
// key.ExternalID. Jira links also match on the numeric issue id. The
// tenant is compared only when both sides know it.
func (m TaskMetadata) Matches(key ProviderLinkKey) bool {
	link, ok := m.Link(key.Provider)
	if !ok {
		return false
	}
	idMatch := link.ExternalID == key.ExternalID
	if !idMatch && key.Provider == ProviderJira && m.Jira.IssueID != "" {
		idMatch = m.Jira.IssueID == key.ExternalID
	}
	if !idMatch {
		return false
	}
	return key.TenantID == "" || link.TenantID == "" || link.TenantID == key.TenantID
}

// Clear removes the link for p and reports whether one was present.
func (m *TaskMetadata) Clear(p Provider) bool {
	switch p {
	case ProviderJira:
		had := m.Jira != nil
		m.Jira = nil
		return had
	case ProviderGitHub:
		had := m.GitHub != nil
		m.GitHub = nil
		return had
	case ProviderAzure:
		had := m.Azure != nil
		m.Azure = nil
		return had
	}
	return false
}

// IsEmpty reports whether no link and no foreign key is present.
func (m TaskMetadata) IsEmpty() bool {
	return m.Jira == nil && m.GitHub == nil && m.Azure == nil && len(m.extra) == 0
}

// MarshalJSON writes the provider links alongside any preserved keys.
func (m TaskMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.extra)+3)
	for k, v := range m.extra {
		out[k] = v
	}
	if m.Jira != nil {
		out[string(ProviderJira)] = m.Jira
	}
	if m.GitHub != nil {
		out[string(ProviderGitHub)] = m.GitHub
	}
	if m.Azure != nil {
		out[string(ProviderAzure)] = m.Azure
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts null, an empty object or a provider keyed object.
func (m *TaskMetadata) UnmarshalJSON(data []byte) error {
	*m = TaskMetadata{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding task metadata: %w", err)
	}

	for k, v := range raw {
		if string(v) == "null" {
			continue
		}
		var err error
		switch Provider(k) {
		case ProviderJira:
			m.Jira = &JiraLink{}
			err = json.Unmarshal(v, m.Jira)
		case ProviderGitHub:
			m.GitHub = &GitHubLink{}
			err = json.Unmarshal(v, m.GitHub)
		case ProviderAzure:
			m.Azure = &AzureLink{}
			err = json.Unmarshal(v, m.Azure)
		default:
			if m.extra == nil {
				m.extra = make(map[string]json.RawMessage)
			}
			m.extra[k] = v
		}
		if err != nil {
			return fmt.Errorf("decoding %s link: %w", k, err)
		}
	}
	return nil
}

// Value stores metadata as JSON text, or NULL when empty.
func (m TaskMetadata) Value() (driver.Value, error) {
	if m.IsEmpty() {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan reads metadata from a TEXT column.
func (m *TaskMetadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = TaskMetadata{}
		return nil
	case string:
		return m.UnmarshalJSON([]byte(v))
	case []byte:
		return m.UnmarshalJSON(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", src)
	}
}
