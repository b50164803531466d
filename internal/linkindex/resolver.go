// Package linkindex maps external issue identifiers back to local tasks.
//
// There is no link table. Resolution scans two places that are written
// anyway: the imported_from_<provider> activity entries (tier 1, which
// record the tenant) and the provider link objects embedded in task
// metadata (tier 2). Both are full scans, so the resolver suits the low
// volume webhook path only and must not back bulk matching.
package linkindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/store"
)

// ErrNotFound means no local task is linked to the external issue. It
// is an expected outcome, not a failure.
var ErrNotFound = errors.New("no linked task")

// Metadata keys of imported_from_<provider> entries.
const (
	KeyIssueKey     = "issueKey"
	KeyIssueID      = "issueId"
	KeyIssueNumber  = "issueNumber"
	KeyWorkItemID   = "workItemId"
	KeyCloudID      = "cloudId"
	KeyRepositoryID = "repositoryId"
	KeyRepository   = "repository"
	KeyOrganization = "organization"
	KeyProject      = "project"

	// KeyTenantID is a provider neutral alias accepted on read.
	KeyTenantID = "tenantId"
)

// Store is the part of the persistence layer the resolver scans.
type Store interface {
	ListActivity(ctx context.Context, filter store.ActivityFilter) ([]model.ActivityLogEntry, error)
	ListLinkedTasks(ctx context.Context, provider model.Provider) ([]model.Task, error)
}

// Resolver implements the two-tier lookup.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// New creates a resolver. A nil logger uses slog.Default().
func New(s Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: s, logger: logger}
}

// Resolve returns the id of the task linked to key. Each tier is
// scanned newest first and the first match wins; when a tier holds
// matches for more than one task an "ambiguous link" warning is logged.
//
// An import entry is skipped when its task has since been linked to a
// different issue of the same provider, so a stale import never shadows
// the live link.
func (r *Resolver) Resolve(ctx context.Context, key model.ProviderLinkKey) (string, error) {
	if key.ExternalID == "" {
		return "", ErrNotFound
	}

	linked, err := r.store.ListLinkedTasks(ctx, key.Provider)
	if err != nil {
		return "", fmt.Errorf("scanning task links: %w", err)
	}

	taskID, err := r.fromImports(ctx, key, relinked(key, linked))
	if err != nil {
		return "", err
	}
	if taskID != "" {
		return taskID, nil
	}

	if taskID = r.fromMetadata(key, linked); taskID != "" {
		return taskID, nil
	}
	return "", ErrNotFound
}

func (r *Resolver) fromImports(ctx context.Context, key model.ProviderLinkKey, skip map[string]bool) (string, error) {
	entries, err := r.store.ListActivity(ctx, store.ActivityFilter{Action: model.ImportedAction(key.Provider)})
	if err != nil {
		return "", fmt.Errorf("scanning import entries: %w", err)
	}

	var matches []string
	for _, e := range entries {
		if e.TaskID == nil || *e.TaskID == "" || skip[*e.TaskID] {
			continue
		}
		if entryMatches(key, e.Metadata) {
			matches = appendUnique(matches, *e.TaskID)
		}
	}
	return r.pick(key, "import_log", matches), nil
}

func (r *Resolver) fromMetadata(key model.ProviderLinkKey, tasks []model.Task) string {
	var matches []string
	for _, t := range tasks {
		if t.Metadata.Matches(key) {
			matches = appendUnique(matches, t.ID)
		}
	}
	return r.pick(key, "task_metadata", matches)
}

// relinked returns the tasks whose current link for key.Provider points
// at some other issue.
func relinked(key model.ProviderLinkKey, tasks []model.Task) map[string]bool {
	out := make(map[string]bool)
	for _, t := range tasks {
		if !t.Metadata.Matches(key) {
			out[t.ID] = true
		}
	}
	return out
}

func (r *Resolver) pick(key model.ProviderLinkKey, tier string, matches []string) string {
	if len(matches) == 0 {
		return ""
	}
	if len(matches) > 1 {
		r.logger.Warn("ambiguous link",
			slog.String("provider", string(key.Provider)),
			slog.String("external_id", key.ExternalID),
			slog.String("tenant_id", key.TenantID),
			slog.String("tier", tier),
			slog.Any("task_ids", matches),
		)
	}
	return matches[0]
}

// entryMatches compares an import entry against key. The tenant only
// filters when both sides carry one.
func entryMatches(key model.ProviderLinkKey, f model.ActivityFields) bool {
	idMatch := false
	for _, k := range idKeys(key.Provider) {
		if v := f.String(k); v != "" && v == key.ExternalID {
			idMatch = true
			break
		}
	}
	if !idMatch {
		return false
	}
	if key.TenantID == "" {
		return true
	}
	tenant := f.String(tenantKey(key.Provider))
	if tenant == "" {
		tenant = f.String(KeyTenantID)
	}
	return tenant == "" || tenant == key.TenantID
}

func idKeys(p model.Provider) []string {
	switch p {
	case model.ProviderJira:
		return []string{KeyIssueKey, KeyIssueID}
	case model.ProviderGitHub:
		return []string{KeyIssueID}
	case model.ProviderAzure:
		return []string{KeyWorkItemID}
	}
	return nil
}

func tenantKey(p model.Provider) string {
	switch p {
	case model.ProviderJira:
		return KeyCloudID
	case model.ProviderGitHub:
		return KeyRepositoryID
	case model.ProviderAzure:
		return KeyOrganization
	}
	return KeyTenantID
}

// ImportFields builds the metadata of an imported_from_<p> entry from the
// link just stored on the task, in the shape Resolve reads back.
func ImportFields(p model.Provider, meta model.TaskMetadata) model.ActivityFields {
	f := model.ActivityFields{"provider": string(p)}
	switch p {
	case model.ProviderJira:
		if l := meta.Jira; l != nil {
			f[KeyIssueKey] = l.IssueKey
			setIfNotEmpty(f, KeyIssueID, l.IssueID)
			setIfNotEmpty(f, KeyCloudID, l.CloudID)
		}
	case model.ProviderGitHub:
		if l := meta.GitHub; l != nil {
			f[KeyIssueID] = strconv.FormatInt(l.IssueID, 10)
			f[KeyIssueNumber] = l.IssueNumber
			if l.RepositoryID != 0 {
				f[KeyRepositoryID] = strconv.FormatInt(l.RepositoryID, 10)
			}
			setIfNotEmpty(f, KeyRepository, l.Repository)
		}
	case model.ProviderAzure:
		if l := meta.Azure; l != nil {
			f[KeyWorkItemID] = strconv.Itoa(l.WorkItemID)
			setIfNotEmpty(f, KeyOrganization, l.Organization)
			setIfNotEmpty(f, KeyProject, l.Project)
		}
	}
	return f
}

func setIfNotEmpty(f model.ActivityFields, k, v string) {
	if v != "" {
		f[k] = v
	}
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
