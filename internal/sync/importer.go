package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/tasksync/internal/credential"
	"github.com/nhle/tasksync/internal/linkindex"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
	"github.com/nhle/tasksync/internal/store"
)

// ErrAlreadyImported is returned with the existing task when the remote
// issue is already linked locally.
var ErrAlreadyImported = errors.New("issue already imported")

// ImportRequest names the issue to import and who imports it.
type ImportRequest struct {
	Provider    model.Provider
	Target      source.Target
	Ref         string
	WorkspaceID string
	UserID      string
}

// Importer creates links in both directions: importing a remote issue as
// a new task, and exporting a local task as a new remote issue.
type Importer struct {
	store    store.Store
	resolver *linkindex.Resolver
	trackers Trackers
	creds    credential.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewImporter creates an Importer. A nil logger uses slog.Default().
func NewImporter(s store.Store, trackers Trackers, creds credential.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:    s,
		resolver: linkindex.New(s, logger),
		trackers: trackers,
		creds:    creds,
		logger:   logger,
		now:      time.Now,
	}
}

// Import fetches the issue, maps it to canonical values and stores it as
// a linked task together with the imported_from_<provider> entry the
// link index reads.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (*model.Task, error) {
	tracker, err := im.trackers.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	token, err := im.creds.Token(req.Provider, req.Target.TenantID)
	if err != nil {
		return nil, fmt.Errorf("loading %s token: %w", req.Provider, err)
	}

	issue, err := tracker.GetIssue(ctx, token, req.Target, req.Ref)
	if err != nil {
		return nil, err
	}

	existingID, err := im.resolver.Resolve(ctx, issue.Key)
	switch {
	case err == nil:
		existing, getErr := im.store.GetTaskByID(ctx, existingID)
		if getErr == nil {
			return existing, fmt.Errorf("%s %s: %w", req.Provider, issue.Key.ExternalID, ErrAlreadyImported)
		}
		if !errors.Is(getErr, store.ErrNotFound) {
			return nil, getErr
		}
	case !errors.Is(err, linkindex.ErrNotFound):
		return nil, err
	}

	task := model.Task{
		WorkspaceID: req.WorkspaceID,
		Title:       issue.Title,
		Description: issue.Description,
		Status:      issue.Status,
		Priority:    issue.Priority,
		CreatedBy:   req.UserID,
		Metadata:    issue.Link,
	}
	if issue.DueDate != "" {
		due := issue.DueDate
		task.DueDate = &due
	}

	entry := model.ActivityLogEntry{
		WorkspaceID: req.WorkspaceID,
		UserID:      optional(req.UserID),
		Action:      model.ImportedAction(req.Provider),
		EntityType:  model.EntityTask,
		Metadata:    linkindex.ImportFields(req.Provider, issue.Link),
		CreatedAt:   im.now().UTC(),
	}
	created, err := im.store.CreateTask(ctx, task, entry)
	if err != nil {
		return nil, err
	}

	im.logger.Info("imported",
		slog.String("provider", string(req.Provider)),
		slog.String("external_id", issue.Key.ExternalID),
		slog.String("tenant_id", issue.Key.TenantID),
		slog.String("task_id", created.ID),
	)
	return created, nil
}

// Export creates a remote issue from the task and links it, replacing
// any earlier link for the same provider.
func (im *Importer) Export(ctx context.Context, taskID string, provider model.Provider, target source.Target, userID string) (*model.Task, string, error) {
	tracker, err := im.trackers.Get(provider)
	if err != nil {
		return nil, "", err
	}
	task, err := im.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, "", err
	}
	token, err := im.creds.Token(provider, target.TenantID)
	if err != nil {
		return nil, "", fmt.Errorf("loading %s token: %w", provider, err)
	}

	meta, issueKey, err := tracker.CreateIssue(ctx, token, target, *task)
	if err != nil {
		return nil, "", err
	}

	fields := linkindex.ImportFields(provider, meta)
	fields["issueRef"] = issueKey
	entry := model.ActivityLogEntry{
		WorkspaceID: task.WorkspaceID,
		TaskID:      &task.ID,
		UserID:      optional(userID),
		Action:      model.LinkedAction(provider),
		EntityType:  model.EntityTask,
		EntityID:    task.ID,
		Metadata:    fields,
		CreatedAt:   im.now().UTC(),
	}
	if err := im.store.SetTaskMetadata(ctx, task.ID, meta, []model.ActivityLogEntry{entry}); err != nil {
		return nil, "", fmt.Errorf("linking task %s to %s: %w", task.ID, issueKey, err)
	}
	task.Metadata = meta

	im.logger.Info("exported",
		slog.String("provider", string(provider)),
		slog.String("task_id", task.ID),
		slog.String("issue_key", issueKey),
	)
	return task, issueKey, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
