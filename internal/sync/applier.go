// Package sync keeps local tasks and their linked provider issues
// consistent: inbound webhook events are resolved, diffed and applied;
// outbound pushes send local values back through the inverse mappers.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/tasksync/internal/model"
)

// ApplyStore is the persistence the Applier needs.
type ApplyStore interface {
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	ApplyTaskUpdate(ctx context.Context, id string, upd model.TaskUpdate, entries []model.ActivityLogEntry) error
}

// ApplyResult lists the fields an Apply call actually changed.
type ApplyResult struct {
	AppliedFields []model.Field
}

// Applier diffs a ChangeSet against the stored task and writes only the
// fields that differ.
type Applier struct {
	store  ApplyStore
	logger *slog.Logger
	now    func() time.Time
}

// NewApplier creates an Applier. A nil logger uses slog.Default().
func NewApplier(s ApplyStore, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{store: s, logger: logger, now: time.Now}
}

// Apply writes every changed field of cs in one task update plus one
// activity entry per field. When nothing differs it performs no writes
// and returns an empty AppliedFields, so replays are harmless.
func (a *Applier) Apply(ctx context.Context, taskID string, cs model.ChangeSet) (*ApplyResult, error) {
	task, err := a.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var (
		upd     model.TaskUpdate
		entries []model.ActivityLogEntry
		applied = []model.Field{}
	)
	now := a.now().UTC()
	stage := func(f model.Field, from, to string) {
		applied = append(applied, f)
		entries = append(entries, changeEntry(task, cs, f, from, to, now))
	}

	if cs.Status != nil && *cs.Status != task.Status {
		if !cs.Status.Valid() {
			return nil, fmt.Errorf("change set carries non-canonical status %q", *cs.Status)
		}
		upd.Status = cs.Status
		stage(model.FieldStatus, string(task.Status), string(*cs.Status))
	}
	if cs.Priority != nil && *cs.Priority != task.Priority {
		if !cs.Priority.Valid() {
			return nil, fmt.Errorf("change set carries non-canonical priority %q", *cs.Priority)
		}
		upd.Priority = cs.Priority
		stage(model.FieldPriority, string(task.Priority), string(*cs.Priority))
	}
	if cs.Title != nil && *cs.Title != task.Title {
		upd.Title = cs.Title
		stage(model.FieldTitle, task.Title, *cs.Title)
	}
	if cs.Description != nil && *cs.Description != task.Description {
		upd.Description = cs.Description
		stage(model.FieldDescription, task.Description, *cs.Description)
	}
	if cs.DueDate != nil && *cs.DueDate != task.DueDateValue() {
		upd.DueDate = cs.DueDate
		stage(model.FieldDueDate, task.DueDateValue(), *cs.DueDate)
	}

	if upd.IsEmpty() {
		return &ApplyResult{AppliedFields: applied}, nil
	}

	if err := a.store.ApplyTaskUpdate(ctx, task.ID, upd, entries); err != nil {
		return nil, fmt.Errorf("applying %s changes to task %s: %w", cs.Provider, task.ID, err)
	}
	a.logger.Debug("task updated",
		slog.String("task_id", task.ID),
		slog.String("provider", string(cs.Provider)),
		slog.Any("fields", applied),
	)
	return &ApplyResult{AppliedFields: applied}, nil
}

// changeEntry builds the audit record of one field delta. Provider
// originated changes carry no user.
func changeEntry(task *model.Task, cs model.ChangeSet, f model.Field, from, to string, at time.Time) model.ActivityLogEntry {
	taskID := task.ID
	return model.ActivityLogEntry{
		WorkspaceID: task.WorkspaceID,
		TaskID:      &taskID,
		Action:      model.ChangedAction(f, cs.Provider),
		EntityType:  model.EntityTask,
		EntityID:    task.ID,
		Metadata: model.ActivityFields{
			"field":            string(f),
			"from":             from,
			"to":               to,
			"provider":         string(cs.Provider),
			"externalIssueKey": cs.ExternalIssueKey,
			"rawEventType":     cs.RawEventType,
		},
		CreatedAt: at,
	}
}
