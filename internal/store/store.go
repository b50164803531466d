package store

import (
	"context"
	"errors"

	"github.com/nhle/tasksync/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ActivityFilter selects activity entries. Results are always ordered by
// creation time, newest first.
type ActivityFilter struct {
	Action string
	TaskID string
	Limit  int
}

// Store defines the persistence interface for tasks, the activity log and
// provider integrations.
type Store interface {
	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task, entries ...model.ActivityLogEntry) (*model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)

	// ListLinkedTasks returns tasks whose metadata carries a link for
	// provider, most recently updated first.
	ListLinkedTasks(ctx context.Context, provider model.Provider) ([]model.Task, error)

	// ApplyTaskUpdate writes upd to the task in one UPDATE statement and
	// appends entries, atomically. An empty update with no entries is a
	// no-op that touches nothing.
	ApplyTaskUpdate(ctx context.Context, id string, upd model.TaskUpdate, entries []model.ActivityLogEntry) error

	// SetTaskMetadata replaces the metadata blob and appends entries,
	// atomically.
	SetTaskMetadata(ctx context.Context, id string, meta model.TaskMetadata, entries []model.ActivityLogEntry) error

	// === Activity log ===

	AppendActivity(ctx context.Context, entries ...model.ActivityLogEntry) error
	ListActivity(ctx context.Context, filter ActivityFilter) ([]model.ActivityLogEntry, error)

	// === Integrations ===

	UpsertIntegration(ctx context.Context, in model.Integration) error
	FindIntegrationByHost(ctx context.Context, provider model.Provider, host string) (*model.Integration, error)
	ListIntegrations(ctx context.Context) ([]model.Integration, error)

	Close() error
}
