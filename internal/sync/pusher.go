package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/tasksync/internal/credential"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

var (
	// ErrNotLinked is returned when a task has no link for the provider.
	ErrNotLinked = errors.New("task is not linked to provider")

	// ErrUnknownProvider is returned when no tracker is registered for
	// the provider.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Trackers indexes the registered provider integrations.
type Trackers map[model.Provider]source.Tracker

// NewTrackers builds a registry from ts.
func NewTrackers(ts ...source.Tracker) Trackers {
	out := make(Trackers, len(ts))
	for _, t := range ts {
		out[t.Provider()] = t
	}
	return out
}

// Get returns the tracker for p or ErrUnknownProvider.
func (t Trackers) Get(p model.Provider) (source.Tracker, error) {
	tr, ok := t[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}
	return tr, nil
}

// PushResult is the outcome of one outbound push.
type PushResult struct {
	Success  bool   `json:"success"`
	IssueKey string `json:"issueKey,omitempty"`
}

// TaskReader loads tasks for outbound calls.
type TaskReader interface {
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
}

// Pusher sends local task values to linked provider issues. It never
// writes local state, whatever the remote call returns.
type Pusher struct {
	tasks    TaskReader
	trackers Trackers
	creds    credential.Store
	logger   *slog.Logger
}

// NewPusher creates a Pusher. A nil logger uses slog.Default().
func NewPusher(tasks TaskReader, trackers Trackers, creds credential.Store, logger *slog.Logger) *Pusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pusher{tasks: tasks, trackers: trackers, creds: creds, logger: logger}
}

// Push writes the task's canonical fields to its provider issue.
func (p *Pusher) Push(ctx context.Context, taskID string, provider model.Provider) (PushResult, error) {
	tracker, err := p.trackers.Get(provider)
	if err != nil {
		return PushResult{}, err
	}

	task, err := p.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return PushResult{}, err
	}
	link, ok := task.Metadata.Link(provider)
	if !ok {
		return PushResult{}, fmt.Errorf("task %s: %w %s", taskID, ErrNotLinked, provider)
	}

	token, err := p.creds.Token(provider, link.TenantID)
	if err != nil {
		return PushResult{}, fmt.Errorf("loading %s token: %w", provider, err)
	}

	key, err := tracker.PushTask(ctx, token, *task)
	if err != nil {
		p.logger.Error("push failed",
			slog.String("provider", string(provider)),
			slog.String("task_id", taskID),
			slog.String("external_id", link.ExternalID),
			slog.String("error", err.Error()),
		)
		return PushResult{}, err
	}

	p.logger.Info("pushed",
		slog.String("provider", string(provider)),
		slog.String("task_id", taskID),
		slog.String("issue_key", key),
	)
	return PushResult{Success: true, IssueKey: key}, nil
}

// PushAll pushes to every provider the task is linked to and returns the
// per-provider results together with the joined failures.
func (p *Pusher) PushAll(ctx context.Context, taskID string) (map[model.Provider]PushResult, error) {
	task, err := p.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	results := make(map[model.Provider]PushResult)
	var errs []error
	for _, provider := range model.Providers {
		if _, ok := task.Metadata.Link(provider); !ok {
			continue
		}
		res, err := p.Push(ctx, taskID, provider)
		results[provider] = res
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", provider, err))
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("task %s: %w any", taskID, ErrNotLinked)
	}
	return results, errors.Join(errs...)
}
