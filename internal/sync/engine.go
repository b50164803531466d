package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/tasksync/internal/crossref"
	"github.com/nhle/tasksync/internal/linkindex"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
	"github.com/nhle/tasksync/internal/store"
)

// Outcome is what handling one webhook event did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeUnlinked  Outcome = "unlinked"
	OutcomeIgnored   Outcome = "ignored"
)

// Result reports the outcome of Engine.Handle.
type Result struct {
	Outcome Outcome
	TaskID  string
	Fields  []model.Field
}

// Engine runs the inbound path: tenant recovery, link resolution, then
// apply or unlink.
type Engine struct {
	store    store.Store
	resolver *linkindex.Resolver
	applier  *Applier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine wires an Engine over s. A nil logger uses slog.Default().
func NewEngine(s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    s,
		resolver: linkindex.New(s, logger),
		applier:  NewApplier(s, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes one parsed delivery. Unknown events, unmatched issues
// and no-op changes are successful outcomes; only storage failures are
// returned as errors.
func (e *Engine) Handle(ctx context.Context, ev source.Event) (Result, error) {
	log := e.logger.With(
		slog.String("provider", string(ev.Key.Provider)),
		slog.String("event", ev.Type),
		slog.String("external_id", ev.Key.ExternalID),
	)

	if ev.Kind == source.EventOther {
		log.Info("ignored event")
		return Result{Outcome: OutcomeIgnored}, nil
	}

	key := ev.Key
	if key.TenantID == "" {
		key.TenantID = e.tenantFor(ctx, key.Provider, ev.SelfURL)
	}
	log = log.With(slog.String("tenant_id", key.TenantID))

	taskID, err := e.resolver.Resolve(ctx, key)
	if errors.Is(err, linkindex.ErrNotFound) {
		log.Info("unmatched")
		return Result{Outcome: OutcomeUnmatched}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("resolving %s issue %s: %w", key.Provider, key.ExternalID, err)
	}
	log = log.With(slog.String("task_id", taskID))

	switch ev.Kind {
	case source.EventDeleted:
		return e.unlink(ctx, log, taskID, key, ev.Type)
	default:
		return e.apply(ctx, log, taskID, ev)
	}
}

func (e *Engine) apply(ctx context.Context, log *slog.Logger, taskID string, ev source.Event) (Result, error) {
	res, err := e.applier.Apply(ctx, taskID, ev.Changes)
	if errors.Is(err, store.ErrNotFound) {
		// The index still points at a task that has since been deleted.
		log.Info("unmatched", slog.String("reason", "task gone"))
		return Result{Outcome: OutcomeUnmatched}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if len(res.AppliedFields) == 0 {
		log.Info("unchanged")
		return Result{Outcome: OutcomeUnchanged, TaskID: taskID, Fields: res.AppliedFields}, nil
	}
	log.Info("applied", slog.Any("fields", res.AppliedFields))
	return Result{Outcome: OutcomeApplied, TaskID: taskID, Fields: res.AppliedFields}, nil
}

// unlink clears the task's link for key.Provider when it still refers to
// the deleted issue. The task itself is kept.
func (e *Engine) unlink(ctx context.Context, log *slog.Logger, taskID string, key model.ProviderLinkKey, eventType string) (Result, error) {
	task, err := e.store.GetTaskByID(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("unmatched", slog.String("reason", "task gone"))
		return Result{Outcome: OutcomeUnmatched}, nil
	}
	if err != nil {
		return Result{}, err
	}

	meta := task.Metadata
	if _, linked := meta.Link(key.Provider); linked && !meta.Matches(key) {
		log.Info("unchanged", slog.String("reason", "link points elsewhere"))
		return Result{Outcome: OutcomeUnchanged, TaskID: taskID}, nil
	}
	if !meta.Clear(key.Provider) {
		log.Info("unchanged", slog.String("reason", "already unlinked"))
		return Result{Outcome: OutcomeUnchanged, TaskID: taskID}, nil
	}

	id := task.ID
	entry := model.ActivityLogEntry{
		WorkspaceID: task.WorkspaceID,
		TaskID:      &id,
		Action:      model.UnlinkedAction(key.Provider),
		EntityType:  model.EntityTask,
		EntityID:    task.ID,
		Metadata: model.ActivityFields{
			"provider":     string(key.Provider),
			"externalId":   key.ExternalID,
			"rawEventType": eventType,
		},
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.SetTaskMetadata(ctx, task.ID, meta, []model.ActivityLogEntry{entry}); err != nil {
		return Result{}, fmt.Errorf("unlinking task %s: %w", task.ID, err)
	}
	log.Info("unlinked")
	return Result{Outcome: OutcomeUnlinked, TaskID: taskID}, nil
}

// tenantFor recovers a tenant from the issue's self URL, falling back to
// the stored integration for the URL's host. Failure leaves the tenant
// empty, which the link index treats as a wildcard.
func (e *Engine) tenantFor(ctx context.Context, p model.Provider, selfURL string) string {
	if selfURL == "" {
		return ""
	}
	hint := crossref.TenantFromURL(p, selfURL)
	if hint.TenantID != "" || hint.Host == "" {
		return hint.TenantID
	}

	in, err := e.store.FindIntegrationByHost(ctx, p, hint.Host)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("integration lookup failed",
				slog.String("provider", string(p)),
				slog.String("host", hint.Host),
				slog.String("error", err.Error()),
			)
		}
		return ""
	}
	return in.TenantID
}
