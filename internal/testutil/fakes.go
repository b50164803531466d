package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/nhle/tasksync/internal/credential"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
	"github.com/nhle/tasksync/internal/store"
)

// FakeTracker records outbound calls instead of talking to a provider.
type FakeTracker struct {
	P model.Provider

	// Issue is returned by GetIssue.
	Issue *source.Imported

	// Created and CreatedKey are returned by CreateIssue.
	Created    model.TaskMetadata
	CreatedKey string

	// Err, when set, fails every call.
	Err error

	mu     sync.Mutex
	pushed []model.Task
	tokens []string
}

var _ source.Tracker = (*FakeTracker)(nil)

// Provider returns the configured provider.
func (f *FakeTracker) Provider() model.Provider { return f.P }

// PushTask records task and returns its external id.
func (f *FakeTracker) PushTask(_ context.Context, token string, task model.Task) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.Err != nil {
		return "", f.Err
	}
	f.pushed = append(f.pushed, task)
	link, _ := task.Metadata.Link(f.P)
	return link.ExternalID, nil
}

// CreateIssue merges Created into the task's metadata.
func (f *FakeTracker) CreateIssue(_ context.Context, token string, _ source.Target, task model.Task) (model.TaskMetadata, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.Err != nil {
		return model.TaskMetadata{}, "", f.Err
	}
	meta := task.Metadata
	meta.Jira, meta.GitHub, meta.Azure = pick(meta.Jira, f.Created.Jira), pick(meta.GitHub, f.Created.GitHub), pick(meta.Azure, f.Created.Azure)
	return meta, f.CreatedKey, nil
}

// GetIssue returns Issue.
func (f *FakeTracker) GetIssue(_ context.Context, token string, _ source.Target, ref string) (*source.Imported, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Issue == nil {
		return nil, fmt.Errorf("issue %s not found", ref)
	}
	return f.Issue, nil
}

// Pushed returns the tasks pushed so far.
func (f *FakeTracker) Pushed() []model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Task(nil), f.pushed...)
}

// Tokens returns the tokens every call received.
func (f *FakeTracker) Tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func pick[T any](current, created *T) *T {
	if created != nil {
		return created
	}
	return current
}

// StaticTokens is a credential.Store backed by a map.
type StaticTokens map[model.Provider]string

// Token returns the provider's token regardless of tenant.
func (s StaticTokens) Token(p model.Provider, _ string) (string, error) {
	tok, ok := s[p]
	if !ok {
		return "", fmt.Errorf("%s: %w", p, credential.ErrNoToken)
	}
	return tok, nil
}

// CreateTask stores a task with test defaults and fails the test on
// error.
func CreateTask(t *testing.T, s store.Store, task model.Task) *model.Task {
	t.Helper()
	if task.WorkspaceID == "" {
		task.WorkspaceID = "ws-1"
	}
	if task.Title == "" {
		task.Title = "task"
	}
	created, err := s.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}
	return created
}
