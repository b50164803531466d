package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tasksync/internal/linkindex"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
	"github.com/nhle/tasksync/internal/source/github"
	"github.com/nhle/tasksync/internal/source/jira"
	"github.com/nhle/tasksync/internal/store"
	"github.com/nhle/tasksync/internal/testutil"
)

const cloudA = "1a2b3c4d-0000-4000-8000-00000000000a"

// importedTask stores a task linked through meta, with the import entry
// the link index reads.
func importedTask(t *testing.T, s store.Store, p model.Provider, task model.Task) *model.Task {
	t.Helper()
	if task.WorkspaceID == "" {
		task.WorkspaceID = "ws-1"
	}
	if task.Title == "" {
		task.Title = "imported"
	}
	created, err := s.CreateTask(context.Background(), task, model.ActivityLogEntry{
		WorkspaceID: task.WorkspaceID,
		Action:      model.ImportedAction(p),
		Metadata:    linkindex.ImportFields(p, task.Metadata),
	})
	require.NoError(t, err)
	return created
}

func jiraStatusEvent(t *testing.T) source.Event {
	t.Helper()
	ev, err := jira.ParseWebhook([]byte(`{
	  "webhookEvent": "jira:issue_updated",
	  "issue": {
	    "id": "10001", "key": "PROJ-1",
	    "self": "https://api.atlassian.com/ex/jira/` + cloudA + `/rest/api/3/issue/10001",
	    "fields": {"summary": "Title", "status": {"name": "Closed", "statusCategory": {"key": "done"}}}
	  },
	  "changelog": {"items": [{"field": "status", "fromString": "In Progress", "toString": "Closed"}]}
	}`))
	require.NoError(t, err)
	return ev
}

func TestEngine_JiraStatusUpdateThenReplay(t *testing.T) {
	s := testutil.NewTestStore(t)
	task := importedTask(t, s, model.ProviderJira, model.Task{
		Title:    "Title",
		Status:   model.StatusInProgress,
		Metadata: model.TaskMetadata{Jira: &model.JiraLink{IssueKey: "PROJ-1", CloudID: cloudA}},
	})
	e := NewEngine(s, nil)
	ctx := context.Background()

	res, err := e.Handle(ctx, jiraStatusEvent(t))
	require.NoError(t, err)
	assert.Equal(t, Result{Outcome: OutcomeApplied, TaskID: task.ID, Fields: []model.Field{model.FieldStatus}}, res)

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)

	changes, err := s.ListActivity(ctx, store.ActivityFilter{Action: "status_changed_by_jira"})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "in_progress", changes[0].Metadata.String("from"))
	assert.Equal(t, "done", changes[0].Metadata.String("to"))
	assert.Equal(t, jira.EventIssueUpdated, changes[0].Metadata.String("rawEventType"))

	res, err = e.Handle(ctx, jiraStatusEvent(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)

	all, err := s.ListActivity(ctx, store.ActivityFilter{TaskID: task.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2, "import entry plus one change entry")
}

func TestEngine_TenantFromIntegrationHost(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	const cloudB = "1a2b3c4d-0000-4000-8000-00000000000b"

	onA := importedTask(t, s, model.ProviderJira, model.Task{
		Metadata: model.TaskMetadata{Jira: &model.JiraLink{IssueKey: "X-1", CloudID: cloudA}},
	})
	importedTask(t, s, model.ProviderJira, model.Task{
		Metadata: model.TaskMetadata{Jira: &model.JiraLink{IssueKey: "X-1", CloudID: cloudB}},
	})
	require.NoError(t, s.UpsertIntegration(ctx, model.Integration{
		Provider: model.ProviderJira, TenantID: cloudA, SiteHost: "acme.atlassian.net",
	}))

	cs := model.ChangeSet{Provider: model.ProviderJira}
	cs.SetTitle("Renamed")
	res, err := NewEngine(s, nil).Handle(ctx, source.Event{
		Kind:    source.EventUpdated,
		Type:    jira.EventIssueUpdated,
		Key:     model.ProviderLinkKey{Provider: model.ProviderJira, ExternalID: "X-1"},
		SelfURL: "https://acme.atlassian.net/rest/api/3/issue/10001",
		Changes: cs,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, onA.ID, res.TaskID)
}

func TestEngine_Unmatched(t *testing.T) {
	s := testutil.NewTestStore(t)
	res, err := NewEngine(s, nil).Handle(context.Background(), jiraStatusEvent(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, res.Outcome)

	entries, err := s.ListActivity(context.Background(), store.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEngine_IgnoresOtherEvents(t *testing.T) {
	s := testutil.NewTestStore(t)
	res, err := NewEngine(s, nil).Handle(context.Background(), source.Event{Type: "comment_created"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
}

func TestEngine_DeleteClearsOnlyThatProvider(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	task := importedTask(t, s, model.ProviderGitHub, model.Task{
		Title: "Keep me",
		Metadata: model.TaskMetadata{
			Jira:   &model.JiraLink{IssueKey: "PROJ-1", CloudID: cloudA},
			GitHub: &model.GitHubLink{IssueID: 901, IssueNumber: 7, RepositoryID: 42},
		},
	})

	ev, err := github.ParseWebhook(github.EventIssues, []byte(`{"action":"deleted","issue":{"id":901,"number":7},"repository":{"id":42}}`))
	require.NoError(t, err)

	e := NewEngine(s, nil)
	res, err := e.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnlinked, res.Outcome)

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keep me", got.Title)
	assert.Nil(t, got.Metadata.GitHub)
	require.NotNil(t, got.Metadata.Jira)
	assert.Equal(t, "PROJ-1", got.Metadata.Jira.IssueKey)

	unlinks, err := s.ListActivity(ctx, store.ActivityFilter{Action: model.UnlinkedAction(model.ProviderGitHub)})
	require.NoError(t, err)
	require.Len(t, unlinks, 1)
	assert.Equal(t, "901", unlinks[0].Metadata.String("externalId"))

	res, err = e.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)
	unlinks, err = s.ListActivity(ctx, store.ActivityFilter{Action: model.UnlinkedAction(model.ProviderGitHub)})
	require.NoError(t, err)
	assert.Len(t, unlinks, 1)
}

func TestEngine_RelinkedTaskIgnoresOldIssue(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	task := importedTask(t, s, model.ProviderJira, model.Task{
		Title:    "Original",
		Metadata: model.TaskMetadata{Jira: &model.JiraLink{IssueKey: "X-1", CloudID: cloudA}},
	})
	relinked := model.TaskMetadata{Jira: &model.JiraLink{IssueKey: "Y-2", CloudID: cloudA}}
	require.NoError(t, s.SetTaskMetadata(ctx, task.ID, relinked, nil))

	e := NewEngine(s, nil)
	jiraEvent := func(kind source.EventKind, issueKey string) source.Event {
		cs := model.ChangeSet{Provider: model.ProviderJira}
		if kind == source.EventUpdated {
			cs.SetTitle("From old issue")
		}
		return source.Event{
			Kind:    kind,
			Type:    "jira:issue_" + kind.String(),
			Key:     model.ProviderLinkKey{Provider: model.ProviderJira, ExternalID: issueKey, TenantID: cloudA},
			Changes: cs,
		}
	}

	res, err := e.Handle(ctx, jiraEvent(source.EventUpdated, "X-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, res.Outcome)

	res, err = e.Handle(ctx, jiraEvent(source.EventDeleted, "X-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, res.Outcome)

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
	require.NotNil(t, got.Metadata.Jira)
	assert.Equal(t, "Y-2", got.Metadata.Jira.IssueKey)

	res, err = e.Handle(ctx, jiraEvent(source.EventDeleted, "Y-2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnlinked, res.Outcome)
	assert.Equal(t, task.ID, res.TaskID)
}

func TestEngine_UnlinkKeepsLinkToOtherIssue(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	task := testutil.CreateTask(t, s, model.Task{
		Metadata: model.TaskMetadata{GitHub: &model.GitHubLink{IssueID: 902, IssueNumber: 8, RepositoryID: 42}},
	})
	e := NewEngine(s, nil)

	key := model.ProviderLinkKey{Provider: model.ProviderGitHub, ExternalID: "901", TenantID: "42"}
	res, err := e.unlink(ctx, e.logger, task.ID, key, "issues.deleted")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Metadata.GitHub)
	assert.Equal(t, int64(902), got.Metadata.GitHub.IssueID)

	unlinks, err := s.ListActivity(ctx, store.ActivityFilter{Action: model.UnlinkedAction(model.ProviderGitHub)})
	require.NoError(t, err)
	assert.Empty(t, unlinks)
}
