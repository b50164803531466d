package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/store"
	"github.com/nhle/tasksync/internal/testutil"
)

func statusChange(p model.Provider, s model.TaskStatus) model.ChangeSet {
	cs := model.ChangeSet{Provider: p, ExternalIssueKey: "PROJ-1", RawEventType: "jira:issue_updated"}
	cs.SetStatus(s)
	return cs
}

func taskActivity(t *testing.T, s store.Store, taskID string) []model.ActivityLogEntry {
	t.Helper()
	entries, err := s.ListActivity(context.Background(), store.ActivityFilter{TaskID: taskID})
	require.NoError(t, err)
	return entries
}

func TestApply_IsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	task := testutil.CreateTask(t, s, model.Task{Status: model.StatusInProgress})
	a := NewApplier(s, nil)
	ctx := context.Background()

	res, err := a.Apply(ctx, task.ID, statusChange(model.ProviderJira, model.StatusDone))
	require.NoError(t, err)
	assert.Equal(t, []model.Field{model.FieldStatus}, res.AppliedFields)

	afterFirst, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, afterFirst.Status)

	res, err = a.Apply(ctx, task.ID, statusChange(model.ProviderJira, model.StatusDone))
	require.NoError(t, err)
	assert.Empty(t, res.AppliedFields)
	assert.NotNil(t, res.AppliedFields)

	afterSecond, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, afterFirst.UpdatedAt.Equal(afterSecond.UpdatedAt), "a replay must not write the task row")

	entries := taskActivity(t, s, task.ID)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "status_changed_by_jira", e.Action)
	assert.Equal(t, "in_progress", e.Metadata.String("from"))
	assert.Equal(t, "done", e.Metadata.String("to"))
	assert.Equal(t, "jira", e.Metadata.String("provider"))
	assert.Equal(t, "PROJ-1", e.Metadata.String("externalIssueKey"))
	assert.Nil(t, e.UserID)
	assert.Equal(t, model.EntityTask, e.EntityType)
}

func TestApply_SkipsFieldsAlreadyInTargetState(t *testing.T) {
	s := testutil.NewTestStore(t)
	due := "2024-05-01"
	task := testutil.CreateTask(t, s, model.Task{
		Title: "Same", Status: model.StatusTodo, Priority: model.PriorityHigh, DueDate: &due,
	})

	cs := model.ChangeSet{Provider: model.ProviderGitHub}
	cs.SetStatus(model.StatusTodo)
	cs.SetPriority(model.PriorityHigh)
	cs.SetTitle("Different")
	cs.SetDescription("")
	cs.SetDueDate("2024-05-01")

	res, err := NewApplier(s, nil).Apply(context.Background(), task.ID, cs)
	require.NoError(t, err)
	assert.Equal(t, []model.Field{model.FieldTitle}, res.AppliedFields)

	entries := taskActivity(t, s, task.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "title_changed_by_github", entries[0].Action)
	assert.Equal(t, "Same", entries[0].Metadata.String("from"))
}

func TestApply_OneEntryPerFieldOneRowWrite(t *testing.T) {
	s := testutil.NewTestStore(t)
	task := testutil.CreateTask(t, s, model.Task{Title: "Old", Status: model.StatusTodo})

	cs := model.ChangeSet{Provider: model.ProviderAzure}
	cs.SetStatus(model.StatusReview)
	cs.SetPriority(model.PriorityUrgent)
	cs.SetTitle("New")
	cs.SetDescription("body")
	cs.SetDueDate("2024-12-24")

	res, err := NewApplier(s, nil).Apply(context.Background(), task.ID, cs)
	require.NoError(t, err)
	assert.Equal(t, cs.Fields(), res.AppliedFields)

	got, err := s.GetTaskByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReview, got.Status)
	assert.Equal(t, model.PriorityUrgent, got.Priority)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "body", got.Description)
	assert.Equal(t, "2024-12-24", got.DueDateValue())

	entries := taskActivity(t, s, task.ID)
	assert.Len(t, entries, 5)
}

func TestApply_ClearsDueDate(t *testing.T) {
	s := testutil.NewTestStore(t)
	due := "2024-01-31"
	task := testutil.CreateTask(t, s, model.Task{DueDate: &due})

	cs := model.ChangeSet{Provider: model.ProviderJira}
	cs.SetDueDate("")
	res, err := NewApplier(s, nil).Apply(context.Background(), task.ID, cs)
	require.NoError(t, err)
	assert.Equal(t, []model.Field{model.FieldDueDate}, res.AppliedFields)

	got, err := s.GetTaskByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DueDate)
}

func TestApply_RejectsNonCanonicalValues(t *testing.T) {
	s := testutil.NewTestStore(t)
	task := testutil.CreateTask(t, s, model.Task{})

	_, err := NewApplier(s, nil).Apply(context.Background(), task.ID, statusChange(model.ProviderJira, "Done"))
	assert.Error(t, err)
	assert.Empty(t, taskActivity(t, s, task.ID))
}

func TestApply_MissingTask(t *testing.T) {
	s := testutil.NewTestStore(t)
	_, err := NewApplier(s, nil).Apply(context.Background(), "nope", statusChange(model.ProviderJira, model.StatusDone))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func changeSetGen() *rapid.Generator[model.ChangeSet] {
	return rapid.Custom(func(t *rapid.T) model.ChangeSet {
		cs := model.ChangeSet{Provider: rapid.SampledFrom(model.Providers).Draw(t, "provider")}
		if rapid.Bool().Draw(t, "status") {
			cs.SetStatus(rapid.SampledFrom([]model.TaskStatus{
				model.StatusBacklog, model.StatusTodo, model.StatusInProgress, model.StatusReview, model.StatusDone,
			}).Draw(t, "statusValue"))
		}
		if rapid.Bool().Draw(t, "priority") {
			cs.SetPriority(rapid.SampledFrom([]model.TaskPriority{
				model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent,
			}).Draw(t, "priorityValue"))
		}
		if rapid.Bool().Draw(t, "title") {
			cs.SetTitle(rapid.StringMatching(`[a-zA-Z ]{1,20}`).Draw(t, "titleValue"))
		}
		if rapid.Bool().Draw(t, "description") {
			cs.SetDescription(rapid.StringMatching(`[a-zA-Z0-9 .\n]{0,40}`).Draw(t, "descriptionValue"))
		}
		if rapid.Bool().Draw(t, "dueDate") {
			day := rapid.IntRange(0, 365).Draw(t, "day")
			due := ""
			if day > 0 {
				due = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day).Format(model.DateLayout)
			}
			cs.SetDueDate(due)
		}
		return cs
	})
}

// Property: applying any change set twice writes once; the second call
// applies nothing and adds no activity.
func TestProperty_ApplyTwiceIsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	a := NewApplier(s, nil)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		task, err := s.CreateTask(ctx, model.Task{WorkspaceID: "ws", Title: "seed"})
		if err != nil {
			rt.Fatalf("creating task: %v", err)
		}
		cs := changeSetGen().Draw(rt, "changes")

		first, err := a.Apply(ctx, task.ID, cs)
		if err != nil {
			rt.Fatalf("first apply: %v", err)
		}
		second, err := a.Apply(ctx, task.ID, cs)
		if err != nil {
			rt.Fatalf("second apply: %v", err)
		}
		if len(second.AppliedFields) != 0 {
			rt.Fatalf("replay applied %v", second.AppliedFields)
		}

		entries, err := s.ListActivity(ctx, store.ActivityFilter{TaskID: task.ID})
		if err != nil {
			rt.Fatalf("listing activity: %v", err)
		}
		if len(entries) != len(first.AppliedFields) {
			rt.Fatalf("got %d entries for %d applied fields", len(entries), len(first.AppliedFields))
		}
	})
}
