package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

type recordedCall struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeJira serves the handful of endpoints the client uses.
func fakeJira(t *testing.T, currentStatus Status) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var calls []recordedCall
	mux := http.NewServeMux()

	record := func(r *http.Request) {
		c := recordedCall{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&c.Body)
		}
		calls = append(calls, c)
	}

	mux.HandleFunc("/cloud-1/rest/api/3/issue/PROJ-1", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(Issue{
				ID:  "10001",
				Key: "PROJ-1",
				Fields: IssueFields{
					Summary:     "Remote",
					Status:      currentStatus,
					Priority:    &Priority{Name: "Highest"},
					DueDate:     "2024-02-03",
					Description: json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"x"}]}]}`),
				},
			})
		}
	})
	mux.HandleFunc("/cloud-1/rest/api/3/issue/PROJ-1/transitions", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(TransitionsResponse{Transitions: []Transition{
				{ID: "31", Name: "Done", To: TransitionTo{Name: "Done", StatusCategory: StatusCategory{Key: CategoryDone}}},
			}})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/cloud-1/rest/api/3/issue", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(CreatedIssue{ID: "10001", Key: "PROJ-1"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func linkedTask() model.Task {
	due := "2024-03-01"
	return model.Task{
		ID:          "t1",
		Title:       "Ship it",
		Description: "line one\nline two",
		Status:      model.StatusDone,
		Priority:    model.PriorityUrgent,
		DueDate:     &due,
		Metadata:    model.TaskMetadata{Jira: &model.JiraLink{IssueKey: "PROJ-1", CloudID: "cloud-1"}},
	}
}

func TestClient_PushTask_UpdatesFieldsAndTransitions(t *testing.T) {
	srv, calls := fakeJira(t, Status{Name: "In Progress", StatusCategory: StatusCategory{Key: CategoryIndeterminate}})
	c := NewClient(srv.URL, srv.Client())

	key, err := c.PushTask(context.Background(), "tok", linkedTask())
	require.NoError(t, err)
	assert.Equal(t, "PROJ-1", key)

	require.Len(t, *calls, 4)
	put := (*calls)[0]
	assert.Equal(t, http.MethodPut, put.Method)
	fields := put.Body["fields"].(map[string]any)
	assert.Equal(t, "Ship it", fields["summary"])
	assert.Equal(t, "2024-03-01", fields["duedate"])
	assert.Equal(t, "Highest", fields["priority"].(map[string]any)["name"])
	assert.Equal(t, "doc", fields["description"].(map[string]any)["type"])

	post := (*calls)[3]
	assert.Equal(t, http.MethodPost, post.Method)
	assert.Equal(t, "31", post.Body["transition"].(map[string]any)["id"])
}

func TestClient_PushTask_SkipsTransitionWhenAlreadyThere(t *testing.T) {
	srv, calls := fakeJira(t, Status{Name: "Done", StatusCategory: StatusCategory{Key: CategoryDone}})
	c := NewClient(srv.URL, srv.Client())

	_, err := c.PushTask(context.Background(), "tok", linkedTask())
	require.NoError(t, err)
	assert.Len(t, *calls, 2)
}

func TestClient_PushTask_Unlinked(t *testing.T) {
	c := NewClient("http://unused", nil)
	_, err := c.PushTask(context.Background(), "tok", model.Task{})
	assert.Error(t, err)
}

func TestClient_GetIssue(t *testing.T) {
	srv, _ := fakeJira(t, Status{Name: "Whatever", StatusCategory: StatusCategory{Key: CategoryIndeterminate}})
	c := NewClient(srv.URL, srv.Client())

	imp, err := c.GetIssue(context.Background(), "tok", source.Target{TenantID: "cloud-1"}, "PROJ-1")
	require.NoError(t, err)

	assert.Equal(t, "Remote", imp.Title)
	assert.Equal(t, "x", imp.Description)
	assert.Equal(t, model.StatusInProgress, imp.Status)
	assert.Equal(t, model.PriorityUrgent, imp.Priority)
	assert.Equal(t, "2024-02-03", imp.DueDate)
	assert.Equal(t, model.ProviderLinkKey{Provider: model.ProviderJira, ExternalID: "PROJ-1", TenantID: "cloud-1"}, imp.Key)
	require.NotNil(t, imp.Link.Jira)
	assert.Equal(t, "10001", imp.Link.Jira.IssueID)
}

func TestClient_CreateIssue(t *testing.T) {
	srv, calls := fakeJira(t, Status{Name: "To Do", StatusCategory: StatusCategory{Key: CategoryNew}})
	c := NewClient(srv.URL, srv.Client())

	task := linkedTask()
	task.Metadata = model.TaskMetadata{}
	task.Status = model.StatusTodo

	meta, key, err := c.CreateIssue(context.Background(), "tok", source.Target{TenantID: "cloud-1", Project: "PROJ"}, task)
	require.NoError(t, err)
	assert.Equal(t, "PROJ-1", key)
	require.NotNil(t, meta.Jira)
	assert.Equal(t, model.JiraLink{IssueKey: "PROJ-1", IssueID: "10001", CloudID: "cloud-1"}, *meta.Jira)

	create := (*calls)[0]
	fields := create.Body["fields"].(map[string]any)
	assert.Equal(t, "PROJ", fields["project"].(map[string]any)["key"])
	assert.Equal(t, "Task", fields["issuetype"].(map[string]any)["name"])
	// todo already matches the new issue's status, so only a status read follows.
	assert.Len(t, *calls, 2)

	_, _, err = c.CreateIssue(context.Background(), "tok", source.Target{TenantID: "cloud-1"}, task)
	assert.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	msg := errorMessage([]byte(`{"errorMessages":["Issue does not exist"],"errors":{}}`))
	assert.Equal(t, "Issue does not exist", msg)
	assert.Equal(t, "", errorMessage([]byte(`<html>`)))
}
