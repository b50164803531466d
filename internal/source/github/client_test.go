package github

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

func newFakeGitHub(t *testing.T) (*httptest.Server, *[]IssueRequest) {
	t.Helper()
	var patches []IssueRequest
	body := "remote body"

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Repository{ID: 42, FullName: "acme/app"})
	})
	mux.HandleFunc("/repos/acme/app/issues/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiVersion, r.Header.Get("X-GitHub-Api-Version"))
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(Issue{
				ID: 901, Number: 7, Title: "Remote", Body: &body, State: StateOpen,
				Labels: []Label{{Name: "bug"}, {Name: "in progress"}, {Name: "priority: low"}},
			})
		case http.MethodPatch:
			var req IssueRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			patches = append(patches, req)
			_ = json.NewEncoder(w).Encode(Issue{ID: 901, Number: 7})
		}
	})
	mux.HandleFunc("/repos/acme/app/issues", func(w http.ResponseWriter, r *http.Request) {
		var req IssueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"priority: urgent"}, req.Labels)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Issue{ID: 901, Number: 7, Title: req.Title, State: StateOpen})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &patches
}

func TestClient_PushTask(t *testing.T) {
	srv, patches := newFakeGitHub(t)
	c := NewClient(srv.URL, srv.Client())

	task := model.Task{
		Title:       "Local",
		Description: "local body",
		Status:      model.StatusDone,
		Priority:    model.PriorityHigh,
		Metadata: model.TaskMetadata{GitHub: &model.GitHubLink{
			IssueID: 901, IssueNumber: 7, RepositoryID: 42, Repository: "acme/app",
		}},
	}

	ref, err := c.PushTask(context.Background(), "tok", task)
	require.NoError(t, err)
	assert.Equal(t, "acme/app#7", ref)

	require.Len(t, *patches, 1)
	assert.Equal(t, IssueRequest{
		Title:  "Local",
		Body:   "local body",
		State:  StateClosed,
		Labels: []string{"bug", "priority: high"},
	}, (*patches)[0])
}

func TestClient_CreateIssue_ClosesDoneTasks(t *testing.T) {
	srv, patches := newFakeGitHub(t)
	c := NewClient(srv.URL, srv.Client())

	task := model.Task{Title: "New", Status: model.StatusDone, Priority: model.PriorityUrgent}
	meta, ref, err := c.CreateIssue(context.Background(), "tok", source.Target{TenantID: "acme/app"}, task)
	require.NoError(t, err)

	assert.Equal(t, "acme/app#7", ref)
	assert.Equal(t, &model.GitHubLink{IssueID: 901, IssueNumber: 7, RepositoryID: 42, Repository: "acme/app"}, meta.GitHub)
	require.Len(t, *patches, 1)
	assert.Equal(t, StateClosed, (*patches)[0].State)

	_, _, err = c.CreateIssue(context.Background(), "tok", source.Target{TenantID: "app"}, task)
	assert.Error(t, err)
}

func TestClient_GetIssue(t *testing.T) {
	srv, _ := newFakeGitHub(t)
	c := NewClient(srv.URL, srv.Client())

	imp, err := c.GetIssue(context.Background(), "tok", source.Target{TenantID: "acme/app"}, "#7")
	require.NoError(t, err)

	assert.Equal(t, model.ProviderLinkKey{Provider: model.ProviderGitHub, ExternalID: "901", TenantID: "42"}, imp.Key)
	assert.Equal(t, "Remote", imp.Title)
	assert.Equal(t, "remote body", imp.Description)
	assert.Equal(t, model.StatusInProgress, imp.Status)
	assert.Equal(t, model.PriorityLow, imp.Priority)

	_, err = c.GetIssue(context.Background(), "tok", source.Target{TenantID: "acme/app"}, "seven")
	assert.Error(t, err)
}

func TestClient_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	_, err := c.GetIssue(context.Background(), "bad", source.Target{TenantID: "acme/app"}, "1")
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
}
