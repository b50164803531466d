package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

const apiVersion = "2022-11-28"

// Client implements source.Tracker for GitHub Issues.
type Client struct {
	rest *source.RESTClient
}

var _ source.Tracker = (*Client)(nil)

// NewClient creates a GitHub tracker. An empty baseURL uses
// DefaultBaseURL; GitHub Enterprise servers pass their /api/v3 root.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rest := source.NewRESTClient(model.ProviderGitHub, baseURL, httpClient)
	rest.ErrorMessage = errorMessage
	return &Client{rest: rest}
}

// Provider returns model.ProviderGitHub.
func (c *Client) Provider() model.Provider {
	return model.ProviderGitHub
}

// PushTask patches title, body, state and the managed labels of the
// linked issue. Unmanaged labels are preserved.
func (c *Client) PushTask(ctx context.Context, token string, task model.Task) (string, error) {
	link := task.Metadata.GitHub
	if link == nil {
		return "", errors.New("task has no github link")
	}
	path := repoPath(link.Repository, link.RepositoryID) + "/issues/" + strconv.Itoa(link.IssueNumber)

	var current Issue
	if err := c.do(ctx, token, http.MethodGet, path, nil, &current); err != nil {
		return "", fmt.Errorf("fetching github issue %d: %w", link.IssueNumber, err)
	}

	req := IssueRequest{
		Title:  task.Title,
		Body:   task.Description,
		State:  StateFor(task.Status),
		Labels: LabelsFor(current.LabelNames(), task.Status, task.Priority),
	}
	if err := c.do(ctx, token, http.MethodPatch, path, req, nil); err != nil {
		return "", fmt.Errorf("updating github issue %d: %w", link.IssueNumber, err)
	}
	return issueRef(link.Repository, link.IssueNumber), nil
}

// CreateIssue opens an issue in repository target.TenantID ("owner/name")
// and closes it straight away when the task is done.
func (c *Client) CreateIssue(ctx context.Context, token string, target source.Target, task model.Task) (model.TaskMetadata, string, error) {
	if !strings.Contains(target.TenantID, "/") {
		return model.TaskMetadata{}, "", fmt.Errorf("github repository must be owner/name, got %q", target.TenantID)
	}
	repo, err := c.repository(ctx, token, target.TenantID)
	if err != nil {
		return model.TaskMetadata{}, "", err
	}

	req := IssueRequest{
		Title:  task.Title,
		Body:   task.Description,
		Labels: LabelsFor(nil, task.Status, task.Priority),
	}
	var created Issue
	if err := c.do(ctx, token, http.MethodPost, "/repos/"+repo.FullName+"/issues", req, &created); err != nil {
		return model.TaskMetadata{}, "", fmt.Errorf("creating github issue: %w", err)
	}

	if StateFor(task.Status) == StateClosed {
		path := "/repos/" + repo.FullName + "/issues/" + strconv.Itoa(created.Number)
		if err := c.do(ctx, token, http.MethodPatch, path, map[string]string{"state": StateClosed}, nil); err != nil {
			return model.TaskMetadata{}, "", fmt.Errorf("closing github issue %d: %w", created.Number, err)
		}
	}

	meta := task.Metadata
	meta.GitHub = &model.GitHubLink{
		IssueID:      created.ID,
		IssueNumber:  created.Number,
		RepositoryID: repo.ID,
		Repository:   repo.FullName,
	}
	return meta, issueRef(repo.FullName, created.Number), nil
}

// GetIssue fetches issue number ref from repository target.TenantID.
func (c *Client) GetIssue(ctx context.Context, token string, target source.Target, ref string) (*source.Imported, error) {
	number, err := strconv.Atoi(strings.TrimPrefix(ref, "#"))
	if err != nil {
		return nil, fmt.Errorf("github issue reference %q is not a number", ref)
	}
	repo, err := c.repository(ctx, token, target.TenantID)
	if err != nil {
		return nil, err
	}

	var issue Issue
	path := "/repos/" + repo.FullName + "/issues/" + strconv.Itoa(number)
	if err := c.do(ctx, token, http.MethodGet, path, nil, &issue); err != nil {
		return nil, fmt.Errorf("fetching github issue %d: %w", number, err)
	}

	labels := issue.LabelNames()
	return &source.Imported{
		Link: model.TaskMetadata{GitHub: &model.GitHubLink{
			IssueID:      issue.ID,
			IssueNumber:  issue.Number,
			RepositoryID: repo.ID,
			Repository:   repo.FullName,
		}},
		Key: model.ProviderLinkKey{
			Provider:   model.ProviderGitHub,
			ExternalID: strconv.FormatInt(issue.ID, 10),
			TenantID:   strconv.FormatInt(repo.ID, 10),
		},
		Title:       issue.Title,
		Description: issue.BodyText(),
		Status:      MapStatus(issue.State, labels),
		Priority:    MapPriority(labels),
	}, nil
}

func (c *Client) repository(ctx context.Context, token, fullName string) (*Repository, error) {
	var repo Repository
	if err := c.do(ctx, token, http.MethodGet, "/repos/"+fullName, nil, &repo); err != nil {
		return nil, fmt.Errorf("fetching github repository %s: %w", fullName, err)
	}
	return &repo, nil
}

func (c *Client) do(ctx context.Context, token, method, path string, body, result any) error {
	return c.rest.Do(ctx, source.Request{
		Method: method,
		Path:   path,
		Token:  token,
		Body:   body,
		Header: http.Header{"X-Github-Api-Version": []string{apiVersion}},
	}, result)
}

// repoPath addresses a repository by name, or by id when the name was
// never recorded.
func repoPath(fullName string, id int64) string {
	if fullName != "" {
		return "/repos/" + fullName
	}
	return "/repositories/" + strconv.FormatInt(id, 10)
}

func issueRef(fullName string, number int) string {
	return fullName + "#" + strconv.Itoa(number)
}

func errorMessage(body []byte) string {
	var e ErrorResponse
	if json.Unmarshal(body, &e) != nil || e.Message == "" {
		return ""
	}
	msgs := []string{e.Message}
	for _, fe := range e.Errors {
		if fe.Message != "" {
			msgs = append(msgs, fe.Message)
		} else {
			msgs = append(msgs, fe.Field+" "+fe.Code)
		}
	}
	return strings.Join(msgs, "; ")
}
