package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

// DefaultBaseURL is the Jira Cloud platform gateway. Paths below it are
// prefixed with the site's cloud id.
const DefaultBaseURL = "https://api.atlassian.com/ex/jira"

// defaultIssueType is used when exporting tasks.
const defaultIssueType = "Task"

// Client implements source.Tracker for Jira Cloud REST API v3.
type Client struct {
	rest *source.RESTClient
}

var _ source.Tracker = (*Client)(nil)

// NewClient creates a Jira tracker rooted at baseURL. An empty baseURL
// uses DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rest := source.NewRESTClient(model.ProviderJira, baseURL, httpClient)
	rest.ErrorMessage = errorMessage
	return &Client{rest: rest}
}

// Provider returns model.ProviderJira.
func (c *Client) Provider() model.Provider {
	return model.ProviderJira
}

// PushTask updates the linked issue's fields and transitions it to the
// task's status when it is not there already.
func (c *Client) PushTask(ctx context.Context, token string, task model.Task) (string, error) {
	link := task.Metadata.Jira
	if link == nil {
		return "", errors.New("task has no jira link")
	}

	body := map[string]any{"fields": issueFields(task)}
	err := c.rest.Do(ctx, source.Request{
		Method: http.MethodPut,
		Path:   apiPath(link.CloudID, "/issue/"+url.PathEscape(link.IssueKey)),
		Token:  token,
		Body:   body,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("updating jira issue %s: %w", link.IssueKey, err)
	}

	if err := c.transition(ctx, token, link.CloudID, link.IssueKey, task.Status); err != nil {
		return "", err
	}
	return link.IssueKey, nil
}

// CreateIssue creates an issue in target.Project on site target.TenantID.
func (c *Client) CreateIssue(ctx context.Context, token string, target source.Target, task model.Task) (model.TaskMetadata, string, error) {
	if target.Project == "" {
		return model.TaskMetadata{}, "", errors.New("jira project key is required")
	}

	fields := issueFields(task)
	fields["project"] = Project{Key: target.Project}
	fields["issuetype"] = map[string]string{"name": defaultIssueType}

	var created CreatedIssue
	err := c.rest.Do(ctx, source.Request{
		Method: http.MethodPost,
		Path:   apiPath(target.TenantID, "/issue"),
		Token:  token,
		Body:   map[string]any{"fields": fields},
	}, &created)
	if err != nil {
		return model.TaskMetadata{}, "", fmt.Errorf("creating jira issue: %w", err)
	}

	if err := c.transition(ctx, token, target.TenantID, created.Key, task.Status); err != nil {
		return model.TaskMetadata{}, "", err
	}

	meta := task.Metadata
	meta.Jira = &model.JiraLink{
		IssueKey: created.Key,
		IssueID:  created.ID,
		CloudID:  target.TenantID,
	}
	return meta, created.Key, nil
}

// GetIssue fetches an issue by key or id.
func (c *Client) GetIssue(ctx context.Context, token string, target source.Target, ref string) (*source.Imported, error) {
	issue, err := c.getIssue(ctx, token, target.TenantID, ref, "summary,status,priority,description,duedate,project")
	if err != nil {
		return nil, err
	}

	f := issue.Fields
	return &source.Imported{
		Link: model.TaskMetadata{Jira: &model.JiraLink{
			IssueKey: issue.Key,
			IssueID:  issue.ID,
			CloudID:  target.TenantID,
		}},
		Key: model.ProviderLinkKey{
			Provider:   model.ProviderJira,
			ExternalID: issue.Key,
			TenantID:   target.TenantID,
		},
		Title:       f.Summary,
		Description: ExtractPlainText(f.Description),
		Status:      MapStatus(f.Status.Name, f.Status.StatusCategory.Key),
		Priority:    MapPriority(f.Priority),
		DueDate:     model.NormalizeDate(f.DueDate),
	}, nil
}

func (c *Client) getIssue(ctx context.Context, token, cloudID, ref, fields string) (*Issue, error) {
	path := apiPath(cloudID, "/issue/"+url.PathEscape(ref))
	if fields != "" {
		path += "?fields=" + url.QueryEscape(fields)
	}
	var issue Issue
	if err := c.rest.Do(ctx, source.Request{Method: http.MethodGet, Path: path, Token: token}, &issue); err != nil {
		return nil, fmt.Errorf("fetching jira issue %s: %w", ref, err)
	}
	return &issue, nil
}

// transition moves the issue to status unless it already maps there.
func (c *Client) transition(ctx context.Context, token, cloudID, key string, status model.TaskStatus) error {
	issue, err := c.getIssue(ctx, token, cloudID, key, "status")
	if err != nil {
		return err
	}
	current := issue.Fields.Status
	if MapStatus(current.Name, current.StatusCategory.Key) == status {
		return nil
	}

	path := apiPath(cloudID, "/issue/"+url.PathEscape(key)+"/transitions")
	var resp TransitionsResponse
	if err := c.rest.Do(ctx, source.Request{Method: http.MethodGet, Path: path, Token: token}, &resp); err != nil {
		return fmt.Errorf("fetching transitions for %s: %w", key, err)
	}

	t, ok := PickTransition(resp.Transitions, status)
	if !ok {
		return fmt.Errorf("no transition on %s leads to %s", key, status)
	}

	// Transition endpoint returns 204 No Content on success.
	err = c.rest.Do(ctx, source.Request{
		Method: http.MethodPost,
		Path:   path,
		Token:  token,
		Body:   map[string]any{"transition": map[string]string{"id": t.ID}},
	}, nil)
	if err != nil {
		return fmt.Errorf("transitioning %s to %s: %w", key, t.To.Name, err)
	}
	return nil
}

// issueFields maps canonical task fields through the inverse mappers.
func issueFields(task model.Task) map[string]any {
	fields := map[string]any{
		"summary":     task.Title,
		"description": source.PlainTextToADF(task.Description),
		"priority":    Priority{Name: PriorityName(task.Priority)},
	}
	if due := task.DueDateValue(); due != "" {
		fields["duedate"] = due
	} else {
		fields["duedate"] = nil
	}
	return fields
}

// apiPath builds a REST v3 path, prefixed with the cloud id when routing
// through the platform gateway.
func apiPath(cloudID, p string) string {
	if cloudID == "" {
		return "/rest/api/3" + p
	}
	return "/" + url.PathEscape(cloudID) + "/rest/api/3" + p
}

func errorMessage(body []byte) string {
	var e ErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	msgs := append([]string(nil), e.ErrorMessages...)
	for field, msg := range e.Errors {
		msgs = append(msgs, field+": "+msg)
	}
	return strings.Join(msgs, "; ")
}
