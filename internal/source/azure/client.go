package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

// DefaultBaseURL is the Azure DevOps Services root.
const DefaultBaseURL = "https://dev.azure.com"

const (
	apiVersion       = "7.1"
	jsonPatch        = "application/json-patch+json"
	defaultWorkItem  = "Task"
	initialStateName = StateNew
)

// Client implements source.Tracker for Azure DevOps work items.
type Client struct {
	rest *source.RESTClient
}

var _ source.Tracker = (*Client)(nil)

// NewClient creates an Azure DevOps tracker. An empty baseURL uses
// DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rest := source.NewRESTClient(model.ProviderAzure, baseURL, httpClient)
	rest.ErrorMessage = errorMessage
	return &Client{rest: rest}
}

// Provider returns model.ProviderAzure.
func (c *Client) Provider() model.Provider {
	return model.ProviderAzure
}

// PushTask writes the task's fields to the linked work item in one JSON
// Patch document.
func (c *Client) PushTask(ctx context.Context, token string, task model.Task) (string, error) {
	link := task.Metadata.Azure
	if link == nil {
		return "", errors.New("task has no azure link")
	}
	id := strconv.Itoa(link.WorkItemID)

	current, err := c.getWorkItem(ctx, token, link.Organization, id)
	if err != nil {
		return "", err
	}

	ops := fieldOps(task, current)
	ops = append(ops, PatchOperation{Op: "add", Path: fieldPath(FieldState), Value: StateFor(task.Status)})
	if err := c.patch(ctx, token, link.Organization, id, ops, nil); err != nil {
		return "", fmt.Errorf("updating work item %s: %w", id, err)
	}
	return id, nil
}

// CreateIssue creates a Task work item in target.Project of organization
// target.TenantID, then moves it out of the initial state if needed.
func (c *Client) CreateIssue(ctx context.Context, token string, target source.Target, task model.Task) (model.TaskMetadata, string, error) {
	if target.TenantID == "" || target.Project == "" {
		return model.TaskMetadata{}, "", errors.New("azure organization and project are required")
	}

	path := "/" + url.PathEscape(target.TenantID) + "/" + url.PathEscape(target.Project) +
		"/_apis/wit/workitems/$" + defaultWorkItem + "?api-version=" + apiVersion
	var created WorkItem
	err := c.rest.Do(ctx, source.Request{
		Method:      http.MethodPost,
		Path:        path,
		Token:       token,
		Body:        fieldOps(task, nil),
		ContentType: jsonPatch,
	}, &created)
	if err != nil {
		return model.TaskMetadata{}, "", fmt.Errorf("creating work item: %w", err)
	}
	id := strconv.Itoa(created.ID)

	if state := StateFor(task.Status); state != initialStateName {
		ops := []PatchOperation{{Op: "add", Path: fieldPath(FieldState), Value: state}}
		if err := c.patch(ctx, token, target.TenantID, id, ops, nil); err != nil {
			return model.TaskMetadata{}, "", fmt.Errorf("setting state of work item %s: %w", id, err)
		}
	}

	meta := task.Metadata
	meta.Azure = &model.AzureLink{
		WorkItemID:   created.ID,
		Organization: target.TenantID,
		Project:      target.Project,
	}
	return meta, id, nil
}

// GetIssue fetches work item ref from organization target.TenantID.
func (c *Client) GetIssue(ctx context.Context, token string, target source.Target, ref string) (*source.Imported, error) {
	if _, err := strconv.Atoi(ref); err != nil {
		return nil, fmt.Errorf("azure work item reference %q is not a number", ref)
	}
	wi, err := c.getWorkItem(ctx, token, target.TenantID, ref)
	if err != nil {
		return nil, err
	}

	project := target.Project
	if p := wi.String("System.TeamProject"); p != "" {
		project = p
	}
	return &source.Imported{
		Link: model.TaskMetadata{Azure: &model.AzureLink{
			WorkItemID:   wi.ID,
			Organization: target.TenantID,
			Project:      project,
		}},
		Key: model.ProviderLinkKey{
			Provider:   model.ProviderAzure,
			ExternalID: strconv.Itoa(wi.ID),
			TenantID:   target.TenantID,
		},
		Title:       wi.String(FieldTitle),
		Description: ExtractPlainText(wi.Fields[FieldDescription]),
		Status:      MapStatus(wi.String(FieldState)),
		Priority:    MapPriority(wi.Fields[FieldPriority]),
		DueDate:     model.NormalizeDate(wi.String(FieldDueDate)),
	}, nil
}

func (c *Client) getWorkItem(ctx context.Context, token, org, id string) (*WorkItem, error) {
	path := "/" + url.PathEscape(org) + "/_apis/wit/workitems/" + id + "?api-version=" + apiVersion
	var wi WorkItem
	if err := c.rest.Do(ctx, source.Request{Method: http.MethodGet, Path: path, Token: token}, &wi); err != nil {
		return nil, fmt.Errorf("fetching work item %s: %w", id, err)
	}
	return &wi, nil
}

func (c *Client) patch(ctx context.Context, token, org, id string, ops []PatchOperation, result any) error {
	path := "/" + url.PathEscape(org) + "/_apis/wit/workitems/" + id + "?api-version=" + apiVersion
	return c.rest.Do(ctx, source.Request{
		Method:      http.MethodPatch,
		Path:        path,
		Token:       token,
		Body:        ops,
		ContentType: jsonPatch,
	}, result)
}

// fieldOps builds add operations for the mapped task fields. A cleared
// due date becomes a remove, but only when current still has one.
func fieldOps(task model.Task, current *WorkItem) []PatchOperation {
	ops := []PatchOperation{
		{Op: "add", Path: fieldPath(FieldTitle), Value: task.Title},
		{Op: "add", Path: fieldPath(FieldDescription), Value: source.TextToHTML(task.Description)},
		{Op: "add", Path: fieldPath(FieldPriority), Value: PriorityFor(task.Priority)},
	}
	if due := task.DueDateValue(); due != "" {
		ops = append(ops, PatchOperation{Op: "add", Path: fieldPath(FieldDueDate), Value: due + "T00:00:00Z"})
	} else if current != nil {
		if _, ok := current.Fields[FieldDueDate]; ok {
			ops = append(ops, PatchOperation{Op: "remove", Path: fieldPath(FieldDueDate)})
		}
	}
	return ops
}

func fieldPath(name string) string {
	return "/fields/" + name
}

func errorMessage(body []byte) string {
	var e ErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Message
}
