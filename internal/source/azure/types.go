package azure

import "encoding/json"

// Service hook event types.
const (
	EventWorkItemCreated = "workitem.created"
	EventWorkItemUpdated = "workitem.updated"
	EventWorkItemDeleted = "workitem.deleted"
)

// Work item field reference names.
const (
	FieldTitle       = "System.Title"
	FieldState       = "System.State"
	FieldDescription = "System.Description"
	FieldPriority    = "Microsoft.VSTS.Common.Priority"
	FieldDueDate     = "Microsoft.VSTS.Scheduling.DueDate"
)

// ServiceHookEvent is the body of an Azure DevOps service hook delivery.
type ServiceHookEvent struct {
	ID                 string             `json:"id"`
	EventType          string             `json:"eventType"`
	Resource           Resource           `json:"resource"`
	ResourceContainers ResourceContainers `json:"resourceContainers"`
}

// Resource is the work item update (workitem.updated) or the work item
// itself (workitem.created, workitem.deleted).
type Resource struct {
	ID         int    `json:"id"`
	WorkItemID int    `json:"workItemId,omitempty"`
	Rev        int    `json:"rev"`
	URL        string `json:"url"`

	// Fields holds old/new pairs on updates and plain values otherwise.
	Fields map[string]json.RawMessage `json:"fields"`

	// Revision is the work item after the update.
	Revision *WorkItem `json:"revision,omitempty"`
}

// ItemID returns the work item id for any event shape.
func (r Resource) ItemID() int {
	if r.WorkItemID != 0 {
		return r.WorkItemID
	}
	if r.Revision != nil && r.Revision.ID != 0 {
		return r.Revision.ID
	}
	return r.ID
}

// FieldChange is one entry of an update's fields map.
type FieldChange struct {
	OldValue any `json:"oldValue"`
	NewValue any `json:"newValue"`
}

// ResourceContainers identifies the organization and project.
type ResourceContainers struct {
	Collection *Container `json:"collection,omitempty"`
	Account    *Container `json:"account,omitempty"`
	Project    *Container `json:"project,omitempty"`
}

// Container is one resource container.
type Container struct {
	ID      string `json:"id"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// WorkItem is a work item as returned by the REST API.
type WorkItem struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields map[string]any `json:"fields"`
	URL    string         `json:"url"`
}

// String returns a string field or "".
func (w WorkItem) String(field string) string {
	s, _ := w.Fields[field].(string)
	return s
}

// PatchOperation is one JSON Patch operation.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// ErrorResponse is the standard Azure DevOps error body.
type ErrorResponse struct {
	Message   string `json:"message"`
	TypeKey   string `json:"typeKey"`
	ErrorCode int    `json:"errorCode"`
}
