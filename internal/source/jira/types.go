package jira

import "encoding/json"

// Webhook event discriminators.
const (
	EventIssueCreated = "jira:issue_created"
	EventIssueUpdated = "jira:issue_updated"
	EventIssueDeleted = "jira:issue_deleted"
)

// WebhookEvent is the body of a Jira Cloud issue webhook.
type WebhookEvent struct {
	Timestamp          int64      `json:"timestamp"`
	WebhookEvent       string     `json:"webhookEvent"`
	IssueEventTypeName string     `json:"issue_event_type_name,omitempty"`
	Issue              *Issue     `json:"issue"`
	Changelog          *Changelog `json:"changelog,omitempty"`

	// CloudID is only present on deliveries from apps that add it; most
	// payloads identify the site through Issue.Self.
	CloudID string `json:"cloudId,omitempty"`
}

// Changelog lists the fields one issue update touched.
type Changelog struct {
	ID    string          `json:"id"`
	Items []ChangelogItem `json:"items"`
}

// ChangelogItem is one field level change. FromString and ToString are
// display labels only.
type ChangelogItem struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId,omitempty"`
	FieldType  string `json:"fieldtype"`
	From       string `json:"from,omitempty"`
	FromString string `json:"fromString,omitempty"`
	To         string `json:"to,omitempty"`
	ToString   string `json:"toString,omitempty"`
}

// Issue represents a single Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue the sync engine reads.
type IssueFields struct {
	Summary  string    `json:"summary"`
	Status   Status    `json:"status"`
	Priority *Priority `json:"priority"`
	Project  Project   `json:"project"`
	DueDate  string    `json:"duedate,omitempty"`

	// Description is ADF on API v3 and a plain string on v2.
	Description json.RawMessage `json:"description,omitempty"`
}

// Status represents the status of a Jira issue.
type Status struct {
	Name           string         `json:"name"`
	ID             string         `json:"id"`
	StatusCategory StatusCategory `json:"statusCategory"`
}

// StatusCategory is the broad category a status belongs to.
type StatusCategory struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Priority represents the priority level of a Jira issue.
type Priority struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Project represents a Jira project.
type Project struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// Transition represents a possible status transition for a Jira issue.
type Transition struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	To   TransitionTo `json:"to"`
}

// TransitionTo describes the target status of a transition.
type TransitionTo struct {
	Name           string         `json:"name"`
	ID             string         `json:"id"`
	StatusCategory StatusCategory `json:"statusCategory"`
}

// TransitionsResponse wraps the list of transitions returned by the API.
type TransitionsResponse struct {
	Transitions []Transition `json:"transitions"`
}

// CreatedIssue is the response from POST /rest/api/3/issue.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// ErrorResponse is the standard Jira error response format.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
