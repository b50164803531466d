package github

// EventIssues is the X-GitHub-Event value for issue deliveries.
const EventIssues = "issues"

// Issue actions the engine handles.
const (
	ActionEdited    = "edited"
	ActionClosed    = "closed"
	ActionReopened  = "reopened"
	ActionLabeled   = "labeled"
	ActionUnlabeled = "unlabeled"
	ActionDeleted   = "deleted"
)

// Issue states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// IssuesEvent is the body of an "issues" webhook delivery.
type IssuesEvent struct {
	Action     string      `json:"action"`
	Issue      *Issue      `json:"issue"`
	Repository *Repository `json:"repository"`
	Changes    *Changes    `json:"changes,omitempty"`

	// Label is set on labeled and unlabeled actions.
	Label *Label `json:"label,omitempty"`
}

// Changes lists the previous values of edited fields. Only the keys
// matter; the current values live on Issue.
type Changes struct {
	Title *ChangedFrom `json:"title,omitempty"`
	Body  *ChangedFrom `json:"body,omitempty"`
}

// ChangedFrom holds a previous value.
type ChangedFrom struct {
	From string `json:"from"`
}

// Issue is a GitHub issue as returned by the REST API and webhooks.
type Issue struct {
	ID      int64   `json:"id"`
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	Body    *string `json:"body"`
	State   string  `json:"state"`
	Labels  []Label `json:"labels"`
	URL     string  `json:"url"`
	HTMLURL string  `json:"html_url"`
}

// BodyText returns the body or "" when null.
func (i Issue) BodyText() string {
	if i.Body == nil {
		return ""
	}
	return *i.Body
}

// LabelNames returns the label names in payload order.
func (i Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// Label is an issue label.
type Label struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

// Repository identifies the repository an issue lives in.
type Repository struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

// IssueRequest is the body of issue create and update calls.
type IssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	State  string   `json:"state,omitempty"`
	Labels []string `json:"labels"`
}

// ErrorResponse is the standard GitHub error body.
type ErrorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}
