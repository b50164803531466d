package model

import "time"

// TaskStatus is the canonical workflow state of a local task.
type TaskStatus string

// Canonical status values shared by every provider integration.
const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

// Valid reports whether s is one of the canonical statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// TaskPriority is the canonical priority of a local task.
type TaskPriority string

// Canonical priority values.
const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Valid reports whether p is one of the canonical priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// DateLayout is the storage and comparison format of Task.DueDate.
const DateLayout = "2006-01-02"

// Task is the locally owned unit of work. External issues are attached to
// it through Metadata; there is no separate link table.
type Task struct {
	// ID is the internal unique identifier for this task.
	ID string `json:"id" db:"id"`

	// WorkspaceID scopes the task to a tenant of this system.
	WorkspaceID string `json:"workspaceId" db:"workspace_id"`

	Title string `json:"title" db:"title"`

	// Description is always plain text; rich text from providers is
	// flattened before it gets here.
	Description string `json:"description" db:"description"`

	Status   TaskStatus   `json:"status" db:"status"`
	Priority TaskPriority `json:"priority" db:"priority"`

	// DueDate is a calendar date in DateLayout, or nil when unset.
	DueDate *string `json:"dueDate,omitempty" db:"due_date"`

	// CreatedBy is the user that created or imported the task.
	CreatedBy string `json:"createdBy" db:"created_by"`

	// Metadata carries at most one provider link per provider.
	Metadata TaskMetadata `json:"metadata" db:"metadata"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DueDateValue returns the due date or "" when unset.
func (t Task) DueDateValue() string {
	if t.DueDate == nil {
		return ""
	}
	return *t.DueDate
}

// NormalizeDate trims a provider date or timestamp down to DateLayout.
// Unparseable input yields "".
func NormalizeDate(s string) string {
	if s == "" {
		return ""
	}
	if len(s) >= len(DateLayout) {
		if d, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return d.Format(DateLayout)
		}
	}
	return ""
}
