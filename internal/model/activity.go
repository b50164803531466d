package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Entity types recorded on activity entries.
const (
	EntityTask = "task"
)

// ActivityLogEntry is an append-only audit record. Entries tagged
// imported_from_<provider> double as the primary link index.
type ActivityLogEntry struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspaceId" db:"workspace_id"`

	// TaskID and UserID are nil for entries not tied to a task or
	// originating from a provider rather than a person.
	TaskID *string `json:"taskId,omitempty" db:"task_id"`
	UserID *string `json:"userId,omitempty" db:"user_id"`

	Action     string         `json:"action" db:"action"`
	EntityType string         `json:"entityType" db:"entity_type"`
	EntityID   string         `json:"entityId" db:"entity_id"`
	Metadata   ActivityFields `json:"metadata" db:"metadata"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
}

// ImportedAction is the tag of entries written when a task is imported
// from p.
func ImportedAction(p Provider) string {
	return "imported_from_" + string(p)
}

// LinkedAction is the tag of entries written when a local task is
// exported to p and linked to the new issue.
func LinkedAction(p Provider) string {
	return "linked_to_" + string(p)
}

// UnlinkedAction is the tag of entries written when the remote issue
// behind a link is deleted.
func UnlinkedAction(p Provider) string {
	return "unlinked_from_" + string(p)
}

// ChangedAction is the tag of entries written for one field updated by a
// provider event, e.g. status_changed_by_jira.
func ChangedAction(f Field, p Provider) string {
	return string(f) + "_changed_by_" + string(p)
}

// ActivityFields is the free-form JSON metadata of an activity entry.
type ActivityFields map[string]any

// String returns the value at key formatted as a string. JSON numbers are
// rendered without exponent or trailing zeros so numeric ids compare
// equal to their string form.
func (f ActivityFields) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case json.Number:
		return t.String()
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Value stores the fields as JSON text.
func (f ActivityFields) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]any(f))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan reads the fields from a TEXT column.
func (f *ActivityFields) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*f = ActivityFields{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported activity metadata column type %T", src)
	}
	out := ActivityFields{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("decoding activity metadata: %w", err)
		}
	}
	*f = out
	return nil
}
