package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/tasksync/internal/model"
)

// AuthError indicates that authentication has failed or expired for a
// provider. It is returned by provider clients when a 401 response is
// received.
type AuthError struct {
	Provider model.Provider
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Provider, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Target names where an issue lives or should be created: the tenant
// (Jira cloud id, GitHub repository "owner/name", Azure organization) and
// an optional project (Jira project key, Azure project name).
type Target struct {
	TenantID string
	Project  string
}

// Imported is a remote issue translated into the canonical vocabulary,
// ready to be stored as a new linked task.
type Imported struct {
	Link        model.TaskMetadata
	Key         model.ProviderLinkKey
	Title       string
	Description string
	Status      model.TaskStatus
	Priority    model.TaskPriority
	DueDate     string
}

// Tracker defines the outbound contract every provider integration
// implements. Canonical task values always pass through the provider's
// inverse mappers before reaching the remote API.
type Tracker interface {
	// Provider returns the provider identifier.
	Provider() model.Provider

	// PushTask writes the task's canonical fields to the linked issue
	// and returns the provider's human readable issue key.
	PushTask(ctx context.Context, token string, task model.Task) (string, error)

	// CreateIssue creates a remote issue from a local task and returns
	// the link to store on the task.
	CreateIssue(ctx context.Context, token string, target Target, task model.Task) (model.TaskMetadata, string, error)

	// GetIssue fetches a remote issue by its provider reference
	// (issue key, issue number, work item id).
	GetIssue(ctx context.Context, token string, target Target, ref string) (*Imported, error)
}

// EventKind classifies an inbound webhook delivery.
type EventKind int

const (
	// EventOther covers deliveries the engine acknowledges without work.
	EventOther EventKind = iota
	EventUpdated
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	default:
		return "other"
	}
}

// Event is a parsed webhook delivery in provider neutral form.
type Event struct {
	Kind EventKind

	// Type is the provider's raw event discriminator.
	Type string

	// Key identifies the remote issue. Key.TenantID may be empty when the
	// payload carries no explicit tenant.
	Key model.ProviderLinkKey

	// SelfURL is the issue's self link, used to recover a missing tenant.
	SelfURL string

	// Changes is set for EventUpdated only.
	Changes model.ChangeSet
}
