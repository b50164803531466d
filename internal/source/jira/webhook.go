package jira

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

// ParseWebhook decodes a delivery and routes it by webhookEvent.
func ParseWebhook(body []byte) (source.Event, error) {
	var e WebhookEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return source.Event{}, fmt.Errorf("decoding jira webhook: %w", err)
	}
	return e.Event(), nil
}

// Event converts the payload to a provider neutral event. Deliveries
// without an issue are reported as EventOther.
func (e WebhookEvent) Event() source.Event {
	ev := source.Event{Type: e.WebhookEvent}
	if e.Issue == nil || e.Issue.Key == "" {
		return ev
	}

	ev.Key = model.ProviderLinkKey{
		Provider:   model.ProviderJira,
		ExternalID: e.Issue.Key,
		TenantID:   e.CloudID,
	}
	ev.SelfURL = e.Issue.Self

	switch e.WebhookEvent {
	case EventIssueUpdated:
		ev.Kind = source.EventUpdated
		ev.Changes = e.ChangeSet()
	case EventIssueDeleted:
		ev.Kind = source.EventDeleted
	}
	return ev
}

// ChangeSet lists the canonical fields named in the changelog, with
// values read from the issue snapshot.
func (e WebhookEvent) ChangeSet() model.ChangeSet {
	cs := model.ChangeSet{
		Provider:     model.ProviderJira,
		RawEventType: e.WebhookEvent,
	}
	if e.Issue == nil {
		return cs
	}
	cs.ExternalIssueKey = e.Issue.Key
	if e.Changelog == nil {
		return cs
	}

	f := e.Issue.Fields
	for _, item := range e.Changelog.Items {
		switch changelogField(item) {
		case "status":
			cs.SetStatus(MapStatus(f.Status.Name, f.Status.StatusCategory.Key))
		case "summary":
			cs.SetTitle(f.Summary)
		case "priority":
			cs.SetPriority(MapPriority(f.Priority))
		case "description":
			cs.SetDescription(ExtractPlainText(f.Description))
		case "duedate":
			cs.SetDueDate(model.NormalizeDate(f.DueDate))
		}
	}
	return cs
}

// changelogField prefers the stable field id over the display name.
func changelogField(item ChangelogItem) string {
	if item.FieldID != "" {
		return strings.ToLower(item.FieldID)
	}
	return strings.ToLower(item.Field)
}
