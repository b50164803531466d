package azure

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

// ParseWebhook decodes a service hook delivery and routes it by
// eventType.
func ParseWebhook(body []byte) (source.Event, error) {
	var e ServiceHookEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return source.Event{}, fmt.Errorf("decoding azure webhook: %w", err)
	}
	return e.Event(), nil
}

// Event converts the payload to a provider neutral event.
func (e ServiceHookEvent) Event() source.Event {
	ev := source.Event{Type: e.EventType}
	id := e.Resource.ItemID()
	if id == 0 {
		return ev
	}

	ev.Key = model.ProviderLinkKey{
		Provider:   model.ProviderAzure,
		ExternalID: strconv.Itoa(id),
	}
	ev.SelfURL = e.Resource.URL
	if ev.SelfURL == "" && e.ResourceContainers.Account != nil {
		ev.SelfURL = e.ResourceContainers.Account.BaseURL
	}

	switch e.EventType {
	case EventWorkItemUpdated:
		ev.Kind = source.EventUpdated
		ev.Changes = e.ChangeSet()
	case EventWorkItemDeleted:
		ev.Kind = source.EventDeleted
	}
	return ev
}

// ChangeSet reads the changed field names from resource.fields and the
// new values from the revision snapshot.
func (e ServiceHookEvent) ChangeSet() model.ChangeSet {
	r := e.Resource
	cs := model.ChangeSet{
		Provider:     model.ProviderAzure,
		RawEventType: e.EventType,
	}
	if id := r.ItemID(); id != 0 {
		cs.ExternalIssueKey = strconv.Itoa(id)
	}

	snapshot := map[string]any{}
	if r.Revision != nil && r.Revision.Fields != nil {
		snapshot = r.Revision.Fields
	}

	for name, raw := range r.Fields {
		value, ok := snapshot[name]
		if !ok {
			// Older payloads omit the revision; newValue is then the only
			// source. An absent key in both means the field was cleared.
			var change FieldChange
			if json.Unmarshal(raw, &change) == nil {
				value = change.NewValue
			}
		}
		switch name {
		case FieldState:
			s, _ := value.(string)
			cs.SetStatus(MapStatus(s))
		case FieldTitle:
			s, _ := value.(string)
			cs.SetTitle(s)
		case FieldPriority:
			cs.SetPriority(MapPriority(value))
		case FieldDescription:
			cs.SetDescription(ExtractPlainText(value))
		case FieldDueDate:
			s, _ := value.(string)
			cs.SetDueDate(model.NormalizeDate(s))
		}
	}
	return cs
}
