package github

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

// ParseWebhook decodes a delivery. event is the X-GitHub-Event header;
// anything but "issues" is acknowledged as EventOther without decoding
// further.
func ParseWebhook(event string, body []byte) (source.Event, error) {
	if event != EventIssues {
		if !json.Valid(body) {
			return source.Event{}, fmt.Errorf("decoding github %s webhook: invalid JSON", event)
		}
		return source.Event{Type: event}, nil
	}
	var e IssuesEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return source.Event{}, fmt.Errorf("decoding github webhook: %w", err)
	}
	return e.Event(), nil
}

// Event converts the payload to a provider neutral event.
func (e IssuesEvent) Event() source.Event {
	ev := source.Event{Type: EventIssues + "." + e.Action}
	if e.Issue == nil || e.Issue.ID == 0 {
		return ev
	}

	ev.Key = model.ProviderLinkKey{
		Provider:   model.ProviderGitHub,
		ExternalID: strconv.FormatInt(e.Issue.ID, 10),
	}
	if e.Repository != nil && e.Repository.ID != 0 {
		ev.Key.TenantID = strconv.FormatInt(e.Repository.ID, 10)
	}
	ev.SelfURL = e.Issue.URL

	switch e.Action {
	case ActionDeleted:
		ev.Kind = source.EventDeleted
	case ActionEdited, ActionClosed, ActionReopened, ActionLabeled, ActionUnlabeled:
		ev.Kind = source.EventUpdated
		ev.Changes = e.ChangeSet()
	}
	return ev
}

// ChangeSet derives the touched fields from the action and, for edits,
// from the keys of changes. Values come from the issue snapshot.
func (e IssuesEvent) ChangeSet() model.ChangeSet {
	cs := model.ChangeSet{
		Provider:     model.ProviderGitHub,
		RawEventType: EventIssues + "." + e.Action,
	}
	if e.Issue == nil {
		return cs
	}
	issue := *e.Issue
	cs.ExternalIssueKey = "#" + strconv.Itoa(issue.Number)
	if e.Repository != nil && e.Repository.FullName != "" {
		cs.ExternalIssueKey = e.Repository.FullName + cs.ExternalIssueKey
	}
	labels := issue.LabelNames()

	switch e.Action {
	case ActionEdited:
		if e.Changes != nil && e.Changes.Title != nil {
			cs.SetTitle(issue.Title)
		}
		if e.Changes != nil && e.Changes.Body != nil {
			cs.SetDescription(issue.BodyText())
		}
	case ActionClosed, ActionReopened:
		cs.SetStatus(MapStatus(issue.State, labels))
	case ActionLabeled, ActionUnlabeled:
		if e.Label == nil {
			break
		}
		if _, ok := source.MatchStatusName(e.Label.Name); ok {
			cs.SetStatus(MapStatus(issue.State, labels))
		}
		if _, ok := source.MatchPriorityName(e.Label.Name); ok {
			cs.SetPriority(MapPriority(labels))
		}
	}
	return cs
}
