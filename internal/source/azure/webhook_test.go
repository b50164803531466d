package azure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

const workItemUpdated = `{
  "id": "e1",
  "eventType": "workitem.updated",
  "resource": {
    "id": 3,
    "workItemId": 12,
    "rev": 3,
    "url": "https://dev.azure.com/contoso/_apis/wit/workItems/12/updates/3",
    "fields": {
      "System.Rev": {"oldValue": 2, "newValue": 3},
      "System.State": {"oldValue": "New", "newValue": "Active"},
      "Microsoft.VSTS.Common.Priority": {"oldValue": 3, "newValue": 1},
      "System.Description": {"oldValue": "", "newValue": "<div>ignored</div>"}
    },
    "revision": {
      "id": 12,
      "rev": 3,
      "fields": {
        "System.Title": "Untouched title",
        "System.State": "Active",
        "Microsoft.VSTS.Common.Priority": 1,
        "System.Description": "<div>Snapshot &amp; text</div>"
      }
    }
  },
  "resourceContainers": {"account": {"id": "a", "baseUrl": "https://dev.azure.com/contoso/"}}
}`

func TestParseWebhook_Updated(t *testing.T) {
	ev, err := ParseWebhook([]byte(workItemUpdated))
	require.NoError(t, err)

	assert.Equal(t, source.EventUpdated, ev.Kind)
	assert.Equal(t, model.ProviderLinkKey{Provider: model.ProviderAzure, ExternalID: "12"}, ev.Key)
	assert.Equal(t, "https://dev.azure.com/contoso/_apis/wit/workItems/12/updates/3", ev.SelfURL)

	cs := ev.Changes
	assert.Equal(t, []model.Field{model.FieldStatus, model.FieldPriority, model.FieldDescription}, cs.Fields())
	assert.Equal(t, model.StatusInProgress, *cs.Status)
	assert.Equal(t, model.PriorityUrgent, *cs.Priority)
	assert.Equal(t, "Snapshot & text", *cs.Description)
	assert.Equal(t, "12", cs.ExternalIssueKey)
}

func TestChangeSet_FallsBackToNewValue(t *testing.T) {
	ev, err := ParseWebhook([]byte(`{
	  "eventType": "workitem.updated",
	  "resource": {"workItemId": 4, "fields": {
	    "System.Title": {"oldValue": "a", "newValue": "b"},
	    "Microsoft.VSTS.Scheduling.DueDate": {"oldValue": "2024-01-01T00:00:00Z"}
	  }}
	}`))
	require.NoError(t, err)

	cs := ev.Changes
	assert.Equal(t, "b", *cs.Title)
	require.NotNil(t, cs.DueDate)
	assert.Equal(t, "", *cs.DueDate)
}

func TestParseWebhook_DeletedAndOther(t *testing.T) {
	ev, err := ParseWebhook([]byte(`{"eventType":"workitem.deleted","resource":{"id":12,"url":"https://contoso.visualstudio.com/_apis/wit/workItems/12"}}`))
	require.NoError(t, err)
	assert.Equal(t, source.EventDeleted, ev.Kind)
	assert.Equal(t, "12", ev.Key.ExternalID)

	ev, err = ParseWebhook([]byte(`{"eventType":"workitem.commented","resource":{"id":12}}`))
	require.NoError(t, err)
	assert.Equal(t, source.EventOther, ev.Kind)

	ev, err = ParseWebhook([]byte(`{"eventType":"git.push","resource":{}}`))
	require.NoError(t, err)
	assert.Equal(t, source.EventOther, ev.Kind)
	assert.Empty(t, ev.Key.ExternalID)
}
