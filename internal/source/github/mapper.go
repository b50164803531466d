package github

import (
	"strings"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

// MapStatus maps an issue state and its labels. GitHub has no status
// category: closed issues are done, open ones take the first label that
// names an open workflow state, else todo.
func MapStatus(state string, labels []string) model.TaskStatus {
	if strings.EqualFold(state, StateClosed) {
		return model.StatusDone
	}
	for _, l := range labels {
		if s, ok := source.MatchStatusName(l); ok && s != model.StatusDone {
			return s
		}
	}
	return model.StatusTodo
}

// MapPriority takes the first label matching a priority rule.
func MapPriority(labels []string) model.TaskPriority {
	for _, l := range labels {
		if p, ok := source.MatchPriorityName(l); ok {
			return p
		}
	}
	return model.PriorityMedium
}

// StateFor is the inverse of the state half of MapStatus.
func StateFor(s model.TaskStatus) string {
	if s == model.StatusDone {
		return StateClosed
	}
	return StateOpen
}

var statusLabels = map[model.TaskStatus]string{
	model.StatusBacklog:    "backlog",
	model.StatusInProgress: "in progress",
	model.StatusReview:     "review",
}

// StatusLabel returns the label expressing s on an open issue, or "".
func StatusLabel(s model.TaskStatus) string {
	return statusLabels[s]
}

var priorityLabels = map[model.TaskPriority]string{
	model.PriorityUrgent: "priority: urgent",
	model.PriorityHigh:   "priority: high",
	model.PriorityLow:    "priority: low",
}

// PriorityLabel returns the label expressing p, or "" for medium.
func PriorityLabel(p model.TaskPriority) string {
	return priorityLabels[p]
}

// IsManagedLabel reports whether a label carries status or priority
// meaning and is therefore rewritten on push.
func IsManagedLabel(name string) bool {
	if _, ok := source.MatchStatusName(name); ok {
		return true
	}
	_, ok := source.MatchPriorityName(name)
	return ok
}

// LabelsFor replaces the managed labels in current with the ones
// expressing status and priority. Other labels are kept in order.
func LabelsFor(current []string, s model.TaskStatus, p model.TaskPriority) []string {
	out := make([]string, 0, len(current)+2)
	for _, l := range current {
		if !IsManagedLabel(l) {
			out = append(out, l)
		}
	}
	if l := StatusLabel(s); l != "" {
		out = append(out, l)
	}
	if l := PriorityLabel(p); l != "" {
		out = append(out, l)
	}
	return out
}
