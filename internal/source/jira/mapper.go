package jira

import (
	"encoding/json"
	"strings"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

// Status category keys.
const (
	CategoryNew           = "new"
	CategoryIndeterminate = "indeterminate"
	CategoryDone          = "done"
)

// MapStatus maps a Jira status to a canonical status. The category is
// authoritative when known; the name only refines within it (review
// inside indeterminate, backlog inside new). Without a category the
// shared name heuristic applies.
func MapStatus(name, categoryKey string) model.TaskStatus {
	lower := strings.ToLower(name)
	switch strings.ToLower(categoryKey) {
	case CategoryNew:
		if strings.Contains(lower, "backlog") {
			return model.StatusBacklog
		}
		return model.StatusTodo
	case CategoryIndeterminate:
		if strings.Contains(lower, "review") {
			return model.StatusReview
		}
		return model.StatusInProgress
	case CategoryDone:
		return model.StatusDone
	}
	return source.MapStatusName(name)
}

// MapPriority maps a Jira priority name. A nil priority maps to medium.
func MapPriority(p *Priority) model.TaskPriority {
	if p == nil {
		return model.PriorityMedium
	}
	return source.MapPriorityName(p.Name)
}

// ExtractPlainText converts a description field to plain text.
func ExtractPlainText(raw json.RawMessage) string {
	return source.RichTextToPlain(raw)
}

// priorityNames is the inverse priority table, matching Jira's default
// priority scheme.
var priorityNames = map[model.TaskPriority]string{
	model.PriorityUrgent: "Highest",
	model.PriorityHigh:   "High",
	model.PriorityMedium: "Medium",
	model.PriorityLow:    "Low",
}

// PriorityName returns the Jira priority name for p.
func PriorityName(p model.TaskPriority) string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return priorityNames[model.PriorityMedium]
}

// CategoryFor returns the status category a canonical status lives in.
func CategoryFor(s model.TaskStatus) string {
	switch s {
	case model.StatusInProgress, model.StatusReview:
		return CategoryIndeterminate
	case model.StatusDone:
		return CategoryDone
	default:
		return CategoryNew
	}
}

// PickTransition chooses the transition leading to status s. An exact
// canonical match wins over a transition that only shares the category.
func PickTransition(transitions []Transition, s model.TaskStatus) (Transition, bool) {
	category := CategoryFor(s)
	var fallback *Transition
	for i, t := range transitions {
		if MapStatus(t.To.Name, t.To.StatusCategory.Key) == s {
			return t, true
		}
		if fallback == nil && strings.EqualFold(t.To.StatusCategory.Key, category) {
			fallback = &transitions[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Transition{}, false
}
