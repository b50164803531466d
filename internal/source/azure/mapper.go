package azure

import (
	"strconv"
	"strings"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
)

// Work item states written on push (Agile process).
const (
	StateNew      = "New"
	StateActive   = "Active"
	StateResolved = "Resolved"
	StateClosed   = "Closed"
)

// knownStates covers the Agile, Scrum and Basic process templates.
// Payloads carry no state category, so unknown custom states fall back
// to the shared name heuristic.
var knownStates = map[string]model.TaskStatus{
	"new":         model.StatusTodo,
	"to do":       model.StatusTodo,
	"proposed":    model.StatusTodo,
	"approved":    model.StatusTodo,
	"active":      model.StatusInProgress,
	"doing":       model.StatusInProgress,
	"committed":   model.StatusInProgress,
	"in progress": model.StatusInProgress,
	"resolved":    model.StatusReview,
	"closed":      model.StatusDone,
	"done":        model.StatusDone,
	"removed":     model.StatusDone,
}

// MapStatus maps a System.State value.
func MapStatus(state string) model.TaskStatus {
	if s, ok := knownStates[strings.ToLower(strings.TrimSpace(state))]; ok {
		return s
	}
	return source.MapStatusName(state)
}

// MapPriority maps Microsoft.VSTS.Common.Priority (1 highest to 4
// lowest). The value may arrive as a JSON number or a string.
func MapPriority(v any) model.TaskPriority {
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case int:
		n = t
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return source.MapPriorityName(t)
		}
		n = parsed
	}
	switch n {
	case 1:
		return model.PriorityUrgent
	case 2:
		return model.PriorityHigh
	case 4:
		return model.PriorityLow
	default:
		return model.PriorityMedium
	}
}

// ExtractPlainText converts an HTML description to plain text.
func ExtractPlainText(v any) string {
	s, _ := v.(string)
	return source.StripHTML(s)
}

// StateFor returns the state to write for s.
func StateFor(s model.TaskStatus) string {
	switch s {
	case model.StatusInProgress:
		return StateActive
	case model.StatusReview:
		return StateResolved
	case model.StatusDone:
		return StateClosed
	default:
		return StateNew
	}
}

// PriorityFor returns the priority number to write for p.
func PriorityFor(p model.TaskPriority) int {
	switch p {
	case model.PriorityUrgent:
		return 1
	case model.PriorityHigh:
		return 2
	case model.PriorityLow:
		return 4
	default:
		return 3
	}
}
