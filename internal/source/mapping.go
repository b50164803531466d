package source

import (
	"strings"

	"github.com/nhle/tasksync/internal/model"
)

// statusRule maps any status name containing one of tokens to status.
type statusRule struct {
	tokens []string
	status model.TaskStatus
}

// statusRules is checked in order; the first containing token wins.
var statusRules = []statusRule{
	{tokens: []string{"done", "closed", "resolved", "complete"}, status: model.StatusDone},
	{tokens: []string{"review"}, status: model.StatusReview},
	{tokens: []string{"progress"}, status: model.StatusInProgress},
	{tokens: []string{"backlog"}, status: model.StatusBacklog},
}

// MapStatusName maps a free-text status name by case-insensitive token
// containment. Names that match no rule map to todo.
func MapStatusName(name string) model.TaskStatus {
	if status, ok := MatchStatusName(name); ok {
		return status
	}
	return model.StatusTodo
}

// MatchStatusName reports the status a name maps to, if any rule matches.
// Label heuristics use it to ignore labels that say nothing about status.
func MatchStatusName(name string) (model.TaskStatus, bool) {
	lower := strings.ToLower(name)
	for _, rule := range statusRules {
		for _, tok := range rule.tokens {
			if strings.Contains(lower, tok) {
				return rule.status, true
			}
		}
	}
	return "", false
}

type priorityRule struct {
	tokens   []string
	priority model.TaskPriority
}

// priorityRules is ordered so that "highest" is seen before "high" and
// "lowest" is covered by "low".
var priorityRules = []priorityRule{
	{tokens: []string{"highest", "blocker", "urgent", "critical"}, priority: model.PriorityUrgent},
	{tokens: []string{"high"}, priority: model.PriorityHigh},
	{tokens: []string{"low"}, priority: model.PriorityLow},
	{tokens: []string{"medium", "normal"}, priority: model.PriorityMedium},
}

// MapPriorityName maps a provider priority label. Unknown or absent
// priorities map to medium.
func MapPriorityName(name string) model.TaskPriority {
	if p, ok := MatchPriorityName(name); ok {
		return p
	}
	return model.PriorityMedium
}

// MatchPriorityName reports the priority a label maps to, if any rule
// matches.
func MatchPriorityName(name string) (model.TaskPriority, bool) {
	lower := strings.ToLower(name)
	for _, rule := range priorityRules {
		for _, tok := range rule.tokens {
			if strings.Contains(lower, tok) {
				return rule.priority, true
			}
		}
	}
	return "", false
}
