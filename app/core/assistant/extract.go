package assistant

import (
	"regexp"
	"strings"

	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/core/orchestrator/user"
)

// Keyword tables are scanned in declared order; the first hit wins.
var statusKeywords = []struct {
	status task.Status
	words  []string
}{
	{task.StatusTodo, []string{"todo", "to do", "pending"}},
	{task.StatusInProgress, []string{"in progress", "progress", "working", "active"}},
	{task.StatusInReview, []string{"in review", "review", "reviewing"}},
	{task.StatusCompleted, []string{"completed", "done", "finished", "complete"}},
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "to": {}, "from": {}, "in": {}, "on": {},
	"at": {}, "for": {}, "with": {}, "by": {}, "and": {}, "or": {}, "but": {},
	"task": {}, "change": {}, "update": {}, "move": {}, "edit": {},
	"delete": {}, "priority": {}, "status": {},
}

var (
	descriptionPattern = regexp.MustCompile(`(?i)description\s+to\s+["']?([^"']+)["']?`)
	withPattern        = regexp.MustCompile(`(?i)with\s+["']?([^"']+)["']?`)
	containingPattern  = regexp.MustCompile(`(?i)containing\s+["']?([^"']+)["']?`)
)

// ExtractStatus returns the first status whose any keyword is a
// case-insensitive substring of text.
func ExtractStatus(text string) (task.Status, bool) {
	lower := strings.ToLower(text)
	for _, entry := range statusKeywords {
		for _, word := range entry.words {
			if strings.Contains(lower, word) {
				return entry.status, true
			}
		}
	}
	return "", false
}

// ExtractPriorityChange finds a priority mention, but only when the message
// talks about priority at all. Used on edit paths.
func ExtractPriorityChange(text string) (task.Priority, bool) {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "priority") {
		return "", false
	}
	return scanPriority(lower)
}

// ExtractPriorityFilter finds a priority mention without requiring the word
// "priority". Used on query/bulk filter paths.
func ExtractPriorityFilter(text string) (task.Priority, bool) {
	return scanPriority(strings.ToLower(text))
}

func scanPriority(lower string) (task.Priority, bool) {
	for _, p := range task.Priorities {
		if strings.Contains(lower, string(p)) {
			return p, true
		}
	}
	return "", false
}

// ExtractDescriptionChange captures the value after `description to`, with
// optional quoting.
func ExtractDescriptionChange(text string) (string, bool) {
	if !strings.Contains(strings.ToLower(text), "description") {
		return "", false
	}
	match := descriptionPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

// ExtractChanges collects the priority, status, and description edits a
// message asks for.
func ExtractChanges(text string) task.Changes {
	var changes task.Changes
	if priority, ok := ExtractPriorityChange(text); ok {
		changes.Priority = &priority
	}
	if status, ok := ExtractStatus(text); ok {
		changes.Status = &status
	}
	if description, ok := ExtractDescriptionChange(text); ok {
		changes.Description = &description
	}
	return changes
}

// ExtractAssignee scans the directory in order and returns the first user
// whose username or full name appears in the message.
func ExtractAssignee(text string, directory []user.User) (user.User, bool) {
	lower := strings.ToLower(text)
	for _, u := range directory {
		if strings.Contains(lower, strings.ToLower(u.Username)) {
			return u, true
		}
		if u.FullName != "" && strings.Contains(lower, strings.ToLower(u.FullName)) {
			return u, true
		}
	}
	return user.User{}, false
}

// ExtractSearchTerms captures the phrases after "with" and "containing",
// joined by a space.
func ExtractSearchTerms(text string) (string, bool) {
	var terms []string
	lower := strings.ToLower(text)
	if strings.Contains(lower, "with") {
		if match := withPattern.FindStringSubmatch(text); match != nil {
			terms = append(terms, strings.TrimSpace(match[1]))
		}
	}
	if strings.Contains(lower, "containing") {
		if match := containingPattern.FindStringSubmatch(text); match != nil {
			terms = append(terms, strings.TrimSpace(match[1]))
		}
	}
	if len(terms) == 0 {
		return "", false
	}
	return strings.Join(terms, " "), true
}

// ExtractKeywords pulls up to three search keywords out of a message after
// dropping stop words and short tokens.
func ExtractKeywords(text string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:")
		if word == "" || len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == 3 {
			break
		}
	}
	return keywords
}

// QueryFilter builds the task listing filter a query or bulk message implies.
func QueryFilter(text string) task.Filter {
	var filter task.Filter
	if priority, ok := ExtractPriorityFilter(text); ok {
		filter.Priority = priority
	}
	if status, ok := ExtractStatus(text); ok {
		filter.Status = status
	}
	if term, ok := ExtractSearchTerms(text); ok {
		filter.SearchTerm = term
	}
	return filter
}
