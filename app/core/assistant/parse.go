package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/core/orchestrator/user"
	"taskmaster/app/pkg/logger"
)

// TaskParser turns a free-text request into a task draft. Like the
// classifier it is total: any model failure falls back to heuristics.
type TaskParser struct {
	gen Generator
	now func() time.Time
}

func NewTaskParser(gen Generator) *TaskParser {
	return &TaskParser{gen: gen, now: time.Now}
}

func (p *TaskParser) Parse(ctx context.Context, input string, currentUserID int64, directory []user.User) task.Draft {
	system := buildParseSystemPrompt(directory, currentUserID, p.now())
	prompt := fmt.Sprintf(`Convert this request to JSON: %q

Return only the JSON object with these fields:
- title (required)
- description (optional)
- priority (low/medium/high/urgent)
- status (todo/in_progress/in_review/completed)
- assigned_to_id (number, optional)
- due_date (ISO format, optional)
- estimated_minutes (number, optional)

JSON:`, input)

	out, err := p.gen.Generate(ctx, prompt, system)
	if err != nil {
		logger.Error("task parse call failed: %v", err)
		return p.fallbackParse(input)
	}

	payload, err := extractJSONObject(out)
	if err != nil || !gjson.Valid(payload) {
		return p.fallbackParse(input)
	}

	root := gjson.Parse(payload)
	draft := task.Draft{
		Title:            strings.TrimSpace(root.Get("title").String()),
		Description:      strings.TrimSpace(root.Get("description").String()),
		AssignedToID:     root.Get("assigned_to_id").Int(),
		EstimatedMinutes: root.Get("estimated_minutes").Int(),
	}
	if due := root.Get("due_date").String(); due != "" {
		draft.DueDate = parseDueDate(due)
	}
	draft.Status, _ = task.ParseStatus(root.Get("status").String())
	draft.Priority, _ = task.ParsePriority(root.Get("priority").String())

	return validateDraft(draft)
}

func buildParseSystemPrompt(directory []user.User, currentUserID int64, now time.Time) string {
	type userEntry struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		FullName string `json:"full_name,omitempty"`
	}
	entries := make([]userEntry, 0, len(directory))
	for _, u := range directory {
		entries = append(entries, userEntry{ID: u.ID, Name: u.Username, FullName: u.FullName})
	}
	userList, _ := json.Marshal(entries)

	var b strings.Builder
	b.WriteString("You are a helpful task management assistant. Convert natural language into structured task data.\n\n")
	b.WriteString("Available users: ")
	b.Write(userList)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Current user ID: %d\n", currentUserID)
	fmt.Fprintf(&b, "Current date: %s\n\n", now.Format("2006-01-02"))
	b.WriteString("Guidelines:\n")
	b.WriteString("- Extract title, description, priority, status, assignee, and due date\n")
	b.WriteString(`- Priority: "low", "medium", "high", or "urgent"` + "\n")
	b.WriteString(`- Status: "todo", "in_progress", "in_review", or "completed"` + "\n")
	b.WriteString("- If \"tomorrow\" mentioned, set due_date to tomorrow\n")
	b.WriteString("- If \"next week\" mentioned, set due_date to 7 days from now\n")
	b.WriteString(`- Default priority is "medium", default status is "todo"` + "\n")
	b.WriteString("- Return ONLY valid JSON format\n\n")
	b.WriteString("Example output:\n")
	b.WriteString(`{"title": "Fix login bug", "description": "Urgent bug fix needed", "priority": "high", "status": "todo", "assigned_to_id": 2, "due_date": "2024-01-15T23:59:59Z"}`)
	return b.String()
}

// validateDraft clamps missing or unrecognized fields to safe defaults.
func validateDraft(draft task.Draft) task.Draft {
	if draft.Title == "" {
		draft.Title = "New Task"
	}
	if draft.Status == "" {
		draft.Status = task.StatusTodo
	}
	if draft.Priority == "" {
		draft.Priority = task.PriorityMedium
	}
	if draft.AssignedToID < 0 {
		draft.AssignedToID = 0
	}
	return draft
}

func parseDueDate(value string) int64 {
	if !strings.Contains(value, "T") {
		value += "T23:59:59Z"
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0
	}
	return parsed.Unix()
}

// fallbackParse derives a draft without the model: first sentence as title,
// urgency words for priority, tomorrow/next week for the due date.
func (p *TaskParser) fallbackParse(input string) task.Draft {
	title := strings.TrimSpace(strings.SplitN(input, ".", 2)[0])
	if len(title) > 100 {
		title = title[:97] + "..."
	}

	lower := strings.ToLower(input)
	priority := task.PriorityMedium
	switch {
	case containsAny(lower, "urgent", "asap", "critical"):
		priority = task.PriorityUrgent
	case containsAny(lower, "high", "important"):
		priority = task.PriorityHigh
	case containsAny(lower, "low", "minor"):
		priority = task.PriorityLow
	}

	var dueDate int64
	if strings.Contains(lower, "tomorrow") {
		dueDate = endOfDay(p.now().AddDate(0, 0, 1))
	} else if strings.Contains(lower, "next week") {
		dueDate = endOfDay(p.now().AddDate(0, 0, 7))
	}

	return validateDraft(task.Draft{
		Title:       title,
		Description: input,
		Priority:    priority,
		Status:      task.StatusTodo,
		DueDate:     dueDate,
	})
}

func endOfDay(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC).Unix()
}

func containsAny(text string, words ...string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
