package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/pkg/logger"
)

// Generator is the single outbound dependency of the pipeline: one blocking
// text-generation call.
type Generator interface {
	Generate(ctx context.Context, prompt string, system string) (string, error)
}

// Classifier maps a free-text message to an Intent. It never fails: any
// model, transport, or parse problem degrades to the keyword fallback.
type Classifier struct {
	gen Generator
}

func NewClassifier(gen Generator) *Classifier {
	return &Classifier{gen: gen}
}

func (c *Classifier) Classify(ctx context.Context, message string, recent []task.Summary) Intent {
	prompt := fmt.Sprintf("Analyze this message: %q\n\nReturn JSON with action classification:", message)
	system := buildClassifySystemPrompt(recent)

	out, err := c.gen.Generate(ctx, prompt, system)
	if err != nil {
		logger.Error("intent classification call failed: %v", err)
		return fallbackClassify(message)
	}

	payload, err := extractJSONObject(out)
	if err != nil {
		return fallbackClassify(message)
	}
	if !gjson.Valid(payload) {
		return fallbackClassify(message)
	}

	root := gjson.Parse(payload)
	action, ok := ParseActionKind(root.Get("action").String())
	if !ok {
		return fallbackClassify(message)
	}

	confidence := root.Get("confidence").Float()
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	intent := Intent{Action: action, Confidence: confidence}
	if data := root.Get("data"); data.IsObject() {
		intent.Data = json.RawMessage(data.Raw)
	}
	return intent
}

func buildClassifySystemPrompt(recent []task.Summary) string {
	if len(recent) > 10 {
		recent = recent[:10]
	}
	taskList, _ := json.Marshal(recent)

	var b strings.Builder
	b.WriteString("You are an intelligent task management assistant. Analyze the user's message and classify their intent.\n\n")
	b.WriteString("User's recent tasks: ")
	b.Write(taskList)
	b.WriteString("\n\n")
	b.WriteString("Available actions:\n")
	b.WriteString("1. create_task - User wants to create a new task\n")
	b.WriteString("2. edit_task - User wants to modify an existing task (change priority, status, description, etc.)\n")
	b.WriteString("3. delete_task - User wants to delete a task\n")
	b.WriteString("4. move_task - User wants to move a task between boards/statuses (todo, in_progress, in_review, completed)\n")
	b.WriteString("5. assign_task - User wants to assign a task to someone\n")
	b.WriteString("6. query_tasks - User wants to find/filter/search tasks\n")
	b.WriteString("7. bulk_operation - User wants to perform actions on multiple tasks\n")
	b.WriteString("8. status_request - User wants to see their overall task status\n")
	b.WriteString("9. help - User needs help\n")
	b.WriteString("10. general - General conversation\n\n")
	b.WriteString("Return JSON with:\n")
	b.WriteString("- action: one of the above actions\n")
	b.WriteString("- confidence: 0.0-1.0 confidence score\n")
	b.WriteString("- data: any extracted parameters (task_id, new_priority, new_status, search_terms, etc.)\n\n")
	b.WriteString("Examples:\n")
	b.WriteString(`- "Change task #5 priority to high" -> {"action": "edit_task", "confidence": 0.9, "data": {"task_id": 5, "field": "priority", "value": "high"}}` + "\n")
	b.WriteString(`- "Move the login bug task to in review" -> {"action": "move_task", "confidence": 0.8, "data": {"task_search": "login bug", "new_status": "in_review"}}` + "\n")
	b.WriteString(`- "Delete all completed tasks" -> {"action": "bulk_operation", "confidence": 0.9, "data": {"operation": "delete", "filter": "completed"}}` + "\n")
	return b.String()
}

// fallbackKeywords is evaluated in declared order; the first bucket with a
// hit decides the action.
var fallbackKeywords = []struct {
	action     ActionKind
	confidence float64
	words      []string
}{
	{ActionCreateTask, 0.7, []string{"create", "add", "new task", "make"}},
	{ActionEditTask, 0.6, []string{"edit", "change", "update", "modify"}},
	{ActionDeleteTask, 0.6, []string{"delete", "remove", "cancel"}},
	{ActionMoveTask, 0.6, []string{"move", "transfer", "shift"}},
	{ActionAssignTask, 0.6, []string{"assign", "give to"}},
	{ActionQueryTasks, 0.6, []string{"find", "search", "show", "list"}},
	{ActionStatusRequest, 0.7, []string{"status", "progress", "summary"}},
	{ActionHelp, 0.8, []string{"help", "what can you do"}},
}

func fallbackClassify(message string) Intent {
	lower := strings.ToLower(message)
	for _, entry := range fallbackKeywords {
		for _, word := range entry.words {
			if strings.Contains(lower, word) {
				return Intent{Action: entry.action, Confidence: entry.confidence}
			}
		}
	}
	return Intent{Action: ActionGeneral, Confidence: 0.5}
}

// extractJSONObject takes the widest brace-delimited span of the reply.
// Models tend to wrap the object in prose on both sides.
func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("json object not found")
	}
	return text[start : end+1], nil
}
