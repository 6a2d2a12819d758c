package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	config "taskmaster/app/configs"
	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/core/orchestrator/user"
	"taskmaster/app/pkg/logger"
)

// ChatResponse is the envelope returned to callers of the conversational
// surface. Mutating actions come back with ConfirmationNeeded set and must be
// echoed to Confirm before anything is written.
type ChatResponse struct {
	Action             string          `json:"action"`
	Message            string          `json:"message"`
	Data               json.RawMessage `json:"data,omitempty"`
	ConfirmationNeeded bool            `json:"confirmation_needed"`
}

// Service runs the full message pipeline: classify, then either answer
// immediately or stage a proposal for confirmation.
type Service struct {
	tasks      *task.Store
	users      *user.Store
	classifier *Classifier
	proposer   *Proposer
	executor   *Executor
	cfg        config.AssistantConfig
}

func NewService(tasks *task.Store, users *user.Store, gen Generator, cfg config.AssistantConfig) *Service {
	parser := NewTaskParser(gen)
	locator := NewLocator(tasks, cfg.LocatorLimit)
	return &Service{
		tasks:      tasks,
		users:      users,
		classifier: NewClassifier(gen),
		proposer:   NewProposer(tasks, users, locator, parser),
		executor:   NewExecutor(tasks, users),
		cfg:        cfg,
	}
}

func (s *Service) Chat(ctx context.Context, message string, ownerID int64) ChatResponse {
	recentTasks, err := s.tasks.ListRecent(ctx, ownerID, s.cfg.RecentTaskLimit)
	if err != nil {
		logger.Error("recent task lookup failed: %v", err)
		return errorResponse()
	}
	recent := make([]task.Summary, 0, len(recentTasks))
	for _, t := range recentTasks {
		recent = append(recent, t.Summary())
	}

	intent := s.classifier.Classify(ctx, message, recent)

	switch intent.Action {
	case ActionCreateTask, ActionEditTask, ActionMoveTask, ActionDeleteTask, ActionAssignTask, ActionBulkOperation:
		pending, err := s.proposer.Propose(ctx, intent, message, ownerID)
		if err != nil {
			logger.Error("proposal failed for %s: %v", intent.Action, err)
			return errorResponse()
		}
		return ChatResponse{
			Action:             string(pending.Action),
			Message:            pending.Message,
			Data:               pending.Data,
			ConfirmationNeeded: pending.ConfirmationNeeded,
		}
	case ActionQueryTasks:
		return s.handleQuery(ctx, message, ownerID)
	case ActionStatusRequest:
		return s.handleStatus(ctx, ownerID)
	case ActionHelp:
		return s.handleHelp()
	default:
		return s.handleGeneral()
	}
}

// Confirm applies a previously proposed action. Non-mutating kinds are
// rejected outright so a forged confirm cannot smuggle a read through the
// executor.
func (s *Service) Confirm(ctx context.Context, action string, data json.RawMessage, ownerID int64) ExecResult {
	kind, ok := ParseActionKind(action)
	if !ok {
		return ExecResult{Message: fmt.Sprintf("Unknown action: %s", action)}
	}
	switch kind {
	case ActionCreateTask, ActionEditTask, ActionMoveTask, ActionDeleteTask, ActionAssignTask, ActionBulkOperation:
		return s.executor.Execute(ctx, kind, data, ownerID)
	default:
		return ExecResult{Message: fmt.Sprintf("Action %s does not require confirmation", kind)}
	}
}

func (s *Service) handleQuery(ctx context.Context, message string, ownerID int64) ChatResponse {
	filter := QueryFilter(message)
	filter.Limit = s.cfg.QueryLimit

	tasks, err := s.tasks.List(ctx, ownerID, filter)
	if err != nil {
		logger.Error("task query failed: %v", err)
		return errorResponse()
	}
	if len(tasks) == 0 {
		return ChatResponse{
			Action:  "query_result",
			Message: "No tasks found matching your criteria.",
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tasks:", len(tasks))
	summaries := make([]task.Summary, 0, len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n• #%d - %s (%s priority, %s)", t.ID, t.Title, t.Priority, t.Status)
		summaries = append(summaries, t.Summary())
	}
	data, _ := json.Marshal(map[string]interface{}{"tasks": summaries})

	return ChatResponse{
		Action:  "query_result",
		Message: b.String(),
		Data:    data,
	}
}

func (s *Service) handleStatus(ctx context.Context, ownerID int64) ChatResponse {
	counts, err := s.tasks.CountByStatus(ctx, ownerID)
	if err != nil {
		logger.Error("status summary failed: %v", err)
		return errorResponse()
	}
	if counts.Total == 0 {
		return ChatResponse{
			Action:  "status_summary",
			Message: "You don't have any tasks yet. Would you like me to create one for you?",
		}
	}

	rate := float64(counts.Completed) / float64(counts.Total) * 100
	var b strings.Builder
	fmt.Fprintf(&b, "Here's your task summary:\n")
	fmt.Fprintf(&b, "• Total tasks: %d\n", counts.Total)
	fmt.Fprintf(&b, "• To do: %d\n", counts.Todo)
	fmt.Fprintf(&b, "• In progress: %d\n", counts.InProgress)
	fmt.Fprintf(&b, "• In review: %d\n", counts.InReview)
	fmt.Fprintf(&b, "• Completed: %d\n", counts.Completed)
	fmt.Fprintf(&b, "• Completion rate: %.1f%%", rate)
	data, _ := json.Marshal(counts)

	return ChatResponse{
		Action:  "status_summary",
		Message: b.String(),
		Data:    data,
	}
}

func (s *Service) handleHelp() ChatResponse {
	message := strings.Join([]string{
		"I can help you manage your tasks! Here's what you can ask me:",
		"",
		"• Create: \"Create a task to review the quarterly report by Friday\"",
		"• Edit: \"Change task #5 priority to high\"",
		"• Move: \"Move the design task to in review\"",
		"• Assign: \"Assign the deployment task to Sarah\"",
		"• Delete: \"Delete the old migration task\"",
		"• Query: \"Show me my high priority tasks\"",
		"• Status: \"How am I doing this week?\"",
		"• Bulk: \"Delete all completed tasks\"",
		"",
		"Any action that changes a task will ask for your confirmation first.",
	}, "\n")
	return ChatResponse{Action: "help", Message: message}
}

func (s *Service) handleGeneral() ChatResponse {
	return ChatResponse{
		Action:  "general_response",
		Message: "I'm here to help you manage your tasks! You can ask me to create, edit, move, assign, or delete tasks, or just ask what's on your plate. Say \"help\" to see examples.",
	}
}

func errorResponse() ChatResponse {
	return ChatResponse{
		Action:  "error",
		Message: "Sorry, something went wrong while processing your request. Please try again.",
	}
}
