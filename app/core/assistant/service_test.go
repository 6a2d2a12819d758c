package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	config "taskmaster/app/configs"
	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/core/orchestrator/user"
)

func newTestService(t *testing.T, gen Generator) (*Service, *task.Store, *user.Store) {
	t.Helper()
	tasks, users := newTestStores(t)
	cfg := config.AssistantConfig{RecentTaskLimit: 10, QueryLimit: 10, LocatorLimit: 5}
	return NewService(tasks, users, gen, cfg), tasks, users
}

// offlineGen forces every model call onto the heuristic fallbacks.
var offlineGen = stubGenerator{err: errors.New("connection refused")}

func TestChatEditPriorityRoundTrip(t *testing.T) {
	service, tasks, _ := newTestService(t, offlineGen)
	ctx := context.Background()

	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Fix login bug"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp := service.Chat(ctx, fmt.Sprintf("Change task #%d priority to high", created.ID), 1)
	if resp.Action != string(ActionEditTask) {
		t.Fatalf("unexpected action: %s", resp.Action)
	}
	if !resp.ConfirmationNeeded {
		t.Fatal("edit proposal must require confirmation")
	}
	if !strings.Contains(resp.Message, "priority -> high") {
		t.Fatalf("unexpected proposal message: %q", resp.Message)
	}

	// Nothing changed yet.
	unchanged, err := tasks.Get(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if unchanged.Priority != task.PriorityMedium {
		t.Fatalf("proposal must not mutate, got priority %s", unchanged.Priority)
	}

	result := service.Confirm(ctx, resp.Action, resp.Data, 1)
	if !result.Success {
		t.Fatalf("confirm failed: %q", result.Message)
	}
	updated, err := tasks.Get(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Priority != task.PriorityHigh {
		t.Fatalf("unexpected priority after confirm: %s", updated.Priority)
	}
}

func TestChatMoveToReviewRoundTrip(t *testing.T) {
	service, tasks, _ := newTestService(t, offlineGen)
	ctx := context.Background()

	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Write release notes"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp := service.Chat(ctx, fmt.Sprintf("Move task #%d to in review", created.ID), 1)
	if resp.Action != string(ActionMoveTask) || !resp.ConfirmationNeeded {
		t.Fatalf("unexpected proposal: %+v", resp)
	}

	result := service.Confirm(ctx, resp.Action, resp.Data, 1)
	if !result.Success {
		t.Fatalf("confirm failed: %q", result.Message)
	}
	moved, err := tasks.Get(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if moved.Status != task.StatusInReview {
		t.Fatalf("unexpected status: %s", moved.Status)
	}
	if moved.CompletedAt != 0 {
		t.Fatalf("in_review task must not carry completed_at")
	}
}

// Proposing is repeatable: the same message yields the same staged payload
// and leaves the store untouched each time.
func TestChatProposalIsIdempotent(t *testing.T) {
	service, tasks, _ := newTestService(t, offlineGen)
	ctx := context.Background()

	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Old migration"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	message := fmt.Sprintf("Delete task #%d", created.ID)
	first := service.Chat(ctx, message, 1)
	second := service.Chat(ctx, message, 1)
	if string(first.Data) != string(second.Data) {
		t.Fatalf("proposal payload drifted: %s vs %s", first.Data, second.Data)
	}
	if _, err := tasks.Get(ctx, created.ID, 1); err != nil {
		t.Fatalf("task must survive repeated proposals: %v", err)
	}
}

func TestChatBulkDeleteCompleted(t *testing.T) {
	gen := stubGenerator{reply: `{"action": "bulk_operation", "confidence": 0.9, "data": {"operation": "delete", "filter": "completed"}}`}
	service, tasks, _ := newTestService(t, gen)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		created, err := tasks.Create(ctx, 1, task.Draft{Title: fmt.Sprintf("Done %d", i)})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if _, err := tasks.SetStatus(ctx, created.ID, 1, task.StatusCompleted); err != nil {
			t.Fatalf("set status failed: %v", err)
		}
	}
	survivor, err := tasks.Create(ctx, 1, task.Draft{Title: "Keep me"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp := service.Chat(ctx, "Delete all completed tasks", 1)
	if resp.Action != string(ActionBulkOperation) || !resp.ConfirmationNeeded {
		t.Fatalf("unexpected proposal: %+v", resp)
	}
	if resp.Message != "This will delete 3 tasks. Are you sure you want to proceed?" {
		t.Fatalf("unexpected proposal message: %q", resp.Message)
	}

	result := service.Confirm(ctx, resp.Action, resp.Data, 1)
	if !result.Success || result.Message != "3 tasks deleted successfully!" {
		t.Fatalf("unexpected confirm result: %+v", result)
	}
	if _, err := tasks.Get(ctx, survivor.ID, 1); err != nil {
		t.Fatalf("todo task must survive a completed-only bulk delete: %v", err)
	}
	remaining, err := tasks.List(ctx, 1, task.Filter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 surviving task, got %d", len(remaining))
	}
}

func TestChatAssignRoundTrip(t *testing.T) {
	service, tasks, users := newTestService(t, offlineGen)
	ctx := context.Background()

	sarah, err := users.Create(ctx, "sarah", "Sarah Connor", "sarah@example.com")
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Deploy staging"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp := service.Chat(ctx, fmt.Sprintf("Assign task #%d to Sarah", created.ID), 1)
	if resp.Action != string(ActionAssignTask) || !resp.ConfirmationNeeded {
		t.Fatalf("unexpected proposal: %+v", resp)
	}

	result := service.Confirm(ctx, resp.Action, resp.Data, 1)
	if !result.Success {
		t.Fatalf("confirm failed: %q", result.Message)
	}
	assigned, err := tasks.Get(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if assigned.AssignedToID != sarah.ID {
		t.Fatalf("unexpected assignee: %d", assigned.AssignedToID)
	}
}

func TestChatCreateFallsBackToHeuristics(t *testing.T) {
	service, tasks, _ := newTestService(t, offlineGen)
	ctx := context.Background()

	resp := service.Chat(ctx, "Create a task to fix the urgent login outage", 1)
	if resp.Action != string(ActionCreateTask) || !resp.ConfirmationNeeded {
		t.Fatalf("unexpected proposal: %+v", resp)
	}
	if !strings.Contains(resp.Message, "urgent priority") {
		t.Fatalf("unexpected proposal message: %q", resp.Message)
	}

	result := service.Confirm(ctx, resp.Action, resp.Data, 1)
	if !result.Success {
		t.Fatalf("confirm failed: %q", result.Message)
	}
	if result.Task == nil || result.Task.Priority != task.PriorityUrgent {
		t.Fatalf("unexpected created task: %+v", result.Task)
	}
	if _, err := tasks.Get(ctx, result.Task.ID, 1); err != nil {
		t.Fatalf("created task missing: %v", err)
	}
}

func TestChatEditNotFoundNeedsNoConfirmation(t *testing.T) {
	service, _, _ := newTestService(t, offlineGen)

	resp := service.Chat(context.Background(), "Change task 999 priority to high", 1)
	if resp.Action != string(ActionEditTask) {
		t.Fatalf("unexpected action: %s", resp.Action)
	}
	if resp.ConfirmationNeeded {
		t.Fatal("unresolved reference must not stage a confirmation")
	}
	if resp.Message != "I couldn't find the task you want to edit. Please be more specific or provide the task ID." {
		t.Fatalf("unexpected message: %q", resp.Message)
	}
}

func TestChatQuery(t *testing.T) {
	service, tasks, _ := newTestService(t, offlineGen)
	ctx := context.Background()

	resp := service.Chat(ctx, "show me my tasks", 1)
	if resp.Action != "query_result" {
		t.Fatalf("unexpected action: %s", resp.Action)
	}
	if resp.Message != "No tasks found matching your criteria." {
		t.Fatalf("unexpected message: %q", resp.Message)
	}

	if _, err := tasks.Create(ctx, 1, task.Draft{Title: "Fix login bug", Priority: task.PriorityHigh}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := tasks.Create(ctx, 1, task.Draft{Title: "Tidy backlog"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp = service.Chat(ctx, "show me my high tasks", 1)
	if !strings.Contains(resp.Message, "Found 1 tasks:") || !strings.Contains(resp.Message, "Fix login bug") {
		t.Fatalf("unexpected message: %q", resp.Message)
	}
	if resp.Data == nil {
		t.Fatal("query result should carry task data")
	}
}

func TestChatStatusSummary(t *testing.T) {
	service, tasks, _ := newTestService(t, offlineGen)
	ctx := context.Background()

	resp := service.Chat(ctx, "how is my progress", 1)
	if resp.Action != "status_summary" {
		t.Fatalf("unexpected action: %s", resp.Action)
	}
	if resp.Message != "You don't have any tasks yet. Would you like me to create one for you?" {
		t.Fatalf("unexpected message: %q", resp.Message)
	}

	for i := 0; i < 3; i++ {
		if _, err := tasks.Create(ctx, 1, task.Draft{Title: fmt.Sprintf("Task %d", i)}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	done, err := tasks.Create(ctx, 1, task.Draft{Title: "Finished one"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := tasks.SetStatus(ctx, done.ID, 1, task.StatusCompleted); err != nil {
		t.Fatalf("set status failed: %v", err)
	}

	resp = service.Chat(ctx, "how is my progress", 1)
	if !strings.Contains(resp.Message, "Total tasks: 4") {
		t.Fatalf("unexpected message: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "Completion rate: 25.0%") {
		t.Fatalf("unexpected message: %q", resp.Message)
	}
}

func TestChatHelpAndGeneral(t *testing.T) {
	service, _, _ := newTestService(t, offlineGen)
	ctx := context.Background()

	resp := service.Chat(ctx, "help", 1)
	if resp.Action != "help" || resp.ConfirmationNeeded {
		t.Fatalf("unexpected help response: %+v", resp)
	}

	resp = service.Chat(ctx, "good morning", 1)
	if resp.Action != "general_response" {
		t.Fatalf("unexpected general response: %+v", resp)
	}
}

func TestConfirmRejectsNonMutatingActions(t *testing.T) {
	service, _, _ := newTestService(t, offlineGen)
	ctx := context.Background()

	result := service.Confirm(ctx, "query_tasks", nil, 1)
	if result.Success {
		t.Fatal("query must not execute")
	}
	if result.Message != "Action query_tasks does not require confirmation" {
		t.Fatalf("unexpected message: %q", result.Message)
	}

	result = service.Confirm(ctx, "launch_missiles", nil, 1)
	if result.Success || result.Message != "Unknown action: launch_missiles" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestConfirmStaleTarget(t *testing.T) {
	service, tasks, _ := newTestService(t, offlineGen)
	ctx := context.Background()

	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Ephemeral"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	resp := service.Chat(ctx, fmt.Sprintf("Delete task #%d", created.ID), 1)
	if !resp.ConfirmationNeeded {
		t.Fatalf("expected staged delete, got %+v", resp)
	}

	// The task disappears between proposal and confirmation.
	if err := tasks.Delete(ctx, created.ID, 1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	result := service.Confirm(ctx, resp.Action, resp.Data, 1)
	if result.Success || result.Message != "Task not found" {
		t.Fatalf("expected stale-target miss, got %+v", result)
	}
	if _, err := tasks.Get(ctx, created.ID, 1); err != sql.ErrNoRows {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}
