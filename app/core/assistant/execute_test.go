package assistant

import (
	"context"
	"encoding/json"
	"testing"

	"taskmaster/app/core/orchestrator/task"
)

func TestExecuteCreate(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)

	result := executor.Execute(context.Background(), ActionCreateTask,
		json.RawMessage(`{"title": "Fix login bug", "priority": "high"}`), 1)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Task == nil || result.Task.Priority != task.PriorityHigh {
		t.Fatalf("unexpected task: %+v", result.Task)
	}
	if result.Message != "Task 'Fix login bug' created successfully!" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestExecuteEditRejectsEmptyChanges(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)

	result := executor.Execute(context.Background(), ActionEditTask,
		json.RawMessage(`{"task_id": 1, "changes": {}}`), 1)
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Message != "No valid changes found" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestExecuteEditInvalidEnumFails(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)

	result := executor.Execute(context.Background(), ActionEditTask,
		json.RawMessage(`{"task_id": 1, "changes": {"priority": "critical"}}`), 1)
	if result.Success {
		t.Fatal("expected failure for invalid priority")
	}
}

func TestExecuteMoveMaintainsCompletedAt(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)
	ctx := context.Background()

	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Ship release"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	payload, _ := json.Marshal(MoveParams{TaskID: created.ID, NewStatus: task.StatusCompleted})
	result := executor.Execute(ctx, ActionMoveTask, payload, 1)
	if !result.Success {
		t.Fatalf("move failed: %q", result.Message)
	}
	if result.Task.CompletedAt == 0 {
		t.Fatal("completed task must carry completed_at")
	}
	if result.Message != "Task 'Ship release' moved from todo to completed!" {
		t.Fatalf("unexpected message: %q", result.Message)
	}

	payload, _ = json.Marshal(MoveParams{TaskID: created.ID, NewStatus: task.StatusTodo})
	result = executor.Execute(ctx, ActionMoveTask, payload, 1)
	if !result.Success {
		t.Fatalf("move back failed: %q", result.Message)
	}
	if result.Task.CompletedAt != 0 {
		t.Fatal("reopened task must clear completed_at")
	}
}

func TestExecuteDeleteIsOwnerScoped(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)
	ctx := context.Background()

	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Private task"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	payload, _ := json.Marshal(DeleteParams{TaskID: created.ID})
	result := executor.Execute(ctx, ActionDeleteTask, payload, 2)
	if result.Success || result.Message != "Task not found" {
		t.Fatalf("expected owner-scoped miss, got %+v", result)
	}

	// Still present for the real owner.
	if _, err := tasks.Get(ctx, created.ID, 1); err != nil {
		t.Fatalf("task should have survived: %v", err)
	}

	result = executor.Execute(ctx, ActionDeleteTask, payload, 1)
	if !result.Success {
		t.Fatalf("delete failed: %q", result.Message)
	}
	if result.Message != "Task 'Private task' deleted successfully!" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestExecuteAssign(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)
	ctx := context.Background()

	sarah, err := users.Create(ctx, "sarah", "Sarah Connor", "sarah@example.com")
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Deploy staging"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	payload, _ := json.Marshal(AssignParams{TaskID: created.ID, AssigneeID: sarah.ID})
	result := executor.Execute(ctx, ActionAssignTask, payload, 1)
	if !result.Success {
		t.Fatalf("assign failed: %q", result.Message)
	}
	if result.Task.AssignedToID != sarah.ID {
		t.Fatalf("unexpected assignee: %d", result.Task.AssignedToID)
	}
	if result.Message != "Task 'Deploy staging' assigned to sarah!" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestExecuteAssignUnknownUser(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)
	ctx := context.Background()

	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Deploy staging"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	payload, _ := json.Marshal(AssignParams{TaskID: created.ID, AssigneeID: 42})
	result := executor.Execute(ctx, ActionAssignTask, payload, 1)
	if result.Success || result.Message != "Assignee not found" {
		t.Fatalf("expected assignee miss, got %+v", result)
	}
}

func TestExecuteBulkSkipsStaleIDs(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)
	ctx := context.Background()

	kept, err := tasks.Create(ctx, 1, task.Draft{Title: "Still here"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	gone, err := tasks.Create(ctx, 1, task.Draft{Title: "Already gone"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := tasks.Delete(ctx, gone.ID, 1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	payload, _ := json.Marshal(BulkParams{Operation: "complete", TaskIDs: []int64{kept.ID, gone.ID}})
	result := executor.Execute(ctx, ActionBulkOperation, payload, 1)
	if !result.Success {
		t.Fatalf("bulk complete failed: %q", result.Message)
	}
	if result.Message != "1 tasks marked as completed!" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].CompletedAt == 0 {
		t.Fatalf("unexpected completed set: %+v", result.Tasks)
	}
}

func TestExecuteBulkAllStale(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)

	payload, _ := json.Marshal(BulkParams{Operation: "delete", TaskIDs: []int64{111, 222}})
	result := executor.Execute(context.Background(), ActionBulkOperation, payload, 1)
	if result.Success || result.Message != "No tasks found" {
		t.Fatalf("expected stale-set miss, got %+v", result)
	}
}

func TestExecuteBulkUnsupportedOperation(t *testing.T) {
	tasks, users := newTestStores(t)
	executor := NewExecutor(tasks, users)

	payload, _ := json.Marshal(BulkParams{Operation: "archive", TaskIDs: []int64{1}})
	result := executor.Execute(context.Background(), ActionBulkOperation, payload, 1)
	if result.Success || result.Message != "Unsupported bulk operation: archive" {
		t.Fatalf("expected unsupported-op refusal, got %+v", result)
	}
}
