package assistant

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/core/orchestrator/user"
	"taskmaster/app/pkg/logger"
)

// Executor applies confirmed actions. Payloads carry only IDs and requested
// values; every referenced entity is re-fetched owner-scoped before any
// write, and each mutation runs inside a store transaction.
type Executor struct {
	tasks *task.Store
	users *user.Store
}

func NewExecutor(tasks *task.Store, users *user.Store) *Executor {
	return &Executor{tasks: tasks, users: users}
}

func (e *Executor) Execute(ctx context.Context, action ActionKind, data json.RawMessage, ownerID int64) ExecResult {
	switch action {
	case ActionCreateTask:
		return e.executeCreate(ctx, data, ownerID)
	case ActionEditTask:
		return e.executeEdit(ctx, data, ownerID)
	case ActionMoveTask:
		return e.executeMove(ctx, data, ownerID)
	case ActionAssignTask:
		return e.executeAssign(ctx, data, ownerID)
	case ActionDeleteTask:
		return e.executeDelete(ctx, data, ownerID)
	case ActionBulkOperation:
		return e.executeBulk(ctx, data, ownerID)
	default:
		return ExecResult{Message: fmt.Sprintf("Unsupported action: %s", action)}
	}
}

func (e *Executor) executeCreate(ctx context.Context, data json.RawMessage, ownerID int64) ExecResult {
	draft, err := decodeCreateParams(data)
	if err != nil {
		return ExecResult{Message: fmt.Sprintf("Invalid create payload: %v", err)}
	}

	created, err := e.tasks.Create(ctx, ownerID, draft)
	if err != nil {
		logger.Error("task creation failed: %v", err)
		return ExecResult{Message: "Failed to create task"}
	}
	return ExecResult{
		Success: true,
		Task:    &created,
		Message: fmt.Sprintf("Task '%s' created successfully!", created.Title),
	}
}

func (e *Executor) executeEdit(ctx context.Context, data json.RawMessage, ownerID int64) ExecResult {
	params, err := decodeEditParams(data)
	if err != nil {
		return ExecResult{Message: fmt.Sprintf("Invalid edit payload: %v", err)}
	}
	if params.Changes.Empty() {
		return ExecResult{Message: "No valid changes found"}
	}

	updated, err := e.tasks.Update(ctx, params.TaskID, ownerID, params.Changes)
	if err == sql.ErrNoRows {
		return ExecResult{Message: "Task not found"}
	}
	if err != nil {
		logger.Error("task edit failed: %v", err)
		return ExecResult{Message: "Failed to update task"}
	}
	return ExecResult{
		Success: true,
		Task:    &updated,
		Message: fmt.Sprintf("Task '%s' updated successfully! Changes: %s", updated.Title, formatChanges(params.Changes)),
	}
}

func (e *Executor) executeMove(ctx context.Context, data json.RawMessage, ownerID int64) ExecResult {
	params, err := decodeMoveParams(data)
	if err != nil {
		return ExecResult{Message: fmt.Sprintf("Invalid move payload: %v", err)}
	}

	current, err := e.tasks.Get(ctx, params.TaskID, ownerID)
	if err == sql.ErrNoRows {
		return ExecResult{Message: "Task not found"}
	}
	if err != nil {
		logger.Error("task move lookup failed: %v", err)
		return ExecResult{Message: "Failed to move task"}
	}

	moved, err := e.tasks.SetStatus(ctx, params.TaskID, ownerID, params.NewStatus)
	if err != nil {
		logger.Error("task move failed: %v", err)
		return ExecResult{Message: "Failed to move task"}
	}
	return ExecResult{
		Success: true,
		Task:    &moved,
		Message: fmt.Sprintf("Task '%s' moved from %s to %s!", moved.Title, current.Status, moved.Status),
	}
}

func (e *Executor) executeAssign(ctx context.Context, data json.RawMessage, ownerID int64) ExecResult {
	params, err := decodeAssignParams(data)
	if err != nil {
		return ExecResult{Message: fmt.Sprintf("Invalid assign payload: %v", err)}
	}

	assignee, err := e.users.Get(ctx, params.AssigneeID)
	if err == sql.ErrNoRows {
		return ExecResult{Message: "Assignee not found"}
	}
	if err != nil {
		logger.Error("assignee lookup failed: %v", err)
		return ExecResult{Message: "Failed to assign task"}
	}

	assigned, err := e.tasks.Assign(ctx, params.TaskID, ownerID, assignee.ID)
	if err == sql.ErrNoRows {
		return ExecResult{Message: "Task not found"}
	}
	if err != nil {
		logger.Error("task assignment failed: %v", err)
		return ExecResult{Message: "Failed to assign task"}
	}
	return ExecResult{
		Success: true,
		Task:    &assigned,
		Message: fmt.Sprintf("Task '%s' assigned to %s!", assigned.Title, assignee.Username),
	}
}

func (e *Executor) executeDelete(ctx context.Context, data json.RawMessage, ownerID int64) ExecResult {
	params, err := decodeDeleteParams(data)
	if err != nil {
		return ExecResult{Message: fmt.Sprintf("Invalid delete payload: %v", err)}
	}

	target, err := e.tasks.Get(ctx, params.TaskID, ownerID)
	if err == sql.ErrNoRows {
		return ExecResult{Message: "Task not found"}
	}
	if err != nil {
		logger.Error("task delete lookup failed: %v", err)
		return ExecResult{Message: "Failed to delete task"}
	}

	if err := e.tasks.Delete(ctx, params.TaskID, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return ExecResult{Message: "Task not found"}
		}
		logger.Error("task delete failed: %v", err)
		return ExecResult{Message: "Failed to delete task"}
	}
	return ExecResult{
		Success: true,
		Message: fmt.Sprintf("Task '%s' deleted successfully!", target.Title),
	}
}

func (e *Executor) executeBulk(ctx context.Context, data json.RawMessage, ownerID int64) ExecResult {
	params, err := decodeBulkParams(data)
	if err != nil {
		return ExecResult{Message: fmt.Sprintf("Invalid bulk payload: %v", err)}
	}

	operation := strings.ToLower(strings.TrimSpace(params.Operation))
	if operation != "delete" && operation != "complete" {
		return ExecResult{Message: fmt.Sprintf("Unsupported bulk operation: %s", params.Operation)}
	}

	// Re-fetch: only rows that still exist and belong to the owner count.
	remaining, err := e.tasks.ListByIDs(ctx, ownerID, params.TaskIDs)
	if err != nil {
		logger.Error("bulk lookup failed: %v", err)
		return ExecResult{Message: "Failed to execute bulk operation"}
	}
	if len(remaining) == 0 {
		return ExecResult{Message: "No tasks found"}
	}
	ids := make([]int64, 0, len(remaining))
	for _, t := range remaining {
		ids = append(ids, t.ID)
	}

	switch operation {
	case "delete":
		deleted, err := e.tasks.BulkDelete(ctx, ownerID, ids)
		if err != nil {
			logger.Error("bulk delete failed: %v", err)
			return ExecResult{Message: "Failed to execute bulk operation"}
		}
		return ExecResult{
			Success: true,
			Message: fmt.Sprintf("%d tasks deleted successfully!", deleted),
		}
	default:
		completed, err := e.tasks.BulkComplete(ctx, ownerID, ids)
		if err != nil {
			logger.Error("bulk complete failed: %v", err)
			return ExecResult{Message: "Failed to execute bulk operation"}
		}
		return ExecResult{
			Success: true,
			Tasks:   completed,
			Message: fmt.Sprintf("%d tasks marked as completed!", len(completed)),
		}
	}
}
