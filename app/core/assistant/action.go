package assistant

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"taskmaster/app/core/orchestrator/task"
)

// ActionKind is the closed vocabulary the classifier maps messages onto.
type ActionKind string

const (
	ActionCreateTask    ActionKind = "create_task"
	ActionEditTask      ActionKind = "edit_task"
	ActionMoveTask      ActionKind = "move_task"
	ActionDeleteTask    ActionKind = "delete_task"
	ActionAssignTask    ActionKind = "assign_task"
	ActionQueryTasks    ActionKind = "query_tasks"
	ActionBulkOperation ActionKind = "bulk_operation"
	ActionStatusRequest ActionKind = "status_request"
	ActionHelp          ActionKind = "help"
	ActionGeneral       ActionKind = "general"
)

var actionKinds = []ActionKind{
	ActionCreateTask,
	ActionEditTask,
	ActionMoveTask,
	ActionDeleteTask,
	ActionAssignTask,
	ActionQueryTasks,
	ActionBulkOperation,
	ActionStatusRequest,
	ActionHelp,
	ActionGeneral,
}

func ParseActionKind(value string) (ActionKind, bool) {
	for _, kind := range actionKinds {
		if string(kind) == value {
			return kind, true
		}
	}
	return "", false
}

// Intent is the ephemeral classification of one inbound message. Data is the
// raw parameter object extracted from the model reply, if any.
type Intent struct {
	Action     ActionKind      `json:"action"`
	Confidence float64         `json:"confidence"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// PendingAction is a proposed mutation awaiting caller confirmation. The
// proposer never mutates; the Data payload carries only IDs and requested
// values, which the executor re-validates.
type PendingAction struct {
	Action             ActionKind      `json:"action"`
	Message            string          `json:"message"`
	Data               json.RawMessage `json:"data,omitempty"`
	ConfirmationNeeded bool            `json:"confirmation_needed"`
}

// ExecResult is the confirm-phase outcome.
type ExecResult struct {
	Success bool        `json:"success"`
	Task    *task.Task  `json:"task,omitempty"`
	Tasks   []task.Task `json:"tasks,omitempty"`
	Message string      `json:"message"`
}

// EditParams identifies a task and the partial update to apply.
type EditParams struct {
	TaskID    int64        `json:"task_id"`
	TaskTitle string       `json:"task_title,omitempty"`
	Changes   task.Changes `json:"changes"`
}

type MoveParams struct {
	TaskID        int64       `json:"task_id"`
	TaskTitle     string      `json:"task_title,omitempty"`
	CurrentStatus task.Status `json:"current_status,omitempty"`
	NewStatus     task.Status `json:"new_status"`
}

type AssignParams struct {
	TaskID       int64  `json:"task_id"`
	TaskTitle    string `json:"task_title,omitempty"`
	AssigneeID   int64  `json:"assignee_id"`
	AssigneeName string `json:"assignee_name,omitempty"`
}

type DeleteParams struct {
	TaskID    int64  `json:"task_id"`
	TaskTitle string `json:"task_title,omitempty"`
}

// BulkParams snapshots the task set a bulk operation will act on. The ID
// list, not the filter, is what the executor trusts after confirmation.
type BulkParams struct {
	Operation string  `json:"operation"`
	TaskCount int     `json:"task_count"`
	TaskIDs   []int64 `json:"task_ids"`
}

// Decode helpers for caller-echoed payloads. gjson keeps them tolerant of
// string-typed numbers from model output or sloppy clients; validation stays
// strict.

func decodeCreateParams(data json.RawMessage) (task.Draft, error) {
	root := gjson.ParseBytes(data)
	draft := task.Draft{
		Title:            root.Get("title").String(),
		Description:      root.Get("description").String(),
		AssignedToID:     root.Get("assigned_to_id").Int(),
		ReviewerID:       root.Get("reviewer_id").Int(),
		DueDate:          root.Get("due_date").Int(),
		EstimatedMinutes: root.Get("estimated_minutes").Int(),
	}
	if v := root.Get("status"); v.Exists() && v.String() != "" {
		status, ok := task.ParseStatus(v.String())
		if !ok {
			return task.Draft{}, fmt.Errorf("invalid status: %s", v.String())
		}
		draft.Status = status
	}
	if v := root.Get("priority"); v.Exists() && v.String() != "" {
		priority, ok := task.ParsePriority(v.String())
		if !ok {
			return task.Draft{}, fmt.Errorf("invalid priority: %s", v.String())
		}
		draft.Priority = priority
	}
	return draft, nil
}

func decodeEditParams(data json.RawMessage) (EditParams, error) {
	root := gjson.ParseBytes(data)
	params := EditParams{
		TaskID:    root.Get("task_id").Int(),
		TaskTitle: root.Get("task_title").String(),
	}
	if params.TaskID <= 0 {
		return EditParams{}, fmt.Errorf("task_id is required")
	}
	changes := root.Get("changes")
	if v := changes.Get("title"); v.Exists() {
		title := v.String()
		params.Changes.Title = &title
	}
	if v := changes.Get("description"); v.Exists() {
		description := v.String()
		params.Changes.Description = &description
	}
	if v := changes.Get("status"); v.Exists() {
		status, ok := task.ParseStatus(v.String())
		if !ok {
			return EditParams{}, fmt.Errorf("invalid status: %s", v.String())
		}
		params.Changes.Status = &status
	}
	if v := changes.Get("priority"); v.Exists() {
		priority, ok := task.ParsePriority(v.String())
		if !ok {
			return EditParams{}, fmt.Errorf("invalid priority: %s", v.String())
		}
		params.Changes.Priority = &priority
	}
	return params, nil
}

func decodeMoveParams(data json.RawMessage) (MoveParams, error) {
	root := gjson.ParseBytes(data)
	params := MoveParams{
		TaskID:    root.Get("task_id").Int(),
		TaskTitle: root.Get("task_title").String(),
	}
	if params.TaskID <= 0 {
		return MoveParams{}, fmt.Errorf("task_id is required")
	}
	status, ok := task.ParseStatus(root.Get("new_status").String())
	if !ok {
		return MoveParams{}, fmt.Errorf("invalid status: %s", root.Get("new_status").String())
	}
	params.NewStatus = status
	return params, nil
}

func decodeAssignParams(data json.RawMessage) (AssignParams, error) {
	root := gjson.ParseBytes(data)
	params := AssignParams{
		TaskID:       root.Get("task_id").Int(),
		TaskTitle:    root.Get("task_title").String(),
		AssigneeID:   root.Get("assignee_id").Int(),
		AssigneeName: root.Get("assignee_name").String(),
	}
	if params.TaskID <= 0 {
		return AssignParams{}, fmt.Errorf("task_id is required")
	}
	if params.AssigneeID <= 0 {
		return AssignParams{}, fmt.Errorf("assignee_id is required")
	}
	return params, nil
}

func decodeDeleteParams(data json.RawMessage) (DeleteParams, error) {
	root := gjson.ParseBytes(data)
	params := DeleteParams{
		TaskID:    root.Get("task_id").Int(),
		TaskTitle: root.Get("task_title").String(),
	}
	if params.TaskID <= 0 {
		return DeleteParams{}, fmt.Errorf("task_id is required")
	}
	return params, nil
}

func decodeBulkParams(data json.RawMessage) (BulkParams, error) {
	root := gjson.ParseBytes(data)
	params := BulkParams{
		Operation: root.Get("operation").String(),
		TaskCount: int(root.Get("task_count").Int()),
	}
	if params.Operation == "" {
		return BulkParams{}, fmt.Errorf("operation is required")
	}
	for _, v := range root.Get("task_ids").Array() {
		if id := v.Int(); id > 0 {
			params.TaskIDs = append(params.TaskIDs, id)
		}
	}
	if len(params.TaskIDs) == 0 {
		return BulkParams{}, fmt.Errorf("task_ids is required")
	}
	return params, nil
}
