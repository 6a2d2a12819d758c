package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/core/orchestrator/user"
)

// Proposer builds PendingActions. It reads the store to resolve references
// and snapshot bulk targets but never writes.
type Proposer struct {
	tasks   *task.Store
	users   *user.Store
	locator *Locator
	parser  *TaskParser
}

func NewProposer(tasks *task.Store, users *user.Store, locator *Locator, parser *TaskParser) *Proposer {
	return &Proposer{tasks: tasks, users: users, locator: locator, parser: parser}
}

// Propose handles the mutating action kinds. Unresolvable references come
// back as plain messages, not errors; the error return is for store
// failures only.
func (p *Proposer) Propose(ctx context.Context, intent Intent, message string, ownerID int64) (PendingAction, error) {
	switch intent.Action {
	case ActionCreateTask:
		return p.proposeCreate(ctx, message, ownerID)
	case ActionEditTask:
		return p.proposeEdit(ctx, message, ownerID)
	case ActionMoveTask:
		return p.proposeMove(ctx, message, ownerID)
	case ActionDeleteTask:
		return p.proposeDelete(ctx, message, ownerID)
	case ActionAssignTask:
		return p.proposeAssign(ctx, message, ownerID)
	case ActionBulkOperation:
		return p.proposeBulk(ctx, intent, message, ownerID)
	default:
		return PendingAction{}, fmt.Errorf("action %s is not proposable", intent.Action)
	}
}

func (p *Proposer) proposeCreate(ctx context.Context, message string, ownerID int64) (PendingAction, error) {
	directory, err := p.users.List(ctx)
	if err != nil {
		return PendingAction{}, err
	}
	draft := p.parser.Parse(ctx, message, ownerID, directory)

	data, err := json.Marshal(draft)
	if err != nil {
		return PendingAction{}, err
	}
	return PendingAction{
		Action:             ActionCreateTask,
		Data:               data,
		Message:            fmt.Sprintf("I can create a task titled '%s' with %s priority. Would you like me to proceed?", draft.Title, draft.Priority),
		ConfirmationNeeded: true,
	}, nil
}

func (p *Proposer) proposeEdit(ctx context.Context, message string, ownerID int64) (PendingAction, error) {
	target, found, err := p.locator.Locate(ctx, message, ownerID)
	if err != nil {
		return PendingAction{}, err
	}
	if !found {
		return notFound(ActionEditTask, "I couldn't find the task you want to edit. Please be more specific or provide the task ID."), nil
	}

	changes := ExtractChanges(message)
	data, err := json.Marshal(EditParams{TaskID: target.ID, TaskTitle: target.Title, Changes: changes})
	if err != nil {
		return PendingAction{}, err
	}
	return PendingAction{
		Action:             ActionEditTask,
		Data:               data,
		Message:            fmt.Sprintf("I can update the task '%s' with the following changes: %s. Should I proceed?", target.Title, formatChanges(changes)),
		ConfirmationNeeded: true,
	}, nil
}

func (p *Proposer) proposeMove(ctx context.Context, message string, ownerID int64) (PendingAction, error) {
	target, found, err := p.locator.Locate(ctx, message, ownerID)
	if err != nil {
		return PendingAction{}, err
	}
	if !found {
		return notFound(ActionMoveTask, "I couldn't find the task you want to move. Please be more specific."), nil
	}

	newStatus, ok := ExtractStatus(message)
	if !ok {
		return notFound(ActionMoveTask, "I couldn't determine where you want to move the task. Please specify: todo, in progress, in review, or completed."), nil
	}

	data, err := json.Marshal(MoveParams{TaskID: target.ID, TaskTitle: target.Title, CurrentStatus: target.Status, NewStatus: newStatus})
	if err != nil {
		return PendingAction{}, err
	}
	return PendingAction{
		Action:             ActionMoveTask,
		Data:               data,
		Message:            fmt.Sprintf("I can move the task '%s' from %s to %s. Should I proceed?", target.Title, target.Status, newStatus),
		ConfirmationNeeded: true,
	}, nil
}

func (p *Proposer) proposeDelete(ctx context.Context, message string, ownerID int64) (PendingAction, error) {
	target, found, err := p.locator.Locate(ctx, message, ownerID)
	if err != nil {
		return PendingAction{}, err
	}
	if !found {
		return notFound(ActionDeleteTask, "I couldn't find the task you want to delete. Please be more specific."), nil
	}

	data, err := json.Marshal(DeleteParams{TaskID: target.ID, TaskTitle: target.Title})
	if err != nil {
		return PendingAction{}, err
	}
	return PendingAction{
		Action:             ActionDeleteTask,
		Data:               data,
		Message:            fmt.Sprintf("Are you sure you want to delete the task '%s'? This action cannot be undone.", target.Title),
		ConfirmationNeeded: true,
	}, nil
}

func (p *Proposer) proposeAssign(ctx context.Context, message string, ownerID int64) (PendingAction, error) {
	target, found, err := p.locator.Locate(ctx, message, ownerID)
	if err != nil {
		return PendingAction{}, err
	}
	if !found {
		return notFound(ActionAssignTask, "I couldn't find the task you want to assign. Please be more specific."), nil
	}

	directory, err := p.users.List(ctx)
	if err != nil {
		return PendingAction{}, err
	}
	assignee, ok := ExtractAssignee(message, directory)
	if !ok {
		return notFound(ActionAssignTask, "I couldn't determine who you want to assign the task to. Please specify a username."), nil
	}

	data, err := json.Marshal(AssignParams{TaskID: target.ID, TaskTitle: target.Title, AssigneeID: assignee.ID, AssigneeName: assignee.Username})
	if err != nil {
		return PendingAction{}, err
	}
	return PendingAction{
		Action:             ActionAssignTask,
		Data:               data,
		Message:            fmt.Sprintf("I can assign the task '%s' to %s. Should I proceed?", target.Title, assignee.Username),
		ConfirmationNeeded: true,
	}, nil
}

// proposeBulk snapshots every matching task ID into the payload. The set can
// go stale between proposal and confirmation; the executor acts only on the
// rows that still exist.
func (p *Proposer) proposeBulk(ctx context.Context, intent Intent, message string, ownerID int64) (PendingAction, error) {
	operation := "unknown"
	if intent.Data != nil {
		var data struct {
			Operation string `json:"operation"`
		}
		if err := json.Unmarshal(intent.Data, &data); err == nil && data.Operation != "" {
			operation = data.Operation
		}
	}

	filter := QueryFilter(message)
	filter.SearchTerm = ""
	matches, err := p.tasks.List(ctx, ownerID, filter)
	if err != nil {
		return PendingAction{}, err
	}
	if len(matches) == 0 {
		return notFound(ActionBulkOperation, "No tasks found matching your criteria for bulk operation."), nil
	}

	ids := make([]int64, 0, len(matches))
	for _, t := range matches {
		ids = append(ids, t.ID)
	}
	data, err := json.Marshal(BulkParams{Operation: operation, TaskCount: len(ids), TaskIDs: ids})
	if err != nil {
		return PendingAction{}, err
	}
	return PendingAction{
		Action:             ActionBulkOperation,
		Data:               data,
		Message:            fmt.Sprintf("This will %s %d tasks. Are you sure you want to proceed?", operation, len(ids)),
		ConfirmationNeeded: true,
	}, nil
}

func notFound(action ActionKind, message string) PendingAction {
	return PendingAction{Action: action, Message: message}
}

func formatChanges(changes task.Changes) string {
	var parts []string
	if changes.Priority != nil {
		parts = append(parts, fmt.Sprintf("priority -> %s", *changes.Priority))
	}
	if changes.Status != nil {
		parts = append(parts, fmt.Sprintf("status -> %s", *changes.Status))
	}
	if changes.Description != nil {
		parts = append(parts, fmt.Sprintf("description -> %s", *changes.Description))
	}
	if changes.Title != nil {
		parts = append(parts, fmt.Sprintf("title -> %s", *changes.Title))
	}
	if len(parts) == 0 {
		return "no changes detected"
	}
	return strings.Join(parts, ", ")
}
