package task

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskmaster/app/core/orchestrator/db"
)

const taskColumns = `id, title, description, status, priority, owner_id, created_by_id,
COALESCE(assigned_to_id, 0), COALESCE(reviewer_id, 0), COALESCE(due_date, 0), COALESCE(completed_at, 0),
board_position, COALESCE(estimated_minutes, 0), COALESCE(actual_minutes, 0), created_at, updated_at`

type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) Create(ctx context.Context, ownerID int64, draft Draft) (Task, error) {
	if ownerID <= 0 {
		return Task{}, fmt.Errorf("owner_id is required")
	}
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		title = "New Task"
	}
	status := draft.Status
	if status == "" {
		status = StatusTodo
	}
	if _, ok := ParseStatus(string(status)); !ok {
		return Task{}, fmt.Errorf("invalid status: %s", status)
	}
	priority := draft.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if _, ok := ParsePriority(string(priority)); !ok {
		return Task{}, fmt.Errorf("invalid priority: %s", priority)
	}

	now := time.Now().Unix()
	var completedAt interface{}
	if status == StatusCompleted {
		completedAt = now
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer tx.Rollback()

	// New tasks land at the bottom of their column.
	var position int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(board_position), 0) + 1 FROM tasks WHERE owner_id = ? AND status = ?`,
		ownerID, status,
	).Scan(&position); err != nil {
		return Task{}, err
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO tasks (title, description, status, priority, owner_id, created_by_id, assigned_to_id, reviewer_id, due_date, completed_at, board_position, estimated_minutes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		title, strings.TrimSpace(draft.Description), status, priority, ownerID, ownerID,
		nullableID(draft.AssignedToID), nullableID(draft.ReviewerID), nullableID(draft.DueDate),
		completedAt, position, nullableID(draft.EstimatedMinutes), now, now,
	)
	if err != nil {
		return Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return Task{}, err
	}

	return s.Get(ctx, id, ownerID)
}

func (s *Store) Get(ctx context.Context, taskID int64, ownerID int64) (Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND owner_id = ?`
	return scanTask(s.db.Conn().QueryRowContext(ctx, query, taskID, ownerID))
}

// List returns the owner's tasks matching the filter, most recently created
// first.
func (s *Store) List(ctx context.Context, ownerID int64, filter Filter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ?`
	args := []interface{}{ownerID}

	if filter.Status != "" {
		if _, ok := ParseStatus(string(filter.Status)); !ok {
			return nil, fmt.Errorf("invalid status: %s", filter.Status)
		}
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		if _, ok := ParsePriority(string(filter.Priority)); !ok {
			return nil, fmt.Errorf("invalid priority: %s", filter.Priority)
		}
		query += ` AND priority = ?`
		args = append(args, filter.Priority)
	}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		query += ` AND (title LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE)`
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return s.queryTasks(ctx, query, args...)
}

// ListRecent returns the owner's most recently created tasks for prompt
// context.
func (s *Store) ListRecent(ctx context.Context, ownerID int64, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.List(ctx, ownerID, Filter{Limit: limit})
}

// SearchByKeywords finds tasks whose title or description contains every
// keyword, case-insensitively, newest first.
func (s *Store) SearchByKeywords(ctx context.Context, ownerID int64, keywords []string, limit int) ([]Task, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ?`
	args := []interface{}{ownerID}
	for _, kw := range keywords {
		query += ` AND (title LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE)`
		pattern := "%" + kw + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryTasks(ctx, query, args...)
}

// Update applies the non-nil fields of changes. Status transitions keep
// completed_at consistent: set on entering completed, cleared on leaving it.
func (s *Store) Update(ctx context.Context, taskID int64, ownerID int64, changes Changes) (Task, error) {
	if changes.Empty() {
		return Task{}, fmt.Errorf("no changes provided")
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer tx.Rollback()

	current, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, taskID, ownerID))
	if err != nil {
		return Task{}, err
	}

	now := time.Now().Unix()
	sets := []string{"updated_at = ?"}
	args := []interface{}{now}

	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return Task{}, fmt.Errorf("title cannot be empty")
		}
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if changes.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, strings.TrimSpace(*changes.Description))
	}
	if changes.Priority != nil {
		if _, ok := ParsePriority(string(*changes.Priority)); !ok {
			return Task{}, fmt.Errorf("invalid priority: %s", *changes.Priority)
		}
		sets = append(sets, "priority = ?")
		args = append(args, *changes.Priority)
	}
	if changes.Status != nil {
		next, ok := ParseStatus(string(*changes.Status))
		if !ok {
			return Task{}, fmt.Errorf("invalid status: %s", *changes.Status)
		}
		sets = append(sets, "status = ?")
		args = append(args, next)
		if next == StatusCompleted && current.Status != StatusCompleted {
			sets = append(sets, "completed_at = ?")
			args = append(args, now)
		} else if next != StatusCompleted {
			sets = append(sets, "completed_at = NULL")
		}
	}

	args = append(args, taskID, ownerID)
	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND owner_id = ?`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return Task{}, err
	}

	return s.Get(ctx, taskID, ownerID)
}

// SetStatus moves a task to a new column, appending it at the bottom and
// maintaining completed_at.
func (s *Store) SetStatus(ctx context.Context, taskID int64, ownerID int64, status Status) (Task, error) {
	next, ok := ParseStatus(string(status))
	if !ok {
		return Task{}, fmt.Errorf("invalid status: %s", status)
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer tx.Rollback()

	current, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, taskID, ownerID))
	if err != nil {
		return Task{}, err
	}

	now := time.Now().Unix()
	var position int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(board_position), 0) + 1 FROM tasks WHERE owner_id = ? AND status = ?`,
		ownerID, next,
	).Scan(&position); err != nil {
		return Task{}, err
	}

	var completedAt interface{}
	if next == StatusCompleted {
		completedAt = now
		if current.Status == StatusCompleted && current.CompletedAt > 0 {
			completedAt = current.CompletedAt
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, board_position = ?, completed_at = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		next, position, completedAt, now, taskID, ownerID,
	); err != nil {
		return Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return Task{}, err
	}

	return s.Get(ctx, taskID, ownerID)
}

// Reorder places a task at the given zero-based position inside a column and
// reindexes the column linearly.
func (s *Store) Reorder(ctx context.Context, taskID int64, ownerID int64, status Status, position int) (Task, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		return Task{}, fmt.Errorf("invalid status: %s", status)
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer tx.Rollback()

	moved, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, taskID, ownerID))
	if err != nil {
		return Task{}, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM tasks WHERE owner_id = ? AND status = ? AND id != ? ORDER BY board_position ASC`,
		ownerID, status, taskID,
	)
	if err != nil {
		return Task{}, err
	}
	var column []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return Task{}, err
		}
		column = append(column, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Task{}, err
	}

	if position < 0 {
		position = 0
	}
	if position > len(column) {
		position = len(column)
	}
	ordered := make([]int64, 0, len(column)+1)
	ordered = append(ordered, column[:position]...)
	ordered = append(ordered, taskID)
	ordered = append(ordered, column[position:]...)

	now := time.Now().Unix()
	for idx, id := range ordered {
		if id == taskID {
			var completedAt interface{}
			if status == StatusCompleted {
				completedAt = now
				if moved.Status == StatusCompleted && moved.CompletedAt > 0 {
					completedAt = moved.CompletedAt
				}
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE tasks SET status = ?, board_position = ?, completed_at = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
				status, idx, completedAt, now, id, ownerID,
			); err != nil {
				return Task{}, err
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET board_position = ? WHERE id = ? AND owner_id = ?`, idx, id, ownerID); err != nil {
			return Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Task{}, err
	}

	return s.Get(ctx, taskID, ownerID)
}

func (s *Store) Assign(ctx context.Context, taskID int64, ownerID int64, assigneeID int64) (Task, error) {
	if assigneeID <= 0 {
		return Task{}, fmt.Errorf("assignee_id is required")
	}
	now := time.Now().Unix()
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET assigned_to_id = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		assigneeID, now, taskID, ownerID,
	)
	if err != nil {
		return Task{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Task{}, err
	}
	if affected == 0 {
		return Task{}, sql.ErrNoRows
	}
	return s.Get(ctx, taskID, ownerID)
}

func (s *Store) Delete(ctx context.Context, taskID int64, ownerID int64) error {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, taskID, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByIDs returns the owner's tasks among ids; rows deleted since the ids
// were collected are silently absent.
func (s *Store) ListByIDs(ctx context.Context, ownerID int64, ids []int64) ([]Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ? AND id IN (` + placeholders + `) ORDER BY created_at DESC, id DESC`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	return s.queryTasks(ctx, query, args...)
}

// BulkDelete removes the owner's tasks among ids in one transaction and
// reports how many rows went away.
func (s *Store) BulkDelete(ctx context.Context, ownerID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE owner_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(affected), nil
}

// BulkComplete marks the owner's tasks among ids completed in one transaction
// and returns the surviving rows.
func (s *Store) BulkComplete(ctx context.Context, ownerID int64, ids []int64) ([]Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, now, now, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed', completed_at = ?, updated_at = ? WHERE owner_id = ? AND id IN (`+placeholders+`)`,
		args...,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.ListByIDs(ctx, ownerID, ids)
}

func (s *Store) CountByStatus(ctx context.Context, ownerID int64) (StatusCounts, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE owner_id = ? GROUP BY status`, ownerID)
	if err != nil {
		return StatusCounts{}, err
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, err
		}
		counts.Total += n
		switch Status(status) {
		case StatusTodo:
			counts.Todo = n
		case StatusInProgress:
			counts.InProgress = n
		case StatusInReview:
			counts.InReview = n
		case StatusCompleted:
			counts.Completed = n
		}
	}
	return counts, rows.Err()
}

// OverdueCount is one owner's count of open tasks past their due date.
type OverdueCount struct {
	OwnerID int64
	Count   int
}

// CountOverdueByOwner reports, per owner, how many non-completed tasks have a
// due date before the given cutoff.
func (s *Store) CountOverdueByOwner(ctx context.Context, cutoff int64) ([]OverdueCount, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT owner_id, COUNT(*) FROM tasks
		 WHERE due_date > 0 AND due_date < ? AND status != ?
		 GROUP BY owner_id ORDER BY owner_id ASC`, cutoff, string(StatusCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []OverdueCount
	for rows.Next() {
		var c OverdueCount
		if err := rows.Scan(&c.OwnerID, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...interface{}) ([]Task, error) {
	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (Task, error) {
	return scanTaskRow(row)
}

func scanTaskRow(row rowScanner) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.OwnerID,
		&t.CreatedByID,
		&t.AssignedToID,
		&t.ReviewerID,
		&t.DueDate,
		&t.CompletedAt,
		&t.BoardPosition,
		&t.EstimatedMinutes,
		&t.ActualMinutes,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func nullableID(v int64) interface{} {
	if v <= 0 {
		return nil
	}
	return v
}
