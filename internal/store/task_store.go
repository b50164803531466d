package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/tasksync/internal/model"
)

const taskColumns = `id, workspace_id, title, description, status, priority,
	due_date, created_by, metadata, created_at, updated_at`

// CreateTask inserts a new task. Generates a UUID if ID is empty and
// applies canonical defaults for status and priority. Entries are
// appended in the same transaction; an empty TaskID or EntityID on an
// entry is filled with the new task's id.
func (s *SQLStore) CreateTask(ctx context.Context, task model.Task, entries ...model.ActivityLogEntry) (*model.Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return nil, fmt.Errorf("task title must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if !task.Status.Valid() {
		return nil, fmt.Errorf("invalid task status %q", task.Status)
	}
	if !task.Priority.Valid() {
		return nil, fmt.Errorf("invalid task priority %q", task.Priority)
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	for i := range entries {
		if entries[i].TaskID == nil || *entries[i].TaskID == "" {
			entries[i].TaskID = &task.ID
		}
		if entries[i].EntityID == "" {
			entries[i].EntityID = task.ID
		}
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			task.ID, task.WorkspaceID, task.Title, task.Description,
			string(task.Status), string(task.Priority),
			task.DueDate, task.CreatedBy, task.Metadata,
			task.CreatedAt.UTC(), task.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return insertActivity(ctx, tx, entries)
	})
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return &task, nil
}

// GetTaskByID retrieves a single task by its ID.
func (s *SQLStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task,
		s.db.Rebind("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return &task, nil
}

// ListLinkedTasks returns every task whose metadata has a provider link,
// most recently updated first. The JSON is filtered in Go so the query
// stays portable across drivers.
func (s *SQLStore) ListLinkedTasks(ctx context.Context, provider model.Provider) ([]model.Task, error) {
	var rows []model.Task
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+taskColumns+" FROM tasks WHERE metadata IS NOT NULL ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("listing linked tasks: %w", err)
	}

	tasks := rows[:0]
	for _, t := range rows {
		if _, ok := t.Metadata.Link(provider); ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// ApplyTaskUpdate writes every staged column in a single UPDATE and
// appends the matching activity entries in the same transaction.
func (s *SQLStore) ApplyTaskUpdate(
	ctx context.Context,
	id string,
	upd model.TaskUpdate,
	entries []model.ActivityLogEntry,
) error {
	if upd.IsEmpty() && len(entries) == 0 {
		return nil
	}

	var (
		sets []string
		args []any
	)
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*upd.Priority))
	}
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.DueDate != nil {
		sets = append(sets, "due_date = ?")
		if *upd.DueDate == "" {
			args = append(args, nil)
		} else {
			args = append(args, *upd.DueDate)
		}
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if len(sets) > 0 {
			sets = append(sets, "updated_at = ?")
			args = append(args, time.Now().UTC(), id)
			query := tx.Rebind("UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?")
			if err := execOne(ctx, tx, query, args...); err != nil {
				return fmt.Errorf("updating task %s: %w", id, err)
			}
		}
		return insertActivity(ctx, tx, entries)
	})
}

// SetTaskMetadata replaces the metadata blob of a task.
func (s *SQLStore) SetTaskMetadata(
	ctx context.Context,
	id string,
	meta model.TaskMetadata,
	entries []model.ActivityLogEntry,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind("UPDATE tasks SET metadata = ?, updated_at = ? WHERE id = ?")
		if err := execOne(ctx, tx, query, meta, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("updating metadata of task %s: %w", id, err)
		}
		return insertActivity(ctx, tx, entries)
	})
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, tx *sqlx.Tx, query string, args ...any) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
