package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/tasksync/internal/model"
)

const activityColumns = `id, workspace_id, task_id, user_id, action,
	entity_type, entity_id, metadata, created_at`

// AppendActivity inserts entries in one transaction.
func (s *SQLStore) AppendActivity(ctx context.Context, entries ...model.ActivityLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return insertActivity(ctx, tx, entries)
	})
}

// ListActivity retrieves entries matching the filter, newest first.
func (s *SQLStore) ListActivity(ctx context.Context, filter ActivityFilter) ([]model.ActivityLogEntry, error) {
	query := "SELECT " + activityColumns + " FROM activity_log WHERE 1 = 1"
	var args []any

	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.TaskID != "" {
		query += " AND task_id = ?"
		args = append(args, filter.TaskID)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var entries []model.ActivityLogEntry
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying activity log: %w", err)
	}
	return entries, nil
}

// insertActivity appends entries inside an open transaction, filling in
// ids and timestamps that the caller left empty.
func insertActivity(ctx context.Context, tx *sqlx.Tx, entries []model.ActivityLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO activity_log (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("preparing activity insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.EntityType == "" {
			e.EntityType = model.EntityTask
		}
		_, err := stmt.ExecContext(ctx,
			e.ID, e.WorkspaceID, e.TaskID, e.UserID, e.Action,
			e.EntityType, e.EntityID, e.Metadata, e.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("appending activity %s: %w", e.Action, err)
		}
	}
	return nil
}
