package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/calvinalkan/tasktree/internal/task"

	"github.com/google/uuid"
)

const selectTaskColumns = `
	SELECT uuid, status, description, partof, entry, modified, due, wait, project, annotations
	FROM tasks`

// ExportAll implements Store. Records are ordered by entry time, then uuid.
func (s *SQLite) ExportAll(ctx context.Context) ([]task.Task, error) {
	tasks, err := s.queryTasks(ctx, selectTaskColumns+" ORDER BY entry, uuid")
	if err != nil {
		return nil, fmt.Errorf("%w: export: %w", task.ErrStore, err)
	}

	return tasks, nil
}

// ExportOne implements Store.
func (s *SQLite) ExportOne(ctx context.Context, id uuid.UUID) ([]task.Task, error) {
	tasks, err := s.queryTasks(ctx, selectTaskColumns+" WHERE uuid = ?", id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: export %s: %w", task.ErrStore, id, err)
	}

	return tasks, nil
}

// QueryIDs implements Store. See ParseFilter for the filter language.
func (s *SQLite) QueryIDs(ctx context.Context, filter string, statuses []task.Status) ([]uuid.UUID, error) {
	where, args := ParseFilter(filter).sql()

	if len(statuses) > 0 {
		marks := make([]string, len(statuses))
		for i, st := range statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}

		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}

	query := "SELECT uuid FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY entry, uuid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", task.ErrStore, err)
	}

	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID

	for rows.Next() {
		var raw string

		err = rows.Scan(&raw)
		if err != nil {
			return nil, fmt.Errorf("%w: query: %w", task.ErrStore, err)
		}

		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: query: stored uuid %q: %w", task.ErrStore, raw, parseErr)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", task.ErrStore, err)
	}

	return ids, nil
}

// Create implements Store. The acknowledgement mimics Taskwarrior's
// new-uuid verbosity: "Created task <uuid>.".
func (s *SQLite) Create(ctx context.Context, description string, parent *uuid.UUID) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("%w: create: description is empty", task.ErrStore)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("%w: create: %w", task.ErrStore, err)
	}

	now := task.NewDate(s.now())
	t := task.Task{
		UUID:        id,
		Status:      task.StatusPending,
		Description: description,
		PartOf:      parent,
		Entry:       now,
		Modified:    &now,
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertTask(ctx, tx, &t)
	})
	if err != nil {
		return "", fmt.Errorf("%w: create: %w", task.ErrStore, err)
	}

	return fmt.Sprintf("Created task %s.\n", id), nil
}

// Done implements Store.
func (s *SQLite) Done(ctx context.Context, id uuid.UUID) error {
	return s.modify(ctx, id, "done", "status = ?", string(task.StatusCompleted))
}

// Pending implements Store.
func (s *SQLite) Pending(ctx context.Context, id uuid.UUID) error {
	return s.modify(ctx, id, "pending", "status = ?", string(task.StatusPending))
}

// Delete implements Store. Like Taskwarrior, deletion is a status change.
func (s *SQLite) Delete(ctx context.Context, id uuid.UUID) error {
	return s.modify(ctx, id, "delete", "status = ?", string(task.StatusDeleted))
}

// SetParent implements Store. A nil parent clears the attribute.
func (s *SQLite) SetParent(ctx context.Context, id uuid.UUID, parent *uuid.UUID) error {
	var value sql.NullString
	if parent != nil {
		value = sql.NullString{String: parent.String(), Valid: true}
	}

	return s.modify(ctx, id, "set parent", "partof = ?", value)
}

// SetDescription implements Store.
func (s *SQLite) SetDescription(ctx context.Context, id uuid.UUID, description string) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: set description %s: description is empty", task.ErrStore, id)
	}

	return s.modify(ctx, id, "set description", "description = ?", description)
}

// Import implements Store. All records are written in one transaction.
func (s *SQLite) Import(ctx context.Context, tasks []task.Task) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range tasks {
			upsertErr := upsertTask(ctx, tx, &tasks[i])
			if upsertErr != nil {
				return upsertErr
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: import: %w", task.ErrStore, err)
	}

	return nil
}

func (s *SQLite) modify(ctx context.Context, id uuid.UUID, op, set string, value any) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET "+set+", modified = ? WHERE uuid = ?",
		value, s.now().UTC().Unix(), id.String())
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", task.ErrStore, op, id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", task.ErrStore, op, id, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s: %w: %s", task.ErrStore, op, task.ErrNotFound, id)
	}

	return nil
}

func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin txn: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	err = fn(tx)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit txn: %w", err)
	}

	committed = true

	return nil
}

func upsertTask(ctx context.Context, tx *sql.Tx, t *task.Task) error {
	var partof sql.NullString
	if t.HasParent() {
		partof = sql.NullString{String: t.PartOf.String(), Valid: true}
	}

	var annotations sql.NullString

	if len(t.Annotations) > 0 {
		data, err := json.Marshal(t.Annotations)
		if err != nil {
			return fmt.Errorf("encode annotations for %s: %w", t.UUID, err)
		}

		annotations = sql.NullString{String: string(data), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks (
			uuid,
			status,
			description,
			partof,
			entry,
			modified,
			due,
			wait,
			project,
			annotations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UUID.String(),
		string(t.Status),
		t.Description,
		partof,
		t.Entry.Unix(),
		nullUnix(t.Modified),
		nullUnix(t.Due),
		nullUnix(t.Wait),
		t.Project,
		annotations,
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.UUID, err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM task_tags WHERE task_uuid = ?", t.UUID.String())
	if err != nil {
		return fmt.Errorf("clear tags %s: %w", t.UUID, err)
	}

	for i, tag := range t.Tags {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO task_tags (task_uuid, position, tag) VALUES (?, ?, ?)",
			t.UUID.String(), i, tag)
		if err != nil {
			return fmt.Errorf("insert tag %q for %s: %w", tag, t.UUID, err)
		}
	}

	return nil
}

func (s *SQLite) queryTasks(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}

	var tasks []task.Task

	for rows.Next() {
		t, scanErr := scanTask(rows)
		if scanErr != nil {
			_ = rows.Close()

			return nil, scanErr
		}

		tasks = append(tasks, t)
	}

	err = rows.Err()
	_ = rows.Close()

	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}

	// Tags are loaded after the task cursor is closed; the store runs on a
	// single connection.
	for i := range tasks {
		tags, tagErr := s.loadTags(ctx, tasks[i].UUID)
		if tagErr != nil {
			return nil, tagErr
		}

		tasks[i].Tags = tags
	}

	return tasks, nil
}

func (s *SQLite) loadTags(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tag FROM task_tags WHERE task_uuid = ? ORDER BY position", id.String())
	if err != nil {
		return nil, fmt.Errorf("select tags %s: %w", id, err)
	}

	defer func() { _ = rows.Close() }()

	var tags []string

	for rows.Next() {
		var tag string

		err = rows.Scan(&tag)
		if err != nil {
			return nil, fmt.Errorf("scan tag %s: %w", id, err)
		}

		tags = append(tags, tag)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("select tags %s: %w", id, err)
	}

	return tags, nil
}

func scanTask(rows *sql.Rows) (task.Task, error) {
	var (
		rawUUID, rawStatus, description, project string
		partof, annotations                      sql.NullString
		entry                                    int64
		modified, due, wait                      sql.NullInt64
	)

	err := rows.Scan(&rawUUID, &rawStatus, &description, &partof, &entry, &modified, &due, &wait, &project, &annotations)
	if err != nil {
		return task.Task{}, fmt.Errorf("scan task: %w", err)
	}

	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return task.Task{}, fmt.Errorf("stored uuid %q: %w", rawUUID, err)
	}

	status, err := task.ParseStatus(rawStatus)
	if err != nil {
		return task.Task{}, fmt.Errorf("task %s: %w", id, err)
	}

	t := task.Task{
		UUID:        id,
		Status:      status,
		Description: description,
		Entry:       task.NewDate(time.Unix(entry, 0)),
		Modified:    dateFromNull(modified),
		Due:         dateFromNull(due),
		Wait:        dateFromNull(wait),
		Project:     project,
	}

	if partof.Valid && partof.String != "" {
		parent, parseErr := uuid.Parse(partof.String)
		if parseErr != nil {
			return task.Task{}, fmt.Errorf("task %s: stored partof %q: %w", id, partof.String, parseErr)
		}

		t.PartOf = &parent
	}

	if annotations.Valid && annotations.String != "" {
		err = json.Unmarshal([]byte(annotations.String), &t.Annotations)
		if err != nil {
			return task.Task{}, fmt.Errorf("task %s: annotations: %w", id, err)
		}
	}

	return t, nil
}

func nullUnix(d *task.Date) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: d.Unix(), Valid: true}
}

func dateFromNull(v sql.NullInt64) *task.Date {
	if !v.Valid {
		return nil
	}

	d := task.NewDate(time.Unix(v.Int64, 0))

	return &d
}
