package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/efficio/internal/model"
)

// Table names backing the two task collections.
const (
	tableTasks    = "tasks"
	tableArchived = "archived_tasks"
)

// taskColumns is the column order every task query selects and scanTask
// expects.
const taskColumns = `local_id, remote_id, title, category, priority, due_date,
	status, sync_status, updated_at, origin_remote_id, sync_attempts, last_attempt_at`

// tableFor maps a collection name to its table.
func tableFor(coll model.Collection) (string, error) {
	switch coll {
	case model.CollectionTasks:
		return tableTasks, nil
	case model.CollectionArchived:
		return tableArchived, nil
	}
	return "", fmt.Errorf("unknown collection %q", coll)
}

// Insert adds a task to coll and returns its newly assigned local id.
// Any LocalID already set on task is ignored.
func (s *SQLiteStore) Insert(
	ctx context.Context,
	coll model.Collection,
	task model.Task,
) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	table, err := tableFor(coll)
	if err != nil {
		return 0, err
	}

	id, err := insertTask(ctx, s.db, table, task)
	if err != nil {
		return 0, err
	}

	s.written(ChangeEvent{Collection: coll, LocalID: id, Op: OpInsert})
	return id, nil
}

// Get retrieves a single task by local id. It returns an error wrapping
// ErrNotFound when the id is absent from coll.
func (s *SQLiteStore) Get(
	ctx context.Context,
	coll model.Collection,
	id int64,
) (*model.Task, error) {
	table, err := tableFor(coll)
	if err != nil {
		return nil, err
	}
	return getTask(ctx, s.db, table, id)
}

// Update applies patch to the task with the given local id. The read and
// write happen in one transaction.
func (s *SQLiteStore) Update(
	ctx context.Context,
	coll model.Collection,
	id int64,
	patch TaskPatch,
) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	table, err := tableFor(coll)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	task, err := getTask(ctx, tx, table, id)
	if err != nil {
		return err
	}

	applyPatch(task, patch)
	if err := writeTask(ctx, tx, table, *task); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update of task %d: %w", id, err)
	}

	s.written(ChangeEvent{Collection: coll, LocalID: id, Op: OpUpdate})
	return nil
}

// Delete removes a task by local id.
func (s *SQLiteStore) Delete(
	ctx context.Context,
	coll model.Collection,
	id int64,
) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	table, err := tableFor(coll)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE local_id = ?", table), id)
	if err != nil {
		return fmt.Errorf("deleting task %d from %s: %w", id, table, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d in %s: %w", id, table, ErrNotFound)
	}

	s.written(ChangeEvent{Collection: coll, LocalID: id, Op: OpDelete})
	return nil
}

// ListAll returns every task in coll ordered by local id.
func (s *SQLiteStore) ListAll(
	ctx context.Context,
	coll model.Collection,
) ([]model.Task, error) {
	return s.ListWhere(ctx, coll, TaskFilter{})
}

// ListWhere returns the tasks in coll matching filter.
func (s *SQLiteStore) ListWhere(
	ctx context.Context,
	coll model.Collection,
	filter TaskFilter,
) ([]model.Task, error) {
	table, err := tableFor(coll)
	if err != nil {
		return nil, err
	}

	query, args := buildTaskQuery(table, filter)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// Clear removes every task from coll. Local ids are not reset.
func (s *SQLiteStore) Clear(ctx context.Context, coll model.Collection) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	table, err := tableFor(coll)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}

	s.written(ChangeEvent{Collection: coll, Op: OpClear})
	return nil
}

// ReplaceAll clears coll and inserts tasks in a single transaction.
func (s *SQLiteStore) ReplaceAll(
	ctx context.Context,
	coll model.Collection,
	tasks []model.Task,
) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.replace(ctx, coll, tasks, nil)
	return err
}

// ReplaceGuard conditions a replacement on the state the replacing data
// was fetched against.
type ReplaceGuard struct {
	// Version is the collection version read before fetching.
	Version uint64
	// RequireSynced also refuses the replacement while coll holds pending
	// or error rows.
	RequireSynced bool
}

// ReplaceIfUnchanged replaces coll with tasks, like ReplaceAll, only when
// guard still holds. The check and the replacement are atomic with respect
// to every other write. It reports whether the replacement happened.
func (s *SQLiteStore) ReplaceIfUnchanged(
	ctx context.Context,
	coll model.Collection,
	tasks []model.Task,
	guard ReplaceGuard,
) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.versions[coll] != guard.Version {
		return false, nil
	}
	return s.replace(ctx, coll, tasks, &guard)
}

// replace runs the clear-and-insert transaction. The caller holds writeMu.
func (s *SQLiteStore) replace(
	ctx context.Context,
	coll model.Collection,
	tasks []model.Task,
	guard *ReplaceGuard,
) (bool, error) {
	table, err := tableFor(coll)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if guard != nil && guard.RequireSynced {
		unsynced, err := countUnsynced(ctx, tx, table)
		if err != nil {
			return false, err
		}
		if unsynced > 0 {
			return false, nil
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return false, fmt.Errorf("clearing %s: %w", table, err)
	}

	for _, t := range tasks {
		if _, err := insertTask(ctx, tx, table, t); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing replace of %s: %w", table, err)
	}

	s.written(ChangeEvent{Collection: coll, Op: OpClear})
	return true, nil
}

// Move deletes the task from one collection and inserts it, with patch
// applied, into the other. Both happen in one transaction, so the task is
// never observable in both collections or in neither. The new local id in
// the destination collection is returned.
func (s *SQLiteStore) Move(
	ctx context.Context,
	from, to model.Collection,
	id int64,
	patch TaskPatch,
) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	fromTable, err := tableFor(from)
	if err != nil {
		return 0, err
	}
	toTable, err := tableFor(to)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	task, err := getTask(ctx, tx, fromTable, id)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE local_id = ?", fromTable), id,
	); err != nil {
		return 0, fmt.Errorf("deleting task %d from %s: %w", id, fromTable, err)
	}

	applyPatch(task, patch)
	newID, err := insertTask(ctx, tx, toTable, *task)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing move of task %d: %w", id, err)
	}

	s.written(
		ChangeEvent{Collection: from, LocalID: id, Op: OpDelete},
		ChangeEvent{Collection: to, LocalID: newID, Op: OpInsert},
	)
	return newID, nil
}

// CountUnsynced returns how many tasks in coll are pending or in error.
func (s *SQLiteStore) CountUnsynced(
	ctx context.Context,
	coll model.Collection,
) (int, error) {
	table, err := tableFor(coll)
	if err != nil {
		return 0, err
	}
	return countUnsynced(ctx, s.db, table)
}

func countUnsynced(ctx context.Context, q sqlx.QueryerContext, table string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE sync_status IN (?, ?)", table),
		string(model.SyncPending), string(model.SyncError),
	)
	if err != nil {
		return 0, fmt.Errorf("counting unsynced in %s: %w", table, err)
	}
	return count, nil
}

// insertTask normalizes t and inserts it into table.
func insertTask(
	ctx context.Context,
	ex sqlx.ExecerContext,
	table string,
	t model.Task,
) (int64, error) {
	t, err := prepareTask(t)
	if err != nil {
		return 0, err
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}

	result, err := ex.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			remote_id, title, category, priority, due_date,
			status, sync_status, updated_at,
			origin_remote_id, sync_attempts, last_attempt_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
		t.RemoteID, t.Title, t.Category, string(t.Priority), dueDateArg(t.DueDate),
		string(t.Status), string(t.SyncStatus), t.UpdatedAt.UTC(),
		t.OriginRemoteID, t.SyncAttempts, timeArg(t.LastAttemptAt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting task into %s: %w", table, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id from %s: %w", table, err)
	}
	return id, nil
}

// writeTask overwrites every column of an existing row with t.
func writeTask(
	ctx context.Context,
	ex sqlx.ExecerContext,
	table string,
	t model.Task,
) error {
	t, err := prepareTask(t)
	if err != nil {
		return err
	}

	result, err := ex.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET
			remote_id = ?, title = ?, category = ?, priority = ?, due_date = ?,
			status = ?, sync_status = ?, updated_at = ?,
			origin_remote_id = ?, sync_attempts = ?, last_attempt_at = ?
		WHERE local_id = ?`, table),
		t.RemoteID, t.Title, t.Category, string(t.Priority), dueDateArg(t.DueDate),
		string(t.Status), string(t.SyncStatus), t.UpdatedAt.UTC(),
		t.OriginRemoteID, t.SyncAttempts, timeArg(t.LastAttemptAt),
		t.LocalID,
	)
	if err != nil {
		return fmt.Errorf("updating task %d in %s: %w", t.LocalID, table, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("task %d in %s: %w", t.LocalID, table, ErrNotFound)
	}
	return nil
}

// getTask loads one row through q, which may be the db or a transaction.
func getTask(
	ctx context.Context,
	q sqlx.QueryerContext,
	table string,
	id int64,
) (*model.Task, error) {
	row := q.QueryRowxContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE local_id = ?", taskColumns, table), id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d in %s: %w", id, table, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d from %s: %w", id, table, err)
	}
	return &task, nil
}

// prepareTask validates the title and fills defaults for empty fields.
func prepareTask(t model.Task) (model.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return t, fmt.Errorf("task title must not be empty")
	}
	if strings.TrimSpace(t.Category) == "" {
		t.Category = model.DefaultCategory
	}
	t.Priority = model.ParsePriority(string(t.Priority))
	if !t.Status.Valid() {
		t.Status = model.StatusPending
	}
	if t.SyncStatus == "" {
		t.SyncStatus = model.SyncPending
	}
	return t, nil
}

// applyPatch copies every non-nil patch field onto t.
func applyPatch(t *model.Task, p TaskPatch) {
	if p.RemoteID != nil {
		t.RemoteID = *p.RemoteID
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.SyncStatus != nil {
		t.SyncStatus = *p.SyncStatus
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
	if p.OriginRemoteID != nil {
		t.OriginRemoteID = *p.OriginRemoteID
	}
	if p.SyncAttempts != nil {
		t.SyncAttempts = *p.SyncAttempts
	}
	if p.LastAttemptAt != nil {
		at := *p.LastAttemptAt
		t.LastAttemptAt = &at
	}
}

// buildTaskQuery constructs the SQL query and args for a TaskFilter.
func buildTaskQuery(table string, filter TaskFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if len(filter.SyncStatuses) > 0 {
		placeholders := make([]string, len(filter.SyncStatuses))
		for i, st := range filter.SyncStatuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions,
			"sync_status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions,
			"status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, *filter.Category)
	}
	if filter.Priority != nil {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(*filter.Priority))
	}
	if filter.RemoteID != nil {
		conditions = append(conditions, "remote_id = ?")
		args = append(args, *filter.RemoteID)
	}
	if filter.HasRemoteID != nil {
		if *filter.HasRemoteID {
			conditions = append(conditions, "remote_id != ''")
		} else {
			conditions = append(conditions, "remote_id = ''")
		}
	}
	if filter.HasDueDate != nil {
		if *filter.HasDueDate {
			conditions = append(conditions, "due_date IS NOT NULL")
		} else {
			conditions = append(conditions, "due_date IS NULL")
		}
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, "due_date IS NOT NULL AND due_date < ?")
		args = append(args, filter.DueBefore.Format(model.DateLayout))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", taskColumns, table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := "local_id"
	if filter.SortBy != "" {
		allowed := map[string]string{
			"local_id":   "local_id",
			"updated_at": "updated_at",
			"due_date":   "due_date",
			"title":      "title",
			"priority":   "CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END",
		}
		if col, ok := allowed[filter.SortBy]; ok {
			sortBy = col
		}
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)
	if sortBy != "local_id" {
		query += ", local_id ASC"
	}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	return query, args
}

// scanTask scans a task row selected with taskColumns.
func scanTask(row interface{ Scan(dest ...interface{}) error }) (model.Task, error) {
	var (
		task        model.Task
		priority    string
		status      string
		syncStatus  string
		dueDate     sql.NullString
		lastAttempt *time.Time
	)

	err := row.Scan(
		&task.LocalID, &task.RemoteID, &task.Title, &task.Category,
		&priority, &dueDate, &status, &syncStatus, &task.UpdatedAt,
		&task.OriginRemoteID, &task.SyncAttempts, &lastAttempt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("scanning task row: %w", err)
	}

	task.Priority = model.Priority(priority)
	task.Status = model.Status(status)
	task.SyncStatus = model.SyncStatus(syncStatus)
	task.LastAttemptAt = lastAttempt

	if dueDate.Valid {
		due, err := model.ParseDueDate(dueDate.String)
		if err != nil {
			return model.Task{}, err
		}
		task.DueDate = due
	}

	return task, nil
}

// dueDateArg stores due dates as calendar-date text, or NULL.
func dueDateArg(d *time.Time) interface{} {
	if d == nil {
		return nil
	}
	return d.Format(model.DateLayout)
}

// timeArg stores optional timestamps in UTC, or NULL.
func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
