package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/sandeepkv93/todoflow/internal/model"
)

const sqliteTimeLayout = time.RFC3339Nano

const taskColumns = `id, title, description, status, priority, tags, due_date, reminder_at, is_recurring, recurrence_rule, parent_id, completed_at, created_at, updated_at, version, due_zone`

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database. The pool is capped at one
// connection, which serializes writers and keeps ":memory:" databases
// coherent.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLite opens path and applies pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, err
	}
	return task, nil
}

func (s *SQLiteStore) Put(ctx context.Context, in model.Task) (model.Task, error) {
	out, err := s.Commit(ctx, in)
	if err != nil {
		return model.Task{}, err
	}
	return out[0], nil
}

func (s *SQLiteStore) Commit(ctx context.Context, writes ...model.Task) ([]model.Task, error) {
	if err := validateWrites(writes); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]model.Task, 0, len(writes))
	for _, w := range writes {
		if w.Version == 0 {
			err = insertTask(ctx, tx, w)
		} else {
			err = updateTask(ctx, tx, w)
		}
		if err != nil {
			return nil, err
		}
		stored := w.Clone()
		stored.Version = w.Version + 1
		out = append(out, stored)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// List pushes the equality filters into SQL and applies the rest in memory
// so both stores share the same sort rules.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.ParentID != "" {
		clauses = append(clauses, "parent_id = ?")
		args = append(args, filter.ParentID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all := make([]model.Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		all = append(all, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ApplyFilter(all, filter), nil
}

func insertTask(ctx context.Context, tx *sql.Tx, in model.Task) error {
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		in.ID, in.Title, in.Description, string(in.Status), string(in.Priority), tags,
		nullTime(in.DueDate), nullTime(in.ReminderAt), boolInt(in.IsRecurring), nullRule(in.Recurrence),
		nullString(in.ParentID), nullTime(in.CompletedAt), mustTime(in.CreatedAt), mustTime(in.UpdatedAt),
		zoneName(in.DueDate),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: task %s already exists", ErrConflict, in.ID)
		}
		return err
	}
	return nil
}

func updateTask(ctx context.Context, tx *sql.Tx, in model.Task) error {
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, tags = ?, due_date = ?, reminder_at = ?,
		    is_recurring = ?, recurrence_rule = ?, parent_id = ?, completed_at = ?, updated_at = ?, due_zone = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		in.Title, in.Description, string(in.Status), string(in.Priority), tags, nullTime(in.DueDate), nullTime(in.ReminderAt),
		boolInt(in.IsRecurring), nullRule(in.Recurrence), nullString(in.ParentID), nullTime(in.CompletedAt), mustTime(in.UpdatedAt),
		zoneName(in.DueDate), in.ID, in.Version,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE id = ?`, in.ID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return fmt.Errorf("%w: task %s", ErrConflict, in.ID)
}

// Due dates keep their offset, and the IANA zone name is stored beside
// them in due_zone, so daily and weekly steps keep the wall-clock hour
// across DST no matter which zone the reading process runs in.
// Bookkeeping timestamps are normalized to UTC.
func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Format(sqliteTimeLayout)
}

// zoneName is the loadable zone of v, or nil for fixed offsets and the
// process-local zone.
func zoneName(v *time.Time) any {
	if v == nil {
		return nil
	}
	name := v.Location().String()
	if name == "" || name == "Local" {
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return nil
	}
	return name
}

// inZone moves tm into the named zone. Unknown zones keep the stored
// offset.
func inZone(tm *time.Time, zone sql.NullString) *time.Time {
	if tm == nil || !zone.Valid || zone.String == "" {
		return tm
	}
	loc, err := time.LoadLocation(zone.String)
	if err != nil {
		return tm
	}
	out := tm.In(loc)
	return &out
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullRule(v *model.RecurrenceRule) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(raw), nil
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var out model.Task
	var status, priority, tags string
	var due, reminder, rule, parent, completed, dueZone sql.NullString
	var recurring int
	var created, updated string
	if err := s.Scan(&out.ID, &out.Title, &out.Description, &status, &priority, &tags, &due, &reminder,
		&recurring, &rule, &parent, &completed, &created, &updated, &out.Version, &dueZone); err != nil {
		return model.Task{}, err
	}
	out.Status = model.Status(status)
	out.Priority = model.Priority(priority)
	out.IsRecurring = recurring == 1
	out.ParentID = parent.String
	if rule.Valid && rule.String != "" {
		r := model.RecurrenceRule(rule.String)
		out.Recurrence = &r
	}
	if err := json.Unmarshal([]byte(tags), &out.Tags); err != nil {
		return model.Task{}, fmt.Errorf("decode tags for %s: %w", out.ID, err)
	}

	var err error
	if out.DueDate, err = parseNullableTime(due); err != nil {
		return model.Task{}, err
	}
	out.DueDate = inZone(out.DueDate, dueZone)
	if out.ReminderAt, err = parseNullableTime(reminder); err != nil {
		return model.Task{}, err
	}
	if out.CompletedAt, err = parseNullableTime(completed); err != nil {
		return model.Task{}, err
	}
	if out.CreatedAt, err = parseRequiredTime(created); err != nil {
		return model.Task{}, err
	}
	if out.UpdatedAt, err = parseRequiredTime(updated); err != nil {
		return model.Task{}, err
	}
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
