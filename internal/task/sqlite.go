package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const taskSchemaVersion = 1

// SQLiteStore persists tasks in an embedded SQLite database.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the task database at path and applies
// schema migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &SQLiteStore{conn: conn}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Conn exposes the underlying connection so other stores (conversation
// state) can share the same database file.
func (s *SQLiteStore) Conn() *sql.DB { return s.conn }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.conn.Close() }

func (s *SQLiteStore) initSchema() error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}

	version, err := readSchemaVersion(tx)
	if err != nil {
		return err
	}
	if version > taskSchemaVersion {
		return fmt.Errorf("db schema version %d is newer than runtime version %d", version, taskSchemaVersion)
	}

	if version < 1 {
		if err := createTaskTables(tx); err != nil {
			return fmt.Errorf("migrate schema %d -> 1: %w", version, err)
		}
		if err := writeSchemaVersion(tx, 1); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func createTaskTables(tx *sql.Tx) error {
	createTasks := `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	priority TEXT NOT NULL DEFAULT 'medium',
	due_date INTEGER,
	completed INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`
	if _, err := tx.Exec(createTasks); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_tasks_user_completed ON tasks(user_id, completed, created_at)`); err != nil {
		return err
	}
	return nil
}

func readSchemaVersion(tx *sql.Tx) (int, error) {
	var versionText string
	err := tx.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&versionText)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	version, parseErr := strconv.Atoi(versionText)
	if parseErr != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", versionText, parseErr)
	}
	return version, nil
}

func writeSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec(`
INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(version))
	return err
}

const taskColumns = `id, user_id, title, description, priority, due_date, completed, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var (
		t         Task
		desc      sql.NullString
		due       sql.NullInt64
		completed int
		created   int64
		updated   int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &desc, &t.Priority, &due, &completed, &created, &updated); err != nil {
		return Task{}, err
	}
	t.Description = desc.String
	if due.Valid {
		dt := time.Unix(due.Int64, 0).UTC()
		t.DueDate = &dt
	}
	t.Completed = completed != 0
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	return t, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, userID string, status Status) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}
	switch status {
	case StatusPending:
		query += ` AND completed = 0`
	case StatusCompleted:
		query += ` AND completed = 1`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, userID string, id int64) (Task, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, fields Fields) (Task, error) {
	if err := fields.Validate(); err != nil {
		return Task{}, err
	}
	priority := fields.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	now := time.Now().UTC()
	var due sql.NullInt64
	if fields.DueDate != nil {
		due = sql.NullInt64{Int64: fields.DueDate.Unix(), Valid: true}
	}

	res, err := s.conn.ExecContext(ctx, `
INSERT INTO tasks (user_id, title, description, priority, due_date, completed, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		fields.UserID, strings.TrimSpace(fields.Title), nullString(fields.Description),
		string(priority), due, now.Unix(), now.Unix())
	if err != nil {
		return Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, err
	}
	return s.Get(ctx, fields.UserID, id)
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, userID string, id int64, diff Diff) (Task, error) {
	if diff.Empty() {
		return s.Get(ctx, userID, id)
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Unix()}

	if diff.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*diff.Title))
	}
	if diff.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*diff.Description))
	}
	if diff.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*diff.Priority))
	}
	if diff.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, diff.DueDate.Unix())
	} else if diff.ClearDue {
		sets = append(sets, "due_date = NULL")
	}
	if diff.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*diff.Completed))
	}

	args = append(args, id, userID)
	res, err := s.conn.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return Task{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Task{}, err
	}
	if n == 0 {
		return Task{}, ErrNotFound
	}
	return s.Get(ctx, userID, id)
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, userID string, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCompleted implements Store.
func (s *SQLiteStore) SetCompleted(ctx context.Context, userID string, id int64, done bool) (Task, error) {
	completed := done
	return s.Update(ctx, userID, id, Diff{Completed: &completed})
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)
