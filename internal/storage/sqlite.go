package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/josephgoksu/dayplan/internal/config"
	"github.com/josephgoksu/dayplan/internal/task"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Adapter on an embedded SQLite database.
// Every reorder runs in a single transaction.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	position positionSupport
	logger   *slog.Logger
	now      func() time.Time
}

// SQLiteOptions configures NewSQLiteStore.
type SQLiteOptions struct {
	// Path is the database file, or ":memory:".
	Path string
	// AutoMigrate applies pending column migrations on open. When false the
	// store runs against whatever schema it finds, including tables created
	// before the position column existed.
	AutoMigrate bool
	Logger      *slog.Logger
}

// NewSQLiteStore opens (and creates if needed) the task database.
func NewSQLiteStore(ctx context.Context, opts SQLiteOptions) (*SQLiteStore, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	dsn := opts.Path
	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		// Writers take the lock at BEGIN so the append-position read and the
		// insert can't interleave with another writer.
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.Path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		db:     db,
		path:   opts.Path,
		logger: opts.Logger,
		now:    time.Now,
	}
	s.position.logger = opts.Logger
	s.position.store = config.BackendSQLite

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if opts.AutoMigrate {
		if _, err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// initSchema creates the base table if it doesn't exist. The position column
// is not part of the base table; it arrives through Migrate so that databases
// created by older releases and fresh ones converge on the same schema.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,                  -- YYYY-MM-DD
		time TEXT,                           -- HH:MM, NULL when unscheduled
		text TEXT NOT NULL,
		emoji TEXT NOT NULL DEFAULT '📝',
		priority TEXT NOT NULL DEFAULT 'medium',
		tags TEXT NOT NULL DEFAULT '[]',     -- JSON array
		completed INTEGER NOT NULL DEFAULT 0,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user_date ON tasks(user_id, date);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// columnMigration adds one column to the tasks table.
type columnMigration struct {
	column string
	ddl    string
	after  []string // run once, right after the column was added
}

var taskMigrations = []columnMigration{
	{
		column: "position",
		ddl:    "ALTER TABLE tasks ADD COLUMN position INTEGER",
		after: []string{
			`CREATE INDEX IF NOT EXISTS idx_tasks_user_date_position ON tasks(user_id, date, archived, position)`,
			// Seed positions from the time-based fallback order so existing days
			// keep the order users have been seeing.
			`UPDATE tasks SET position = (
				SELECT COUNT(*) FROM tasks t2
				WHERE t2.user_id = tasks.user_id
				  AND t2.date = tasks.date
				  AND t2.archived = tasks.archived
				  AND (COALESCE(t2.time, '99:99') < COALESCE(tasks.time, '99:99')
				       OR (COALESCE(t2.time, '99:99') = COALESCE(tasks.time, '99:99') AND t2.id < tasks.id))
			) WHERE position IS NULL`,
		},
	},
}

// Migrate adds missing columns and returns the names of the ones it added.
func (s *SQLiteStore) Migrate(ctx context.Context) ([]string, error) {
	var applied []string
	for _, m := range taskMigrations {
		exists, err := s.columnExists(ctx, "tasks", m.column)
		if err != nil {
			return applied, fmt.Errorf("inspect tasks.%s: %w", m.column, err)
		}
		if exists {
			continue
		}

		if _, err := s.db.ExecContext(ctx, m.ddl); err != nil {
			// Only ignore "duplicate column" errors (another process migrated first)
			if !strings.Contains(err.Error(), "duplicate column") {
				return applied, fmt.Errorf("task migration %s failed: %w", m.column, err)
			}
			continue
		}
		for _, stmt := range m.after {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return applied, fmt.Errorf("task migration %s follow-up failed: %w", m.column, err)
			}
		}
		applied = append(applied, m.column)
	}

	if len(applied) > 0 {
		s.position.reset()
		s.logger.Info("sqlite schema migrated", "path", s.path, "columns", applied)
	}
	return applied, nil
}

func (s *SQLiteStore) columnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, checkRowsErr(rows)
}

// Backend implements Adapter.
func (s *SQLiteStore) Backend() string { return config.BackendSQLite }

// PositionSupport implements Adapter.
func (s *SQLiteStore) PositionSupport() Capability { return s.position.load() }

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteTaskColumns = "id, user_id, date, time, text, emoji, priority, tags, completed, archived, created_at, updated_at"

// ListTasks implements Adapter.
func (s *SQLiteStore) ListTasks(ctx context.Context, userID, date string, includeArchived bool) ([]task.Task, error) {
	if !s.position.absent() {
		tasks, err := s.listTasks(ctx, userID, date, includeArchived, true)
		if err == nil {
			s.position.markSupported()
			return tasks, nil
		}
		if !isMissingPositionColumn(err) {
			return nil, err
		}
		s.position.markAbsent(err)
	}
	return s.listTasks(ctx, userID, date, includeArchived, false)
}

func (s *SQLiteStore) listTasks(ctx context.Context, userID, date string, includeArchived, withPosition bool) ([]task.Task, error) {
	query := "SELECT " + sqliteTaskColumns
	if withPosition {
		query += ", position"
	}
	query += " FROM tasks WHERE user_id = ? AND date = ?"
	if !includeArchived {
		query += " AND archived = 0"
	}
	if withPosition {
		query += " ORDER BY position IS NULL, position, time IS NULL, time, id"
	} else {
		query += " ORDER BY time IS NULL, time, id"
	}

	rows, err := s.db.QueryContext(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows, withPosition)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row rowScanner, withPosition bool) (task.Task, error) {
	var t task.Task
	var timeOfDay sql.NullString
	var tagsJSON, createdAt, updatedAt string
	var position sql.NullInt64

	dest := []any{&t.ID, &t.UserID, &t.Date, &timeOfDay, &t.Text, &t.Emoji, &t.Priority,
		&tagsJSON, &t.Completed, &t.Archived, &createdAt, &updatedAt}
	if withPosition {
		dest = append(dest, &position)
	}
	if err := row.Scan(dest...); err != nil {
		return task.Task{}, fmt.Errorf("scan task: %w", err)
	}

	t.Time = timeOfDay.String
	if position.Valid {
		p := position.Int64
		t.Position = &p
	}
	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil || t.Tags == nil {
		t.Tags = []string{}
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return t, nil
}

// CreateTask implements Adapter.
func (s *SQLiteStore) CreateTask(ctx context.Context, userID string, in task.NewTask) (*task.Task, error) {
	in.Normalize()
	now := s.now().UTC()
	t := task.Task{
		UserID:    userID,
		Date:      in.Date,
		Time:      in.Time,
		Text:      in.Text,
		Emoji:     in.Emoji,
		Priority:  in.Priority,
		Tags:      append([]string{}, in.Tags...),
		Completed: in.Completed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	withPosition := !s.position.absent()
	if withPosition {
		pos, err := appendPosition(ctx, tx, userID, in)
		switch {
		case err == nil:
			t.Position = &pos
		case isMissingPositionColumn(err):
			s.position.markAbsent(err)
			withPosition = false
		default:
			return nil, err
		}
	}

	id, err := insertTask(ctx, tx, &t, withPosition)
	if err != nil && withPosition && isMissingPositionColumn(err) {
		s.position.markAbsent(err)
		t.Position = nil
		id, err = insertTask(ctx, tx, &t, false)
	}
	if err != nil {
		return nil, err
	}
	if withPosition {
		s.position.markSupported()
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit task: %w", err)
	}
	t.ID = id
	return &t, nil
}

// appendPosition returns the caller's position, or max+1 of the live group.
func appendPosition(ctx context.Context, tx *sql.Tx, userID string, in task.NewTask) (int64, error) {
	if in.Position != nil {
		return *in.Position, nil
	}
	var next int64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0) FROM tasks
		WHERE user_id = ? AND date = ? AND archived = 0
	`, userID, in.Date).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("read max position: %w", err)
	}
	return next, nil
}

func insertTask(ctx context.Context, tx *sql.Tx, t *task.Task, withPosition bool) (int64, error) {
	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}

	cols := "user_id, date, time, text, emoji, priority, tags, completed, archived, created_at, updated_at"
	args := []any{t.UserID, t.Date, nullString(t.Time), t.Text, t.Emoji, string(t.Priority), string(tagsJSON),
		boolInt(t.Completed), boolInt(t.Archived),
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano)}
	if withPosition {
		cols += ", position"
		args = append(args, *t.Position)
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO tasks ("+cols+") VALUES ("+placeholders(len(args))+")", args...)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert task id: %w", err)
	}
	return id, nil
}

// UpdateTask implements Adapter.
func (s *SQLiteStore) UpdateTask(ctx context.Context, userID string, id int64, p task.Patch) (int64, error) {
	// Build dynamic update based on provided fields
	sets := []string{}
	args := []any{}

	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, *p.Date)
	}
	if p.Time != nil {
		sets = append(sets, "time = ?")
		args = append(args, nullString(*p.Time))
	}
	if p.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *p.Text)
	}
	if p.Emoji != nil {
		sets = append(sets, "emoji = ?")
		args = append(args, *p.Emoji)
	}
	if p.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*p.Priority))
	}
	if p.Tags != nil {
		tags := *p.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return 0, fmt.Errorf("marshal tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}
	if p.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolInt(*p.Completed))
	}
	if len(sets) == 0 {
		return 0, task.ErrNoFieldsToUpdate
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().UTC().Format(time.RFC3339Nano), id, userID)

	return s.exec(ctx, "update task", "UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?", args...)
}

// DeleteTask implements Adapter.
func (s *SQLiteStore) DeleteTask(ctx context.Context, userID string, id int64) (int64, error) {
	return s.exec(ctx, "delete task", "DELETE FROM tasks WHERE id = ? AND user_id = ?", id, userID)
}

// ClearTasks implements Adapter.
func (s *SQLiteStore) ClearTasks(ctx context.Context, userID string) (int64, error) {
	return s.exec(ctx, "clear tasks", "DELETE FROM tasks WHERE user_id = ?", userID)
}

// ArchiveTasks implements Adapter.
func (s *SQLiteStore) ArchiveTasks(ctx context.Context, userID, date string) (int64, error) {
	return s.exec(ctx, "archive tasks", `
		UPDATE tasks SET archived = 1, updated_at = ?
		WHERE user_id = ? AND date = ? AND completed = 1 AND archived = 0
	`, s.now().UTC().Format(time.RFC3339Nano), userID, date)
}

// UnarchiveTasks implements Adapter.
func (s *SQLiteStore) UnarchiveTasks(ctx context.Context, userID string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{s.now().UTC().Format(time.RFC3339Nano), userID}
	for _, id := range ids {
		args = append(args, id)
	}
	return s.exec(ctx, "unarchive tasks", `
		UPDATE tasks SET archived = 0, updated_at = ?
		WHERE user_id = ? AND archived = 1 AND id IN (`+placeholders(len(ids))+`)
	`, args...)
}

// ProbePosition implements Adapter.
func (s *SQLiteStore) ProbePosition(ctx context.Context, userID string) error {
	if s.position.absent() {
		return task.ErrPositionUnsupported
	}
	_, err := s.db.ExecContext(ctx, "UPDATE tasks SET position = 0 WHERE id = ? AND user_id = ?", sentinelTaskID, userID)
	if err != nil {
		return s.position.observe(fmt.Errorf("probe position: %w", err))
	}
	s.position.markSupported()
	return nil
}

// ReorderTasks implements Adapter. All moves commit together or not at all.
func (s *SQLiteStore) ReorderTasks(ctx context.Context, userID string, moves []task.Move) (int64, error) {
	if len(moves) == 0 {
		return 0, nil
	}
	if s.position.absent() {
		return 0, task.ErrPositionUnsupported
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "UPDATE tasks SET position = ?, updated_at = ? WHERE id = ? AND user_id = ?")
	if err != nil {
		return 0, s.position.observe(fmt.Errorf("prepare reorder: %w", err))
	}
	defer func() { _ = stmt.Close() }()

	now := s.now().UTC().Format(time.RFC3339Nano)
	var updated int64
	for _, m := range moves {
		res, err := stmt.ExecContext(ctx, m.Position, now, m.ID, userID)
		if err != nil {
			return 0, s.position.observe(fmt.Errorf("set position of task %d: %w", m.ID, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("reorder rows affected: %w", err)
		}
		updated += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reorder: %w", err)
	}
	s.position.markSupported()
	return updated, nil
}

func (s *SQLiteStore) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return affected, nil
}
