// Package storage hides the differences between the embedded SQLite store and
// the hosted REST row store behind one task contract.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/dayplan/internal/config"
	"github.com/josephgoksu/dayplan/internal/task"
	"github.com/josephgoksu/dayplan/types"
)

// Adapter defines the contract every task backend implements.
// All operations are scoped to the owning user; a row owned by someone else
// behaves exactly like a missing row.
type Adapter interface {
	// ListTasks returns the tasks of one day ordered by position (unset last),
	// then time, then id. When the backend has no position column the order
	// falls back to time, then id, without an error.
	ListTasks(ctx context.Context, userID, date string, includeArchived bool) ([]task.Task, error)

	// CreateTask stores a new task. When in.Position is nil the task is
	// appended to its day (max position + 1, or 0 for an empty day).
	CreateTask(ctx context.Context, userID string, in task.NewTask) (*task.Task, error)

	// UpdateTask writes only the non-nil fields of p. It never touches position.
	// Returns the number of affected rows; 0 means missing or not owned.
	UpdateTask(ctx context.Context, userID string, id int64, p task.Patch) (int64, error)

	// DeleteTask removes one task and returns the affected row count.
	DeleteTask(ctx context.Context, userID string, id int64) (int64, error)

	// ClearTasks removes every task of the user.
	ClearTasks(ctx context.Context, userID string) (int64, error)

	// ArchiveTasks archives the completed, non-archived tasks of date.
	ArchiveTasks(ctx context.Context, userID, date string) (int64, error)

	// UnarchiveTasks restores the named archived tasks.
	UnarchiveTasks(ctx context.Context, userID string, ids []int64) (int64, error)

	// ProbePosition performs a no-op position write against a sentinel id.
	// It returns task.ErrPositionUnsupported when the column is missing.
	ProbePosition(ctx context.Context, userID string) error

	// ReorderTasks writes the absolute positions in moves and returns the number
	// of rows updated. Atomicity is backend specific: SQLite applies all or
	// nothing, the hosted row API may leave a failed batch partially applied.
	ReorderTasks(ctx context.Context, userID string, moves []task.Move) (int64, error)

	// PositionSupport reports what is currently known about the position column.
	PositionSupport() Capability

	// Backend returns the backend name (sqlite or hosted).
	Backend() string

	// Close releases any resources held by the store.
	Close() error
}

// Open builds the adapter selected by cfg.Backend. This is the only place the
// backend name is inspected.
func Open(ctx context.Context, cfg types.StorageConfig, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case config.BackendSQLite:
		return NewSQLiteStore(ctx, SQLiteOptions{
			Path:        cfg.SQLite.Path,
			AutoMigrate: cfg.SQLite.AutoMigrate,
			Logger:      logger,
		})
	case config.BackendHosted:
		return NewHostedStore(HostedOptions{
			URL:                cfg.Hosted.URL,
			APIKey:             cfg.Hosted.APIKey,
			Table:              cfg.Hosted.Table,
			Timeout:            cfg.Hosted.Timeout,
			ReorderConcurrency: cfg.Hosted.ReorderConcurrency,
			ReorderFunction:    cfg.Hosted.ReorderFunction,
			Logger:             logger,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
