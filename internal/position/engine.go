// Package position keeps the per-user, per-day display order of tasks.
package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/dayplan/internal/storage"
	"github.com/josephgoksu/dayplan/internal/task"
)

// Result reports the outcome of a reorder.
// Updated below Requested means some ids were missing or owned by someone else.
type Result struct {
	Requested int   `json:"requested"`
	Updated   int64 `json:"updated"`
}

// Skipped returns the number of requested moves that changed no row.
func (r Result) Skipped() int64 {
	if n := int64(r.Requested) - r.Updated; n > 0 {
		return n
	}
	return 0
}

// Engine turns a client's target order into position writes and serves reads
// with whatever ordering the backend supports.
type Engine struct {
	store  storage.Adapter
	logger *slog.Logger
}

// NewEngine creates a new position Engine.
func NewEngine(store storage.Adapter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// List returns the day's tasks in display order. A backend without a position
// column yields time order; the caller can't tell the difference.
func (e *Engine) List(ctx context.Context, userID, date string, includeArchived bool) ([]task.Task, error) {
	return e.store.ListTasks(ctx, userID, date, includeArchived)
}

// Create appends a task to its day unless in.Position is set.
func (e *Engine) Create(ctx context.Context, userID string, in task.NewTask) (*task.Task, error) {
	return e.store.CreateTask(ctx, userID, in)
}

// Reorder writes the absolute positions in moves.
//
// The capability is probed before any write so a schema without a position
// column fails with task.ErrPositionUnsupported and nothing is written.
func (e *Engine) Reorder(ctx context.Context, userID string, moves []task.Move) (Result, error) {
	moves = Dedupe(moves)
	res := Result{Requested: len(moves)}
	if len(moves) == 0 {
		return res, nil
	}

	if e.store.PositionSupport() == storage.CapabilityAbsent {
		return res, task.ErrPositionUnsupported
	}
	if err := e.store.ProbePosition(ctx, userID); err != nil {
		if errors.Is(err, task.ErrPositionUnsupported) {
			return res, task.ErrPositionUnsupported
		}
		return res, fmt.Errorf("probe position: %w", err)
	}

	updated, err := e.store.ReorderTasks(ctx, userID, moves)
	res.Updated = updated
	if err != nil {
		if errors.Is(err, task.ErrPositionUnsupported) {
			return res, task.ErrPositionUnsupported
		}
		e.logger.Error("reorder failed",
			"user", userID, "backend", e.store.Backend(),
			"requested", res.Requested, "applied", updated, "error", err)
		return res, fmt.Errorf("reorder: %w", err)
	}

	if skipped := res.Skipped(); skipped > 0 {
		e.logger.Debug("reorder skipped unknown tasks", "user", userID, "skipped", skipped)
	}
	return res, nil
}

// Dedupe collapses repeated ids. The last position for an id wins and the
// order of first appearance is kept.
func Dedupe(moves []task.Move) []task.Move {
	if len(moves) < 2 {
		return moves
	}
	index := make(map[int64]int, len(moves))
	out := make([]task.Move, 0, len(moves))
	for _, m := range moves {
		if i, ok := index[m.ID]; ok {
			out[i].Position = m.Position
			continue
		}
		index[m.ID] = len(out)
		out = append(out, m)
	}
	return out
}
