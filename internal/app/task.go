package app

import (
	"context"
	"fmt"

	"github.com/josephgoksu/dayplan/internal/cache"
	"github.com/josephgoksu/dayplan/internal/position"
	"github.com/josephgoksu/dayplan/internal/task"
)

// TaskApp provides every task operation with cache consistency.
//
// Reads go through the cache. Every mutation invalidates the owner's cache
// entries before returning, whether or not the backend call succeeded; a
// failed reorder may already be partially applied.
//
// Two concurrent requests of the same user are not serialized: the last
// write the backend observes wins.
type TaskApp struct {
	ctx *Context
}

// NewTaskApp creates a new task application service.
func NewTaskApp(appCtx *Context) *TaskApp {
	return &TaskApp{ctx: appCtx}
}

// allDates asks InvalidateUser to drop every date of the user.
const allDates = ""

func validateDate(date string) error {
	if err := task.Validator().Var(date, "required,datetime=2006-01-02"); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", task.ErrInvalidTask)
	}
	return nil
}

// List returns the day's tasks in display order.
func (a *TaskApp) List(ctx context.Context, userID, date string, includeArchived bool) ([]task.Task, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if tasks, ok := a.ctx.Cache.Get(userID, date, includeArchived); ok {
		return tasks, nil
	}

	gen := a.ctx.Cache.Generation(userID)
	tasks, err := a.ctx.Engine.List(ctx, userID, date, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	a.ctx.Cache.SetIfCurrent(gen, userID, date, tasks, includeArchived, 0)
	return tasks, nil
}

// Create stores a new task at the end of its day unless a position is given.
func (a *TaskApp) Create(ctx context.Context, userID string, in task.NewTask) (*task.Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	defer a.ctx.Cache.InvalidateUser(userID, in.Date)

	created, err := a.ctx.Engine.Create(ctx, userID, in)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

// Update applies a partial update. The task's date isn't known without an
// extra read, so every date of the user is invalidated.
func (a *TaskApp) Update(ctx context.Context, userID string, id int64, p task.Patch) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	defer a.ctx.Cache.InvalidateUser(userID, allDates)

	n, err := a.ctx.Store.UpdateTask(ctx, userID, id, p)
	if err != nil {
		return 0, fmt.Errorf("update task %d: %w", id, err)
	}
	return n, nil
}

// Delete removes one task.
func (a *TaskApp) Delete(ctx context.Context, userID string, id int64) (int64, error) {
	defer a.ctx.Cache.InvalidateUser(userID, allDates)

	n, err := a.ctx.Store.DeleteTask(ctx, userID, id)
	if err != nil {
		return 0, fmt.Errorf("delete task %d: %w", id, err)
	}
	return n, nil
}

// ClearAll removes every task of the user.
func (a *TaskApp) ClearAll(ctx context.Context, userID string) (int64, error) {
	defer a.ctx.Cache.InvalidateUser(userID, allDates)

	n, err := a.ctx.Store.ClearTasks(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear tasks: %w", err)
	}
	return n, nil
}

// Archive moves the day's completed tasks out of the live list.
func (a *TaskApp) Archive(ctx context.Context, userID, date string) (int64, error) {
	if err := validateDate(date); err != nil {
		return 0, err
	}
	defer a.ctx.Cache.InvalidateUser(userID, date)

	n, err := a.ctx.Store.ArchiveTasks(ctx, userID, date)
	if err != nil {
		return 0, fmt.Errorf("archive tasks: %w", err)
	}
	return n, nil
}

// Unarchive restores the named tasks.
func (a *TaskApp) Unarchive(ctx context.Context, userID string, ids []int64) (int64, error) {
	defer a.ctx.Cache.InvalidateUser(userID, allDates)

	n, err := a.ctx.Store.UnarchiveTasks(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("unarchive tasks: %w", err)
	}
	return n, nil
}

// Reorder writes the client's target order. Moves may span dates, so every
// date of the user is invalidated.
func (a *TaskApp) Reorder(ctx context.Context, userID string, moves []task.Move) (position.Result, error) {
	if err := task.ValidateMoves(moves); err != nil {
		return position.Result{}, err
	}
	defer a.ctx.Cache.InvalidateUser(userID, allDates)

	return a.ctx.Engine.Reorder(ctx, userID, moves)
}

// Health describes the active backend for operators.
type Health struct {
	Backend  string      `json:"backend"`
	Position string      `json:"position"`
	Cache    cache.Stats `json:"cache"`
}

// Health reports the backend name, what is known about ordering support, and
// cache counters.
func (a *TaskApp) Health() Health {
	return Health{
		Backend:  a.ctx.Store.Backend(),
		Position: a.ctx.Store.PositionSupport().String(),
		Cache:    a.ctx.Cache.Stats(),
	}
}
