package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/josephgoksu/dayplan/internal/task"
	"github.com/josephgoksu/dayplan/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testDay = "2025-03-14"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openSQLite(t *testing.T, path string, autoMigrate bool) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), SQLiteOptions{
		Path:        path,
		AutoMigrate: autoMigrate,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	return openSQLite(t, filepath.Join(t.TempDir(), "tasks.db"), true)
}

// newLegacyStore opens a database whose tasks table predates the position column.
func newLegacyStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	return openSQLite(t, path, false), path
}

func mustCreate(t *testing.T, s Adapter, user, text, tod string) *task.Task {
	t.Helper()
	created, err := s.CreateTask(context.Background(), user, task.NewTask{Date: testDay, Text: text, Time: tod})
	require.NoError(t, err)
	return created
}

func texts(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Text
	}
	return out
}

func listDay(t *testing.T, s Adapter, user string, includeArchived bool) []task.Task {
	t.Helper()
	tasks, err := s.ListTasks(context.Background(), user, testDay, includeArchived)
	require.NoError(t, err)
	return tasks
}

func TestSQLiteStore_CreateAppendsInCreationOrder(t *testing.T) {
	s := newTestStore(t)

	a := mustCreate(t, s, "u1", "Write report", "15:00")
	b := mustCreate(t, s, "u1", "Call client", "09:00")
	c := mustCreate(t, s, "u1", "Review PR", "")

	require.NotNil(t, a.Position)
	assert.Equal(t, int64(0), *a.Position)
	assert.Equal(t, int64(1), *b.Position)
	assert.Equal(t, int64(2), *c.Position)

	// Position wins over time of day.
	assert.Equal(t, []string{"Write report", "Call client", "Review PR"}, texts(listDay(t, s, "u1", false)))
	assert.Equal(t, CapabilitySupported, s.PositionSupport())
}

func TestSQLiteStore_CreateDefaults(t *testing.T) {
	s := newTestStore(t)

	created := mustCreate(t, s, "u1", "Stretch", "")
	assert.Equal(t, task.DefaultEmoji, created.Emoji)
	assert.Equal(t, task.PriorityMedium, created.Priority)
	assert.Equal(t, []string{}, created.Tags)
	assert.NotZero(t, created.ID)

	got := listDay(t, s, "u1", false)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)
	assert.Empty(t, got[0].Time)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestSQLiteStore_CreateWithExplicitPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "u1", "first", "")
	pos := int64(7)
	created, err := s.CreateTask(ctx, "u1", task.NewTask{Date: testDay, Text: "pinned", Position: &pos})
	require.NoError(t, err)
	assert.Equal(t, int64(7), *created.Position)

	next := mustCreate(t, s, "u1", "after", "")
	assert.Equal(t, int64(8), *next.Position)
}

func TestSQLiteStore_ReorderPermutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, "u1", "A", "")
	b := mustCreate(t, s, "u1", "B", "")
	c := mustCreate(t, s, "u1", "C", "")
	d := mustCreate(t, s, "u1", "D", "")

	n, err := s.ReorderTasks(ctx, "u1", []task.Move{
		{ID: d.ID, Position: 0},
		{ID: b.ID, Position: 1},
		{ID: a.ID, Position: 2},
		{ID: c.ID, Position: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, []string{"D", "B", "A", "C"}, texts(listDay(t, s, "u1", false)))
}

func TestSQLiteStore_ReorderSkipsMissingAndForeignTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, "u1", "A", "")
	b := mustCreate(t, s, "u1", "B", "")
	other := mustCreate(t, s, "u2", "theirs", "")

	n, err := s.ReorderTasks(ctx, "u1", []task.Move{
		{ID: b.ID, Position: 0},
		{ID: a.ID, Position: 1},
		{ID: 999999, Position: 2},
		{ID: other.ID, Position: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "missing and foreign ids are not counted")
	assert.Equal(t, []string{"B", "A"}, texts(listDay(t, s, "u1", false)))

	theirs := listDay(t, s, "u2", false)
	require.Len(t, theirs, 1)
	assert.Equal(t, int64(0), *theirs[0].Position, "other user's row must not move")
}

func TestSQLiteStore_ReorderRollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, "u1", "A", "")
	b := mustCreate(t, s, "u1", "B", "")
	c := mustCreate(t, s, "u1", "C", "")

	_, err := s.db.ExecContext(ctx, `
		CREATE TRIGGER reject_position BEFORE UPDATE OF position ON tasks
		WHEN NEW.position = 99
		BEGIN SELECT RAISE(ABORT, 'position rejected'); END`)
	require.NoError(t, err)

	n, err := s.ReorderTasks(ctx, "u1", []task.Move{
		{ID: c.ID, Position: 0},
		{ID: a.ID, Position: 99},
		{ID: b.ID, Position: 2},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, task.ErrPositionUnsupported)
	assert.Zero(t, n)

	// The first move must have been rolled back with the rest.
	assert.Equal(t, []string{"A", "B", "C"}, texts(listDay(t, s, "u1", false)))
	assert.Equal(t, CapabilitySupported, s.PositionSupport())
}

func TestSQLiteStore_ReorderEmpty(t *testing.T) {
	s := newTestStore(t)
	n, err := s.ReorderTasks(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStore_ConcurrentCreatesGetDistinctPositions(t *testing.T) {
	s := newTestStore(t)
	const n = 40

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := s.CreateTask(context.Background(), "u1", task.NewTask{Date: testDay, Text: fmt.Sprintf("task %d", i)})
			return err
		})
	}
	require.NoError(t, g.Wait())

	got := listDay(t, s, "u1", false)
	require.Len(t, got, n)
	seen := make(map[int64]bool, n)
	for _, tk := range got {
		require.NotNil(t, tk.Position)
		assert.False(t, seen[*tk.Position], "position %d assigned twice", *tk.Position)
		seen[*tk.Position] = true
	}
	for p := int64(0); p < n; p++ {
		assert.True(t, seen[p], "positions form 0..%d", n-1)
	}
}

func TestSQLiteStore_UpdateOnlySuppliedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "u1", "A", "")
	created, err := s.CreateTask(ctx, "u1", task.NewTask{
		Date: testDay, Text: "B", Time: "08:00", Priority: task.PriorityHigh, Tags: []string{"work"},
	})
	require.NoError(t, err)

	text := "B (edited)"
	done := true
	n, err := s.UpdateTask(ctx, "u1", created.ID, task.Patch{Text: &text, Completed: &done})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got := listDay(t, s, "u1", false)
	require.Len(t, got, 2)
	edited := got[1]
	assert.Equal(t, "B (edited)", edited.Text)
	assert.True(t, edited.Completed)
	assert.Equal(t, "08:00", edited.Time)
	assert.Equal(t, task.PriorityHigh, edited.Priority)
	assert.Equal(t, []string{"work"}, edited.Tags)
	assert.Equal(t, int64(1), *edited.Position, "edits never move a task")
}

func TestSQLiteStore_UpdateClearsTime(t *testing.T) {
	s := newTestStore(t)
	created := mustCreate(t, s, "u1", "A", "10:30")

	empty := ""
	_, err := s.UpdateTask(context.Background(), "u1", created.ID, task.Patch{Time: &empty})
	require.NoError(t, err)
	assert.Empty(t, listDay(t, s, "u1", false)[0].Time)
}

func TestSQLiteStore_UpdateEmptyPatch(t *testing.T) {
	s := newTestStore(t)
	created := mustCreate(t, s, "u1", "A", "")

	_, err := s.UpdateTask(context.Background(), "u1", created.ID, task.Patch{})
	assert.ErrorIs(t, err, task.ErrNoFieldsToUpdate)
}

func TestSQLiteStore_OwnershipIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	theirs := mustCreate(t, s, "owner", "private", "")

	text := "hijacked"
	n, err := s.UpdateTask(ctx, "intruder", theirs.ID, task.Patch{Text: &text})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.DeleteTask(ctx, "intruder", theirs.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.ReorderTasks(ctx, "intruder", []task.Move{{ID: theirs.ID, Position: 5}})
	require.NoError(t, err)
	assert.Zero(t, n)

	got := listDay(t, s, "owner", false)
	require.Len(t, got, 1)
	assert.Equal(t, "private", got[0].Text)
	assert.Equal(t, int64(0), *got[0].Position)
	assert.Empty(t, listDay(t, s, "intruder", true))
}

func TestSQLiteStore_DeleteAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, "u1", "A", "")
	mustCreate(t, s, "u1", "B", "")
	mustCreate(t, s, "u2", "C", "")

	n, err := s.DeleteTask(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteTask(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "second delete finds nothing")

	n, err = s.ClearTasks(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, listDay(t, s, "u1", true))
	assert.Len(t, listDay(t, s, "u2", true), 1)
}

func TestSQLiteStore_ArchiveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "u1", "open", "")
	n, err := s.ArchiveTasks(ctx, "u1", testDay)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing completed")

	done := mustCreate(t, s, "u1", "done", "")
	yes := true
	_, err = s.UpdateTask(ctx, "u1", done.ID, task.Patch{Completed: &yes})
	require.NoError(t, err)

	n, err = s.ArchiveTasks(ctx, "u1", testDay)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.ArchiveTasks(ctx, "u1", testDay)
	require.NoError(t, err)
	assert.Zero(t, n, "already archived")

	assert.Equal(t, []string{"open"}, texts(listDay(t, s, "u1", false)))
	assert.Equal(t, []string{"open", "done"}, texts(listDay(t, s, "u1", true)))
}

func TestSQLiteStore_ArchivedTasksLeaveLiveSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, "u1", "A", "")
	b := mustCreate(t, s, "u1", "B", "")
	yes := true
	_, err := s.UpdateTask(ctx, "u1", b.ID, task.Patch{Completed: &yes})
	require.NoError(t, err)
	_, err = s.ArchiveTasks(ctx, "u1", testDay)
	require.NoError(t, err)

	c := mustCreate(t, s, "u1", "C", "")
	assert.Equal(t, *a.Position+1, *c.Position, "archived rows don't count toward the append position")

	all := listDay(t, s, "u1", true)
	require.Len(t, all, 3)
	for _, tk := range all {
		if tk.ID == b.ID {
			assert.True(t, tk.Archived)
			assert.Equal(t, int64(1), *tk.Position, "archived tasks keep their position")
		}
	}
}

func TestSQLiteStore_UnarchiveNamedOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, "u1", "A", "")
	b := mustCreate(t, s, "u1", "B", "")
	c := mustCreate(t, s, "u1", "C", "")
	yes := true
	for _, id := range []int64{a.ID, b.ID} {
		_, err := s.UpdateTask(ctx, "u1", id, task.Patch{Completed: &yes})
		require.NoError(t, err)
	}
	_, err := s.ArchiveTasks(ctx, "u1", testDay)
	require.NoError(t, err)

	n, err := s.UnarchiveTasks(ctx, "u1", []int64{a.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "c was never archived")

	assert.Equal(t, []string{"A", "C"}, texts(listDay(t, s, "u1", false)))

	n, err = s.UnarchiveTasks(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStore_LegacySchemaFallsBackToTimeOrder(t *testing.T) {
	s, _ := newLegacyStore(t)
	ctx := context.Background()

	late := mustCreate(t, s, "u1", "late", "18:00")
	mustCreate(t, s, "u1", "early", "07:30")
	mustCreate(t, s, "u1", "anytime", "")
	assert.Nil(t, late.Position)
	assert.Equal(t, CapabilityAbsent, s.PositionSupport())

	got := listDay(t, s, "u1", false)
	assert.Equal(t, []string{"early", "late", "anytime"}, texts(got))
	for _, tk := range got {
		assert.Nil(t, tk.Position)
	}

	assert.ErrorIs(t, s.ProbePosition(ctx, "u1"), task.ErrPositionUnsupported)
	_, err := s.ReorderTasks(ctx, "u1", []task.Move{{ID: late.ID, Position: 0}})
	assert.ErrorIs(t, err, task.ErrPositionUnsupported)
}

func TestSQLiteStore_ProbeDetectsMissingColumn(t *testing.T) {
	s, _ := newLegacyStore(t)

	require.Equal(t, CapabilityUnknown, s.PositionSupport())
	err := s.ProbePosition(context.Background(), "u1")
	assert.ErrorIs(t, err, task.ErrPositionUnsupported)
	assert.Equal(t, CapabilityAbsent, s.PositionSupport())
}

func TestSQLiteStore_MigrateBackfillsTimeOrder(t *testing.T) {
	s, _ := newLegacyStore(t)
	ctx := context.Background()

	mustCreate(t, s, "u1", "late", "18:00")
	mustCreate(t, s, "u1", "early", "07:30")
	mustCreate(t, s, "u1", "anytime", "")
	mustCreate(t, s, "u2", "other", "12:00")
	require.Equal(t, CapabilityAbsent, s.PositionSupport())

	applied, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"position"}, applied)
	assert.Equal(t, CapabilityUnknown, s.PositionSupport(), "migration forgets the absent state")

	got := listDay(t, s, "u1", false)
	assert.Equal(t, []string{"early", "late", "anytime"}, texts(got))
	for i, tk := range got {
		require.NotNil(t, tk.Position)
		assert.Equal(t, int64(i), *tk.Position)
	}
	assert.Equal(t, int64(0), *listDay(t, s, "u2", false)[0].Position)

	require.NoError(t, s.ProbePosition(ctx, "u1"))
	assert.Equal(t, CapabilitySupported, s.PositionSupport())

	applied, err = s.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	s := openSQLite(t, path, true)
	mustCreate(t, s, "u1", "persisted", "")
	require.NoError(t, s.Close())

	reopened := openSQLite(t, path, true)
	assert.Equal(t, []string{"persisted"}, texts(listDay(t, reopened, "u1", false)))
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s := openSQLite(t, ":memory:", true)
	mustCreate(t, s, "u1", "ephemeral", "")
	assert.Len(t, listDay(t, s, "u1", false), 1)
}

func TestOpen_SelectsBackend(t *testing.T) {
	_, err := Open(context.Background(), typesStorage("nope"), discardLogger())
	assert.Error(t, err)

	cfg := typesStorage("sqlite")
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "tasks.db")
	cfg.SQLite.AutoMigrate = true
	a, err := Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "sqlite", a.Backend())
}

func typesStorage(backend string) types.StorageConfig {
	return types.StorageConfig{Backend: backend}
}
