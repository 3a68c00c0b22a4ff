package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pomo/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

// --- Task CRUD ---

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &models.Task{Text: "write report", TaskDate: "2026-03-02"}
	require.NoError(t, s.CreateTask(ctx, task))
	assert.NotEmpty(t, task.ID)
	assert.False(t, task.CreatedAt.IsZero())

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "write report", got.Text)
	assert.Equal(t, "2026-03-02", got.TaskDate)
	assert.False(t, got.Completed)
	assert.Nil(t, got.CompletedAt)

	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	got.Text = "write the report"
	got.Priority = models.PriorityHigh
	got.SetCompleted(true, now)
	require.NoError(t, s.UpdateTask(ctx, got))

	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "write the report", got.Text)
	assert.True(t, got.Completed)
	assert.True(t, got.IsHighPriority())
	require.NotNil(t, got.CompletedAt)
	assert.True(t, now.Equal(*got.CompletedAt))

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, task.ID), ErrNotFound)
}

func TestUpdateTask_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateTask(context.Background(), &models.Task{ID: "missing", Text: "x", TaskDate: "2026-03-02"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTasks_Ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	mk := func(text string, priority int, completed bool, offset time.Duration) {
		task := &models.Task{Text: text, TaskDate: "2026-03-02", Priority: priority, CreatedAt: base.Add(offset)}
		if completed {
			task.SetCompleted(true, base.Add(offset+time.Hour))
		}
		require.NoError(t, s.CreateTask(ctx, task))
	}
	mk("normal open", models.PriorityNormal, false, 0)
	mk("high done", models.PriorityHigh, true, time.Minute)
	mk("high open", models.PriorityHigh, false, 2*time.Minute)
	mk("normal done", models.PriorityNormal, true, 3*time.Minute)
	require.NoError(t, s.CreateTask(ctx, &models.Task{Text: "tomorrow", TaskDate: "2026-03-03"}))

	tasks, err := s.ListTasks(ctx, "2026-03-02")
	require.NoError(t, err)
	var texts []string
	for _, task := range tasks {
		texts = append(texts, task.Text)
	}
	assert.Equal(t, []string{"high open", "high done", "normal open", "normal done"}, texts)

	open, err := s.ListTasksByCompletion(ctx, "2026-03-02", false)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "high open", open[0].Text)

	done, err := s.ListTasksByCompletion(ctx, "2026-03-02", true)
	require.NoError(t, err)
	require.Len(t, done, 2)
	assert.Equal(t, "normal done", done[0].Text)

	total, completed, err := s.CountTasks(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, completed)
}

func TestListOverdueTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTask(ctx, &models.Task{Text: "old open", TaskDate: "2026-02-27"}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{Text: "older open", TaskDate: "2026-02-20"}))
	done := &models.Task{Text: "old done", TaskDate: "2026-02-27"}
	done.SetCompleted(true, time.Now())
	require.NoError(t, s.CreateTask(ctx, done))
	require.NoError(t, s.CreateTask(ctx, &models.Task{Text: "today", TaskDate: "2026-03-02"}))

	tasks, err := s.ListOverdueTasks(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "old open", tasks[0].Text)
	assert.Equal(t, "older open", tasks[1].Text)
}

func TestDeleteTasksForDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTask(ctx, &models.Task{Text: "a", TaskDate: "2026-03-02"}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{Text: "b", TaskDate: "2026-03-02"}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{Text: "c", TaskDate: "2026-03-03"}))

	n, err := s.DeleteTasksForDate(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	tasks, err := s.ListTasks(ctx, "2026-03-03")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

// --- Sessions ---

func TestRecordAndListSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	record := func(st models.SessionType, start time.Time, seconds int) *models.CompletedSession {
		cs := &models.CompletedSession{
			SessionType:     st,
			StartTime:       start,
			EndTime:         start.Add(time.Duration(seconds) * time.Second),
			DurationSeconds: seconds,
			Source:          models.SourceLocal,
		}
		require.NoError(t, s.RecordSession(ctx, cs))
		return cs
	}
	first := record(models.SessionWork, day.Add(9*time.Hour), 1500)
	record(models.SessionShortBreak, day.Add(9*time.Hour+25*time.Minute), 300)
	record(models.SessionWork, day.Add(10*time.Hour+500*time.Millisecond), 1500)
	record(models.SessionWork, day.Add(24*time.Hour+9*time.Hour), 1500)

	assert.NotEmpty(t, first.ID)

	all, err := s.ListSessions(ctx, SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	work, err := s.ListSessions(ctx, SessionFilter{Type: models.SessionWork, From: day, To: day.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, work, 2)
	// Most recent first.
	assert.True(t, work[0].StartTime.After(work[1].StartTime))
	assert.Equal(t, day.Add(10*time.Hour), work[0].StartTime.UTC())

	got, err := s.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionWork, got.SessionType)
	assert.Equal(t, models.SourceLocal, got.Source)
	assert.Equal(t, 1500, got.DurationSeconds)
	assert.Equal(t, 25, got.DurationMinutes())

	require.NoError(t, s.DeleteSession(ctx, first.ID))
	_, err = s.GetSession(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, first.ID), ErrNotFound)
}

func TestRecordSession_DefaultsAndValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cs := &models.CompletedSession{SessionType: models.SessionWork, StartTime: time.Now(), EndTime: time.Now(), DurationSeconds: 60}
	require.NoError(t, s.RecordSession(ctx, cs))
	assert.Equal(t, models.SourceRemote, cs.Source)

	err := s.RecordSession(ctx, &models.CompletedSession{SessionType: "NAP"})
	assert.Error(t, err)
}
