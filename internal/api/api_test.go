package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/pomodoro"
	"github.com/joescharf/pomo/internal/progress"
	"github.com/joescharf/pomo/internal/store"
)

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func setupTestServer(t *testing.T) (http.Handler, store.Store, *clockwork.FakeClock) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	clock := clockwork.NewFakeClockAt(testNow)
	svc := pomodoro.NewService(clock, s, models.DefaultSettings(), zerolog.Nop())
	pb := progress.NewBuilder(s, clock, time.UTC)
	srv := NewServer(s, svc, pb, clock, zerolog.Nop())

	return srv.Router(), s, clock
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestTimerStatus_Default(t *testing.T) {
	h, _, _ := setupTestServer(t)

	w := do(t, h, "GET", "/api/timer/status", "")
	assert.Equal(t, http.StatusOK, w.Code)

	snap := decode[models.Snapshot](t, w)
	assert.Equal(t, models.SessionWork, snap.SessionType)
	assert.Equal(t, models.StateStopped, snap.State)
	assert.Equal(t, 1500, snap.TotalDurationSeconds)
	assert.Equal(t, 1500, snap.RemainingSeconds)
	assert.Empty(t, snap.Source)
}

func TestTimerLifecycle_API(t *testing.T) {
	h, s, clock := setupTestServer(t)

	w := do(t, h, "POST", "/api/timer/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StateRunning, decode[models.Snapshot](t, w).State)

	clock.Advance(10 * time.Minute)
	w = do(t, h, "POST", "/api/timer/pause", "")
	snap := decode[models.Snapshot](t, w)
	assert.Equal(t, models.StatePaused, snap.State)
	assert.Equal(t, 900, snap.RemainingSeconds)

	w = do(t, h, "POST", "/api/timer/complete", "")
	snap = decode[models.Snapshot](t, w)
	assert.Equal(t, models.SessionShortBreak, snap.SessionType)
	assert.Equal(t, 1, snap.CompletedWorkSessions)

	sessions, err := s.ListSessions(context.Background(), store.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionWork, sessions[0].SessionType)

	w = do(t, h, "POST", "/api/timer/reset", "")
	snap = decode[models.Snapshot](t, w)
	assert.Equal(t, models.SessionWork, snap.SessionType)
	assert.Equal(t, 0, snap.CompletedWorkSessions)
}

func TestTimerStop_API(t *testing.T) {
	h, _, clock := setupTestServer(t)

	do(t, h, "POST", "/api/timer/start", "")
	clock.Advance(time.Minute)
	w := do(t, h, "POST", "/api/timer/stop", "")
	snap := decode[models.Snapshot](t, w)
	assert.Equal(t, models.StateStopped, snap.State)
	assert.Equal(t, snap.TotalDurationSeconds, snap.RemainingSeconds)
}

func TestSettings_API(t *testing.T) {
	h, _, _ := setupTestServer(t)

	w := do(t, h, "GET", "/api/timer/settings", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DefaultSettings(), decode[models.Settings](t, w))

	w = do(t, h, "PUT", "/api/timer/settings",
		`{"workDurationSeconds":3000,"shortBreakDurationSeconds":600,"longBreakDurationSeconds":1200}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Settings](t, w)
	assert.Equal(t, 3000, got.WorkDurationSeconds)
	assert.Equal(t, 4, got.LongBreakInterval)

	w = do(t, h, "GET", "/api/timer/status", "")
	assert.Equal(t, 3000, decode[models.Snapshot](t, w).TotalDurationSeconds)
}

func TestSettings_API_Invalid(t *testing.T) {
	h, _, _ := setupTestServer(t)

	w := do(t, h, "PUT", "/api/timer/settings",
		`{"workDurationSeconds":30,"shortBreakDurationSeconds":300,"longBreakDurationSeconds":900}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid timer settings")

	w = do(t, h, "PUT", "/api/timer/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTasks_Empty(t *testing.T) {
	h, _, _ := setupTestServer(t)

	w := do(t, h, "GET", "/api/tasks", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestTaskCRUD_API(t *testing.T) {
	h, _, _ := setupTestServer(t)

	// Create
	w := do(t, h, "POST", "/api/tasks", `{"text":"  write report  "}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[models.Task](t, w)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "write report", created.Text)
	assert.Equal(t, "2026-03-10", created.TaskDate)

	// Get
	w = do(t, h, "GET", "/api/tasks/task/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[models.Task](t, w).ID)

	// Update
	w = do(t, h, "PUT", "/api/tasks/"+created.ID, `{"text":"write summary"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "write summary", decode[models.Task](t, w).Text)

	// Toggle
	w = do(t, h, "PATCH", "/api/tasks/"+created.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	toggled := decode[models.Task](t, w)
	assert.True(t, toggled.Completed)
	require.NotNil(t, toggled.CompletedAt)

	w = do(t, h, "PATCH", "/api/tasks/"+created.ID+"/toggle", "")
	toggled = decode[models.Task](t, w)
	assert.False(t, toggled.Completed)
	assert.Nil(t, toggled.CompletedAt)

	// Priority
	w = do(t, h, "PATCH", "/api/tasks/"+created.ID+"/priority", `{"priority":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.Task](t, w).IsHighPriority())

	// Complete
	w = do(t, h, "PATCH", "/api/tasks/"+created.ID+"/complete", "")
	assert.True(t, decode[models.Task](t, w).Completed)

	// List
	w = do(t, h, "GET", "/api/tasks", "")
	assert.Len(t, decode[[]models.Task](t, w), 1)

	// Delete
	w = do(t, h, "DELETE", "/api/tasks/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, "GET", "/api/tasks/task/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTask_Validation(t *testing.T) {
	h, _, _ := setupTestServer(t)

	w := do(t, h, "POST", "/api/tasks", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/api/tasks", `{"text":"ok","priority":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/api/tasks/not-a-date", `{"text":"ok"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/api/tasks", `{bad`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTasksForDate_API(t *testing.T) {
	h, _, _ := setupTestServer(t)

	w := do(t, h, "POST", "/api/tasks/2026-03-09", `{"text":"yesterday"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	do(t, h, "POST", "/api/tasks", `{"text":"today"}`)

	w = do(t, h, "GET", "/api/tasks/2026-03-09", "")
	tasks := decode[[]models.Task](t, w)
	require.Len(t, tasks, 1)
	assert.Equal(t, "yesterday", tasks[0].Text)

	w = do(t, h, "GET", "/api/tasks/overdue", "")
	overdue := decode[[]models.Task](t, w)
	require.Len(t, overdue, 1)
	assert.Equal(t, "yesterday", overdue[0].Text)

	w = do(t, h, "GET", "/api/tasks/bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskStatsAndClear_API(t *testing.T) {
	h, _, _ := setupTestServer(t)

	for _, text := range []string{"a", "b", "c", "d"} {
		do(t, h, "POST", "/api/tasks", `{"text":"`+text+`"}`)
	}
	w := do(t, h, "GET", "/api/tasks", "")
	tasks := decode[[]models.Task](t, w)
	require.Len(t, tasks, 4)
	do(t, h, "PATCH", "/api/tasks/"+tasks[0].ID+"/complete", "")

	w = do(t, h, "GET", "/api/tasks/stats", "")
	stats := decode[models.TaskStats](t, w)
	assert.Equal(t, 4, stats.TotalTasks)
	assert.Equal(t, 1, stats.CompletedTasks)
	assert.Equal(t, 3, stats.IncompleteTasks)
	assert.InDelta(t, 25.0, stats.CompletionRate, 0.001)

	w = do(t, h, "GET", "/api/tasks/incomplete", "")
	assert.Len(t, decode[[]models.Task](t, w), 3)
	w = do(t, h, "GET", "/api/tasks/completed", "")
	assert.Len(t, decode[[]models.Task](t, w), 1)

	w = do(t, h, "DELETE", "/api/tasks/clear", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, "GET", "/api/tasks", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSessions_API(t *testing.T) {
	h, s, _ := setupTestServer(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	work := &models.CompletedSession{
		SessionType: models.SessionWork, StartTime: start, EndTime: start.Add(25 * time.Minute),
		DurationSeconds: 1500, Source: models.SourceLocal,
	}
	brk := &models.CompletedSession{
		SessionType: models.SessionShortBreak, StartTime: start.Add(25 * time.Minute), EndTime: start.Add(30 * time.Minute),
		DurationSeconds: 300, Source: models.SourceLocal,
	}
	require.NoError(t, s.RecordSession(ctx, work))
	require.NoError(t, s.RecordSession(ctx, brk))

	w := do(t, h, "GET", "/api/sessions", "")
	assert.Len(t, decode[[]models.CompletedSession](t, w), 2)

	w = do(t, h, "GET", "/api/sessions/work/2026-03-10", "")
	assert.Len(t, decode[[]models.CompletedSession](t, w), 1)

	w = do(t, h, "GET", "/api/sessions/stats/2026-03-10", "")
	stats := decode[models.ProductivityStats](t, w)
	assert.Equal(t, 1, stats.SessionCount)
	assert.InDelta(t, 25.0/60, stats.TotalHours, 0.001)

	w = do(t, h, "GET", "/api/sessions/month/2026/3", "")
	assert.Len(t, decode[[]models.CompletedSession](t, w), 2)
	w = do(t, h, "GET", "/api/sessions/month/2026/4", "")
	assert.JSONEq(t, `[]`, w.Body.String())
	w = do(t, h, "GET", "/api/sessions/month/2026/13", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "GET", "/api/sessions/year/2026", "")
	assert.Len(t, decode[[]models.CompletedSession](t, w), 2)

	w = do(t, h, "DELETE", "/api/sessions/"+work.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, "DELETE", "/api/sessions/"+work.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProgress_API(t *testing.T) {
	h, s, _ := setupTestServer(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordSession(ctx, &models.CompletedSession{
		SessionType: models.SessionWork, StartTime: start, EndTime: start.Add(time.Hour),
		DurationSeconds: 3600, Source: models.SourceRemote,
	}))

	w := do(t, h, "GET", "/api/progress/day/2026-03-09", "")
	require.Equal(t, http.StatusOK, w.Code)
	day := decode[models.ProgressDay](t, w)
	assert.Equal(t, 1, day.SessionCount)
	assert.InDelta(t, 1.0, day.TotalHours, 0.001)

	w = do(t, h, "GET", "/api/progress/month/2026/3", "")
	require.Equal(t, http.StatusOK, w.Code)
	month := decode[models.ProgressMonth](t, w)
	assert.Len(t, month.Days, 31)
	assert.Equal(t, 1, month.TotalSessions)

	w = do(t, h, "GET", "/api/progress/chart", "")
	require.Equal(t, http.StatusOK, w.Code)
	chart := decode[models.ProgressChart](t, w)
	assert.Equal(t, 2026, chart.Year)
	assert.Len(t, chart.Months, 12)

	w = do(t, h, "GET", "/api/progress/stats/2026", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.YearlyStats](t, w)
	assert.Equal(t, 1, stats.WorkDays)

	w = do(t, h, "GET", "/api/progress/years", "")
	assert.Equal(t, []int{2025, 2026}, decode[[]int](t, w))

	w = do(t, h, "GET", "/api/progress/chart/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, "GET", "/api/progress/day/2026-13-01", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORS(t *testing.T) {
	h, _, _ := setupTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
