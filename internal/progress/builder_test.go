package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/store"
)

func setupBuilder(t *testing.T, now time.Time) (*Builder, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewBuilder(s, clockwork.NewFakeClockAt(now), time.UTC), s
}

func record(t *testing.T, s store.Store, st models.SessionType, start time.Time, minutes int) {
	t.Helper()
	require.NoError(t, s.RecordSession(context.Background(), &models.CompletedSession{
		SessionType:     st,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationSeconds: minutes * 60,
	}))
}

func TestBuilder_Day(t *testing.T) {
	b, s := setupBuilder(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))
	ctx := context.Background()

	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	record(t, s, models.SessionWork, day, 60)
	record(t, s, models.SessionWork, day.Add(2*time.Hour), 30)
	record(t, s, models.SessionShortBreak, day.Add(time.Hour), 5)
	record(t, s, models.SessionWork, day.AddDate(0, 0, 1), 25)

	got, err := b.Day(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", got.Date)
	assert.InDelta(t, 1.5, got.TotalHours, 0.0001)
	assert.Equal(t, 2, got.SessionCount)
	assert.Equal(t, 2, got.ProductivityLevel)

	stats, err := b.ProductivityStats(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SessionCount)

	sessions, err := b.WorkSessions(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	empty, err := b.Day(ctx, "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.ProductivityLevel)
	assert.Equal(t, "No work sessions", empty.Description)

	_, err = b.Day(ctx, "03/02/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestBuilder_Month(t *testing.T) {
	b, s := setupBuilder(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))
	ctx := context.Background()

	record(t, s, models.SessionWork, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC), 30)
	record(t, s, models.SessionWork, time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), 240)
	record(t, s, models.SessionWork, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 60)

	m, err := b.Month(ctx, 2026, time.February)
	require.NoError(t, err)
	require.Len(t, m.Days, 28)
	assert.Equal(t, "February", m.MonthName)
	assert.Equal(t, 1, m.Days[0].ProductivityLevel)
	assert.Equal(t, 3, m.Days[27].ProductivityLevel)
	assert.InDelta(t, 4.5, m.TotalHours, 0.0001)
	assert.Equal(t, 2, m.TotalSessions)

	_, err = b.Month(ctx, 2026, 13)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestBuilder_ChartAndStats(t *testing.T) {
	b, s := setupBuilder(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, d := range []int{10, 11, 12, 20} {
		record(t, s, models.SessionWork, time.Date(2026, 1, d, 9, 0, 0, 0, time.UTC), 60)
	}
	record(t, s, models.SessionWork, time.Date(2025, 12, 31, 9, 0, 0, 0, time.UTC), 60)

	chart, err := b.Chart(ctx, 2026)
	require.NoError(t, err)
	assert.Len(t, chart.Months, 12)
	assert.Equal(t, 4, chart.TotalWorkDays)
	assert.Equal(t, 3, chart.LongestStreak)
	assert.InDelta(t, 4.0, chart.TotalYearHours, 0.0001)
	assert.InDelta(t, 1.0, chart.AverageHoursPerWorkDay, 0.0001)

	stats, err := b.YearlyStats(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 2026, stats.Year)
	assert.Equal(t, 4, stats.TotalSessions)
}

func TestBuilder_AvailableYears(t *testing.T) {
	b, _ := setupBuilder(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, []int{2025, 2026}, b.AvailableYears())

	b, _ = setupBuilder(t, time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []int{2028, 2029, 2030}, b.AvailableYears())

	b, _ = setupBuilder(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []int{2024}, b.AvailableYears())
}

func TestBuilder_Today(t *testing.T) {
	b, _ := setupBuilder(t, time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-02", b.Today())
	assert.Equal(t, 2026, b.CurrentYear())
}
