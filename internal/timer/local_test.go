package timer

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pomo/internal/models"
)

func newTestLocal(total int) (*Local, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return NewLocal(clock, total), clock
}

func TestLocal_NewIsStoppedAtTotal(t *testing.T) {
	l, _ := newTestLocal(1500)
	snap := l.Snapshot()
	assert.Equal(t, models.SessionWork, snap.SessionType)
	assert.Equal(t, models.StateStopped, snap.State)
	assert.Equal(t, 1500, snap.TotalDurationSeconds)
	assert.Equal(t, 1500, snap.RemainingSeconds)
	assert.Equal(t, models.SourceLocal, snap.Source)
}

func TestLocal_CountdownIsMonotonic(t *testing.T) {
	l, clock := newTestLocal(1500)
	require.True(t, l.Start())

	prev := l.Snapshot().RemainingSeconds
	for i := 0; i < 50; i++ {
		clock.Advance(700 * time.Millisecond)
		snap, _ := l.Recompute(clock.Now())
		assert.LessOrEqual(t, snap.RemainingSeconds, prev)
		prev = snap.RemainingSeconds
	}
	// 35 s elapsed in total.
	assert.Equal(t, 1465, prev)
}

func TestLocal_RecomputeIsIdempotent(t *testing.T) {
	l, clock := newTestLocal(60)
	l.Start()
	clock.Advance(10500 * time.Millisecond)

	now := clock.Now()
	first, done1 := l.Recompute(now)
	second, done2 := l.Recompute(now)
	assert.Equal(t, first, second)
	assert.Equal(t, 50, first.RemainingSeconds)
	assert.Nil(t, done1)
	assert.Nil(t, done2)
}

func TestLocal_StartWhileRunningKeepsStartInstant(t *testing.T) {
	l, clock := newTestLocal(100)
	require.True(t, l.Start())
	clock.Advance(30 * time.Second)
	assert.False(t, l.Start())

	snap, _ := l.Recompute(clock.Now())
	assert.Equal(t, 70, snap.RemainingSeconds)
}

func TestLocal_PausePreservesRemaining(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Start()
	clock.Advance(100 * time.Second)
	require.True(t, l.Pause())

	paused := l.Snapshot()
	assert.Equal(t, models.StatePaused, paused.State)
	assert.Equal(t, 1400, paused.RemainingSeconds)

	clock.Advance(10 * time.Minute)
	snap, _ := l.Recompute(clock.Now())
	assert.Equal(t, 1400, snap.RemainingSeconds)

	// Resume picks up where it left off.
	require.True(t, l.Start())
	clock.Advance(40 * time.Second)
	snap, _ = l.Recompute(clock.Now())
	assert.Equal(t, models.StateRunning, snap.State)
	assert.Equal(t, 1360, snap.RemainingSeconds)
}

func TestLocal_PauseWhenNotRunning(t *testing.T) {
	l, _ := newTestLocal(60)
	assert.False(t, l.Pause())
	assert.Equal(t, models.StateStopped, l.Snapshot().State)
}

func TestLocal_StopResetsToTotal(t *testing.T) {
	l, clock := newTestLocal(300)
	l.Start()
	clock.Advance(2 * time.Minute)
	l.Stop()

	snap := l.Snapshot()
	assert.Equal(t, models.StateStopped, snap.State)
	assert.Equal(t, 300, snap.RemainingSeconds)

	clock.Advance(time.Minute)
	snap, _ = l.Recompute(clock.Now())
	assert.Equal(t, 300, snap.RemainingSeconds)
}

func TestLocal_ConfigureWhileStopped(t *testing.T) {
	l, _ := newTestLocal(1500)
	l.Configure(600)
	snap := l.Snapshot()
	assert.Equal(t, 600, snap.TotalDurationSeconds)
	assert.Equal(t, 600, snap.RemainingSeconds)
}

func TestLocal_ConfigureWhileRunningIsDeferred(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Start()
	clock.Advance(10 * time.Second)
	l.Configure(600)

	snap, _ := l.Recompute(clock.Now())
	assert.Equal(t, 1500, snap.TotalDurationSeconds)
	assert.Equal(t, 1490, snap.RemainingSeconds)

	l.Stop()
	snap = l.Snapshot()
	assert.Equal(t, 600, snap.TotalDurationSeconds)
	assert.Equal(t, 600, snap.RemainingSeconds)
}

func TestLocal_ConfigureWhilePausedAppliesNow(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Start()
	clock.Advance(time.Minute)
	require.True(t, l.Pause())
	l.Configure(600)

	snap := l.Snapshot()
	assert.Equal(t, models.StateStopped, snap.State)
	assert.Equal(t, 600, snap.TotalDurationSeconds)
	assert.Equal(t, 600, snap.RemainingSeconds)
}

func TestLocal_ConfigureZeroWhileRunningApplies(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Start()
	clock.Advance(10 * time.Second)
	l.Configure(0)

	snap, _ := l.Recompute(clock.Now())
	assert.Equal(t, 1490, snap.RemainingSeconds)

	l.Stop()
	snap = l.Snapshot()
	assert.Equal(t, 0, snap.TotalDurationSeconds)
	assert.Equal(t, 0, snap.RemainingSeconds)
}

func TestLocal_PendingLengthSurvivesExport(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Start()
	l.Configure(0)

	other := NewLocal(clock, 60)
	other.Restore(l.Export())
	other.Stop()
	assert.Equal(t, 0, other.Snapshot().TotalDurationSeconds)

	l.Stop()
	other.Restore(l.Export())
	other.Stop()
	assert.Equal(t, 0, other.Snapshot().TotalDurationSeconds)
	assert.Nil(t, l.Export().PendingTotal)
}

func TestLocal_NaturalCompletionFiresOnce(t *testing.T) {
	l, clock := newTestLocal(1500)
	require.True(t, l.Start())
	start := clock.Now()

	completions := 0
	for _, offset := range []time.Duration{1499 * time.Second, 1500 * time.Second, 1501 * time.Second, 1600 * time.Second} {
		clock.Advance(offset - clock.Since(start))
		snap, done := l.Recompute(clock.Now())
		if done != nil {
			completions++
			assert.Equal(t, models.SessionWork, done.SessionType)
			assert.Equal(t, 1500, done.DurationSeconds)
			assert.True(t, done.Natural)
			assert.Equal(t, start.Add(1500*time.Second), done.EndedAt)
			assert.Equal(t, start, done.StartedAt)
		}
		if offset == 1499*time.Second {
			assert.Equal(t, 1, snap.RemainingSeconds)
			assert.Equal(t, models.StateRunning, snap.State)
			continue
		}
		assert.Equal(t, 0, snap.RemainingSeconds)
		assert.Equal(t, models.StateStopped, snap.State)
	}
	assert.Equal(t, 1, completions)
	assert.Equal(t, 1, l.Snapshot().CompletedWorkSessions)
}

func TestLocal_StartAfterCompletionBeginsFreshCountdown(t *testing.T) {
	l, clock := newTestLocal(60)
	l.Start()
	clock.Advance(2 * time.Minute)
	_, done := l.Recompute(clock.Now())
	require.NotNil(t, done)

	require.True(t, l.Start())
	clock.Advance(5 * time.Second)
	snap, _ := l.Recompute(clock.Now())
	assert.Equal(t, 55, snap.RemainingSeconds)
}

func TestLocal_CompleteMidSession(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Start()
	clock.Advance(10 * time.Minute)

	done := l.Complete(clock.Now())
	require.NotNil(t, done)
	assert.Equal(t, 600, done.DurationSeconds)
	assert.False(t, done.Natural)
	assert.Equal(t, 1, l.Snapshot().CompletedWorkSessions)

	// Already completed, a second request reports nothing.
	assert.Nil(t, l.Complete(clock.Now()))
}

func TestLocal_CompleteAfterNaturalCompletion(t *testing.T) {
	l, clock := newTestLocal(60)
	l.Start()
	clock.Advance(90 * time.Second)
	_, done := l.Recompute(clock.Now())
	require.NotNil(t, done)

	assert.Nil(t, l.Complete(clock.Now()))
	assert.Equal(t, 1, l.Snapshot().CompletedWorkSessions)
}

func TestLocal_Advance(t *testing.T) {
	l, clock := newTestLocal(60)
	l.Start()
	clock.Advance(30 * time.Second)
	l.Complete(clock.Now())
	l.Advance(models.SessionShortBreak, 300)

	snap := l.Snapshot()
	assert.Equal(t, models.SessionShortBreak, snap.SessionType)
	assert.Equal(t, models.StateStopped, snap.State)
	assert.Equal(t, 300, snap.RemainingSeconds)
	assert.Equal(t, 1, snap.CompletedWorkSessions)

	// The break completes without counting as work.
	l.Start()
	clock.Advance(5 * time.Minute)
	_, done := l.Recompute(clock.Now())
	require.NotNil(t, done)
	assert.Equal(t, models.SessionShortBreak, done.SessionType)
	assert.Equal(t, 1, l.Snapshot().CompletedWorkSessions)
}

func TestLocal_SeedRunningContinuesCountdown(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Seed(models.Snapshot{
		SessionType:           models.SessionShortBreak,
		State:                 models.StateRunning,
		TotalDurationSeconds:  300,
		RemainingSeconds:      120,
		CompletedWorkSessions: 3,
		Source:                models.SourceRemote,
	}, clock.Now())

	snap, _ := l.Recompute(clock.Now())
	assert.Equal(t, models.SessionShortBreak, snap.SessionType)
	assert.Equal(t, models.StateRunning, snap.State)
	assert.Equal(t, 120, snap.RemainingSeconds)
	assert.Equal(t, 3, snap.CompletedWorkSessions)

	clock.Advance(20 * time.Second)
	snap, _ = l.Recompute(clock.Now())
	assert.Equal(t, 100, snap.RemainingSeconds)
}

func TestLocal_SeedFinishedSessionDoesNotCompleteAgain(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Seed(models.Snapshot{
		SessionType:          models.SessionWork,
		State:                models.StateStopped,
		TotalDurationSeconds: 1500,
		RemainingSeconds:     0,
	}, clock.Now())

	assert.Nil(t, l.Complete(clock.Now()))
}

func TestLocal_SeedStaleRunningDoesNotComplete(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Seed(models.Snapshot{
		SessionType:           models.SessionWork,
		State:                 models.StateRunning,
		TotalDurationSeconds:  1500,
		RemainingSeconds:      60,
		CompletedWorkSessions: 2,
	}, clock.Now().Add(-2*time.Hour))

	snap, done := l.Recompute(clock.Now())
	assert.Nil(t, done)
	assert.Equal(t, models.StateStopped, snap.State)
	assert.Equal(t, 0, snap.RemainingSeconds)
	assert.Equal(t, 2, snap.CompletedWorkSessions)
	assert.Nil(t, l.Complete(clock.Now()))
}

func TestLocal_SeedRecentRunningStillCompletes(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Seed(models.Snapshot{
		SessionType:          models.SessionWork,
		State:                models.StateRunning,
		TotalDurationSeconds: 1500,
		RemainingSeconds:     60,
	}, clock.Now().Add(-10*time.Second))

	clock.Advance(time.Minute)
	_, done := l.Recompute(clock.Now())
	require.NotNil(t, done)
	assert.True(t, done.Natural)
	assert.Equal(t, 1, l.Snapshot().CompletedWorkSessions)
}

func TestLocal_SeedClampsRemaining(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Seed(models.Snapshot{
		SessionType:          models.SessionWork,
		State:                models.StatePaused,
		TotalDurationSeconds: 100,
		RemainingSeconds:     900,
	}, clock.Now())
	assert.Equal(t, 100, l.Snapshot().RemainingSeconds)
}

func TestLocal_ExportRestore(t *testing.T) {
	l, clock := newTestLocal(1500)
	l.Start()
	clock.Advance(100 * time.Second)
	st := l.Export()

	other := NewLocal(clock, 60)
	other.Restore(st)
	clock.Advance(50 * time.Second)
	snap, _ := other.Recompute(clock.Now())
	assert.Equal(t, models.StateRunning, snap.State)
	assert.Equal(t, 1350, snap.RemainingSeconds)
}

func TestLocal_RestoreRepairsInvalidState(t *testing.T) {
	l, _ := newTestLocal(60)
	l.Restore(State{SessionType: "NAP", State: "RUNNING", Total: 100, Remaining: 500})
	snap := l.Snapshot()
	assert.Equal(t, models.SessionWork, snap.SessionType)
	assert.Equal(t, models.StatePaused, snap.State)
	assert.Equal(t, 100, snap.RemainingSeconds)
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{65, "01:05"},
		{65.9, "01:05"},
		{1500, "25:00"},
		{7200, "120:00"},
		{-5, "00:00"},
		{math.NaN(), "00:00"},
		{math.Inf(1), "00:00"},
		{math.Inf(-1), "00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTime(tt.in), "FormatTime(%v)", tt.in)
	}
}

func TestLocal_NextAndReset(t *testing.T) {
	l, clock := newTestLocal(1500)
	settings := models.SettingsFromMinutes(25, 5, 15, 1)

	l.Start()
	clock.Advance(time.Minute)
	l.Complete(clock.Now())
	l.Next(settings)
	assert.Equal(t, models.SessionLongBreak, l.Snapshot().SessionType)
	assert.Equal(t, 900, l.Snapshot().RemainingSeconds)

	l.Next(settings)
	assert.Equal(t, models.SessionWork, l.Snapshot().SessionType)

	l.Reset(1200)
	snap := l.Snapshot()
	assert.Equal(t, models.SessionWork, snap.SessionType)
	assert.Equal(t, models.StateStopped, snap.State)
	assert.Equal(t, 1200, snap.RemainingSeconds)
	assert.Equal(t, 0, snap.CompletedWorkSessions)
}
