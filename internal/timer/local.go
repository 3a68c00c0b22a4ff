// Package timer implements the self-contained countdown used when the remote
// timer API cannot be reached, and by the reference server as its own clock.
package timer

import (
	"time"

	"github.com/joescharf/pomo/internal/models"
)

// Clock is the time source the timer reads. In production use
// clockwork.NewRealClock(); in tests a clockwork.FakeClock.
type Clock interface {
	Now() time.Time
}

// Completion describes a session that reached its end.
type Completion struct {
	SessionType     models.SessionType
	DurationSeconds int
	StartedAt       time.Time
	EndedAt         time.Time
	Natural         bool
}

// State is the serializable form of a Local timer.
type State struct {
	SessionType     models.SessionType `yaml:"session_type"`
	State           models.TimerState  `yaml:"state"`
	Total           int                `yaml:"total_seconds"`
	Remaining       int                `yaml:"remaining_seconds"`
	ElapsedBase     int                `yaml:"elapsed_base_seconds"`
	StartedAt       *time.Time         `yaml:"started_at,omitempty"`
	PendingTotal    *int               `yaml:"pending_total_seconds,omitempty"`
	CompletedWork   int                `yaml:"completed_work_sessions"`
	CompletionFired bool               `yaml:"completion_fired"`
}

// Local is a countdown whose remaining time is derived from a captured start
// instant, so missed ticks never drift. It is not safe for concurrent use; the
// owner serializes access.
type Local struct {
	clock Clock

	sessionType     models.SessionType
	state           models.TimerState
	total           int
	remaining       int
	elapsedBase     int // seconds consumed before startedAt
	startedAt       *time.Time
	pendingTotal    *int // length to adopt once the current session stops or ends
	completedWork   int
	completionFired bool
}

// NewLocal returns a stopped WORK timer of total seconds.
func NewLocal(clock Clock, total int) *Local {
	if total < 0 {
		total = 0
	}
	return &Local{
		clock:       clock,
		sessionType: models.SessionWork,
		state:       models.StateStopped,
		total:       total,
		remaining:   total,
	}
}

// Start begins or resumes the countdown. It reports false, and leaves the start
// instant untouched, when the timer is already running.
func (l *Local) Start() bool {
	if l.state == models.StateRunning {
		return false
	}
	if l.remaining <= 0 {
		l.applyPending()
		l.remaining = l.total
		l.completionFired = false
	}
	l.elapsedBase = l.total - l.remaining
	now := l.clock.Now()
	l.startedAt = &now
	l.state = models.StateRunning
	return true
}

// Pause freezes the remaining time as of now. It reports false when the timer
// was not running or completed at this instant.
func (l *Local) Pause() bool {
	if l.state != models.StateRunning {
		return false
	}
	l.Recompute(l.clock.Now())
	if l.state != models.StateRunning {
		return false
	}
	l.elapsedBase = l.total - l.remaining
	l.startedAt = nil
	l.state = models.StatePaused
	return true
}

// Stop resets the session to its full duration.
func (l *Local) Stop() {
	l.applyPending()
	l.remaining = l.total
	l.elapsedBase = 0
	l.startedAt = nil
	l.state = models.StateStopped
	l.completionFired = false
}

// Configure changes the session length. A running countdown is not disturbed;
// it takes the new length, zero included, once it stops or ends. Any other
// state resets to a stopped session of the new length at once.
func (l *Local) Configure(total int) {
	if total < 0 {
		total = 0
	}
	if l.state == models.StateRunning {
		l.pendingTotal = &total
		return
	}
	l.pendingTotal = nil
	l.total = total
	l.remaining = total
	l.elapsedBase = 0
	l.startedAt = nil
	l.state = models.StateStopped
	l.completionFired = false
}

// Recompute derives the remaining time at now. Reaching zero stops the timer
// and returns the completion; further calls return nil until a new session runs.
func (l *Local) Recompute(now time.Time) (models.Snapshot, *Completion) {
	if l.state != models.StateRunning || l.startedAt == nil {
		return l.Snapshot(), nil
	}

	run := now.Sub(*l.startedAt)
	if run < 0 {
		run = 0
	}
	elapsed := l.elapsedBase + int(run/time.Second)
	l.remaining = max(0, l.total-elapsed)
	if l.remaining > 0 {
		return l.Snapshot(), nil
	}

	endedAt := l.startedAt.Add(time.Duration(l.total-l.elapsedBase) * time.Second)
	l.state = models.StateStopped
	l.startedAt = nil
	l.elapsedBase = 0

	var done *Completion
	if !l.completionFired {
		done = l.fire(l.total, endedAt, true)
	}
	l.applyPending()
	l.remaining = 0
	return l.Snapshot(), done
}

// Complete ends the current session on request. It returns nil when the
// session already completed on its own.
func (l *Local) Complete(now time.Time) *Completion {
	l.Recompute(now)
	if l.completionFired {
		return nil
	}
	elapsed := l.total - l.remaining
	if l.state == models.StateStopped && l.remaining == l.total {
		elapsed = 0
	}
	l.state = models.StateStopped
	l.startedAt = nil
	return l.fire(elapsed, now, false)
}

// Advance replaces the finished session with a fresh stopped one.
func (l *Local) Advance(next models.SessionType, total int) {
	l.sessionType = next
	l.total = total
	l.remaining = total
	l.elapsedBase = 0
	l.startedAt = nil
	l.pendingTotal = nil
	l.state = models.StateStopped
	l.completionFired = false
}

// Next advances to the session that follows the current one under s.
func (l *Local) Next(s models.Settings) {
	next := s.NextSessionType(l.sessionType, l.completedWork)
	l.Advance(next, s.DurationFor(next))
}

// Reset starts over with a stopped WORK session and no completed sessions.
func (l *Local) Reset(total int) {
	l.Advance(models.SessionWork, max(total, 0))
	l.completedWork = 0
}

// Seed adopts the values of snap, observed at the given instant, so the local
// countdown continues where snap left off. A running snap keeps running.
func (l *Local) Seed(snap models.Snapshot, at time.Time) {
	if snap.SessionType.Valid() {
		l.sessionType = snap.SessionType
	}
	if snap.TotalDurationSeconds > 0 {
		l.total = snap.TotalDurationSeconds
	}
	l.remaining = min(max(snap.RemainingSeconds, 0), l.total)
	l.completedWork = max(l.completedWork, snap.CompletedWorkSessions)
	l.pendingTotal = nil
	l.startedAt = nil
	l.elapsedBase = l.total - l.remaining

	switch snap.State {
	case models.StateRunning:
		if l.remaining == 0 {
			l.state = models.StateStopped
			break
		}
		l.startedAt = &at
		l.state = models.StateRunning
	case models.StatePaused:
		l.state = models.StatePaused
	default:
		l.state = models.StateStopped
	}
	// A session the server already finished must not be recorded again. That
	// includes a running one whose end passed before now.
	l.completionFired = l.state == models.StateStopped && l.remaining == 0 && l.total > 0
	if l.state == models.StateRunning && !at.Add(time.Duration(l.remaining)*time.Second).After(l.clock.Now()) {
		l.completionFired = true
	}
}

// Snapshot returns the current values without recomputing.
func (l *Local) Snapshot() models.Snapshot {
	return models.Snapshot{
		SessionType:           l.sessionType,
		State:                 l.state,
		TotalDurationSeconds:  l.total,
		RemainingSeconds:      l.remaining,
		CompletedWorkSessions: l.completedWork,
		Source:                models.SourceLocal,
	}
}

// Export returns the serializable state.
func (l *Local) Export() State {
	st := State{
		SessionType:     l.sessionType,
		State:           l.state,
		Total:           l.total,
		Remaining:       l.remaining,
		ElapsedBase:     l.elapsedBase,
		CompletedWork:   l.completedWork,
		CompletionFired: l.completionFired,
	}
	if l.pendingTotal != nil {
		pending := *l.pendingTotal
		st.PendingTotal = &pending
	}
	if l.startedAt != nil {
		at := *l.startedAt
		st.StartedAt = &at
	}
	return st
}

// Restore replaces the timer state with st. Invalid enums fall back to a
// stopped WORK session.
func (l *Local) Restore(st State) {
	l.sessionType = st.SessionType
	if !l.sessionType.Valid() {
		l.sessionType = models.SessionWork
	}
	l.state = st.State
	if !l.state.Valid() {
		l.state = models.StateStopped
	}
	l.total = max(st.Total, 0)
	l.remaining = min(max(st.Remaining, 0), l.total)
	l.elapsedBase = min(max(st.ElapsedBase, 0), l.total)
	l.pendingTotal = nil
	if st.PendingTotal != nil {
		pending := max(*st.PendingTotal, 0)
		l.pendingTotal = &pending
	}
	l.completedWork = max(st.CompletedWork, 0)
	l.completionFired = st.CompletionFired
	l.startedAt = nil
	if st.StartedAt != nil {
		at := *st.StartedAt
		l.startedAt = &at
	}
	if l.state == models.StateRunning && l.startedAt == nil {
		l.state = models.StatePaused
	}
}

func (l *Local) fire(duration int, endedAt time.Time, natural bool) *Completion {
	l.completionFired = true
	if l.sessionType == models.SessionWork {
		l.completedWork++
	}
	return &Completion{
		SessionType:     l.sessionType,
		DurationSeconds: duration,
		StartedAt:       endedAt.Add(-time.Duration(duration) * time.Second),
		EndedAt:         endedAt,
		Natural:         natural,
	}
}

func (l *Local) applyPending() {
	if l.pendingTotal != nil {
		l.total = *l.pendingTotal
		l.pendingTotal = nil
	}
}
