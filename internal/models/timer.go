package models

import (
	"errors"
	"fmt"
)

// SessionType is the kind of pomodoro session.
type SessionType string

const (
	SessionWork       SessionType = "WORK"
	SessionShortBreak SessionType = "SHORT_BREAK"
	SessionLongBreak  SessionType = "LONG_BREAK"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	switch t {
	case SessionWork, SessionShortBreak, SessionLongBreak:
		return true
	}
	return false
}

// TimerState is the run state of a session.
type TimerState string

const (
	StateStopped TimerState = "STOPPED"
	StateRunning TimerState = "RUNNING"
	StatePaused  TimerState = "PAUSED"
)

// Valid reports whether s is a known timer state.
func (s TimerState) Valid() bool {
	switch s {
	case StateStopped, StateRunning, StatePaused:
		return true
	}
	return false
}

// Source identifies which timer produced a snapshot.
type Source string

const (
	SourceRemote Source = "REMOTE"
	SourceLocal  Source = "LOCAL"
)

// Snapshot is an immutable read of timer state at an instant.
type Snapshot struct {
	SessionType           SessionType `json:"sessionType" yaml:"session_type"`
	State                 TimerState  `json:"state" yaml:"state"`
	TotalDurationSeconds  int         `json:"totalDurationSeconds" yaml:"total_duration_seconds"`
	RemainingSeconds      int         `json:"remainingSeconds" yaml:"remaining_seconds"`
	CompletedWorkSessions int         `json:"completedWorkSessions" yaml:"completed_work_sessions"`
	Source                Source      `json:"source,omitempty" yaml:"source,omitempty"`
}

// ElapsedSeconds returns how far into the session the snapshot is.
func (s Snapshot) ElapsedSeconds() int {
	return s.TotalDurationSeconds - s.RemainingSeconds
}

// Progress returns the completed fraction of the session in [0, 1].
func (s Snapshot) Progress() float64 {
	if s.TotalDurationSeconds <= 0 {
		return 0
	}
	p := float64(s.ElapsedSeconds()) / float64(s.TotalDurationSeconds)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Duration limits, in minutes.
const (
	MinWorkMinutes  = 1
	MaxWorkMinutes  = 120
	MinBreakMinutes = 1
	MaxBreakMinutes = 60
)

// ErrInvalidSettings is returned when timer durations are out of range.
var ErrInvalidSettings = errors.New("invalid timer settings")

// Settings holds the configured session durations.
type Settings struct {
	WorkDurationSeconds       int `json:"workDurationSeconds" yaml:"work_duration_seconds"`
	ShortBreakDurationSeconds int `json:"shortBreakDurationSeconds" yaml:"short_break_duration_seconds"`
	LongBreakDurationSeconds  int `json:"longBreakDurationSeconds" yaml:"long_break_duration_seconds"`
	LongBreakInterval         int `json:"longBreakInterval" yaml:"long_break_interval"`
}

// DefaultSettings returns the classic 25/5/15 schedule with a long break every 4 sessions.
func DefaultSettings() Settings {
	return Settings{
		WorkDurationSeconds:       25 * 60,
		ShortBreakDurationSeconds: 5 * 60,
		LongBreakDurationSeconds:  15 * 60,
		LongBreakInterval:         4,
	}
}

// SettingsFromMinutes builds Settings from minute values.
func SettingsFromMinutes(work, shortBreak, longBreak, interval int) Settings {
	return Settings{
		WorkDurationSeconds:       work * 60,
		ShortBreakDurationSeconds: shortBreak * 60,
		LongBreakDurationSeconds:  longBreak * 60,
		LongBreakInterval:         interval,
	}
}

// Validate checks durations against the allowed ranges.
func (s Settings) Validate() error {
	if s.WorkDurationSeconds < MinWorkMinutes*60 || s.WorkDurationSeconds > MaxWorkMinutes*60 {
		return fmt.Errorf("%w: work must be %d-%d min", ErrInvalidSettings, MinWorkMinutes, MaxWorkMinutes)
	}
	if s.ShortBreakDurationSeconds < MinBreakMinutes*60 || s.ShortBreakDurationSeconds > MaxBreakMinutes*60 {
		return fmt.Errorf("%w: short break must be %d-%d min", ErrInvalidSettings, MinBreakMinutes, MaxBreakMinutes)
	}
	if s.LongBreakDurationSeconds < MinBreakMinutes*60 || s.LongBreakDurationSeconds > MaxBreakMinutes*60 {
		return fmt.Errorf("%w: long break must be %d-%d min", ErrInvalidSettings, MinBreakMinutes, MaxBreakMinutes)
	}
	if s.LongBreakInterval < 1 {
		return fmt.Errorf("%w: long break interval must be at least 1", ErrInvalidSettings)
	}
	return nil
}

// DurationFor returns the configured length of a session type in seconds.
func (s Settings) DurationFor(t SessionType) int {
	switch t {
	case SessionShortBreak:
		return s.ShortBreakDurationSeconds
	case SessionLongBreak:
		return s.LongBreakDurationSeconds
	default:
		return s.WorkDurationSeconds
	}
}

// WithDefaultTotal fills a total the server left out with the configured
// length of the session type, never less than the time remaining.
func (s Snapshot) WithDefaultTotal(settings Settings) Snapshot {
	if s.TotalDurationSeconds == 0 && s.RemainingSeconds > 0 {
		s.TotalDurationSeconds = max(settings.DurationFor(s.SessionType), s.RemainingSeconds)
	}
	return s
}

// NextSessionType returns the session that follows current. completedWork is the
// work session count after current has been counted.
func (s Settings) NextSessionType(current SessionType, completedWork int) SessionType {
	if current != SessionWork {
		return SessionWork
	}
	interval := s.LongBreakInterval
	if interval < 1 {
		interval = 1
	}
	if completedWork > 0 && completedWork%interval == 0 {
		return SessionLongBreak
	}
	return SessionShortBreak
}
