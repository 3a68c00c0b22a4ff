// Package pomodoro is the authoritative timer behind the reference API.
package pomodoro

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/timer"
)

// Journal records finished sessions.
type Journal interface {
	RecordSession(ctx context.Context, s *models.CompletedSession) error
}

// Service owns the server-side pomodoro session. Remaining time is derived
// from the clock on every read, so no background goroutine is needed.
type Service struct {
	clock   clockwork.Clock
	journal Journal
	log     zerolog.Logger

	mu       sync.Mutex
	settings models.Settings
	timer    *timer.Local
}

// NewService returns a Service with a stopped WORK session.
func NewService(clock clockwork.Clock, journal Journal, settings models.Settings, logger zerolog.Logger) *Service {
	if settings.Validate() != nil {
		settings = models.DefaultSettings()
	}
	return &Service{
		clock:    clock,
		journal:  journal,
		log:      logger.With().Str("component", "pomodoro").Logger(),
		settings: settings,
		timer:    timer.NewLocal(clock, settings.WorkDurationSeconds),
	}
}

// Status returns the current session, journaling it if it just ran out.
func (s *Service) Status(ctx context.Context) models.Snapshot {
	s.mu.Lock()
	snap, done := s.timer.Recompute(s.clock.Now())
	s.mu.Unlock()
	s.record(ctx, done)
	return serverSnapshot(snap)
}

// Start starts or resumes the session.
func (s *Service) Start(ctx context.Context) models.Snapshot {
	return s.apply(ctx, func(l *timer.Local) { l.Start() })
}

// Pause pauses a running session.
func (s *Service) Pause(ctx context.Context) models.Snapshot {
	return s.apply(ctx, func(l *timer.Local) { l.Pause() })
}

// Stop resets the session to its full length.
func (s *Service) Stop(ctx context.Context) models.Snapshot {
	return s.apply(ctx, func(l *timer.Local) { l.Stop() })
}

// Complete finishes the session, journaling it unless it already ran out on
// its own, and moves to the next session.
func (s *Service) Complete(ctx context.Context) models.Snapshot {
	s.mu.Lock()
	now := s.clock.Now()
	_, natural := s.timer.Recompute(now)
	explicit := s.timer.Complete(now)
	s.timer.Next(s.settings)
	snap := s.timer.Snapshot()
	s.mu.Unlock()

	s.record(ctx, natural)
	s.record(ctx, explicit)
	return serverSnapshot(snap)
}

// Reset starts over with a fresh WORK session.
func (s *Service) Reset(ctx context.Context) models.Snapshot {
	return s.apply(ctx, func(l *timer.Local) { l.Reset(s.settings.WorkDurationSeconds) })
}

// Settings returns the current durations.
func (s *Service) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings replaces the durations. A running session takes its new
// length when it stops or ends; any other session at once.
func (s *Service) UpdateSettings(settings models.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.timer.Configure(settings.DurationFor(s.timer.Snapshot().SessionType))
	return nil
}

func (s *Service) apply(ctx context.Context, fn func(l *timer.Local)) models.Snapshot {
	s.mu.Lock()
	_, done := s.timer.Recompute(s.clock.Now())
	fn(s.timer)
	snap := s.timer.Snapshot()
	s.mu.Unlock()
	s.record(ctx, done)
	return serverSnapshot(snap)
}

func (s *Service) record(ctx context.Context, done *timer.Completion) {
	if done == nil {
		return
	}
	s.log.Info().
		Str("session_type", string(done.SessionType)).
		Int("duration_seconds", done.DurationSeconds).
		Bool("natural", done.Natural).
		Msg("session completed")
	if s.journal == nil || done.DurationSeconds <= 0 {
		return
	}
	err := s.journal.RecordSession(ctx, &models.CompletedSession{
		SessionType:     done.SessionType,
		StartTime:       done.StartedAt,
		EndTime:         done.EndedAt,
		DurationSeconds: done.DurationSeconds,
		Source:          models.SourceRemote,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to log session")
	}
}

func serverSnapshot(snap models.Snapshot) models.Snapshot {
	snap.Source = ""
	return snap
}
