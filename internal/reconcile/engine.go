// Package reconcile keeps one consistent countdown across the server timer and
// the local fallback timer.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/remote"
	"github.com/joescharf/pomo/internal/timer"
)

// ErrCommandFailed is returned when the server rejects a command and the
// engine does not fall back to the local timer.
var ErrCommandFailed = errors.New("timer command failed")

var (
	errNoServer  = errors.New("no server configured")
	errLocalBusy = errors.New("local session in use")
)

const (
	DefaultStatusTimeout  = 2 * time.Second
	DefaultCommandTimeout = 10 * time.Second
)

// RemoteTimer is the server side of the timer.
type RemoteTimer interface {
	Status(ctx context.Context) (models.Snapshot, error)
	Start(ctx context.Context) (*models.Snapshot, error)
	Pause(ctx context.Context) (*models.Snapshot, error)
	Stop(ctx context.Context) (*models.Snapshot, error)
	Complete(ctx context.Context) (*models.Snapshot, error)
	Settings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, s models.Settings) error
}

// Recorder journals sessions completed by the local timer.
type Recorder interface {
	RecordSession(ctx context.Context, s *models.CompletedSession) error
}

// Config configures an Engine. Zero timeouts take the defaults; a zero
// ReprobeInterval disables automatic reconnection.
type Config struct {
	Remote          RemoteTimer
	Recorder        Recorder
	Clock           clockwork.Clock
	Settings        models.Settings
	StatusTimeout   time.Duration
	CommandTimeout  time.Duration
	ReprobeInterval time.Duration
	Logger          zerolog.Logger
}

// Result is the outcome of a command.
type Result struct {
	Snapshot models.Snapshot
	Mode     Mode
	Message  string
}

// Engine routes timer reads and commands to the server or to the local
// fallback timer. It is safe for concurrent use.
type Engine struct {
	remote          RemoteTimer
	recorder        Recorder
	clock           clockwork.Clock
	log             zerolog.Logger
	statusTimeout   time.Duration
	commandTimeout  time.Duration
	reprobeInterval time.Duration

	group singleflight.Group

	mu        sync.Mutex
	mode      Mode
	settings  models.Settings
	local     *timer.Local
	last      *models.Snapshot
	lastAt    time.Time
	lastProbe time.Time
	// completedFloor holds the work count reached offline until the server
	// reports at least as many.
	completedFloor int

	subsMu sync.Mutex
	subs   []chan Event
}

// New creates an Engine in remote mode, or in local mode when no server is set.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	settings := cfg.Settings
	if settings.Validate() != nil {
		settings = models.DefaultSettings()
	}
	e := &Engine{
		remote:          cfg.Remote,
		recorder:        cfg.Recorder,
		clock:           clock,
		statusTimeout:   cfg.StatusTimeout,
		commandTimeout:  cfg.CommandTimeout,
		reprobeInterval: max(cfg.ReprobeInterval, 0),
		mode:            RemoteMode(),
		settings:        settings,
		local:           timer.NewLocal(clock, settings.WorkDurationSeconds),
	}
	if e.statusTimeout <= 0 {
		e.statusTimeout = DefaultStatusTimeout
	}
	if e.commandTimeout <= 0 {
		e.commandTimeout = DefaultCommandTimeout
	}
	e.log = cfg.Logger.With().
		Str("component", "reconcile").
		Str("instance", uuid.New().String()[:8]).
		Logger()
	if e.remote == nil {
		e.mode = LocalMode(clock.Now())
	}
	return e
}

// Mode returns the current backing-timer selection.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Snapshot returns the current timer state. In remote mode a failed status
// fetch switches to the local timer and the local snapshot is returned from
// the same call. Local mode never contacts the server except for a due
// re-probe while the local session is stopped and untouched.
func (e *Engine) Snapshot(ctx context.Context) models.Snapshot {
	e.mu.Lock()
	probing := e.mode.IsLocal()
	if probing {
		snap, done := e.local.Recompute(e.clock.Now())
		if !e.reprobeDueLocked(snap) {
			e.mu.Unlock()
			e.finish(ctx, done)
			return snap
		}
		e.lastProbe = e.clock.Now()
		e.mu.Unlock()
		e.finish(ctx, done)
		e.log.Debug().Msg("probing server")
	} else {
		e.mu.Unlock()
	}

	remoteSnap, err := e.fetchStatus(ctx)
	now := e.clock.Now()

	e.mu.Lock()
	if err == nil && probing && e.mode.IsLocal() && !untouched(e.local.Snapshot()) {
		// The local session was started while the probe was in flight.
		err = errLocalBusy
	}
	if err == nil && (probing || !e.mode.IsLocal()) {
		switched := e.mode.IsLocal()
		if switched {
			remoteSnap = e.keepCompletedLocked(remoteSnap)
		}
		e.mode = RemoteMode()
		e.last = &remoteSnap
		e.lastAt = now
		e.mu.Unlock()
		if switched {
			e.log.Info().Msg("server reachable again, using remote timer")
			e.emit(Event{Kind: EventModeChanged, Mode: RemoteMode(), Message: "Reconnected to server"})
		}
		return remoteSnap
	}

	switched := false
	if err != nil && !e.mode.IsLocal() {
		e.switchLocalLocked()
		switched = true
	}
	snap, done := e.local.Recompute(now)
	mode := e.mode
	e.mu.Unlock()

	if switched {
		e.log.Warn().Err(err).Msg("status fetch failed, switching to local timer")
		e.emit(Event{Kind: EventModeChanged, Mode: mode, Message: "Server unavailable, using local timer"})
	}
	e.finish(ctx, done)
	return snap
}

// Start starts or resumes the active timer.
func (e *Engine) Start(ctx context.Context) (Result, error) {
	return e.run(ctx, CommandStart)
}

// Pause pauses the active timer.
func (e *Engine) Pause(ctx context.Context) (Result, error) {
	return e.run(ctx, CommandPause)
}

// Stop stops the active timer and resets the session.
func (e *Engine) Stop(ctx context.Context) (Result, error) {
	return e.run(ctx, CommandStop)
}

// Complete ends the current session and moves to the next one.
func (e *Engine) Complete(ctx context.Context) (Result, error) {
	return e.run(ctx, CommandComplete)
}

func (e *Engine) run(ctx context.Context, cmd Command) (Result, error) {
	e.mu.Lock()
	if e.mode.IsLocal() {
		res, done := e.runLocalLocked(cmd)
		e.mu.Unlock()
		e.finish(ctx, done...)
		return res, nil
	}
	var completing models.SessionType
	if e.last != nil {
		completing = e.last.SessionType
	}
	e.mu.Unlock()

	snap, err := e.callRemote(ctx, cmd)
	if err != nil {
		return e.handleFailure(ctx, cmd, err)
	}
	e.log.Debug().Str("command", string(cmd)).Msg("remote command ok")

	if cmd == CommandComplete {
		if completing == "" {
			completing = models.SessionWork
		}
		e.emit(Event{Kind: EventSessionCompleted, SessionType: completing, Source: models.SourceRemote})
	}

	if snap == nil {
		s := e.Snapshot(ctx)
		return Result{Snapshot: s, Mode: e.Mode()}, nil
	}
	e.mu.Lock()
	adopted := e.adoptRemoteLocked(*snap)
	snap = &adopted
	e.last = snap
	e.lastAt = e.clock.Now()
	mode := e.mode
	e.mu.Unlock()
	return Result{Snapshot: *snap, Mode: mode}, nil
}

func (e *Engine) handleFailure(ctx context.Context, cmd Command, err error) (Result, error) {
	action := PolicyFor(cmd, classify(err))
	if action == ActionReport {
		msg := fmt.Sprintf("Failed to %s timer", cmd)
		if se, ok := remote.IsStatus(err); ok {
			msg = fmt.Sprintf("%s (server returned %d)", msg, se.Code)
		}
		e.log.Warn().Err(err).Str("command", string(cmd)).Msg("remote command failed")
		e.emit(Event{Kind: EventMessage, Message: msg})

		e.mu.Lock()
		snap := e.lastKnownLocked()
		mode := e.mode
		e.mu.Unlock()
		return Result{Snapshot: snap, Mode: mode, Message: msg},
			fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd, err)
	}

	e.mu.Lock()
	switched := false
	if !e.mode.IsLocal() {
		e.switchLocalLocked()
		switched = true
	}
	var (
		res  Result
		done []*timer.Completion
	)
	if action == ActionSwitchAndRun {
		res, done = e.runLocalLocked(cmd)
	} else {
		res, done = e.runLocalLocked(CommandStatus)
	}
	e.mu.Unlock()

	res.Message = "Server unavailable, using local timer"
	e.log.Warn().Err(err).Str("command", string(cmd)).Msg("remote command failed, switching to local timer")
	if switched {
		e.emit(Event{Kind: EventModeChanged, Mode: res.Mode, Message: res.Message})
	}
	e.finish(ctx, done...)
	return res, nil
}

// runLocalLocked applies cmd to the local timer, first collecting any natural
// completion that happened since the last read.
func (e *Engine) runLocalLocked(cmd Command) (Result, []*timer.Completion) {
	now := e.clock.Now()
	var done []*timer.Completion
	if _, c := e.local.Recompute(now); c != nil {
		done = append(done, c)
	}

	var msg string
	switch cmd {
	case CommandStart:
		if !e.local.Start() {
			msg = "Timer is already running"
		}
	case CommandPause:
		if !e.local.Pause() {
			msg = "Timer is not running"
		}
	case CommandStop:
		e.local.Stop()
	case CommandComplete:
		if c := e.local.Complete(now); c != nil {
			done = append(done, c)
		}
		e.local.Next(e.settings)
	}
	return Result{Snapshot: e.local.Snapshot(), Mode: e.mode, Message: msg}, done
}

// switchLocalLocked seeds the local timer from the last server snapshot, or
// from the configured defaults, and enters local mode.
func (e *Engine) switchLocalLocked() {
	now := e.clock.Now()
	if e.last != nil {
		e.local.Seed(*e.last, e.lastAt)
	} else {
		total := e.settings.WorkDurationSeconds
		e.local.Seed(models.Snapshot{
			SessionType:          models.SessionWork,
			State:                models.StateStopped,
			TotalDurationSeconds: total,
			RemainingSeconds:     total,
		}, now)
	}
	e.mode = LocalMode(now)
	e.lastProbe = now
}

func untouched(snap models.Snapshot) bool {
	return snap.State == models.StateStopped && snap.RemainingSeconds == snap.TotalDurationSeconds
}

// keepCompletedLocked stops the completed work count from going backwards
// when a server that missed the offline sessions takes over again.
func (e *Engine) keepCompletedLocked(snap models.Snapshot) models.Snapshot {
	e.completedFloor = max(e.completedFloor, e.local.Snapshot().CompletedWorkSessions)
	return e.adoptRemoteLocked(snap)
}

// adoptRemoteLocked fills what the server left out of snap.
func (e *Engine) adoptRemoteLocked(snap models.Snapshot) models.Snapshot {
	snap = snap.WithDefaultTotal(e.settings)
	snap.Source = models.SourceRemote
	if snap.CompletedWorkSessions >= e.completedFloor {
		e.completedFloor = 0
	} else {
		snap.CompletedWorkSessions = e.completedFloor
	}
	return snap
}

func (e *Engine) lastKnownLocked() models.Snapshot {
	if e.mode.IsLocal() {
		return e.local.Snapshot()
	}
	if e.last != nil {
		return *e.last
	}
	total := e.settings.WorkDurationSeconds
	return models.Snapshot{
		SessionType:          models.SessionWork,
		State:                models.StateStopped,
		TotalDurationSeconds: total,
		RemainingSeconds:     total,
		Source:               models.SourceRemote,
	}
}

// reprobeDueLocked reports whether an automatic probe may run. Only a local
// session the user has not touched is handed back to the server.
func (e *Engine) reprobeDueLocked(snap models.Snapshot) bool {
	if e.remote == nil || e.reprobeInterval <= 0 {
		return false
	}
	if !untouched(snap) {
		return false
	}
	return e.clock.Since(e.lastProbe) >= e.reprobeInterval
}

// fetchStatus performs one bounded status call. Concurrent callers share a
// single request.
func (e *Engine) fetchStatus(ctx context.Context) (models.Snapshot, error) {
	if e.remote == nil {
		return models.Snapshot{}, &remote.TransportError{Op: "status", Err: errNoServer}
	}
	v, err, _ := e.group.Do(string(CommandStatus), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.statusTimeout)
		defer cancel()
		return e.remote.Status(ctx)
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	e.mu.Lock()
	snap := e.adoptRemoteLocked(v.(models.Snapshot))
	e.mu.Unlock()
	return snap, nil
}

func (e *Engine) callRemote(ctx context.Context, cmd Command) (*models.Snapshot, error) {
	if e.remote == nil {
		return nil, &remote.TransportError{Op: string(cmd), Err: errNoServer}
	}
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()
	switch cmd {
	case CommandStart:
		return e.remote.Start(ctx)
	case CommandPause:
		return e.remote.Pause(ctx)
	case CommandStop:
		return e.remote.Stop(ctx)
	case CommandComplete:
		return e.remote.Complete(ctx)
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

// finish journals and announces completions from the local timer.
func (e *Engine) finish(ctx context.Context, done ...*timer.Completion) {
	for _, c := range done {
		if c == nil {
			continue
		}
		e.log.Info().
			Str("session_type", string(c.SessionType)).
			Int("duration_seconds", c.DurationSeconds).
			Bool("natural", c.Natural).
			Msg("local session completed")
		if e.recorder != nil && c.DurationSeconds > 0 {
			err := e.recorder.RecordSession(context.WithoutCancel(ctx), &models.CompletedSession{
				SessionType:     c.SessionType,
				StartTime:       c.StartedAt,
				EndTime:         c.EndedAt,
				DurationSeconds: c.DurationSeconds,
				Source:          models.SourceLocal,
			})
			if err != nil {
				e.log.Error().Err(err).Msg("failed to record session")
			}
		}
		e.emit(Event{Kind: EventSessionCompleted, SessionType: c.SessionType, Source: models.SourceLocal})
	}
}

// Reconnect probes the server on request and returns to remote mode when it
// answers.
func (e *Engine) Reconnect(ctx context.Context) (Result, error) {
	snap, err := e.fetchStatus(ctx)
	now := e.clock.Now()

	e.mu.Lock()
	e.lastProbe = now
	if err != nil {
		res := Result{Snapshot: e.lastKnownLocked(), Mode: e.mode, Message: "Server still unavailable"}
		e.mu.Unlock()
		e.log.Debug().Err(err).Msg("reconnect failed")
		return res, fmt.Errorf("%w: reconnect: %w", ErrCommandFailed, err)
	}
	switched := e.mode.IsLocal()
	if switched {
		snap = e.keepCompletedLocked(snap)
	}
	e.mode = RemoteMode()
	e.last = &snap
	e.lastAt = now
	e.mu.Unlock()

	if switched {
		e.log.Info().Msg("reconnected to server")
		e.emit(Event{Kind: EventModeChanged, Mode: RemoteMode(), Message: "Reconnected to server"})
	}
	return Result{Snapshot: snap, Mode: RemoteMode(), Message: "Connected to server"}, nil
}

// Settings returns the session durations, from the server when it is the
// active timer and reachable.
func (e *Engine) Settings(ctx context.Context) models.Settings {
	e.mu.Lock()
	local := e.mode.IsLocal() || e.remote == nil
	cached := e.settings
	e.mu.Unlock()
	if local {
		return cached
	}

	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()
	s, err := e.remote.Settings(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("settings fetch failed, using cached settings")
		return cached
	}
	if s.Validate() != nil {
		return cached
	}
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	return s
}

// UpdateSettings validates s before anything else; invalid settings change
// nothing. In remote mode the server is updated first. The local timer takes
// the new duration only when it is not running.
func (e *Engine) UpdateSettings(ctx context.Context, s models.Settings) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	local := e.mode.IsLocal() || e.remote == nil
	e.mu.Unlock()

	if !local {
		cctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
		err := e.remote.UpdateSettings(cctx, s)
		cancel()
		if err != nil {
			msg := "Failed to save settings"
			e.log.Warn().Err(err).Msg("settings update failed")
			e.emit(Event{Kind: EventMessage, Message: msg})
			e.mu.Lock()
			res := Result{Snapshot: e.lastKnownLocked(), Mode: e.mode, Message: msg}
			e.mu.Unlock()
			return res, fmt.Errorf("%w: settings: %w", ErrCommandFailed, err)
		}
	}

	e.mu.Lock()
	e.settings = s
	if e.mode.IsLocal() {
		cur := e.local.Snapshot()
		e.local.Configure(s.DurationFor(cur.SessionType))
	}
	e.mu.Unlock()

	snap := e.Snapshot(ctx)
	return Result{Snapshot: snap, Mode: e.Mode(), Message: "Settings saved"}, nil
}
