// Package refresh drives the periodic redraw of the timer, task list and
// session history.
package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/reconcile"
)

const (
	DefaultPollInterval    = time.Second
	DefaultRefreshInterval = 30 * time.Second
)

// Timer is the reconciled timer being displayed.
type Timer interface {
	Snapshot(ctx context.Context) models.Snapshot
	Mode() reconcile.Mode
	Subscribe(buffer int) <-chan reconcile.Event
	Unsubscribe(ch <-chan reconcile.Event)
}

// Data loads the non-timer views from the server.
type Data interface {
	ListTasks(ctx context.Context, date string) ([]models.Task, error)
	WorkSessions(ctx context.Context, date string) ([]models.CompletedSession, error)
	ProgressMonth(ctx context.Context, year, month int) (models.ProgressMonth, error)
}

// Presenter renders refreshed data. Calls come from the runner's goroutines
// and may be concurrent across kinds.
type Presenter interface {
	ShowTimer(snap models.Snapshot, mode reconcile.Mode)
	ShowTasks(tasks []models.Task, sessions []models.CompletedSession)
	ShowProgress(month models.ProgressMonth)
	ShowEvent(ev reconcile.Event)
}

// Config configures a Runner.
type Config struct {
	Timer           Timer
	Data            Data
	Presenter       Presenter
	Clock           clockwork.Clock
	Location        *time.Location
	PollInterval    time.Duration
	RefreshInterval time.Duration
	Logger          zerolog.Logger
}

// Runner polls the timer every PollInterval and reloads tasks and sessions
// every RefreshInterval. A tick that arrives while the previous one of the
// same kind is still in flight is dropped. A completion event or Trigger
// that finds a load in flight queues one more run instead.
type Runner struct {
	timer     Timer
	data      Data
	presenter Presenter
	clock     clockwork.Clock
	loc       *time.Location
	poll      time.Duration
	refresh   time.Duration
	log       zerolog.Logger

	trigger    chan struct{}
	polling    job
	refreshing job
	loading    job
}

// job guards one kind of background load. again records a request that
// arrived while a run was in flight and must not be lost.
type job struct {
	running atomic.Bool
	again   atomic.Bool
}

// NewRunner returns a Runner. Zero intervals take the defaults.
func NewRunner(cfg Config) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	return &Runner{
		timer:     cfg.Timer,
		data:      cfg.Data,
		presenter: cfg.Presenter,
		clock:     cfg.Clock,
		loc:       cfg.Location,
		poll:      cfg.PollInterval,
		refresh:   cfg.RefreshInterval,
		log:       cfg.Logger.With().Str("component", "refresh").Logger(),
		trigger:   make(chan struct{}, 1),
	}
}

// Trigger requests an immediate refresh of everything, e.g. when the
// display becomes visible again. Repeated calls before the runner wakes
// collapse into one.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	events := r.timer.Subscribe(8)
	defer r.timer.Unsubscribe(events)

	pollTicker := r.clock.NewTicker(r.poll)
	defer pollTicker.Stop()
	refreshTicker := r.clock.NewTicker(r.refresh)
	defer refreshTicker.Stop()

	r.pollTimer(ctx)
	r.refreshLists(ctx, false)
	r.loadProgress(ctx, false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollTicker.Chan():
			r.pollTimer(ctx)
		case <-refreshTicker.Chan():
			r.refreshLists(ctx, false)
		case <-r.trigger:
			r.pollTimer(ctx)
			r.refreshLists(ctx, true)
			r.loadProgress(ctx, true)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.presenter.ShowEvent(ev)
			if ev.Kind == reconcile.EventSessionCompleted {
				r.refreshLists(ctx, true)
				r.loadProgress(ctx, true)
			}
		}
	}
}

func (r *Runner) today() time.Time {
	return r.clock.Now().In(r.loc)
}

// once runs fn in its own goroutine unless the previous run of j is still
// in flight. With followUp set, a request that finds j busy is queued and
// fn runs once more when the current run returns.
func (r *Runner) once(j *job, name string, followUp bool, fn func()) {
	if !j.running.CompareAndSwap(false, true) {
		if followUp {
			j.again.Store(true)
			r.log.Debug().Str("job", name).Msg("run in flight, queued follow-up")
			return
		}
		r.log.Debug().Str("job", name).Msg("previous run in flight, skipping")
		return
	}
	go func() {
		for {
			j.again.Store(false)
			fn()
			j.running.Store(false)
			if !j.again.Load() || !j.running.CompareAndSwap(false, true) {
				return
			}
		}
	}()
}

func (r *Runner) pollTimer(ctx context.Context) {
	r.once(&r.polling, "timer", false, func() {
		snap := r.timer.Snapshot(ctx)
		if ctx.Err() != nil {
			return
		}
		r.presenter.ShowTimer(snap, r.timer.Mode())
	})
}

func (r *Runner) refreshLists(ctx context.Context, followUp bool) {
	r.once(&r.refreshing, "lists", followUp, func() {
		date := r.today().Format(models.DateLayout)
		tasks, err := r.data.ListTasks(ctx, date)
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to load tasks")
			return
		}
		sessions, err := r.data.WorkSessions(ctx, date)
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to load sessions")
			return
		}
		r.presenter.ShowTasks(tasks, sessions)
	})
}

func (r *Runner) loadProgress(ctx context.Context, followUp bool) {
	r.once(&r.loading, "progress", followUp, func() {
		now := r.today()
		month, err := r.data.ProgressMonth(ctx, now.Year(), int(now.Month()))
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to load progress")
			return
		}
		r.presenter.ShowProgress(month)
	})
}
