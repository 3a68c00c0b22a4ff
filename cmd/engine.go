package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"

	"github.com/joescharf/pomo/internal/localstate"
	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/reconcile"
	"github.com/joescharf/pomo/internal/remote"
)

// clock is the process clock, replaceable in tests.
var clock clockwork.Clock = clockwork.NewRealClock()

func serverURL() string {
	return strings.TrimRight(viper.GetString("server_url"), "/")
}

// newClient returns the API client, or nil when no server is configured.
func newClient() *remote.Client {
	url := serverURL()
	if url == "" {
		return nil
	}
	return remote.New(url)
}

// requireClient is for commands that only make sense against a server.
func requireClient() (*remote.Client, error) {
	c := newClient()
	if c == nil {
		return nil, fmt.Errorf("%w: set server_url or pass --server", errNoServer)
	}
	return c, nil
}

func configuredSettings() models.Settings {
	return models.SettingsFromMinutes(
		viper.GetInt("timer.work_minutes"),
		viper.GetInt("timer.short_break_minutes"),
		viper.GetInt("timer.long_break_minutes"),
		viper.GetInt("timer.long_break_interval"),
	)
}

func statePath() string {
	return localstate.Path(viper.GetString("state_dir"))
}

// engineSession is an engine restored from the state file. Save writes it
// back so the next invocation continues where this one stopped.
type engineSession struct {
	*reconcile.Engine
	url string
}

func openEngine() (*engineSession, error) {
	cfg := reconcile.Config{
		Clock:           clock,
		Settings:        configuredSettings(),
		StatusTimeout:   viper.GetDuration("timer.status_timeout"),
		ReprobeInterval: viper.GetDuration("timer.reprobe_interval"),
		Logger:          logger,
	}
	if c := newClient(); c != nil {
		cfg.Remote = c
	}
	if journal, err := getStore(); err == nil {
		cfg.Recorder = journal
	} else {
		logger.Warn().Err(err).Msg("session journal unavailable")
	}

	e := reconcile.New(cfg)
	url := serverURL()
	st, ok, err := localstate.Load(statePath(), url)
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring unreadable timer state")
	} else if ok {
		e.Restore(st)
	}
	return &engineSession{Engine: e, url: url}, nil
}

func (s *engineSession) Save() error {
	if dryRun {
		return nil
	}
	if err := localstate.Save(statePath(), s.url, s.Export(), clock.Now()); err != nil {
		return fmt.Errorf("save timer state: %w", err)
	}
	return nil
}

// withEngine runs fn against a restored engine and saves it afterwards,
// even when fn fails.
func withEngine(ctx context.Context, fn func(ctx context.Context, e *engineSession) error) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	runErr := fn(ctx, e)
	if err := e.Save(); err != nil {
		logger.Warn().Err(err).Msg("failed to save timer state")
	}
	return runErr
}

// printResult shows a command result the way every timer command does.
func printResult(res reconcile.Result, err error) error {
	if err != nil {
		msg := res.Message
		if msg == "" {
			msg = err.Error()
		}
		ui.Error("%s", msg)
		return err
	}
	if res.Message != "" {
		if res.Mode.IsLocal() {
			ui.Warning("%s", res.Message)
		} else {
			ui.Info("%s", res.Message)
		}
	}
	ui.Timer(res.Snapshot, res.Mode)
	return nil
}

func cmdContext(ctxFn func() context.Context) context.Context {
	if ctx := ctxFn(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var errNoServer = errors.New("no server configured")

// offlineData stands in for the server's task and progress views when no
// server is configured.
type offlineData struct{}

func (offlineData) ListTasks(context.Context, string) ([]models.Task, error) {
	return nil, errNoServer
}

func (offlineData) WorkSessions(context.Context, string) ([]models.CompletedSession, error) {
	return nil, errNoServer
}

func (offlineData) ProgressMonth(context.Context, int, int) (models.ProgressMonth, error) {
	return models.ProgressMonth{}, errNoServer
}

func (offlineData) CreateTask(context.Context, string, string, int) (*models.Task, error) {
	return nil, errNoServer
}

func (offlineData) CompleteTask(context.Context, string) (*models.Task, error) {
	return nil, errNoServer
}
