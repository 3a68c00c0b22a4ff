package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pomo/internal/output"
	"github.com/joescharf/pomo/internal/reconcile"
	"github.com/joescharf/pomo/internal/refresh"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start or resume the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerCommandRun(cmdContext(cmd.Context), (*reconcile.Engine).Start)
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerCommandRun(cmdContext(cmd.Context), (*reconcile.Engine).Pause)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the session and reset it to its full length",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerCommandRun(cmdContext(cmd.Context), (*reconcile.Engine).Stop)
	},
}

var completeCmd = &cobra.Command{
	Use:     "complete",
	Aliases: []string{"skip"},
	Short:   "Finish the session now and move to the next one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerCommandRun(cmdContext(cmd.Context), (*reconcile.Engine).Complete)
	},
}

var reconnectCmd = &cobra.Command{
	Use:   "reconnect",
	Short: "Switch back to the server after falling back to the local timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerCommandRun(cmdContext(cmd.Context), (*reconcile.Engine).Reconnect)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live countdown with tasks and progress",
	Long: `Show a live countdown. The timer is polled every timer.poll_interval and
tasks and today's sessions are reloaded every timer.refresh_interval.
Press Ctrl-C to exit; the timer keeps running on the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun(cmdContext(cmd.Context))
	},
}

func init() {
	rootCmd.AddCommand(startCmd, pauseCmd, stopCmd, completeCmd, reconnectCmd, statusCmd, watchCmd)
}

func timerCommandRun(ctx context.Context, op func(*reconcile.Engine, context.Context) (reconcile.Result, error)) error {
	return withEngine(ctx, func(ctx context.Context, e *engineSession) error {
		if dryRun {
			ui.DryRunMsg("Would send command to %s", e.Mode())
			return nil
		}
		res, err := op(e.Engine, ctx)
		return printResult(res, err)
	})
}

func statusRun(cmd *cobra.Command) error {
	return withEngine(cmdContext(cmd.Context), func(ctx context.Context, e *engineSession) error {
		snap := e.Snapshot(ctx)
		mode := e.Mode()
		ui.Timer(snap, mode)
		if mode.IsLocal() {
			ui.VerboseLog("Using local timer (%s)", mode)
		}
		return nil
	})
}

func watchRun(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	return withEngine(ctx, func(ctx context.Context, e *engineSession) error {
		presenter := &output.LivePresenter{UI: ui}
		cfg := refresh.Config{
			Timer:           e.Engine,
			Presenter:       presenter,
			Clock:           clock,
			PollInterval:    viper.GetDuration("timer.poll_interval"),
			RefreshInterval: viper.GetDuration("timer.refresh_interval"),
			Logger:          logger,
		}
		if c := newClient(); c != nil {
			cfg.Data = c
		} else {
			cfg.Data = offlineData{}
		}
		runner := refresh.NewRunner(cfg)

		// Save state every 30s while watching.
		go func() {
			ticker := clock.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.Chan():
					if err := e.Save(); err != nil {
						logger.Warn().Err(err).Msg("failed to save timer state")
					}
				}
			}
		}()

		err := runner.Run(ctx)
		fmt.Fprintln(ui.Out)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}
