package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/joescharf/pomo/internal/models"
)

var (
	settingsWork     int
	settingsShort    int
	settingsLong     int
	settingsInterval int
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change session durations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmdContext(cmd.Context), func(ctx context.Context, e *engineSession) error {
			ui.Settings(e.Settings(ctx))
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change session durations (minutes)",
	Example: `  pomo settings set --work 50 --short 10
  pomo settings set --long 30 --interval 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmdContext(cmd.Context), func(ctx context.Context, e *engineSession) error {
			return settingsSetRun(ctx, cmd, e)
		})
	},
}

func init() {
	settingsSetCmd.Flags().IntVar(&settingsWork, "work", 0, "Work session length in minutes (1-120)")
	settingsSetCmd.Flags().IntVar(&settingsShort, "short", 0, "Short break length in minutes (1-60)")
	settingsSetCmd.Flags().IntVar(&settingsLong, "long", 0, "Long break length in minutes (1-60)")
	settingsSetCmd.Flags().IntVar(&settingsInterval, "interval", 0, "Work sessions between long breaks")
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

// mergeSettings overlays the flags that were set on current.
func mergeSettings(cmd *cobra.Command, current models.Settings) models.Settings {
	next := current
	if cmd.Flags().Changed("work") {
		next.WorkDurationSeconds = settingsWork * 60
	}
	if cmd.Flags().Changed("short") {
		next.ShortBreakDurationSeconds = settingsShort * 60
	}
	if cmd.Flags().Changed("long") {
		next.LongBreakDurationSeconds = settingsLong * 60
	}
	if cmd.Flags().Changed("interval") {
		next.LongBreakInterval = settingsInterval
	}
	return next
}

func settingsSetRun(ctx context.Context, cmd *cobra.Command, e *engineSession) error {
	next := mergeSettings(cmd, e.Settings(ctx))
	if err := next.Validate(); err != nil {
		ui.Error("%v", err)
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would save settings")
		ui.Settings(next)
		return nil
	}

	res, err := e.UpdateSettings(ctx, next)
	if err != nil {
		if errors.Is(err, models.ErrInvalidSettings) {
			ui.Error("%v", err)
			return err
		}
		return printResult(res, err)
	}
	if res.Mode.IsLocal() {
		ui.Warning("%s (local timer only)", res.Message)
	} else {
		ui.Success("%s", res.Message)
	}
	ui.Settings(next)
	return nil
}
