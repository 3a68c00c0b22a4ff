package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/store"
)

var sessionListLocal bool

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Show recorded sessions",
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded sessions",
	Long: `List recorded sessions from the server. With --local, list the
sessions this machine recorded while running on the local timer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd.Context)
		if sessionListLocal {
			s, err := getStore()
			if err != nil {
				return err
			}
			journal, err := s.ListSessions(ctx, store.SessionFilter{})
			if err != nil {
				return fmt.Errorf("list local sessions: %w", err)
			}
			sessions := make([]models.CompletedSession, len(journal))
			for i, cs := range journal {
				sessions[i] = *cs
			}
			return ui.Sessions(sessions)
		}

		c, err := requireClient()
		if err != nil {
			return err
		}
		sessions, err := c.ListSessions(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		return ui.Sessions(sessions)
	},
}

var sessionTodayCmd = &cobra.Command{
	Use:   "today [date]",
	Short: "List work sessions for today or a date",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireClient()
		if err != nil {
			return err
		}
		date := today()
		if len(args) == 1 {
			date = args[0]
		}
		ctx := cmdContext(cmd.Context)
		sessions, err := c.WorkSessions(ctx, date)
		if err != nil {
			return fmt.Errorf("list work sessions: %w", err)
		}
		if err := ui.Sessions(sessions); err != nil {
			return err
		}
		stats, err := c.ProductivityStats(ctx, date)
		if err != nil {
			return fmt.Errorf("productivity stats: %w", err)
		}
		ui.ProductivityStats(stats)
		return nil
	},
}

var sessionMonthCmd = &cobra.Command{
	Use:   "month [year] [month]",
	Short: "List sessions for a month (default this month)",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month, err := parseYearMonth(args)
		if err != nil {
			return err
		}
		c, err := requireClient()
		if err != nil {
			return err
		}
		sessions, err := c.SessionsForMonth(cmdContext(cmd.Context), year, int(month))
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		return ui.Sessions(sessions)
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a recorded session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireClient()
		if err != nil {
			return err
		}
		if dryRun {
			ui.DryRunMsg("Would delete session %s", args[0])
			return nil
		}
		if err := c.DeleteSession(cmdContext(cmd.Context), args[0]); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		ui.Success("Deleted session %s", args[0])
		return nil
	},
}

func init() {
	sessionListCmd.Flags().BoolVar(&sessionListLocal, "local", false, "List sessions recorded on this machine")
	sessionCmd.AddCommand(sessionListCmd, sessionTodayCmd, sessionMonthCmd, sessionRmCmd)
	rootCmd.AddCommand(sessionCmd)
}

// parseYearMonth reads optional [year] [month] arguments, defaulting to now.
func parseYearMonth(args []string) (int, time.Month, error) {
	now := clock.Now()
	year, month := now.Year(), now.Month()
	if len(args) >= 1 {
		y, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year %q", args[0])
		}
		year = y
	}
	if len(args) == 2 {
		m, err := strconv.Atoi(args[1])
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("invalid month %q", args[1])
		}
		month = time.Month(m)
	}
	return year, month, nil
}
