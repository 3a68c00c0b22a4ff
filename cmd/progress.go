package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show productivity charts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return progressMonthRun(cmd, nil)
	},
}

var progressChartCmd = &cobra.Command{
	Use:   "chart [year]",
	Short: "Show a year of daily work levels",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, err := optionalYear(args)
		if err != nil {
			return err
		}
		c, err := requireClient()
		if err != nil {
			return err
		}
		chart, err := c.ProgressChart(cmdContext(cmd.Context), year)
		if err != nil {
			return fmt.Errorf("progress chart: %w", err)
		}
		ui.Chart(chart)
		return nil
	},
}

var progressMonthCmd = &cobra.Command{
	Use:   "month [year] [month]",
	Short: "Show a month of daily work levels",
	Args:  cobra.MaximumNArgs(2),
	RunE:  progressMonthRun,
}

func progressMonthRun(cmd *cobra.Command, args []string) error {
	year, month, err := parseYearMonth(args)
	if err != nil {
		return err
	}
	c, err := requireClient()
	if err != nil {
		return err
	}
	m, err := c.ProgressMonth(cmdContext(cmd.Context), year, int(month))
	if err != nil {
		return fmt.Errorf("progress month: %w", err)
	}
	ui.Month(m)
	return nil
}

var progressDayCmd = &cobra.Command{
	Use:   "day [date]",
	Short: "Show the work done on a day",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := today()
		if len(args) == 1 {
			date = args[0]
		}
		c, err := requireClient()
		if err != nil {
			return err
		}
		d, err := c.ProgressDay(cmdContext(cmd.Context), date)
		if err != nil {
			return fmt.Errorf("progress day: %w", err)
		}
		ui.Day(d)
		return nil
	},
}

var progressStatsCmd = &cobra.Command{
	Use:   "stats [year]",
	Short: "Show yearly totals and streaks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, err := optionalYear(args)
		if err != nil {
			return err
		}
		c, err := requireClient()
		if err != nil {
			return err
		}
		stats, err := c.YearlyStats(cmdContext(cmd.Context), year)
		if err != nil {
			return fmt.Errorf("yearly stats: %w", err)
		}
		ui.YearlyStats(stats)
		return nil
	},
}

var progressYearsCmd = &cobra.Command{
	Use:   "years",
	Short: "List years with charts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireClient()
		if err != nil {
			return err
		}
		years, err := c.AvailableYears(cmdContext(cmd.Context))
		if err != nil {
			return fmt.Errorf("available years: %w", err)
		}
		for _, y := range years {
			fmt.Fprintln(ui.Out, y)
		}
		return nil
	},
}

func init() {
	progressCmd.AddCommand(progressChartCmd, progressMonthCmd, progressDayCmd, progressStatsCmd, progressYearsCmd)
	rootCmd.AddCommand(progressCmd)
}

// optionalYear returns the [year] argument, or 0 for the server's current year.
func optionalYear(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	y, err := strconv.Atoi(args[0])
	if err != nil || y < 1 {
		return 0, fmt.Errorf("invalid year %q", args[0])
	}
	return y, nil
}
