package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/remote"
)

var (
	taskAddDate        string
	taskAddHigh        bool
	taskListIncomplete bool
	taskListCompleted  bool
	taskListOverdue    bool
)

func today() string {
	return clock.Now().Format(models.DateLayout)
}

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"tasks", "t"},
	Short:   "Manage the daily task list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun(cmd, nil)
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list [date]",
	Aliases: []string{"ls"},
	Short:   "List tasks for today or a date (YYYY-MM-DD)",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun(cmd, args)
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskAddRun(cmd, strings.Join(args, " "))
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task as done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskMutateRun(cmd, "Completed", func(c *remote.Client) (*models.Task, error) {
			return c.CompleteTask(cmdContext(cmd.Context), args[0])
		})
	},
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip a task between done and open",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskMutateRun(cmd, "Toggled", func(c *remote.Client) (*models.Task, error) {
			return c.ToggleTask(cmdContext(cmd.Context), args[0])
		})
	},
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <id> <text>",
	Short: "Change a task's text",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := models.NormalizeTaskText(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		return taskMutateRun(cmd, "Updated", func(c *remote.Client) (*models.Task, error) {
			return c.UpdateTask(cmdContext(cmd.Context), args[0], text)
		})
	},
}

var taskPriorityCmd = &cobra.Command{
	Use:       "priority <id> <high|normal>",
	Short:     "Set a task's priority",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"high", "normal"},
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, err := parsePriority(args[1])
		if err != nil {
			return err
		}
		return taskMutateRun(cmd, "Updated", func(c *remote.Client) (*models.Task, error) {
			return c.SetTaskPriority(cmdContext(cmd.Context), args[0], priority)
		})
	},
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireClient()
		if err != nil {
			return err
		}
		if dryRun {
			ui.DryRunMsg("Would delete task %s", args[0])
			return nil
		}
		if err := c.DeleteTask(cmdContext(cmd.Context), args[0]); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		ui.Success("Deleted task %s", args[0])
		return nil
	},
}

var taskClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all of today's tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireClient()
		if err != nil {
			return err
		}
		if dryRun {
			ui.DryRunMsg("Would delete all tasks for %s", today())
			return nil
		}
		if err := c.ClearTasks(cmdContext(cmd.Context)); err != nil {
			return fmt.Errorf("clear tasks: %w", err)
		}
		ui.Success("Cleared tasks for %s", today())
		return nil
	},
}

var taskStatsCmd = &cobra.Command{
	Use:   "stats [date]",
	Short: "Show task completion for today or a date",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireClient()
		if err != nil {
			return err
		}
		date := ""
		if len(args) == 1 {
			date = args[0]
		}
		stats, err := c.TaskStats(cmdContext(cmd.Context), date)
		if err != nil {
			return fmt.Errorf("task stats: %w", err)
		}
		ui.TaskStats(stats)
		return nil
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskAddDate, "date", "", "Date for the task (YYYY-MM-DD, default today)")
	taskAddCmd.Flags().BoolVar(&taskAddHigh, "high", false, "Mark as high priority")

	taskListCmd.Flags().BoolVar(&taskListIncomplete, "open", false, "Only today's open tasks")
	taskListCmd.Flags().BoolVar(&taskListCompleted, "done", false, "Only today's completed tasks")
	taskListCmd.Flags().BoolVar(&taskListOverdue, "overdue", false, "Open tasks from earlier days")
	taskListCmd.MarkFlagsMutuallyExclusive("open", "done", "overdue")

	taskCmd.AddCommand(taskListCmd, taskAddCmd, taskDoneCmd, taskToggleCmd, taskEditCmd,
		taskPriorityCmd, taskRmCmd, taskClearCmd, taskStatsCmd)
	rootCmd.AddCommand(taskCmd)
}

func parsePriority(s string) (int, error) {
	switch strings.ToLower(s) {
	case "high", "1", "!":
		return models.PriorityHigh, nil
	case "normal", "0", "low":
		return models.PriorityNormal, nil
	}
	return 0, fmt.Errorf("invalid priority %q (use high or normal)", s)
}

func taskListRun(cmd *cobra.Command, args []string) error {
	c, err := requireClient()
	if err != nil {
		return err
	}
	ctx := cmdContext(cmd.Context)

	var tasks []models.Task
	switch {
	case taskListIncomplete:
		tasks, err = c.IncompleteTasks(ctx)
	case taskListCompleted:
		tasks, err = c.CompletedTasks(ctx)
	case taskListOverdue:
		tasks, err = c.OverdueTasks(ctx)
	default:
		date := ""
		if len(args) == 1 {
			date = args[0]
		}
		tasks, err = c.ListTasks(ctx, date)
	}
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	return ui.Tasks(tasks, today())
}

func taskAddRun(cmd *cobra.Command, text string) error {
	text, err := models.NormalizeTaskText(text)
	if err != nil {
		return err
	}
	c, err := requireClient()
	if err != nil {
		return err
	}
	priority := models.PriorityNormal
	if taskAddHigh {
		priority = models.PriorityHigh
	}
	if dryRun {
		ui.DryRunMsg("Would add task %q", text)
		return nil
	}
	task, err := c.CreateTask(cmdContext(cmd.Context), taskAddDate, text, priority)
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	ui.Success("Added task %s: %s", task.ID, task.Text)
	return nil
}

func taskMutateRun(cmd *cobra.Command, verb string, fn func(c *remote.Client) (*models.Task, error)) error {
	c, err := requireClient()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would update task")
		return nil
	}
	task, err := fn(c)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	state := "open"
	if task.Completed {
		state = "done"
	}
	ui.Success("%s task %s (%s): %s", verb, task.ID, state, task.Text)
	return nil
}
