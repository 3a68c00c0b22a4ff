package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/pomo/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Tools drive the same timer as the CLI, falling back to the local timer
when the server is unreachable. Configure in Claude Code with:

  {
    "mcpServers": {
      "pomo": { "command": "pomo", "args": ["mcp"] }
    }
  }

Available tools: pomo_timer_status, pomo_timer_start, pomo_timer_pause,
pomo_timer_stop, pomo_timer_complete, pomo_timer_reconnect,
pomo_list_tasks, pomo_add_task, pomo_complete_task`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmdContext(cmd.Context), shutdownSignals()...)
		defer stop()
		return withEngine(ctx, func(ctx context.Context, e *engineSession) error {
			return newMCPServer(e).ServeStdio(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func newMCPServer(e *engineSession) *mcp.Server {
	var tasks mcp.Tasks = offlineData{}
	if c := newClient(); c != nil {
		tasks = c
	}
	return mcp.NewServer(e.Engine, tasks, clock, buildVersion)
}
