package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/reconcile"
	"github.com/joescharf/pomo/internal/timer"
)

// Timer is the reconciled timer exposed to tools.
type Timer interface {
	Snapshot(ctx context.Context) models.Snapshot
	Mode() reconcile.Mode
	Start(ctx context.Context) (reconcile.Result, error)
	Pause(ctx context.Context) (reconcile.Result, error)
	Stop(ctx context.Context) (reconcile.Result, error)
	Complete(ctx context.Context) (reconcile.Result, error)
	Reconnect(ctx context.Context) (reconcile.Result, error)
}

// Tasks is the server-side task list.
type Tasks interface {
	ListTasks(ctx context.Context, date string) ([]models.Task, error)
	CreateTask(ctx context.Context, date, text string, priority int) (*models.Task, error)
	CompleteTask(ctx context.Context, id string) (*models.Task, error)
}

// Server exposes the timer and task list as MCP tools.
type Server struct {
	timer   Timer
	tasks   Tasks
	clock   clockwork.Clock
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(t Timer, tasks Tasks, clock clockwork.Clock, version string) *Server {
	return &Server{timer: t, tasks: tasks, clock: clock, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("pomo", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.timerStatusTool())
	srv.AddTool(s.timerCommandTool("pomo_timer_start", "Start or resume the current session.", s.timer.Start))
	srv.AddTool(s.timerCommandTool("pomo_timer_pause", "Pause the running session.", s.timer.Pause))
	srv.AddTool(s.timerCommandTool("pomo_timer_stop", "Stop the session and reset it to its full length.", s.timer.Stop))
	srv.AddTool(s.timerCommandTool("pomo_timer_complete", "Finish the session now and advance to the next one.", s.timer.Complete))
	srv.AddTool(s.timerCommandTool("pomo_timer_reconnect", "Try the server again after falling back to the local timer.", s.timer.Reconnect))
	srv.AddTool(s.listTasksTool())
	srv.AddTool(s.addTaskTool())
	srv.AddTool(s.completeTaskTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

type timerOut struct {
	SessionType           models.SessionType `json:"session_type"`
	State                 models.TimerState  `json:"state"`
	Remaining             string             `json:"remaining"`
	RemainingSeconds      int                `json:"remaining_seconds"`
	TotalDurationSeconds  int                `json:"total_duration_seconds"`
	CompletedWorkSessions int                `json:"completed_work_sessions"`
	Mode                  reconcile.ModeKind `json:"mode"`
	Message               string             `json:"message,omitempty"`
}

func newTimerOut(snap models.Snapshot, mode reconcile.Mode, msg string) timerOut {
	return timerOut{
		SessionType:           snap.SessionType,
		State:                 snap.State,
		Remaining:             timer.FormatTime(float64(snap.RemainingSeconds)),
		RemainingSeconds:      snap.RemainingSeconds,
		TotalDurationSeconds:  snap.TotalDurationSeconds,
		CompletedWorkSessions: snap.CompletedWorkSessions,
		Mode:                  mode.Kind,
		Message:               msg,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// pomo_timer_status
func (s *Server) timerStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pomo_timer_status",
		mcp.WithDescription("Get the current pomodoro session: type, state, remaining time, completed work sessions, and whether the server or the local fallback timer is in use."),
	)
	return tool, s.handleTimerStatus
}

func (s *Server) handleTimerStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.timer.Snapshot(ctx)
	return jsonResult(newTimerOut(snap, s.timer.Mode(), ""))
}

func (s *Server) timerCommandTool(name, desc string, run func(context.Context) (reconcile.Result, error)) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool(name, mcp.WithDescription(desc))
	return tool, s.commandHandler(run)
}

func (s *Server) commandHandler(run func(context.Context) (reconcile.Result, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := run(ctx)
		if err != nil {
			msg := res.Message
			if msg == "" || !errors.Is(err, reconcile.ErrCommandFailed) {
				msg = err.Error()
			}
			return mcp.NewToolResultError(msg), nil
		}
		return jsonResult(newTimerOut(res.Snapshot, res.Mode, res.Message))
	}
}

// pomo_list_tasks
func (s *Server) listTasksTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pomo_list_tasks",
		mcp.WithDescription("List tasks for a day. Returns a JSON array with id, text, completed, date, and priority (1 is high)."),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD, defaults to today")),
	)
	return tool, s.handleListTasks
}

func (s *Server) today() string {
	return s.clock.Now().Format(models.DateLayout)
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date := request.GetString("date", s.today())
	tasks, err := s.tasks.ListTasks(ctx, date)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return jsonResult(tasks)
}

// pomo_add_task
func (s *Server) addTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pomo_add_task",
		mcp.WithDescription("Add a task. Returns the created task as JSON."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Task text, at most 500 characters")),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD, defaults to today")),
		mcp.WithBoolean("high_priority", mcp.Description("Mark the task as high priority")),
	)
	return tool, s.handleAddTask
}

func (s *Server) handleAddTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}
	text, err = models.NormalizeTaskText(text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	priority := models.PriorityNormal
	if request.GetBool("high_priority", false) {
		priority = models.PriorityHigh
	}
	task, err := s.tasks.CreateTask(ctx, request.GetString("date", s.today()), text, priority)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add task: %v", err)), nil
	}
	return jsonResult(task)
}

// pomo_complete_task
func (s *Server) completeTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pomo_complete_task",
		mcp.WithDescription("Mark a task as done. Returns the updated task as JSON."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
	)
	return tool, s.handleCompleteTask
}

func (s *Server) handleCompleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: task_id"), nil
	}
	task, err := s.tasks.CompleteTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete task: %v", err)), nil
	}
	return jsonResult(task)
}
