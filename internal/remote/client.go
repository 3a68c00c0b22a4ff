// Package remote is an HTTP client for the pomodoro API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/pomo/internal/models"
)

// Client talks to a pomodoro API server.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// New returns a Client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: map[string]string{"Accept": "application/json"},
	}
}

// BaseURL returns the server root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// SetHeader adds a header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetTimeout bounds every request, independent of context deadlines.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetHTTPClient replaces the underlying transport client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.client = hc
}

func (c *Client) do(ctx context.Context, method, endpoint string, in any) ([]byte, error) {
	op := method + " " + endpoint

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(responseBody))}
	}
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response body: %w", err)}
	}
	return responseBody, nil
}

func decode[T any](data []byte, op string) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", op, err)
	}
	return v, nil
}

func fetch[T any](ctx context.Context, c *Client, method, endpoint string, in any) (T, error) {
	data, err := c.do(ctx, method, endpoint, in)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](data, endpoint)
}

// --- Timer ---

// Status fetches the current timer snapshot.
func (c *Client) Status(ctx context.Context) (models.Snapshot, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/timer/status", nil)
	if err != nil {
		return models.Snapshot{}, err
	}
	return DecodeSnapshot(data), nil
}

// Start starts or resumes the server timer.
func (c *Client) Start(ctx context.Context) (*models.Snapshot, error) {
	return c.command(ctx, "start")
}

// Pause pauses the server timer.
func (c *Client) Pause(ctx context.Context) (*models.Snapshot, error) {
	return c.command(ctx, "pause")
}

// Stop stops and resets the server timer.
func (c *Client) Stop(ctx context.Context) (*models.Snapshot, error) {
	return c.command(ctx, "stop")
}

// Complete marks the current session complete; the server moves to the next one.
func (c *Client) Complete(ctx context.Context) (*models.Snapshot, error) {
	return c.command(ctx, "complete")
}

// Reset returns the server to a fresh work session.
func (c *Client) Reset(ctx context.Context) (*models.Snapshot, error) {
	return c.command(ctx, "reset")
}

// command posts a timer command. The returned snapshot is nil when the server
// sends no body.
func (c *Client) command(ctx context.Context, name string) (*models.Snapshot, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/timer/"+name, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	snap := DecodeSnapshot(data)
	return &snap, nil
}

// Settings fetches the server's session durations.
func (c *Client) Settings(ctx context.Context) (models.Settings, error) {
	s, err := fetch[models.Settings](ctx, c, http.MethodGet, "/api/timer/settings", nil)
	if err != nil {
		return s, err
	}
	if s.LongBreakInterval == 0 {
		s.LongBreakInterval = models.DefaultSettings().LongBreakInterval
	}
	return s, nil
}

// UpdateSettings replaces the server's session durations.
func (c *Client) UpdateSettings(ctx context.Context, s models.Settings) error {
	_, err := c.do(ctx, http.MethodPut, "/api/timer/settings", s)
	return err
}

// --- Tasks ---

// CreateTaskRequest is the body for task creation.
type CreateTaskRequest struct {
	Text     string `json:"text"`
	Priority int    `json:"priority"`
}

// ListTasks returns the tasks for date, or for today when date is empty.
func (c *Client) ListTasks(ctx context.Context, date string) ([]models.Task, error) {
	endpoint := "/api/tasks"
	if date != "" {
		endpoint += "/" + date
	}
	return fetch[[]models.Task](ctx, c, http.MethodGet, endpoint, nil)
}

// CreateTask adds a task for date, or for today when date is empty.
func (c *Client) CreateTask(ctx context.Context, date, text string, priority int) (*models.Task, error) {
	endpoint := "/api/tasks"
	if date != "" {
		endpoint += "/" + date
	}
	return fetch[*models.Task](ctx, c, http.MethodPost, endpoint, CreateTaskRequest{Text: text, Priority: priority})
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return fetch[*models.Task](ctx, c, http.MethodGet, "/api/tasks/task/"+id, nil)
}

// UpdateTask replaces a task's text.
func (c *Client) UpdateTask(ctx context.Context, id, text string) (*models.Task, error) {
	return fetch[*models.Task](ctx, c, http.MethodPut, "/api/tasks/"+id, map[string]string{"text": text})
}

// ToggleTask flips a task's completion.
func (c *Client) ToggleTask(ctx context.Context, id string) (*models.Task, error) {
	return fetch[*models.Task](ctx, c, http.MethodPatch, "/api/tasks/"+id+"/toggle", nil)
}

// CompleteTask marks a task done.
func (c *Client) CompleteTask(ctx context.Context, id string) (*models.Task, error) {
	return fetch[*models.Task](ctx, c, http.MethodPatch, "/api/tasks/"+id+"/complete", nil)
}

// SetTaskPriority sets a task's priority.
func (c *Client) SetTaskPriority(ctx context.Context, id string, priority int) (*models.Task, error) {
	return fetch[*models.Task](ctx, c, http.MethodPatch, "/api/tasks/"+id+"/priority", map[string]int{"priority": priority})
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil)
	return err
}

// ClearTasks removes today's tasks.
func (c *Client) ClearTasks(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/tasks/clear", nil)
	return err
}

// TaskStats summarizes the tasks for date, or for today when date is empty.
func (c *Client) TaskStats(ctx context.Context, date string) (models.TaskStats, error) {
	endpoint := "/api/tasks/stats"
	if date != "" {
		endpoint += "/" + date
	}
	return fetch[models.TaskStats](ctx, c, http.MethodGet, endpoint, nil)
}

// IncompleteTasks returns today's open tasks.
func (c *Client) IncompleteTasks(ctx context.Context) ([]models.Task, error) {
	return fetch[[]models.Task](ctx, c, http.MethodGet, "/api/tasks/incomplete", nil)
}

// CompletedTasks returns today's finished tasks.
func (c *Client) CompletedTasks(ctx context.Context) ([]models.Task, error) {
	return fetch[[]models.Task](ctx, c, http.MethodGet, "/api/tasks/completed", nil)
}

// OverdueTasks returns open tasks from earlier days.
func (c *Client) OverdueTasks(ctx context.Context) ([]models.Task, error) {
	return fetch[[]models.Task](ctx, c, http.MethodGet, "/api/tasks/overdue", nil)
}

// --- Sessions ---

// ListSessions returns every recorded session.
func (c *Client) ListSessions(ctx context.Context) ([]models.CompletedSession, error) {
	return fetch[[]models.CompletedSession](ctx, c, http.MethodGet, "/api/sessions", nil)
}

// WorkSessions returns the work sessions recorded on date.
func (c *Client) WorkSessions(ctx context.Context, date string) ([]models.CompletedSession, error) {
	return fetch[[]models.CompletedSession](ctx, c, http.MethodGet, "/api/sessions/work/"+date, nil)
}

// ProductivityStats summarizes the work done on date.
func (c *Client) ProductivityStats(ctx context.Context, date string) (models.ProductivityStats, error) {
	return fetch[models.ProductivityStats](ctx, c, http.MethodGet, "/api/sessions/stats/"+date, nil)
}

// SessionsForMonth returns the sessions recorded in a month.
func (c *Client) SessionsForMonth(ctx context.Context, year, month int) ([]models.CompletedSession, error) {
	return fetch[[]models.CompletedSession](ctx, c, http.MethodGet, fmt.Sprintf("/api/sessions/month/%d/%d", year, month), nil)
}

// SessionsForYear returns the sessions recorded in a year.
func (c *Client) SessionsForYear(ctx context.Context, year int) ([]models.CompletedSession, error) {
	return fetch[[]models.CompletedSession](ctx, c, http.MethodGet, fmt.Sprintf("/api/sessions/year/%d", year), nil)
}

// DeleteSession removes a recorded session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/sessions/"+id, nil)
	return err
}

// --- Progress ---

// ProgressMonth returns the daily breakdown for a month.
func (c *Client) ProgressMonth(ctx context.Context, year, month int) (models.ProgressMonth, error) {
	return fetch[models.ProgressMonth](ctx, c, http.MethodGet, fmt.Sprintf("/api/progress/month/%d/%d", year, month), nil)
}

// ProgressDay returns the progress for a single date.
func (c *Client) ProgressDay(ctx context.Context, date string) (models.ProgressDay, error) {
	return fetch[models.ProgressDay](ctx, c, http.MethodGet, "/api/progress/day/"+date, nil)
}

// ProgressChart returns the chart for year, or the current year when year is 0.
func (c *Client) ProgressChart(ctx context.Context, year int) (models.ProgressChart, error) {
	endpoint := "/api/progress/chart"
	if year > 0 {
		endpoint += fmt.Sprintf("/%d", year)
	}
	return fetch[models.ProgressChart](ctx, c, http.MethodGet, endpoint, nil)
}

// YearlyStats returns the totals for year, or the current year when year is 0.
func (c *Client) YearlyStats(ctx context.Context, year int) (models.YearlyStats, error) {
	endpoint := "/api/progress/stats"
	if year > 0 {
		endpoint += fmt.Sprintf("/%d", year)
	}
	return fetch[models.YearlyStats](ctx, c, http.MethodGet, endpoint, nil)
}

// AvailableYears lists the years with chart data.
func (c *Client) AvailableYears(ctx context.Context) ([]int, error) {
	return fetch[[]int](ctx, c, http.MethodGet, "/api/progress/years", nil)
}
