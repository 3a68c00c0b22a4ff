package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/pomodoro"
	"github.com/joescharf/pomo/internal/progress"
	"github.com/joescharf/pomo/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	store    store.Store
	timer    *pomodoro.Service
	progress *progress.Builder
	clock    clockwork.Clock
	log      zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(s store.Store, timer *pomodoro.Service, pb *progress.Builder, clock clockwork.Clock, logger zerolog.Logger) *Server {
	return &Server{
		store:    s,
		timer:    timer,
		progress: pb,
		clock:    clock,
		log:      logger.With().Str("component", "api").Logger(),
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/timer/status", s.timerStatus)
	mux.HandleFunc("POST /api/timer/start", s.timerStart)
	mux.HandleFunc("POST /api/timer/pause", s.timerPause)
	mux.HandleFunc("POST /api/timer/stop", s.timerStop)
	mux.HandleFunc("POST /api/timer/complete", s.timerComplete)
	mux.HandleFunc("POST /api/timer/reset", s.timerReset)
	mux.HandleFunc("GET /api/timer/settings", s.getSettings)
	mux.HandleFunc("PUT /api/timer/settings", s.updateSettings)

	mux.HandleFunc("GET /api/tasks", s.listTodaysTasks)
	mux.HandleFunc("POST /api/tasks", s.createTask)
	mux.HandleFunc("GET /api/tasks/incomplete", s.listIncompleteTasks)
	mux.HandleFunc("GET /api/tasks/completed", s.listCompletedTasks)
	mux.HandleFunc("GET /api/tasks/overdue", s.listOverdueTasks)
	mux.HandleFunc("GET /api/tasks/stats", s.taskStats)
	mux.HandleFunc("GET /api/tasks/stats/{date}", s.taskStats)
	mux.HandleFunc("DELETE /api/tasks/clear", s.clearTasks)
	mux.HandleFunc("GET /api/tasks/task/{id}", s.getTask)
	mux.HandleFunc("GET /api/tasks/{date}", s.listTasksForDate)
	mux.HandleFunc("POST /api/tasks/{date}", s.createTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.deleteTask)
	mux.HandleFunc("PATCH /api/tasks/{id}/toggle", s.toggleTask)
	mux.HandleFunc("PATCH /api/tasks/{id}/complete", s.completeTask)
	mux.HandleFunc("PATCH /api/tasks/{id}/priority", s.setTaskPriority)

	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/work/{date}", s.listWorkSessions)
	mux.HandleFunc("GET /api/sessions/stats/{date}", s.productivityStats)
	mux.HandleFunc("GET /api/sessions/month/{year}/{month}", s.listSessionsForMonth)
	mux.HandleFunc("GET /api/sessions/year/{year}", s.listSessionsForYear)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)

	mux.HandleFunc("GET /api/progress/month/{year}/{month}", s.progressMonth)
	mux.HandleFunc("GET /api/progress/day/{date}", s.progressDay)
	mux.HandleFunc("GET /api/progress/chart", s.progressChart)
	mux.HandleFunc("GET /api/progress/chart/{year}", s.progressChart)
	mux.HandleFunc("GET /api/progress/stats", s.yearlyStats)
	mux.HandleFunc("GET /api/progress/stats/{year}", s.yearlyStats)
	mux.HandleFunc("GET /api/progress/years", s.availableYears)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.requestLogger(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", s.clock.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps domain errors to HTTP statuses.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidTask),
		errors.Is(err, models.ErrInvalidSettings),
		errors.Is(err, progress.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// orEmpty keeps empty lists encoding as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	return n, err == nil
}

// --- Timer ---

func (s *Server) timerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Status(r.Context()))
}

func (s *Server) timerStart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Start(r.Context()))
}

func (s *Server) timerPause(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Pause(r.Context()))
}

func (s *Server) timerStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Stop(r.Context()))
}

func (s *Server) timerComplete(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Complete(r.Context()))
}

func (s *Server) timerReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Reset(r.Context()))
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Settings())
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var body models.Settings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.LongBreakInterval == 0 {
		body.LongBreakInterval = s.timer.Settings().LongBreakInterval
	}
	if err := s.timer.UpdateSettings(body); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.timer.Settings())
}

// --- Tasks ---

type createTaskRequest struct {
	Text     string `json:"text"`
	Priority *int   `json:"priority"`
}

func (s *Server) listTodaysTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context(), s.progress.Today())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

func (s *Server) listTasksForDate(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := s.progress.ParseDate(date); err != nil {
		s.writeErr(w, err)
		return
	}
	tasks, err := s.store.ListTasks(r.Context(), date)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if date == "" {
		date = s.progress.Today()
	} else if _, err := s.progress.ParseDate(date); err != nil {
		s.writeErr(w, err)
		return
	}

	var body createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	text, err := models.NormalizeTaskText(body.Text)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	task := &models.Task{Text: text, TaskDate: date, CreatedAt: s.clock.Now().UTC()}
	if body.Priority != nil {
		if !models.ValidPriority(*body.Priority) {
			writeError(w, http.StatusBadRequest, "priority must be 0 or 1")
			return
		}
		task.Priority = *body.Priority
	}
	if err := s.store.CreateTask(r.Context(), task); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// mutateTask loads a task, applies fn and saves it.
func (s *Server) mutateTask(w http.ResponseWriter, r *http.Request, fn func(t *models.Task) error) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if err := fn(task); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.store.UpdateTask(r.Context(), task); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	s.mutateTask(w, r, func(t *models.Task) error {
		text, err := models.NormalizeTaskText(body.Text)
		if err != nil {
			return err
		}
		t.Text = text
		return nil
	})
}

func (s *Server) toggleTask(w http.ResponseWriter, r *http.Request) {
	s.mutateTask(w, r, func(t *models.Task) error {
		t.SetCompleted(!t.Completed, s.clock.Now())
		return nil
	})
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	s.mutateTask(w, r, func(t *models.Task) error {
		t.SetCompleted(true, s.clock.Now())
		return nil
	})
}

func (s *Server) setTaskPriority(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Priority int `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if !models.ValidPriority(body.Priority) {
		writeError(w, http.StatusBadRequest, "priority must be 0 or 1")
		return
	}
	s.mutateTask(w, r, func(t *models.Task) error {
		t.Priority = body.Priority
		return nil
	})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearTasks(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.DeleteTasksForDate(r.Context(), s.progress.Today()); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) taskStats(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if date == "" {
		date = s.progress.Today()
	} else if _, err := s.progress.ParseDate(date); err != nil {
		s.writeErr(w, err)
		return
	}
	total, completed, err := s.store.CountTasks(r.Context(), date)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewTaskStats(date, total, completed))
}

func (s *Server) listIncompleteTasks(w http.ResponseWriter, r *http.Request) {
	s.listByCompletion(w, r, false)
}

func (s *Server) listCompletedTasks(w http.ResponseWriter, r *http.Request) {
	s.listByCompletion(w, r, true)
}

func (s *Server) listByCompletion(w http.ResponseWriter, r *http.Request, completed bool) {
	tasks, err := s.store.ListTasksByCompletion(r.Context(), s.progress.Today(), completed)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

func (s *Server) listOverdueTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListOverdueTasks(r.Context(), s.progress.Today())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

// --- Sessions ---

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context(), store.SessionFilter{})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(sessions))
}

func (s *Server) listWorkSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.progress.WorkSessions(r.Context(), r.PathValue("date"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(sessions))
}

func (s *Server) productivityStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.progress.ProductivityStats(r.Context(), r.PathValue("date"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) listSessionsForMonth(w http.ResponseWriter, r *http.Request) {
	year, okYear := pathInt(r, "year")
	month, okMonth := pathInt(r, "month")
	if !okYear || !okMonth || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid year or month")
		return
	}
	from, err := s.progress.ParseDate(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format(models.DateLayout))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.listSessionsBetween(w, r, from, from.AddDate(0, 1, 0))
}

func (s *Server) listSessionsForYear(w http.ResponseWriter, r *http.Request) {
	year, ok := pathInt(r, "year")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	from, err := s.progress.ParseDate(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Format(models.DateLayout))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.listSessionsBetween(w, r, from, from.AddDate(1, 0, 0))
}

func (s *Server) listSessionsBetween(w http.ResponseWriter, r *http.Request, from, to time.Time) {
	sessions, err := s.store.ListSessions(r.Context(), store.SessionFilter{From: from, To: to})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(sessions))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Progress ---

func (s *Server) progressMonth(w http.ResponseWriter, r *http.Request) {
	year, okYear := pathInt(r, "year")
	month, okMonth := pathInt(r, "month")
	if !okYear || !okMonth {
		writeError(w, http.StatusBadRequest, "invalid year or month")
		return
	}
	m, err := s.progress.Month(r.Context(), year, time.Month(month))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) progressDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.progress.Day(r.Context(), r.PathValue("date"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// yearParam reads an optional {year}, defaulting to the current year.
func (s *Server) yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	if r.PathValue("year") == "" {
		return s.progress.CurrentYear(), true
	}
	year, ok := pathInt(r, "year")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid year")
	}
	return year, ok
}

func (s *Server) progressChart(w http.ResponseWriter, r *http.Request) {
	year, ok := s.yearParam(w, r)
	if !ok {
		return
	}
	chart, err := s.progress.Chart(r.Context(), year)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *Server) yearlyStats(w http.ResponseWriter, r *http.Request) {
	year, ok := s.yearParam(w, r)
	if !ok {
		return
	}
	stats, err := s.progress.YearlyStats(r.Context(), year)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) availableYears(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.progress.AvailableYears())
}
