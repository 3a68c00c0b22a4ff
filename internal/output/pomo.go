package output

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/reconcile"
	"github.com/joescharf/pomo/internal/timer"
)

var sessionLabels = map[models.SessionType]string{
	models.SessionWork:       "Work",
	models.SessionShortBreak: "Short break",
	models.SessionLongBreak:  "Long break",
}

// SessionLabel returns the human name of a session type.
func SessionLabel(t models.SessionType) string {
	if l, ok := sessionLabels[t]; ok {
		return l
	}
	return string(t)
}

// ModeLabel returns a short tag for the engine mode. Local mode is flagged
// so the user knows the server is not being used.
func ModeLabel(m reconcile.Mode) string {
	if m.IsLocal() {
		return yellow("local")
	}
	return cyan("server")
}

// TimerLine formats a snapshot as a single status line.
func TimerLine(snap models.Snapshot, mode reconcile.Mode) string {
	return fmt.Sprintf("%s  %s  %s  #%d  [%s]",
		timer.FormatTime(float64(snap.RemainingSeconds)),
		SessionLabel(snap.SessionType),
		StateColor(snap.State),
		snap.CompletedWorkSessions,
		ModeLabel(mode),
	)
}

// Timer prints the snapshot line.
func (u *UI) Timer(snap models.Snapshot, mode reconcile.Mode) {
	fmt.Fprintln(u.Out, TimerLine(snap, mode))
}

// Settings prints the configured durations.
func (u *UI) Settings(s models.Settings) {
	fmt.Fprintf(u.Out, "Work:         %d min\n", s.WorkDurationSeconds/60)
	fmt.Fprintf(u.Out, "Short break:  %d min\n", s.ShortBreakDurationSeconds/60)
	fmt.Fprintf(u.Out, "Long break:   %d min\n", s.LongBreakDurationSeconds/60)
	fmt.Fprintf(u.Out, "Long break every %d work sessions\n", s.LongBreakInterval)
}

// Tasks prints tasks as a table. today marks overdue rows.
func (u *UI) Tasks(tasks []models.Task, today string) error {
	if len(tasks) == 0 {
		u.Info("No tasks")
		return nil
	}
	table := u.Table([]string{"ID", "Done", "Pri", "Date", "Text"})
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = green("✓")
		}
		pri := ""
		if t.IsHighPriority() {
			pri = red("!")
		}
		date := t.TaskDate
		if t.IsOverdue(today) {
			date = red(date)
		}
		if err := table.Append([]string{t.ID, done, pri, date, t.Text}); err != nil {
			return err
		}
	}
	return table.Render()
}

// TaskStats prints a one-line task summary.
func (u *UI) TaskStats(s models.TaskStats) {
	fmt.Fprintf(u.Out, "%s: %d/%d done (%.0f%%), %d open\n",
		s.Date, s.CompletedTasks, s.TotalTasks, s.CompletionRate, s.IncompleteTasks)
}

// Sessions prints completed sessions as a table.
func (u *UI) Sessions(sessions []models.CompletedSession) error {
	if len(sessions) == 0 {
		u.Info("No sessions")
		return nil
	}
	table := u.Table([]string{"ID", "Type", "Start", "End", "Minutes", "Source"})
	for _, s := range sessions {
		if err := table.Append([]string{
			s.ID,
			SessionLabel(s.SessionType),
			s.StartTime.Local().Format("2006-01-02 15:04"),
			s.EndTime.Local().Format("15:04"),
			fmt.Sprintf("%d", s.DurationMinutes()),
			string(s.Source),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// ProductivityStats prints a day's totals.
func (u *UI) ProductivityStats(s models.ProductivityStats) {
	fmt.Fprintf(u.Out, "%s: %.1f hours in %d sessions %s\n",
		s.Date, s.TotalHours, s.SessionCount, LevelColor(s.ProductivityLevel))
}

// Day prints a single progress day.
func (u *UI) Day(d models.ProgressDay) {
	fmt.Fprintf(u.Out, "%s %s %s\n", LevelColor(d.ProductivityLevel), d.Date, d.Description)
}

// MonthRow renders a month as one row of level blocks.
func MonthRow(m models.ProgressMonth) string {
	var b strings.Builder
	for _, d := range m.Days {
		b.WriteString(LevelColor(d.ProductivityLevel))
	}
	return b.String()
}

// Month prints a month grid with totals.
func (u *UI) Month(m models.ProgressMonth) {
	fmt.Fprintf(u.Out, "%s %d\n", m.MonthName, m.Year)
	fmt.Fprintln(u.Out, MonthRow(m))
	fmt.Fprintf(u.Out, "%.1f hours, %d sessions\n", m.TotalHours, m.TotalSessions)
}

// Chart prints a year of month rows followed by streaks.
func (u *UI) Chart(c models.ProgressChart) {
	fmt.Fprintf(u.Out, "%d\n", c.Year)
	for _, m := range c.Months {
		fmt.Fprintf(u.Out, "%s %s %5.1fh\n", m.ShortMonthName, MonthRow(m), m.TotalHours)
	}
	u.YearlyStats(c.Stats())
}

// YearlyStats prints a year summary.
func (u *UI) YearlyStats(s models.YearlyStats) {
	fmt.Fprintf(u.Out, "%.1f hours, %d sessions over %d days (%.1f h/day)\n",
		s.TotalHours, s.TotalSessions, s.WorkDays, s.AverageHoursPerDay)
	fmt.Fprintf(u.Out, "Current streak: %d  Longest streak: %d\n", s.CurrentStreak, s.LongestStreak)
}

// LivePresenter renders refresh updates to a terminal. The timer line is
// redrawn in place; other updates print above it.
type LivePresenter struct {
	UI *UI

	mu       sync.Mutex
	lastLine string
}

func (p *LivePresenter) clearLine() {
	if p.lastLine != "" {
		fmt.Fprint(p.UI.Out, "\r\033[K")
	}
}

func (p *LivePresenter) restoreLine() {
	if p.lastLine != "" {
		fmt.Fprint(p.UI.Out, p.lastLine)
	}
}

func (p *LivePresenter) ShowTimer(snap models.Snapshot, mode reconcile.Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLine()
	p.lastLine = TimerLine(snap, mode)
	fmt.Fprint(p.UI.Out, p.lastLine)
}

func (p *LivePresenter) ShowTasks(tasks []models.Task, sessions []models.CompletedSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLine()
	open := 0
	for _, t := range tasks {
		if !t.Completed {
			open++
		}
	}
	minutes := 0
	for _, s := range sessions {
		minutes += s.DurationMinutes()
	}
	fmt.Fprintf(p.UI.Out, "Tasks: %d open of %d  Work today: %d sessions, %d min\n",
		open, len(tasks), len(sessions), minutes)
	p.restoreLine()
}

func (p *LivePresenter) ShowProgress(month models.ProgressMonth) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLine()
	fmt.Fprintf(p.UI.Out, "%s %s\n", month.ShortMonthName, MonthRow(month))
	p.restoreLine()
}

func (p *LivePresenter) ShowEvent(ev reconcile.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLine()
	at := ev.At.Local().Format(time.Kitchen)
	switch ev.Kind {
	case reconcile.EventSessionCompleted:
		fmt.Fprintf(p.UI.Out, "%s %s %s session complete\n", successPrefix, at, SessionLabel(ev.SessionType))
	case reconcile.EventModeChanged:
		if ev.Mode.IsLocal() {
			fmt.Fprintf(p.UI.Out, "%s %s Server unavailable, using local timer\n", warningPrefix, at)
		} else {
			fmt.Fprintf(p.UI.Out, "%s %s Connected to server\n", infoPrefix, at)
		}
	default:
		if ev.Message != "" {
			fmt.Fprintf(p.UI.Out, "%s %s %s\n", infoPrefix, at, ev.Message)
		}
	}
	p.restoreLine()
}
