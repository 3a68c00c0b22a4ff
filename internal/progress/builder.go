// Package progress aggregates recorded work sessions into daily, monthly and
// yearly productivity views.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/store"
)

// ErrInvalidDate is returned for malformed dates, months or years.
var ErrInvalidDate = errors.New("invalid date")

// FirstYear is the earliest year offered by AvailableYears.
const FirstYear = 2025

// SessionSource lists recorded sessions.
type SessionSource interface {
	ListSessions(ctx context.Context, filter store.SessionFilter) ([]*models.CompletedSession, error)
}

// Builder computes progress views. Days are calendar days in the builder's
// location.
type Builder struct {
	sessions SessionSource
	clock    clockwork.Clock
	loc      *time.Location
}

// NewBuilder returns a Builder. A nil loc means time.Local.
func NewBuilder(sessions SessionSource, clock clockwork.Clock, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{sessions: sessions, clock: clock, loc: loc}
}

// Today returns the current date in the builder's location.
func (b *Builder) Today() string {
	return b.clock.Now().In(b.loc).Format(models.DateLayout)
}

// ParseDate parses a YYYY-MM-DD date at midnight in the builder's location.
func (b *Builder) ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateLayout, date, b.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

type dayTotal struct {
	seconds  int
	sessions int
}

// workTotals sums work sessions per day for sessions starting in [from, to).
func (b *Builder) workTotals(ctx context.Context, from, to time.Time) (map[string]dayTotal, error) {
	sessions, err := b.sessions.ListSessions(ctx, store.SessionFilter{Type: models.SessionWork, From: from, To: to})
	if err != nil {
		return nil, err
	}
	totals := make(map[string]dayTotal)
	for _, s := range sessions {
		key := s.StartTime.In(b.loc).Format(models.DateLayout)
		t := totals[key]
		t.seconds += s.DurationSeconds
		t.sessions++
		totals[key] = t
	}
	return totals, nil
}

func newDay(date string, t dayTotal) models.ProgressDay {
	hours := float64(t.seconds) / 3600.0
	return models.NewProgressDay(date, hours, t.sessions, models.ProductivityLevel(hours))
}

// WorkSessions returns the work sessions started on date, most recent first.
func (b *Builder) WorkSessions(ctx context.Context, date string) ([]*models.CompletedSession, error) {
	from, err := b.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return b.sessions.ListSessions(ctx, store.SessionFilter{Type: models.SessionWork, From: from, To: from.AddDate(0, 0, 1)})
}

// ProductivityStats summarizes the work done on date.
func (b *Builder) ProductivityStats(ctx context.Context, date string) (models.ProductivityStats, error) {
	day, err := b.Day(ctx, date)
	if err != nil {
		return models.ProductivityStats{}, err
	}
	return models.ProductivityStats{
		Date:              day.Date,
		TotalHours:        day.TotalHours,
		SessionCount:      day.SessionCount,
		ProductivityLevel: day.ProductivityLevel,
	}, nil
}

// Day returns the progress for a single date.
func (b *Builder) Day(ctx context.Context, date string) (models.ProgressDay, error) {
	from, err := b.ParseDate(date)
	if err != nil {
		return models.ProgressDay{}, err
	}
	totals, err := b.workTotals(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return models.ProgressDay{}, err
	}
	return newDay(date, totals[date]), nil
}

// Month returns every day of a month.
func (b *Builder) Month(ctx context.Context, year int, month time.Month) (models.ProgressMonth, error) {
	if err := checkYear(year); err != nil {
		return models.ProgressMonth{}, err
	}
	if month < time.January || month > time.December {
		return models.ProgressMonth{}, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, b.loc)
	to := from.AddDate(0, 1, 0)
	totals, err := b.workTotals(ctx, from, to)
	if err != nil {
		return models.ProgressMonth{}, err
	}
	return b.month(year, month, totals), nil
}

func (b *Builder) month(year int, month time.Month, totals map[string]dayTotal) models.ProgressMonth {
	first := time.Date(year, month, 1, 0, 0, 0, 0, b.loc)
	var days []models.ProgressDay
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DateLayout)
		days = append(days, newDay(key, totals[key]))
	}
	return models.NewProgressMonth(year, month, days)
}

// Chart returns the twelve months of year with yearly totals and streaks.
func (b *Builder) Chart(ctx context.Context, year int) (models.ProgressChart, error) {
	if err := checkYear(year); err != nil {
		return models.ProgressChart{}, err
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, b.loc)
	totals, err := b.workTotals(ctx, from, from.AddDate(1, 0, 0))
	if err != nil {
		return models.ProgressChart{}, err
	}
	months := make([]models.ProgressMonth, 0, 12)
	for m := time.January; m <= time.December; m++ {
		months = append(months, b.month(year, m, totals))
	}
	return models.NewProgressChart(year, months), nil
}

// YearlyStats returns the summary of Chart(year).
func (b *Builder) YearlyStats(ctx context.Context, year int) (models.YearlyStats, error) {
	chart, err := b.Chart(ctx, year)
	if err != nil {
		return models.YearlyStats{}, err
	}
	return chart.Stats(), nil
}

// CurrentYear returns the current year in the builder's location.
func (b *Builder) CurrentYear() int {
	return b.clock.Now().In(b.loc).Year()
}

// AvailableYears lists the years offered for charts: at most the current year
// and the two before it, never earlier than FirstYear.
func (b *Builder) AvailableYears() []int {
	current := b.CurrentYear()
	var years []int
	for y := max(FirstYear, current-2); y <= current; y++ {
		years = append(years, y)
	}
	if len(years) == 0 {
		years = append(years, current)
	}
	return years
}

func checkYear(year int) error {
	if year < 1 || year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidDate, year)
	}
	return nil
}
