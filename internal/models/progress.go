package models

import (
	"fmt"
	"time"
)

// ProgressDay is a single square of the contribution-style chart.
type ProgressDay struct {
	Date              string  `json:"date"`
	TotalHours        float64 `json:"totalHours"`
	SessionCount      int     `json:"sessionCount"`
	ProductivityLevel int     `json:"productivityLevel"`
	ColorClass        string  `json:"colorClass"`
	CSSColor          string  `json:"cssColor"`
	Description       string  `json:"description"`
}

// NewProgressDay fills the derived display fields from the level.
func NewProgressDay(date string, hours float64, sessions, level int) ProgressDay {
	d := ProgressDay{
		Date:              date,
		TotalHours:        hours,
		SessionCount:      sessions,
		ProductivityLevel: level,
	}
	switch level {
	case 1:
		d.ColorClass, d.CSSColor = "light-work", "#9be9a8"
	case 2:
		d.ColorClass, d.CSSColor = "medium-work", "#40c463"
	case 3:
		d.ColorClass, d.CSSColor = "high-work", "#30a14e"
	default:
		d.ColorClass, d.CSSColor = "no-work", "#ebedf0"
	}
	if level == 0 {
		d.Description = "No work sessions"
	} else {
		d.Description = fmt.Sprintf("%.1f hours, %d sessions", hours, sessions)
	}
	return d
}

// ProductivityLevel maps hours worked in a day to a 0-3 level.
func ProductivityLevel(hours float64) int {
	switch {
	case hours <= 0:
		return 0
	case hours < 1:
		return 1
	case hours <= 3:
		return 2
	default:
		return 3
	}
}

// ProgressMonth holds every day of a calendar month.
type ProgressMonth struct {
	Year           int           `json:"year"`
	Month          int           `json:"month"`
	MonthName      string        `json:"monthName"`
	ShortMonthName string        `json:"shortMonthName"`
	Days           []ProgressDay `json:"days"`
	TotalHours     float64       `json:"totalHours"`
	TotalSessions  int           `json:"totalSessions"`
}

// NewProgressMonth computes totals over days.
func NewProgressMonth(year int, month time.Month, days []ProgressDay) ProgressMonth {
	m := ProgressMonth{
		Year:           year,
		Month:          int(month),
		MonthName:      month.String(),
		ShortMonthName: month.String()[:3],
		Days:           days,
	}
	for _, d := range days {
		m.TotalHours += d.TotalHours
		m.TotalSessions += d.SessionCount
	}
	return m
}

// ProgressChart is a full year of months.
type ProgressChart struct {
	Year                   int             `json:"year"`
	Months                 []ProgressMonth `json:"months"`
	TotalYearHours         float64         `json:"totalYearHours"`
	TotalYearSessions      int             `json:"totalYearSessions"`
	TotalWorkDays          int             `json:"totalWorkDays"`
	AverageHoursPerWorkDay float64         `json:"averageHoursPerWorkDay"`
	CurrentStreak          int             `json:"currentStreak"`
	LongestStreak          int             `json:"longestStreak"`
}

// NewProgressChart computes year totals and streaks over months.
func NewProgressChart(year int, months []ProgressMonth) ProgressChart {
	c := ProgressChart{Year: year, Months: months}
	current := 0
	for _, m := range months {
		c.TotalYearHours += m.TotalHours
		c.TotalYearSessions += m.TotalSessions
		for _, d := range m.Days {
			if d.ProductivityLevel > 0 {
				c.TotalWorkDays++
				current++
				if current > c.LongestStreak {
					c.LongestStreak = current
				}
			} else {
				current = 0
			}
		}
	}
	c.CurrentStreak = current
	if c.TotalWorkDays > 0 {
		c.AverageHoursPerWorkDay = c.TotalYearHours / float64(c.TotalWorkDays)
	}
	return c
}

// YearlyStats is the summary view of a ProgressChart.
type YearlyStats struct {
	Year               int     `json:"year"`
	TotalHours         float64 `json:"totalHours"`
	TotalSessions      int     `json:"totalSessions"`
	WorkDays           int     `json:"workDays"`
	AverageHoursPerDay float64 `json:"averageHoursPerDay"`
	CurrentStreak      int     `json:"currentStreak"`
	LongestStreak      int     `json:"longestStreak"`
}

// Stats returns the summary of the chart.
func (c ProgressChart) Stats() YearlyStats {
	return YearlyStats{
		Year:               c.Year,
		TotalHours:         c.TotalYearHours,
		TotalSessions:      c.TotalYearSessions,
		WorkDays:           c.TotalWorkDays,
		AverageHoursPerDay: c.AverageHoursPerWorkDay,
		CurrentStreak:      c.CurrentStreak,
		LongestStreak:      c.LongestStreak,
	}
}
