package models

import "time"

// CompletedSession records a finished pomodoro session.
type CompletedSession struct {
	ID              string      `json:"id"`
	SessionType     SessionType `json:"sessionType"`
	StartTime       time.Time   `json:"startTime"`
	EndTime         time.Time   `json:"endTime"`
	DurationSeconds int         `json:"durationSeconds"`
	Source          Source      `json:"source"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// DurationMinutes returns the whole minutes worked.
func (s *CompletedSession) DurationMinutes() int {
	return s.DurationSeconds / 60
}

// DurationHours returns the session length in hours.
func (s *CompletedSession) DurationHours() float64 {
	return float64(s.DurationSeconds) / 3600.0
}

// ProductivityStats summarizes work sessions for one day.
type ProductivityStats struct {
	Date              string  `json:"date"`
	TotalHours        float64 `json:"totalHours"`
	SessionCount      int     `json:"sessionCount"`
	ProductivityLevel int     `json:"productivityLevel"`
}
